// Package vault is the ledger engine. It runs every vault operation as a unit
// of work over copies of the stored state and commits the result in a single
// store write, restoring custody, adapter and accountant state when an
// operation fails.
package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"solana-vault-ledger/internal/accountant"
	"solana-vault-ledger/internal/address"
	"solana-vault-ledger/internal/domain"
	"solana-vault-ledger/internal/id"
	"solana-vault-ledger/internal/observability"
	"solana-vault-ledger/internal/registry"
	"solana-vault-ledger/internal/roles"
	"solana-vault-ledger/internal/storage"
	"solana-vault-ledger/internal/strategy"
)

// AssetTransfer is the custody capability the engine moves assets and shares
// through.
type AssetTransfer interface {
	strategy.Custody
	// Open creates a token account for mint owned by owner.
	Open(account, mint, owner string) error
	// Snapshot captures all balances and returns a func restoring them.
	Snapshot() func()
}

// Accountants resolves the fee accountant referenced by a vault.
type Accountants interface {
	Lookup(key string) (accountant.Accountant, error)
}

// Publisher receives every committed event.
type Publisher interface {
	Publish(e *domain.Event)
}

// Options configure a Service.
type Options struct {
	// ProgramID derives vault, strategy and token account addresses.
	ProgramID address.Address
	// MaxStrategies bounds the strategies per vault. Zero selects
	// registry.DefaultMaxStrategies.
	MaxStrategies int
	// Events stores the event history. Optional.
	Events storage.EventStore
	// Publisher is notified after each commit. Optional.
	Publisher Publisher
	// Now overrides the clock.
	Now func() time.Time
	// Logger defaults to the logrus standard logger.
	Logger *logrus.Entry
}

// Service executes vault operations.
type Service struct {
	// mu serializes mutations. Custody balances are shared across vaults.
	mu sync.Mutex

	store       storage.LedgerStore
	events      storage.EventStore
	bank        AssetTransfer
	roles       roles.Checker
	accountants Accountants
	adapters    *strategy.Set
	publisher   Publisher

	program       address.Address
	maxStrategies int
	now           func() time.Time
	log           *logrus.Entry
}

// New creates a Service.
func New(store storage.LedgerStore, bank AssetTransfer, checker roles.Checker, accountants Accountants, adapters *strategy.Set, opts Options) *Service {
	if opts.ProgramID.IsZero() {
		opts.ProgramID = address.DefaultProgramID
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{
		store:         store,
		events:        opts.Events,
		bank:          bank,
		roles:         checker,
		accountants:   accountants,
		adapters:      adapters,
		publisher:     opts.Publisher,
		program:       opts.ProgramID,
		maxStrategies: opts.MaxStrategies,
		now:           opts.Now,
		log:           opts.Logger.WithField("component", "vault"),
	}
}

// ProgramID returns the program address used for derivations.
func (s *Service) ProgramID() address.Address { return s.program }

// op is the unit of work of one mutating operation.
type op struct {
	s     *Service
	name  string
	actor string
	now   time.Time

	kind      storage.ChangeKind
	before    *domain.Vault
	vault     *domain.Vault
	reg       *registry.Registry
	positions map[string]*domain.UserPosition

	undo     []func()
	snapped  map[any]struct{}
	onCommit []func()

	event *domain.Event
}

// mutate loads vaultKey, runs fn over working copies and commits. An empty
// vaultKey leaves loading to fn.
func (s *Service) mutate(ctx context.Context, name, actor, vaultKey string, fn func(o *op) error) (*domain.Event, error) {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	o := &op{
		s:         s,
		name:      name,
		actor:     actor,
		now:       s.now().UTC(),
		kind:      storage.ChangeUpdate,
		positions: make(map[string]*domain.UserPosition),
		snapped:   make(map[any]struct{}),
		event:     &domain.Event{},
	}
	o.undo = append(o.undo, s.bank.Snapshot())

	err := o.load(ctx, vaultKey)
	if err == nil {
		err = fn(o)
	}
	if err == nil {
		err = o.commit(ctx)
	}
	if err != nil {
		o.rollback()
		kind := ErrorKind(err)
		observability.RecordOperation(name, "error", time.Since(start).Seconds())
		observability.RecordRollback(name, kind)
		s.log.WithFields(logrus.Fields{
			"operation": name,
			"vault":     vaultKey,
			"actor":     actor,
			"kind":      kind,
		}).WithError(err).Warn("Operation rolled back")
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	for _, f := range o.onCommit {
		f()
	}
	e := o.finishEvent()
	s.record(ctx, e)
	s.observe(o)
	observability.RecordOperation(name, "ok", time.Since(start).Seconds())
	s.log.WithFields(logrus.Fields{
		"operation":    name,
		"vault":        e.Vault,
		"actor":        actor,
		"total_idle":   e.TotalIdle,
		"total_debt":   e.TotalDebt,
		"total_shares": e.TotalShares,
	}).Info("Operation committed")
	return e, nil
}

func (o *op) load(ctx context.Context, vaultKey string) error {
	if vaultKey == "" {
		return nil
	}
	v, err := o.s.loadVault(ctx, vaultKey)
	if err != nil {
		return err
	}
	records, err := o.s.store.GetStrategies(ctx, vaultKey)
	if err != nil {
		return fmt.Errorf("load strategies: %w", err)
	}
	o.before = v.Clone()
	o.vault = v
	o.reg = registry.New(o.s.maxStrategies, records)
	return nil
}

// create installs a new vault as the working copy.
func (o *op) create(v *domain.Vault) {
	o.kind = storage.ChangeCreate
	o.before = &domain.Vault{Key: v.Key}
	o.vault = v
	o.reg = registry.New(o.s.maxStrategies, nil)
}

func (o *op) commit(ctx context.Context) error {
	o.vault.UpdatedAt = o.now
	cs := &storage.Changeset{
		Kind:              o.kind,
		Vault:             o.vault,
		Strategies:        o.reg.Records(),
		RemovedStrategies: o.reg.Removed(),
	}
	for _, p := range o.positions {
		cs.Positions = append(cs.Positions, p)
	}
	if err := o.s.store.Commit(ctx, cs); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return domain.ErrVaultAlreadyExists
		}
		if errors.Is(err, storage.ErrNotFound) {
			return domain.ErrVaultNotFound
		}
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (o *op) rollback() {
	for i := len(o.undo) - 1; i >= 0; i-- {
		o.undo[i]()
	}
}

// snapshot registers the restore func of a stateful collaborator once.
func (o *op) snapshot(c any) {
	sn, ok := c.(strategy.Snapshotter)
	if !ok {
		return
	}
	if _, done := o.snapped[c]; done {
		return
	}
	o.snapped[c] = struct{}{}
	o.undo = append(o.undo, sn.Snapshot())
}

// adapter resolves the adapter of rec and snapshots its state.
func (o *op) adapter(rec *domain.StrategyDebtRecord) (strategy.Adapter, error) {
	a, err := o.s.adapters.Resolve(o.vault, rec)
	if err != nil {
		return nil, err
	}
	o.snapshot(a)
	return a, nil
}

// accountant resolves the vault's accountant. It returns nil when the vault
// charges no fees.
func (o *op) accountant() (accountant.Accountant, error) {
	if o.vault.Accountant == "" || o.s.accountants == nil {
		return nil, nil
	}
	a, err := o.s.accountants.Lookup(o.vault.Accountant)
	if err != nil {
		return nil, err
	}
	o.snapshot(a)
	return a, nil
}

// position loads or creates the position of owner.
func (o *op) position(ctx context.Context, owner string) (*domain.UserPosition, error) {
	if p, ok := o.positions[owner]; ok {
		return p, nil
	}
	p, err := o.s.store.GetPosition(ctx, o.vault.Key, owner)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		p = &domain.UserPosition{Vault: o.vault.Key, Owner: owner}
	case err != nil:
		return nil, fmt.Errorf("load position: %w", err)
	}
	p.UpdatedAt = o.now
	o.positions[owner] = p
	return p, nil
}

// require fails with ErrUnauthorized unless the actor holds one of want.
func (o *op) require(ctx context.Context, want ...roles.Role) error {
	for _, r := range want {
		ok, err := o.s.roles.HasRole(ctx, o.actor, r)
		if err != nil {
			return fmt.Errorf("role check: %w", err)
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("%w: %s lacks %v", domain.ErrUnauthorized, o.actor, want)
}

func (o *op) finishEvent() *domain.Event {
	e := o.event
	e.EventID = id.New(o.now)
	e.Vault = o.vault.Key
	e.Actor = o.actor
	e.Timestamp = o.now.UnixMilli()
	e.Delta = domain.DeltaBetween(o.before, o.vault)
	if o.kind != storage.ChangeDelete {
		e.TotalIdle = o.vault.TotalIdle
		e.TotalDebt = o.vault.TotalDebt
		e.TotalShares = o.vault.TotalShares
	}
	if e.Strategy != "" {
		if rec, err := o.reg.Get(e.Strategy); err == nil {
			e.CurrentDebt = rec.CurrentDebt
		}
	}
	return e
}

// record stores and publishes a committed event. The ledger commit already
// happened, so failures here are logged only.
func (s *Service) record(ctx context.Context, e *domain.Event) {
	observability.RecordEvent(string(e.Type))
	if s.events != nil {
		if err := s.events.InsertBulk(ctx, []*domain.Event{e}); err != nil {
			observability.RecordEventError("store")
			s.log.WithError(err).WithField("event_id", e.EventID).Error("Failed to store event")
		}
	}
	if s.publisher != nil {
		s.publisher.Publish(e)
	}
}

func (s *Service) observe(o *op) {
	v := o.vault
	if o.kind == storage.ChangeDelete {
		observability.UpdateVault(v.Key, 0, 0, 0)
		return
	}
	observability.UpdateVault(v.Key, v.TotalIdle, v.TotalDebt, v.TotalShares)
	for _, rec := range o.reg.Records() {
		observability.UpdateStrategyDebt(v.Key, rec.Key, rec.CurrentDebt)
	}
	for _, key := range o.reg.Removed() {
		observability.DeleteStrategy(v.Key, key)
	}
}

func (s *Service) loadVault(ctx context.Context, key string) (*domain.Vault, error) {
	v, err := s.store.GetVault(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrVaultNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("load vault: %w", err)
	}
	return v, nil
}

// TokenAccount derives the token account of owner for mint.
func (s *Service) TokenAccount(owner, mint string) (string, error) {
	o, err := address.Parse(owner)
	if err != nil {
		return "", fmt.Errorf("owner %q: %w", owner, err)
	}
	m, err := address.Parse(mint)
	if err != nil {
		return "", fmt.Errorf("mint %q: %w", mint, err)
	}
	acct, err := address.TokenAccount(s.program, o, m)
	if err != nil {
		return "", err
	}
	return acct.String(), nil
}

// vaultBalance reads the custody balance of the vault token account.
func (o *op) vaultBalance(ctx context.Context) (uint64, error) {
	return o.s.bank.Balance(ctx, o.vault.TokenAccount)
}
