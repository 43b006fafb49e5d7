// Package keeper runs the periodic report and rebalance jobs against a
// ledger server.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"solana-vault-ledger/internal/api"
	"solana-vault-ledger/internal/client"
	"solana-vault-ledger/internal/config"
	"solana-vault-ledger/internal/domain"
	"solana-vault-ledger/internal/observability"
)

// Ledger is the subset of the ledger client the keeper drives.
type Ledger interface {
	ListVaults(ctx context.Context) ([]api.VaultResponse, error)
	ListStrategies(ctx context.Context, vault string) ([]api.StrategyResponse, error)
	ProcessReport(ctx context.Context, vault, strategy string) (*domain.Event, error)
	UpdateDebt(ctx context.Context, vault, strategy string, newDebt uint64) (*domain.Event, error)
}

// Result summarizes one job run.
type Result struct {
	Done    int
	Skipped int
	Failed  int
}

// Keeper schedules report and rebalance jobs.
type Keeper struct {
	ledger  Ledger
	cfg     config.KeeperConfig
	cron    *cron.Cron
	log     *logrus.Entry
	timeout time.Duration
}

// New creates a Keeper.
func New(ledger Ledger, cfg config.KeeperConfig, logger *logrus.Entry) *Keeper {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Keeper{
		ledger:  ledger,
		cfg:     cfg,
		cron:    cron.New(),
		log:     logger.WithField("component", "keeper"),
		timeout: timeout,
	}
}

// Register adds the configured jobs to the scheduler. An empty schedule
// disables its job.
func (k *Keeper) Register(ctx context.Context) error {
	if k.cfg.ReportSchedule != "" {
		if _, err := k.cron.AddFunc(k.cfg.ReportSchedule, func() { k.run(ctx, "report", k.ReportAll) }); err != nil {
			return fmt.Errorf("register report job: %w", err)
		}
	}
	if k.cfg.RebalanceSchedule != "" {
		if _, err := k.cron.AddFunc(k.cfg.RebalanceSchedule, func() { k.run(ctx, "rebalance", k.Rebalance) }); err != nil {
			return fmt.Errorf("register rebalance job: %w", err)
		}
	}
	return nil
}

// Start starts the scheduler.
func (k *Keeper) Start() {
	k.cron.Start()
	k.log.WithField("jobs", len(k.cron.Entries())).Info("keeper started")
}

// Stop stops the scheduler and waits for running jobs.
func (k *Keeper) Stop() {
	<-k.cron.Stop().Done()
	k.log.Info("keeper stopped")
}

func (k *Keeper) run(ctx context.Context, job string, fn func(context.Context) (Result, error)) {
	start := time.Now()
	res, err := fn(ctx)
	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.RecordKeeperRun(job, status, time.Since(start).Seconds())

	entry := k.log.WithFields(logrus.Fields{
		"job":     job,
		"done":    res.Done,
		"skipped": res.Skipped,
		"failed":  res.Failed,
	})
	if err != nil {
		entry.WithError(err).Warn("job finished with errors")
		return
	}
	entry.Info("job finished")
}

// ReportAll processes a report for every active strategy of every open
// vault.
func (k *Keeper) ReportAll(ctx context.Context) (Result, error) {
	var res Result
	vaults, err := k.listVaults(ctx)
	if err != nil {
		return res, err
	}

	var errs []error
	for _, v := range vaults {
		if v.IsShutdown {
			res.Skipped++
			continue
		}
		strategies, err := k.listStrategies(ctx, v.Key)
		if err != nil {
			res.Failed++
			errs = append(errs, err)
			continue
		}
		for _, s := range strategies {
			if !s.IsActive {
				res.Skipped++
				continue
			}
			rctx, cancel := context.WithTimeout(ctx, k.timeout)
			e, err := k.ledger.ProcessReport(rctx, v.Key, s.Key)
			cancel()
			if err != nil {
				res.Failed++
				errs = append(errs, fmt.Errorf("report %s/%s: %w", v.Key, s.Key, err))
				continue
			}
			res.Done++
			if e.Gain > 0 || e.Loss > 0 {
				k.log.WithFields(logrus.Fields{
					"vault":    v.Key,
					"strategy": s.Key,
					"gain":     e.Gain,
					"loss":     e.Loss,
					"fee":      e.Fee,
				}).Info("strategy reported")
			}
		}
	}
	return res, errors.Join(errs...)
}

// Rebalance moves each configured strategy toward its target debt. Targets
// already met are skipped.
func (k *Keeper) Rebalance(ctx context.Context) (Result, error) {
	var res Result
	var errs []error
	for _, t := range k.cfg.Targets {
		rctx, cancel := context.WithTimeout(ctx, k.timeout)
		e, err := k.ledger.UpdateDebt(rctx, t.Vault, t.Strategy, t.Debt)
		cancel()
		var apiErr *client.Error
		switch {
		case errors.As(err, &apiErr) && apiErr.Kind == "same_debt":
			res.Skipped++
		case err != nil:
			res.Failed++
			errs = append(errs, fmt.Errorf("rebalance %s/%s: %w", t.Vault, t.Strategy, err))
		default:
			res.Done++
			k.log.WithFields(logrus.Fields{
				"vault":    t.Vault,
				"strategy": t.Strategy,
				"moved":    e.Amount,
				"debt":     e.CurrentDebt,
			}).Info("debt updated")
		}
	}
	return res, errors.Join(errs...)
}

func (k *Keeper) listVaults(ctx context.Context) ([]api.VaultResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()
	vaults, err := k.ledger.ListVaults(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vaults: %w", err)
	}
	return vaults, nil
}

func (k *Keeper) listStrategies(ctx context.Context, vault string) ([]api.StrategyResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()
	strategies, err := k.ledger.ListStrategies(ctx, vault)
	if err != nil {
		return nil, fmt.Errorf("list strategies %s: %w", vault, err)
	}
	return strategies, nil
}
