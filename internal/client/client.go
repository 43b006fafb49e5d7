// Package client is a typed HTTP client for the ledger server.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"solana-vault-ledger/internal/api"
	"solana-vault-ledger/internal/domain"
)

// Error is a non-2xx response from the server.
type Error struct {
	Status    int
	Kind      string
	Message   string
	RequestID string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
}

// Client calls the ledger server as one account.
type Client struct {
	http    *resty.Client
	baseURL string
	account string
}

// New creates a client for the server at baseURL acting as account.
func New(baseURL, account string, timeout time.Duration) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	hc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			// Mutations are not idempotent; only reads are retried.
			if resp == nil || resp.Request == nil || resp.Request.Method != http.MethodGet {
				return false
			}
			return err != nil || resp.StatusCode() >= 500
		})
	return &Client{http: hc, baseURL: baseURL, account: account}
}

// As returns a client sharing the connection pool but acting as account.
func (c *Client) As(account string) *Client {
	cp := *c
	cp.account = account
	return &cp
}

// Account returns the account the client acts as.
func (c *Client) Account() string { return c.account }

func (c *Client) request(ctx context.Context) *resty.Request {
	r := c.http.R().SetContext(ctx).SetHeader("Accept", "application/json")
	if c.account != "" {
		r.SetHeader(api.ActorHeader, c.account)
	}
	return r
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	r := c.request(ctx)
	if body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if out != nil {
		r.SetResult(out)
	}
	resp, err := r.Execute(method, path)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	if resp.IsSuccess() {
		return nil
	}
	apiErr := &Error{Status: resp.StatusCode(), Kind: "unknown", Message: resp.Status()}
	var payload struct {
		Error     string `json:"error"`
		Kind      string `json:"kind"`
		RequestID string `json:"request_id"`
	}
	if json.Unmarshal(resp.Body(), &payload) == nil && payload.Kind != "" {
		apiErr.Kind = payload.Kind
		apiErr.Message = payload.Error
		apiErr.RequestID = payload.RequestID
	}
	return errors.WithStack(apiErr)
}

func vaultPath(vault string, parts ...string) string {
	p := "/v1/vaults/" + url.PathEscape(vault)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

func strategyPath(vault, strategy string, parts ...string) string {
	return vaultPath(vault, append([]string{"strategies", url.PathEscape(strategy)}, parts...)...)
}

// Health checks the server is up.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// ListVaults returns every vault.
func (c *Client) ListVaults(ctx context.Context) ([]api.VaultResponse, error) {
	var out []api.VaultResponse
	err := c.do(ctx, http.MethodGet, "/v1/vaults", nil, &out)
	return out, err
}

// InitVault creates a vault.
func (c *Client) InitVault(ctx context.Context, req api.InitVaultRequest) (*api.VaultResponse, error) {
	var out api.VaultResponse
	if err := c.do(ctx, http.MethodPost, "/v1/vaults", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetVault returns one vault.
func (c *Client) GetVault(ctx context.Context, vault string) (*api.VaultResponse, error) {
	var out api.VaultResponse
	if err := c.do(ctx, http.MethodGet, vaultPath(vault), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) event(ctx context.Context, method, path string, body any) (*domain.Event, error) {
	var out domain.Event
	if err := c.do(ctx, method, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CloseVault closes a shut down, empty vault.
func (c *Client) CloseVault(ctx context.Context, vault string) (*domain.Event, error) {
	return c.event(ctx, http.MethodDelete, vaultPath(vault), nil)
}

// Shutdown shuts a vault down.
func (c *Client) Shutdown(ctx context.Context, vault string) (*domain.Event, error) {
	return c.event(ctx, http.MethodPost, vaultPath(vault, "shutdown"), nil)
}

// Deposit deposits amount as the client's account.
func (c *Client) Deposit(ctx context.Context, vault string, amount uint64) (*domain.Event, error) {
	return c.event(ctx, http.MethodPost, vaultPath(vault, "deposit"), api.AmountRequest{Amount: amount})
}

// Withdraw withdraws assets as the client's account.
func (c *Client) Withdraw(ctx context.Context, vault string, req api.WithdrawRequest) (*domain.Event, error) {
	return c.event(ctx, http.MethodPost, vaultPath(vault, "withdraw"), req)
}

// Redeem redeems shares as the client's account.
func (c *Client) Redeem(ctx context.Context, vault string, req api.WithdrawRequest) (*domain.Event, error) {
	return c.event(ctx, http.MethodPost, vaultPath(vault, "redeem"), req)
}

// SetDepositLimit sets a vault's deposit limit.
func (c *Client) SetDepositLimit(ctx context.Context, vault string, limit uint64) (*domain.Event, error) {
	return c.event(ctx, http.MethodPut, vaultPath(vault, "deposit-limit"), api.AmountRequest{Amount: limit})
}

// SetMinTotalIdle sets a vault's idle floor.
func (c *Client) SetMinTotalIdle(ctx context.Context, vault string, minIdle uint64) (*domain.Event, error) {
	return c.event(ctx, http.MethodPut, vaultPath(vault, "min-total-idle"), api.AmountRequest{Amount: minIdle})
}

// SetMinUserDeposit sets a vault's minimum deposit.
func (c *Client) SetMinUserDeposit(ctx context.Context, vault string, minDeposit uint64) (*domain.Event, error) {
	return c.event(ctx, http.MethodPut, vaultPath(vault, "min-user-deposit"), api.AmountRequest{Amount: minDeposit})
}

// SetWhitelist adds or removes owner from a vault's whitelist.
func (c *Client) SetWhitelist(ctx context.Context, vault, owner string, whitelisted bool) (*domain.Event, error) {
	return c.event(ctx, http.MethodPut, vaultPath(vault, "whitelist", url.PathEscape(owner)), api.WhitelistRequest{Whitelisted: whitelisted})
}

// GetPosition returns owner's position.
func (c *Client) GetPosition(ctx context.Context, vault, owner string) (*api.PositionResponse, error) {
	var out api.PositionResponse
	if err := c.do(ctx, http.MethodGet, vaultPath(vault, "positions", url.PathEscape(owner)), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Preview prices assets and shares at the current rate.
func (c *Client) Preview(ctx context.Context, vault string, assets, shares uint64) (*api.QuoteResponse, error) {
	var out api.QuoteResponse
	path := vaultPath(vault, "preview") + "?assets=" + strconv.FormatUint(assets, 10) + "&shares=" + strconv.FormatUint(shares, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Events returns a vault's events between start and end (Unix ms, zero
// for open).
func (c *Client) Events(ctx context.Context, vault string, start, end int64) ([]domain.Event, error) {
	q := url.Values{}
	if start != 0 {
		q.Set("start", strconv.FormatInt(start, 10))
	}
	if end != 0 {
		q.Set("end", strconv.FormatInt(end, 10))
	}
	path := vaultPath(vault, "events")
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []domain.Event
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// Flows returns a vault's per-day flow totals.
func (c *Client) Flows(ctx context.Context, vault string) ([]domain.DailyFlow, error) {
	var out []domain.DailyFlow
	err := c.do(ctx, http.MethodGet, vaultPath(vault, "flows"), nil, &out)
	return out, err
}

// ListStrategies returns a vault's strategies.
func (c *Client) ListStrategies(ctx context.Context, vault string) ([]api.StrategyResponse, error) {
	var out []api.StrategyResponse
	err := c.do(ctx, http.MethodGet, vaultPath(vault, "strategies"), nil, &out)
	return out, err
}

// AddStrategy attaches a strategy.
func (c *Client) AddStrategy(ctx context.Context, vault string, req api.AddStrategyRequest) (*api.StrategyResponse, error) {
	var out api.StrategyResponse
	if err := c.do(ctx, http.MethodPost, vaultPath(vault, "strategies"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveStrategy detaches a strategy. force writes off any remaining debt.
func (c *Client) RemoveStrategy(ctx context.Context, vault, strategy string, force bool) (*domain.Event, error) {
	path := strategyPath(vault, strategy)
	if force {
		path += "?force=true"
	}
	return c.event(ctx, http.MethodDelete, path, nil)
}

// UpdateDebt moves a strategy toward newDebt.
func (c *Client) UpdateDebt(ctx context.Context, vault, strategy string, newDebt uint64) (*domain.Event, error) {
	return c.event(ctx, http.MethodPost, strategyPath(vault, strategy, "debt"), api.DebtRequest{NewDebt: newDebt})
}

// ProcessReport books a strategy's gain or loss.
func (c *Client) ProcessReport(ctx context.Context, vault, strategy string) (*domain.Event, error) {
	return c.event(ctx, http.MethodPost, strategyPath(vault, strategy, "report"), nil)
}

// DirectDeposit deposits straight into a strategy.
func (c *Client) DirectDeposit(ctx context.Context, vault, strategy string, amount uint64) (*domain.Event, error) {
	return c.event(ctx, http.MethodPost, strategyPath(vault, strategy, "deposit"), api.AmountRequest{Amount: amount})
}

// UpdateMaxDebt sets a strategy's debt ceiling.
func (c *Client) UpdateMaxDebt(ctx context.Context, vault, strategy string, maxDebt uint64) (*domain.Event, error) {
	return c.event(ctx, http.MethodPut, strategyPath(vault, strategy, "max-debt"), api.AmountRequest{Amount: maxDebt})
}

// SetStrategyStatus activates or deactivates a strategy.
func (c *Client) SetStrategyStatus(ctx context.Context, vault, strategy string, active bool) (*domain.Event, error) {
	return c.event(ctx, http.MethodPut, strategyPath(vault, strategy, "status"), api.StatusRequest{Active: active})
}

// SimulatePnL moves a simulated strategy's holdings.
func (c *Client) SimulatePnL(ctx context.Context, vault, strategy string, gain, loss uint64) error {
	return c.do(ctx, http.MethodPost, strategyPath(vault, strategy, "pnl"), api.PnLRequest{Gain: gain, Loss: loss}, nil)
}

// Faucet funds owner with amount of mint.
func (c *Client) Faucet(ctx context.Context, owner, mint string, amount uint64) (string, error) {
	var out api.FaucetResponse
	if err := c.do(ctx, http.MethodPost, "/v1/sim/faucet", api.FaucetRequest{Owner: owner, Mint: mint, Amount: amount}, &out); err != nil {
		return "", err
	}
	return out.TokenAccount, nil
}

// Watch streams events to fn until ctx is done or the connection drops.
// An empty vault receives every vault's events.
func (c *Client) Watch(ctx context.Context, vault string, fn func(*domain.Event)) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return errors.Wrap(err, "parse base url")
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/v1/ws/events"
	if vault != "" {
		u.RawQuery = url.Values{"vault": {vault}}.Encode()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return errors.Wrap(err, "dial event stream")
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		var e domain.Event
		if err := conn.ReadJSON(&e); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return errors.Wrap(err, "read event")
		}
		fn(&e)
	}
}
