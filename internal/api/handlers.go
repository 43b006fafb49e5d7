package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"solana-vault-ledger/internal/domain"
	"solana-vault-ledger/internal/vault"
)

func actor(c *gin.Context) (string, bool) {
	a := c.GetHeader(ActorHeader)
	if a == "" {
		badRequest(c, "missing "+ActorHeader+" header")
		return "", false
	}
	return a, true
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func queryUint(c *gin.Context, name string) (uint64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name+": "+raw)
		return 0, false
	}
	return n, true
}

func queryInt(c *gin.Context, name string) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name+": "+raw)
		return 0, false
	}
	return n, true
}

// respond writes the committed event of a mutation.
func (s *Server) respond(c *gin.Context, e *domain.Event, err error) {
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (s *Server) handleListVaults(c *gin.Context) {
	vaults, err := s.svc.ListVaults(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]VaultResponse, 0, len(vaults))
	for _, v := range vaults {
		out = append(out, vaultResponse(v))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleInitVault(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	var req InitVaultRequest
	if !bind(c, &req) {
		return
	}
	v, err := s.svc.InitVault(c.Request.Context(), who, vault.InitVaultParams{
		UnderlyingMint:       req.UnderlyingMint,
		UnderlyingDecimals:   req.UnderlyingDecimals,
		Index:                req.Index,
		Accountant:           req.Accountant,
		DepositLimit:         req.DepositLimit,
		MinUserDeposit:       req.MinUserDeposit,
		MinimumTotalIdle:     req.MinimumTotalIdle,
		KYCVerifiedOnly:      req.KYCVerifiedOnly,
		WhitelistedOnly:      req.WhitelistedOnly,
		DirectDepositEnabled: req.DirectDepositEnabled,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, vaultResponse(v))
}

func (s *Server) handleGetVault(c *gin.Context) {
	v, err := s.svc.GetVault(c.Request.Context(), c.Param("vault"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, vaultResponse(v))
}

func (s *Server) handleClose(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	e, err := s.svc.Close(c.Request.Context(), who, c.Param("vault"))
	s.respond(c, e, err)
}

func (s *Server) handleShutdown(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	e, err := s.svc.Shutdown(c.Request.Context(), who, c.Param("vault"))
	s.respond(c, e, err)
}

func (s *Server) handleDeposit(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	var req AmountRequest
	if !bind(c, &req) {
		return
	}
	e, err := s.svc.Deposit(c.Request.Context(), c.Param("vault"), who, req.Amount)
	s.respond(c, e, err)
}

func (s *Server) withdrawParams(c *gin.Context) (vault.WithdrawParams, bool) {
	who, ok := actor(c)
	if !ok {
		return vault.WithdrawParams{}, false
	}
	var req WithdrawRequest
	if !bind(c, &req) {
		return vault.WithdrawParams{}, false
	}
	return vault.WithdrawParams{
		Vault:      c.Param("vault"),
		User:       who,
		Assets:     req.Assets,
		Shares:     req.Shares,
		MaxLossBps: req.MaxLossBps,
		Strategies: req.Strategies,
	}, true
}

func (s *Server) handleWithdraw(c *gin.Context) {
	p, ok := s.withdrawParams(c)
	if !ok {
		return
	}
	e, err := s.svc.Withdraw(c.Request.Context(), p)
	s.respond(c, e, err)
}

func (s *Server) handleRedeem(c *gin.Context) {
	p, ok := s.withdrawParams(c)
	if !ok {
		return
	}
	e, err := s.svc.Redeem(c.Request.Context(), p)
	s.respond(c, e, err)
}

// setter handles the vault-level PUT endpoints that take a single amount.
func (s *Server) setter(c *gin.Context, fn func(actor, vaultKey string, amount uint64) (*domain.Event, error)) {
	who, ok := actor(c)
	if !ok {
		return
	}
	var req AmountRequest
	if !bind(c, &req) {
		return
	}
	e, err := fn(who, c.Param("vault"), req.Amount)
	s.respond(c, e, err)
}

func (s *Server) handleSetDepositLimit(c *gin.Context) {
	s.setter(c, func(who, key string, n uint64) (*domain.Event, error) {
		return s.svc.SetDepositLimit(c.Request.Context(), who, key, n)
	})
}

func (s *Server) handleSetMinTotalIdle(c *gin.Context) {
	s.setter(c, func(who, key string, n uint64) (*domain.Event, error) {
		return s.svc.SetMinTotalIdle(c.Request.Context(), who, key, n)
	})
}

func (s *Server) handleSetMinUserDeposit(c *gin.Context) {
	s.setter(c, func(who, key string, n uint64) (*domain.Event, error) {
		return s.svc.SetMinUserDeposit(c.Request.Context(), who, key, n)
	})
}

func (s *Server) handleSetWhitelist(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	var req WhitelistRequest
	if !bind(c, &req) {
		return
	}
	e, err := s.svc.SetWhitelist(c.Request.Context(), who, c.Param("vault"), c.Param("owner"), req.Whitelisted)
	s.respond(c, e, err)
}

func (s *Server) handleGetPosition(c *gin.Context) {
	p, err := s.svc.GetPosition(c.Request.Context(), c.Param("vault"), c.Param("owner"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, positionResponse(p))
}

func (s *Server) handlePreview(c *gin.Context) {
	assets, ok := queryUint(c, "assets")
	if !ok {
		return
	}
	shares, ok := queryUint(c, "shares")
	if !ok {
		return
	}
	q, err := s.svc.Preview(c.Request.Context(), c.Param("vault"), assets, shares)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, QuoteResponse(*q))
}

func (s *Server) handleEvents(c *gin.Context) {
	start, ok := queryInt(c, "start")
	if !ok {
		return
	}
	end, ok := queryInt(c, "end")
	if !ok {
		return
	}
	events, err := s.svc.Events(c.Request.Context(), c.Param("vault"), start, end)
	if err != nil {
		s.fail(c, err)
		return
	}
	if events == nil {
		events = []*domain.Event{}
	}
	c.JSON(http.StatusOK, events)
}

func (s *Server) handleFlows(c *gin.Context) {
	flows, err := s.svc.Flows(c.Request.Context(), c.Param("vault"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if flows == nil {
		flows = []domain.DailyFlow{}
	}
	c.JSON(http.StatusOK, flows)
}

func (s *Server) handleListStrategies(c *gin.Context) {
	recs, err := s.svc.ListStrategies(c.Request.Context(), c.Param("vault"))
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]StrategyResponse, 0, len(recs))
	for _, r := range recs {
		out = append(out, strategyResponse(r))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleAddStrategy(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	var req AddStrategyRequest
	if !bind(c, &req) {
		return
	}
	rec, err := s.svc.AddStrategy(c.Request.Context(), who, c.Param("vault"), vault.AddStrategyParams{
		Config:  req.Config,
		MaxDebt: req.MaxDebt,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, strategyResponse(rec))
}

func (s *Server) handleRemoveStrategy(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	force, _ := strconv.ParseBool(c.Query("force"))
	e, err := s.svc.RemoveStrategy(c.Request.Context(), who, c.Param("vault"), c.Param("strategy"), force)
	s.respond(c, e, err)
}

func (s *Server) handleUpdateDebt(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	var req DebtRequest
	if !bind(c, &req) {
		return
	}
	e, err := s.svc.UpdateDebt(c.Request.Context(), who, c.Param("vault"), c.Param("strategy"), req.NewDebt)
	s.respond(c, e, err)
}

func (s *Server) handleProcessReport(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	e, err := s.svc.ProcessReport(c.Request.Context(), who, c.Param("vault"), c.Param("strategy"))
	s.respond(c, e, err)
}

func (s *Server) handleDirectDeposit(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	var req AmountRequest
	if !bind(c, &req) {
		return
	}
	e, err := s.svc.DirectDeposit(c.Request.Context(), c.Param("vault"), c.Param("strategy"), who, req.Amount)
	s.respond(c, e, err)
}

func (s *Server) handleUpdateMaxDebt(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	var req AmountRequest
	if !bind(c, &req) {
		return
	}
	e, err := s.svc.UpdateMaxDebt(c.Request.Context(), who, c.Param("vault"), c.Param("strategy"), req.Amount)
	s.respond(c, e, err)
}

func (s *Server) handleSetStrategyStatus(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	var req StatusRequest
	if !bind(c, &req) {
		return
	}
	e, err := s.svc.SetStrategyStatus(c.Request.Context(), who, c.Param("vault"), c.Param("strategy"), req.Active)
	s.respond(c, e, err)
}

func (s *Server) handleSimulatePnL(c *gin.Context) {
	var req PnLRequest
	if !bind(c, &req) {
		return
	}
	if err := s.svc.SimulatePnL(c.Request.Context(), c.Param("vault"), c.Param("strategy"), req.Gain, req.Loss); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleFaucet(c *gin.Context) {
	var req FaucetRequest
	if !bind(c, &req) {
		return
	}
	acct, err := s.svc.Faucet(c.Request.Context(), req.Owner, req.Mint, req.Amount)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, FaucetResponse{TokenAccount: acct})
}
