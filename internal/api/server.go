// Package api exposes the vault service over HTTP and streams committed
// ledger events over a websocket.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"solana-vault-ledger/internal/observability"
	"solana-vault-ledger/internal/vault"
)

// ActorHeader carries the account a request acts as. It is not
// authenticated here; the server expects a proxy in front of it to
// authenticate callers and set the header.
const ActorHeader = "X-Account"

// Options configure the server.
type Options struct {
	// Simulation enables the faucet and strategy pnl endpoints.
	Simulation bool
}

// Server routes HTTP requests to the vault service.
type Server struct {
	svc  *vault.Service
	hub  *Hub
	log  *logrus.Entry
	opts Options
}

// New creates a Server. hub may be nil, which disables the event stream.
func New(svc *vault.Service, hub *Hub, logger *logrus.Entry, opts Options) *Server {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{svc: svc, hub: hub, log: logger.WithField("component", "api"), opts: opts}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), s.accessLog())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(observability.Handler()))

	v1 := r.Group("/v1")
	if s.hub != nil {
		v1.GET("/ws/events", s.hub.Handler())
	}

	vaults := v1.Group("/vaults")
	vaults.GET("", s.handleListVaults)
	vaults.POST("", s.handleInitVault)

	v := vaults.Group("/:vault")
	v.GET("", s.handleGetVault)
	v.DELETE("", s.handleClose)
	v.POST("/shutdown", s.handleShutdown)
	v.POST("/deposit", s.handleDeposit)
	v.POST("/withdraw", s.handleWithdraw)
	v.POST("/redeem", s.handleRedeem)
	v.PUT("/deposit-limit", s.handleSetDepositLimit)
	v.PUT("/min-total-idle", s.handleSetMinTotalIdle)
	v.PUT("/min-user-deposit", s.handleSetMinUserDeposit)
	v.PUT("/whitelist/:owner", s.handleSetWhitelist)
	v.GET("/positions/:owner", s.handleGetPosition)
	v.GET("/preview", s.handlePreview)
	v.GET("/events", s.handleEvents)
	v.GET("/flows", s.handleFlows)

	st := v.Group("/strategies")
	st.GET("", s.handleListStrategies)
	st.POST("", s.handleAddStrategy)
	st.DELETE("/:strategy", s.handleRemoveStrategy)
	st.POST("/:strategy/debt", s.handleUpdateDebt)
	st.POST("/:strategy/report", s.handleProcessReport)
	st.POST("/:strategy/deposit", s.handleDirectDeposit)
	st.PUT("/:strategy/max-debt", s.handleUpdateMaxDebt)
	st.PUT("/:strategy/status", s.handleSetStrategyStatus)

	if s.opts.Simulation {
		v1.POST("/sim/faucet", s.handleFaucet)
		st.POST("/:strategy/pnl", s.handleSimulatePnL)
	}

	return r
}
