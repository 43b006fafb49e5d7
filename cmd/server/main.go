// Package main runs the vault ledger HTTP server.
//
// The server wires the configured ledger and event stores, the role
// registry, fee accountants and strategy adapters into one vault service
// and exposes it over HTTP with a websocket event stream.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"solana-vault-ledger/internal/accountant"
	"solana-vault-ledger/internal/address"
	"solana-vault-ledger/internal/api"
	"solana-vault-ledger/internal/config"
	"solana-vault-ledger/internal/logging"
	"solana-vault-ledger/internal/roles"
	"solana-vault-ledger/internal/strategy"
	"solana-vault-ledger/internal/token"
	"solana-vault-ledger/internal/vault"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var simulation bool

	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Run the vault ledger HTTP server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("simulation") {
				cfg.Server.Simulation = simulation
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	cmd.Flags().BoolVar(&simulation, "simulation", false, "Enable faucet and pnl simulation endpoints")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.Init(logging.Config(cfg.Log))
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	log := logging.Component(logger, "server")

	st, err := openStores(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}
	defer st.Close()

	svc, hub, err := buildService(cfg, st, log)
	if err != nil {
		return err
	}
	defer hub.Close()

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.New(svc, hub, log, api.Options{Simulation: cfg.Server.Simulation}).Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(logrus.Fields{
			"addr":       cfg.Server.Addr,
			"ledger":     cfg.Storage.Ledger,
			"events":     cfg.Storage.Events,
			"simulation": cfg.Server.Simulation,
		}).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		// Hijacked websocket connections are not tracked by Shutdown.
		hub.Close()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("shutdown complete")
	return nil
}

func buildService(cfg *config.Config, st *stores, log *logrus.Entry) (*vault.Service, *api.Hub, error) {
	program, err := address.Parse(cfg.Ledger.ProgramID)
	if err != nil {
		return nil, nil, fmt.Errorf("ledger.program_id: %w", err)
	}

	reg := roles.NewRegistry()
	for account, granted := range cfg.Grants() {
		for _, r := range granted {
			reg.Grant(account, r)
		}
	}

	accountants := accountant.NewRegistry()
	for _, ac := range cfg.Accountants {
		g, err := accountant.NewGeneric(ac.Key, ac.Recipient, ac.EntryFeeBps, ac.PerformanceFeeBps)
		if err != nil {
			return nil, nil, fmt.Errorf("accountant %s: %w", ac.Key, err)
		}
		accountants.Register(ac.Key, g)
	}

	bank := token.NewBank()
	hub := api.NewHub(log)
	svc := vault.New(st.ledger, bank, reg, accountants, strategy.NewSet(strategy.Deps{Custody: bank}), vault.Options{
		ProgramID:     program,
		MaxStrategies: cfg.Ledger.MaxStrategies,
		Events:        st.events,
		Publisher:     hub,
		Logger:        log.WithField("component", "vault"),
	})
	return svc, hub, nil
}
