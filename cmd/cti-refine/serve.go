package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/swarmguard/cti-refine/core/otelinit"
	"github.com/swarmguard/cti-refine/core/resilience"
	"github.com/swarmguard/cti-refine/internal/api"
	"github.com/swarmguard/cti-refine/internal/bus"
	"github.com/swarmguard/cti-refine/internal/column"
	"github.com/swarmguard/cti-refine/internal/extract"
)

func newServeCmd() *cobra.Command {
	var (
		addr     string
		withNATS bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and, with --nats, the NATS extraction worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				cfg.HTTP.Addr = addr
			}
			return serve(cmd.Context(), withNATS)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	cmd.Flags().BoolVar(&withNATS, "nats", false, "also answer extraction requests on NATS")
	return cmd
}

func serve(parent context.Context, withNATS bool) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTrace := otelinit.InitTracer(ctx, appName, otelOptions())
	shutdownMetrics, metrics := otelinit.InitMetrics(ctx, appName, otelOptions())

	reg := extract.Default()
	proc := column.NewProcessor(reg, column.Options{Workers: cfg.Batch.Workers, ShardPow: cfg.Batch.ShardPow}, metrics)
	limiter := resilience.NewRateLimiter(cfg.HTTP.RateCapacity, cfg.HTTP.RateFill, cfg.HTTP.RateWindow, cfg.HTTP.RateMax)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.New(reg, proc, limiter, api.Options{MaxBodyBytes: cfg.HTTP.MaxBodyBytes}, metrics).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var worker *bus.Worker
	if withNATS {
		nc, err := bus.Connect(ctx, cfg.NATS.URL, cfg.NATS.ConnectAttempts, cfg.NATS.ConnectDelay)
		if err != nil {
			return err
		}
		defer nc.Close()
		worker = bus.NewWorker(nc, reg, cfg.NATS.Subject, cfg.NATS.Queue)
		if err := worker.Start(); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			errCh <- err
			cancel()
		}
	}()
	slog.Info("service started", "addr", cfg.HTTP.Addr, "nats", withNATS)
	<-ctx.Done()
	slog.Info("shutdown initiated")

	ctxSd, c2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer c2()
	_ = srv.Shutdown(ctxSd)
	if worker != nil {
		if err := worker.Stop(); err != nil {
			slog.Warn("bus drain failed", "error", err)
		}
	}
	otelinit.Flush(ctxSd, shutdownTrace)
	_ = shutdownMetrics(ctxSd)
	slog.Info("shutdown complete")

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

func otelOptions() otelinit.Options {
	return otelinit.Options{
		Enabled:     cfg.OTel.Enabled,
		Endpoint:    cfg.OTel.Endpoint,
		Environment: cfg.OTel.Environment,
		Attributes:  cfg.OTel.Attributes,
	}
}
