package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/taskgraph/internal/config"
	"github.com/alfredjeanlab/taskgraph/internal/engine"
	"github.com/alfredjeanlab/taskgraph/internal/events"
	"github.com/alfredjeanlab/taskgraph/internal/logging"
	"github.com/alfredjeanlab/taskgraph/internal/server"
	"github.com/alfredjeanlab/taskgraph/internal/store/postgres"
	tgsync "github.com/alfredjeanlab/taskgraph/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:         "serve",
	Short:       "Start the taskgraph HTTP and gRPC server",
	GroupID:     "system",
	Annotations: map[string]string{offline: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)

		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				store.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (TASKGRAPH_NATS_URL not set)")
		}

		eng, err := newEngine(cfg.TuningFile, cfg.ReportCacheSize, logger)
		if err != nil {
			publisher.Close()
			store.Close()
			return err
		}

		tgServer := server.NewTaskGraphServer(store, eng, publisher, logger)
		grpcServer := server.NewGRPCServer(tgServer, cfg.AuthToken, logger)

		// Reactive recomputation: local mutations trigger the refresher
		// directly, and change events from other replicas arrive over NATS.
		refresher := engine.NewRefresher(eng, store, publisher, cfg.ProjectID, cfg.RecomputeDebounce, logger)
		tgServer.SetRefresher(refresher)

		bgCtx, bgCancel := context.WithCancel(context.Background())
		var (
			changes     <-chan []byte
			unsubscribe func()
			subscriber  *events.NATSSubscriber
		)
		if cfg.NATSURL != "" {
			subscriber, err = events.NewNATSSubscriber(cfg.NATSURL)
			if err != nil {
				logger.Error("failed to create change subscriber", "err", err)
			} else if changes, unsubscribe, err = events.Merge(subscriber, events.ChangeTopics...); err != nil {
				logger.Error("failed to subscribe to change topics", "err", err)
				changes = nil
			}
		}
		refresherDone := make(chan struct{})
		go func() {
			defer close(refresherDone)
			refresher.Run(bgCtx, changes)
		}()
		refresher.Trigger()

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			bgCancel()
			publisher.Close()
			store.Close()
			return err
		}
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           tgServer.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		scheduler := startSync(cfg, store, eng, logger)

		logger.Info("taskgraph server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
			"project", cfg.ProjectID,
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		bgCancel()
		<-refresherDone
		if unsubscribe != nil {
			unsubscribe()
		}
		if subscriber != nil {
			subscriber.Close()
		}

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := store.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

// startSync starts the export scheduler when an interval and at least one
// destination are configured. It returns nil otherwise.
func startSync(cfg *config.Config, source tgsync.Snapshotter, eng *engine.Engine, logger *slog.Logger) *tgsync.Scheduler {
	sc := cfg.Sync
	if !sc.Enabled() {
		return nil
	}

	var dests []tgsync.Destination
	if sc.S3Bucket != "" {
		s3Dest, err := tgsync.NewS3Destination(context.Background(), tgsync.S3Options{
			Bucket:   sc.S3Bucket,
			Key:      sc.S3Key,
			Region:   sc.S3Region,
			Endpoint: sc.S3Endpoint,
		})
		if err != nil {
			logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("sync S3 destination enabled", "bucket", sc.S3Bucket, "key", sc.S3Key)
		}
	}
	if sc.GitRepo != "" {
		dests = append(dests, tgsync.NewGitDestination(sc.GitRepo, sc.GitFile, sc.GitBranch))
		logger.Info("sync git destination enabled", "repo", sc.GitRepo, "file", sc.GitFile)
	}
	if len(dests) == 0 {
		return nil
	}

	scheduler := tgsync.NewScheduler(source, eng, cfg.ProjectID, dests, sc.Interval, logger)
	scheduler.Start()
	logger.Info("sync scheduler started", "interval", sc.Interval, "destinations", len(dests))
	return scheduler
}
