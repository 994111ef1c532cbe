package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/praevisio/vigilance/internal/common"
	"github.com/praevisio/vigilance/internal/config"
	"github.com/praevisio/vigilance/internal/factory"
	"github.com/praevisio/vigilance/internal/log"
	"github.com/praevisio/vigilance/internal/server"
	"github.com/praevisio/vigilance/internal/vigilance"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Serve the data endpoints and the eternal vigilance channel",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd, cmd.OutOrStdout())
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.Logger()

		err := common.TuneRuntime(logger)
		if err != nil {
			return err
		}

		ctx := common.SetupSignalHandler(cmd.Context(), logger)

		err = serve(ctx, *conf, logger)
		if err != nil {
			logger.Error(err, "Serve failed")

			return err
		}

		logger.V(2).Info("Serve stopped")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, conf config.Config, logger logr.Logger) error {
	if conf.Server.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	clock := clockwork.NewRealClock()

	registry, err := factory.CreateRegistry()
	if err != nil {
		return err
	}

	sources, err := factory.CreateSources(conf.Sources, factory.NewHTTPClient(conf.Sources.Timeout), registry, clock, logger.WithName("source"))
	if err != nil {
		return err
	}

	hub, err := vigilance.NewHub(vigilance.HubConfig{
		HistoryCapacity: conf.Vigilance.HistoryCapacity,
		RecentEvents:    conf.Vigilance.RecentEvents,
	}, clock, registry, logger.WithName("hub"))
	if err != nil {
		return fmt.Errorf("failed to create hub: %w", err)
	}

	store, closeStore, err := factory.CreateTokenStore(ctx, conf, clock)
	if err != nil {
		return fmt.Errorf("failed to create token store: %w", err)
	}
	defer closeStore()

	archiver, err := factory.CreateReportArchiver(ctx, conf.ReportArchive, logger.WithName("archive"))
	if err != nil {
		return fmt.Errorf("failed to create report archiver: %w", err)
	}

	emitter := vigilance.NewEmitter(hub, clock, vigilance.DefaultOrigin)
	watcher := vigilance.NewWatcher(sources.Aggregator, emitter, clock, conf.Vigilance.WatchInterval, logger.WithName("watcher"))

	router := server.NewRouter(conf.Server, conf.Vigilance, server.Services{
		Tokens:    vigilance.NewTokenService(store, clock, conf.Vigilance.TokenTTL),
		Hub:       hub,
		Emitter:   emitter,
		Reporter:  vigilance.NewReporter(hub, clock, archiver, logger.WithName("report")),
		Seismic:   sources.Seismic,
		Snapshots: sources.Aggregator,
	}, clock, logger.WithName("http"))

	httpServer := server.NewServer(conf.Server, router)
	metricsServer := factory.CreatePrometheusServer(conf.Metrics, registry)

	g, gctx := errgroup.WithContext(ctx)

	// Streams end once the hub stops, which lets the http server drain
	g.Go(func() error {
		hub.Run(gctx)

		return nil
	})

	g.Go(func() error {
		return watcher.Run(gctx)
	})

	if conf.Kafka.Enabled {
		runner, closeRunner, err := factory.CreateIngestionRunner(ctx, conf, emitter, registry, clock, logger.WithName("ingest"))
		if err != nil {
			return fmt.Errorf("failed to create ingestion: %w", err)
		}
		defer closeRunner()

		g.Go(func() error {
			return runner.Start(gctx)
		})
	}

	for name, srv := range map[string]*http.Server{"http": httpServer, "metrics": metricsServer} {
		g.Go(func() error {
			logger.V(0).Info("Listening", "server", name, "addr", srv.Addr)

			err := srv.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s server failed: %w", name, err)
			}

			return nil
		})

		g.Go(func() error {
			<-gctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), conf.GracefulDuration)
			defer cancel()

			err := srv.Shutdown(shutdownCtx)
			if err != nil {
				return fmt.Errorf("failed to shutdown %s server: %w", name, err)
			}

			return nil
		})
	}

	return g.Wait()
}
