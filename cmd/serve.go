package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/facesync/internal/config"
	"github.com/kozaktomas/facesync/internal/logging"
	"github.com/kozaktomas/facesync/internal/metrics"
	"github.com/kozaktomas/facesync/internal/mqtt"
	"github.com/kozaktomas/facesync/internal/syncer"
	"github.com/kozaktomas/facesync/internal/web"
)

const (
	shutdownTimeout = 30 * time.Second
	// runDrainTimeout is how long shutdown waits for an in-flight sync run.
	runDrainTimeout = 2 * time.Minute
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and optional periodic sync",
	Long: `Start the facesync HTTP API.
The API triggers sync runs, reports their status and streams their events,
lists Immich people and suggests the best faces of a person. With
SYNC_INTERVAL set a full sync is also started periodically. Run events are
published to MQTT when MQTT_HOST is set and exported on /metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (env WEB_PORT, default 8080)")
	serveCmd.Flags().String("host", "", "Host to bind to (env WEB_HOST, default 0.0.0.0)")
	serveCmd.Flags().Duration("interval", 0, "Periodic sync interval, 0 disables (env SYNC_INTERVAL)")
}

// applyServeFlags lets explicitly set flags override the environment.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("port") {
		cfg.Web.Port = mustGetInt(cmd, "port")
	}
	if cmd.Flags().Changed("host") {
		cfg.Web.Host = mustGetString(cmd, "host")
	}
	if cmd.Flags().Changed("interval") {
		interval, err := cmd.Flags().GetDuration("interval")
		if err != nil {
			panic(fmt.Sprintf("flag error for --interval: %v", err))
		}
		cfg.Sync.Interval = interval
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	applyServeFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	sinks := []syncer.Sink{m.Sync}

	var publisher *mqtt.Publisher
	if cfg.MQTT.Enabled() {
		publisher, err = mqtt.Connect(ctx, cfg.MQTT, logging.Component("mqtt"))
		if err != nil {
			log.Warn().Err(err).Msg("MQTT disabled")
		} else {
			sinks = append(sinks, publisher)
		}
	}
	defer publisher.Close()

	svc, err := newSyncServices(cfg, sinks...)
	if err != nil {
		return err
	}
	if err := m.WatchSyncedFaces(svc.store.Count); err != nil {
		return err
	}

	detector := newDetector(cfg)
	deps := web.Deps{
		Syncer:  svc.syncer,
		People:  svc.catalog,
		Curator: newCurationService(cfg, svc.catalog, detector),
		Metrics: m.Handler(),
		Logger:  logging.Component("web"),
	}
	if detector != nil {
		deps.Embedding = detector
	}
	server := web.NewServer(cfg, deps)

	go svc.syncer.RunEvery(ctx, cfg.Sync.Interval)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log.Info().
		Str("addr", server.Addr()).
		Str("trainer", svc.trainer.Name()).
		Str("state_file", svc.store.Path()).
		Int("synced_faces", svc.store.Count()).
		Bool("curation", detector != nil).
		Msg("facesync ready")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}

	// A run cannot be cancelled; give it its own window to finish.
	done := make(chan struct{})
	go func() {
		svc.syncer.Wait()
		close(done)
	}()
	drain := time.NewTimer(runDrainTimeout)
	defer drain.Stop()
	select {
	case <-done:
	case <-drain.C:
		log.Warn().Msg("sync run still in progress at shutdown, state is saved per face")
	}
	return nil
}
