package cli

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mood-mirror-go/internal/cleanup"
	"mood-mirror-go/internal/db"
	"mood-mirror-go/internal/db/repository"
	"mood-mirror-go/internal/emotion"
	"mood-mirror-go/internal/events"
	"mood-mirror-go/internal/integrations/mqtt"
	"mood-mirror-go/internal/realtime"
	"mood-mirror-go/internal/server"
	"mood-mirror-go/internal/server/sse"
	"mood-mirror-go/internal/vision"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Startet die Echtzeitschleife headless mit HTTP-API und Historie",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		classifier, err := emotion.LoadClassifier(cfg.Model.WeightsPath, cfg.Model.MetadataPath)
		if err != nil {
			return err
		}
		defer classifier.Close()

		locator, err := vision.NewLocator(cfg.Detector)
		if err != nil {
			return err
		}
		defer locator.Close()

		conn, err := db.Open(cfg.DB)
		if err != nil {
			return err
		}
		repo := repository.New(conn)

		cleanupService := cleanup.NewService(repo, cfg.Cleanup.RetentionDays, 24*time.Hour)
		cleanupService.StartBackgroundCleanup()
		defer cleanupService.StopBackgroundCleanup()

		hub := sse.NewHub()
		go hub.Run()

		sinks := []events.Sink{repository.NewRecorder(repo), hub}
		if cfg.MQTT.Enabled {
			mqttClient := mqtt.NewClient(cfg.MQTT)
			if err := mqttClient.Start(); err != nil {
				log.Warnf("MQTT nicht verfügbar, fahre ohne fort: %v", err)
			} else {
				defer mqttClient.Stop()
				sinks = append(sinks, mqttClient)
			}
		}

		// Das Aufnahmegerät wird als letztes geöffnet, direkt bevor die
		// Schleife die Freigabe übernimmt; so bleibt es auf keinem
		// Fehlerpfad zurück
		source, err := realtime.OpenCamera(cfg.Capture.Device)
		if err != nil {
			return err
		}

		snapshots := realtime.NewSnapshotBuffer()
		loop := realtime.NewLoop(source, nil, locator, classifier, realtime.Options{
			Source:    cfg.Capture.Device,
			Snapshots: snapshots,
			Sinks:     sinks,
		})

		loopErr := make(chan error, 1)
		go func() {
			loopErr <- loop.Run(ctx)
		}()

		api := server.NewAPI(repo, hub, snapshots, classifier.Labels())
		srv := &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: api.Router(),
		}
		go func() {
			log.Infof("Starting HTTP server on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorf("HTTP server failed: %v", err)
				stop()
			}
		}()

		// Entweder beendet ein Signal den Kontext oder die Schleife endet
		// von selbst (z.B. Stromende des Aufnahmegeräts)
		var runErr error
		select {
		case runErr = <-loopErr:
			stop()
		case <-ctx.Done():
			runErr = <-loopErr
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("HTTP server shutdown failed: %v", err)
		}

		return runErr
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
