package cli

import (
	"context"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mood-mirror-go/internal/emotion"
	"mood-mirror-go/internal/events"
	"mood-mirror-go/internal/integrations/mqtt"
	"mood-mirror-go/internal/realtime"
	"mood-mirror-go/internal/vision"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Startet die Echtzeitschleife mit Anzeigefenster",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Startfehler sind fatal: ohne Modell, Kaskade oder Gerät läuft nichts
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

		source, err := realtime.OpenCamera(cfg.Capture.Device)
		if err != nil {
			return err
		}

		var sinks []events.Sink
		if cfg.MQTT.Enabled {
			mqttClient := mqtt.NewClient(cfg.MQTT)
			if err := mqttClient.Start(); err != nil {
				log.Warnf("MQTT nicht verfügbar, fahre ohne fort: %v", err)
			} else {
				defer mqttClient.Stop()
				sinks = append(sinks, mqttClient)
			}
		}

		display := realtime.NewWindowDisplay(cfg.Capture.WindowTitle)
		loop := realtime.NewLoop(source, display, locator, classifier, realtime.Options{
			StopKey: cfg.Capture.StopKeyCode(),
			Source:  cfg.Capture.Device,
			Sinks:   sinks,
		})

		return loop.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
