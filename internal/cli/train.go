package cli

import (
	"context"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mood-mirror-go/internal/emotion"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Trainiert den Emotionsklassifikator auf einem Verzeichnisbaum",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		trainer := emotion.NewTrainer(cfg.Training, cfg.Model)
		report, err := trainer.Run(ctx)
		if err != nil {
			return err
		}

		log.Infof("Training abgeschlossen: %d Epochen, Klassen: %v",
			len(report.Epochs), report.Classes)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)
}
