package cli

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mood-mirror-go/config"
	"mood-mirror-go/internal/logger"
)

// Version is the application version.
const Version = "0.1.0"

var (
	cfgPath string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:     "moodmirror",
	Short:   "Emotionserkennung für Webcam-Streams",
	Long:    "moodmirror trainiert einen kleinen Faltungsklassifikator auf Gesichtsausdrücken und annotiert Gesichter in einem Live-Videostrom mit der erkannten Emotion.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		return logger.Init(cfg.Log)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "Pfad zur Konfigurationsdatei")
}

// Execute führt das Root-Kommando aus; Konfigurationsfehler sind fatal.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Kommando fehlgeschlagen: %v", err)
	}
}
