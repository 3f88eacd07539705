package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Unterstützte Detektor-Backends
const (
	DetectorHaar = "haar" // OpenCV Haar-Kaskade (Standard)
	DetectorPigo = "pigo" // Pure-Go Kaskadendetektor
)

// Config repräsentiert die Hauptkonfiguration der Anwendung
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	DB       DBConfig       `mapstructure:"db"`
	Capture  CaptureConfig  `mapstructure:"capture"`
	Detector DetectorConfig `mapstructure:"detector"`
	Model    ModelConfig    `mapstructure:"model"`
	Training TrainingConfig `mapstructure:"training"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`
}

// ServerConfig enthält Einstellungen für den HTTP-Server (serve-Modus)
type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port" validate:"gt=0,lte=65535"`
	DataDir string `mapstructure:"data_dir"`
}

// LogConfig enthält Log-Einstellungen
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DBConfig enthält Datenbankeinstellungen (SQLite)
type DBConfig struct {
	File string `mapstructure:"file"`
}

// CaptureConfig enthält Einstellungen für das Aufnahmegerät und die Anzeige
type CaptureConfig struct {
	Device      string `mapstructure:"device"`       // Geräteindex ("0") oder URI
	WindowTitle string `mapstructure:"window_title"` // Titel des Anzeigefensters
	StopKey     string `mapstructure:"stop_key"`     // Taste, die die Schleife beendet
}

// DetectorConfig enthält Einstellungen für die Gesichtslokalisierung
type DetectorConfig struct {
	Method        string  `mapstructure:"method" validate:"oneof=haar pigo"` // "haar" oder "pigo"
	CascadePath   string  `mapstructure:"cascade_path" validate:"required"`  // Pfad zum Kaskaden-Artefakt
	ScaleFactor   float64 `mapstructure:"scale_factor" validate:"gt=1"`      // Suchgranularität über Pyramidenstufen
	MinNeighbors  int     `mapstructure:"min_neighbors" validate:"gte=0"`    // Unterdrückung von Fehldetektionen
	MinSizeWidth  int     `mapstructure:"min_size_width" validate:"gt=0"`    // Minimale Gesichtsbreite in Pixeln
	MinSizeHeight int     `mapstructure:"min_size_height" validate:"gt=0"`   // Minimale Gesichtshöhe in Pixeln
}

// ModelConfig enthält die Pfade zu den persistierten Modellartefakten
type ModelConfig struct {
	WeightsPath  string `mapstructure:"weights_path" validate:"required"`  // Gewichte (gob-kodierte Tensoren)
	MetadataPath string `mapstructure:"metadata_path" validate:"required"` // Label-Tabelle und Eingabeform (JSON)
}

// TrainingConfig enthält Einstellungen für die Trainings-Pipeline
type TrainingConfig struct {
	TrainDir        string  `mapstructure:"train_dir"`
	TestDir         string  `mapstructure:"test_dir"`
	Epochs          int     `mapstructure:"epochs" validate:"gt=0"`
	BatchSize       int     `mapstructure:"batch_size" validate:"gt=0"`
	LearningRate    float64 `mapstructure:"learning_rate" validate:"gt=0"`
	Dropout         float64 `mapstructure:"dropout" validate:"gte=0,lt=1"`
	ValidationSplit float64 `mapstructure:"validation_split" validate:"gte=0,lt=1"`
	Seed            int64   `mapstructure:"seed"`
}

// MQTTConfig enthält die Konfiguration für den MQTT-Client
type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic"`
}

// CleanupConfig enthält Bereinigungseinstellungen für alte Detektionen
type CleanupConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
}

// Load lädt die Konfiguration aus Datei, Umgebungsvariablen und Standardwerten
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Standardwerte festlegen
	setDefaults(v)

	// Konfigurationsdatei laden, wenn vorhanden
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			log.Warnf("Config file %s does not exist, using defaults", configPath)
		} else {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			log.Infof("Config loaded from %s", configPath)
		}
	}

	// Umgebungsvariablen überlagern die Konfiguration
	v.AutomaticEnv()
	v.SetEnvPrefix("MOOD_MIRROR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Konfiguration in Struct umwandeln
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Struktur validieren, Konfigurationsfehler sind fatal
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Sicherstellen, dass erforderliche Verzeichnisse existieren
	if err := ensureDirectories(&cfg); err != nil {
		return nil, fmt.Errorf("failed to create required directories: %w", err)
	}

	return &cfg, nil
}

// setDefaults legt Standardwerte für die Konfiguration fest
func setDefaults(v *viper.Viper) {
	// Server-Standardwerte
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.data_dir", "data")

	// Log-Standardwerte
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	// DB-Standardwerte
	v.SetDefault("db.file", "data/mood-mirror.db")

	// Capture-Standardwerte
	v.SetDefault("capture.device", "0")
	v.SetDefault("capture.window_title", "Mood Mirror")
	v.SetDefault("capture.stop_key", "q")

	// Detektor-Standardwerte
	v.SetDefault("detector.method", DetectorHaar)
	v.SetDefault("detector.cascade_path", "models/haarcascade_frontalface_default.xml")
	v.SetDefault("detector.scale_factor", 1.1)
	v.SetDefault("detector.min_neighbors", 5)
	v.SetDefault("detector.min_size_width", 30)
	v.SetDefault("detector.min_size_height", 30)

	// Modell-Standardwerte
	v.SetDefault("model.weights_path", "models/emotion_weights.bin")
	v.SetDefault("model.metadata_path", "models/emotion_metadata.json")

	// Trainings-Standardwerte
	v.SetDefault("training.train_dir", "dataset/train")
	v.SetDefault("training.test_dir", "dataset/test")
	v.SetDefault("training.epochs", 3)
	v.SetDefault("training.batch_size", 64)
	v.SetDefault("training.learning_rate", 0.001)
	v.SetDefault("training.dropout", 0.5)
	v.SetDefault("training.validation_split", 0.2)
	v.SetDefault("training.seed", 1)

	// MQTT-Standardwerte
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.client_id", "mood-mirror-go")
	v.SetDefault("mqtt.topic", "mood-mirror/detections")

	// Cleanup-Standardwerte
	v.SetDefault("cleanup.retention_days", 30)
}

// ensureDirectories stellt sicher, dass alle erforderlichen Verzeichnisse existieren
func ensureDirectories(cfg *Config) error {
	if cfg.Server.DataDir != "" {
		if err := os.MkdirAll(cfg.Server.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	if cfg.Log.File != "" {
		logDir := filepath.Dir(cfg.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	if cfg.DB.File != "" {
		dbDir := filepath.Dir(cfg.DB.File)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	return nil
}

// StopKeyCode übersetzt die konfigurierte Stopp-Taste in ihren Tastencode
func (c CaptureConfig) StopKeyCode() int {
	if c.StopKey == "" {
		return 'q'
	}
	return int(c.StopKey[0])
}
