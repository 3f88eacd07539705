package repository

import (
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"mood-mirror-go/internal/db/models"
	"mood-mirror-go/internal/events"
)

// Repository kapselt die Datenbankzugriffe für Detektionen.
type Repository struct {
	db *gorm.DB
}

// New erstellt ein Repository auf einer geöffneten Verbindung.
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Record speichert ein Detektions-Event als Datenbankeintrag.
func (r *Repository) Record(ev events.DetectionEvent) error {
	boxJSON, err := json.Marshal(ev.Box)
	if err != nil {
		return fmt.Errorf("konnte bounding box nicht serialisieren: %w", err)
	}
	scoresJSON, err := json.Marshal(ev.Scores)
	if err != nil {
		return fmt.Errorf("konnte scores nicht serialisieren: %w", err)
	}

	detection := models.Detection{
		Timestamp:   ev.Timestamp,
		Source:      ev.Source,
		Label:       ev.Label,
		Confidence:  ev.Confidence,
		BoundingBox: datatypes.JSON(boxJSON),
		Scores:      datatypes.JSON(scoresJSON),
	}
	if err := r.db.Create(&detection).Error; err != nil {
		return fmt.Errorf("konnte detektion nicht speichern: %w", err)
	}
	return nil
}

// Recent liefert die neuesten Detektionen, absteigend nach Zeitstempel.
func (r *Repository) Recent(limit int) ([]models.Detection, error) {
	if limit <= 0 {
		limit = 50
	}
	var detections []models.Detection
	if err := r.db.Order("timestamp DESC").Limit(limit).Find(&detections).Error; err != nil {
		return nil, fmt.Errorf("konnte detektionen nicht laden: %w", err)
	}
	return detections, nil
}

// Stats aggregiert die gespeicherten Detektionen.
func (r *Repository) Stats() (*models.Statistics, error) {
	stats := &models.Statistics{}

	if err := r.db.Model(&models.Detection{}).Count(&stats.TotalDetections).Error; err != nil {
		return nil, fmt.Errorf("konnte detektionen nicht zählen: %w", err)
	}

	if stats.TotalDetections > 0 {
		row := r.db.Model(&models.Detection{}).Select("AVG(confidence)").Row()
		if err := row.Scan(&stats.AvgConfidence); err != nil {
			return nil, fmt.Errorf("konnte durchschnittskonfidenz nicht berechnen: %w", err)
		}

		if err := r.db.Model(&models.Detection{}).
			Select("label, COUNT(*) as count").
			Group("label").
			Order("count DESC").
			Scan(&stats.ByLabel).Error; err != nil {
			return nil, fmt.Errorf("konnte label-verteilung nicht berechnen: %w", err)
		}

		var latest models.Detection
		if err := r.db.Order("timestamp DESC").First(&latest).Error; err == nil {
			stats.LatestDetection = latest.Timestamp
		}
	}

	return stats, nil
}

// DeleteOlderThan entfernt Detektionen vor dem Stichtag und gibt die
// Anzahl der gelöschten Einträge zurück.
func (r *Repository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := r.db.Unscoped().Where("timestamp < ?", cutoff).Delete(&models.Detection{})
	if result.Error != nil {
		return 0, fmt.Errorf("konnte alte detektionen nicht löschen: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Recorder ist die Sink-Anbindung des Repositories an die Echtzeitschleife.
type Recorder struct {
	repo *Repository
}

// NewRecorder erstellt einen Recorder für das Repository.
func NewRecorder(repo *Repository) *Recorder {
	return &Recorder{repo: repo}
}

// Publish speichert das Event; Fehler werden geloggt und stoppen die
// Schleife nicht.
func (rec *Recorder) Publish(ev events.DetectionEvent) {
	if err := rec.repo.Record(ev); err != nil {
		log.Errorf("Konnte Detektion nicht persistieren: %v", err)
	}
}
