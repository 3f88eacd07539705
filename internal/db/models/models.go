package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Detection repräsentiert ein klassifiziertes Gesicht aus der
// Echtzeitschleife. Detektionen haben keine Identität über Frames hinweg.
type Detection struct {
	gorm.Model
	Timestamp   time.Time      `gorm:"index"`          // Zeitpunkt der Klassifikation
	Source      string         `gorm:"index"`          // Quelle (z.B. Kameraname)
	Label       string         `gorm:"index;not null"` // Vorhergesagte Emotion
	Confidence  float64        // Softmax-Wert der vorhergesagten Klasse
	BoundingBox datatypes.JSON `gorm:"type:json"` // {x, y, width, height}
	Scores      datatypes.JSON `gorm:"type:json"` // Verteilung über alle Klassen
}

// LabelCount ist ein Aggregat für die Statistik.
type LabelCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// Statistics fasst die gespeicherten Detektionen zusammen.
type Statistics struct {
	TotalDetections int64        `json:"total_detections"`
	AvgConfidence   float64      `json:"avg_confidence"`
	ByLabel         []LabelCount `json:"by_label"`
	LatestDetection time.Time    `json:"latest_detection"`
}
