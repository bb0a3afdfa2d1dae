package models

import (
	"time"
)

// IngestionRun protokolliert einen kompletten Orchestrator-Durchlauf.
type IngestionRun struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`

	SuccessSources int `json:"success_sources"`
	ErrorSources   int `json:"error_sources"`
	TotalInserted  int `json:"total_inserted"`
	TotalSkipped   int `json:"total_skipped"`

	Results []SourceResult `json:"results" gorm:"foreignKey:IngestionRunID"`
}

// SourceResult ist das Ergebnis einer einzelnen Quelle innerhalb eines Runs.
type SourceResult struct {
	ID             uint `json:"id" gorm:"primaryKey"`
	IngestionRunID uint `json:"ingestion_run_id" gorm:"index"`

	Source   string `json:"source"`
	Inserted int    `json:"inserted"`
	Skipped  int    `json:"skipped"`
	Errors   int    `json:"errors"`

	// Leer bei Erfolg, sonst die Fehlermeldung der Quelle.
	Message string `json:"message,omitempty" gorm:"type:text"`

	DurationMS int64 `json:"duration_ms"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (IngestionRun) TableName() string {
	return "ingestion_runs"
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (SourceResult) TableName() string {
	return "ingestion_source_results"
}
