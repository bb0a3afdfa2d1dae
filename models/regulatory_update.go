package models

import (
	"time"
)

// Risikostufen einer RegulatoryUpdate.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Aktionstypen einer RegulatoryUpdate.
const (
	ActionMonitoring = "monitoring"
	ActionImmediate  = "immediate"
	ActionPlanned    = "planned"
)

// RegulatoryUpdate ist der kanonische Datensatz, den jede Quelle produziert.
// Zwei Updates mit gleichem Fingerprint gelten als dasselbe reale Ereignis,
// unabhängig von der Quelle.
type RegulatoryUpdate struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title string `json:"title" gorm:"type:text;not null"`

	// SHA-256-Hex von lowercase(trim(title)); Dedup-Schlüssel.
	Fingerprint string `json:"fingerprint" gorm:"size:64;uniqueIndex"`

	Description string `json:"description,omitempty" gorm:"type:text"`

	SourceID  string `json:"source_id" gorm:"index"`
	SourceURL string `json:"source_url,omitempty"`

	Region       string `json:"region,omitempty"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
	Category     string `json:"category" gorm:"index"`
	UpdateType   string `json:"update_type,omitempty"`
	DeviceType   string `json:"device_type,omitempty"`

	PublishedDate time.Time  `json:"published_date"`
	EffectiveDate *time.Time `json:"effective_date,omitempty"`

	Priority  int    `json:"priority"`
	RiskLevel string `json:"risk_level" gorm:"size:16"`

	ActionRequired bool   `json:"action_required"`
	ActionType     string `json:"action_type,omitempty" gorm:"size:16"`

	// Quellspezifische Strukturdaten, unverändert übernommen. Wird weder
	// für Dedup noch für Prioritäten genutzt, nur für die Anzeige.
	Metadata []byte `json:"metadata,omitempty" gorm:"type:jsonb"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (RegulatoryUpdate) TableName() string {
	return "regulatory_updates"
}
