// Package store kapselt die GORM-Zugriffe auf regulatory_updates und die
// Ingestion-Laufprotokolle. Der Unique-Index auf fingerprint ist die letzte
// Instanz gegen Duplikate; alles darüber ist nur Vorfilterung.
package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"regintel/models"
)

// Store bündelt alle Datenbankzugriffe.
type Store struct {
	DB *gorm.DB
}

// New erstellt einen Store.
func New(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// CreateIgnoreDuplicate legt ein Update an. Kollidiert der Fingerprint mit
// einer bestehenden Zeile, passiert nichts und inserted ist false. Damit ist
// auch der Fall abgedeckt, dass zwei Läufe gleichzeitig denselben Titel sehen.
func (s *Store) CreateIgnoreDuplicate(ctx context.Context, update *models.RegulatoryUpdate) (bool, error) {
	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "fingerprint"}},
			DoNothing: true,
		}).
		Create(update)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FindByFingerprint sucht ein Update per Fingerprint. Gibt (nil, nil) zurück,
// wenn nichts existiert.
func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string) (*models.RegulatoryUpdate, error) {
	var update models.RegulatoryUpdate
	err := s.DB.WithContext(ctx).Where("fingerprint = ?", fingerprint).First(&update).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &update, nil
}

// List liefert Updates absteigend nach Veröffentlichungsdatum, optional
// gefiltert nach Quelle und Kategorie.
func (s *Store) List(ctx context.Context, sourceID, category string, limit, offset int) ([]models.RegulatoryUpdate, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := s.DB.WithContext(ctx).Model(&models.RegulatoryUpdate{})
	if sourceID != "" {
		q = q.Where("source_id = ?", sourceID)
	}
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var updates []models.RegulatoryUpdate
	err := q.Order("published_date DESC").Limit(limit).Offset(offset).Find(&updates).Error
	return updates, err
}

// CountAll zählt alle gespeicherten Updates.
func (s *Store) CountAll(ctx context.Context) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.RegulatoryUpdate{}).Count(&n).Error
	return n, err
}

// CountBySource zählt Updates gruppiert nach Quelle.
func (s *Store) CountBySource(ctx context.Context) (map[string]int64, error) {
	type row struct {
		SourceID string
		N        int64
	}
	var rows []row
	err := s.DB.WithContext(ctx).Model(&models.RegulatoryUpdate{}).
		Select("source_id, count(*) as n").
		Group("source_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.SourceID] = r.N
	}
	return counts, nil
}

// LatestByPriority liefert die aktuellsten Updates mit Mindest-Priorität.
func (s *Store) LatestByPriority(ctx context.Context, minPriority, limit int) ([]models.RegulatoryUpdate, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var updates []models.RegulatoryUpdate
	err := s.DB.WithContext(ctx).
		Where("priority >= ?", minPriority).
		Order("published_date DESC").
		Limit(limit).
		Find(&updates).Error
	return updates, err
}

// MissingFingerprints liefert alle Zeilen ohne Fingerprint. Kommt nur vor,
// wenn Daten an der Anwendung vorbei importiert wurden.
func (s *Store) MissingFingerprints(ctx context.Context) ([]models.RegulatoryUpdate, error) {
	var updates []models.RegulatoryUpdate
	err := s.DB.WithContext(ctx).
		Where("fingerprint IS NULL OR fingerprint = ''").
		Find(&updates).Error
	return updates, err
}

// SaveFingerprint schreibt nur das Fingerprint-Feld einer Zeile.
func (s *Store) SaveFingerprint(ctx context.Context, id uint, fingerprint string) error {
	return s.DB.WithContext(ctx).Model(&models.RegulatoryUpdate{}).
		Where("id = ?", id).
		Update("fingerprint", fingerprint).Error
}

// DuplicateGroups liefert alle Fingerprints, die mehrfach vorkommen, samt
// ihren Zeilen, sortiert nach created_at aufsteigend (älteste zuerst).
func (s *Store) DuplicateGroups(ctx context.Context) (map[string][]models.RegulatoryUpdate, error) {
	var fingerprints []string
	err := s.DB.WithContext(ctx).Model(&models.RegulatoryUpdate{}).
		Select("fingerprint").
		Where("fingerprint IS NOT NULL AND fingerprint != ''").
		Group("fingerprint").
		Having("count(*) > 1").
		Pluck("fingerprint", &fingerprints).Error
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]models.RegulatoryUpdate, len(fingerprints))
	for _, fp := range fingerprints {
		var rows []models.RegulatoryUpdate
		err := s.DB.WithContext(ctx).
			Where("fingerprint = ?", fp).
			Order("created_at ASC, id ASC").
			Find(&rows).Error
		if err != nil {
			return nil, err
		}
		groups[fp] = rows
	}
	return groups, nil
}

// DeleteByIDs löscht Updates per Primärschlüssel.
func (s *Store) DeleteByIDs(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).Delete(&models.RegulatoryUpdate{}, ids).Error
}

// CreateIngestionRun persistiert ein Laufprotokoll samt Quellen-Ergebnissen.
func (s *Store) CreateIngestionRun(ctx context.Context, run *models.IngestionRun) error {
	return s.DB.WithContext(ctx).Create(run).Error
}

// RecentRuns liefert die letzten Ingestion-Läufe inkl. Quellen-Ergebnissen.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]models.IngestionRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var runs []models.IngestionRun
	err := s.DB.WithContext(ctx).
		Preload("Results").
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

// UpdatedSince zählt Updates, deren Veröffentlichungsdatum nach t liegt.
func (s *Store) UpdatedSince(ctx context.Context, t time.Time) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.RegulatoryUpdate{}).
		Where("published_date > ?", t).
		Count(&n).Error
	return n, err
}
