package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"go.uber.org/zap"

	"regintel/models"
	"regintel/store"
)

// Fingerprint berechnet den Dedup-Schlüssel eines Updates: SHA-256-Hex über
// den kleingeschriebenen, getrimmten Titel. Quelle und Metadaten fließen
// bewusst nicht ein, damit dieselbe Meldung aus zwei Quellen kollidiert.
func Fingerprint(title string) string {
	normalized := strings.ToLower(strings.TrimSpace(title))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// DedupService prüft neue Updates gegen den Bestand und räumt Altlasten auf.
type DedupService struct {
	Store  *store.Store
	Logger *zap.Logger
}

// NewDedupService erstellt einen DedupService.
func NewDedupService(st *store.Store, logger *zap.Logger) *DedupService {
	return &DedupService{Store: st, Logger: logger}
}

// Prepare setzt den Fingerprint eines Updates und meldet, ob der Titel schon
// im Bestand ist. Die Vorprüfung spart Insert-Versuche; verlässlich dedupliziert
// wird erst der Unique-Index beim Insert.
func (d *DedupService) Prepare(ctx context.Context, update *models.RegulatoryUpdate) (exists bool, err error) {
	update.Fingerprint = Fingerprint(update.Title)
	existing, err := d.Store.FindByFingerprint(ctx, update.Fingerprint)
	if err != nil {
		return false, err
	}
	return existing != nil, nil
}

// DedupReport fasst einen Aufräumlauf zusammen.
type DedupReport struct {
	Groups  int  `json:"groups"`
	Removed int  `json:"removed"`
	DryRun  bool `json:"dry_run"`
}

// RemoveDuplicates entfernt Mehrfacheinträge pro Fingerprint und behält jeweils
// die älteste Zeile. Der Lauf ist idempotent: ein zweiter Durchgang findet
// nichts mehr. Mit dryRun wird nur gezählt.
func (d *DedupService) RemoveDuplicates(ctx context.Context, dryRun bool) (*DedupReport, error) {
	groups, err := d.Store.DuplicateGroups(ctx)
	if err != nil {
		return nil, err
	}

	report := &DedupReport{Groups: len(groups), DryRun: dryRun}
	for fp, rows := range groups {
		if len(rows) < 2 {
			continue
		}
		// rows ist nach created_at aufsteigend sortiert; die erste bleibt.
		var doomed []uint
		for _, row := range rows[1:] {
			doomed = append(doomed, row.ID)
		}
		report.Removed += len(doomed)

		if dryRun {
			d.Logger.Info("Duplikate gefunden (dry-run)",
				zap.String("fingerprint", fp),
				zap.Int("copies", len(rows)),
				zap.Uint("keep_id", rows[0].ID))
			continue
		}
		if err := d.Store.DeleteByIDs(ctx, doomed); err != nil {
			return report, err
		}
		d.Logger.Info("Duplikate entfernt",
			zap.String("fingerprint", fp),
			zap.Int("removed", len(doomed)),
			zap.Uint("keep_id", rows[0].ID))
	}
	return report, nil
}

// RepairMissingFingerprints berechnet fehlende Fingerprints nach. Nötig nur
// bei Daten, die an der Anwendung vorbei importiert wurden.
func (d *DedupService) RepairMissingFingerprints(ctx context.Context) (int, error) {
	rows, err := d.Store.MissingFingerprints(ctx)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for i := range rows {
		fp := Fingerprint(rows[i].Title)
		if err := d.Store.SaveFingerprint(ctx, rows[i].ID, fp); err != nil {
			// Kollision mit bestehendem Fingerprint: die Zeile ist ein Duplikat
			// und wird vom nächsten RemoveDuplicates-Lauf nicht erfasst, weil
			// ihr Fingerprint leer bleibt. Hier loggen und weitermachen.
			d.Logger.Warn("Fingerprint konnte nicht gesetzt werden",
				zap.Uint("id", rows[i].ID), zap.Error(err))
			continue
		}
		repaired++
	}
	d.Logger.Info("Fehlende Fingerprints repariert", zap.Int("repaired", repaired))
	return repaired, nil
}
