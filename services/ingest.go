package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"regintel/config"
	"regintel/models"
	"regintel/sources"
	"regintel/store"
)

// IngestService orchestriert den kompletten Abruf über alle aktivierten
// Quellen. Quellen laufen nacheinander; der Ausfall einer Quelle bricht den
// Lauf nicht ab.
type IngestService struct {
	Config  *config.Config
	Store   *store.Store
	Dedup   *DedupService
	Logger  *zap.Logger
	Sources []sources.Source
}

// NewIngestService erstellt einen IngestService.
func NewIngestService(cfg *config.Config, st *store.Store, logger *zap.Logger, srcs []sources.Source) *IngestService {
	return &IngestService{
		Config:  cfg,
		Store:   st,
		Dedup:   NewDedupService(st, logger),
		Logger:  logger,
		Sources: srcs,
	}
}

// SourceReport ist das Ergebnis einer einzelnen Quelle in einem Lauf.
type SourceReport struct {
	Source   string        `json:"source"`
	Inserted int           `json:"inserted"`
	Skipped  int           `json:"skipped"`
	Errors   int           `json:"errors"`
	Err      error         `json:"-"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"-"`
}

// RunReport fasst einen kompletten Ingestion-Lauf zusammen.
type RunReport struct {
	StartedAt     time.Time      `json:"started_at"`
	Duration      time.Duration  `json:"-"`
	TotalInserted int            `json:"total_inserted"`
	TotalSkipped  int            `json:"total_skipped"`
	Reports       []SourceReport `json:"reports"`
}

// ErrAllSourcesFailed wird zurückgegeben, wenn kein einziger Abruf gelang.
// Ein komplett leerer Lauf darf nie als Erfolg durchgehen.
var ErrAllSourcesFailed = errors.New("all sources failed")

// Run führt alle Quellen aus und persistiert die Ergebnisse samt
// Laufprotokoll. limit gilt pro Seite und Quelle; since filtert auf
// Veröffentlichungsdatum, nil heißt alles.
func (s *IngestService) Run(ctx context.Context, limit int, since *time.Time) (*RunReport, error) {
	report := &RunReport{StartedAt: time.Now()}
	s.Logger.Info("Starte Ingestion-Lauf", zap.Int("sources", len(s.Sources)))

	failed := 0
	for _, src := range s.Sources {
		sr := s.runSource(ctx, src, limit, since)
		report.Reports = append(report.Reports, sr)
		report.TotalInserted += sr.Inserted
		report.TotalSkipped += sr.Skipped
		if sr.Err != nil {
			failed++
		}
		if ctx.Err() != nil {
			break
		}
	}
	report.Duration = time.Since(report.StartedAt)

	if err := s.persistRun(ctx, report); err != nil {
		s.Logger.Error("Laufprotokoll konnte nicht gespeichert werden", zap.Error(err))
	}

	s.Logger.Info("Ingestion-Lauf abgeschlossen",
		zap.Int("inserted", report.TotalInserted),
		zap.Int("skipped", report.TotalSkipped),
		zap.Int("failed_sources", failed),
		zap.Duration("duration", report.Duration))

	if len(s.Sources) > 0 && failed == len(s.Sources) {
		return report, ErrAllSourcesFailed
	}
	return report, nil
}

// RunSource führt genau eine Quelle per Name aus.
func (s *IngestService) RunSource(ctx context.Context, name string, limit int, since *time.Time) (*SourceReport, error) {
	for _, src := range s.Sources {
		if src.Name() == name {
			sr := s.runSource(ctx, src, limit, since)
			return &sr, sr.Err
		}
	}
	return nil, errors.New("unknown source: " + name)
}

func (s *IngestService) runSource(ctx context.Context, src sources.Source, limit int, since *time.Time) SourceReport {
	log := s.Logger.With(zap.String("source", src.Name()))
	sr := SourceReport{Source: src.Name()}
	start := time.Now()

	updates, err := src.Collect(ctx, limit, since)
	if err != nil {
		// Teilergebnisse vor dem Fehler werden trotzdem gespeichert.
		log.Error("Quelle fehlgeschlagen", zap.Error(err), zap.Int("partial", len(updates)))
		sr.Err = err
		sr.Message = err.Error()
	}

	for _, update := range updates {
		exists, err := s.Dedup.Prepare(ctx, update)
		if err != nil {
			log.Error("Dedup-Vorprüfung fehlgeschlagen", zap.Error(err))
			sr.Errors++
			continue
		}
		if exists {
			sr.Skipped++
			continue
		}
		inserted, err := s.Store.CreateIgnoreDuplicate(ctx, update)
		if err != nil {
			log.Error("Update konnte nicht gespeichert werden",
				zap.String("title", update.Title), zap.Error(err))
			sr.Errors++
			continue
		}
		if inserted {
			sr.Inserted++
		} else {
			// Unique-Index hat eine parallele Doublette abgefangen.
			sr.Skipped++
		}
	}

	sr.Duration = time.Since(start)
	log.Info("Quelle abgeschlossen",
		zap.Int("inserted", sr.Inserted),
		zap.Int("skipped", sr.Skipped),
		zap.Int("errors", sr.Errors),
		zap.Duration("duration", sr.Duration))
	return sr
}

func (s *IngestService) persistRun(ctx context.Context, report *RunReport) error {
	run := &models.IngestionRun{
		StartedAt:  report.StartedAt,
		DurationMS: report.Duration.Milliseconds(),
	}
	for _, sr := range report.Reports {
		if sr.Err != nil {
			run.ErrorSources++
		} else {
			run.SuccessSources++
		}
		run.TotalInserted += sr.Inserted
		run.TotalSkipped += sr.Skipped
		run.Results = append(run.Results, models.SourceResult{
			Source:     sr.Source,
			Inserted:   sr.Inserted,
			Skipped:    sr.Skipped,
			Errors:     sr.Errors,
			Message:    sr.Message,
			DurationMS: sr.Duration.Milliseconds(),
		})
	}
	return s.Store.CreateIngestionRun(ctx, run)
}
