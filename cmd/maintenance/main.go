// Wartungswerkzeug für die regulatory_updates-Datenbank. Läuft als
// einmaliger Prozess neben dem Server, z.B. aus einem Cronjob oder von Hand.
//
// Befehle:
//
//	maintenance remove-duplicates [--dry-run]
//	maintenance add-missing-hashes
//	maintenance import --source=<name|all> [--limit=N] [--since=YYYY-MM-DD]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"regintel/config"
	"regintel/services"
	"regintel/store"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Konfiguration konnte nicht geladen werden", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		logger.Fatal("Datenbankverbindung fehlgeschlagen", zap.Error(err))
	}
	st := store.New(db)

	ctx := context.Background()
	switch os.Args[1] {
	case "remove-duplicates":
		fs := flag.NewFlagSet("remove-duplicates", flag.ExitOnError)
		dryRun := fs.Bool("dry-run", false, "nur zählen, nichts löschen")
		fs.Parse(os.Args[2:])

		dedup := services.NewDedupService(st, logger)
		report, err := dedup.RemoveDuplicates(ctx, *dryRun)
		if err != nil {
			logger.Fatal("Duplikat-Bereinigung fehlgeschlagen", zap.Error(err))
		}
		logger.Info("Duplikat-Bereinigung abgeschlossen",
			zap.Int("groups", report.Groups),
			zap.Int("removed", report.Removed),
			zap.Bool("dry_run", report.DryRun))

	case "add-missing-hashes":
		dedup := services.NewDedupService(st, logger)
		repaired, err := dedup.RepairMissingFingerprints(ctx)
		if err != nil {
			logger.Fatal("Fingerprint-Reparatur fehlgeschlagen", zap.Error(err))
		}
		logger.Info("Fingerprint-Reparatur abgeschlossen", zap.Int("repaired", repaired))

	case "import":
		fs := flag.NewFlagSet("import", flag.ExitOnError)
		source := fs.String("source", "", "Source-ID der Quelle, z.B. fda_510k_complete")
		limit := fs.Int("limit", 0, "Seitengröße, 0 = Default der Quelle")
		sinceStr := fs.String("since", "", "nur Einträge ab diesem Datum (YYYY-MM-DD)")
		fs.Parse(os.Args[2:])

		if *source == "" {
			fmt.Fprintln(os.Stderr, "import benötigt --source")
			os.Exit(1)
		}
		var since *time.Time
		if *sinceStr != "" {
			t, err := time.Parse("2006-01-02", *sinceStr)
			if err != nil {
				logger.Fatal("Ungültiges --since Datum", zap.String("since", *sinceStr), zap.Error(err))
			}
			since = &t
		}

		srcs := services.BuildSources(cfg, logger)
		ingest := services.NewIngestService(cfg, st, logger, srcs)

		if *source == "all" {
			report, err := ingest.Run(ctx, *limit, since)
			if err != nil {
				logger.Fatal("Import fehlgeschlagen", zap.Error(err))
			}
			logger.Info("Import abgeschlossen",
				zap.Int("sources", len(report.Reports)),
				zap.Int("inserted", report.TotalInserted),
				zap.Int("skipped", report.TotalSkipped))
			return
		}

		report, err := ingest.RunSource(ctx, *source, *limit, since)
		if err != nil {
			logger.Fatal("Import fehlgeschlagen", zap.String("source", *source), zap.Error(err))
		}
		logger.Info("Import abgeschlossen",
			zap.String("source", report.Source),
			zap.Int("inserted", report.Inserted),
			zap.Int("skipped", report.Skipped),
			zap.Int("errors", report.Errors))

	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Verwendung: maintenance <befehl> [flags]

Befehle:
  remove-duplicates [--dry-run]                     Mehrfacheinträge entfernen, älteste Zeile bleibt
  add-missing-hashes                                fehlende Fingerprints nachberechnen
  import --source=<name|all> [--limit=N] [--since=D]   Quellen abrufen`)
}
