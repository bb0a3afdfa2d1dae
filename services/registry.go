package services

import (
	"strings"

	"go.uber.org/zap"

	"regintel/config"
	"regintel/sources"
	"regintel/sources/clinicaltrials"
	"regintel/sources/espacenet"
	"regintel/sources/fda"
	"regintel/sources/nist"
	"regintel/sources/patentsview"
	"regintel/sources/pubmed"
	"regintel/sources/regulationsgov"
)

// sourceConstructors ordnet den Schlüsseln aus ENABLED_SOURCES ihre Adapter zu.
var sourceConstructors = map[string]func(*config.Config, *zap.Logger) sources.Source{
	"fda_510k":       func(c *config.Config, l *zap.Logger) sources.Source { return fda.New510k(c, l) },
	"fda_pma":        func(c *config.Config, l *zap.Logger) sources.Source { return fda.NewPMA(c, l) },
	"fda_maude":      func(c *config.Config, l *zap.Logger) sources.Source { return fda.NewMAUDE(c, l) },
	"fda_recall":     func(c *config.Config, l *zap.Logger) sources.Source { return fda.NewRecall(c, l) },
	"clinicaltrials": func(c *config.Config, l *zap.Logger) sources.Source { return clinicaltrials.NewFetcher(c, l) },
	"nist":           func(c *config.Config, l *zap.Logger) sources.Source { return nist.NewFetcher(c, l) },
	"pubmed":         func(c *config.Config, l *zap.Logger) sources.Source { return pubmed.NewFetcher(c, l) },
	"espacenet":      func(c *config.Config, l *zap.Logger) sources.Source { return espacenet.NewFetcher(c, l) },
	"patentsview":    func(c *config.Config, l *zap.Logger) sources.Source { return patentsview.NewFetcher(c, l) },
	"regulations_gov": func(c *config.Config, l *zap.Logger) sources.Source {
		return regulationsgov.NewFetcher(c, l)
	},
}

// BuildSources baut die Adapter für alle in ENABLED_SOURCES gelisteten
// Quellen. Unbekannte Schlüssel werden geloggt und übersprungen.
func BuildSources(cfg *config.Config, logger *zap.Logger) []sources.Source {
	var built []sources.Source
	for _, key := range strings.Split(cfg.EnabledSources, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		ctor, ok := sourceConstructors[key]
		if !ok {
			logger.Warn("Unbekannte Quelle in ENABLED_SOURCES", zap.String("key", key))
			continue
		}
		built = append(built, ctor(cfg, logger))
	}
	return built
}
