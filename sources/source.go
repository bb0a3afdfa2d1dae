package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"regintel/models"
)

// ErrSourceUnavailable signalisiert, dass eine Quelle nach Ausschöpfen
// aller Retries nicht erreichbar war.
var ErrSourceUnavailable = errors.New("source unavailable")

// defaultMaxPages begrenzt die Paginierung, falls MAX_PAGES_PER_SOURCE
// nicht gesetzt ist.
const defaultMaxPages = 10

// PageCap liefert das konfigurierte Seitenlimit pro Collect-Aufruf.
func PageCap(configured int) int {
	if configured > 0 {
		return configured
	}
	return defaultMaxPages
}

// MappingError signalisiert, dass aus einem Rohdatensatz kein Pflicht-Titel
// abgeleitet werden konnte. Der Datensatz wird übersprungen, nie die Seite.
type MappingError struct {
	Source string
	Reason string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("%s: mapping failed: %s", e.Source, e.Reason)
}

// Source ist das Interface, das jeder Quellen-Adapter (z.B. FDA, NIST)
// implementieren muss.
type Source interface {
	// Collect holt bis zu limit Datensätze pro Seite ab, beginnend immer
	// bei Seite eins, und gibt normalisierte Updates zurück. since schränkt
	// optional auf neuere Einträge ein.
	Collect(ctx context.Context, limit int, since *time.Time) ([]*models.RegulatoryUpdate, error)

	// Name gibt die eindeutige Source-ID zurück (z.B. "fda_510k_complete").
	Name() string
}

// MarshalMetadata serialisiert den quellspezifischen Metadaten-Bag als JSON.
// Liefert nil, wenn nichts zu serialisieren ist; ein Metadaten-Fehler darf
// einen Datensatz nie verwerfen.
func MarshalMetadata(v any) []byte {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

// ParseDate parst ein Quellen-Datum tolerant. Liefert nil statt Fehler,
// damit ein kaputtes Datum nie einen Datensatz verwirft.
func ParseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return nil
	}
	return &t
}
