package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"regintel/config"
	"regintel/models"
	"regintel/sources"
)

// fakeSource liefert vorbereitete Updates oder einen Fehler.
type fakeSource struct {
	name    string
	updates []*models.RegulatoryUpdate
	err     error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Collect(ctx context.Context, limit int, since *time.Time) ([]*models.RegulatoryUpdate, error) {
	return f.updates, f.err
}

func fakeUpdate(title string) *models.RegulatoryUpdate {
	return &models.RegulatoryUpdate{
		Title:         title,
		SourceID:      "fake",
		Category:      "device_recall",
		PublishedDate: time.Now(),
		Priority:      3,
		RiskLevel:     models.RiskMedium,
	}
}

func TestRunInsertsAndSkips(t *testing.T) {
	st := newTestStore(t)
	src := &fakeSource{name: "fake", updates: []*models.RegulatoryUpdate{
		fakeUpdate("Recall A"), fakeUpdate("Recall B"),
	}}
	ingest := NewIngestService(&config.Config{}, st, zap.NewNop(), []sources.Source{src})

	report, err := ingest.Run(context.Background(), 100, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalInserted)
	assert.Equal(t, 0, report.TotalSkipped)

	// Zweiter Lauf mit denselben Titeln: alles Duplikate. Die Updates müssen
	// neu gebaut werden, weil Prepare den Fingerprint am Objekt setzt.
	src.updates = []*models.RegulatoryUpdate{fakeUpdate("Recall A"), fakeUpdate("Recall B")}
	report, err = ingest.Run(context.Background(), 100, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.TotalInserted)
	assert.Equal(t, 2, report.TotalSkipped)

	// Beide Läufe sind protokolliert.
	runs, err := st.RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
}

func TestRunIsolatesFailingSource(t *testing.T) {
	st := newTestStore(t)
	good := &fakeSource{name: "good", updates: []*models.RegulatoryUpdate{fakeUpdate("Recall A")}}
	bad := &fakeSource{name: "bad", err: sources.ErrSourceUnavailable}
	ingest := NewIngestService(&config.Config{}, st, zap.NewNop(), []sources.Source{bad, good})

	report, err := ingest.Run(context.Background(), 100, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalInserted)
	require.Len(t, report.Reports, 2)
	assert.Error(t, report.Reports[0].Err)
	assert.NoError(t, report.Reports[1].Err)

	runs, err := st.RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].SuccessSources)
	assert.Equal(t, 1, runs[0].ErrorSources)
}

func TestRunPersistsPartialResults(t *testing.T) {
	st := newTestStore(t)
	// Quelle liefert Teilergebnisse UND einen Fehler (Abbruch mitten in der
	// Paginierung). Die Teilergebnisse müssen trotzdem gespeichert werden.
	partial := &fakeSource{
		name:    "partial",
		updates: []*models.RegulatoryUpdate{fakeUpdate("Recall A")},
		err:     sources.ErrSourceUnavailable,
	}
	ingest := NewIngestService(&config.Config{}, st, zap.NewNop(), []sources.Source{partial})

	report, err := ingest.Run(context.Background(), 100, nil)
	assert.ErrorIs(t, err, ErrAllSourcesFailed)
	assert.Equal(t, 1, report.TotalInserted)

	total, err := st.CountAll(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestRunAllSourcesFailed(t *testing.T) {
	st := newTestStore(t)
	ingest := NewIngestService(&config.Config{}, st, zap.NewNop(), []sources.Source{
		&fakeSource{name: "a", err: errors.New("boom")},
		&fakeSource{name: "b", err: sources.ErrSourceUnavailable},
	})

	report, err := ingest.Run(context.Background(), 100, nil)
	assert.ErrorIs(t, err, ErrAllSourcesFailed)
	assert.Equal(t, 0, report.TotalInserted)
}

func TestRunSourceByName(t *testing.T) {
	st := newTestStore(t)
	src := &fakeSource{name: "fake", updates: []*models.RegulatoryUpdate{fakeUpdate("Recall A")}}
	ingest := NewIngestService(&config.Config{}, st, zap.NewNop(), []sources.Source{src})

	report, err := ingest.RunSource(context.Background(), "fake", 100, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)

	_, err = ingest.RunSource(context.Background(), "unbekannt", 100, nil)
	require.Error(t, err)
}

func TestRunSameTitleAcrossSources(t *testing.T) {
	st := newTestStore(t)
	// Zwei Quellen melden dasselbe Ereignis mit identischem Titel; nur die
	// erste kommt durch.
	first := &fakeSource{name: "first", updates: []*models.RegulatoryUpdate{fakeUpdate("FDA Recall: Pump X")}}
	second := &fakeSource{name: "second", updates: []*models.RegulatoryUpdate{fakeUpdate("FDA Recall: Pump X")}}
	ingest := NewIngestService(&config.Config{}, st, zap.NewNop(), []sources.Source{first, second})

	report, err := ingest.Run(context.Background(), 100, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalInserted)
	assert.Equal(t, 1, report.TotalSkipped)

	total, err := st.CountAll(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}
