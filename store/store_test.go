package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"regintel/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.RegulatoryUpdate{}, &models.IngestionRun{}, &models.SourceResult{}))
	return New(db)
}

func testUpdate(title, fingerprint, sourceID string) *models.RegulatoryUpdate {
	return &models.RegulatoryUpdate{
		Title:         title,
		Fingerprint:   fingerprint,
		SourceID:      sourceID,
		Category:      "device_recall",
		PublishedDate: time.Now(),
		Priority:      3,
		RiskLevel:     models.RiskMedium,
	}
}

func TestCreateIgnoreDuplicate(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	inserted, err := st.CreateIgnoreDuplicate(ctx, testUpdate("Recall A", "fp-a", "fda_recall_detailed"))
	require.NoError(t, err)
	assert.True(t, inserted)

	// Gleicher Fingerprint aus anderer Quelle: kein Insert, kein Fehler.
	inserted, err = st.CreateIgnoreDuplicate(ctx, testUpdate("Recall A", "fp-a", "fda_maude"))
	require.NoError(t, err)
	assert.False(t, inserted)

	total, err := st.CountAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	// Die erste Zeile hat gewonnen.
	existing, err := st.FindByFingerprint(ctx, "fp-a")
	require.NoError(t, err)
	require.NotNil(t, existing)
	assert.Equal(t, "fda_recall_detailed", existing.SourceID)
}

func TestFindByFingerprintNotFound(t *testing.T) {
	st := newTestStore(t)
	existing, err := st.FindByFingerprint(context.Background(), "gibt-es-nicht")
	require.NoError(t, err)
	assert.Nil(t, existing)
}

func TestCountBySource(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := st.CreateIgnoreDuplicate(ctx, testUpdate(fmt.Sprintf("Recall %d", i), fmt.Sprintf("fp-%d", i), "fda_recall_detailed"))
		require.NoError(t, err)
	}
	_, err := st.CreateIgnoreDuplicate(ctx, testUpdate("Trial", "fp-trial", "clinicaltrials_gov"))
	require.NoError(t, err)

	counts, err := st.CountBySource(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, counts["fda_recall_detailed"])
	assert.EqualValues(t, 1, counts["clinicaltrials_gov"])
}

func TestUpdatedSince(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	fresh := testUpdate("Fresh Recall", "fp-fresh", "fda_recall_detailed")
	_, err := st.CreateIgnoreDuplicate(ctx, fresh)
	require.NoError(t, err)

	old := testUpdate("Old Recall", "fp-old", "fda_recall_detailed")
	old.PublishedDate = time.Now().Add(-48 * time.Hour)
	_, err = st.CreateIgnoreDuplicate(ctx, old)
	require.NoError(t, err)

	n, err := st.UpdatedSince(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = st.UpdatedSince(ctx, time.Now().Add(-72*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestListFilters(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	u1 := testUpdate("Recall", "fp-1", "fda_recall_detailed")
	u2 := testUpdate("Trial", "fp-2", "clinicaltrials_gov")
	u2.Category = "clinical_trial"
	for _, u := range []*models.RegulatoryUpdate{u1, u2} {
		_, err := st.CreateIgnoreDuplicate(ctx, u)
		require.NoError(t, err)
	}

	updates, err := st.List(ctx, "fda_recall_detailed", "", 10, 0)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, "Recall", updates[0].Title)

	updates, err = st.List(ctx, "", "clinical_trial", 10, 0)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, "Trial", updates[0].Title)
}

func TestLatestByPriority(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	low := testUpdate("Low", "fp-low", "nist")
	low.Priority = 2
	high := testUpdate("High", "fp-high", "fda_pma")
	high.Priority = 5
	for _, u := range []*models.RegulatoryUpdate{low, high} {
		_, err := st.CreateIgnoreDuplicate(ctx, u)
		require.NoError(t, err)
	}

	updates, err := st.LatestByPriority(ctx, 4, 10)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, "High", updates[0].Title)
}

func TestDuplicateGroupsAndDelete(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// Duplikate gibt es nur in Altbeständen, die vor dem Unique-Index
	// entstanden sind. Den Index dafür entfernen.
	require.NoError(t, st.DB.Migrator().DropIndex(&models.RegulatoryUpdate{}, "Fingerprint"))

	old := testUpdate("Recall A", "fp-dup", "fda_recall_detailed")
	old.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, st.DB.Create(old).Error)
	dup := testUpdate("Recall A", "fp-dup", "fda_maude")
	require.NoError(t, st.DB.Create(dup).Error)

	groups, err := st.DuplicateGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	rows := groups["fp-dup"]
	require.Len(t, rows, 2)
	// Älteste zuerst
	assert.Equal(t, old.ID, rows[0].ID)

	require.NoError(t, st.DeleteByIDs(ctx, []uint{rows[1].ID}))
	total, err := st.CountAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestMissingFingerprintsAndRepair(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.DB.Exec(
		"INSERT INTO regulatory_updates (created_at, updated_at, title, fingerprint, source_id, category, published_date, priority, risk_level) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		time.Now(), time.Now(), "Ohne Fingerprint", "", "nist", "standard", time.Now(), 2, models.RiskLow,
	).Error)

	rows, err := st.MissingFingerprints(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, st.SaveFingerprint(ctx, rows[0].ID, "abc123"))
	rows, err = st.MissingFingerprints(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCreateIngestionRunWithResults(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	run := &models.IngestionRun{
		StartedAt:      time.Now(),
		DurationMS:     1234,
		SuccessSources: 2,
		ErrorSources:   1,
		TotalInserted:  10,
		TotalSkipped:   3,
		Results: []models.SourceResult{
			{Source: "fda_pma", Inserted: 10, Skipped: 3},
			{Source: "nist", Message: "source unavailable"},
		},
	}
	require.NoError(t, st.CreateIngestionRun(ctx, run))

	runs, err := st.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 10, runs[0].TotalInserted)
	require.Len(t, runs[0].Results, 2)
}
