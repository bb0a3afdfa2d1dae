package fda

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"regintel/config"
	"regintel/models"
)

func TestPriority510k(t *testing.T) {
	cases := []struct {
		name     string
		device   Device510k
		priority int
		risk     string
	}{
		{"class III", Device510k{DeviceClass: "3"}, 5, models.RiskHigh},
		{"class III roman", Device510k{DeviceClass: "III"}, 5, models.RiskHigh},
		{"class II", Device510k{DeviceClass: "2"}, 3, models.RiskMedium},
		{"class III beats expedited", Device510k{DeviceClass: "3", ExpeditedReviewFlag: "Y"}, 5, models.RiskHigh},
		{"expedited only", Device510k{ExpeditedReviewFlag: "Y"}, 4, models.RiskLow},
		{"no class no flag", Device510k{}, 2, models.RiskLow},
		{"class from openfda", Device510k{OpenFDA: &OpenFDA{DeviceClass: "2"}}, 3, models.RiskMedium},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.priority, priority510k(&tc.device))
			assert.Equal(t, tc.risk, risk510k(&tc.device))
		})
	}
}

func TestPriorityMAUDE(t *testing.T) {
	cases := []struct {
		name     string
		event    MAUDEEvent
		priority int
		risk     string
	}{
		{"death", MAUDEEvent{EventType: "Death"}, 5, models.RiskHigh},
		{"injury", MAUDEEvent{EventType: "Injury"}, 4, models.RiskHigh},
		{"patient problems", MAUDEEvent{EventType: "Malfunction", PatientProblems: []string{"Burn"}}, 4, models.RiskHigh},
		{"remedial only", MAUDEEvent{EventType: "Malfunction", RemedialAction: []string{"Recall"}}, 3, models.RiskLow},
		{"plain malfunction", MAUDEEvent{EventType: "Malfunction"}, 2, models.RiskLow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.priority, priorityMAUDE(&tc.event))
			assert.Equal(t, tc.risk, riskMAUDE(&tc.event))
		})
	}
}

func TestPriorityRecall(t *testing.T) {
	assert.Equal(t, 5, priorityRecall("Class I"))
	assert.Equal(t, 4, priorityRecall("Class II"))
	assert.Equal(t, 2, priorityRecall("Class III"))
	assert.Equal(t, 3, priorityRecall(""))

	assert.Equal(t, models.RiskHigh, riskRecall("Class I"))
	assert.Equal(t, models.RiskMedium, riskRecall("Class II"))
	assert.Equal(t, models.RiskLow, riskRecall("Class III"))
	assert.Equal(t, models.RiskMedium, riskRecall(""))
}

func TestParseFDADate(t *testing.T) {
	d := parseFDADate("20240115")
	require.NotNil(t, d)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), *d)

	d = parseFDADate("2024-01-15")
	require.NotNil(t, d)
	assert.Equal(t, 2024, d.Year())

	assert.Nil(t, parseFDADate(""))
	assert.Nil(t, parseFDADate("   "))
	assert.Nil(t, parseFDADate("kein datum"))
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{FDABaseURL: baseURL}
}

// zwei Seiten: 2 volle Datensätze, dann 1 Rest plus ein kaputter Datensatz
func newFake510kServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
		var results []Device510k
		switch skip {
		case 0:
			results = []Device510k{
				{KNumber: "K240001", DeviceName: "Infusion Pump", DeviceClass: "2", DecisionDate: "20240110"},
				{KNumber: "K240002", DeviceName: "Pacemaker Lead", DeviceClass: "3", DecisionDate: "20240112"},
			}
		case 2:
			results = []Device510k{
				{KNumber: "K240003"}, // kein Gerätename, muss übersprungen werden
				{KNumber: "K240004", DeviceName: "Glucose Meter", DecisionDate: "ungueltig"},
			}
		case 4:
			// leere Seite beendet die Paginierung
		default:
			t.Errorf("unexpected skip %d", skip)
		}
		json.NewEncoder(w).Encode(map[string]any{"results": results})
	}))
}

func TestSource510kCollect(t *testing.T) {
	srv := newFake510kServer(t)
	defer srv.Close()

	src := New510k(testConfig(srv.URL), zap.NewNop())
	updates, err := src.Collect(context.Background(), 2, nil)
	require.NoError(t, err)
	require.Len(t, updates, 3)

	first := updates[0]
	assert.Equal(t, "FDA 510(k): Infusion Pump (K240001)", first.Title)
	assert.Equal(t, "fda_510k_complete", first.SourceID)
	assert.Equal(t, 3, first.Priority)
	assert.Equal(t, models.RiskMedium, first.RiskLevel)
	require.NotNil(t, first.EffectiveDate)
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), *first.EffectiveDate)

	second := updates[1]
	assert.Equal(t, 5, second.Priority)
	assert.Equal(t, models.RiskHigh, second.RiskLevel)

	// Ungültiges Datum führt nicht zum Fehler, nur zu fehlendem EffectiveDate.
	third := updates[2]
	assert.Nil(t, third.EffectiveDate)
	assert.WithinDuration(t, time.Now(), third.PublishedDate, time.Minute)
}

func TestSource510kCollectCanceledContext(t *testing.T) {
	srv := newFake510kServer(t)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := New510k(testConfig(srv.URL), zap.NewNop())
	_, err := src.Collect(ctx, 2, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEndpointSinceFilter(t *testing.T) {
	f := newFetcher(testConfig("https://api.fda.gov"), zap.NewNop(), "fda_510k")
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	url := f.endpoint("/device/510k.json", "decision_date", 100, 0, &since)
	assert.Contains(t, url, "search=decision_date:[2024-03-01+TO+NOW]")
	assert.Contains(t, url, "limit=100")
	assert.Contains(t, url, "sort=decision_date:desc")
}

func TestMapRecallTruncatesLongProduct(t *testing.T) {
	src := NewRecall(testConfig("https://api.fda.gov"), zap.NewNop())
	long := ""
	for i := 0; i < 30; i++ {
		long += "Röntgengerät "
	}
	update, err := src.mapRecall(&Recall{ProductDescription: long, Classification: "Class I", RecallNumber: "Z-1234-2024"})
	require.NoError(t, err)
	assert.LessOrEqual(t, len([]rune(update.Title)), 150)
	assert.Equal(t, 5, update.Priority)
	assert.True(t, update.ActionRequired)
	assert.Equal(t, models.ActionImmediate, update.ActionType)
}

func TestCollectHonorsConfiguredPageCap(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		// Jede Seite voll, ohne Cap würde die Paginierung nie enden.
		env := resultsEnvelope[Device510k]{Results: []Device510k{
			{KNumber: "K240001", DeviceName: "Infusion Pump", DecisionDate: "20240110"},
			{KNumber: "K240002", DeviceName: "Pacemaker Lead", DecisionDate: "20240112"},
		}}
		json.NewEncoder(w).Encode(env)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxPagesPerSource = 2
	src := New510k(cfg, zap.NewNop())

	updates, err := src.Collect(context.Background(), 2, nil)
	require.NoError(t, err)
	assert.Len(t, updates, 4)
	assert.Equal(t, 2, calls)
}

func TestMapRecallTruncationKeepsValidUTF8(t *testing.T) {
	src := NewRecall(testConfig("https://api.fda.gov"), zap.NewNop())
	// Der Umlaut beginnt bei Byte 99, ein Byte-Schnitt bei 100 würde ihn zerteilen.
	long := strings.Repeat("a", 99) + "ö" + strings.Repeat("b", 20)
	update, err := src.mapRecall(&Recall{ProductDescription: long, Classification: "Class I", RecallNumber: "Z-1"})
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(update.Title), "title: %q", update.Title)
	assert.Contains(t, update.Title, strings.Repeat("a", 99)+"ö")
	assert.NotContains(t, update.Title, "b")
}

func TestMapPMAAlwaysHighPriority(t *testing.T) {
	src := NewPMA(testConfig("https://api.fda.gov"), zap.NewNop())
	update, err := src.mapPMA(&PMA{TradeName: "HeartValve X", PMANumber: "P240001", DecisionDate: "20240201"})
	require.NoError(t, err)
	assert.Equal(t, 5, update.Priority)
	assert.Equal(t, models.RiskHigh, update.RiskLevel)
	assert.True(t, update.ActionRequired)

	_, err = src.mapPMA(&PMA{PMANumber: "P240002"})
	require.Error(t, err)
}
