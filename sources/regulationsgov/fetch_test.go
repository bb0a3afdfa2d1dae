package regulationsgov

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"regintel/config"
)

func fakeDocket(id, title, posted string, open bool) docket {
	var d docket
	d.ID = id
	d.Attributes.DocketID = id
	d.Attributes.Title = title
	d.Attributes.AgencyID = "FDA"
	d.Attributes.PostedDate = posted
	d.Attributes.OpenForComment = open
	return d
}

func TestCollectFiltersOldClosedDockets(t *testing.T) {
	recent := time.Now().AddDate(0, -1, 0).Format("2006-01-02")
	ancient := "2015-01-01"

	var gotAPIKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("X-API-Key")
		json.NewEncoder(w).Encode(docketsResponse{Data: []docket{
			fakeDocket("FDA-2025-N-0001", "Cybersecurity in Medical Devices", recent, false),
			fakeDocket("FDA-2015-N-0002", "Altes geschlossenes Docket", ancient, false),
			fakeDocket("FDA-2015-N-0003", "Altes, aber offenes Docket", ancient, true),
		}})
	}))
	defer srv.Close()

	cfg := &config.Config{RegulationsGovBaseURL: srv.URL, RegulationsGovAPIKey: "demo-key"}
	f := NewFetcher(cfg, zap.NewNop())

	updates, err := f.Collect(context.Background(), 50, nil)
	require.NoError(t, err)
	require.Len(t, updates, 2)
	assert.Equal(t, "demo-key", gotAPIKey)

	assert.Equal(t, "FDA Docket: Cybersecurity in Medical Devices (FDA-2025-N-0001)", updates[0].Title)
	assert.Equal(t, "fda_docket", updates[0].SourceID)
	assert.Equal(t, "https://www.regulations.gov/docket/FDA-2025-N-0001", updates[0].SourceURL)
	assert.Equal(t, 2, updates[0].Priority)

	// Altes Docket bleibt drin solange es offen für Kommentare ist.
	assert.Contains(t, updates[1].Title, "FDA-2015-N-0003")
}

func TestCollectSkipsDocketsWithoutTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(docketsResponse{Data: []docket{
			fakeDocket("FDA-2025-N-0004", "", time.Now().Format("2006-01-02"), true),
			fakeDocket("FDA-2025-N-0005", "Gültiges Docket", time.Now().Format("2006-01-02"), true),
		}})
	}))
	defer srv.Close()

	f := NewFetcher(&config.Config{RegulationsGovBaseURL: srv.URL}, zap.NewNop())
	updates, err := f.Collect(context.Background(), 50, nil)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Contains(t, updates[0].Title, "Gültiges Docket")
}
