// Package regulationsgov enthält den Adapter für FDA Dockets von
// Regulations.gov (laufende Zulassungs- und Kommentierungsprozesse).
package regulationsgov

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"regintel/config"
	"regintel/models"
	"regintel/sources"
	"regintel/sources/httpclient"
)

// docketsResponse ist der JSON:API-Antwortumschlag von /dockets.
type docketsResponse struct {
	Data []docket `json:"data"`
	Meta struct {
		TotalElements int `json:"totalElements"`
	} `json:"meta"`
}

type docket struct {
	ID         string `json:"id"`
	Attributes struct {
		DocketID         string `json:"docketId"`
		Title            string `json:"title"`
		AgencyID         string `json:"agencyId"`
		DocketType       string `json:"docketType"`
		ModifyDate       string `json:"modifyDate"`
		PostedDate       string `json:"postedDate"`
		CommentStartDate string `json:"commentStartDate"`
		CommentEndDate   string `json:"commentEndDate"`
		OpenForComment   bool   `json:"openForComment"`
		DocumentCount    int    `json:"documentCount"`
	} `json:"attributes"`
}

// Fetcher ist der Adapter für FDA Dockets.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
	Client *httpclient.Client
}

// NewFetcher erstellt den Regulations.gov-Adapter.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	opts := httpclient.DefaultOptions("regulations_gov")
	opts.Delay = 500 * time.Millisecond
	return &Fetcher{Config: cfg, Logger: logger, Client: httpclient.New(opts, logger)}
}

// Name gibt die Source-ID des Adapters zurück.
func (f *Fetcher) Name() string { return "fda_docket" }

// Collect holt FDA Dockets mit Medical-Device-Bezug ab. Alte, geschlossene
// Dockets werden übersprungen; offen für Kommentare oder jünger als ein
// Jahr bleibt drin.
func (f *Fetcher) Collect(ctx context.Context, limit int, since *time.Time) ([]*models.RegulatoryUpdate, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	headers := map[string]string{}
	if f.Config.RegulationsGovAPIKey != "" {
		headers["X-API-Key"] = f.Config.RegulationsGovAPIKey
	}

	cutoff := time.Now().AddDate(-1, 0, 0)
	if since != nil {
		cutoff = *since
	}

	log := f.Logger.With(zap.String("source", f.Name()))
	var updates []*models.RegulatoryUpdate

	maxPages := sources.PageCap(f.Config.MaxPagesPerSource)
	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return updates, err
		}

		endpoint := fmt.Sprintf("%s/dockets?filter[agencyId]=FDA&filter[searchTerm]=medical+device&page[size]=%d&page[number]=%d&sort=-postedDate",
			f.Config.RegulationsGovBaseURL, limit, page)

		var resp docketsResponse
		if err := f.Client.GetJSON(ctx, endpoint, headers, &resp); err != nil {
			return updates, err
		}
		if len(resp.Data) == 0 {
			break
		}

		for i := range resp.Data {
			d := &resp.Data[i]
			posted := sources.ParseDate(d.Attributes.PostedDate)
			isRecent := posted != nil && posted.After(cutoff)
			if !isRecent && !d.Attributes.OpenForComment {
				continue
			}
			update, err := f.mapDocket(d, posted)
			if err != nil {
				log.Warn("Überspringe Docket ohne Titel", zap.Error(err))
				continue
			}
			updates = append(updates, update)
		}

		if len(resp.Data) < limit {
			break
		}
	}

	log.Info("Collect abgeschlossen", zap.Int("total", len(updates)))
	return updates, nil
}

func (f *Fetcher) mapDocket(d *docket, posted *time.Time) (*models.RegulatoryUpdate, error) {
	attrs := &d.Attributes
	if attrs.Title == "" {
		return nil, &sources.MappingError{Source: f.Name(), Reason: "docket title missing"}
	}

	docketID := attrs.DocketID
	if docketID == "" {
		docketID = d.ID
	}

	published := time.Now()
	if posted != nil {
		published = *posted
	}

	// Noch offen für Kommentare → Review läuft
	status := "pending"
	if attrs.OpenForComment {
		if end := sources.ParseDate(attrs.CommentEndDate); end != nil && end.After(time.Now()) {
			status = "in_review"
		}
	}

	return &models.RegulatoryUpdate{
		Title:          fmt.Sprintf("FDA Docket: %s (%s)", attrs.Title, docketID),
		Description:    fmt.Sprintf("FDA Docket für Medical Devices - %s", orNA(attrs.DocketType)),
		SourceID:       f.Name(),
		SourceURL:      "https://www.regulations.gov/docket/" + docketID,
		Region:         "US",
		Jurisdiction:   "US",
		Category:       "fda_docket",
		UpdateType:     "approval",
		PublishedDate:  published,
		EffectiveDate:  sources.ParseDate(attrs.CommentStartDate),
		Priority:       2,
		RiskLevel:      models.RiskMedium,
		ActionRequired: false,
		ActionType:     models.ActionMonitoring,
		Metadata: sources.MarshalMetadata(map[string]any{
			"docket_id":          docketID,
			"agency_id":          attrs.AgencyID,
			"docket_type":        attrs.DocketType,
			"document_count":     attrs.DocumentCount,
			"open_for_comment":   attrs.OpenForComment,
			"comment_start_date": attrs.CommentStartDate,
			"comment_end_date":   attrs.CommentEndDate,
			"approval_status":    status,
		}),
	}, nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
