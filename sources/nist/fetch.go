// Package nist enthält den Adapter für die NIST CSRC Publications API
// (SP-800-Serie und weitere Cybersecurity-Standards).
package nist

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"regintel/config"
	"regintel/models"
	"regintel/sources"
	"regintel/sources/httpclient"
)

// publicationsResponse ist der Antwortumschlag der CSRC-API.
type publicationsResponse struct {
	Publications []publication `json:"publications"`
	TotalItems   int           `json:"totalItems"`
}

// publication ist ein roher NIST-Publikationsdatensatz.
type publication struct {
	PubID       string   `json:"pubId"`
	Title       string   `json:"title"`
	SeriesTitle string   `json:"seriesTitle"`
	VolNum      string   `json:"volNum"`
	IssNum      string   `json:"issNum"`
	PubDate     string   `json:"pubDate"`
	PubLink     string   `json:"pubLink"`
	Abstract    string   `json:"abstract"`
	Keywords    []string `json:"keywords"`
	Authors     []author `json:"authors"`
}

type author struct {
	Name string `json:"name"`
}

// Fetcher ist der Adapter für NIST-Standards.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
	Client *httpclient.Client
}

// NewFetcher erstellt den NIST-Adapter.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger, Client: httpclient.New(httpclient.DefaultOptions("nist"), logger)}
}

// Name gibt die Source-ID des Adapters zurück.
func (f *Fetcher) Name() string { return "nist" }

// Collect holt NIST-Publikationen seitenweise ab. Die API filtert nicht nach
// Datum, daher wird since clientseitig auf pubDate angewandt.
func (f *Fetcher) Collect(ctx context.Context, limit int, since *time.Time) ([]*models.RegulatoryUpdate, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	log := f.Logger.With(zap.String("source", f.Name()))
	var updates []*models.RegulatoryUpdate

	maxPages := sources.PageCap(f.Config.MaxPagesPerSource)
	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return updates, err
		}

		endpoint := fmt.Sprintf("%s?pageNum=%d&pageSize=%d&searchText=%s",
			f.Config.NISTBaseURL, page, limit, url.QueryEscape(f.Config.NISTSearchText))

		var resp publicationsResponse
		if err := f.Client.GetJSON(ctx, endpoint, nil, &resp); err != nil {
			return updates, err
		}
		if len(resp.Publications) == 0 {
			break
		}

		for i := range resp.Publications {
			pub := &resp.Publications[i]
			pubDate := sources.ParseDate(pub.PubDate)
			if since != nil && pubDate != nil && pubDate.Before(*since) {
				continue
			}
			update, err := f.mapPublication(pub, pubDate)
			if err != nil {
				log.Warn("Überspringe Publikation ohne Titel", zap.Error(err))
				continue
			}
			updates = append(updates, update)
		}

		log.Debug("Seite verarbeitet", zap.Int("page", page), zap.Int("total_items", resp.TotalItems))
		if len(resp.Publications) < limit {
			break
		}
	}

	log.Info("Collect abgeschlossen", zap.Int("total", len(updates)))
	return updates, nil
}

func (f *Fetcher) mapPublication(pub *publication, pubDate *time.Time) (*models.RegulatoryUpdate, error) {
	if strings.TrimSpace(pub.Title) == "" {
		return nil, &sources.MappingError{Source: f.Name(), Reason: "title missing"}
	}

	series := pub.SeriesTitle
	if series == "" {
		series = "NIST SP"
	}
	num := pub.VolNum
	if num == "" {
		num = pub.IssNum
	}
	standardCode := strings.TrimSpace(series + " " + num)

	abstract := pub.Abstract
	if abstract == "" {
		abstract = strings.Join(pub.Keywords, "; ")
	}
	if abstract == "" {
		abstract = "Not available"
	}

	var names []string
	for _, a := range pub.Authors {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	authors := strings.Join(names, "; ")
	if authors == "" {
		authors = "NIST"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Standard: %s\n", standardCode)
	fmt.Fprintf(&b, "Title: %s\n\n", pub.Title)
	fmt.Fprintf(&b, "Authors: %s\n\n", authors)
	fmt.Fprintf(&b, "Abstract:\n%s", abstract)

	sourceURL := pub.PubLink
	if sourceURL == "" {
		sourceURL = "https://csrc.nist.gov/publications/detail/" + pub.PubID
	}

	published := time.Now()
	if pubDate != nil {
		published = *pubDate
	}

	return &models.RegulatoryUpdate{
		Title:          "NIST: " + pub.Title + " (" + standardCode + ")",
		Description:    b.String(),
		SourceID:       f.Name(),
		SourceURL:      sourceURL,
		Region:         "US",
		Jurisdiction:   "USA",
		Category:       "standard",
		UpdateType:     "guidance",
		PublishedDate:  published,
		EffectiveDate:  pubDate,
		Priority:       2,
		RiskLevel:      models.RiskLow,
		ActionRequired: false,
		ActionType:     models.ActionMonitoring,
		Metadata: sources.MarshalMetadata(map[string]any{
			"standard_code": standardCode,
			"standard_type": "NIST SP",
			"organization":  "NIST",
			"pub_id":        pub.PubID,
			"authors":       authors,
			"keywords":      pub.Keywords,
		}),
	}, nil
}
