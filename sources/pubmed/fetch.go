package pubmed

import (
	"context"
	"encoding/json"
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

// Fetcher ist der Adapter für Research Paper aus PubMed Central.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
	Client *httpclient.Client
}

// NewFetcher erstellt den PubMed-Adapter.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	opts := httpclient.DefaultOptions("pubmed")
	// NCBI verlangt mindestens 1/3 Sekunde zwischen Requests
	opts.Delay = 334 * time.Millisecond
	return &Fetcher{Config: cfg, Logger: logger, Client: httpclient.New(opts, logger)}
}

// Name gibt die Source-ID des Adapters zurück.
func (f *Fetcher) Name() string { return "pubmed" }

// Collect sucht PMIDs via esearch und holt die Details je Seite via esummary.
func (f *Fetcher) Collect(ctx context.Context, limit int, since *time.Time) ([]*models.RegulatoryUpdate, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	log := f.Logger.With(zap.String("source", f.Name()))
	var updates []*models.RegulatoryUpdate

	maxPages := sources.PageCap(f.Config.MaxPagesPerSource)
	for page := 0; page < maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return updates, err
		}

		ids, err := f.searchIDs(ctx, page*limit, limit, since)
		if err != nil {
			return updates, err
		}
		if len(ids) == 0 {
			break
		}

		articles, err := f.fetchSummaries(ctx, ids)
		if err != nil {
			return updates, err
		}

		for i := range articles {
			update, err := f.mapArticle(&articles[i])
			if err != nil {
				log.Warn("Überspringe Artikel ohne Titel", zap.Error(err))
				continue
			}
			updates = append(updates, update)
		}

		if len(ids) < limit {
			break
		}
	}

	log.Info("Collect abgeschlossen", zap.Int("total", len(updates)))
	return updates, nil
}

// searchIDs führt eine esearch-Abfrage durch und gibt die UID-Seite zurück.
func (f *Fetcher) searchIDs(ctx context.Context, retStart, retMax int, since *time.Time) ([]string, error) {
	term := f.Config.PubMedQuery
	if since != nil {
		term += fmt.Sprintf(` AND ("%s"[PDAT] : "3000"[PDAT])`, since.Format("2006/01/02"))
	}

	endpoint := fmt.Sprintf("%s/esearch.fcgi?db=pmc&term=%s&retmode=json&retstart=%d&retmax=%d&tool=%s&email=%s",
		f.Config.PubMedBaseURL, url.QueryEscape(term), retStart, retMax,
		url.QueryEscape(f.Config.PubMedTool), url.QueryEscape(f.Config.PubMedEmail))
	if f.Config.PubMedAPIKey != "" {
		endpoint += "&api_key=" + f.Config.PubMedAPIKey
	}

	var resp esearchResponse
	if err := f.Client.GetJSON(ctx, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return resp.ESearchResult.IDList, nil
}

// fetchSummaries holt die Metadaten für eine UID-Liste via esummary.
func (f *Fetcher) fetchSummaries(ctx context.Context, ids []string) ([]articleSummary, error) {
	endpoint := fmt.Sprintf("%s/esummary.fcgi?db=pmc&id=%s&retmode=json&tool=%s&email=%s",
		f.Config.PubMedBaseURL, strings.Join(ids, ","),
		url.QueryEscape(f.Config.PubMedTool), url.QueryEscape(f.Config.PubMedEmail))
	if f.Config.PubMedAPIKey != "" {
		endpoint += "&api_key=" + f.Config.PubMedAPIKey
	}

	var resp esummaryResponse
	if err := f.Client.GetJSON(ctx, endpoint, nil, &resp); err != nil {
		return nil, err
	}

	// result enthält neben den Artikeln auch das uids-Array; nur Objekte
	// mit passender UID zählen.
	articles := make([]articleSummary, 0, len(ids))
	for _, id := range ids {
		raw, ok := resp.Result[id]
		if !ok {
			continue
		}
		var a articleSummary
		if err := json.Unmarshal(raw, &a); err != nil {
			f.Logger.Warn("Überspringe nicht parsbares esummary-Objekt",
				zap.String("source", f.Name()), zap.String("uid", id), zap.Error(err))
			continue
		}
		articles = append(articles, a)
	}
	return articles, nil
}

func (f *Fetcher) mapArticle(a *articleSummary) (*models.RegulatoryUpdate, error) {
	if strings.TrimSpace(a.Title) == "" {
		return nil, &sources.MappingError{Source: f.Name(), Reason: "title missing"}
	}

	var names []string
	for _, au := range a.Authors {
		if au.Name != "" {
			names = append(names, au.Name)
		}
	}
	authors := strings.Join(names, "; ")
	if authors == "" {
		authors = "Unknown"
	}

	journal := a.FullJournalName
	if journal == "" {
		journal = a.Source
	}
	if journal == "" {
		journal = "Unknown Journal"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n\n", a.Title)
	fmt.Fprintf(&b, "Journal: %s\n", journal)
	fmt.Fprintf(&b, "Authors: %s\n", authors)
	fmt.Fprintf(&b, "Published: %s", a.PubDate)

	pubDate := sources.ParseDate(a.PubDate)
	if pubDate == nil {
		pubDate = sources.ParseDate(a.EPubDate)
	}
	published := time.Now()
	if pubDate != nil {
		published = *pubDate
	}

	return &models.RegulatoryUpdate{
		Title:          "PubMed: " + a.Title,
		Description:    b.String(),
		SourceID:       f.Name(),
		SourceURL:      fmt.Sprintf("https://www.ncbi.nlm.nih.gov/pmc/articles/PMC%s/", a.UID),
		Region:         "GLOBAL",
		Jurisdiction:   "International",
		Category:       "knowledge",
		UpdateType:     "guidance",
		PublishedDate:  published,
		EffectiveDate:  pubDate,
		Priority:       2,
		RiskLevel:      models.RiskLow,
		ActionRequired: false,
		ActionType:     models.ActionMonitoring,
		Metadata: sources.MarshalMetadata(map[string]any{
			"pmid":       a.UID,
			"authors":    authors,
			"journal":    journal,
			"pub_date":   a.PubDate,
			"paper_type": "research",
		}),
	}, nil
}
