// Package patentsview enthält den Adapter für die USPTO Patent Search API
// (PatentsView-Nachfolger, Elastic-Search-basiert).
package patentsview

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

// searchResponse ist der Solr-artige Antwortumschlag der Patent Search API.
type searchResponse struct {
	Response struct {
		NumFound int      `json:"numFound"`
		Docs     []patent `json:"docs"`
	} `json:"response"`
}

// patent ist ein roher USPTO-Patentdatensatz.
type patent struct {
	PatentID        string   `json:"patent_id"`
	PatentTitle     string   `json:"patent_title"`
	PatentAbstract  string   `json:"patent_abstract,omitempty"`
	PatentNumber    string   `json:"patent_number,omitempty"`
	FilingDate      string   `json:"filing_date,omitempty"`
	IssueDate       string   `json:"issue_date,omitempty"`
	InventorName    []string `json:"inventor_name,omitempty"`
	Assignee        string   `json:"assignee,omitempty"`
	IPCCode         string   `json:"ipc_code,omitempty"`
	PrimaryExaminer string   `json:"primary_examiner,omitempty"`
}

// Fetcher ist der Adapter für US-Patente.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
	Client *httpclient.Client
}

// NewFetcher erstellt den PatentsView-Adapter.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger, Client: httpclient.New(httpclient.DefaultOptions("patentsview"), logger)}
}

// Name gibt die Source-ID des Adapters zurück.
func (f *Fetcher) Name() string { return "patentsview" }

// Collect sucht US-Patente seitenweise über start/rows.
func (f *Fetcher) Collect(ctx context.Context, limit int, since *time.Time) ([]*models.RegulatoryUpdate, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	query := f.Config.PatentsViewQuery
	if since != nil {
		query = fmt.Sprintf("%s AND issue_date:[%s TO *]", query, since.Format("2006-01-02"))
	}

	log := f.Logger.With(zap.String("source", f.Name()))
	var updates []*models.RegulatoryUpdate

	maxPages := sources.PageCap(f.Config.MaxPagesPerSource)
	for page := 0; page < maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return updates, err
		}

		endpoint := fmt.Sprintf("%s/v1/patent/search?q=%s&start=%d&rows=%d&fl=%s&wt=json",
			f.Config.PatentsViewBaseURL, url.QueryEscape(query), page*limit, limit,
			"patent_id,patent_title,patent_abstract,filing_date,issue_date,patent_number,inventor_name,assignee,ipc_code,primary_examiner")

		var resp searchResponse
		if err := f.Client.GetJSON(ctx, endpoint, nil, &resp); err != nil {
			return updates, err
		}
		if len(resp.Response.Docs) == 0 {
			break
		}

		for i := range resp.Response.Docs {
			update, err := f.mapPatent(&resp.Response.Docs[i])
			if err != nil {
				log.Warn("Überspringe Patent ohne Titel", zap.Error(err))
				continue
			}
			updates = append(updates, update)
		}

		if len(resp.Response.Docs) < limit {
			break
		}
	}

	log.Info("Collect abgeschlossen", zap.Int("total", len(updates)))
	return updates, nil
}

func (f *Fetcher) mapPatent(p *patent) (*models.RegulatoryUpdate, error) {
	if strings.TrimSpace(p.PatentTitle) == "" {
		return nil, &sources.MappingError{Source: f.Name(), Reason: "patent title missing"}
	}

	number := p.PatentNumber
	if number == "" {
		number = p.PatentID
	}

	abstract := p.PatentAbstract
	if abstract == "" {
		abstract = "Not available"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n\n", p.PatentTitle)
	fmt.Fprintf(&b, "Patent Number: US%s\n", number)
	fmt.Fprintf(&b, "Inventors: %s\n", orUnknown(strings.Join(p.InventorName, "; ")))
	fmt.Fprintf(&b, "Assignee: %s\n", orUnknown(p.Assignee))
	fmt.Fprintf(&b, "IPC Code: %s\n\n", orUnknown(p.IPCCode))
	fmt.Fprintf(&b, "Abstract:\n%s", abstract)

	issued := sources.ParseDate(p.IssueDate)
	if issued == nil {
		issued = sources.ParseDate(p.FilingDate)
	}
	published := time.Now()
	if issued != nil {
		published = *issued
	}

	return &models.RegulatoryUpdate{
		Title:          fmt.Sprintf("USPTO Patent: %s (US%s)", p.PatentTitle, number),
		Description:    b.String(),
		SourceID:       f.Name(),
		SourceURL:      fmt.Sprintf("https://patents.google.com/patent/US%s/en", number),
		Region:         "US",
		Jurisdiction:   "US",
		Category:       "patent",
		UpdateType:     "guidance",
		PublishedDate:  published,
		EffectiveDate:  issued,
		Priority:       2,
		RiskLevel:      models.RiskLow,
		ActionRequired: false,
		ActionType:     models.ActionMonitoring,
		Metadata: sources.MarshalMetadata(map[string]any{
			"patent_id":        p.PatentID,
			"patent_number":    number,
			"inventors":        p.InventorName,
			"assignee":         p.Assignee,
			"ipc_code":         p.IPCCode,
			"primary_examiner": p.PrimaryExaminer,
			"filing_date":      p.FilingDate,
			"issue_date":       p.IssueDate,
		}),
	}, nil
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}
