package espacenet

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

const pageSize = 50

// Fetcher ist der Adapter für europäische und internationale Patente.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
	Client *httpclient.Client
}

// NewFetcher erstellt den Espacenet-Adapter.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	opts := httpclient.DefaultOptions("espacenet")
	opts.Delay = 200 * time.Millisecond
	return &Fetcher{Config: cfg, Logger: logger, Client: httpclient.New(opts, logger)}
}

// Name gibt die Source-ID des Adapters zurück.
func (f *Fetcher) Name() string { return "espacenet" }

// Collect sucht Patente via CQL und paginiert über den Range-Parameter.
// since wird als publicationDate-Einschränkung in die Query übernommen.
func (f *Fetcher) Collect(ctx context.Context, limit int, since *time.Time) ([]*models.RegulatoryUpdate, error) {
	if limit <= 0 || limit > pageSize {
		limit = pageSize
	}

	query := f.Config.EspacenetQuery
	if since != nil {
		query = fmt.Sprintf("publicationDate within [%s %s]",
			since.Format("20060102"), time.Now().Format("20060102"))
	}

	log := f.Logger.With(zap.String("source", f.Name()))
	var updates []*models.RegulatoryUpdate

	maxPages := sources.PageCap(f.Config.MaxPagesPerSource)
	for page := 0; page < maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return updates, err
		}

		endpoint := fmt.Sprintf("%s/patent/search?q=%s&Range=%d-%d&Format=json",
			f.Config.EspacenetBaseURL, url.QueryEscape(query), page*limit+1, (page+1)*limit)

		var resp searchResponse
		if err := f.Client.GetJSON(ctx, endpoint, nil, &resp); err != nil {
			return updates, err
		}
		patents := resp.WorldPatentData.Result.Patents
		if len(patents) == 0 {
			break
		}

		for i := range patents {
			update, err := f.mapPatent(&patents[i])
			if err != nil {
				log.Warn("Überspringe Patent ohne Titel", zap.Error(err))
				continue
			}
			updates = append(updates, update)
		}

		if len(patents) < limit {
			break
		}
	}

	log.Info("Collect abgeschlossen", zap.Int("total", len(updates)))
	return updates, nil
}

func (f *Fetcher) mapPatent(p *patentDocument) (*models.RegulatoryUpdate, error) {
	if len(p.PatentDocument) == 0 {
		return nil, &sources.MappingError{Source: f.Name(), Reason: "empty patent document"}
	}
	doc := &p.PatentDocument[0]

	var bib bibliographicData
	if len(doc.BibliographicData) > 0 {
		bib = doc.BibliographicData[0]
	}

	title := firstText(bib.InventionTitle)
	if title == "" {
		return nil, &sources.MappingError{Source: f.Name(), Reason: "invention title missing"}
	}

	var pubRef documentID
	if len(bib.PublicationReference) > 0 && len(bib.PublicationReference[0].DocumentID) > 0 {
		pubRef = bib.PublicationReference[0].DocumentID[0]
	}

	country := first(pubRef.Country)
	if country == "" {
		country = "EP"
	}
	patentNumber := country + first(pubRef.DocNumber)

	inventors := joinNames(bib.Inventors, func(n nameBlock) []textBlock { return n.InventorName })
	applicants := joinNames(bib.Applicants, func(n nameBlock) []textBlock { return n.ApplicantName })
	ipc := firstText(bib.IPC)
	abstract := ""
	if len(doc.Abstract) > 0 {
		abstract = strings.Join(doc.Abstract[0].Text, "\n")
	}
	if abstract == "" {
		abstract = "Not available"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n\n", title)
	fmt.Fprintf(&b, "Patent Number: %s\n", patentNumber)
	fmt.Fprintf(&b, "Inventors: %s\n", orUnknown(inventors))
	fmt.Fprintf(&b, "Applicants: %s\n", orUnknown(applicants))
	fmt.Fprintf(&b, "IPC Classification: %s\n\n", orUnknown(ipc))
	fmt.Fprintf(&b, "Abstract:\n%s", abstract)

	pubDate := sources.ParseDate(first(pubRef.Date))
	published := time.Now()
	if pubDate != nil {
		published = *pubDate
	}

	jurisdiction := country
	if jurisdiction == "" {
		jurisdiction = "International"
	}

	return &models.RegulatoryUpdate{
		Title:          fmt.Sprintf("Espacenet: %s (%s)", title, patentNumber),
		Description:    b.String(),
		SourceID:       f.Name(),
		SourceURL:      fmt.Sprintf("https://patents.google.com/patent/%s/en", patentNumber),
		Region:         "EU",
		Jurisdiction:   jurisdiction,
		Category:       "patent",
		UpdateType:     "guidance",
		PublishedDate:  published,
		EffectiveDate:  sources.ParseDate(firstText(bib.FilingDate)),
		Priority:       2,
		RiskLevel:      models.RiskLow,
		ActionRequired: false,
		ActionType:     models.ActionMonitoring,
		Metadata: sources.MarshalMetadata(map[string]any{
			"patent_authority": country,
			"patent_number":    patentNumber,
			"patent_applicant": applicants,
			"patent_inventor":  inventors,
			"patent_ipc":       ipc,
			"source_system":    "Espacenet OPS",
		}),
	}, nil
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func firstText(blocks []textBlock) string {
	if len(blocks) == 0 || len(blocks[0].Text) == 0 {
		return ""
	}
	return blocks[0].Text[0]
}

func joinNames(blocks []nameBlock, pick func(nameBlock) []textBlock) string {
	var names []string
	for _, b := range blocks {
		if name := firstText(pick(b)); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, "; ")
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}
