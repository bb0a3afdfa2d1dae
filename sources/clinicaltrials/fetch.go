package clinicaltrials

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

// Suchbegriff für Device-Studien
const deviceQuery = `device OR implant OR diagnostic OR IVD OR "medical device"`

// euLaender für die Regions-Ableitung aus Studienstandorten.
var euLaender = map[string]bool{
	"Germany": true, "France": true, "Italy": true, "Spain": true, "United Kingdom": true,
}

// Fetcher ist der Adapter für Device-Studien auf ClinicalTrials.gov.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
	Client *httpclient.Client
}

// NewFetcher erstellt den ClinicalTrials-Adapter.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	opts := httpclient.DefaultOptions("clinicaltrials")
	opts.Delay = time.Second // be respectful
	return &Fetcher{Config: cfg, Logger: logger, Client: httpclient.New(opts, logger)}
}

// Name gibt die Source-ID des Adapters zurück.
func (f *Fetcher) Name() string { return "clinicaltrials_gov" }

// Collect holt Device-Studien ab; paginiert über pageToken bis eine Seite
// leer bleibt oder das Seiten-Cap erreicht ist.
func (f *Fetcher) Collect(ctx context.Context, limit int, since *time.Time) ([]*models.RegulatoryUpdate, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	log := f.Logger.With(zap.String("source", f.Name()))
	var updates []*models.RegulatoryUpdate
	pageToken := ""

	maxPages := sources.PageCap(f.Config.MaxPagesPerSource)
	for page := 0; page < maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return updates, err
		}

		endpoint := fmt.Sprintf("%s/studies?query.term=%s&filter.advanced=AREA[StudyType]DEVICE&pageSize=%d&sort=LastUpdatePostDate:desc&format=json",
			f.Config.ClinicalTrialsBaseURL, url.QueryEscape(deviceQuery), limit)
		if since != nil {
			endpoint += "&filter.lastUpdatePostDate=" + since.Format("2006-01-02")
		}
		if pageToken != "" {
			endpoint += "&pageToken=" + url.QueryEscape(pageToken)
		}

		var resp studiesResponse
		if err := f.Client.GetJSON(ctx, endpoint, nil, &resp); err != nil {
			return updates, err
		}
		if len(resp.Studies) == 0 {
			break
		}

		for i := range resp.Studies {
			update, err := f.mapTrial(&resp.Studies[i].ProtocolSection)
			if err != nil {
				log.Warn("Überspringe Studie ohne ID oder Titel", zap.Error(err))
				continue
			}
			updates = append(updates, update)
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	log.Info("Collect abgeschlossen", zap.Int("total", len(updates)))
	return updates, nil
}

func (f *Fetcher) mapTrial(trial *protocolSection) (*models.RegulatoryUpdate, error) {
	id := trial.IdentificationModule.NCTID
	title := trial.IdentificationModule.BriefTitle
	if title == "" {
		title = trial.IdentificationModule.OfficialTitle
	}
	if id == "" || title == "" {
		return nil, &sources.MappingError{Source: f.Name(), Reason: "nct id or title missing"}
	}

	var devices []string
	for _, iv := range trial.ArmsInterventionsModule.Interventions {
		if iv.Type == "Device" || iv.Type == "Diagnostic Test" {
			devices = append(devices, iv.Name)
		}
	}

	var outcomes []string
	for _, o := range trial.OutcomesModule.PrimaryOutcomes {
		outcomes = append(outcomes, o.Measure)
	}

	status := trial.StatusModule.OverallStatus
	sponsor := trial.SponsorCollaboratorsModule.LeadSponsor.Name
	if sponsor == "" {
		sponsor = "Unknown"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "NCT ID: %s\n", id)
	fmt.Fprintf(&b, "Status: %s\n", orNA(status))
	fmt.Fprintf(&b, "Sponsor: %s\n\n", sponsor)
	fmt.Fprintf(&b, "Conditions: %s\n", orNA(strings.Join(trial.ConditionsModule.Conditions, ", ")))
	fmt.Fprintf(&b, "Devices/Interventions: %s\n", orNA(strings.Join(devices, ", ")))
	fmt.Fprintf(&b, "Enrollment: %d participants\n\n", trial.DesignModule.EnrollmentInfo.Count)
	fmt.Fprintf(&b, "Start: %s\n", orNA(trial.StatusModule.StartDateStruct.Date))
	fmt.Fprintf(&b, "Completion: %s\n\n", orNA(trial.StatusModule.CompletionDateStruct.Date))
	fmt.Fprintf(&b, "Primary Outcomes:\n%s\n\n", orNA(strings.Join(outcomes, "; ")))
	fmt.Fprintf(&b, "Brief Summary:\n%s", orNA(trial.DescriptionModule.BriefSummary))

	published := time.Now()
	if t := sources.ParseDate(trial.StatusModule.LastUpdatePostDateStruct.Date); t != nil {
		published = *t
	}

	return &models.RegulatoryUpdate{
		Title:          "Clinical Trial: " + title,
		Description:    b.String(),
		SourceID:       f.Name(),
		SourceURL:      "https://clinicaltrials.gov/study/" + id,
		Region:         f.determineRegion(trial),
		Jurisdiction:   f.determineJurisdiction(trial),
		Category:       "clinical_trial",
		UpdateType:     "guidance",
		DeviceType:     strings.Join(devices, ", "),
		PublishedDate:  published,
		EffectiveDate:  sources.ParseDate(trial.StatusModule.StartDateStruct.Date),
		Priority:       priorityForStatus(status),
		RiskLevel:      riskForPhases(trial.DesignModule.Phases),
		ActionRequired: false,
		ActionType:     models.ActionMonitoring,
		Metadata: sources.MarshalMetadata(map[string]any{
			"nct_id":        id,
			"study_type":    trial.DesignModule.StudyType,
			"phase":         trial.DesignModule.Phases,
			"enrollment":    trial.DesignModule.EnrollmentInfo,
			"sponsor":       trial.SponsorCollaboratorsModule,
			"interventions": trial.ArmsInterventionsModule.Interventions,
			"outcomes":      trial.OutcomesModule.PrimaryOutcomes,
			"locations":     trial.ContactsLocationsModule.Locations,
			"eligibility":   trial.EligibilityModule.EligibilityCriteria,
		}),
	}, nil
}

func (f *Fetcher) determineRegion(trial *protocolSection) string {
	countries := uniqueCountries(trial)
	if len(countries) != 1 {
		return "GLOBAL"
	}
	switch {
	case countries[0] == "United States":
		return "US"
	case euLaender[countries[0]]:
		return "EU"
	}
	return "GLOBAL"
}

func (f *Fetcher) determineJurisdiction(trial *protocolSection) string {
	countries := uniqueCountries(trial)
	if len(countries) == 0 {
		return "GLOBAL"
	}
	return strings.Join(countries, ", ")
}

func uniqueCountries(trial *protocolSection) []string {
	seen := map[string]bool{}
	var countries []string
	for _, loc := range trial.ContactsLocationsModule.Locations {
		if loc.Country == "" || seen[loc.Country] {
			continue
		}
		seen[loc.Country] = true
		countries = append(countries, loc.Country)
	}
	return countries
}

// priorityForStatus ist eine totale Status-Tabelle; unbekannte Stati → 2.
func priorityForStatus(status string) int {
	statusMap := map[string]int{
		"Recruiting":              4,
		"Active, not recruiting":  3,
		"Enrolling by invitation": 4,
		"Completed":               2,
		"Terminated":              5,
		"Suspended":               5,
		"Withdrawn":               3,
	}
	if p, ok := statusMap[status]; ok {
		return p
	}
	return 2
}

// riskForPhases: frühe Phasen sind am riskantesten.
func riskForPhases(phases []string) string {
	for _, p := range phases {
		if p == "Phase 1" || p == "Early Phase 1" {
			return models.RiskHigh
		}
	}
	for _, p := range phases {
		if p == "Phase 2" {
			return models.RiskMedium
		}
	}
	return models.RiskLow
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
