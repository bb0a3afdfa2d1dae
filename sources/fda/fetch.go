package fda

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"regintel/config"
	"regintel/models"
	"regintel/sources"
	"regintel/sources/httpclient"
)

var yyyymmddRE = regexp.MustCompile(`^\d{8}$`)

// fetcher bündelt die gemeinsame Infrastruktur der vier FDA-Adapter.
type fetcher struct {
	Config *config.Config
	Logger *zap.Logger
	Client *httpclient.Client
}

func newFetcher(cfg *config.Config, logger *zap.Logger, name string) fetcher {
	opts := httpclient.DefaultOptions(name)
	opts.Delay = 250 * time.Millisecond
	return fetcher{Config: cfg, Logger: logger, Client: httpclient.New(opts, logger)}
}

// endpoint baut eine openFDA-URL mit Paginierung, Sortierung und optionalem
// since-Filter auf dem angegebenen Datumsfeld.
func (f *fetcher) endpoint(path, sortField string, limit, skip int, since *time.Time) string {
	url := fmt.Sprintf("%s%s?limit=%d&skip=%d&sort=%s:desc", f.Config.FDABaseURL, path, limit, skip, sortField)
	if since != nil {
		url += fmt.Sprintf("&search=%s:[%s+TO+NOW]", sortField, since.Format("2006-01-02"))
	}
	if f.Config.FDAAPIKey != "" {
		url += "&api_key=" + f.Config.FDAAPIKey
	}
	return url
}

// collectPaged treibt die Paginierung für eine openFDA-Collection: Seite
// abrufen, Datensätze mappen, kaputte Datensätze überspringen, Abbruch bei
// leerer Seite, erreichtem Seiten-Cap oder Context-Abbruch.
func collectPaged[T any](ctx context.Context, f *fetcher, sourceID, path, sortField string,
	limit int, since *time.Time, mapFn func(*T) (*models.RegulatoryUpdate, error)) ([]*models.RegulatoryUpdate, error) {

	if limit <= 0 || limit > 100 {
		limit = 100
	}

	log := f.Logger.With(zap.String("source", sourceID))
	var updates []*models.RegulatoryUpdate

	maxPages := sources.PageCap(f.Config.MaxPagesPerSource)
	for page := 0; page < maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return updates, err
		}

		var envelope resultsEnvelope[T]
		url := f.endpoint(path, sortField, limit, page*limit, since)
		if err := f.Client.GetJSON(ctx, url, nil, &envelope); err != nil {
			return updates, err
		}
		if len(envelope.Results) == 0 {
			break
		}

		for i := range envelope.Results {
			update, err := mapFn(&envelope.Results[i])
			if err != nil {
				log.Warn("Überspringe kaputten Datensatz", zap.Error(err))
				continue
			}
			updates = append(updates, update)
		}

		log.Debug("Seite verarbeitet", zap.Int("page", page+1), zap.Int("items", len(envelope.Results)))
		if len(envelope.Results) < limit {
			break
		}
	}

	log.Info("Collect abgeschlossen", zap.Int("total", len(updates)))
	return updates, nil
}

// parseFDADate parst FDA-Datumsformate: kompaktes YYYYMMDD zuerst, sonst
// toleranter Fallback. Liefert nil statt Fehler.
func parseFDADate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if yyyymmddRE.MatchString(raw) {
		t, err := time.Parse("20060102", raw)
		if err != nil {
			return nil
		}
		return &t
	}
	return sources.ParseDate(raw)
}

// orNA liefert "N/A" für leere Werte in Beschreibungstexten.
func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

// ---------------------------------------------------------------------------
// 510(k)

// Source510k ist der Adapter für FDA 510(k)-Clearances.
type Source510k struct {
	fetcher
}

// New510k erstellt den 510(k)-Adapter.
func New510k(cfg *config.Config, logger *zap.Logger) *Source510k {
	return &Source510k{newFetcher(cfg, logger, "fda_510k")}
}

// Name gibt die Source-ID des Adapters zurück.
func (s *Source510k) Name() string { return "fda_510k_complete" }

// Collect holt 510(k)-Clearances inklusive aller Metadaten ab.
func (s *Source510k) Collect(ctx context.Context, limit int, since *time.Time) ([]*models.RegulatoryUpdate, error) {
	return collectPaged(ctx, &s.fetcher, s.Name(), "/device/510k.json", "decision_date", limit, since, s.mapDevice)
}

func (s *Source510k) mapDevice(d *Device510k) (*models.RegulatoryUpdate, error) {
	name := d.DeviceName
	if name == "" && d.OpenFDA != nil && len(d.OpenFDA.DeviceName) > 0 {
		name = d.OpenFDA.DeviceName[0]
	}
	if name == "" {
		return nil, &sources.MappingError{Source: s.Name(), Reason: "device name missing"}
	}

	title := fmt.Sprintf("FDA 510(k): %s", name)
	if d.KNumber != "" {
		title += fmt.Sprintf(" (%s)", d.KNumber)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Device: %s\n", name)
	fmt.Fprintf(&b, "K-Number: %s\n", orNA(d.KNumber))
	fmt.Fprintf(&b, "Applicant: %s\n", orNA(d.Applicant))
	fmt.Fprintf(&b, "Address: %s\n\n", orNA(joinNonEmpty(d.Address1, d.Address2, d.City, d.State, d.ZipCode, d.CountryCode)))
	fmt.Fprintf(&b, "Decision: %s (%s)\n", orNA(d.Decision), orNA(d.DecisionDate))
	fmt.Fprintf(&b, "Device Class: %s\n", orNA(deviceClass(d)))
	fmt.Fprintf(&b, "Product Code: %s\n", orNA(d.ProductCode))
	fmt.Fprintf(&b, "Advisory Committee: %s\n", orNA(d.ReviewAdvisoryCommittee))
	fmt.Fprintf(&b, "Expedited Review: %s\n", yesNo(d.ExpeditedReviewFlag == "Y"))
	fmt.Fprintf(&b, "Clearance Type: %s\n\n", orNA(d.ClearanceType))
	fmt.Fprintf(&b, "Statement/Summary: %s", orNA(d.StatementOrSummary))

	decision := parseFDADate(d.DecisionDate)
	published := time.Now()
	if decision != nil {
		published = *decision
	}

	expedited := d.ExpeditedReviewFlag == "Y"
	actionType := models.ActionMonitoring
	if expedited {
		actionType = models.ActionImmediate
	}

	return &models.RegulatoryUpdate{
		Title:          title,
		Description:    b.String(),
		SourceID:       s.Name(),
		SourceURL:      fmt.Sprintf("https://www.accessdata.fda.gov/scripts/cdrh/cfdocs/cfpmn/pmn.cfm?ID=%s", d.KNumber),
		Region:         "US",
		Jurisdiction:   "USA",
		Category:       "medical_device_clearance",
		UpdateType:     "approval",
		DeviceType:     name,
		PublishedDate:  published,
		EffectiveDate:  decision,
		Priority:       priority510k(d),
		RiskLevel:      risk510k(d),
		ActionRequired: expedited,
		ActionType:     actionType,
		Metadata: sources.MarshalMetadata(map[string]any{
			"k_number": d.KNumber,
			"contact":  d.Contact,
			"address": map[string]any{
				"line1": d.Address1, "line2": d.Address2,
				"city": d.City, "state": d.State, "zip": d.ZipCode, "country": d.CountryCode,
			},
			"review": map[string]any{
				"advisory_committee": d.ReviewAdvisoryCommittee,
				"third_party":        d.ThirdPartyFlag,
				"expedited":          d.ExpeditedReviewFlag,
				"clearance_type":     d.ClearanceType,
			},
			"openfda": d.OpenFDA,
		}),
	}, nil
}

func deviceClass(d *Device510k) string {
	if d.DeviceClass != "" {
		return d.DeviceClass
	}
	if d.OpenFDA != nil {
		return d.OpenFDA.DeviceClass
	}
	return ""
}

// priority510k: Klasse III → 5, Klasse II → 3, Expedited-Flag allein → 4,
// sonst 2. Totale Funktion über alle Eingaben.
func priority510k(d *Device510k) int {
	switch deviceClass(d) {
	case "3", "III":
		return 5
	case "2", "II":
		return 3
	}
	if d.ExpeditedReviewFlag == "Y" {
		return 4
	}
	return 2
}

func risk510k(d *Device510k) string {
	switch deviceClass(d) {
	case "3", "III":
		return models.RiskHigh
	case "2", "II":
		return models.RiskMedium
	}
	return models.RiskLow
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// ---------------------------------------------------------------------------
// PMA

// SourcePMA ist der Adapter für FDA Premarket Approvals.
type SourcePMA struct {
	fetcher
}

// NewPMA erstellt den PMA-Adapter.
func NewPMA(cfg *config.Config, logger *zap.Logger) *SourcePMA {
	return &SourcePMA{newFetcher(cfg, logger, "fda_pma")}
}

// Name gibt die Source-ID des Adapters zurück.
func (s *SourcePMA) Name() string { return "fda_pma" }

// Collect holt PMA-Zulassungen ab.
func (s *SourcePMA) Collect(ctx context.Context, limit int, since *time.Time) ([]*models.RegulatoryUpdate, error) {
	return collectPaged(ctx, &s.fetcher, s.Name(), "/device/pma.json", "decision_date", limit, since, s.mapPMA)
}

func (s *SourcePMA) mapPMA(p *PMA) (*models.RegulatoryUpdate, error) {
	name := p.TradeName
	if name == "" {
		name = p.GenericName
	}
	if name == "" {
		return nil, &sources.MappingError{Source: s.Name(), Reason: "trade and generic name missing"}
	}

	number := p.PMANumber
	if p.SupplementNumber != "" {
		number += "-" + p.SupplementNumber
	}
	title := fmt.Sprintf("FDA PMA: %s (%s)", name, number)

	var b strings.Builder
	fmt.Fprintf(&b, "PMA Number: %s\n", orNA(number))
	fmt.Fprintf(&b, "Trade Name: %s\n", orNA(p.TradeName))
	fmt.Fprintf(&b, "Generic Name: %s\n", orNA(p.GenericName))
	fmt.Fprintf(&b, "Applicant: %s\n\n", orNA(p.Applicant))
	fmt.Fprintf(&b, "Decision: %s (%s)\n", orNA(p.Decision), orNA(p.DecisionDate))
	fmt.Fprintf(&b, "Product Code: %s\n", orNA(p.ProductCode))
	fmt.Fprintf(&b, "Advisory Committee: %s\n\n", orNA(p.AdvisoryCommittee))
	fmt.Fprintf(&b, "Applicant Statement: %s\n", orNA(p.AOStatement))
	fmt.Fprintf(&b, "Supplement Reason: %s", orNA(p.SupplementReason))

	decision := parseFDADate(p.DecisionDate)
	published := time.Now()
	if decision != nil {
		published = *decision
	}

	return &models.RegulatoryUpdate{
		Title:         title,
		Description:   b.String(),
		SourceID:      s.Name(),
		SourceURL:     fmt.Sprintf("https://www.accessdata.fda.gov/scripts/cdrh/cfdocs/cfpma/pma.cfm?id=%s", p.PMANumber),
		Region:        "US",
		Jurisdiction:  "USA",
		Category:      "medical_device_approval",
		UpdateType:    "approval",
		DeviceType:    name,
		PublishedDate: published,
		EffectiveDate: decision,
		// PMA betrifft per Definition Klasse-III-Geräte
		Priority:       5,
		RiskLevel:      models.RiskHigh,
		ActionRequired: true,
		ActionType:     models.ActionImmediate,
		Metadata: sources.MarshalMetadata(map[string]any{
			"pma_number":         p.PMANumber,
			"supplement_number":  p.SupplementNumber,
			"supplement_reason":  p.SupplementReason,
			"ao_statement":       p.AOStatement,
			"advisory_committee": p.AdvisoryCommittee,
			"openfda":            p.OpenFDA,
		}),
	}, nil
}

// ---------------------------------------------------------------------------
// MAUDE

// SourceMAUDE ist der Adapter für MAUDE Adverse Events.
type SourceMAUDE struct {
	fetcher
}

// NewMAUDE erstellt den MAUDE-Adapter.
func NewMAUDE(cfg *config.Config, logger *zap.Logger) *SourceMAUDE {
	return &SourceMAUDE{newFetcher(cfg, logger, "fda_maude")}
}

// Name gibt die Source-ID des Adapters zurück.
func (s *SourceMAUDE) Name() string { return "fda_maude" }

// Collect holt Adverse Events ab.
func (s *SourceMAUDE) Collect(ctx context.Context, limit int, since *time.Time) ([]*models.RegulatoryUpdate, error) {
	return collectPaged(ctx, &s.fetcher, s.Name(), "/device/event.json", "date_received", limit, since, s.mapEvent)
}

func (s *SourceMAUDE) mapEvent(e *MAUDEEvent) (*models.RegulatoryUpdate, error) {
	device := e.DeviceGenericName
	if device == "" {
		device = e.BrandName
	}
	if device == "" {
		return nil, &sources.MappingError{Source: s.Name(), Reason: "device name missing"}
	}

	reportID := e.ReportNumber
	if reportID == "" {
		reportID = e.MDRReportKey
	}
	title := fmt.Sprintf("FDA MAUDE: %s Adverse Event (%s)", device, reportID)

	var b strings.Builder
	fmt.Fprintf(&b, "ADVERSE EVENT REPORT\n\n")
	fmt.Fprintf(&b, "Report Number: %s\n", orNA(reportID))
	fmt.Fprintf(&b, "Event Date: %s\n", orNA(e.DateOfEvent))
	fmt.Fprintf(&b, "Event Type: %s\n", orNA(e.EventType))
	fmt.Fprintf(&b, "Event Location: %s\n\n", orNA(e.EventLocation))
	fmt.Fprintf(&b, "Device: %s (Brand: %s, Model: %s)\n", orNA(e.DeviceGenericName), orNA(e.BrandName), orNA(e.ModelNumber))
	fmt.Fprintf(&b, "Operator: %s\n\n", orNA(e.DeviceOperator))
	fmt.Fprintf(&b, "Device Problems: %s\n", orNA(strings.Join(e.DeviceProblemCodes, ", ")))
	fmt.Fprintf(&b, "Patient Problems: %s\n\n", orNA(strings.Join(e.PatientProblems, ", ")))
	fmt.Fprintf(&b, "Event Description:\n%s\n\n", orNA(e.EventDescription))
	fmt.Fprintf(&b, "Manufacturer: %s (%s, %s)\n", orNA(e.ManufacturerName), orNA(e.ManufacturerContactCity), orNA(e.ManufacturerContactState))
	fmt.Fprintf(&b, "Remedial Actions: %s", orNA(strings.Join(e.RemedialAction, ", ")))

	published := time.Now()
	if t := parseFDADate(e.DateReceived); t != nil {
		published = *t
	} else if t := parseFDADate(e.DateReport); t != nil {
		published = *t
	}

	hasRemedial := len(e.RemedialAction) > 0
	actionType := models.ActionMonitoring
	if hasRemedial {
		actionType = models.ActionImmediate
	}

	return &models.RegulatoryUpdate{
		Title:          title,
		Description:    b.String(),
		SourceID:       s.Name(),
		SourceURL:      fmt.Sprintf("https://www.accessdata.fda.gov/scripts/cdrh/cfdocs/cfmaude/detail.cfm?mdrfoi__id=%s", e.MDRReportKey),
		Region:         "US",
		Jurisdiction:   "USA",
		Category:       "adverse_event",
		UpdateType:     "alert",
		DeviceType:     device,
		PublishedDate:  published,
		EffectiveDate:  parseFDADate(e.DateOfEvent),
		Priority:       priorityMAUDE(e),
		RiskLevel:      riskMAUDE(e),
		ActionRequired: hasRemedial,
		ActionType:     actionType,
		Metadata: sources.MarshalMetadata(map[string]any{
			"mdr_report_key": e.MDRReportKey,
			"event_key":      e.EventKey,
			"report_number":  e.ReportNumber,
			"event_type":     e.EventType,
			"report_source":  e.ReportSourceCode,
			"device": map[string]any{
				"generic_name":   e.DeviceGenericName,
				"brand_name":     e.BrandName,
				"model_number":   e.ModelNumber,
				"catalog_number": e.CatalogNumber,
			},
			"problems": map[string]any{
				"device_problems":  e.DeviceProblemCodes,
				"patient_problems": e.PatientProblems,
			},
			"remedial_action": e.RemedialAction,
			"openfda":         e.OpenFDA,
		}),
	}, nil
}

// priorityMAUDE: Todesfälle → 5, Verletzungen oder Patientenprobleme → 4,
// Remedial Action → 3, sonst 2.
func priorityMAUDE(e *MAUDEEvent) int {
	eventType := strings.ToLower(e.EventType)
	if strings.Contains(eventType, "death") {
		return 5
	}
	if strings.Contains(eventType, "injury") || len(e.PatientProblems) > 0 {
		return 4
	}
	if len(e.RemedialAction) > 0 {
		return 3
	}
	return 2
}

func riskMAUDE(e *MAUDEEvent) string {
	eventType := strings.ToLower(e.EventType)
	if strings.Contains(eventType, "death") || strings.Contains(eventType, "injury") || len(e.PatientProblems) > 0 {
		return models.RiskHigh
	}
	return models.RiskLow
}

// ---------------------------------------------------------------------------
// Recalls

// SourceRecall ist der Adapter für Device-Recalls.
type SourceRecall struct {
	fetcher
}

// NewRecall erstellt den Recall-Adapter.
func NewRecall(cfg *config.Config, logger *zap.Logger) *SourceRecall {
	return &SourceRecall{newFetcher(cfg, logger, "fda_recall")}
}

// Name gibt die Source-ID des Adapters zurück.
func (s *SourceRecall) Name() string { return "fda_recall_detailed" }

// Collect holt Recalls inklusive Klassifizierung ab.
func (s *SourceRecall) Collect(ctx context.Context, limit int, since *time.Time) ([]*models.RegulatoryUpdate, error) {
	return collectPaged(ctx, &s.fetcher, s.Name(), "/device/recall.json", "recall_initiation_date", limit, since, s.mapRecall)
}

func (s *SourceRecall) mapRecall(r *Recall) (*models.RegulatoryUpdate, error) {
	product := r.ProductDescription
	if product == "" {
		return nil, &sources.MappingError{Source: s.Name(), Reason: "product description missing"}
	}
	// Kürzen auf Runen-Grenze, ein zerschnittenes Multibyte-Zeichen wäre kein gültiges UTF-8 mehr.
	if r := []rune(product); len(r) > 100 {
		product = string(r[:100])
	}

	title := fmt.Sprintf("FDA Recall %s: %s (%s)", r.Classification, product, r.RecallNumber)
	if r.Classification == "" {
		title = fmt.Sprintf("FDA Recall: %s (%s)", product, r.RecallNumber)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recall Number: %s\n", orNA(r.RecallNumber))
	fmt.Fprintf(&b, "Classification: %s\n", orNA(r.Classification))
	fmt.Fprintf(&b, "Status: %s\n\n", orNA(r.Status))
	fmt.Fprintf(&b, "Product: %s\n", orNA(r.ProductDescription))
	fmt.Fprintf(&b, "Recalling Firm: %s\n", orNA(joinNonEmpty(r.RecallingFirm, r.City, r.State, r.Country)))
	fmt.Fprintf(&b, "Reason for Recall:\n%s\n\n", orNA(r.ReasonForRecall))
	fmt.Fprintf(&b, "Distribution: %s\n", orNA(r.DistributionPattern))
	fmt.Fprintf(&b, "Quantity: %s\n", orNA(r.ProductQuantity))
	fmt.Fprintf(&b, "Voluntary/Mandated: %s", orNA(r.VoluntaryMandated))

	initiation := parseFDADate(r.RecallInitiationDate)
	published := time.Now()
	if initiation != nil {
		published = *initiation
	}

	actionType := models.ActionPlanned
	if r.Classification == "Class I" {
		actionType = models.ActionImmediate
	}

	return &models.RegulatoryUpdate{
		Title:          title,
		Description:    b.String(),
		SourceID:       s.Name(),
		SourceURL:      fmt.Sprintf("https://www.accessdata.fda.gov/scripts/cdrh/cfdocs/cfres/res.cfm?id=%s", firstNonEmpty(r.ResEventNumber, r.RecallNumber)),
		Region:         "US",
		Jurisdiction:   "USA",
		Category:       "device_recall",
		UpdateType:     "alert",
		DeviceType:     r.ProductDescription,
		PublishedDate:  published,
		EffectiveDate:  initiation,
		Priority:       priorityRecall(r.Classification),
		RiskLevel:      riskRecall(r.Classification),
		ActionRequired: r.Classification == "Class I" || r.Classification == "Class II",
		ActionType:     actionType,
		Metadata: sources.MarshalMetadata(map[string]any{
			"recall_number":      r.RecallNumber,
			"classification":     r.Classification,
			"status":             r.Status,
			"voluntary_mandated": r.VoluntaryMandated,
			"event_id":           r.EventID,
			"res_event_number":   r.ResEventNumber,
			"distribution": map[string]any{
				"pattern":  r.DistributionPattern,
				"quantity": r.ProductQuantity,
			},
			"firm": map[string]any{
				"name": r.RecallingFirm, "city": r.City, "state": r.State, "country": r.Country,
			},
			"dates": map[string]any{
				"initiation":  r.RecallInitiationDate,
				"report":      r.ReportDate,
				"termination": r.TerminationDate,
			},
			"openfda": r.OpenFDA,
		}),
	}, nil
}

// priorityRecall: Class I lebensbedrohlich → 5, Class II → 4, Class III → 2,
// fehlende Klassifizierung → 3.
func priorityRecall(classification string) int {
	switch classification {
	case "Class I":
		return 5
	case "Class II":
		return 4
	case "Class III":
		return 2
	}
	return 3
}

func riskRecall(classification string) string {
	switch classification {
	case "Class I":
		return models.RiskHigh
	case "Class II":
		return models.RiskMedium
	case "Class III":
		return models.RiskLow
	}
	return models.RiskMedium
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
