// Package fda enthält die Adapter für die openFDA Device-APIs:
// 510(k)-Clearances, PMA-Zulassungen, MAUDE-Vorkommnisse und Recalls.
package fda

// OpenFDA ist der gemeinsame openfda-Anreicherungsblock der Device-APIs.
type OpenFDA struct {
	DeviceName                  []string `json:"device_name,omitempty"`
	MedicalSpecialtyDescription string   `json:"medical_specialty_description,omitempty"`
	RegulationNumber            string   `json:"regulation_number,omitempty"`
	DeviceClass                 string   `json:"device_class,omitempty"`
	FEINumber                   []string `json:"fei_number,omitempty"`
	RegistrationNumber          []string `json:"registration_number,omitempty"`
}

// Device510k ist ein roher 510(k)-Datensatz aus /device/510k.json.
type Device510k struct {
	KNumber                 string   `json:"k_number"`
	DeviceName              string   `json:"device_name"`
	Applicant               string   `json:"applicant"`
	Contact                 string   `json:"contact,omitempty"`
	Address1                string   `json:"address_1,omitempty"`
	Address2                string   `json:"address_2,omitempty"`
	City                    string   `json:"city,omitempty"`
	State                   string   `json:"state,omitempty"`
	ZipCode                 string   `json:"zip_code,omitempty"`
	CountryCode             string   `json:"country_code,omitempty"`
	DateReceived            string   `json:"date_received,omitempty"`
	DecisionDate            string   `json:"decision_date,omitempty"`
	Decision                string   `json:"decision,omitempty"`
	ReviewAdvisoryCommittee string   `json:"review_advisory_committee,omitempty"`
	ProductCode             string   `json:"product_code,omitempty"`
	RegulationNumber        string   `json:"regulation_number,omitempty"`
	DeviceClass             string   `json:"device_class,omitempty"`
	ClearanceType           string   `json:"clearance_type,omitempty"`
	ThirdPartyFlag          string   `json:"third_party_flag,omitempty"`
	ExpeditedReviewFlag     string   `json:"expedited_review_flag,omitempty"`
	StatementOrSummary      string   `json:"statement_or_summary,omitempty"`
	OpenFDA                 *OpenFDA `json:"openfda,omitempty"`
}

// PMA ist ein roher Premarket-Approval-Datensatz aus /device/pma.json.
type PMA struct {
	PMANumber         string   `json:"pma_number,omitempty"`
	SupplementNumber  string   `json:"supplement_number,omitempty"`
	Applicant         string   `json:"applicant,omitempty"`
	TradeName         string   `json:"trade_name,omitempty"`
	GenericName       string   `json:"generic_name,omitempty"`
	ProductCode       string   `json:"product_code,omitempty"`
	DateReceived      string   `json:"date_received,omitempty"`
	DecisionDate      string   `json:"decision_date,omitempty"`
	Decision          string   `json:"decision,omitempty"`
	AdvisoryCommittee string   `json:"advisory_committee,omitempty"`
	AOStatement       string   `json:"ao_statement,omitempty"`
	SupplementReason  string   `json:"supplement_reason,omitempty"`
	OpenFDA           *OpenFDA `json:"openfda,omitempty"`
}

// MAUDEEvent ist ein rohes Adverse-Event aus /device/event.json.
type MAUDEEvent struct {
	MDRReportKey             string   `json:"mdr_report_key,omitempty"`
	EventKey                 string   `json:"event_key,omitempty"`
	ReportNumber             string   `json:"report_number,omitempty"`
	ReportSourceCode         string   `json:"report_source_code,omitempty"`
	DateReceived             string   `json:"date_received,omitempty"`
	DateOfEvent              string   `json:"date_of_event,omitempty"`
	DateReport               string   `json:"date_report,omitempty"`
	EventLocation            string   `json:"event_location,omitempty"`
	EventType                string   `json:"event_type,omitempty"`
	DeviceOperator           string   `json:"device_operator,omitempty"`
	DeviceProblemCodes       []string `json:"device_problem_codes,omitempty"`
	PatientProblems          []string `json:"patient_problems,omitempty"`
	EventDescription         string   `json:"event_description,omitempty"`
	ManufacturerNarrative    string   `json:"manufacturer_narrative,omitempty"`
	ManufacturerName         string   `json:"manufacturer_name,omitempty"`
	ManufacturerContactCity  string   `json:"manufacturer_contact_city,omitempty"`
	ManufacturerContactState string   `json:"manufacturer_contact_state,omitempty"`
	RemedialAction           []string `json:"remedial_action,omitempty"`
	DeviceReportProductCode  string   `json:"device_report_product_code,omitempty"`
	DeviceGenericName        string   `json:"device_generic_name,omitempty"`
	BrandName                string   `json:"brand_name,omitempty"`
	ModelNumber              string   `json:"model_number,omitempty"`
	CatalogNumber            string   `json:"catalog_number,omitempty"`
	OpenFDA                  *OpenFDA `json:"openfda,omitempty"`
}

// Recall ist ein roher Recall-Datensatz aus /device/recall.json.
type Recall struct {
	RecallNumber            string   `json:"recall_number,omitempty"`
	ReasonForRecall         string   `json:"reason_for_recall,omitempty"`
	Status                  string   `json:"status,omitempty"`
	DistributionPattern     string   `json:"distribution_pattern,omitempty"`
	ProductDescription      string   `json:"product_description,omitempty"`
	CodeInfo                string   `json:"code_info,omitempty"`
	ProductQuantity         string   `json:"product_quantity,omitempty"`
	RecallInitiationDate    string   `json:"recall_initiation_date,omitempty"`
	TerminationDate         string   `json:"termination_date,omitempty"`
	ReportDate              string   `json:"report_date,omitempty"`
	Classification          string   `json:"classification,omitempty"`
	ProductType             string   `json:"product_type,omitempty"`
	ProductCode             string   `json:"product_code,omitempty"`
	EventID                 string   `json:"event_id,omitempty"`
	RecallingFirm           string   `json:"recalling_firm,omitempty"`
	City                    string   `json:"city,omitempty"`
	State                   string   `json:"state,omitempty"`
	Country                 string   `json:"country,omitempty"`
	VoluntaryMandated       string   `json:"voluntary_mandated,omitempty"`
	InitialFirmNotification string   `json:"initial_firm_notification,omitempty"`
	ResEventNumber          string   `json:"res_event_number,omitempty"`
	OpenFDA                 *OpenFDA `json:"openfda,omitempty"`
}

// resultsEnvelope ist der gemeinsame openFDA-Antwortumschlag.
type resultsEnvelope[T any] struct {
	Meta struct {
		Results struct {
			Skip  int `json:"skip"`
			Limit int `json:"limit"`
			Total int `json:"total"`
		} `json:"results"`
	} `json:"meta"`
	Results []T `json:"results"`
}
