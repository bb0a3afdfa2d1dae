// Package clinicaltrials enthält den Adapter für die ClinicalTrials.gov v2 API.
package clinicaltrials

// studiesResponse ist der Antwortumschlag von /studies.
type studiesResponse struct {
	Studies       []study `json:"studies"`
	NextPageToken string  `json:"nextPageToken"`
}

type study struct {
	ProtocolSection protocolSection `json:"protocolSection"`
}

// protocolSection bildet die für uns relevanten Module der v2-Antwort ab.
type protocolSection struct {
	IdentificationModule struct {
		NCTID         string `json:"nctId"`
		BriefTitle    string `json:"briefTitle"`
		OfficialTitle string `json:"officialTitle"`
	} `json:"identificationModule"`

	StatusModule struct {
		OverallStatus               string     `json:"overallStatus"`
		StartDateStruct             dateStruct `json:"startDateStruct"`
		PrimaryCompletionDateStruct dateStruct `json:"primaryCompletionDateStruct"`
		CompletionDateStruct        dateStruct `json:"completionDateStruct"`
		LastUpdatePostDateStruct    dateStruct `json:"lastUpdatePostDateStruct"`
	} `json:"statusModule"`

	DescriptionModule struct {
		BriefSummary        string `json:"briefSummary"`
		DetailedDescription string `json:"detailedDescription"`
	} `json:"descriptionModule"`

	DesignModule struct {
		StudyType      string   `json:"studyType"`
		Phases         []string `json:"phases"`
		EnrollmentInfo struct {
			Count int `json:"count"`
		} `json:"enrollmentInfo"`
	} `json:"designModule"`

	ArmsInterventionsModule struct {
		Interventions []intervention `json:"interventions"`
	} `json:"armsInterventionsModule"`

	SponsorCollaboratorsModule struct {
		LeadSponsor struct {
			Name  string `json:"name"`
			Class string `json:"class"`
		} `json:"leadSponsor"`
	} `json:"sponsorCollaboratorsModule"`

	ConditionsModule struct {
		Conditions []string `json:"conditions"`
	} `json:"conditionsModule"`

	ContactsLocationsModule struct {
		Locations []location `json:"locations"`
	} `json:"contactsLocationsModule"`

	OutcomesModule struct {
		PrimaryOutcomes []outcome `json:"primaryOutcomes"`
	} `json:"outcomesModule"`

	EligibilityModule struct {
		EligibilityCriteria string `json:"eligibilityCriteria"`
	} `json:"eligibilityModule"`
}

type dateStruct struct {
	Date string `json:"date"`
}

type intervention struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type location struct {
	Facility string `json:"facility"`
	City     string `json:"city,omitempty"`
	Country  string `json:"country,omitempty"`
}

type outcome struct {
	Measure     string `json:"measure"`
	Description string `json:"description,omitempty"`
}
