// Package espacenet enthält den Adapter für Espacenet OPS
// (Open Patent Services, CQL-Suche).
package espacenet

// searchResponse ist der OPS-Antwortumschlag. Die ops-Namespaces und die
// durchgängigen Arrays stammen aus der XML-nach-JSON-Abbildung der API.
type searchResponse struct {
	WorldPatentData struct {
		Result struct {
			Total   string           `json:"@total"`
			Patents []patentDocument `json:"patent"`
		} `json:"ops:result"`
	} `json:"ops:world-patent-data"`
}

type patentDocument struct {
	PatentDocument []struct {
		BibliographicData []bibliographicData `json:"bibliographic-data"`
		Abstract          []textBlock         `json:"abstract"`
	} `json:"patent-document"`
}

type bibliographicData struct {
	PublicationReference []struct {
		DocumentID []documentID `json:"document-id"`
	} `json:"publication-reference"`
	InventionTitle []textBlock `json:"invention-title"`
	Inventors      []nameBlock `json:"inventor"`
	Applicants     []nameBlock `json:"applicant"`
	IPC            []textBlock `json:"international-patent-classification"`
	FilingDate     []textBlock `json:"filing-date"`
}

type documentID struct {
	Country   []string `json:"country"`
	DocNumber []string `json:"doc-number"`
	Kind      []string `json:"kind"`
	Date      []string `json:"date"`
}

type textBlock struct {
	Text []string `json:"text"`
}

type nameBlock struct {
	InventorName  []textBlock `json:"inventor-name"`
	ApplicantName []textBlock `json:"applicant-name"`
}
