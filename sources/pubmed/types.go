// Package pubmed enthält den Adapter für PubMed Central über die NCBI
// eutils-API (esearch + esummary).
package pubmed

import "encoding/json"

// esearchResponse ist die JSON-Antwort von esearch.fcgi.
type esearchResponse struct {
	ESearchResult struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// esummaryResponse ist die JSON-Antwort von esummary.fcgi. Die Artikel
// liegen unter result["<uid>"], daher das RawMessage-Zwischenformat.
type esummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

// articleSummary ist ein einzelner Artikel aus dem esummary-Result.
type articleSummary struct {
	UID             string `json:"uid"`
	Title           string `json:"title"`
	PubDate         string `json:"pubdate"`
	EPubDate        string `json:"epubdate"`
	FullJournalName string `json:"fulljournalname"`
	Source          string `json:"source"`
	Authors         []struct {
		Name string `json:"name"`
	} `json:"authors"`
}
