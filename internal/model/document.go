package model

// Document is a search document ready to be pushed to the index.
// Author stays empty unless row mapping learns a contact for the row,
// which the positional heuristic never does today.
type Document struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	ViewURL string `json:"view_url"`
	Author  string `json:"author,omitempty"`
}
