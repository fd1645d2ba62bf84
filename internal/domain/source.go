package domain

// SourceCitation is evidence attached to a person
type SourceCitation struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	URL     string `json:"url,omitempty"`
	Content string `json:"content,omitempty"`
}
