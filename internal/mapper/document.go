package mapper

// Document is the JSON-serializable representation submitted to the index.
// Maps marshal with sorted keys, so the same source object always produces
// byte-identical output.
type Document struct {
	ID       int64                 `json:"ID"`
	Type     string                `json:"type"`
	Slug     string                `json:"slug,omitempty"`
	Status   string                `json:"status,omitempty"`
	Author   string                `json:"author,omitempty"`
	Title    string                `json:"title"`
	Excerpt  string                `json:"excerpt,omitempty"`
	Content  string                `json:"content"`
	Date     string                `json:"date,omitempty"`
	Modified string                `json:"modified,omitempty"`
	Terms    map[string][]TermDoc   `json:"terms,omitempty"`
	Meta     map[string][]MetaValue `json:"meta,omitempty"`
}

// TermDoc is one taxonomy assignment inside a document.
type TermDoc struct {
	TermID int64  `json:"term_id"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
}

// MetaValue carries one meta entry with typed sub-fields. Value always holds
// the raw string; the typed fields are set only when the string parses as
// that type, so the index can filter and sort meta numerically or by date.
type MetaValue struct {
	Value   string   `json:"value"`
	Long    *int64   `json:"long,omitempty"`
	Double  *float64 `json:"double,omitempty"`
	Boolean *bool    `json:"boolean,omitempty"`
	Date    string   `json:"date,omitempty"`
}
