package patent

import "time"

// Default values substituted when a field cannot be extracted.
const (
	DefaultTitle    = "Unknown Title"
	DefaultUnknown  = "Unknown"
	DefaultAbstract = "N/A"
	NotApplicable   = "N/A"
)

// Field names reported in Record.Gaps.
const (
	FieldTitle    = "title"
	FieldAssignee = "assignee"
	FieldInventor = "inventor"
	FieldStatus   = "status"
)

// Task is a URL submitted for processing. Duplicates are processed independently.
type Task struct {
	URL       string
	Submitted time.Time
}

// CitationEntry is one row of a citation, cited-by, or similar-documents table.
type CitationEntry struct {
	PublicationNumber string `json:"publication_number"`
	PriorityDate      string `json:"priority_date"`
	PublicationDate   string `json:"publication_date"`
	Assignee          string `json:"assignee"`
	Title             string `json:"title"`
	Link              string `json:"link"`
}

// Record is the bibliographic data extracted for one patent. Every field is
// always present; fields whose strategies all missed carry their default and
// are listed in Gaps.
type Record struct {
	ID               string          `json:"patent_id"`
	Title            string          `json:"title"`
	Status           string          `json:"status"`
	Assignee         string          `json:"assignee"`
	Inventor         string          `json:"inventor"`
	URL              string          `json:"url"`
	Citations        []CitationEntry `json:"citations"`
	CitedBy          []CitationEntry `json:"cited_by"`
	SimilarDocuments []CitationEntry `json:"similar_documents"`
	LastUpdated      time.Time       `json:"last_updated"`
	Gaps             []string        `json:"extraction_gaps,omitempty"`
}

// RecordStatus is the lifecycle state reported by catalog listings.
type RecordStatus string

// Listing states. A readable metadata document always wins over registry
// membership.
const (
	RecordPending RecordStatus = "Pending"
	RecordSkipped RecordStatus = "Skipped"
	RecordDone    RecordStatus = "Done"
)

// Listing summarizes one identifier directory for list queries.
type Listing struct {
	ID           string       `json:"id"`
	Status       RecordStatus `json:"status"`
	Title        string       `json:"title"`
	PatentStatus string       `json:"patent_status"`
}

// FetchRequest captures everything needed to fetch a patent page.
type FetchRequest struct {
	URL     string
	Headers map[string]string
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}
