package patent

import "errors"

// Sentinel errors for the task failure taxonomy. Callers match with errors.Is.
var (
	// ErrParse marks a URL that yields no usable identifier.
	ErrParse = errors.New("unusable patent url")
	// ErrFetch marks a network or HTTP failure retrieving the page.
	ErrFetch = errors.New("fetch failed")
	// ErrPersistence marks a filesystem failure writing the metadata document.
	ErrPersistence = errors.New("persistence failed")
	// ErrSkipped marks a task abandoned by an operator skip request.
	ErrSkipped = errors.New("task skipped")
)
