package cv

import (
	"errors"
	"fmt"
)

var (
	ErrUnreadableDocument = errors.New("cv document could not be parsed")
	ErrUnsupportedScheme  = errors.New("unsupported cv url scheme")
	ErrTooLarge           = errors.New("cv document exceeds size limit")
)

// FetchError reports a non-success response from the CV host.
type FetchError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching cv %s: %s", e.URL, e.Status)
}
