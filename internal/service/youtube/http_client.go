package youtube

import "net/http"

// HTTPClient is the slice of *http.Client the subtitle fetcher needs, small
// enough to stub in tests.
type HTTPClient interface {
	Get(url string) (*http.Response, error)
}

var _ HTTPClient = (*http.Client)(nil)
