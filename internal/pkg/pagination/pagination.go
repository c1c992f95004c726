// Package pagination builds the follow-up URL for cursor-paged listings.
package pagination

import (
	"fmt"
	"net/http"
)

// NextHREF rebuilds the request URL with the continuation cursor swapped in.
// Other query parameters (limit, all) carry over unchanged.
func NextHREF(r *http.Request, cursor string) string {
	u := *r.URL
	q := u.Query()
	q.Set("cursor", cursor)
	u.RawQuery = q.Encode()

	if u.Host == "" {
		u.Host = r.Host
	}
	if u.Scheme == "" {
		u.Scheme = "http"
		if r.TLS != nil {
			u.Scheme = "https"
		}
	}
	return u.String()
}

// SetNextLink emits the next-page URL as a Link header.
func SetNextLink(w http.ResponseWriter, r *http.Request, cursor string) {
	w.Header().Set("Link", fmt.Sprintf("<%s>; rel=\"next\"", NextHREF(r, cursor)))
}
