// Package deeplink parses tur:// links handed over by browsers and
// other applications, e.g.
//
//	tur://add?url=https%3A%2F%2Fexample.com%2Fdisk.iso&filename=disk.iso&size=1048576
//
// Only the query parameters matter; the host part is a display hint for
// the handing-over side and is not validated.
package deeplink

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/turdm/turc/safe"
)

// Scheme is the URL scheme turc registers for.
const Scheme = "tur"

// ErrNotDeepLink is returned for URLs with a different scheme.
var ErrNotDeepLink = errors.New("deeplink: not a tur:// link")

// Request is a parsed deep link. Filename and Size are optional hints;
// the probe fills whatever the link did not carry.
type Request struct {
	URL      string
	Filename string
	Size     *int64
}

// Parse extracts a download request from a deep link. The embedded url
// parameter must be present and must be a fetchable http(s) URL; an
// unparsable size is ignored rather than rejected, matching how hints
// are treated everywhere else.
func Parse(raw string) (*Request, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("deeplink: %w", err)
	}
	if !strings.EqualFold(u.Scheme, Scheme) {
		return nil, ErrNotDeepLink
	}

	q := u.Query()
	src := q.Get("url")
	if src == "" {
		return nil, errors.New("deeplink: missing url parameter")
	}
	if err := safe.ValidateDownloadURL(src); err != nil {
		return nil, err
	}

	req := &Request{URL: src}
	if name := q.Get("filename"); name != "" {
		req.Filename = safe.SanitizeFilename(name)
	}
	if s := q.Get("size"); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n >= 0 {
			req.Size = &n
		}
	}
	return req, nil
}
