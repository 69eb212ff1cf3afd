// Package safe holds the input-hygiene primitives turc applies to data
// that crosses a trust boundary: URLs typed by the user or arriving via
// deep links, filenames suggested by remote servers, and HTTP response
// bodies of unknown size.
package safe

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// FallbackFilename is used when a remote suggests no usable name.
const FallbackFilename = "download"

// MaxFilenameLen caps sanitized filenames, in bytes. 255 is the common
// filesystem limit for a single path component.
const MaxFilenameLen = 255

// MaxResponseBody is the default cap for HTTP response body reads (1 MiB).
const MaxResponseBody int64 = 1 << 20

// ErrPathTraversal is returned when a name would escape its base directory.
var ErrPathTraversal = errors.New("safe: path traversal detected")

// ErrUnsafeScheme is returned when a URL uses a non-HTTP(S) scheme.
var ErrUnsafeScheme = errors.New("safe: only http and https schemes are allowed")

// ValidateDownloadURL checks that rawURL is an http or https URL with a
// host. Private and loopback hosts stay allowed; fetching from a LAN
// NAS is a normal download, not SSRF.
func ValidateDownloadURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("safe: invalid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrUnsafeScheme
	}
	if u.Hostname() == "" {
		return fmt.Errorf("safe: URL has no host")
	}
	return nil
}

// SanitizeFilename reduces a server-suggested filename to a single safe
// path component: directory parts and control characters go, characters
// reserved on common filesystems become underscores, and the result is
// capped at MaxFilenameLen. An empty result becomes FallbackFilename.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	// Drop any directory component, whichever separator the remote used.
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
			// drop control characters
		case strings.ContainsRune(`<>:"|?*`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	name = strings.Trim(b.String(), ". ")
	if name == "" {
		return FallbackFilename
	}
	for len(name) > MaxFilenameLen {
		_, size := utf8.DecodeLastRuneInString(name)
		name = name[:len(name)-size]
	}
	return name
}

// SafeDestination joins base and name and verifies the result stays
// under base. Returns the cleaned path or ErrPathTraversal.
func SafeDestination(base, name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", ErrPathTraversal
	}
	cleaned := filepath.Join(base, filepath.Clean("/"+name))
	if cleaned != filepath.Clean(base) &&
		!strings.HasPrefix(cleaned, filepath.Clean(base)+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return cleaned, nil
}

// LimitedReadAll reads at most maxBytes from r and errors past the limit.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	lr := io.LimitReader(r, maxBytes+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("safe: response exceeds %d bytes", maxBytes)
	}
	return data, nil
}
