package probe

import (
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/turdm/turc/safe"
)

func infoFromResponse(rawURL string, resp *http.Response) *Info {
	h := resp.Header
	info := &Info{
		URL:          rawURL,
		ContentType:  h.Get("Content-Type"),
		ETag:         strings.Trim(h.Get("Etag"), `"`),
		LastModified: h.Get("Last-Modified"),
		ResumeSupported: strings.EqualFold(h.Get("Accept-Ranges"), "bytes") ||
			resp.StatusCode == http.StatusPartialContent,
	}
	if resp.Request != nil && resp.Request.URL != nil {
		if final := resp.Request.URL.String(); final != rawURL {
			info.FinalURL = final
		}
	}

	name := filenameFromHeader(h.Get("Content-Disposition"))
	if name == "" {
		name = filenameFromURL(rawURL)
	}
	info.Filename = safe.SanitizeFilename(name)

	if size, ok := sizeFromResponse(resp); ok {
		info.Size = &size
	}
	return info
}

// filenameFromHeader pulls a suggested name out of Content-Disposition.
// mime.ParseMediaType covers well-formed headers including RFC 5987
// filename*; the manual scan below keeps the unquoted and half-broken
// forms real servers emit working.
func filenameFromHeader(cd string) string {
	if cd == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(cd); err == nil {
		if name := params["filename"]; name != "" {
			return name
		}
	}
	for _, part := range strings.Split(cd, ";") {
		part = strings.TrimSpace(part)
		if rest, ok := strings.CutPrefix(part, "filename*="); ok {
			// RFC 5987: charset'lang'percent-encoded-name
			fields := strings.SplitN(rest, "'", 3)
			if len(fields) != 3 {
				continue
			}
			if decoded, err := url.PathUnescape(fields[2]); err == nil {
				return decoded
			}
			return fields[2]
		}
		if rest, ok := strings.CutPrefix(part, "filename="); ok {
			return strings.Trim(rest, `"`)
		}
	}
	return ""
}

// filenameFromURL falls back to the last path segment, query and
// fragment excluded.
func filenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return safe.FallbackFilename
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return safe.FallbackFilename
	}
	return name
}

func sizeFromResponse(resp *http.Response) (int64, bool) {
	if resp.StatusCode == http.StatusPartialContent {
		return totalFromContentRange(resp.Header.Get("Content-Range"))
	}
	if resp.ContentLength >= 0 {
		return resp.ContentLength, true
	}
	return 0, false
}

// totalFromContentRange parses the total out of "bytes 0-0/12345".
// A "*" total means the server does not know the size.
func totalFromContentRange(v string) (int64, bool) {
	i := strings.LastIndexByte(v, '/')
	if i < 0 {
		return 0, false
	}
	total := strings.TrimSpace(v[i+1:])
	if total == "" || total == "*" {
		return 0, false
	}
	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// drain discards what little body a probe response may carry so the
// connection returns to the pool.
func drain(body io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(body, 4096))
	body.Close()
}
