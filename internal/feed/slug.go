package feed

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// Slugify case-folds s, strips diacritics, collapses every run of
// non-alphanumeric characters into a single "-" and trims leading and
// trailing separators.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, folder.String(s))
	if err != nil {
		stripped = strings.ToLower(s)
	}

	var b strings.Builder
	b.Grow(len(stripped))
	pendingSep := false
	for _, r := range stripped {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// DeepLink returns the canonical link for an event. A curated slug wins over
// a raw link on the canonical domain, which wins over a slug derived from the
// title.
func DeepLink(baseURL, slug, rawURL, title string) string {
	base := strings.TrimRight(baseURL, "/")

	if s := Slugify(slug); s != "" {
		return base + "/" + s
	}
	if isCanonical(base, rawURL) {
		return rawURL
	}
	if s := Slugify(title); s != "" {
		return base + "/" + s
	}
	return base
}

func isCanonical(baseURL, raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	b, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), b.Hostname())
}
