package dedup

import (
	"net/url"
	"strings"
)

var trackingParams = map[string]struct{}{
	"ref":     {},
	"source":  {},
	"fbclid":  {},
	"gclid":   {},
	"dclid":   {},
	"mc_cid":  {},
	"mc_eid":  {},
	"igshid":  {},
	"yclid":   {},
	"_hsenc":  {},
	"_hsmi":   {},
	"cmpid":   {},
	"ocid":    {},
	"spm":     {},
	"si":      {},
	"rss":     {},
	"partner": {},
}

func isTracking(key string) bool {
	key = strings.ToLower(key)
	if strings.HasPrefix(key, "utm_") {
		return true
	}
	_, ok := trackingParams[key]
	return ok
}

// NormalizeURL reduces a link to scheme, host, path and non-tracking query.
// Unparsable input is returned trimmed but otherwise unchanged.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return raw
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme == "" {
		scheme = "https"
	}
	host := strings.ToLower(parsed.Host)
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimSuffix(host, ":80")
	host = strings.TrimSuffix(host, ":443")

	path := strings.TrimRight(parsed.EscapedPath(), "/")
	if path == "" {
		path = "/"
	}

	query := parsed.Query()
	for key := range query {
		if isTracking(key) {
			query.Del(key)
		}
	}

	normalized := scheme + "://" + host + path
	if encoded := query.Encode(); encoded != "" {
		normalized += "?" + encoded
	}
	return normalized
}
