package normalize

import (
	"net/url"
	"strings"
)

// trackingParams are query parameters dropped during normalization, matched
// by exact name after lowercasing. Names carrying the utm_ prefix are dropped
// as a family.
var trackingParams = map[string]struct{}{
	"gclid":  {},
	"fbclid": {},
	"ref":    {},
	"source": {},
}

const trackingPrefix = "utm_"

// Normalize canonicalizes a raw URL. Rules, applied in order: lower-case the
// scheme and host, upgrade http to https, strip default ports, drop tracking
// query parameters, sort the remaining parameters by name, trim a single
// trailing slash from the path (a bare root path survives), and discard the
// fragment. Path and query casing is left untouched.
func Normalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		// Unparseable input still needs a stable key.
		return strings.ToLower(trimmed)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" {
		u.Scheme = "https"
	}
	if port := u.Port(); port == "80" || port == "443" {
		host := u.Hostname()
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		u.Host = host
	}

	if u.RawQuery != "" {
		q := u.Query()
		for name := range q {
			if isTracking(name) {
				q.Del(name)
			}
		}
		// Encode writes parameters in sorted key order.
		u.RawQuery = q.Encode()
	}

	if strings.HasSuffix(u.Path, "/") && u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
		u.RawPath = strings.TrimSuffix(u.RawPath, "/")
	}

	u.Fragment = ""
	u.RawFragment = ""

	return u.String()
}

// Equal reports whether two raw URLs canonicalize to the same string.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Host returns the lower-cased hostname of a URL, or "" when none can be
// parsed out.
func Host(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func isTracking(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, trackingPrefix) {
		return true
	}
	_, ok := trackingParams[lower]
	return ok
}
