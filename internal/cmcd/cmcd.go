// internal/cmcd/cmcd.go
//
// CMCD (Common Media Client Data, CTA-5004) extraction from request query
// strings. Media players attach playback metrics to segment requests either
// as one packed parameter (cmcd=br=3200,bl=12500,ot=v) or as individual
// prefixed parameters (cmcd.br=3200&cmcd.ot=v). Both shapes are accepted
// and merged; any key is passed through, known or not.
package cmcd

import (
	"net/url"
	"strings"
)

// KnownKeys lists the CMCD v1 keys (plus common v2 additions) for
// reference. Extraction does not filter against this set.
var KnownKeys = map[string]string{
	"br":  "encoded bitrate (kbps)",
	"bl":  "buffer length (ms)",
	"bs":  "buffer starvation (boolean)",
	"cid": "content ID",
	"d":   "object duration (ms)",
	"dl":  "deadline (ms)",
	"mtp": "measured throughput (kbps)",
	"nor": "next object request (relative path)",
	"nrr": "next range request (byte range)",
	"ot":  "object type (v, a, m, i, ...)",
	"pr":  "playback rate",
	"rtp": "requested maximum throughput (kbps)",
	"sf":  "streaming format",
	"sid": "session ID (UUID)",
	"st":  "stream type (v=VOD, l=live)",
	"su":  "startup (boolean)",
	"tb":  "top bitrate (kbps)",
	"v":   "CMCD version",
}

// FromQueryString extracts cmcd.* attributes from a URL query string.
// Two shapes are attempted and merged: a single parameter whose name is
// "cmcd" in any case, holding comma-separated key=value pairs, and
// parameters whose names carry the literal "cmcd." prefix. Values keep
// their string form; one level of surrounding double quotes is stripped.
func FromQueryString(query string) map[string]string {
	out := map[string]string{}
	if strings.TrimSpace(query) == "" {
		return out
	}
	params, err := url.ParseQuery(query)
	if err != nil {
		// ParseQuery reports the first bad escape but still returns
		// everything it could parse. Keep what we got.
		if len(params) == 0 {
			return out
		}
	}

	// Shape 1: packed parameter, e.g. CMCD=bl=17900,br=5300,ot=v
	for name, values := range params {
		if !strings.EqualFold(name, "cmcd") {
			continue
		}
		for _, raw := range values {
			for _, pair := range strings.Split(raw, ",") {
				pair = strings.TrimSpace(pair)
				k, v, found := strings.Cut(pair, "=")
				if !found {
					continue
				}
				k = strings.TrimSpace(k)
				if k != "" {
					out["cmcd."+k] = unquote(strings.TrimSpace(v))
				}
			}
		}
	}

	// Shape 2: prefixed parameters, e.g. cmcd.br=3200&cmcd.ot=v
	for name, values := range params {
		key, found := strings.CutPrefix(name, "cmcd.")
		if !found || key == "" || len(values) == 0 {
			continue
		}
		out["cmcd."+key] = unquote(strings.TrimSpace(values[0]))
	}
	return out
}

// FromPath extracts CMCD attributes from the query component of a request
// path. A path without "?" yields an empty map.
func FromPath(pathWithQuery string) map[string]string {
	if pathWithQuery == "" {
		return map[string]string{}
	}
	_, query, found := strings.Cut(pathWithQuery, "?")
	if !found {
		return map[string]string{}
	}
	return FromQueryString(query)
}

// unquote strips one level of surrounding double quotes, the encoding CMCD
// uses for string-typed values.
func unquote(v string) string {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		return v[1 : len(v)-1]
	}
	return v
}
