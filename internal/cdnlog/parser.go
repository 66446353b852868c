// internal/cdnlog/parser.go
//
// Tokenizer for G-Core CDN raw access-log lines. Every column in the
// export is double-quoted and may contain spaces; backslash escapes the
// quote and itself. Parsing is a pure function per line: no state is
// carried between lines.
package cdnlog

import (
	"net/url"
	"strings"

	"cdn-logs-collector/internal/cmcd"
	"cdn-logs-collector/internal/model"
)

// minFields guards against truncated or corrupted lines. A line that
// yields fewer quoted tokens is not a record at all.
const minFields = 10

// requestMethods are the verbs the request-column content scan accepts.
var requestMethods = []string{"GET ", "POST ", "HEAD ", "PUT ", "OPTIONS "}

// ParseLine tokenizes one raw access-log line. Returns nil for blank or
// unparsable lines; that is a skip, not an error.
func ParseLine(line string) *model.Record {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	fields := splitQuotedFields(line)
	if len(fields) < minFields {
		return nil
	}

	get := func(idx int) string {
		if idx >= 0 && idx < len(fields) {
			return strings.TrimSpace(fields[idx])
		}
		return ""
	}

	attrs := make(map[string]string, len(fields))
	for idx, name := range fieldNames {
		if strings.HasPrefix(name, "_") {
			continue
		}
		if idx >= len(fields) {
			break
		}
		v := strings.TrimSpace(fields[idx])
		if v == "" {
			// "-" preserves "explicitly absent" for columns this line
			// version does carry.
			v = "-"
		}
		attrs["cdn."+name] = v
	}

	// The request column can move between export configurations; trust
	// content over position and fall back to the documented index.
	request := findRequestField(fields)
	if request == "" {
		request = get(idxRequest)
	}
	method, path := SplitRequest(request)

	cmcdAttrs := cmcd.FromPath(path)
	if len(cmcdAttrs) == 0 {
		if raw := findRawCMCDField(fields); raw != "" {
			cmcdAttrs = cmcd.FromQueryString(raw)
		}
	}
	for k, v := range cmcdAttrs {
		if v != "" {
			attrs[k] = v
		}
	}

	return &model.Record{
		Raw:        line,
		RemoteAddr: get(idxRemoteAddr),
		TimeLocal:  stripBrackets(get(idxTimeLocal)),
		Request:    request,
		Method:     method,
		Path:       decodePath(path),
		Status:     get(idxStatus),
		BodyBytes:  get(idxBodyBytes),
		Referer:    get(idxReferer),
		UserAgent:  get(idxUserAgent),
		BytesSent:  get(idxBytesSent),
		EdgeName:   stripBrackets(get(idxEdgeName)),
		Scheme:     get(idxScheme),
		Host:       get(idxHost),
		ReqTime:    get(idxReqTime),
		CacheState: get(idxCacheState),
		Country:    get(idxCountry),
		ContentTyp: get(idxContentType),
		Attributes: attrs,
	}
}

// splitQuotedFields scans for double-quote-delimited tokens. Text outside
// quote pairs carries no information in this format and is discarded.
// Escaped quotes inside a token are unescaped before the token is stored.
func splitQuotedFields(line string) []string {
	var fields []string
	i, n := 0, len(line)
	for i < n {
		if line[i] != '"' {
			i++
			continue
		}
		i++
		start := i
		for i < n && line[i] != '"' {
			if line[i] == '\\' {
				i++ // skip the escaped character
			}
			i++
		}
		end := i
		if end > n {
			end = n
		}
		fields = append(fields, strings.ReplaceAll(line[start:end], `\"`, `"`))
		if i < n {
			i++ // closing quote
		}
	}
	return fields
}

// SplitRequest splits a request line such as "GET /path HTTP/1.1" into
// method and path. One part yields method only; empty yields neither.
func SplitRequest(request string) (method, path string) {
	parts := strings.Fields(request)
	switch {
	case len(parts) >= 2:
		return parts[0], parts[1]
	case len(parts) == 1:
		return parts[0], ""
	}
	return "", ""
}

// findRequestField locates the column holding the HTTP request line by
// content: a known method keyword, a space in the remainder and a
// path-like "/" distinguish it from incidental matches.
func findRequestField(fields []string) string {
	for _, f := range fields {
		s := strings.TrimSpace(f)
		for _, m := range requestMethods {
			if strings.HasPrefix(s, m) &&
				strings.Contains(strings.TrimSpace(s[len(m):]), " ") &&
				strings.Contains(s, "/") {
				return s
			}
		}
	}
	return ""
}

// findRawCMCDField returns the first column that is itself a raw CMCD
// query string. Some player integrations put CMCD in a header that the
// export surfaces as its own column rather than on the request path.
func findRawCMCDField(fields []string) string {
	for _, f := range fields {
		s := strings.TrimSpace(f)
		if strings.HasPrefix(s, "CMCD=") || strings.HasPrefix(s, "cmcd=") {
			return s
		}
	}
	return ""
}

func stripBrackets(s string) string {
	return strings.Trim(s, "[]")
}

// decodePath percent-decodes the request path for the named Record field.
// Telemetry extraction runs on the raw path so that query parsing decodes
// exactly once; a path that fails to decode is kept as-is.
func decodePath(path string) string {
	if decoded, err := url.PathUnescape(path); err == nil {
		return decoded
	}
	return path
}
