// internal/model/record.go
package model

import (
	"strings"
	"time"
)

// ObjectRef identifies one remote log object. Produced by the selector,
// consumed once by the retriever; never persisted across runs.
type ObjectRef struct {
	Key          string    `json:"key"`
	LastModified time.Time `json:"last_modified"`
	Size         int64     `json:"size"`
}

// Record is the structured result of tokenizing one access-log line.
// Named fields cover the columns downstream consumers care about; the
// Attributes map carries every recovered column (cdn.*) plus any CMCD
// attributes (cmcd.*) for OTLP export.
type Record struct {
	Raw        string `json:"raw"`
	RemoteAddr string `json:"remote_addr"`
	TimeLocal  string `json:"time_local"` // bracket-stripped, unparsed
	Request    string `json:"request"`
	Method     string `json:"method"`
	Path       string `json:"path"`
	Status     string `json:"status"`
	BodyBytes  string `json:"body_bytes_sent"`
	Referer    string `json:"http_referer"`
	UserAgent  string `json:"http_user_agent"`
	BytesSent  string `json:"bytes_sent"`
	EdgeName   string `json:"edgename"`
	Scheme     string `json:"scheme"`
	Host       string `json:"host"`
	ReqTime    string `json:"request_time"`
	CacheState string `json:"upstream_cache_status"`
	Country    string `json:"geoip_country_code"`
	ContentTyp string `json:"sent_http_content_type"`

	Attributes map[string]string `json:"attributes"`
}

// CMCDAttributes returns only the cmcd.* subset of Attributes.
// Empty map (not nil) when the line carried no client telemetry.
func (r *Record) CMCDAttributes() map[string]string {
	out := map[string]string{}
	for k, v := range r.Attributes {
		if strings.HasPrefix(k, "cmcd.") {
			out[k] = v
		}
	}
	return out
}
