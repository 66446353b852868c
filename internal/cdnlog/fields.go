// internal/cdnlog/fields.go
package cdnlog

// fieldNames is the positional column schema of the G-Core raw log export
// (see gcore.com/docs/cdn/logs). The export appends new columns over time,
// so indices past the end of a given line are simply absent. Names starting
// with "_" are reserved placeholder columns and never become attributes.
var fieldNames = [...]string{
	"remote_addr",
	"_", // always "-"
	"remote_user",
	"time_local",
	"request",
	"status",
	"body_bytes_sent",
	"http_referer",
	"http_user_agent",
	"bytes_sent",
	"edgename",
	"scheme",
	"host",
	"request_time",
	"upstream_response_time",
	"request_length",
	"http_range",
	"responding_node",
	"upstream_cache_status",
	"upstream_response_length",
	"upstream_addr",
	"gcdn_api_client_id",
	"gcdn_api_resource_id",
	"uid_got",
	"uid_set",
	"geoip_country_code",
	"geoip_city",
	"shield_type",
	"server_addr",
	"server_port",
	"upstream_status",
	"_2",
	"upstream_connect_time",
	"upstream_header_time",
	"shard_addr",
	"geoip2_data_asnumber",
	"connection",
	"connection_requests",
	"http_traceparent",
	"http_x_forwarded_proto",
	"gcdn_internal_status_code",
	"ssl_cipher",
	"ssl_session_id",
	"ssl_session_reused",
	"sent_http_content_type",
	"tcpinfo_rtt",
	"server_country_code",
	"gcdn_tcpinfo_snd_cwnd",
	"gcdn_tcpinfo_total_retrans",
	"gcdn_rule_id",
}

// Well-known column indices used for the named Record fields.
const (
	idxRemoteAddr  = 0
	idxTimeLocal   = 3
	idxRequest     = 4
	idxStatus      = 5
	idxBodyBytes   = 6
	idxReferer     = 7
	idxUserAgent   = 8
	idxBytesSent   = 9
	idxEdgeName    = 10
	idxScheme      = 11
	idxHost        = 12
	idxReqTime     = 13
	idxCacheState  = 18
	idxCountry     = 25
	idxContentType = 44
)
