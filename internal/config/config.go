// internal/config/config.go
package config

import (
	"os"
	"strings"
	"time"
)

// Defaults for the operator-facing surface. Every one can be overridden by
// flag or environment variable; none is required.
const (
	DefaultBucket      = "amzn-gcore-logs"
	DefaultEndpoint    = "localhost:4317"
	DefaultServiceName = "cdn-logs-collector"
	DefaultRegion      = "eu-west-1"
)

// DefaultPrefixes are used when neither --prefix nor CDN_LOGS_PREFIX is
// set. The bucket historically holds exports for two CDN resources.
var DefaultPrefixes = []string{"/gcore/logs/", "/5gemerge/logs/"}

// RunOptions is the immutable configuration snapshot for one invocation.
// Built once in cmd from flags and environment, read-only afterwards.
type RunOptions struct {
	Bucket   string
	Prefixes []string
	Key      string // single-object override; bypasses listing and filters

	SinceMinutes int // 0 = no trailing window, process all time

	Endpoint    string
	Insecure    bool
	ServiceName string

	Profile string
	Region  string

	ListOnly    bool
	InspectCMCD bool
	Verbose     bool

	MaxObjects      int     // 0 = unlimited
	MaxLinesPerFile int     // 0 = unlimited
	Rate            float64 // emitted records per second, 0 = unlimited
}

// Since converts the trailing window into a cutoff timestamp.
// Zero time means no cutoff.
func (o RunOptions) Since(now time.Time) time.Time {
	if o.SinceMinutes <= 0 {
		return time.Time{}
	}
	return now.Add(-time.Duration(o.SinceMinutes) * time.Minute).UTC()
}

// NormalizePrefixes appends the trailing "/" the log export layout
// expects on every configured prefix.
func NormalizePrefixes(prefixes []string) []string {
	out := make([]string, len(prefixes))
	for i, p := range prefixes {
		if !strings.HasSuffix(p, "/") {
			p += "/"
		}
		out[i] = p
	}
	return out
}

// PrefixesFromEnv resolves the default prefix list: CDN_LOGS_PREFIX
// replaces the builtin defaults with a single normalized prefix.
func PrefixesFromEnv() []string {
	if p := os.Getenv("CDN_LOGS_PREFIX"); p != "" {
		return []string{strings.TrimRight(p, "/") + "/"}
	}
	return DefaultPrefixes
}

// EnvOr returns the environment variable's value, or def when unset or
// empty.
func EnvOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
