// cmd/collector/main.go
//
// CLI glue: flags with environment-variable defaults, mode selection,
// exit codes. Exit 0 on success including zero-match runs; exit 1 on
// setup, credential, or run failure.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cdn-logs-collector/internal/collector"
	"cdn-logs-collector/internal/config"
	"cdn-logs-collector/internal/logger"
	"cdn-logs-collector/internal/otelexport"
	"cdn-logs-collector/internal/s3source"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	opts       config.RunOptions
	noInsecure bool
	verify     bool
)

var rootCmd = &cobra.Command{
	Use:          "collector",
	Short:        "Transform CDN access logs from S3 to OpenTelemetry log records",
	Long:         "Lists CDN raw-log exports in S3, parses each access-log line (including CMCD client telemetry) and emits OTLP log records to a collector endpoint such as Grafana Alloy.",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&opts.Bucket, "bucket", config.EnvOr("CDN_LOGS_BUCKET", config.DefaultBucket),
		"S3 bucket name (default: CDN_LOGS_BUCKET)")
	f.StringArrayVar(&opts.Prefixes, "prefix", config.PrefixesFromEnv(),
		"S3 prefix for log objects; can be repeated")
	f.IntVar(&opts.SinceMinutes, "since-minutes", 0,
		"Only process objects modified in the last N minutes (0 = all time)")
	f.StringVar(&opts.Endpoint, "endpoint", config.EnvOr("OTEL_EXPORTER_OTLP_ENDPOINT", config.DefaultEndpoint),
		"OTLP gRPC endpoint (default: OTEL_EXPORTER_OTLP_ENDPOINT)")
	f.BoolVar(&noInsecure, "no-insecure", false,
		"Use TLS for OTLP (default is insecure)")
	f.StringVar(&opts.ServiceName, "service-name", config.EnvOr("OTEL_SERVICE_NAME", config.DefaultServiceName),
		"Service name for the OTLP resource (default: OTEL_SERVICE_NAME)")
	f.StringVar(&opts.Profile, "aws-profile", os.Getenv("AWS_PROFILE"),
		"AWS shared-config profile (default: AWS_PROFILE)")
	f.StringVar(&opts.Region, "region", config.EnvOr("AWS_REGION", config.DefaultRegion),
		"AWS region for the bucket (default: AWS_REGION)")
	f.StringVar(&opts.Key, "key", "",
		"Fetch and process only this S3 object key")
	f.BoolVar(&verify, "verify", false,
		"Verify read access to the bucket and exit (no log processing)")
	f.BoolVar(&opts.ListOnly, "dry-run", false,
		"Only list S3 objects that would be processed")
	f.BoolVar(&opts.InspectCMCD, "inspect-cmcd", false,
		"Only scan logs and print lines that carry CMCD telemetry (no OTLP export)")
	f.IntVar(&opts.MaxObjects, "max-objects", 0,
		"Max S3 objects to process (0 = unlimited)")
	f.IntVar(&opts.MaxLinesPerFile, "max-lines-per-file", 0,
		"Max lines to process per object (0 = unlimited)")
	f.Float64Var(&opts.Rate, "rate", 0,
		"Max emitted records per second (0 = unlimited)")
	f.BoolVarP(&opts.Verbose, "verbose", "v", false,
		"Print progress: objects processed, lines read, parse counts")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func run(cmd *cobra.Command, _ []string) error {
	logger.Init(opts.ServiceName, opts.Verbose)
	opts.Insecure = !noInsecure
	opts.Prefixes = config.NormalizePrefixes(opts.Prefixes)
	ctx := cmd.Context()

	source, err := s3source.New(ctx, opts.Bucket, opts.Region, opts.Profile)
	if err != nil {
		return credentialHint(err)
	}

	if verify {
		return runVerify(ctx, source)
	}

	var emitter collector.Emitter
	exportMode := !opts.ListOnly && !opts.InspectCMCD
	if exportMode {
		em, err := otelexport.New(ctx, opts.Endpoint, opts.ServiceName, opts.Insecure)
		if err != nil {
			return err
		}
		emitter = em
	}

	counters, err := collector.Run(ctx, opts, source, emitter)
	if err != nil {
		return credentialHint(err)
	}
	if exportMode {
		log.Info().Msgf("Emitted %d log records to %s", counters.Emitted(), opts.Endpoint)
	}
	return nil
}

func runVerify(ctx context.Context, source *s3source.Source) error {
	prefix := ""
	if len(opts.Prefixes) > 0 {
		prefix = opts.Prefixes[0]
	}
	keyCount, err := source.VerifyAccess(ctx, prefix)
	if err != nil {
		log.Error().Err(credentialHint(err)).Msgf("Cannot access bucket s3://%s (region=%s)", opts.Bucket, opts.Region)
		return fmt.Errorf("bucket access check failed")
	}
	state := "no objects yet"
	if keyCount > 0 {
		state = ">=1 object"
	}
	log.Info().Msgf("OK: Can access bucket s3://%s (region=%s). Prefix %q has %s.", opts.Bucket, opts.Region, prefix, state)
	return nil
}

// credentialHint rewrites an expired-SSO-token failure into the
// remediation the operator actually needs.
func credentialHint(err error) error {
	if err == nil || !s3source.IsCredentialError(err) {
		return err
	}
	msg := "AWS SSO token has expired. Log in again with: aws sso login"
	if opts.Profile != "" {
		msg = fmt.Sprintf("%s (or: aws sso login --profile %s)", msg, opts.Profile)
	}
	return errors.New(msg)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
