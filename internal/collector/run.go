// internal/collector/run.go
//
// Pipeline orchestrator: enumerate log objects, stream their lines, parse
// each one, and depending on the run mode list, inspect, or export.
// Objects are processed one at a time and lines in file order; the only
// backpressure is the export transport's own buffering.
package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cdn-logs-collector/internal/cdnlog"
	"cdn-logs-collector/internal/config"
	"cdn-logs-collector/internal/metrics"
	"cdn-logs-collector/internal/model"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// ObjectStore is the object-store collaborator: listing with metadata and
// retrieval of decoded lines. *s3source.Source satisfies it.
type ObjectStore interface {
	EachLogObject(ctx context.Context, prefix string, since time.Time, fn func(model.ObjectRef) bool) error
	RawKeys(ctx context.Context, prefix string, maxKeys int) ([]model.ObjectRef, error)
	FetchLines(ctx context.Context, key string) ([]string, error)
}

// Emitter is the export transport collaborator. *otelexport.Emitter
// satisfies it.
type Emitter interface {
	Emit(ctx context.Context, rec *model.Record, s3Key string)
	Shutdown(ctx context.Context) error
}

// Run executes one invocation in the mode selected by opts and returns
// the run counters. emitter may be nil unless export mode is selected.
func Run(ctx context.Context, opts config.RunOptions, store ObjectStore, emitter Emitter) (*metrics.Counters, error) {
	opts.Prefixes = config.NormalizePrefixes(opts.Prefixes)
	since := opts.Since(time.Now())
	counters := metrics.New()

	switch {
	case opts.ListOnly:
		return counters, runList(ctx, opts, since, store)
	case opts.InspectCMCD:
		return counters, runInspect(ctx, opts, since, store, counters)
	default:
		return counters, runExport(ctx, opts, since, store, emitter, counters)
	}
}

// forEachObject yields the selected objects: exactly one synthesized ref
// for a --key override, otherwise the filtered listing of every prefix in
// order, capped at opts.MaxObjects.
func forEachObject(ctx context.Context, opts config.RunOptions, since time.Time, store ObjectStore, fn func(model.ObjectRef) bool) error {
	if opts.Key != "" {
		fn(model.ObjectRef{Key: opts.Key, LastModified: time.Now().UTC(), Size: 0})
		return nil
	}
	count := 0
	for _, prefix := range opts.Prefixes {
		stop := false
		err := store.EachLogObject(ctx, prefix, since, func(ref model.ObjectRef) bool {
			if !fn(ref) {
				stop = true
				return false
			}
			count++
			if opts.MaxObjects > 0 && count >= opts.MaxObjects {
				stop = true
				return false
			}
			return true
		})
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return nil
}

func runList(ctx context.Context, opts config.RunOptions, since time.Time, store ObjectStore) error {
	return forEachObject(ctx, opts, since, store, func(ref model.ObjectRef) bool {
		log.Info().Msgf("Would process: s3://%s/%s (%d bytes)", opts.Bucket, ref.Key, ref.Size)
		return true
	})
}

func runInspect(ctx context.Context, opts config.RunOptions, since time.Time, store ObjectStore, counters *metrics.Counters) error {
	logListingBanner(opts)
	var fetchErr error
	err := forEachObject(ctx, opts, since, store, func(ref model.ObjectRef) bool {
		lines, err := store.FetchLines(ctx, ref.Key)
		if err != nil {
			fetchErr = err
			return false
		}
		for i, line := range lines {
			if opts.MaxLinesPerFile > 0 && i >= opts.MaxLinesPerFile {
				break
			}
			rec := cdnlog.ParseLine(line)
			if rec == nil {
				continue
			}
			counters.AddParsed()
			cmcdAttrs := rec.CMCDAttributes()
			if len(cmcdAttrs) == 0 {
				continue
			}
			counters.AddCMCDLine()
			b, _ := json.Marshal(cmcdAttrs)
			log.Info().
				Str("request", rec.Request).
				RawJSON("cmcd", b).
				Msg("CMCD line")
		}
		counters.AddObject()
		return true
	})
	if err == nil {
		err = fetchErr
	}
	if err != nil {
		return err
	}
	log.Info().Msgf("Inspect summary: %s", counters.InspectSummary())
	return nil
}

func runExport(ctx context.Context, opts config.RunOptions, since time.Time, store ObjectStore, emitter Emitter, counters *metrics.Counters) (retErr error) {
	if emitter == nil {
		return fmt.Errorf("export mode requires an emitter")
	}
	// The transport is opened once per run and closed exactly once, on
	// every exit path. A failed flush is a failed run.
	defer func() {
		if err := emitter.Shutdown(context.WithoutCancel(ctx)); err != nil && retErr == nil {
			retErr = fmt.Errorf("shutdown exporter: %w", err)
		}
	}()

	var limiter *rate.Limiter
	if opts.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	}

	logListingBanner(opts)
	var runErr error
	err := forEachObject(ctx, opts, since, store, func(ref model.ObjectRef) bool {
		if opts.Verbose {
			log.Debug().Msgf("Processing: s3://%s/%s", opts.Bucket, ref.Key)
		}
		lines, err := store.FetchLines(ctx, ref.Key)
		if err != nil {
			runErr = err
			return false
		}
		lineCount, parsedCount := 0, 0
		for _, line := range lines {
			if opts.MaxLinesPerFile > 0 && lineCount >= opts.MaxLinesPerFile {
				break
			}
			lineCount++
			rec := cdnlog.ParseLine(line)
			if rec == nil {
				continue
			}
			counters.AddParsed()
			if cmcdAttrs := rec.CMCDAttributes(); len(cmcdAttrs) > 0 {
				counters.AddCMCDLine()
				b, _ := json.Marshal(cmcdAttrs)
				log.Debug().RawJSON("cmcd", b).Msg("CMCD")
			}
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					runErr = err
					return false
				}
			}
			emitter.Emit(ctx, rec, ref.Key)
			counters.AddEmitted()
			parsedCount++
		}
		counters.AddLines(int64(lineCount))
		counters.AddObject()
		if opts.Verbose {
			log.Debug().Msgf("  %s: %d lines, %d parsed", ref.Key, lineCount, parsedCount)
		}
		return true
	})
	if err == nil {
		err = runErr
	}
	if err != nil {
		return err
	}

	log.Info().Msgf("Summary: %s", counters.Summary())
	if opts.Verbose && counters.Objects() == 0 {
		diagnoseZeroMatch(ctx, opts, since, store)
	}
	return nil
}

// diagnoseZeroMatch lists raw keys with no suffix or time filtering, to
// separate "nothing in the window" from a bucket or prefix typo. Purely
// operator-facing; listing failures here are logged, never fatal.
func diagnoseZeroMatch(ctx context.Context, opts config.RunOptions, since time.Time, store ObjectStore) {
	log.Debug().Msg("0 objects matched. Listing raw keys (no suffix filter) to check prefix/bucket...")
	for _, prefix := range opts.Prefixes {
		raw, err := store.RawKeys(ctx, prefix, 5)
		if err == nil && len(raw) == 0 && !strings.HasPrefix(prefix, "/") {
			// Some S3-compatible backends store keys with a leading slash.
			raw, err = store.RawKeys(ctx, "/"+prefix, 5)
		}
		if err != nil {
			log.Debug().Err(err).Str("prefix", prefix).Msg("raw listing failed")
			continue
		}
		if len(raw) == 0 {
			log.Debug().Msgf("  (no keys under prefix %q)", prefix)
			continue
		}
		for _, ref := range raw {
			log.Debug().Msgf("  key=%q last_modified=%s size=%d", ref.Key, ref.LastModified, ref.Size)
		}
		if !since.IsZero() {
			log.Debug().Msgf("  Cutoff was: last_modified >= %s (UTC)", since)
		}
	}
}

func logListingBanner(opts config.RunOptions) {
	if !opts.Verbose {
		return
	}
	if opts.Key != "" {
		log.Debug().Msgf("Fetching single key: s3://%s/%s", opts.Bucket, opts.Key)
		return
	}
	window := "all time"
	if opts.SinceMinutes > 0 {
		window = fmt.Sprintf("since last %d min", opts.SinceMinutes)
	}
	first := ""
	if len(opts.Prefixes) > 0 {
		first = opts.Prefixes[0]
	}
	if strings.HasPrefix(first, "/") {
		log.Debug().Msgf("Listing s3://%s%s (%s)...", opts.Bucket, first, window)
	} else {
		log.Debug().Msgf("Listing s3://%s/%s (%s)...", opts.Bucket, first, window)
	}
}
