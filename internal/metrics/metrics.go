// internal/metrics/metrics.go
package metrics

import (
	"fmt"
	"sync/atomic"
)

// Counters tracks one run of the pipeline. All fields are updated with
// atomics so a future parallel-object optimization keeps totals exact.
type Counters struct {
	// ObjectsProcessed counts objects whose lines were fully read.
	ObjectsProcessed int64

	// LinesRead counts every line taken from an object, including blank
	// and malformed ones that never became records.
	LinesRead int64

	// RecordsParsed counts lines that passed minimum-field validation.
	RecordsParsed int64

	// RecordsEmitted counts records handed to the export transport. In
	// export mode this equals RecordsParsed; in inspect mode it stays 0.
	RecordsEmitted int64

	// CMCDLines counts parsed lines carrying at least one cmcd.* attribute.
	CMCDLines int64
}

func New() *Counters {
	return &Counters{}
}

func (c *Counters) AddObject()       { atomic.AddInt64(&c.ObjectsProcessed, 1) }
func (c *Counters) AddLines(n int64) { atomic.AddInt64(&c.LinesRead, n) }
func (c *Counters) AddParsed()       { atomic.AddInt64(&c.RecordsParsed, 1) }
func (c *Counters) AddEmitted()      { atomic.AddInt64(&c.RecordsEmitted, 1) }
func (c *Counters) AddCMCDLine()     { atomic.AddInt64(&c.CMCDLines, 1) }

func (c *Counters) Objects() int64 { return atomic.LoadInt64(&c.ObjectsProcessed) }
func (c *Counters) Lines() int64   { return atomic.LoadInt64(&c.LinesRead) }
func (c *Counters) Parsed() int64  { return atomic.LoadInt64(&c.RecordsParsed) }
func (c *Counters) Emitted() int64 { return atomic.LoadInt64(&c.RecordsEmitted) }
func (c *Counters) CMCD() int64    { return atomic.LoadInt64(&c.CMCDLines) }

// Summary renders the end-of-run line for export mode.
func (c *Counters) Summary() string {
	return fmt.Sprintf("%d objects, %d lines read, %d log records emitted",
		c.Objects(), c.Lines(), c.Emitted())
}

// InspectSummary renders the end-of-run line for inspect mode.
func (c *Counters) InspectSummary() string {
	return fmt.Sprintf("%d lines with CMCD out of %d total (from %d objects)",
		c.CMCD(), c.Parsed(), c.Objects())
}
