package model

import "sort"

// Outcome is the final state of one item fetch.
type Outcome string

const (
	OutcomeNoop             Outcome = "noop"
	OutcomeDownloaded       Outcome = "downloaded"
	OutcomeSizeMismatch     Outcome = "size-mismatch"
	OutcomeChecksumMismatch Outcome = "checksum-mismatch"
	OutcomeUnauthorized     Outcome = "unauthorized"
	OutcomeError            Outcome = "error"
)

// Outcomes lists every outcome in reporting order.
var Outcomes = []Outcome{
	OutcomeNoop,
	OutcomeDownloaded,
	OutcomeSizeMismatch,
	OutcomeChecksumMismatch,
	OutcomeUnauthorized,
	OutcomeError,
}

// Success reports whether the item ended up valid on disk.
func (o Outcome) Success() bool {
	return o == OutcomeNoop || o == OutcomeDownloaded
}

// Retryable reports whether a fresh attempt may change the outcome.
func (o Outcome) Retryable() bool {
	return !o.Success()
}

// FetchResult is what a fetcher returns for one item.
type FetchResult struct {
	Outcome  Outcome
	Attempts int
	Bytes    int64
	Err      error
}

// FailedItem is an entry of the error sink.
type FailedItem struct {
	Item    PackageItem
	Outcome Outcome
	Err     error
}

// SyncReport aggregates the results of one sync. It is assembled once after
// all workers have exited.
type SyncReport struct {
	Successes int
	Downloads int
	Errors    int
	Bytes     int64
	Counts    map[Outcome]int
	Failed    []FailedItem
}

// Processed is the number of items a pool popped and fetched.
func (r SyncReport) Processed() int {
	return r.Successes + r.Errors
}

// Tally is a per-worker accumulator merged into a SyncReport at join time.
type Tally struct {
	counts map[Outcome]int
	bytes  int64
	failed []FailedItem
}

// NewTally returns an empty accumulator.
func NewTally() *Tally {
	return &Tally{counts: make(map[Outcome]int, len(Outcomes))}
}

// Add records the result of one item.
func (t *Tally) Add(item PackageItem, res FetchResult) {
	t.counts[res.Outcome]++
	t.bytes += res.Bytes
	if !res.Outcome.Success() {
		t.failed = append(t.failed, FailedItem{Item: item, Outcome: res.Outcome, Err: res.Err})
	}
}

// MergeTallies builds the report from per-worker tallies.
func MergeTallies(tallies ...*Tally) SyncReport {
	report := SyncReport{Counts: make(map[Outcome]int, len(Outcomes))}
	for _, t := range tallies {
		if t == nil {
			continue
		}
		for o, n := range t.counts {
			report.Counts[o] += n
		}
		report.Bytes += t.bytes
		report.Failed = append(report.Failed, t.failed...)
	}
	for o, n := range report.Counts {
		if o.Success() {
			report.Successes += n
		} else {
			report.Errors += n
		}
	}
	report.Downloads = report.Counts[OutcomeDownloaded]
	sort.SliceStable(report.Failed, func(i, j int) bool {
		return report.Failed[i].Item.String() < report.Failed[j].Item.String()
	})
	return report
}
