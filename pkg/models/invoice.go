package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceRecord is one invoice as reported by the portal listing.
// Records live for the duration of a single sync run; they are never
// cached across runs.
type InvoiceRecord struct {
	InvoiceNumber   string          // portal's literal identifier, may contain hyphens
	TransactionDate time.Time       // date of the transaction (time-of-day ignored)
	Amount          decimal.Decimal // exact decimal, rendered with two fractional digits
	Team            string          // team the invoice belongs to
	ContentRef      string          // opaque handle for fetching the PDF content
}

// Key derives the canonical identity of the record. Two records with the
// same invoice number but different amounts (a corrected invoice) yield
// distinct keys and both are kept on disk.
func (r InvoiceRecord) Key() InvoiceKey {
	return InvoiceKey{
		Year:          r.TransactionDate.Year(),
		Month:         int(r.TransactionDate.Month()),
		Day:           r.TransactionDate.Day(),
		Amount:        r.Amount.StringFixed(2),
		InvoiceNumber: r.InvoiceNumber,
	}
}

// InvoiceKey identifies one invoice for local-presence purposes. It doubles
// as the filename stem, so Amount is stored in its canonical two-digit
// string form rather than as a decimal value.
type InvoiceKey struct {
	Year          int
	Month         int
	Day           int
	Amount        string
	InvoiceNumber string
}

func (k InvoiceKey) String() string {
	return fmt.Sprintf("%04d-%02d-%02d--%s--%s", k.Year, k.Month, k.Day, k.Amount, k.InvoiceNumber)
}

// LocalInvoiceEntry is one invoice already materialized on disk, derived
// purely from the directory tree. The filesystem is the index; entries are
// never persisted separately.
type LocalInvoiceEntry struct {
	Team      string
	Year      int
	Month     int
	Key       InvoiceKey
	FilePath  string
	SizeBytes int64
}

// SyncWindow bounds the remote listing request for one run. It never
// restricts what counts as already local.
type SyncWindow struct {
	Team  string
	Since time.Time
	Until time.Time
}

// DefaultWindow returns a window spanning the given number of days and
// ending on the calendar day the sync starts, in now's location. Days
// must be positive; callers validate before this point.
func DefaultWindow(team string, days int, now time.Time) SyncWindow {
	until := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return SyncWindow{
		Team:  team,
		Since: until.AddDate(0, 0, -days),
		Until: until,
	}
}

// Contains reports whether the date falls inside the window (inclusive on
// both ends). Listing results outside the window are dropped regardless of
// what the portal returned.
func (w SyncWindow) Contains(date time.Time) bool {
	d := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	since := time.Date(w.Since.Year(), w.Since.Month(), w.Since.Day(), 0, 0, 0, 0, time.UTC)
	until := time.Date(w.Until.Year(), w.Until.Month(), w.Until.Day(), 0, 0, 0, 0, time.UTC)
	return !d.Before(since) && !d.After(until)
}

// ItemFailure records one invoice that could not be materialized. Failed
// items are retried implicitly on the next run since they are still absent
// from disk.
type ItemFailure struct {
	Key    InvoiceKey
	Reason string
}

// RunSummary is the outcome of one sync run. Per-item failures never make
// the run itself fail; only authentication failure is fatal.
type RunSummary struct {
	Team             string
	Listed           int
	AlreadyPresent   int
	Downloaded       int
	SkippedDryRun    int
	Failed           int
	MalformedRemote  int
	ListingTruncated bool // a mid-listing failure kept partial results
	Failures         []ItemFailure
	Inconsistencies  []string // misfiled local files, reported, never corrected
}
