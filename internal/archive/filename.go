// Package archive manages the on-disk invoice tree. The directory layout
// is {root}/{team}/{YYYY}/{MM}/ and the filename stem encodes the full
// invoice identity, so the filesystem itself is the index of what has
// already been downloaded.
package archive

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"invoicefetcher/pkg/models"
)

// Canonical filename: {YYYY}-{MM}-{DD}--{amount}--{invoice_number}.pdf
// Amount always carries exactly two fractional digits and no thousands
// separator; the invoice number is the portal's literal identifier and
// may itself contain hyphens.
var filenamePattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})--(\d+\.\d{2})--(.+)\.pdf$`)

// Filename renders the canonical file name for a key.
func Filename(key models.InvoiceKey) string {
	return fmt.Sprintf("%04d-%02d-%02d--%s--%s.pdf",
		key.Year, key.Month, key.Day, key.Amount, key.InvoiceNumber)
}

// ParseFilename parses a canonical invoice file name. The second return
// value is false for any file that does not fully match the pattern or
// encodes an impossible date; such files are skipped, never an error.
func ParseFilename(name string) (models.InvoiceKey, bool) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return models.InvoiceKey{}, false
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])

	// Reject dates like 2024-13-41 that match the pattern digit-wise.
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return models.InvoiceKey{}, false
	}

	return models.InvoiceKey{
		Year:          year,
		Month:         month,
		Day:           day,
		Amount:        m[4],
		InvoiceNumber: m[5],
	}, true
}
