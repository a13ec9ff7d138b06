package syncer

import (
	"invoicefetcher/internal/archive"
	"invoicefetcher/pkg/models"
)

// Diff computes which remote records still need downloading. It is a pure
// function of its inputs: no I/O, no clock.
//
// Order of toDownload preserves the remote listing order. Remote records
// sharing a key (the portal sometimes repeats an item across page
// boundaries) collapse to a single entry, first occurrence wins.
// alreadyPresent counts distinct keys found locally.
func Diff(remote []models.InvoiceRecord, local archive.Index) (toDownload []models.InvoiceRecord, alreadyPresent int) {
	seen := make(map[models.InvoiceKey]struct{}, len(remote))

	for _, rec := range remote {
		key := rec.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if local.Has(key) {
			alreadyPresent++
			continue
		}
		toDownload = append(toDownload, rec)
	}

	return toDownload, alreadyPresent
}
