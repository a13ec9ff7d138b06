package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"invoicefetcher/pkg/models"
)

var (
	yearDirPattern  = regexp.MustCompile(`^\d{4}$`)
	monthDirPattern = regexp.MustCompile(`^\d{2}$`)
)

// Index is the set of invoice keys already materialized for one team.
type Index map[models.InvoiceKey]models.LocalInvoiceEntry

// Has reports whether the key is present locally.
func (ix Index) Has(key models.InvoiceKey) bool {
	_, ok := ix[key]
	return ok
}

// Inconsistency is a local file that looks like an invoice but cannot be
// trusted as one: misfiled relative to its own name, or zero bytes. These
// are reported, never corrected, and never counted as index hits.
type Inconsistency struct {
	Path   string
	Reason string
}

func (i Inconsistency) String() string {
	return fmt.Sprintf("%s: %s", i.Path, i.Reason)
}

// BuildIndex scans root/team and returns the set of invoice keys present
// on disk. The scan is rebuilt fresh every run; nothing is cached across
// runs. A missing team directory yields an empty index.
func BuildIndex(root, team string) (Index, []Inconsistency, error) {
	entries, inconsistencies, err := Scan(root, team, 0)
	if err != nil {
		return nil, nil, err
	}

	ix := make(Index, len(entries))
	for _, e := range entries {
		ix[e.Key] = e
	}
	return ix, inconsistencies, nil
}

// Scan walks exactly the three-level {root}/{team}/{YYYY}/{MM} partition
// and returns every well-formed invoice file, sorted by date then invoice
// number. year filters to a single year when non-zero. Files that do not
// match the canonical name are ignored; month directories may hold
// unrelated files.
func Scan(root, team string, year int) ([]models.LocalInvoiceEntry, []Inconsistency, error) {
	teamDir := filepath.Join(root, team)

	yearDirs, err := os.ReadDir(teamDir)
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("scan %s: %w", teamDir, err)
	}

	var entries []models.LocalInvoiceEntry
	var inconsistencies []Inconsistency

	for _, yd := range yearDirs {
		if !yd.IsDir() || !yearDirPattern.MatchString(yd.Name()) {
			continue
		}
		dirYear, _ := strconv.Atoi(yd.Name())
		if year != 0 && dirYear != year {
			continue
		}

		monthDirs, err := os.ReadDir(filepath.Join(teamDir, yd.Name()))
		if err != nil {
			return nil, nil, fmt.Errorf("scan %s: %w", filepath.Join(teamDir, yd.Name()), err)
		}

		for _, md := range monthDirs {
			if !md.IsDir() || !monthDirPattern.MatchString(md.Name()) {
				continue
			}
			dirMonth, _ := strconv.Atoi(md.Name())

			monthPath := filepath.Join(teamDir, yd.Name(), md.Name())
			files, err := os.ReadDir(monthPath)
			if err != nil {
				return nil, nil, fmt.Errorf("scan %s: %w", monthPath, err)
			}

			for _, f := range files {
				if f.IsDir() {
					continue
				}
				key, ok := ParseFilename(f.Name())
				if !ok {
					// Unrelated or half-written file (e.g. notes.txt,
					// *.pdf.tmp-*); not ours to judge.
					continue
				}
				path := filepath.Join(monthPath, f.Name())

				if key.Year != dirYear || key.Month != dirMonth {
					inconsistencies = append(inconsistencies, Inconsistency{
						Path: path,
						Reason: fmt.Sprintf("misfiled: name says %04d/%02d, directory is %04d/%02d",
							key.Year, key.Month, dirYear, dirMonth),
					})
					continue
				}

				info, err := f.Info()
				if err != nil {
					return nil, nil, fmt.Errorf("stat %s: %w", path, err)
				}
				if info.Size() == 0 {
					// An interrupted write; excluded so the invoice is
					// fetched again on this run.
					inconsistencies = append(inconsistencies, Inconsistency{
						Path:   path,
						Reason: "zero-byte file",
					})
					continue
				}

				entries = append(entries, models.LocalInvoiceEntry{
					Team:      team,
					Year:      key.Year,
					Month:     key.Month,
					Key:       key,
					FilePath:  path,
					SizeBytes: info.Size(),
				})
			}
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].Key, entries[j].Key
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		return a.InvoiceNumber < b.InvoiceNumber
	})

	return entries, inconsistencies, nil
}
