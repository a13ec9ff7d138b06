package archive

import (
	"fmt"
	"os"
	"path/filepath"
)

// CleanupEmptyDirs removes empty month and year directories under the
// team's partition, months before years. Manual moves out of the archive
// leave these behind. Only directories matching the canonical layout are
// touched; the team directory itself always stays. Returns the removed
// paths.
func CleanupEmptyDirs(root, team string) ([]string, error) {
	teamDir := filepath.Join(root, team)

	yearDirs, err := os.ReadDir(teamDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cleanup %s: %w", teamDir, err)
	}

	var removed []string
	for _, yd := range yearDirs {
		if !yd.IsDir() || !yearDirPattern.MatchString(yd.Name()) {
			continue
		}
		yearPath := filepath.Join(teamDir, yd.Name())

		monthDirs, err := os.ReadDir(yearPath)
		if err != nil {
			return removed, fmt.Errorf("cleanup %s: %w", yearPath, err)
		}
		for _, md := range monthDirs {
			if !md.IsDir() || !monthDirPattern.MatchString(md.Name()) {
				continue
			}
			monthPath := filepath.Join(yearPath, md.Name())
			empty, err := dirIsEmpty(monthPath)
			if err != nil {
				return removed, err
			}
			if !empty {
				continue
			}
			if err := os.Remove(monthPath); err != nil {
				return removed, fmt.Errorf("cleanup %s: %w", monthPath, err)
			}
			removed = append(removed, monthPath)
		}

		empty, err := dirIsEmpty(yearPath)
		if err != nil {
			return removed, err
		}
		if empty {
			if err := os.Remove(yearPath); err != nil {
				return removed, fmt.Errorf("cleanup %s: %w", yearPath, err)
			}
			removed = append(removed, yearPath)
		}
	}
	return removed, nil
}

func dirIsEmpty(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return false, fmt.Errorf("cleanup %s: %w", path, err)
	}
	return len(entries) == 0, nil
}
