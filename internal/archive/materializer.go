package archive

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"invoicefetcher/internal/logger"
	"invoicefetcher/pkg/models"
)

// Materializer writes invoice PDFs into the archive. Writes go to a
// temporary sibling first and are renamed into place, so a concurrent
// index scan sees either no file or a complete file, never a partial one.
// Existing files are never overwritten.
type Materializer struct {
	root string
	log  zerolog.Logger
}

func NewMaterializer(root string) *Materializer {
	return &Materializer{
		root: root,
		log:  logger.WithComponent("archive"),
	}
}

// Path returns the canonical destination for a record without writing
// anything. Dry-run reporting uses this.
func (m *Materializer) Path(record models.InvoiceRecord) string {
	key := record.Key()
	return filepath.Join(m.root, record.Team,
		fmt.Sprintf("%04d", key.Year), fmt.Sprintf("%02d", key.Month),
		Filename(key))
}

// Materialize writes the PDF content to its canonical path, creating
// intermediate directories on demand. created is false when the
// destination already existed (a concurrent run or stale diff); the
// pre-existing file is left untouched.
func (m *Materializer) Materialize(record models.InvoiceRecord, content []byte) (path string, created bool, err error) {
	dest := m.Path(record)

	if _, err := os.Stat(dest); err == nil {
		m.log.Debug().Str("path", dest).Msg("Destination already exists, skipping write")
		return dest, false, nil
	} else if !os.IsNotExist(err) {
		return "", false, fmt.Errorf("stat %s: %w", dest, err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", false, fmt.Errorf("create partition directory: %w", err)
	}

	// The uuid suffix keeps concurrent runs off each other's temp files;
	// the ".tmp-" marker keeps the index scan from ever counting one.
	tmp := dest + ".tmp-" + uuid.NewString()
	if err := writeAndSync(tmp, content); err != nil {
		os.Remove(tmp)
		return "", false, fmt.Errorf("write %s: %w", tmp, err)
	}

	// Re-check before the rename: a concurrent run may have won the race
	// since the stat above. Rename would silently replace it.
	if _, err := os.Stat(dest); err == nil {
		os.Remove(tmp)
		m.log.Debug().Str("path", dest).Msg("Destination appeared during write, skipping rename")
		return dest, false, nil
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return "", false, fmt.Errorf("rename into place: %w", err)
	}

	m.log.Debug().Str("path", dest).Int("bytes", len(content)).Msg("Invoice materialized")
	return dest, true, nil
}

func writeAndSync(path string, content []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
