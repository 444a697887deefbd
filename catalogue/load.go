package catalogue

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ErrFormat is returned for catalogue files of unknown type
var ErrFormat = errors.New("unsupported catalogue format")

// Load reads raw entries from CSV, XLSX or SQLite file, chosen by file extension.
// Entries are not filtered: pass them to New.
func Load(ctx context.Context, path string) ([]Entry, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't open catalogue %s", path)
		}
		defer f.Close()
		return LoadCSV(f)
	case ".xlsx":
		return LoadXLSX(path)
	case ".db", ".sqlite", ".sqlite3":
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrapf(err, "Can't open catalogue %s", path)
		}
		store, err := OpenStore(ctx, path)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		return store.All(ctx)
	default:
		return nil, errors.Wrapf(ErrFormat, "%s", path)
	}
}
