package catalogue

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// ErrHeader is returned when tabular source misses required column
var ErrHeader = errors.New("missing required column")

// ManifestRow is reference card description together with path to its reference image
type ManifestRow struct {
	Entry
	Image string
}

type columnSet struct {
	id, localID, setID, setName, name, hash, image int
}

func normalizeColumn(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "\ufeff")
	name = strings.NewReplacer(" ", "_", "-", "_").Replace(name)
	return name
}

func mapHeader(header []string) columnSet {
	cols := columnSet{-1, -1, -1, -1, -1, -1, -1}
	for i, raw := range header {
		switch normalizeColumn(raw) {
		case "id":
			cols.id = i
		case "local_id", "localid":
			cols.localID = i
		case "set_id", "setid":
			cols.setID = i
		case "set_name", "setname":
			cols.setName = i
		case "name":
			cols.name = i
		case "hash", "fingerprint":
			cols.hash = i
		case "image", "image_path", "file":
			cols.image = i
		}
	}
	return cols
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// rowsToManifest converts header + data rows. Columns listed in required must be present
func rowsToManifest(rows [][]string, requireHash, requireImage bool) ([]ManifestRow, error) {
	if len(rows) == 0 {
		return nil, errors.Wrap(ErrHeader, "no header row")
	}
	cols := mapHeader(rows[0])
	if cols.id < 0 {
		return nil, errors.Wrap(ErrHeader, "ID")
	}
	if requireHash && cols.hash < 0 {
		return nil, errors.Wrap(ErrHeader, "hash")
	}
	if requireImage && cols.image < 0 {
		return nil, errors.Wrap(ErrHeader, "image")
	}
	result := make([]ManifestRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		result = append(result, ManifestRow{
			Entry: Entry{
				ID:      cell(row, cols.id),
				LocalID: cell(row, cols.localID),
				SetID:   cell(row, cols.setID),
				SetName: cell(row, cols.setName),
				Name:    cell(row, cols.name),
				Hash:    cell(row, cols.hash),
			},
			Image: cell(row, cols.image),
		})
	}
	return result, nil
}

func manifestEntries(rows []ManifestRow) []Entry {
	entries := make([]Entry, len(rows))
	for i := range rows {
		entries[i] = rows[i].Entry
	}
	return entries
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "Can't read CSV")
	}
	return rows, nil
}

// LoadCSV reads entries from CSV with header row (ID, Local_ID, Set_ID, Set_Name, Name, hash)
func LoadCSV(r io.Reader) ([]Entry, error) {
	rows, err := readCSV(r)
	if err != nil {
		return nil, err
	}
	manifest, err := rowsToManifest(rows, true, false)
	if err != nil {
		return nil, err
	}
	return manifestEntries(manifest), nil
}

// LoadManifestCSV reads reference image manifest: catalogue columns plus image path column
func LoadManifestCSV(r io.Reader) ([]ManifestRow, error) {
	rows, err := readCSV(r)
	if err != nil {
		return nil, err
	}
	return rowsToManifest(rows, false, true)
}

// LoadXLSX reads entries from the first sheet of a spreadsheet with the same columns as LoadCSV
func LoadXLSX(path string) ([]Entry, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open spreadsheet %s", path)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.Wrap(ErrHeader, "spreadsheet has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrapf(err, "Can't read sheet %s", sheets[0])
	}
	manifest, err := rowsToManifest(rows, true, false)
	if err != nil {
		return nil, err
	}
	return manifestEntries(manifest), nil
}

var sheetHeader = []string{"ID", "Local_ID", "Set_ID", "Set_Name", "Name", "hash"}

// WriteXLSX saves entries into a single sheet spreadsheet readable by LoadXLSX
func WriteXLSX(path string, entries []Entry) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for col, title := range sheetHeader {
		name, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return errors.Wrap(err, "Can't build cell name")
		}
		if err := f.SetCellValue(sheet, name, title); err != nil {
			return errors.Wrap(err, "Can't write header")
		}
	}
	for i, e := range entries {
		values := []string{e.ID, e.LocalID, e.SetID, e.SetName, e.Name, e.Hash}
		for col, v := range values {
			name, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return errors.Wrap(err, "Can't build cell name")
			}
			if err := f.SetCellValue(sheet, name, v); err != nil {
				return errors.Wrapf(err, "Can't write entry %s", e.ID)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "Can't save spreadsheet %s", path)
	}
	return nil
}

// WriteCSV saves entries with header row readable by LoadCSV
func WriteCSV(w io.Writer, entries []Entry) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(sheetHeader); err != nil {
		return errors.Wrap(err, "Can't write CSV header")
	}
	for _, e := range entries {
		if err := writer.Write([]string{e.ID, e.LocalID, e.SetID, e.SetName, e.Name, e.Hash}); err != nil {
			return errors.Wrapf(err, "Can't write entry %s", e.ID)
		}
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "Can't flush CSV")
}
