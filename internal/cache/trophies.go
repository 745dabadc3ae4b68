package cache

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/franz/trophy-janitor/internal/psn"
)

var trophiesHeader = []string{"GroupID", "GroupName", "TrophyID", "Name", "Detail", "Grade", "Earned", "EarnedRate", "IconURL"}

// TrophyCachePath returns the per-title cache file for an (npCommID,
// platform) pair
func (s *Store) TrophyCachePath(npCommID string, platform psn.Platform) string {
	return filepath.Join(s.trophyDir, fmt.Sprintf("%s_%s.csv", npCommID, platform))
}

// ReadTrophies reads a per-title trophy cache. A missing file yields an
// empty slice, not an error.
func (s *Store) ReadTrophies(npCommID string, platform psn.Platform) ([]TrophyRecord, error) {
	f, err := os.Open(s.TrophyCachePath(npCommID, platform))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open trophy cache: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse trophy cache: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}

	cols := columnIndex(rows[0])
	records := make([]TrophyRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		records = append(records, TrophyRecord{
			GroupID:    field(row, cols, "GroupID"),
			GroupName:  field(row, cols, "GroupName"),
			TrophyID:   intField(row, cols, "TrophyID"),
			Name:       field(row, cols, "Name"),
			Detail:     field(row, cols, "Detail"),
			Grade:      field(row, cols, "Grade"),
			Earned:     psn.NormBool(field(row, cols, "Earned")),
			EarnedRate: field(row, cols, "EarnedRate"),
			IconURL:    field(row, cols, "IconURL"),
		})
	}
	return records, nil
}

// WriteTrophies rewrites a title's trophy cache wholesale through a
// temporary path. An empty record set is rejected by the caller, never
// written: a refresh either fully replaces the file or leaves it untouched.
func (s *Store) WriteTrophies(npCommID string, platform psn.Platform, records []TrophyRecord) error {
	dest := s.TrophyCachePath(npCommID, platform)
	tmp := dest + ".tmp"
	defer os.Remove(tmp)

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create trophy cache: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(trophiesHeader); err != nil {
		f.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.GroupID,
			r.GroupName,
			strconv.Itoa(r.TrophyID),
			r.Name,
			r.Detail,
			r.Grade,
			strconv.FormatBool(r.Earned),
			r.EarnedRate,
			r.IconURL,
		}
		if err := w.Write(row); err != nil {
			f.Close()
			return fmt.Errorf("failed to write trophy row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush trophy cache: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close trophy cache: %w", err)
	}

	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("failed to replace trophy cache: %w", err)
	}
	return nil
}

// CountTrophyCaches reports how many per-title cache files exist, used by
// doctor
func (s *Store) CountTrophyCaches() (int, error) {
	entries, err := os.ReadDir(s.trophyDir)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".csv" {
			count++
		}
	}
	return count, nil
}
