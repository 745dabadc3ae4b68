// Package cache owns the on-disk sync artifacts: the title index snapshot
// and the per-title trophy caches. No other package performs file I/O on
// them. All writes are whole-file replaces through a temporary path and a
// rename, so concurrent readers (the dashboard) always see either a fully
// formed file or the previous complete one.
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

const (
	titlesFile     = "psn_titles.csv"
	titlesPrevFile = "psn_titles.prev.csv"
	titlesTmpFile  = "psn_titles.tmp.csv"
	trophySubdir   = "trophies"
)

var titlesHeader = []string{"Title", "NPCommID", "Platform", "TrophiesUnlocked", "TrophiesTotal", "Percent"}

// Store provides access to the cache directory
type Store struct {
	dataDir   string
	trophyDir string
}

// NewStore opens a cache store rooted at dataDir, creating the directory
// layout when absent
func NewStore(dataDir string) (*Store, error) {
	trophyDir := filepath.Join(dataDir, trophySubdir)
	if err := os.MkdirAll(trophyDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Store{dataDir: dataDir, trophyDir: trophyDir}, nil
}

// DataDir returns the cache root directory
func (s *Store) DataDir() string {
	return s.dataDir
}

// TitlesPath returns the path of the current title index
func (s *Store) TitlesPath() string {
	return filepath.Join(s.dataDir, titlesFile)
}

// PrevTitlesPath returns the path of the retained previous title index
func (s *Store) PrevTitlesPath() string {
	return filepath.Join(s.dataDir, titlesPrevFile)
}

// ReadTitles reads the current title index. A missing file yields an empty
// slice, not an error.
func (s *Store) ReadTitles() ([]TitleRecord, error) {
	return readTitleIndex(s.TitlesPath())
}

// ReadPrevTitles reads the previous-generation title index. A missing file
// yields an empty slice, not an error.
func (s *Store) ReadPrevTitles() ([]TitleRecord, error) {
	return readTitleIndex(s.PrevTitlesPath())
}

// WriteTitles atomically replaces the title index. The outgoing index is
// relocated to the backup path first, so exactly one prior generation is
// retained. An interrupt before the final rename leaves the current index
// untouched.
func (s *Store) WriteTitles(records []TitleRecord) error {
	tmp := filepath.Join(s.dataDir, titlesTmpFile)
	defer os.Remove(tmp)

	if err := writeTitleIndex(tmp, records); err != nil {
		return err
	}

	current := s.TitlesPath()
	if _, err := os.Stat(current); err == nil {
		if err := os.Rename(current, s.PrevTitlesPath()); err != nil {
			return fmt.Errorf("failed to rotate previous index: %w", err)
		}
	}

	if err := os.Rename(tmp, current); err != nil {
		return fmt.Errorf("failed to replace title index: %w", err)
	}
	return nil
}

func writeTitleIndex(path string, records []TitleRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create title index: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(titlesHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.Title,
			r.NPCommID,
			string(r.Platform),
			strconv.Itoa(r.TrophiesUnlocked),
			strconv.Itoa(r.TrophiesTotal),
			strconv.Itoa(r.Percent),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write title row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush title index: %w", err)
	}
	return f.Sync()
}

func readTitleIndex(path string) ([]TitleRecord, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open title index: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse title index: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}

	cols := columnIndex(rows[0])
	records := make([]TitleRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		records = append(records, TitleRecord{
			Title:            field(row, cols, "Title"),
			NPCommID:         field(row, cols, "NPCommID"),
			Platform:         psn.Platform(field(row, cols, "Platform")),
			TrophiesUnlocked: intField(row, cols, "TrophiesUnlocked"),
			TrophiesTotal:    intField(row, cols, "TrophiesTotal"),
			Percent:          intField(row, cols, "Percent"),
		})
	}
	return records, nil
}

// columnIndex maps header names to positions, tolerating reordered columns
func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	return cols
}

func field(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func intField(row []string, cols map[string]int, name string) int {
	n, err := strconv.Atoi(field(row, cols, name))
	if err != nil {
		return 0
	}
	return n
}
