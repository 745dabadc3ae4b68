// Package watchlist turns the hand-maintained game lists into a clean,
// deduplicated watchlist document that the price commands consume.
package watchlist

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

const watchlistFile = "watchlist.json"

// Section headers that sometimes leak into the lists and must be dropped
var headerRe = regexp.MustCompile(`(?i)^to[- ]?do platinum|^backlog\b`)

// Leading numbering like "12. ", "12) " or "12 - "
var leadingNumberRe = regexp.MustCompile(`^\s*\d+\s*[.\-)]\s*`)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Item is one resolved watchlist entry. StoreID and PlatPricesID are
// filled in when a resolver is available, otherwise empty.
type Item struct {
	Title        string `json:"title"`
	StoreID      string `json:"store_id,omitempty"`
	PlatPricesID string `json:"platprices_id,omitempty"`
}

// Watchlist is the persisted document under reports/
type Watchlist struct {
	GeneratedAt string `json:"generated_at"`
	Count       int    `json:"count"`
	Items       []Item `json:"items"`
}

// CleanLine normalizes one raw list line. Returns "" for lines that carry
// no title (blank lines and section headers).
func CleanLine(line string) string {
	line = strings.TrimSpace(norm.NFC.String(line))
	if line == "" || headerRe.MatchString(line) {
		return ""
	}
	line = leadingNumberRe.ReplaceAllString(line, "")
	line = whitespaceRe.ReplaceAllString(line, " ")
	return strings.TrimSpace(line)
}

// ReadList reads one list file and returns its cleaned titles in order.
// A missing file is an empty list.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open list %s: %w", path, err)
	}
	defer f.Close()

	var titles []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if title := CleanLine(scanner.Text()); title != "" {
			titles = append(titles, title)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read list %s: %w", path, err)
	}
	return titles, nil
}

// Merge concatenates the lists in order and deduplicates them
// case-insensitively, keeping the first spelling seen
func Merge(lists ...[]string) []string {
	seen := make(map[string]bool)
	var titles []string
	for _, list := range lists {
		for _, t := range list {
			key := strings.ToLower(t)
			if seen[key] {
				continue
			}
			seen[key] = true
			titles = append(titles, t)
		}
	}
	return titles
}

// Path returns the watchlist document path under the reports directory
func Path(reportsDir string) string {
	return filepath.Join(reportsDir, watchlistFile)
}

// Write persists the watchlist document
func Write(reportsDir string, items []Item) (string, error) {
	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	doc := Watchlist{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Count:       len(items),
		Items:       items,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode watchlist: %w", err)
	}

	path := Path(reportsDir)
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("failed to write watchlist: %w", err)
	}
	return path, nil
}

// Read loads the watchlist document. A missing file is an error since the
// price commands cannot do anything without it.
func Read(reportsDir string) (*Watchlist, error) {
	data, err := os.ReadFile(Path(reportsDir))
	if err != nil {
		return nil, fmt.Errorf("failed to read watchlist (run 'pts resolve' first): %w", err)
	}
	var doc Watchlist
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse watchlist: %w", err)
	}
	return &doc, nil
}
