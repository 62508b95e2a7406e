package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

const dayStoreDir = "app-usage"

// JSONDayStore implements domain.DayStore as one JSON file per date
// under <data_dir>/app-usage/<date>.json.
type JSONDayStore struct {
	dir string
}

// NewJSONDayStore creates the store directory if needed.
func NewJSONDayStore(dataDir string) (*JSONDayStore, error) {
	dir := filepath.Join(dataDir, dayStoreDir)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create usage directory: %w", err)
	}
	return &JSONDayStore{dir: dir}, nil
}

// Dir returns the directory holding day files.
func (s *JSONDayStore) Dir() string {
	return s.dir
}

func (s *JSONDayStore) path(date string) string {
	return filepath.Join(s.dir, date+".json")
}

// Load reads the record for date.
func (s *JSONDayStore) Load(date string) (*domain.DayRecord, error) {
	if !validDate(date) {
		return nil, fmt.Errorf("invalid date %q", date)
	}
	data, err := os.ReadFile(s.path(date))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrDayNotFound
		}
		return nil, err
	}

	var day domain.DayRecord
	if err := json.Unmarshal(data, &day); err != nil {
		return nil, fmt.Errorf("corrupt usage file %s: %w", date, err)
	}
	return &day, nil
}

// Save writes the record atomically (write + rename).
func (s *JSONDayStore) Save(day *domain.DayRecord) error {
	if !validDate(day.Date) {
		return fmt.Errorf("invalid date %q", day.Date)
	}
	data, err := json.MarshalIndent(day, "", "  ")
	if err != nil {
		return err
	}

	target := s.path(day.Date)
	// Unique per process so a concurrent CLI reader never sees a partial file
	tmpPath := fmt.Sprintf("%s.%d.tmp", target, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath) // Clean up on failure
		return err
	}
	return nil
}

// Dates lists stored day keys in ascending order.
func (s *JSONDayStore) Dates() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	dates := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		date, ok := strings.CutSuffix(e.Name(), ".json")
		if ok && validDate(date) {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)
	return dates, nil
}

// Close is a no-op; files are closed after every operation.
func (s *JSONDayStore) Close() error {
	return nil
}

func validDate(date string) bool {
	_, err := time.Parse(domain.DateLayout, date)
	return err == nil
}

// Ensure JSONDayStore implements domain.DayStore.
var _ domain.DayStore = (*JSONDayStore)(nil)
