package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/failscope/internal/models"
)

// Persisted layout under the storage directory
const (
	LatestHandlerFile = "latest-handler-errors.json"
	LatestRunJSONFile = "latest-errors.json"
	LatestRunTextFile = "latest-errors.txt"

	dayLogPrefix  = "error-handler-"
	runDumpPrefix = "errors-"
	sessionPrefix = "session-summary-"

	dayLayout = "2006-01-02"
	runLayout = "2006-01-02T15-04-05.000"

	// maxLineSize bounds one NDJSON line (records may carry DOM source)
	maxLineSize = 32 * 1024 * 1024
)

// DayLogPath is the append-only log for the calendar day of t
func DayLogPath(dir string, t time.Time) string {
	return filepath.Join(dir, dayLogPrefix+t.Format(dayLayout)+".log")
}

// RunDumpPaths are the JSON and text dump paths for a run ending at t
func RunDumpPaths(dir string, t time.Time) (string, string) {
	base := filepath.Join(dir, runDumpPrefix+t.Format(runLayout))
	return base + ".json", base + ".txt"
}

// SessionSummaryPath is the end-of-session report for sessionID
func SessionSummaryPath(dir, sessionID string) string {
	return filepath.Join(dir, sessionPrefix+sessionID+".txt")
}

// appendLine appends one JSON line with a single write call
func appendLine(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to %s: %w", path, err)
	}
	return f.Close()
}

// writeJSON replaces path atomically so readers never see a partial file
func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// ReadLatestRecords reads latest-handler-errors.json. A missing file is not an error.
func ReadLatestRecords(dir string) ([]models.FailureRecord, error) {
	records, _, err := LoadLatestRecords(dir)
	return records, err
}

// LoadLatestRecords reads latest-handler-errors.json; ok is false when it does not exist
func LoadLatestRecords(dir string) ([]models.FailureRecord, bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, LatestHandlerFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", LatestHandlerFile, err)
	}
	var records []models.FailureRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, false, fmt.Errorf("failed to parse %s: %w", LatestHandlerFile, err)
	}
	return records, true, nil
}

// ReadDayLog reads one NDJSON day log. Malformed lines are skipped and counted.
func ReadDayLog(path string) ([]models.FailureRecord, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var records []models.FailureRecord
	skipped := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var r models.FailureRecord
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			skipped++
			continue
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return records, skipped, fmt.Errorf("failed to scan %s: %w", path, err)
	}
	return records, skipped, nil
}

// DayLogPaths lists day logs oldest first
func DayLogPaths(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, dayLogPrefix+"*.log"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadRunDumps reads up to limit of the most recent errors-<ts>.json dumps,
// oldest first (limit <= 0 means all). Unreadable dumps are skipped.
func LoadRunDumps(dir string, limit int) ([]models.RunDump, error) {
	paths, err := filepath.Glob(filepath.Join(dir, runDumpPrefix+"*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	if limit > 0 && len(paths) > limit {
		paths = paths[len(paths)-limit:]
	}

	dumps := make([]models.RunDump, 0, len(paths))
	for _, path := range paths {
		dump, err := readRunDump(path)
		if err != nil {
			continue
		}
		dumps = append(dumps, dump)
	}
	return dumps, nil
}

// LoadLatestRun reads latest-errors.json; ok is false when it does not exist
func LoadLatestRun(dir string) (models.RunDump, bool, error) {
	dump, err := readRunDump(filepath.Join(dir, LatestRunJSONFile))
	if errors.Is(err, os.ErrNotExist) {
		return models.RunDump{}, false, nil
	}
	if err != nil {
		return models.RunDump{}, false, err
	}
	return dump, true, nil
}

func readRunDump(path string) (models.RunDump, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.RunDump{}, err
	}
	var dump models.RunDump
	if err := json.Unmarshal(data, &dump); err != nil {
		return models.RunDump{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return dump, nil
}
