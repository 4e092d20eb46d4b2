package evaluation

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// Loader reads evaluation datasets from JSONL or Parquet files.
type Loader struct {
	datasetPath string
	logger      *slog.Logger
}

// NewLoader creates a dataset loader.
func NewLoader(datasetPath string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{datasetPath: datasetPath, logger: logger}
}

// Load reads all records. The format is detected from the file extension.
func (l *Loader) Load() ([]Record, error) {
	return l.LoadSample(0)
}

// LoadSample reads at most limit records; limit <= 0 reads everything.
func (l *Loader) LoadSample(limit int) ([]Record, error) {
	ext := strings.ToLower(filepath.Ext(l.datasetPath))

	switch ext {
	case ".parquet":
		return l.loadParquet(limit)
	case ".jsonl", ".json":
		return l.loadJSONL(limit)
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .parquet, .jsonl)", ext)
	}
}

func (l *Loader) loadJSONL(limit int) ([]Record, error) {
	l.logger.Debug("Opening JSONL dataset", "path", l.datasetPath)

	file, err := os.Open(l.datasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)

	// Source texts can be long; raise the per-line cap.
	const maxCapacity = 10 * 1024 * 1024
	buf := make([]byte, maxCapacity)
	scanner.Buffer(buf, maxCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record jsonlRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		records = append(records, Record{
			ID:       record.ID,
			Text:     record.Text,
			Expected: record.Expected,
		})

		if limit > 0 && len(records) >= limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading dataset: %w", err)
	}

	l.logger.Debug("Finished reading JSONL dataset", "total_records", len(records))
	return records, nil
}

func (l *Loader) loadParquet(limit int) ([]Record, error) {
	l.logger.Debug("Opening Parquet dataset", "path", l.datasetPath)

	file, err := os.Open(l.datasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[parquetRecord](pf)
	defer reader.Close()

	var records []Record
	rows := make([]parquetRecord, 128)

	for {
		n, readErr := reader.Read(rows)
		for _, row := range rows[:n] {
			record := Record{ID: row.ID, Text: row.Text}
			if row.Expected != "" {
				if err := json.Unmarshal([]byte(row.Expected), &record.Expected); err != nil {
					return nil, fmt.Errorf("failed to parse expected document for record %s: %w", row.ID, err)
				}
			}
			records = append(records, record)
			if limit > 0 && len(records) >= limit {
				return records, nil
			}
		}
		if readErr != nil {
			break
		}
	}

	l.logger.Debug("Finished reading Parquet dataset", "total_records", len(records))
	return records, nil
}
