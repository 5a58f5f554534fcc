// Package export writes report results to JSON files.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const timestampLayout = "20060102_150405"

// Exporter writes one JSON document per report under a base directory
type Exporter struct {
	baseDir string
	now     func() time.Time
}

// NewExporter creates an exporter rooted at baseDir
func NewExporter(baseDir string) *Exporter {
	return &Exporter{baseDir: baseDir, now: time.Now}
}

// TimestampedFilename names an export file after the report and the moment
// it was written, e.g. rfm_20240701_093000.json
func TimestampedFilename(baseDir, name string, at time.Time) string {
	return filepath.Join(baseDir, fmt.Sprintf("%s_%s.json", name, at.Format(timestampLayout)))
}

// Export writes data under a timestamped name and returns the file path
func (e *Exporter) Export(name string, data interface{}) (string, error) {
	filename := TimestampedFilename(e.baseDir, name, e.now())
	if err := ExportJSON(filename, data); err != nil {
		return "", err
	}
	return filename, nil
}

// ExportJSON writes data as indented JSON, creating parent directories
func ExportJSON(filename string, data interface{}) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		file.Close()
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}
