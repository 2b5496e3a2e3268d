package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rokkincat/trackload/internal/loadtest/engine"
)

// WriteJSON writes result as indented JSON.
func WriteJSON(w io.Writer, result *engine.TestResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}

// WriteJSONFile writes result to path, replacing any existing file.
func WriteJSONFile(path string, result *engine.TestResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := WriteJSON(f, result); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
