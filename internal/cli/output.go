package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/refcheck/internal/service"
)

// Report formats accepted by --format.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func validFormat(format string) bool {
	switch format {
	case formatText, formatJSON, formatYAML:
		return true
	}
	return false
}

// writeReport writes the result to --output, or stdout when unset.
func (a *app) writeReport(format string, result service.ComparisonResult) error {
	if a.opts.output == "" {
		return writeReport(a.stdout, format, result)
	}

	file, err := os.Create(a.opts.output)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := writeReport(file, format, result); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close report file: %w", err)
	}
	a.logger.Info("report written", "path", a.opts.output, "format", format)
	return nil
}

// writeReport encodes result in the given format. The text report is
// printed as one line, so it ends with an extra newline after the last section.
func writeReport(w io.Writer, format string, result service.ComparisonResult) error {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(result.View(), "", "  ")
		if err != nil {
			return fmt.Errorf("encode json report: %w", err)
		}
		if _, err := fmt.Fprintln(w, string(data)); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result.View()); err != nil {
			return fmt.Errorf("encode yaml report: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode yaml report: %w", err)
		}
	default:
		if _, err := fmt.Fprintln(w, service.Render(result)); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	return nil
}
