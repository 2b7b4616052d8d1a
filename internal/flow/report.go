// internal/flow/report.go
package flow

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"
)

// WriteText renders the report as an aligned table.
func (r *Report) WriteText(w io.Writer) error {
	status := "passed"
	if r.Failed() {
		status = "FAILED"
	}
	if _, err := fmt.Fprintf(w, "flow %q %s in %s (run %s)\n", r.Flow, status, r.Duration.Round(time.Millisecond), r.RunID); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tACTION\tTARGET\tRESULT\tTIME")
	for _, s := range r.Steps {
		result := s.Entity
		if s.Error != "" {
			result = "error: " + s.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.Index, s.Kind, s.Target, result, s.Duration.Round(time.Millisecond))
	}
	return tw.Flush()
}

// WriteYAML encodes the report as a YAML document.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}
