package report

import (
	"io"
	"strings"

	"github.com/maloquacious/schemactl/internal/schema"
)

// Status is the outcome of verifying a store.
type Status struct {
	Database        string   `json:"database" yaml:"database"`
	State           string   `json:"state" yaml:"state"`
	RecordedVersion string   `json:"recorded_version,omitempty" yaml:"recorded_version,omitempty"`
	ExpectedVersion string   `json:"expected_version,omitempty" yaml:"expected_version,omitempty"`
	Problems        []string `json:"problems,omitempty" yaml:"problems,omitempty"`
}

type statusDoc struct {
	Status  Status   `json:"status" yaml:"status"`
	Summary *Summary `json:"summary,omitempty" yaml:"summary,omitempty"`
	Items   []Row    `json:"items,omitempty" yaml:"items,omitempty"`
}

// WriteStatus renders a verification status, followed by the plan results
// when there are any.
func WriteStatus(w io.Writer, format Format, st Status, results []*schema.Result) error {
	doc := statusDoc{Status: st}
	if len(results) > 0 {
		summary := Summarize(results)
		doc.Summary = &summary
		doc.Items = Rows(results)
	}

	switch DetectFormat(format) {
	case FormatJSON:
		return writeJSON(w, doc)
	case FormatYAML:
		return writeYAML(w, doc)
	}

	integrity := "ok"
	if len(st.Problems) > 0 {
		integrity = strings.Join(st.Problems, "; ")
	}
	data := [][]string{
		{"database", st.Database},
		{"state", st.State},
		{"recorded version", st.RecordedVersion},
		{"expected version", st.ExpectedVersion},
		{"integrity", integrity},
	}
	if err := writeTable(w, []string{"Check", "Value"}, data); err != nil {
		return err
	}
	if len(results) == 0 {
		return nil
	}
	return WriteResults(w, FormatTable, results)
}

// Pending reports how many items a plan would still add.
func Pending(results []*schema.Result) int {
	return Summarize(results).Missing
}
