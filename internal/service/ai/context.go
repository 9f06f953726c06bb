package ai

import (
	"encoding/json"
	"fmt"

	"github.com/zhouzirui/csvsage/backend/internal/analysis/tabular"
)

// Table is the read-only view of a parsed dataset the context builder needs.
type Table interface {
	Rows() int
	Width() int
	Columns() []string
	Missing() map[string]int
	Describe() map[string]tabular.ColumnStats
	Correlate() map[string]map[string]tabular.Float
}

// Summary is the statistical description of a dataset.
type Summary struct {
	Shape         [2]int                              `json:"shape"`
	Columns       []string                            `json:"columns"`
	MissingValues map[string]int                      `json:"missing_values"`
	Description   map[string]tabular.ColumnStats      `json:"description"`
	Correlation   map[string]map[string]tabular.Float `json:"correlation"`
}

// Schema lists a dataset's columns and row count.
type Schema struct {
	Columns []string `json:"columns"`
	Rows    int      `json:"rows"`
}

// PromptContext is the per-query dataset description injected into prompts.
type PromptContext struct {
	Summary Summary `json:"summary"`
	Schema  Schema  `json:"schema"`
}

// Summarize derives the descriptive statistics and numeric correlation table.
func Summarize(t Table) Summary {
	return Summary{
		Shape:         [2]int{t.Rows(), t.Width()},
		Columns:       t.Columns(),
		MissingValues: t.Missing(),
		Description:   t.Describe(),
		Correlation:   t.Correlate(),
	}
}

// BuildContext packages a summary with the dataset schema.
func BuildContext(t Table, summary Summary) PromptContext {
	return PromptContext{
		Summary: summary,
		Schema: Schema{
			Columns: t.Columns(),
			Rows:    t.Rows(),
		},
	}
}

// Render serializes the context. Map keys are emitted sorted, so equal
// datasets render identically.
func (c PromptContext) Render() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode prompt context: %w", err)
	}
	return string(data), nil
}
