package ai_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/csvsage/backend/internal/analysis/tabular"
	"github.com/zhouzirui/csvsage/backend/internal/service/ai"
)

func parse(t *testing.T, csv string) *tabular.Dataset {
	t.Helper()
	ds, err := tabular.Parse(strings.NewReader(csv))
	require.NoError(t, err)
	return ds
}

func TestSummarizeTwoNumericColumns(t *testing.T) {
	ds := parse(t, "height,weight\n1.6,60\n1.7,72\n1.8,80\n")

	summary := ai.Summarize(ds)

	assert.Equal(t, [2]int{3, 2}, summary.Shape)
	assert.Equal(t, []string{"height", "weight"}, summary.Columns)
	require.Contains(t, summary.Description, "height")
	require.Contains(t, summary.Description, "weight")
	assert.Equal(t, 3, summary.Description["height"].Count)
	assert.NotNil(t, summary.Description["weight"].Mean)

	require.Len(t, summary.Correlation, 2)
	for _, row := range summary.Correlation {
		assert.Len(t, row, 2)
	}
}

func TestSummarizeWithoutNumericColumns(t *testing.T) {
	ds := parse(t, "city,country\noslo,no\nrome,it\n")

	var summary ai.Summary
	require.NotPanics(t, func() { summary = ai.Summarize(ds) })

	assert.Empty(t, summary.Correlation)
	assert.Len(t, summary.Description, 2)
}

func TestBuildContextPackagesSchema(t *testing.T) {
	ds := parse(t, "a,b\n1,x\n2,y\n")
	summary := ai.Summarize(ds)

	pc := ai.BuildContext(ds, summary)

	assert.Equal(t, []string{"a", "b"}, pc.Schema.Columns)
	assert.Equal(t, 2, pc.Schema.Rows)
	assert.Equal(t, summary, pc.Summary)
}

func TestRenderIsDeterministic(t *testing.T) {
	ds := parse(t, "z,y,x\n1,2,3\n4,5,7\n")

	first, err := ai.BuildContext(ds, ai.Summarize(ds)).Render()
	require.NoError(t, err)
	second, err := ai.BuildContext(ds, ai.Summarize(ds)).Render()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(first), &decoded))
	assert.Contains(t, decoded, "summary")
	assert.Contains(t, decoded, "schema")
}
