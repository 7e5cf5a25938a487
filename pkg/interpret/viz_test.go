package interpret

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectVisualization_EmptyRowsIsNone(t *testing.T) {
	v := SelectVisualization(nil, []string{"count"})
	assert.Equal(t, VizNone, v.Type)
}

func TestSelectVisualization_SingleScalarIsNone(t *testing.T) {
	v := SelectVisualization([][]any{{42}}, []string{"count"})
	assert.Equal(t, VizNone, v.Type)
}

func TestSelectVisualization_TemporalPlusNumericIsLine(t *testing.T) {
	rows := [][]any{
		{"2026-01-01", 10}, {"2026-01-02", 12}, {"2026-01-03", 9},
	}
	v := SelectVisualization(rows, []string{"date", "count"})
	assert.Equal(t, VizLine, v.Type)
	assert.Equal(t, "date", v.XColumn)
	assert.Equal(t, "count", v.YColumn)
}

func TestSelectVisualization_GroupingPlusNumericIsBar(t *testing.T) {
	rows := [][]any{
		{"us-east", 5}, {"us-west", 3}, {"eu-west", 8},
	}
	v := SelectVisualization(rows, []string{"datacenter", "count"})
	assert.Equal(t, VizBar, v.Type)
	assert.Equal(t, "datacenter", v.XColumn)
	assert.Equal(t, "count", v.YColumn)
}

func TestSelectVisualization_TwoNumericNoGroupingIsScatter(t *testing.T) {
	rows := [][]any{
		{1.0, 2.0}, {3.0, 4.0}, {5.0, 6.0},
	}
	v := SelectVisualization(rows, []string{"x", "y"})
	assert.Equal(t, VizScatter, v.Type)
}

func TestSelectVisualization_HighCardinalityStringFallsThroughToNone(t *testing.T) {
	rows := make([][]any, 20)
	for i := range rows {
		rows[i] = []any{string(rune('a' + i)), i}
	}
	v := SelectVisualization(rows, []string{"label", "count"})
	assert.Equal(t, VizNone, v.Type)
}
