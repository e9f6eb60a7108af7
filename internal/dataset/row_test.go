package dataset

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowPreservesColumnOrder(t *testing.T) {
	row := NewRow([]string{"zeta", "alpha", "mid"}, []any{int64(3), []byte("a<b"), nil})

	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":3,"alpha":"a<b","mid":null}`, string(data))

	var back Row
	require.NoError(t, json.Unmarshal(data, &back))
	if diff := cmp.Diff(row, back); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeValue(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"bytes", []byte("Example Unified"), "Example Unified"},
		{"binary bytes", []byte{0xff, 0x00, 0xfe}, "/wD+"},
		{"int64", int64(-7), json.Number("-7")},
		{"float", 612.5, json.Number("612.5")},
		{"whole float", float64(2), json.Number("2")},
		{"nan", math.NaN(), "NaN"},
		{"bool", true, true},
		{"time", ts, "2024-05-01T12:00:00Z"},
		{"nil", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeValue(tt.in))
		})
	}
}

func TestBinaryBlobSurvivesRoundTrip(t *testing.T) {
	row := NewRow([]string{"photo"}, []any{[]byte{0x89, 'P', 'N', 'G', 0xff}})

	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `\ufffd`)

	var back Row
	require.NoError(t, json.Unmarshal(data, &back))
	if diff := cmp.Diff(row, back); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRowGet(t *testing.T) {
	row := NewRow([]string{"District"}, []any{"Example Unified"})

	v, ok := row.Get("District")
	assert.True(t, ok)
	assert.Equal(t, "Example Unified", v)

	_, ok = row.Get("County")
	assert.False(t, ok)
}

func TestRowRejectsNonObject(t *testing.T) {
	var row Row
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &row))
}

func TestRowMismatchedLengths(t *testing.T) {
	_, err := json.Marshal(Row{Columns: []string{"a"}})
	assert.Error(t, err)
}
