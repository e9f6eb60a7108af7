package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStages(t *testing.T) {
	stages, err := ParseStages([]string{"synthesize", " Generate", "synthesize"})
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageGenerate, StageSynthesize}, stages)

	stages, err = ParseStages(nil)
	require.NoError(t, err)
	assert.Equal(t, AllStages, stages)

	_, err = ParseStages([]string{"index"})
	assert.ErrorContains(t, err, `unknown stage "index"`)
}
