package pipeline

import (
	"fmt"
	"strings"
)

type Stage string

const (
	StageGenerate   Stage = "generate"
	StageExecute    Stage = "execute"
	StageSynthesize Stage = "synthesize"
)

var stageOrder = map[Stage]int{
	StageGenerate:   0,
	StageExecute:    1,
	StageSynthesize: 2,
}

// AllStages is the full pipeline in execution order.
var AllStages = []Stage{StageGenerate, StageExecute, StageSynthesize}

// ParseStages validates names and returns them in pipeline order without
// duplicates. An empty input selects every stage.
func ParseStages(names []string) ([]Stage, error) {
	if len(names) == 0 {
		return append([]Stage(nil), AllStages...), nil
	}

	seen := make(map[Stage]bool, len(names))
	for _, name := range names {
		s := Stage(strings.ToLower(strings.TrimSpace(name)))
		if _, ok := stageOrder[s]; !ok {
			return nil, fmt.Errorf("unknown stage %q", name)
		}
		seen[s] = true
	}

	var stages []Stage
	for _, s := range AllStages {
		if seen[s] {
			stages = append(stages, s)
		}
	}
	return stages, nil
}

func hasStage(stages []Stage, s Stage) bool {
	for _, candidate := range stages {
		if candidate == s {
			return true
		}
	}
	return false
}

func stageNames(stages []Stage) []string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = string(s)
	}
	return names
}
