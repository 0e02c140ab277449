package pipeline

import (
	"strings"
	"unicode"

	"puhuri/internal/queue"
	"puhuri/internal/stage"
)

// StageSet bundles the concrete handlers the runner orchestrates.
type StageSet struct {
	Parse      stage.Handler
	Translate  stage.Handler
	Synthesize stage.Handler
	Assemble   stage.Handler
	Organize   stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
}

func buildStages(set StageSet) []pipelineStage {
	return []pipelineStage{
		{
			name:             "parse",
			handler:          set.Parse,
			startStatus:      queue.StatusPending,
			processingStatus: queue.StatusParsing,
			doneStatus:       queue.StatusParsed,
		},
		{
			name:             "translate",
			handler:          set.Translate,
			startStatus:      queue.StatusParsed,
			processingStatus: queue.StatusTranslating,
			doneStatus:       queue.StatusTranslated,
		},
		{
			name:             "synthesize",
			handler:          set.Synthesize,
			startStatus:      queue.StatusTranslated,
			processingStatus: queue.StatusSynthesizing,
			doneStatus:       queue.StatusSynthesized,
		},
		{
			name:             "assemble",
			handler:          set.Assemble,
			startStatus:      queue.StatusSynthesized,
			processingStatus: queue.StatusAssembling,
			doneStatus:       queue.StatusAssembled,
		},
		{
			name:             "organize",
			handler:          set.Organize,
			startStatus:      queue.StatusAssembled,
			processingStatus: queue.StatusOrganizing,
			doneStatus:       queue.StatusCompleted,
		},
	}
}

func deriveStageLabel(status queue.Status) string {
	if status == "" {
		return ""
	}
	parts := strings.Fields(strings.ReplaceAll(string(status), "_", " "))
	for i, part := range parts {
		if part == "" {
			continue
		}
		runes := []rune(strings.ToLower(part))
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}
