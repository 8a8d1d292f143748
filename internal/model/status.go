package model

import (
	"fmt"
	"strings"
)

type JobStatus string

const (
	JobSuccess JobStatus = "success"
	JobError   JobStatus = "error"
)

type GenerationMode string

const (
	ModeRaw      GenerationMode = "raw"
	ModeEnhanced GenerationMode = "enhanced"
)

var knownModes = map[GenerationMode]string{
	ModeRaw:      "raw documentation",
	ModeEnhanced: "AI-enhanced documentation",
}

func IsKnownStatus(status JobStatus) bool {
	return status == JobSuccess || status == JobError
}

func ParseGenerationMode(raw string) (GenerationMode, error) {
	mode := GenerationMode(strings.ToLower(strings.TrimSpace(raw)))
	if mode == "" {
		return ModeRaw, nil
	}
	if _, ok := knownModes[mode]; !ok {
		return "", fmt.Errorf("invalid generation mode %q (expected raw or enhanced)", strings.TrimSpace(raw))
	}
	return mode, nil
}

// NeedsDescription reports whether the mode requires an operator-supplied project description.
func (m GenerationMode) NeedsDescription() bool {
	return m == ModeEnhanced
}

func (m GenerationMode) Label() string {
	if label, ok := knownModes[m]; ok {
		return label
	}
	return string(m)
}

func (m GenerationMode) Next() GenerationMode {
	if m == ModeEnhanced {
		return ModeRaw
	}
	return ModeEnhanced
}
