package model

import "errors"

var (
	// ErrAuthInput is returned before any remote call when no API key is available.
	ErrAuthInput = errors.New("missing API key")
	// ErrConnection covers catalog fetch failures: network, CORS, or non-2xx.
	ErrConnection = errors.New("connection failed")
	// ErrEmptyCatalog is returned when the catalog fetch succeeded with zero projects.
	ErrEmptyCatalog = errors.New("no projects found in your workspace")
	ErrValidation   = errors.New("invalid batch request")
	// ErrGeneration marks a single project's failed remote call.
	ErrGeneration = errors.New("documentation generation failed")
)
