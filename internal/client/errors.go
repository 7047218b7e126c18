package client

import "errors"

// Sentinel errors for backend operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrRequestFailed indicates a non-success status or a transport failure.
	// Structured error bodies are not interpreted.
	ErrRequestFailed = errors.New("request failed")

	// ErrUnsupportedFile indicates a staged file the backend cannot load.
	ErrUnsupportedFile = errors.New("unsupported file type")

	// ErrUnknownAgent indicates an agent kind outside the closed enumeration.
	ErrUnknownAgent = errors.New("unknown agent kind")
)
