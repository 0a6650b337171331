package models

import (
	"context"
	"errors"
)

// Failure classes for inference calls. Providers wrap these so callers
// can tell an unreachable backend from a malformed answer.
var (
	ErrVisionUnavailable     = errors.New("vision provider unavailable")
	ErrVisionInvalidResponse = errors.New("vision provider returned invalid response")
)

// VisionRequest is one inference call: an encoded image and a prompt.
type VisionRequest struct {
	ImageData []byte
	MimeType  string
	Prompt    string
}

// VisionResult is the raw inference output. Services differ: some return
// plain text, some an already-parsed JSON object. Exactly one field is
// set; callers must not assume an output schema beyond that.
type VisionResult struct {
	Text   string
	Object map[string]any
}

// Structured reports whether the service handed back a parsed object.
func (r VisionResult) Structured() bool { return r.Object != nil }

// VisionProvider is a vision-capable inference backend.
type VisionProvider interface {
	Name() string
	Analyze(ctx context.Context, req VisionRequest) (VisionResult, error)
}
