// Package mock satisfies models.VisionProvider for tests and local
// development without an inference backend.
package mock

import (
	"context"

	"github.com/wardrobehq/wardrobe/pkg/models"
)

type MockProvider struct {
	Name_       string
	AnalyzeFunc func(ctx context.Context, req models.VisionRequest) (models.VisionResult, error)
	Calls       int
}

func (m *MockProvider) Name() string {
	if m.Name_ == "" {
		return "mock"
	}
	return m.Name_
}

func (m *MockProvider) Analyze(ctx context.Context, req models.VisionRequest) (models.VisionResult, error) {
	m.Calls++
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, req)
	}
	return models.VisionResult{
		Text: `{"category":"tops","subcategory":"t-shirt","colors":["white"],"description":"plain white t-shirt"}`,
	}, nil
}

// NewProvider returns a MockProvider with a sensible default response.
func NewProvider() *MockProvider {
	return &MockProvider{Name_: "mock"}
}

// NewFailingProvider returns a MockProvider that always returns err.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		AnalyzeFunc: func(_ context.Context, _ models.VisionRequest) (models.VisionResult, error) {
			return models.VisionResult{}, err
		},
	}
}

// Step is one canned outcome for NewSequenceProvider.
type Step struct {
	Result models.VisionResult
	Err    error
}

// NewSequenceProvider replays steps in order, repeating the last step once
// the sequence is exhausted.
func NewSequenceProvider(steps ...Step) *MockProvider {
	i := 0
	return &MockProvider{
		Name_: "mock-sequence",
		AnalyzeFunc: func(_ context.Context, _ models.VisionRequest) (models.VisionResult, error) {
			step := steps[i]
			if i < len(steps)-1 {
				i++
			}
			return step.Result, step.Err
		},
	}
}

var _ models.VisionProvider = (*MockProvider)(nil)
