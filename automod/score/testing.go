package score

import (
	"context"
)

// MockClient returns fixed scores per content string, for tests.
type MockClient struct {
	TextScores  map[string]float64
	MediaScores map[string]float64
	Err         error
}

var _ Client = (*MockClient)(nil)

func NewMockClient() *MockClient {
	return &MockClient{
		TextScores:  make(map[string]float64),
		MediaScores: make(map[string]float64),
	}
}

func (m *MockClient) ScoreText(ctx context.Context, text string) (float64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return m.TextScores[text], nil
}

func (m *MockClient) ScoreMediaURL(ctx context.Context, url string) (float64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return m.MediaScores[url], nil
}
