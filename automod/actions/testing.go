package actions

import (
	"context"
	"sync"
	"time"
)

// Call records one invocation against the MockClient.
type Call struct {
	Op          string // "apply" or "reverse"
	CommunityID string
	ActorID     string
	Kind        string
	Duration    *time.Duration
	Reason      string
}

// MockClient records calls for assertions. Intentionally exported for use in
// other packages' tests.
type MockClient struct {
	mu    sync.Mutex
	Calls []Call
	// when non-nil, returned by the next FailNext invocations
	Err      error
	FailNext int
}

var _ Client = (*MockClient)(nil)

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) record(c Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNext > 0 && m.Err != nil {
		m.FailNext--
		return m.Err
	}
	m.Calls = append(m.Calls, c)
	return nil
}

func (m *MockClient) ApplyPunishment(ctx context.Context, communityID, actorID, kind string, duration *time.Duration, reason string) error {
	return m.record(Call{Op: "apply", CommunityID: communityID, ActorID: actorID, Kind: kind, Duration: duration, Reason: reason})
}

func (m *MockClient) ReversePunishment(ctx context.Context, communityID, actorID, kind string) error {
	return m.record(Call{Op: "reverse", CommunityID: communityID, ActorID: actorID, Kind: kind})
}

// CallsSnapshot returns a copy of recorded calls, safe for concurrent use.
func (m *MockClient) CallsSnapshot() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.Calls))
	copy(out, m.Calls)
	return out
}
