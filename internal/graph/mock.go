package graph

import (
	"context"
	"sync"

	"github.com/dn9uy3n/bbot-osint-mcp/internal/types"
)

// Call records one statement executed against the mock client.
type Call struct {
	Method string // "Read" or "Write"
	Cypher string
	Params map[string]any
}

// MockClient is an in-memory Client for tests. It records every
// statement and replays scripted results in order; when the script for
// a method runs out, an empty Result is returned.
type MockClient struct {
	mu sync.Mutex

	connected bool
	calls     []Call

	ReadResults  []Result
	WriteResults []Result
	ConnectErr   error
	HealthErr    error
	ReadErr      error
	WriteErr     error
}

// NewMockClient creates an unconnected mock client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ConnectErr != nil {
		return m.ConnectErr
	}
	m.connected = true
	return nil
}

func (m *MockClient) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

func (m *MockClient) Health(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.HealthErr != nil {
		return m.HealthErr
	}
	if !m.connected {
		return types.NewError(types.GRAPH_CONNECTION_CLOSED, "not connected")
	}
	return nil
}

func (m *MockClient) Read(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Read", Cypher: cypher, Params: params})
	if m.ReadErr != nil {
		return Result{}, m.ReadErr
	}
	if len(m.ReadResults) > 0 {
		r := m.ReadResults[0]
		m.ReadResults = m.ReadResults[1:]
		return r, nil
	}
	return Result{}, nil
}

func (m *MockClient) Write(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Write", Cypher: cypher, Params: params})
	if m.WriteErr != nil {
		return Result{}, m.WriteErr
	}
	if len(m.WriteResults) > 0 {
		r := m.WriteResults[0]
		m.WriteResults = m.WriteResults[1:]
		return r, nil
	}
	return Result{}, nil
}

// Calls returns a copy of all recorded calls.
func (m *MockClient) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// WriteCalls returns only the recorded write statements.
func (m *MockClient) WriteCalls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Call
	for _, c := range m.calls {
		if c.Method == "Write" {
			out = append(out, c)
		}
	}
	return out
}

// FailWritesWith makes all subsequent writes fail with a transient error.
func (m *MockClient) FailWritesWith(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WriteErr = types.NewRetryableError(types.GRAPH_WRITE_FAILED, msg, nil)
}

var _ Client = (*MockClient)(nil)
