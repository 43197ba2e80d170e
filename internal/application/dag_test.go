package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-qra/internal/domain"
	"github.com/ahrav/go-qra/internal/ports"
)

// mockExecutable is a test implementation of Executable.
type mockExecutable struct {
	id          string
	executeFunc func(ctx context.Context, state domain.State) (domain.State, error)
	executed    bool
	mu          sync.Mutex
}

func (m *mockExecutable) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	m.mu.Lock()
	m.executed = true
	m.mu.Unlock()

	if m.executeFunc != nil {
		return m.executeFunc(ctx, state)
	}
	return state, nil
}

func (m *mockExecutable) ID() string { return m.id }

func (m *mockExecutable) wasExecuted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.executed
}

func stepKey(i int) domain.Key[int] { return domain.NewKey[int](fmt.Sprintf("step%d", i)) }

var traceKey = domain.NewKey[[]string]("trace")

// appendTrace returns an executable that appends its id to the trace key.
func appendTrace(id string) *mockExecutable {
	return &mockExecutable{
		id: id,
		executeFunc: func(_ context.Context, s domain.State) (domain.State, error) {
			trace, _ := domain.Get(s, traceKey)
			return domain.With(s, traceKey, append(trace, id)), nil
		},
	}
}

func TestPipeline_Execute(t *testing.T) {
	t.Run("executes units in sequence", func(t *testing.T) {
		pipeline := NewPipeline("prepare")
		for _, id := range []string{"decode", "filter", "score"} {
			require.NoError(t, pipeline.Add(appendTrace(id)))
		}

		out, err := pipeline.Execute(context.Background(), domain.NewState())
		require.NoError(t, err)

		trace, ok := domain.Get(out, traceKey)
		require.True(t, ok)
		assert.Equal(t, []string{"decode", "filter", "score"}, trace)
	})

	t.Run("stops at first failure", func(t *testing.T) {
		pipeline := NewPipeline("prepare")
		failing := &mockExecutable{id: "filter", executeFunc: func(_ context.Context, s domain.State) (domain.State, error) {
			return s, domain.ErrMalformedSelection
		}}
		after := appendTrace("score")
		require.NoError(t, pipeline.Add(appendTrace("decode")))
		require.NoError(t, pipeline.Add(failing))
		require.NoError(t, pipeline.Add(after))

		out, err := pipeline.Execute(context.Background(), domain.NewState())
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrMalformedSelection)
		assert.Contains(t, err.Error(), "pipeline prepare: execution failed at filter")
		assert.False(t, after.wasExecuted())

		trace, _ := domain.Get(out, traceKey)
		assert.Equal(t, []string{"decode"}, trace, "state up to the failure is returned")
	})

	t.Run("honours cancellation", func(t *testing.T) {
		pipeline := NewPipeline("prepare")
		first := appendTrace("decode")
		require.NoError(t, pipeline.Add(first))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := pipeline.Execute(ctx, domain.NewState())
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, first.wasExecuted())
	})
}

func TestPipeline_Add(t *testing.T) {
	pipeline := NewPipeline("p")
	require.NoError(t, pipeline.Add(&mockExecutable{id: "a"}))

	assert.Error(t, pipeline.Add(nil))
	err := pipeline.Add(&mockExecutable{id: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	execs := pipeline.Executables()
	require.Len(t, execs, 1)
	execs[0] = nil
	assert.NotNil(t, pipeline.Executables()[0], "Executables returns a copy")
}

func TestLayer_Execute(t *testing.T) {
	t.Run("merges the keys each member adds", func(t *testing.T) {
		layer := NewLayer("analysis")
		for i := range 3 {
			require.NoError(t, layer.Add(&mockExecutable{
				id: fmt.Sprintf("unit%d", i),
				executeFunc: func(_ context.Context, s domain.State) (domain.State, error) {
					return domain.With(s, stepKey(i), i*10), nil
				},
			}))
		}

		base := domain.With(domain.NewState(), domain.KeyRunID, "run")
		out, err := layer.Execute(context.Background(), base)
		require.NoError(t, err)

		for i := range 3 {
			v, ok := domain.Get(out, stepKey(i))
			require.True(t, ok)
			assert.Equal(t, i*10, v)
		}
		runID, _ := domain.Get(out, domain.KeyRunID)
		assert.Equal(t, "run", runID)
	})

	t.Run("runs members concurrently up to the limit", func(t *testing.T) {
		layer := NewLayer("analysis")
		layer.SetConcurrencyLimit(2)

		var inFlight, peak atomic.Int32
		for i := range 6 {
			require.NoError(t, layer.Add(&mockExecutable{
				id: fmt.Sprintf("unit%d", i),
				executeFunc: func(_ context.Context, s domain.State) (domain.State, error) {
					n := inFlight.Add(1)
					for {
						p := peak.Load()
						if n <= p || peak.CompareAndSwap(p, n) {
							break
						}
					}
					time.Sleep(5 * time.Millisecond)
					inFlight.Add(-1)
					return s, nil
				},
			}))
		}

		_, err := layer.Execute(context.Background(), domain.NewState())
		require.NoError(t, err)
		assert.LessOrEqual(t, peak.Load(), int32(2))
	})

	t.Run("joins every member failure", func(t *testing.T) {
		layer := NewLayer("analysis")
		errA := errors.New("a failed")
		errB := errors.New("b failed")
		require.NoError(t, layer.Add(&mockExecutable{id: "b", executeFunc: func(_ context.Context, s domain.State) (domain.State, error) { return s, errB }}))
		require.NoError(t, layer.Add(&mockExecutable{id: "a", executeFunc: func(_ context.Context, s domain.State) (domain.State, error) { return s, errA }}))
		ok := &mockExecutable{id: "c"}
		require.NoError(t, layer.Add(ok))

		base := domain.NewState()
		out, err := layer.Execute(context.Background(), base)
		require.Error(t, err)
		assert.ErrorIs(t, err, errA)
		assert.ErrorIs(t, err, errB)
		assert.True(t, ok.wasExecuted(), "one failure does not cancel the others")
		assert.Equal(t, base.Keys(), out.Keys())
	})

	t.Run("conflicting writes fail the merge", func(t *testing.T) {
		layer := NewLayer("analysis")
		for _, id := range []string{"x", "y"} {
			require.NoError(t, layer.Add(&mockExecutable{id: id, executeFunc: func(_ context.Context, s domain.State) (domain.State, error) {
				return domain.With(s, stepKey(0), 1), nil
			}}))
		}
		_, err := layer.Execute(context.Background(), domain.NewState())
		assert.ErrorIs(t, err, ErrMergeConflict)
	})

	t.Run("empty layer passes state through", func(t *testing.T) {
		base := domain.With(domain.NewState(), domain.KeyRunID, "r")
		out, err := NewLayer("empty").Execute(context.Background(), base)
		require.NoError(t, err)
		assert.Equal(t, base.Keys(), out.Keys())
	})
}

type firstWins struct{}

func (firstWins) Merge(base domain.State, states []domain.State) (domain.State, error) {
	if len(states) == 0 {
		return base, nil
	}
	return states[0], nil
}

func TestLayer_SetMergeStrategy(t *testing.T) {
	layer := NewLayer("l")
	layer.SetMergeStrategy(firstWins{})
	for _, id := range []string{"b", "a"} {
		require.NoError(t, layer.Add(&mockExecutable{id: id, executeFunc: func(_ context.Context, s domain.State) (domain.State, error) {
			return domain.With(s, domain.KeyRunID, id), nil
		}}))
	}

	out, err := layer.Execute(context.Background(), domain.NewState())
	require.NoError(t, err)
	v, _ := domain.Get(out, domain.KeyRunID)
	assert.Equal(t, "a", v, "states reach the strategy in member id order")
}

func TestUnionMerge_IgnoresChangesToBaseKeys(t *testing.T) {
	base := domain.With(domain.NewState(), domain.KeyRunID, "original")
	changed := domain.With(base, domain.KeyRunID, "changed")
	added := domain.With(base, domain.KeyGraphID, "g")

	out, err := UnionMerge{}.Merge(base, []domain.State{changed, added})
	require.NoError(t, err)

	runID, _ := domain.Get(out, domain.KeyRunID)
	graphID, _ := domain.Get(out, domain.KeyGraphID)
	assert.Equal(t, "original", runID)
	assert.Equal(t, "g", graphID)
}

func TestGraph_AddNode(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddNode(&mockExecutable{id: "a"}))
	assert.Error(t, g.AddNode(nil))
	assert.Error(t, g.AddNode(&mockExecutable{id: "a"}))

	node, ok := g.GetNode("a")
	require.True(t, ok)
	assert.Equal(t, "a", node.ID())
	_, ok = g.GetNode("missing")
	assert.False(t, ok)
}

func TestGraph_AddEdge(t *testing.T) {
	tests := []struct {
		name    string
		edges   [][2]string
		from    string
		to      string
		wantErr string
	}{
		{name: "valid edge", from: "a", to: "b"},
		{name: "missing source", from: "x", to: "b", wantErr: "source node x does not exist"},
		{name: "missing target", from: "a", to: "x", wantErr: "target node x does not exist"},
		{name: "duplicate", edges: [][2]string{{"a", "b"}}, from: "a", to: "b", wantErr: "already exists"},
		{name: "cycle", edges: [][2]string{{"a", "b"}, {"b", "c"}}, from: "c", to: "a", wantErr: "would create a cycle"},
		{name: "self loop", from: "a", to: "a", wantErr: "would create a cycle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGraph()
			for _, id := range []string{"a", "b", "c"} {
				require.NoError(t, g.AddNode(&mockExecutable{id: id}))
			}
			for _, e := range tt.edges {
				require.NoError(t, g.AddEdge(e[0], e[1]))
			}

			err := g.AddEdge(tt.from, tt.to)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.False(t, g.HasCycle(), "a rejected edge is rolled back")
		})
	}
}

func TestGraph_TopologicalSort(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"reproduce", "usage", "analysis", "prepare", "audit"} {
		require.NoError(t, g.AddNode(&mockExecutable{id: id}))
	}
	require.NoError(t, g.AddEdge("prepare", "analysis"))
	require.NoError(t, g.AddEdge("prepare", "usage"))
	require.NoError(t, g.AddEdge("analysis", "reproduce"))

	for range 10 {
		order, err := g.TopologicalSort()
		require.NoError(t, err)

		ids := make([]string, len(order))
		for i, e := range order {
			ids[i] = e.ID()
		}
		assert.Equal(t, []string{"audit", "prepare", "analysis", "reproduce", "usage"}, ids)
	}
}

func TestGraph_Execute(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"c", "b", "a"} {
		require.NoError(t, g.AddNode(appendTrace(id)))
	}
	require.NoError(t, g.AddEdge("c", "a"))

	out, err := g.Execute(context.Background(), domain.NewState())
	require.NoError(t, err)
	trace, _ := domain.Get(out, traceKey)
	assert.Equal(t, []string{"b", "c", "a"}, trace)

	failing := NewGraph()
	require.NoError(t, failing.AddNode(&mockExecutable{id: "boom", executeFunc: func(_ context.Context, s domain.State) (domain.State, error) {
		return s, domain.ErrInvalidState
	}}))
	_, err = failing.Execute(context.Background(), domain.NewState())
	require.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Contains(t, err.Error(), "node boom")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Execute(ctx, domain.NewState())
	assert.ErrorIs(t, err, context.Canceled)
}

var _ ports.Executable = (*mockExecutable)(nil)
