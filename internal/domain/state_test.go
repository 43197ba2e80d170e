package domain

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewState verifies that a new State instance is initialized correctly.
func TestNewState(t *testing.T) {
	state := NewState()

	assert.NotNil(t, state.data, "NewState() should initialize the data map.")
	assert.Zero(t, state.Len(), "NewState() should create an empty state.")
}

func TestState_Get(t *testing.T) {
	tests := []struct {
		name   string
		setup  func() State
		assert func(t *testing.T, state State)
	}{
		{
			name: "get existing judgments",
			setup: func() State {
				return With(NewState(), KeyJudgments, []Judgment{
					{TaskID: "t1", ParticipantID: "anon_worker_0", SystemA: SystemVAE, SystemB: SystemDIPS},
				})
			},
			assert: func(t *testing.T, state State) {
				got, ok := Get(state, KeyJudgments)
				require.True(t, ok, "Get() should find an existing key.")
				require.Len(t, got, 1)
				assert.Equal(t, SystemDIPS, got[0].SystemB)
			},
		},
		{
			name:  "get non-existent key",
			setup: NewState,
			assert: func(t *testing.T, state State) {
				_, ok := Get(state, KeyJudgments)
				assert.False(t, ok, "Get() should not find a non-existent key.")
			},
		},
		{
			name: "get report with optional fields",
			setup: func() State {
				scale := 25.0
				return With(NewState(), KeySystemMetrics, []SystemMetrics{
					{System: SystemVAE, Wins: 3, Losses: 1, BestWorstScore: 2, BestWorstScale: &scale, WinPercentage: &scale},
					{System: SystemLBOW},
				})
			},
			assert: func(t *testing.T, state State) {
				got, ok := Get(state, KeySystemMetrics)
				require.True(t, ok)
				require.NotNil(t, got[0].BestWorstScale)
				assert.InDelta(t, 25.0, *got[0].BestWorstScale, 1e-12)
				assert.Nil(t, got[1].BestWorstScale, "nil pointers should survive the copy.")
			},
		},
		{
			name: "get count",
			setup: func() State {
				return With(NewState(), KeyDecodeFailures, 3)
			},
			assert: func(t *testing.T, state State) {
				got, ok := Get(state, KeyDecodeFailures)
				assert.True(t, ok)
				assert.Equal(t, 3, got)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.assert(t, tt.setup())
		})
	}
}

func TestMustGet(t *testing.T) {
	_, err := MustGet(NewState(), KeyTaskScores)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Contains(t, err.Error(), "task_scores")

	state := With(NewState(), KeyTaskScores, TaskScoreTable{GroupBy: "task_id"})
	got, err := MustGet(state, KeyTaskScores)
	require.NoError(t, err)
	assert.Equal(t, "task_id", got.GroupBy)
}

// TestState_With verifies that With never modifies the receiver.
func TestState_With(t *testing.T) {
	original := NewState()
	updated := With(original, KeyGraphID, "g1")

	_, ok := Get(original, KeyGraphID)
	assert.False(t, ok, "With() should not modify the original state.")

	got, ok := Get(updated, KeyGraphID)
	require.True(t, ok)
	assert.Equal(t, "g1", got)

	updated2 := With(updated, KeyGraphID, "g2")
	v, _ := Get(updated, KeyGraphID)
	assert.Equal(t, "g1", v, "With() should not modify the previous state when updating.")
	v2, _ := Get(updated2, KeyGraphID)
	assert.Equal(t, "g2", v2)
}

func TestState_WithZeroValue(t *testing.T) {
	var s State
	s = With(s, KeyRunID, "r1")
	got, ok := Get(s, KeyRunID)
	require.True(t, ok, "With() on a zero State should allocate its map.")
	assert.Equal(t, "r1", got)
}

func TestState_WithMultiple(t *testing.T) {
	state := NewState().WithMultiple(map[string]any{
		KeyGraphID.Name():        "g",
		KeyDecodeFailures.Name(): 2,
	})

	id, ok := Get(state, KeyGraphID)
	require.True(t, ok)
	assert.Equal(t, "g", id)
	n, ok := Get(state, KeyDecodeFailures)
	require.True(t, ok)
	assert.Equal(t, 2, n)
}

func TestState_Keys(t *testing.T) {
	state := With(With(NewState(), KeyRunID, "r"), KeyAgreement, AgreementReport{})
	assert.Equal(t, []string{"agreement", "execution.run_id"}, state.Keys(), "Keys() should be sorted.")
}

func TestState_DeepCopy(t *testing.T) {
	t.Run("slice elements", func(t *testing.T) {
		input := []Judgment{{TaskID: "t1"}}
		state := With(NewState(), KeyJudgments, input)

		input[0].TaskID = "mutated"
		got, _ := Get(state, KeyJudgments)
		assert.Equal(t, "t1", got[0].TaskID, "mutating the input must not leak into the state.")

		got[0].TaskID = "mutated again"
		again, _ := Get(state, KeyJudgments)
		assert.Equal(t, "t1", again[0].TaskID, "mutating a returned value must not leak into the state.")
	})

	t.Run("payload fields with nil values", func(t *testing.T) {
		payloads := []Payload{{
			TaskUUID: "u1",
			Fields:   map[string]any{"systema0": "vae", "input0": nil, "meaning0": true},
		}}
		state := With(NewState(), KeyPayloads, payloads)

		payloads[0].Fields["systema0"] = "dips"
		got, _ := Get(state, KeyPayloads)
		assert.Equal(t, "vae", got[0].Fields["systema0"])
		v, present := got[0].Fields["input0"]
		assert.True(t, present, "nil map values should be preserved.")
		assert.Nil(t, v)
	})

	t.Run("nested reliability cells", func(t *testing.T) {
		report := AgreementReport{Reliability: ReliabilityTable{Cells: [][]int8{{0, MissingCell}}}}
		state := With(NewState(), KeyAgreement, report)

		report.Reliability.Cells[0][0] = 1
		got, _ := Get(state, KeyAgreement)
		assert.Equal(t, int8(0), got.Reliability.Cells[0][0])
	})

	t.Run("arrays are copied by value", func(t *testing.T) {
		table := TaskScoreTable{Rows: []TaskScoreRow{{Key: "k", Scores: [NumCandidates]int{1, -1, 0, 0}}}}
		state := With(NewState(), KeyTaskScores, table)
		got, _ := Get(state, KeyTaskScores)
		got.Rows[0].Scores[0] = 9
		again, _ := Get(state, KeyTaskScores)
		assert.Equal(t, 1, again.Rows[0].Scores[0])
	})
}

func TestState_String(t *testing.T) {
	state := With(NewState(), KeyRunID, "r")
	assert.Equal(t, "State[execution.run_id]", state.String())
}

func TestState_ConcurrentAccess(t *testing.T) {
	base := With(NewState(), KeyJudgments, []Judgment{{TaskID: "t"}})

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := With(base, KeyRunID, fmt.Sprintf("run-%d", i))
			got, ok := Get(s, KeyJudgments)
			assert.True(t, ok)
			assert.Len(t, got, 1)
		}()
	}
	wg.Wait()

	_, ok := Get(base, KeyRunID)
	assert.False(t, ok, "concurrent writers must not modify the shared base state.")
}

func TestState_ExecutionContext(t *testing.T) {
	_, ok := NewState().GetExecutionContext()
	assert.False(t, ok)

	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ec := ExecutionContext{GraphID: "default", RunID: "run-1", StartedAt: started}
	state := NewState().WithExecutionContext(ec)

	got, ok := state.GetExecutionContext()
	require.True(t, ok)
	assert.Equal(t, ec, got)
}
