package chatgraph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sfarooqi/chatgraph/pkg/chatgraph/checkpoint"
)

func buildResumeGraph(t *testing.T, tracker *[]string, failAt string) *CompiledGraph[State] {
	t.Helper()

	node := func(name string) NodeFunc[State] {
		return func(ctx Context, s State) (State, error) {
			if name == failAt {
				return s, errors.New("injected failure")
			}
			*tracker = append(*tracker, name)
			s.Progress = append(s.Progress, name)
			return s, nil
		}
	}

	compiled, err := NewGraph[State]().
		AddNode("a", node("a")).
		AddNode("b", node("b")).
		AddNode("c", node("c")).
		AddEdge("a", "b").
		AddEdge("b", "c").
		AddEdge("c", END).
		SetEntry("a").
		Compile()
	require.NoError(t, err)
	return compiled
}

func TestResume_ContinuesAfterCrash(t *testing.T) {
	saver := checkpoint.NewMemorySaver()
	defer saver.Close()

	var executed []string
	crashing := buildResumeGraph(t, &executed, "c")

	_, err := crashing.Run(testCtx(), State{}, WithCheckpointing(saver, "thread-1"))
	require.Error(t, err)
	assert.Equal(t, []string{"a", "b"}, executed)

	// Same graph, fault fixed: resume picks up at c with b's state.
	executed = nil
	healthy := buildResumeGraph(t, &executed, "")

	result, err := healthy.Resume(testCtx(), saver, "thread-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, executed)
	assert.Equal(t, []string{"a", "b", "c"}, result.Progress)
}

func TestResume_NoCheckpoints(t *testing.T) {
	saver := checkpoint.NewMemorySaver()
	defer saver.Close()

	var executed []string
	compiled := buildResumeGraph(t, &executed, "")

	_, err := compiled.Resume(testCtx(), saver, "unknown-thread")
	assert.ErrorIs(t, err, ErrNoCheckpoints)
}

func TestResume_ThreadKeyRequired(t *testing.T) {
	saver := checkpoint.NewMemorySaver()
	defer saver.Close()

	var executed []string
	compiled := buildResumeGraph(t, &executed, "")

	_, err := compiled.Resume(testCtx(), saver, "")
	assert.ErrorIs(t, err, ErrThreadKeyRequired)
}

func TestResume_WithReplay(t *testing.T) {
	saver := checkpoint.NewMemorySaver()
	defer saver.Close()

	var executed []string
	compiled := buildResumeGraph(t, &executed, "")

	_, err := compiled.Run(testCtx(), State{}, WithCheckpointing(saver, "thread-1"))
	require.NoError(t, err)

	// Latest checkpoint is for c; replay re-executes c itself.
	executed = nil
	result, err := compiled.Resume(testCtx(), saver, "thread-1", WithReplay())
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, executed)
	assert.Equal(t, []string{"a", "b", "c", "c"}, result.Progress)
}

func TestResume_WithStateOverride(t *testing.T) {
	saver := checkpoint.NewMemorySaver()
	defer saver.Close()

	var executed []string
	crashing := buildResumeGraph(t, &executed, "c")

	_, err := crashing.Run(testCtx(), State{Initial: "orig"}, WithCheckpointing(saver, "thread-1"))
	require.Error(t, err)

	healthy := buildResumeGraph(t, &executed, "")
	result, err := healthy.Resume(testCtx(), saver, "thread-1",
		WithStateOverride(func(s any) any {
			state := s.(State)
			state.Initial = "patched"
			return state
		}))
	require.NoError(t, err)
	assert.Equal(t, "patched", result.Initial)
}

func TestResume_WithStateValidation(t *testing.T) {
	saver := checkpoint.NewMemorySaver()
	defer saver.Close()

	var executed []string
	crashing := buildResumeGraph(t, &executed, "c")

	_, err := crashing.Run(testCtx(), State{}, WithCheckpointing(saver, "thread-1"))
	require.Error(t, err)

	healthy := buildResumeGraph(t, &executed, "")
	_, err = healthy.Resume(testCtx(), saver, "thread-1",
		WithStateValidation(func(s any) error {
			return errors.New("state rejected")
		}))
	assert.ErrorContains(t, err, "state rejected")
}

func TestResumeFrom_RetriesChosenNode(t *testing.T) {
	saver := checkpoint.NewMemorySaver()
	defer saver.Close()

	var executed []string
	compiled := buildResumeGraph(t, &executed, "")

	_, err := compiled.Run(testCtx(), State{}, WithCheckpointing(saver, "thread-1"))
	require.NoError(t, err)

	executed = nil
	result, err := compiled.ResumeFrom(testCtx(), saver, "thread-1", "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, executed)
	assert.Equal(t, []string{"a", "b", "c", "b", "c"}, result.Progress)
}

func TestResumeFrom_InvalidNode(t *testing.T) {
	saver := checkpoint.NewMemorySaver()
	defer saver.Close()

	var executed []string
	compiled := buildResumeGraph(t, &executed, "")

	_, err := compiled.ResumeFrom(testCtx(), saver, "thread-1", "ghost")
	assert.ErrorIs(t, err, ErrInvalidResumeNode)
}
