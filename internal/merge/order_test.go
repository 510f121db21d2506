package merge

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetermineMergeOrderStacksByBase(t *testing.T) {
	entries := []Entry{
		{TaskID: 3, ChangeRequestID: 103, Branch: "feat/3", BaseBranch: "feat/2"},
		{TaskID: 1, ChangeRequestID: 101, Branch: "feat/1", BaseBranch: "main"},
		{TaskID: 2, ChangeRequestID: 102, Branch: "feat/2", BaseBranch: "feat/1"},
	}

	ordered, err := DetermineMergeOrder(entries)
	require.NoError(t, err)

	ids := make([]int, len(ordered))
	for i, e := range ordered {
		ids[i] = e.TaskID
	}
	require.Equal(t, []int{1, 2, 3}, ids)
}

func TestDetermineMergeOrderIndependentEntriesByID(t *testing.T) {
	entries := []Entry{
		{TaskID: 3, ChangeRequestID: 103, Branch: "feat/3", BaseBranch: "main"},
		{TaskID: 1, ChangeRequestID: 101, Branch: "feat/1", BaseBranch: "main"},
		{TaskID: 2, ChangeRequestID: 102, Branch: "feat/2", BaseBranch: "main"},
	}

	ordered, err := DetermineMergeOrder(entries)
	require.NoError(t, err)

	ids := make([]int, len(ordered))
	for i, e := range ordered {
		ids[i] = e.TaskID
	}
	require.Equal(t, []int{1, 2, 3}, ids)
}

func TestDetermineMergeOrderDetectsCycle(t *testing.T) {
	entries := []Entry{
		{TaskID: 1, ChangeRequestID: 101, Branch: "feat/1", BaseBranch: "feat/2"},
		{TaskID: 2, ChangeRequestID: 102, Branch: "feat/2", BaseBranch: "feat/1"},
	}

	_, err := DetermineMergeOrder(entries)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrCycle)
	require.Regexp(t, "[Cc]ycle", err.Error())
}
