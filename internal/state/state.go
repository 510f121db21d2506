// Package state implements the resumable, JSON-file-backed state
// machines for the orchestrator (per-task progress) and the merge
// sequencer (per-change-request progress).
package state

import "time"

// SchemaVersion is the current on-disk schema version for both state
// files. A file declaring a newer version is loaded but triggers a
// warning; a legacy file is migrated once.
const SchemaVersion = 1

// Status is a task's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusSplit      Status = "split"
	StatusBlocked    Status = "blocked"
)

// TaskRecord is the persisted state of one task.
type TaskRecord struct {
	ID              int        `json:"id"`
	Title           string     `json:"title,omitempty"`
	Status          Status     `json:"status"`
	Branch          string     `json:"branch,omitempty"`
	BaseBranch      string     `json:"baseBranch,omitempty"`
	ChangeRequestID int        `json:"changeRequestId,omitempty"`
	Error           string     `json:"error,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	SubTasks        []int      `json:"subTasks,omitempty"`
}

// OrchestratorState is the top-level orchestrator state document.
type OrchestratorState struct {
	SchemaVersion int                   `json:"schemaVersion"`
	StartedAt     time.Time             `json:"startedAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`
	Tasks         map[string]*TaskRecord `json:"tasks"`
}

// NewOrchestratorState builds a fresh, empty orchestrator state.
func NewOrchestratorState(now time.Time) *OrchestratorState {
	return &OrchestratorState{
		SchemaVersion: SchemaVersion,
		StartedAt:     now,
		UpdatedAt:     now,
		Tasks:         make(map[string]*TaskRecord),
	}
}

// MergeStatus is a merge-plan entry's lifecycle state.
type MergeStatus string

const (
	MergeStatusPending  MergeStatus = "pending"
	MergeStatusMerged   MergeStatus = "merged"
	MergeStatusFailed   MergeStatus = "failed"
	MergeStatusConflict MergeStatus = "conflict"
	MergeStatusSkipped  MergeStatus = "skipped"
)

// MergeRecord is the persisted state of one change-request's merge.
type MergeRecord struct {
	TaskID          int         `json:"taskId"`
	ChangeRequestID int         `json:"changeRequestId"`
	Branch          string      `json:"branch"`
	BaseBranch      string      `json:"baseBranch"`
	Status          MergeStatus `json:"status"`
	MergedAt        *time.Time  `json:"mergedAt,omitempty"`
	Error           string      `json:"error,omitempty"`
}

// MergeState is the top-level merge-sequencer state document.
type MergeState struct {
	SchemaVersion int                     `json:"schemaVersion"`
	StartedAt     time.Time               `json:"startedAt"`
	UpdatedAt     time.Time               `json:"updatedAt"`
	PRs           map[string]*MergeRecord `json:"prs"`
}

// NewMergeState builds a fresh, empty merge state.
func NewMergeState(now time.Time) *MergeState {
	return &MergeState{
		SchemaVersion: SchemaVersion,
		StartedAt:     now,
		UpdatedAt:     now,
		PRs:           make(map[string]*MergeRecord),
	}
}
