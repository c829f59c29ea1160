package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus tracks the lifecycle of a pipeline run.
type RunStatus string

const (
	RunRunning        RunStatus = "running"
	RunSuccess        RunStatus = "success"
	RunPartialFailure RunStatus = "partial_failure"
	RunFailed         RunStatus = "failed"
)

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool {
	return s == RunSuccess || s == RunPartialFailure || s == RunFailed
}

// StepStatus is the outcome of a single step.
type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
	StepAborted StepStatus = "aborted"
)

// Stage names the orchestrator states.
type Stage string

const (
	StagePending       Stage = "pending"
	StageFetching      Stage = "fetching"
	StageDeduplicating Stage = "deduplicating"
	StageScoring       Stage = "scoring"
	StageExtracting    Stage = "extracting"
	StageGenerating    Stage = "generating"
	StageValidating    Stage = "validating"
	StagePublishing    Stage = "publishing"
)

// Trigger records what started a run.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// StepLog is one durable record of a stage outcome.
type StepLog struct {
	Seq       int
	StepName  string
	Platform  Platform
	Status    StepStatus
	Kind      ErrorKind
	Detail    string
	StartedAt time.Time
	Duration  time.Duration
}

// PipelineRun is the audit trail of one execution for one project.
type PipelineRun struct {
	ID        string
	ProjectID string
	Trigger   Trigger
	StartedAt time.Time
	EndedAt   *time.Time
	Status    RunStatus
	Steps     []StepLog

	ArticlesFetched int
	ArticlesNew     int
	ChosenURL       string
	ModelUsed       string
	UsedFallback    bool
	Posts           []GeneratedPost
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// NewRun opens a run in the running state.
func NewRun(projectID string, trigger Trigger, now time.Time) PipelineRun {
	return PipelineRun{
		ID:        NewRunID(),
		ProjectID: projectID,
		Trigger:   trigger,
		StartedAt: now,
		Status:    RunRunning,
	}
}

// Append adds a step to the log and assigns its sequence number.
func (r *PipelineRun) Append(step StepLog) StepLog {
	step.Seq = len(r.Steps) + 1
	r.Steps = append(r.Steps, step)
	return step
}

// Seal finalizes the run status; sealed runs are not reopened.
func (r *PipelineRun) Seal(status RunStatus, now time.Time) {
	if r.Status.Terminal() {
		return
	}
	r.Status = status
	r.EndedAt = &now
}

// FailedSteps returns steps that ended in failure or were aborted.
func (r PipelineRun) FailedSteps() []StepLog {
	var failed []StepLog
	for _, s := range r.Steps {
		if s.Status == StepFailed || s.Status == StepAborted {
			failed = append(failed, s)
		}
	}
	return failed
}
