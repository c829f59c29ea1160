package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"PostForge/internal/domain"
	"PostForge/internal/ports"
)

// Scheduler wires the cron driver with the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	projects ports.ProjectSource
	logger   *zap.Logger
}

// NewScheduler returns a helper to start/stop recurring project runs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, projects ports.ProjectSource, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{driver: driver, pipeline: pipeline, projects: projects, logger: logger}
}

// Start registers every scheduled project and starts the driver. Jobs run
// under ctx, so cancelling it aborts in-flight runs.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	projects, err := s.projects.Projects(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}

	registered := 0
	for _, project := range projects {
		if project.Schedule == "" {
			continue
		}
		projectID := project.ID
		if err := s.driver.Schedule(project.Schedule, func() { s.runScheduled(ctx, projectID) }); err != nil {
			return fmt.Errorf("schedule project %s: %w", projectID, err)
		}
		registered++
		s.logger.Info("project scheduled", zap.String("project_id", projectID), zap.String("schedule", project.Schedule))
	}

	if registered == 0 {
		s.logger.Warn("no project has a schedule")
	}
	return s.driver.Start(ctx)
}

func (s *Scheduler) runScheduled(ctx context.Context, projectID string) {
	if ctx.Err() != nil {
		return
	}
	run, err := s.pipeline.RunPipeline(ctx, projectID, domain.TriggerScheduled)
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.logger.Info("scheduled run skipped, previous run still active", zap.String("project_id", projectID))
	case err != nil:
		s.logger.Error("scheduled run", zap.String("project_id", projectID), zap.Error(err))
	default:
		s.logger.Debug("scheduled run done", zap.String("run_id", run.ID), zap.String("status", string(run.Status)))
	}
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
