package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hydromis/wfengine/pkg/models"
	"github.com/hydromis/wfengine/pkg/persistence"
	"github.com/robfig/cron/v3"
)

// Triggerer is the part of the engine the scheduler drives.
type Triggerer interface {
	Trigger(ctx context.Context, instance *models.WorkflowInstance, triggerName string, payload map[string]any, actorID *string) (bool, error)
}

// Result summarizes one run of a job.
type Result struct {
	Matched      int
	Transitioned int
	Skipped      int
	Failed       int
}

type Scheduler struct {
	definitions persistence.DefinitionRepository
	instances   persistence.InstanceRepository
	engine      Triggerer
	jobs        []Job
	logger      *slog.Logger
	cron        *cron.Cron
}

func New(
	definitions persistence.DefinitionRepository,
	instances persistence.InstanceRepository,
	engine Triggerer,
	jobs []Job,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		definitions: definitions,
		instances:   instances,
		engine:      engine,
		jobs:        jobs,
		logger:      logger.With("module", "scheduler"),
	}
}

// Start registers every job with a cron runner and starts it.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	for _, job := range s.jobs {
		id, err := s.cron.AddFunc(job.Cron, func() {
			result, err := s.RunOnce(ctx, job)
			if err != nil {
				s.logger.ErrorContext(ctx, "Scheduled job failed", "job", job.Name, "error", err)

				return
			}

			s.logger.InfoContext(ctx, "Scheduled job finished",
				"job", job.Name,
				"matched", result.Matched,
				"transitioned", result.Transitioned,
				"skipped", result.Skipped,
				"failed", result.Failed,
			)
		})
		if err != nil {
			return fmt.Errorf("failed to add cron job %s: %w", job.Name, err)
		}

		s.logger.InfoContext(ctx, "Scheduled job", "job", job.Name, "cron", job.Cron, "entry_id", id)
	}

	s.cron.Start()

	return nil
}

// Stop stops the cron runner and waits for running jobs.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}

	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce fires the job's trigger, as the system, on every matching instance.
// Per-instance failures are counted and logged, they do not stop the run.
func (s *Scheduler) RunOnce(ctx context.Context, job Job) (Result, error) {
	var result Result

	definition, err := s.definitions.GetByKey(ctx, job.TenantID, job.DefinitionKey)
	if err != nil {
		return result, fmt.Errorf("failed to resolve definition %s: %w", job.DefinitionKey, err)
	}

	instances, err := s.instances.ListByState(ctx, job.TenantID, definition.ID, job.State)
	if err != nil {
		return result, fmt.Errorf("failed to list instances: %w", err)
	}

	result.Matched = len(instances)

	for _, instance := range instances {
		ok, err := s.engine.Trigger(ctx, instance, job.Trigger, job.Payload, nil)

		switch {
		case err == nil && ok:
			result.Transitioned++
		case err == nil:
			result.Skipped++
		case ok:
			// An enter action failed after the instance already moved.
			result.Transitioned++
			result.Failed++

			s.logger.WarnContext(ctx, "Scheduled trigger action failed",
				"job", job.Name, "instance_id", instance.ID, "error", err)
		default:
			result.Failed++

			s.logger.WarnContext(ctx, "Scheduled trigger failed",
				"job", job.Name, "instance_id", instance.ID, "error", err)
		}
	}

	return result, nil
}
