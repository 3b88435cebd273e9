package application

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"gridflow/internal/condition"
	"gridflow/internal/observability/metrics"
	telemetry "gridflow/internal/telemetry/domain"
	trigger "gridflow/internal/trigger/domain"
	workflow "gridflow/internal/workflow/domain"
)

// WorkflowExecutor starts a workflow execution for one telemetry record.
type WorkflowExecutor interface {
	ExecuteByID(ctx context.Context, organizationID, workflowID string, data telemetry.TelemetryData) (*workflow.Execution, error)
}

// Notifier receives outcomes of triggered executions.
type Notifier interface {
	NotifyTriggered(ctx context.Context, outcome Outcome)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Outcome is the per-threshold result of evaluating one telemetry record.
type Outcome struct {
	Threshold trigger.Threshold
	Matched   bool
	Execution *workflow.Execution
	Err       error
}

// Coordinator holds registered thresholds per organization and evaluates
// them against each incoming telemetry record, starting workflows when
// thresholds are crossed. The index is read-mostly; registration and
// evaluation may run concurrently.
type Coordinator struct {
	mu sync.RWMutex
	// organization id -> metric field -> thresholds on that field
	index map[string]map[string][]trigger.Threshold

	executor  WorkflowExecutor
	evaluator condition.Evaluator
	store     trigger.Repository
	notifier  Notifier
	logger    *log.Logger
	clock     Clock
}

// CoordinatorOption customizes the coordinator.
type CoordinatorOption func(*Coordinator)

// WithRepository assigns a durable threshold registry. Registered thresholds
// are written through to it.
func WithRepository(store trigger.Repository) CoordinatorOption {
	return func(c *Coordinator) { c.store = store }
}

// WithNotifier assigns a notifier for triggered executions.
func WithNotifier(notifier Notifier) CoordinatorOption {
	return func(c *Coordinator) { c.notifier = notifier }
}

// WithClock assigns a clock.
func WithClock(clock Clock) CoordinatorOption {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewCoordinator constructs a trigger coordinator.
func NewCoordinator(executor WorkflowExecutor, logger *log.Logger, opts ...CoordinatorOption) (*Coordinator, error) {
	if executor == nil {
		return nil, errors.New("trigger coordinator: nil executor")
	}
	if logger == nil {
		logger = log.Default()
	}
	coordinator := &Coordinator{
		index:     make(map[string]map[string][]trigger.Threshold),
		executor:  executor,
		evaluator: condition.NewEvaluator(),
		logger:    logger,
		clock:     systemClock{},
	}
	for _, opt := range opts {
		opt(coordinator)
	}
	return coordinator, nil
}

// RegisterThreshold adds a threshold to the in-memory index, replacing any
// existing threshold with the same id (last write wins). When a durable
// registry is configured the threshold is written through.
func (c *Coordinator) RegisterThreshold(ctx context.Context, threshold trigger.Threshold) error {
	if threshold.CreatedAt.IsZero() {
		threshold.CreatedAt = c.clock.Now().UTC()
	}
	if err := threshold.Validate(); err != nil {
		return err
	}
	if c.store != nil {
		if err := c.store.Save(ctx, &threshold); err != nil {
			return err
		}
	}
	c.register(threshold)
	return nil
}

func (c *Coordinator) register(threshold trigger.Threshold) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byField := c.index[threshold.OrganizationID]
	if byField == nil {
		byField = make(map[string][]trigger.Threshold)
		c.index[threshold.OrganizationID] = byField
	}
	// Last write wins on identical ids, wherever the old entry was keyed.
	for field, list := range byField {
		kept := list[:0]
		for _, existing := range list {
			if existing.ID != threshold.ID {
				kept = append(kept, existing)
			}
		}
		if len(kept) == 0 {
			delete(byField, field)
		} else {
			byField[field] = kept
		}
	}
	byField[threshold.MetricField] = append(byField[threshold.MetricField], threshold)
}

// LoadFromRepository hydrates the index from the durable registry.
func (c *Coordinator) LoadFromRepository(ctx context.Context) (int, error) {
	if c.store == nil {
		return 0, nil
	}
	thresholds, err := c.store.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	for _, threshold := range thresholds {
		if err := threshold.Validate(); err != nil {
			c.logger.Printf("trigger: skipping stored threshold %s: %v", threshold.ID, err)
			continue
		}
		c.register(threshold)
	}
	return len(thresholds), nil
}

// Thresholds returns a snapshot of the thresholds registered for an
// organization.
func (c *Coordinator) Thresholds(organizationID string) []trigger.Threshold {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var result []trigger.Threshold
	for _, list := range c.index[organizationID] {
		result = append(result, list...)
	}
	return result
}

// TriggerWorkflowConditions evaluates every threshold registered for the
// record's organization and executes the target workflow for each crossed
// threshold. A failure on one threshold never prevents evaluation of the
// others; each outcome carries its own error.
func (c *Coordinator) TriggerWorkflowConditions(ctx context.Context, data telemetry.TelemetryData) []Outcome {
	thresholds := c.Thresholds(data.OrganizationID)
	if len(thresholds) == 0 {
		return nil
	}

	outcomes := make([]Outcome, 0, len(thresholds))
	for _, threshold := range thresholds {
		outcome := c.evaluateThreshold(ctx, threshold, data)
		outcomes = append(outcomes, outcome)

		switch {
		case outcome.Err != nil:
			metrics.IncThresholdEvaluation(metrics.EvaluationError)
			c.logger.Printf("trigger: threshold %s on %s: %v", threshold.ID, threshold.MetricField, outcome.Err)
		case outcome.Matched:
			metrics.IncThresholdEvaluation(metrics.EvaluationMatched)
		default:
			metrics.IncThresholdEvaluation(metrics.EvaluationUnmatched)
		}
		if outcome.Matched && outcome.Execution != nil {
			metrics.IncWorkflowTriggered()
			if c.notifier != nil {
				c.notifier.NotifyTriggered(ctx, outcome)
			}
		}
	}
	return outcomes
}

func (c *Coordinator) evaluateThreshold(ctx context.Context, threshold trigger.Threshold, data telemetry.TelemetryData) Outcome {
	outcome := Outcome{Threshold: threshold}
	matched, err := c.evaluator.Evaluate(threshold.Condition(), data)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.Matched = matched
	if !matched {
		return outcome
	}
	execution, err := c.executor.ExecuteByID(ctx, threshold.OrganizationID, threshold.WorkflowID, data)
	outcome.Execution = execution
	outcome.Err = err
	return outcome
}

// ProcessTelemetryStream consumes telemetry records in arrival order until
// the stream closes or ctx is cancelled. Records are processed one at a
// time; cancellation stops processing of subsequent records only, completed
// records keep their side effects. Out-of-timestamp-order arrival is
// accepted as-is, there is no buffering or reordering.
func (c *Coordinator) ProcessTelemetryStream(ctx context.Context, stream <-chan telemetry.TelemetryData) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-stream:
			if !ok {
				return nil
			}
			c.TriggerWorkflowConditions(ctx, data)
		}
	}
}
