// Package actionplan executes ActionPlans: sequential, allowlisted,
// multi-step workflows with conditional steps and result chaining between
// steps, each outcome recorded to an audit log under the owning tenant.
package actionplan

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/voxbridge/voicecore/internal/logger"
	"github.com/voxbridge/voicecore/internal/metrics/prometheus"
	"github.com/voxbridge/voicecore/internal/types"
)

// resultKey is a well-known field name injected from a prior step's result
// into a chained step's params.
const (
	resultKeyMeetingID = "meeting_id"
	resultKeyStartTime = "start_time"
	resultKeyJoinLink  = "join_link"

	paramKeyOffset      = "offset"
	paramKeyScheduledAt = "scheduled_at"
)

// chainedResultKeys lists the fields carried from one step's result into a
// step that references it via use_result_from.
var chainedResultKeys = []string{resultKeyMeetingID, resultKeyStartTime, resultKeyJoinLink}

// Handler executes one vetted action. Implementations are registered in a
// Dispatch table keyed by types.ActionType; Handler is the narrow
// capability set a handler needs, nothing more (§9).
type Handler func(ctx context.Context, plan *types.ActionPlan, step types.ActionStep) (map[string]any, error)

// Dispatch maps an allowlisted action type to its handler.
type Dispatch map[types.ActionType]Handler

// AuditLogger records each plan and step outcome under the owning tenant.
// Consumed, not implemented, here (§6 persistence interfaces).
type AuditLogger interface {
	RecordPlan(ctx context.Context, plan *types.ActionPlan) error
	RecordStep(ctx context.Context, plan *types.ActionPlan, result types.StepResult) error
}

// Executor runs ActionPlans against a Dispatch table.
type Executor struct {
	Dispatch Dispatch
	Audit    AuditLogger
	// Now returns the current time; overridable in tests.
	Now func() time.Time
}

func (e *Executor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Run validates plan against the allowlist and then executes its steps
// sequentially, evaluating each step's condition, chaining results per
// use_result_from, and recording every step outcome to the audit log.
// Run is terminal once every step has completed or a non-recoverable
// failure stops the plan.
func (e *Executor) Run(ctx context.Context, plan *types.ActionPlan) error {
	if err := plan.Validate(); err != nil {
		return fmt.Errorf("actionplan: %w", err)
	}

	plan.Status = types.PlanStatusRunning
	plan.UpdatedAt = e.now()
	if e.Audit != nil {
		if err := e.Audit.RecordPlan(ctx, plan); err != nil {
			return fmt.Errorf("actionplan: audit plan start: %w", err)
		}
	}

	// A non-skipped step failing ends the plan in PlanStatusFailed, but
	// execution keeps evaluating subsequent steps so their own conditions
	// (e.g. if_previous_success) correctly mark them skipped rather than
	// leaving them unrecorded.
	failed := false

	for i, step := range plan.Steps {
		plan.CurrentStep = i

		if !e.shouldRun(plan, i, step) {
			result := types.StepResult{StepIndex: i, OK: false, Skipped: true}
			plan.StepResults = append(plan.StepResults, result)
			e.recordStep(ctx, plan, result)
			continue
		}

		resolved, err := e.resolveParams(plan, step)
		if err != nil {
			result := types.StepResult{StepIndex: i, OK: false, Error: err.Error()}
			plan.StepResults = append(plan.StepResults, result)
			e.recordStep(ctx, plan, result)
			failed = true
			plan.Error = err.Error()
			continue
		}
		step.Params = resolved

		handler, ok := e.Dispatch[step.Type]
		if !ok {
			err := fmt.Errorf("actionplan: no handler registered for %s", step.Type)
			result := types.StepResult{StepIndex: i, OK: false, Error: err.Error()}
			plan.StepResults = append(plan.StepResults, result)
			e.recordStep(ctx, plan, result)
			failed = true
			plan.Error = err.Error()
			continue
		}

		stepResult, err := handler(ctx, plan, step)
		result := types.StepResult{StepIndex: i, Result: stepResult}
		if err != nil {
			result.OK = false
			result.Error = err.Error()
			failed = true
			plan.Error = err.Error()
		} else {
			result.OK = true
		}
		plan.StepResults = append(plan.StepResults, result)
		e.recordStep(ctx, plan, result)
	}

	if failed {
		plan.Status = types.PlanStatusFailed
	} else {
		plan.Status = types.PlanStatusCompleted
	}
	now := e.now()
	plan.CompletedAt = &now
	plan.UpdatedAt = now

	if e.Audit != nil {
		if err := e.Audit.RecordPlan(ctx, plan); err != nil {
			return fmt.Errorf("actionplan: audit plan end: %w", err)
		}
	}
	return nil
}

// RunJSON validates raw plan JSON against the allowlist schema, unmarshals
// it, and runs it exactly as Run would. It is the entry point for plans
// arriving from an external boundary (§6, out of scope) as untrusted JSON
// rather than an already-constructed ActionPlan.
func (e *Executor) RunJSON(ctx context.Context, raw []byte) (*types.ActionPlan, error) {
	if err := ValidateJSON(raw); err != nil {
		return nil, fmt.Errorf("actionplan: %w", err)
	}

	var plan types.ActionPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("actionplan: unmarshal plan: %w", err)
	}

	if err := e.Run(ctx, &plan); err != nil {
		return &plan, err
	}
	return &plan, nil
}

// shouldRun evaluates step.Condition against the previous step's recorded
// result. The first step always runs regardless of condition, since there
// is no previous step to test.
func (e *Executor) shouldRun(plan *types.ActionPlan, index int, step types.ActionStep) bool {
	if step.Condition == "" || step.Condition == types.ConditionAlways || index == 0 {
		return true
	}
	prev := plan.StepResults[index-1]
	switch step.Condition {
	case types.ConditionIfPreviousSuccess:
		return prev.OK
	case types.ConditionIfPreviousFailed:
		return !prev.OK && !prev.Skipped
	default:
		return true
	}
}

// resolveParams injects the referenced prior step's chained result fields
// into step's params and applies any offset expression against the
// resolved start_time.
func (e *Executor) resolveParams(plan *types.ActionPlan, step types.ActionStep) (map[string]any, error) {
	params := make(map[string]any, len(step.Params))
	for k, v := range step.Params {
		params[k] = v
	}

	if step.UseResultFrom == nil {
		return params, nil
	}

	ref := *step.UseResultFrom
	if ref < 0 || ref >= len(plan.StepResults) {
		return nil, fmt.Errorf("actionplan: use_result_from %d out of range", ref)
	}
	prior := plan.StepResults[ref]
	if !prior.OK {
		return nil, fmt.Errorf("actionplan: use_result_from %d did not succeed", ref)
	}

	for _, key := range chainedResultKeys {
		if v, ok := prior.Result[key]; ok {
			params[key] = v
		}
	}

	if offsetExpr, ok := params[paramKeyOffset].(string); ok {
		startRaw, ok := params[resultKeyStartTime].(string)
		if !ok {
			return nil, fmt.Errorf("actionplan: offset set without a chained start_time")
		}
		start, err := time.Parse(time.RFC3339, startRaw)
		if err != nil {
			return nil, fmt.Errorf("actionplan: parse start_time: %w", err)
		}
		offset, err := ParseOffset(offsetExpr)
		if err != nil {
			return nil, err
		}
		params[paramKeyScheduledAt] = start.Add(offset).Format(time.RFC3339)
	}

	return params, nil
}

func (e *Executor) recordStep(ctx context.Context, plan *types.ActionPlan, result types.StepResult) {
	outcome := "ok"
	switch {
	case result.Skipped:
		outcome = "skipped"
	case !result.OK:
		outcome = "failed"
	}
	actionType := ""
	if result.StepIndex >= 0 && result.StepIndex < len(plan.Steps) {
		actionType = string(plan.Steps[result.StepIndex].Type)
	}
	prometheus.RecordActionStep(actionType, outcome)

	if e.Audit == nil {
		return
	}
	if err := e.Audit.RecordStep(ctx, plan, result); err != nil {
		logger.Error("actionplan: audit step failed", "plan_id", plan.PlanID, "step_index", result.StepIndex, "error", err.Error())
	}
}
