package actionplan

import (
	"context"
	"testing"

	"github.com/voxbridge/voicecore/internal/types"
)

func TestValidateJSON_Allowed(t *testing.T) {
	raw := []byte(`{
		"tenant_id": "tenant-a",
		"intent": "schedule a meeting",
		"steps": [{"type": "book_meeting", "condition": "always"}]
	}`)
	if err := ValidateJSON(raw); err != nil {
		t.Fatalf("ValidateJSON() error = %v, want nil", err)
	}
}

func TestValidateJSON_RejectsDisallowedType(t *testing.T) {
	raw := []byte(`{
		"tenant_id": "tenant-a",
		"intent": "delete everything",
		"steps": [{"type": "delete_database"}]
	}`)
	if err := ValidateJSON(raw); err == nil {
		t.Fatal("ValidateJSON() error = nil, want an error for a disallowed step type")
	}
}

func TestValidateJSON_RejectsMissingRequiredFields(t *testing.T) {
	raw := []byte(`{"steps": []}`)
	if err := ValidateJSON(raw); err == nil {
		t.Fatal("ValidateJSON() error = nil, want an error for missing tenant_id/intent")
	}
}

func TestExecutor_RunJSON_RejectsDisallowedType(t *testing.T) {
	e := &Executor{Dispatch: Dispatch{}}
	raw := []byte(`{"tenant_id": "t", "intent": "x", "steps": [{"type": "wire_money"}]}`)

	plan, err := e.RunJSON(context.Background(), raw)
	if err == nil {
		t.Fatal("RunJSON() error = nil, want schema validation failure")
	}
	if plan != nil {
		t.Errorf("RunJSON() plan = %+v, want nil on schema rejection", plan)
	}
}

func TestExecutor_RunJSON_RunsValidPlan(t *testing.T) {
	e := &Executor{Dispatch: Dispatch{
		types.ActionBookMeeting: func(context.Context, *types.ActionPlan, types.ActionStep) (map[string]any, error) {
			return map[string]any{"meeting_id": "m1"}, nil
		},
	}}
	raw := []byte(`{"tenant_id": "t", "intent": "book a meeting", "steps": [{"type": "book_meeting"}]}`)

	plan, err := e.RunJSON(context.Background(), raw)
	if err != nil {
		t.Fatalf("RunJSON() error = %v", err)
	}
	if plan == nil || plan.TenantID != "t" {
		t.Errorf("RunJSON() plan = %+v, want tenant_id=t", plan)
	}
}
