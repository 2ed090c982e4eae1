package routinetool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rrclaw/rrclaw/internal/security"
	"github.com/rrclaw/rrclaw/pkg/models"
)

type fakeEngine struct {
	routines map[string]models.Routine
	runErr   error
	createErr error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{routines: make(map[string]models.Routine)}
}

func (f *fakeEngine) Create(r models.Routine) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.routines[r.Name] = r
	return nil
}

func (f *fakeEngine) List() []models.Routine {
	out := make([]models.Routine, 0, len(f.routines))
	for _, r := range f.routines {
		out = append(out, r)
	}
	return out
}

func (f *fakeEngine) Delete(name string) error {
	if _, ok := f.routines[name]; !ok {
		return errors.New("not found")
	}
	delete(f.routines, name)
	return nil
}

func (f *fakeEngine) SetEnabled(name string, enabled bool) error {
	r, ok := f.routines[name]
	if !ok {
		return errors.New("not found")
	}
	r.Enabled = enabled
	f.routines[name] = r
	return nil
}

func (f *fakeEngine) RunNow(ctx context.Context, name string) (*models.RoutineExecution, error) {
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &models.RoutineExecution{RoutineName: name}, nil
}

func (f *fakeEngine) Logs(name string, limit int) ([]models.RoutineExecution, error) {
	return []models.RoutineExecution{{RoutineName: name}}, nil
}

func fullPolicy(t *testing.T) *security.Policy {
	t.Helper()
	pol, err := security.New(models.SecurityPolicy{Mode: models.ModeFull, Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("security.New: %v", err)
	}
	return pol
}

func readOnlyPolicy(t *testing.T) *security.Policy {
	t.Helper()
	pol, err := security.New(models.SecurityPolicy{Mode: models.ModeReadOnly, Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("security.New: %v", err)
	}
	return pol
}

func TestRoutineToolRejectsUnknownAction(t *testing.T) {
	tool := New(newFakeEngine())
	args, _ := json.Marshal(map[string]any{"action": "explode"})
	if _, ok := tool.PreValidate(args, fullPolicy(t)); ok {
		t.Fatal("an action outside the enum must be denied")
	}
}

// Policy monotonicity (spec §8): ReadOnly denies mutating routine actions.
func TestRoutineToolMutationsDeniedInReadOnly(t *testing.T) {
	tool := New(newFakeEngine())
	pol := readOnlyPolicy(t)
	for _, action := range []string{"create", "delete", "enable", "disable", "run"} {
		args, _ := json.Marshal(map[string]any{"action": action, "name": "n", "schedule": "* * * * *", "message": "go"})
		if _, ok := tool.PreValidate(args, pol); ok {
			t.Errorf("action %q must be denied under ReadOnly mode", action)
		}
	}
}

func TestRoutineToolListAllowedInReadOnly(t *testing.T) {
	tool := New(newFakeEngine())
	args, _ := json.Marshal(map[string]any{"action": "list"})
	if _, ok := tool.PreValidate(args, readOnlyPolicy(t)); !ok {
		t.Fatal("list should be allowed under ReadOnly mode")
	}
}

func TestRoutineToolCreateRequiresScheduleAndMessage(t *testing.T) {
	tool := New(newFakeEngine())
	pol := fullPolicy(t)
	args, _ := json.Marshal(map[string]any{"action": "create", "name": "n"})
	if _, ok := tool.PreValidate(args, pol); ok {
		t.Fatal("create without schedule/message must be denied")
	}
}

func TestRoutineToolCreateAndList(t *testing.T) {
	engine := newFakeEngine()
	tool := New(engine)
	pol := fullPolicy(t)
	args, _ := json.Marshal(map[string]any{"action": "create", "name": "daily", "schedule": "0 9 * * *", "message": "check status"})
	if _, ok := tool.PreValidate(args, pol); !ok {
		t.Fatal("expected allow")
	}
	result, err := tool.Execute(context.Background(), args, pol)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if _, ok := engine.routines["daily"]; !ok {
		t.Fatal("expected routine to be created")
	}
}

func TestRoutineToolExecuteFailsWithNilEngine(t *testing.T) {
	tool := New(nil)
	args, _ := json.Marshal(map[string]any{"action": "list"})
	result, err := tool.Execute(context.Background(), args, fullPolicy(t))
	if err != nil {
		t.Fatalf("Execute should not itself error: %v", err)
	}
	if result.Success {
		t.Fatal("expected a failed result when the routine engine is unavailable")
	}
}

func TestRoutineToolRunSurfacesEngineError(t *testing.T) {
	engine := newFakeEngine()
	engine.routines["n"] = models.Routine{Name: "n"}
	engine.runErr = errors.New("boom")
	tool := New(engine)
	args, _ := json.Marshal(map[string]any{"action": "run", "name": "n"})
	result, err := tool.Execute(context.Background(), args, fullPolicy(t))
	if err != nil {
		t.Fatalf("Execute should not itself error: %v", err)
	}
	if result.Success {
		t.Fatal("expected a failed result when RunNow errors")
	}
}
