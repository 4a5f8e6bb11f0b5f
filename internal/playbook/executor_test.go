package playbook

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/governstack/govern-trust/internal/models"
)

type fakeNotifier struct {
	suppressed bool
	fail       bool
	calls      []models.Alert
}

func (f *fakeNotifier) Dispatch(_ context.Context, alert models.Alert) models.DispatchResult {
	f.calls = append(f.calls, alert)
	if f.suppressed {
		return models.DispatchResult{Key: alert.Key, Suppressed: true}
	}
	attempt := models.ChannelAttempt{Channel: models.ChannelEmail, Recipient: "ops@example.com", OK: !f.fail}
	if f.fail {
		attempt.Error = "smtp unreachable"
	}
	result := models.DispatchResult{Key: alert.Key, Attempts: []models.ChannelAttempt{attempt}}
	if !f.fail {
		now := time.Now().UTC()
		result.SentAt = &now
	}
	return result
}

type fakeGovernor struct {
	level      models.AutonomyLevel
	clampErr   error
	shadowErr  error
	reviewErr  error
	shadowOn   bool
	reviews    []string
	clampCalls int
}

func (f *fakeGovernor) ClampAutonomy(_ context.Context, ceiling models.AutonomyLevel) (models.AutonomyLevel, bool, error) {
	f.clampCalls++
	if f.clampErr != nil {
		return "", false, f.clampErr
	}
	if f.level.Rank() >= ceiling.Rank() {
		return f.level, false, nil
	}
	f.level = ceiling
	return f.level, true, nil
}

func (f *fakeGovernor) ActivateShadowModel(context.Context, models.Incident) error {
	if f.shadowErr != nil {
		return f.shadowErr
	}
	f.shadowOn = true
	return nil
}

func (f *fakeGovernor) FlagReview(_ context.Context, track string, _ models.Incident) error {
	if f.reviewErr != nil {
		return f.reviewErr
	}
	f.reviews = append(f.reviews, track)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func mustRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry("", testLogger())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func driftIncident(severity models.Severity) models.Incident {
	return models.Incident{
		ID:          "inc-1",
		Type:        models.IncidentDriftDetected,
		Severity:    severity,
		Description: "High data drift detected (PSI 0.420)",
		Status:      models.IncidentActive,
	}
}

func TestExecuteCriticalDriftPlan(t *testing.T) {
	notifier := &fakeNotifier{}
	governor := &fakeGovernor{level: models.AutonomyFull}
	exec := NewExecutor(testLogger(), mustRegistry(t), notifier, governor)

	execution := exec.Execute(context.Background(), driftIncident(models.SeverityCritical))

	wantActions := []models.ActionType{
		models.ActionReduceAutonomy,
		models.ActionActivateShadow,
		models.ActionNotify,
		models.ActionFlagRetraining,
	}
	if len(execution.Actions) != len(wantActions) {
		t.Fatalf("got %d actions, want %d", len(execution.Actions), len(wantActions))
	}
	for i, want := range wantActions {
		got := execution.Actions[i]
		if got.Type != want {
			t.Errorf("action %d = %q, want %q", i, got.Type, want)
		}
		if got.Status != models.ActionSucceeded {
			t.Errorf("action %q status = %q, want succeeded (%s)", got.Type, got.Status, got.Detail)
		}
	}
	if governor.level != models.AutonomyApprovalRequired {
		t.Errorf("autonomy = %q, want approval_required", governor.level)
	}
	if !governor.shadowOn {
		t.Error("shadow model should be active")
	}
	if len(notifier.calls) != 1 || notifier.calls[0].Key != "ml_drift" {
		t.Errorf("notifier calls = %+v, want one ml_drift alert", notifier.calls)
	}
	if execution.ID == "" || execution.IncidentID != "inc-1" {
		t.Errorf("execution identity not recorded: %+v", execution)
	}
}

func TestExecuteClampIsIdempotent(t *testing.T) {
	governor := &fakeGovernor{level: models.AutonomyKillSwitch}
	exec := NewExecutor(testLogger(), mustRegistry(t), &fakeNotifier{}, governor)

	execution := exec.Execute(context.Background(), driftIncident(models.SeverityCritical))

	if got := execution.Actions[0]; got.Status != models.ActionSucceeded {
		t.Errorf("clamp below ceiling should succeed, got %q (%s)", got.Status, got.Detail)
	}
	if governor.level != models.AutonomyKillSwitch {
		t.Errorf("clamp must never raise autonomy, level = %q", governor.level)
	}
}

func TestExecuteFailedActionDoesNotAbortSequence(t *testing.T) {
	governor := &fakeGovernor{level: models.AutonomyFull, shadowErr: errors.New("shadow registry down")}
	notifier := &fakeNotifier{}
	exec := NewExecutor(testLogger(), mustRegistry(t), notifier, governor)

	execution := exec.Execute(context.Background(), driftIncident(models.SeverityCritical))

	if execution.Actions[1].Status != models.ActionFailed {
		t.Fatalf("shadow action = %q, want failed", execution.Actions[1].Status)
	}
	if execution.Actions[1].Detail != "shadow registry down" {
		t.Errorf("failure detail = %q", execution.Actions[1].Detail)
	}
	// The rest of the plan still runs.
	if len(notifier.calls) != 1 {
		t.Errorf("notify should still run after a failed slot, got %d calls", len(notifier.calls))
	}
	if len(governor.reviews) != 1 || governor.reviews[0] != "retraining" {
		t.Errorf("reviews = %v, want [retraining]", governor.reviews)
	}
}

func TestExecuteSuppressedNotifyEmbedsDispatch(t *testing.T) {
	notifier := &fakeNotifier{suppressed: true}
	exec := NewExecutor(testLogger(), mustRegistry(t), notifier, &fakeGovernor{})

	execution := exec.Execute(context.Background(), models.Incident{
		ID:       "inc-2",
		Type:     models.IncidentAccuracyDrop,
		Severity: models.SeverityWarning,
	})

	if len(execution.Actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(execution.Actions))
	}
	notify := execution.Actions[0]
	if notify.Status != models.ActionSkipped {
		t.Errorf("suppressed notify status = %q, want skipped", notify.Status)
	}
	if notify.Dispatch == nil || !notify.Dispatch.Suppressed {
		t.Errorf("dispatch result should be embedded with suppression, got %+v", notify.Dispatch)
	}
}

func TestExecuteBiasPlanSkipsAutonomyReduction(t *testing.T) {
	governor := &fakeGovernor{level: models.AutonomyFull}
	exec := NewExecutor(testLogger(), mustRegistry(t), &fakeNotifier{}, governor)

	execution := exec.Execute(context.Background(), models.Incident{
		ID:       "inc-3",
		Type:     models.IncidentBiasDetected,
		Severity: models.SeverityCritical,
	})

	if governor.clampCalls != 0 {
		t.Error("bias plan must not reduce autonomy")
	}
	if len(governor.reviews) != 1 || governor.reviews[0] != "fairness" {
		t.Errorf("reviews = %v, want [fairness]", governor.reviews)
	}
	if len(execution.Actions) != 2 {
		t.Errorf("got %d actions, want 2", len(execution.Actions))
	}
}

func TestExecuteUnknownIncidentYieldsEmptyExecution(t *testing.T) {
	exec := NewExecutor(testLogger(), mustRegistry(t), &fakeNotifier{}, &fakeGovernor{})

	execution := exec.Execute(context.Background(), models.Incident{
		ID:   "inc-4",
		Type: models.IncidentType("unheard_of"),
	})

	if len(execution.Actions) != 0 {
		t.Errorf("got %d actions, want 0", len(execution.Actions))
	}
	if execution.IncidentID != "inc-4" {
		t.Errorf("execution should still reference the incident")
	}
}

func TestRegistryPackOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "playbooks.yaml")
	pack := `playbooks:
  - id: quiet-accuracy
    match:
      type: accuracy_drop
    actions:
      - flag_retraining_review
`
	if err := os.WriteFile(path, []byte(pack), 0o644); err != nil {
		t.Fatal(err)
	}

	reg, err := NewRegistry(path, testLogger())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	plan, ok := reg.Resolve(models.Incident{Type: models.IncidentAccuracyDrop, Severity: models.SeverityWarning})
	if !ok {
		t.Fatal("expected a plan")
	}
	if plan.ID != "quiet-accuracy" {
		t.Errorf("resolved plan = %q, want pack plan to shadow the default", plan.ID)
	}

	// Types not covered by the pack still fall through to defaults.
	if _, ok := reg.Resolve(driftIncident(models.SeverityCritical)); !ok {
		t.Error("default drift plan should still resolve")
	}
}

func TestRegistryRejectsUnknownAction(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "playbooks.yaml")
	pack := `playbooks:
  - id: bad
    match:
      type: accuracy_drop
    actions:
      - reboot_the_universe
`
	if err := os.WriteFile(path, []byte(pack), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewRegistry(path, testLogger()); err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestRegistryMissingPackUsesDefaults(t *testing.T) {
	reg, err := NewRegistry(filepath.Join(t.TempDir(), "absent.yaml"), testLogger())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if _, ok := reg.Resolve(driftIncident(models.SeverityWarning)); !ok {
		t.Error("defaults should apply when pack file is missing")
	}
}
