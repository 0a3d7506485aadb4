package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mongohaul/mongohaul/internal/engine"
	"github.com/mongohaul/mongohaul/internal/events"
	"github.com/mongohaul/mongohaul/internal/logging"
	"github.com/mongohaul/mongohaul/internal/models"
)

// fakeEngine records dispatched plans and lets tests drive outcomes by
// publishing events themselves. It implements every optional capability.
type fakeEngine struct {
	mu         sync.Mutex
	preview    *models.ArchivePreview
	previewErr error
	dryRunErr  error
	execErr    error
	syncResult *models.Result
	syncErr    error

	plans     []engine.Plan
	syncPlans []engine.Plan
	cancels   int
	pauses    int
	resumes   int
}

func (f *fakeEngine) Preview(ctx context.Context, path string) (*models.ArchivePreview, error) {
	if f.previewErr != nil {
		return nil, f.previewErr
	}
	pv := *f.preview
	pv.Path = path
	return &pv, nil
}

func (f *fakeEngine) DryRun(ctx context.Context, plan engine.Plan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dryRunErr != nil {
		return f.dryRunErr
	}
	f.plans = append(f.plans, plan)
	return nil
}

func (f *fakeEngine) Execute(ctx context.Context, plan engine.Plan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.execErr != nil {
		return f.execErr
	}
	f.plans = append(f.plans, plan)
	return nil
}

func (f *fakeEngine) DryRunSync(ctx context.Context, plan engine.Plan) (*models.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncPlans = append(f.syncPlans, plan)
	return f.syncResult, f.syncErr
}

func (f *fakeEngine) CancelActive(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	return nil
}

func (f *fakeEngine) PauseActive(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
	return nil
}

func (f *fakeEngine) ResumeActive(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes++
	return nil
}

func (f *fakeEngine) lastPlan() engine.Plan {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.plans[len(f.plans)-1]
}

func (f *fakeEngine) planCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.plans)
}

func (f *fakeEngine) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels
}

func (f *fakeEngine) pauseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pauses
}

// basicEngine strips the fake down to the minimal Engine surface so
// capability-absence paths can be exercised.
type basicEngine struct{ f *fakeEngine }

func (b basicEngine) Preview(ctx context.Context, path string) (*models.ArchivePreview, error) {
	return b.f.Preview(ctx, path)
}
func (b basicEngine) DryRun(ctx context.Context, plan engine.Plan) error {
	return b.f.DryRun(ctx, plan)
}
func (b basicEngine) Execute(ctx context.Context, plan engine.Plan) error {
	return b.f.Execute(ctx, plan)
}

func testPreview() *models.ArchivePreview {
	return &models.ArchivePreview{
		Databases: []models.DatabasePreview{
			{Name: "accounts", Collections: []models.CollectionPreview{
				{Name: "users", DocumentCount: 40},
				{Name: "orgs", DocumentCount: 10},
			}},
			{Name: "billing", Collections: []models.CollectionPreview{
				{Name: "invoices", DocumentCount: 25},
			}},
			{Name: "audit", Collections: []models.CollectionPreview{
				{Name: "trail", DocumentCount: 60},
			}},
		},
	}
}

func insertedResult(db, coll string, n int64) *models.Result {
	r := &models.Result{}
	r.Database(db).Collection(coll).DocumentsInserted = n
	return r
}

func newTestSession(t *testing.T, eng engine.Engine) (*Session, *events.Bus) {
	t.Helper()
	bus := events.NewBus(64)
	t.Cleanup(bus.Close)
	s := New(bus, eng, logging.NewLogger(logging.ModeTUI, io.Discard))
	t.Cleanup(func() { s.Close(context.Background()) })
	return s, bus
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitState(t *testing.T, s *Session, want State) {
	t.Helper()
	waitFor(t, "state "+string(want), func() bool { return s.State() == want })
}

func mustLoad(t *testing.T, s *Session) {
	t.Helper()
	if err := s.LoadArchive(context.Background(), "/data/dump.mongohaul.tar.gz"); err != nil {
		t.Fatalf("LoadArchive: %v", err)
	}
}

func mustReview(t *testing.T, s *Session, f *fakeEngine, bus *events.Bus, dry *models.Result) {
	t.Helper()
	if err := s.Analyze(context.Background()); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	bus.Publish(events.NewDryRunCompleted(f.lastPlan().Token, dry))
	waitState(t, s, StateReviewing)
}

func mustTransfer(t *testing.T, s *Session, f *fakeEngine, bus *events.Bus) {
	t.Helper()
	mustReview(t, s, f, bus, &models.Result{})
	if err := s.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	waitState(t, s, StateTransferring)
}

func TestLoadArchiveEntersConfiguringWithEverythingSelected(t *testing.T) {
	f := &fakeEngine{preview: testPreview()}
	s, _ := newTestSession(t, f)

	if got := s.State(); got != StateIdle {
		t.Fatalf("initial state = %s, want %s", got, StateIdle)
	}
	mustLoad(t, s)
	if got := s.State(); got != StateConfiguring {
		t.Errorf("state = %s, want %s", got, StateConfiguring)
	}
	if !s.SelectionSnapshot().FullySelected(s.Preview()) {
		t.Error("freshly loaded archive should start fully selected")
	}
	if got := s.Mode(); got != models.ModeMerge {
		t.Errorf("default mode = %s, want %s", got, models.ModeMerge)
	}
}

func TestLoadArchivePreviewFailureStaysIdle(t *testing.T) {
	f := &fakeEngine{previewErr: errors.New("not a mongohaul archive")}
	s, bus := newTestSession(t, f)
	notices := bus.Subscribe(events.TypeNotice)

	if err := s.LoadArchive(context.Background(), "/data/bogus.bin"); err == nil {
		t.Fatal("expected preview error")
	}
	if got := s.State(); got != StateIdle {
		t.Errorf("state = %s, want %s", got, StateIdle)
	}
	select {
	case ev := <-notices:
		n := ev.(*events.Notice)
		if n.Level != events.NoticeError {
			t.Errorf("notice level = %s, want error", n.Level)
		}
	case <-time.After(time.Second):
		t.Error("no notice published for preview failure")
	}
}

func TestAnalyzeEventDrivenRoundTrip(t *testing.T) {
	f := &fakeEngine{preview: testPreview()}
	s, bus := newTestSession(t, f)
	mustLoad(t, s)

	if err := s.Analyze(context.Background()); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got := s.State(); got != StateAnalyzing {
		t.Fatalf("state = %s, want %s", got, StateAnalyzing)
	}
	plan := f.lastPlan()
	if plan.Shape != engine.ShapeWholeDatabases {
		t.Errorf("fully selected connection scope dispatched %q, want %q", plan.Shape, engine.ShapeWholeDatabases)
	}

	bus.Publish(events.NewDryRunProgress(plan.Token, models.Progress{DocumentsDone: 50, DocumentsTotal: 135}))
	bus.Publish(events.NewDryRunCompleted(plan.Token, insertedResult("accounts", "users", 40)))
	waitState(t, s, StateReviewing)

	dry := s.DryRunResult()
	if dry == nil || !dry.DryRun {
		t.Fatalf("dry-run result = %+v, want DryRun=true", dry)
	}
	if got := dry.TotalInserted(); got != 40 {
		t.Errorf("dry-run inserted = %d, want 40", got)
	}
}

func TestAnalyzeUsesSyncVariantForDatabaseScope(t *testing.T) {
	f := &fakeEngine{preview: testPreview(), syncResult: insertedResult("accounts", "users", 40)}
	s, _ := newTestSession(t, f)
	mustLoad(t, s)

	if err := s.SetScope(models.DatabaseScope{SourceDB: "accounts"}); err != nil {
		t.Fatalf("SetScope: %v", err)
	}
	if err := s.Analyze(context.Background()); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got := s.State(); got != StateReviewing {
		t.Fatalf("state = %s, want %s without any event round trip", got, StateReviewing)
	}
	if len(f.syncPlans) != 1 {
		t.Errorf("sync dry runs = %d, want 1", len(f.syncPlans))
	}
	if n := f.planCount(); n != 0 {
		t.Errorf("event-driven dispatches = %d, want 0", n)
	}
	if f.syncPlans[0].Shape != engine.ShapeSingleDatabase {
		t.Errorf("sync plan shape = %q, want %q", f.syncPlans[0].Shape, engine.ShapeSingleDatabase)
	}
}

func TestCancelAnalysisDiscardsLateResult(t *testing.T) {
	f := &fakeEngine{preview: testPreview()}
	s, bus := newTestSession(t, f)
	mustLoad(t, s)

	if err := s.Analyze(context.Background()); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	tok := f.lastPlan().Token
	s.CancelAnalysis()
	if got := s.State(); got != StateConfiguring {
		t.Fatalf("state = %s, want %s immediately after cancel", got, StateConfiguring)
	}

	bus.Publish(events.NewDryRunCompleted(tok, insertedResult("accounts", "users", 40)))
	time.Sleep(50 * time.Millisecond)
	if got := s.State(); got != StateConfiguring {
		t.Errorf("late dry-run result moved state to %s", got)
	}
	if s.DryRunResult() != nil {
		t.Error("late dry-run result was kept, want discarded")
	}
}

func TestStaleTokenEventsAreIgnored(t *testing.T) {
	f := &fakeEngine{preview: testPreview()}
	s, bus := newTestSession(t, f)
	mustLoad(t, s)

	if err := s.Analyze(context.Background()); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	bus.Publish(events.NewDryRunCompleted(models.OpToken("stale-op"), &models.Result{}))
	time.Sleep(50 * time.Millisecond)
	if got := s.State(); got != StateAnalyzing {
		t.Fatalf("stale token moved state to %s", got)
	}

	bus.Publish(events.NewDryRunCompleted(f.lastPlan().Token, &models.Result{}))
	waitState(t, s, StateReviewing)
}

func TestDryRunDispatchRejectionReturnsToConfiguring(t *testing.T) {
	f := &fakeEngine{preview: testPreview(), dryRunErr: errors.New("destination unreachable")}
	s, bus := newTestSession(t, f)
	notices := bus.Subscribe(events.TypeNotice)
	mustLoad(t, s)

	if err := s.Analyze(context.Background()); err == nil {
		t.Fatal("expected dispatch error")
	}
	if got := s.State(); got != StateConfiguring {
		t.Errorf("state = %s, want %s after dispatch rejection", got, StateConfiguring)
	}
	select {
	case ev := <-notices:
		if n := ev.(*events.Notice); n.Level != events.NoticeError {
			t.Errorf("notice level = %s, want error", n.Level)
		}
	case <-time.After(time.Second):
		t.Error("no notice for dispatch rejection")
	}
}

func TestCommitDispatchRejectionReturnsToReviewing(t *testing.T) {
	f := &fakeEngine{preview: testPreview()}
	s, bus := newTestSession(t, f)
	mustLoad(t, s)
	mustReview(t, s, f, bus, &models.Result{})

	f.mu.Lock()
	f.execErr = errors.New("auth expired")
	f.mu.Unlock()
	if err := s.Commit(context.Background()); err == nil {
		t.Fatal("expected dispatch error")
	}
	if got := s.State(); got != StateReviewing {
		t.Errorf("state = %s, want %s after dispatch rejection", got, StateReviewing)
	}
}

func TestDestructiveCommitRequiresConfirmation(t *testing.T) {
	f := &fakeEngine{preview: testPreview()}
	s, bus := newTestSession(t, f)
	mustLoad(t, s)
	if err := s.SetMode(models.ModeReplace); err != nil {
		t.Fatalf("SetMode: %v", err)
	}

	dry := &models.Result{}
	dry.Database("accounts").Collection("users").DocumentsDropped = 100
	dry.Database("billing").Collection("invoices").DocumentsDropped = 20
	mustReview(t, s, f, bus, dry)
	dispatchedBefore := f.planCount()

	err := s.Commit(context.Background())
	if !errors.Is(err, ErrDropConfirmationRequired) {
		t.Fatalf("Commit error = %v, want ErrDropConfirmationRequired", err)
	}
	if got := s.State(); got != StateReviewing {
		t.Fatalf("state = %s, want %s while confirmation pending", got, StateReviewing)
	}
	if f.planCount() != dispatchedBefore {
		t.Fatal("transfer dispatched before confirmation")
	}

	drops := s.PendingDrops()
	if len(drops.Entries) != 2 {
		t.Errorf("drop entries = %d, want 2", len(drops.Entries))
	}
	if drops.TotalDocuments != 120 {
		t.Errorf("documents to drop = %d, want 120", drops.TotalDocuments)
	}

	if err := s.ConfirmDrops(context.Background()); err != nil {
		t.Fatalf("ConfirmDrops: %v", err)
	}
	waitState(t, s, StateTransferring)
	if f.planCount() != dispatchedBefore+1 {
		t.Errorf("dispatches = %d, want %d", f.planCount(), dispatchedBefore+1)
	}
}

func TestMergeCommitNeedsNoConfirmation(t *testing.T) {
	f := &fakeEngine{preview: testPreview()}
	s, bus := newTestSession(t, f)
	mustLoad(t, s)
	mustReview(t, s, f, bus, insertedResult("accounts", "users", 40))

	if err := s.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	waitState(t, s, StateTransferring)
}

func TestTransferProgressAndCompletion(t *testing.T) {
	f := &fakeEngine{preview: testPreview()}
	s, bus := newTestSession(t, f)
	mustLoad(t, s)
	mustTransfer(t, s, f, bus)
	tok := f.lastPlan().Token

	bus.Publish(events.NewTransferProgress(tok, models.Progress{
		Phase: models.PhaseTransferring, Database: "accounts", Collection: "users",
		DocumentsDone: 30, DocumentsTotal: 135,
	}))
	waitFor(t, "progress snapshot", func() bool { return s.Progress().DocumentsDone == 30 })

	final := insertedResult("accounts", "users", 40)
	final.Database("billing").Collection("invoices").DocumentsInserted = 25
	bus.Publish(events.NewTransferCompleted(tok, final))
	waitState(t, s, StateFinished)

	res := s.Result()
	if res == nil {
		t.Fatal("no final result")
	}
	if got := res.TotalInserted(); got != 65 {
		t.Errorf("inserted = %d, want 65", got)
	}
	if res.Partial || res.Cancelled {
		t.Errorf("flags = partial:%v cancelled:%v, want clean completion", res.Partial, res.Cancelled)
	}

	// Late events after the terminal state must change nothing.
	bus.Publish(events.NewTransferProgress(tok, models.Progress{DocumentsDone: 999}))
	time.Sleep(50 * time.Millisecond)
	if got := s.Progress().DocumentsDone; got == 999 {
		t.Error("progress event applied after completion")
	}
}

func TestPauseIsAcknowledgedNotOptimistic(t *testing.T) {
	f := &fakeEngine{preview: testPreview()}
	s, bus := newTestSession(t, f)
	mustLoad(t, s)
	mustTransfer(t, s, f, bus)
	tok := f.lastPlan().Token

	if err := s.Pause(context.Background()); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if f.pauseCount() != 1 {
		t.Fatalf("pause commands = %d, want 1", f.pauseCount())
	}
	time.Sleep(20 * time.Millisecond)
	if s.Paused() {
		t.Fatal("paused flag set before the engine acknowledged")
	}

	bus.Publish(events.NewTransferPaused(tok))
	waitFor(t, "paused acknowledgement", s.Paused)

	if err := s.Resume(context.Background()); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if s.Paused() != true {
		t.Fatal("paused flag cleared before the engine acknowledged")
	}
	bus.Publish(events.NewTransferResumed(tok))
	waitFor(t, "resume acknowledgement", func() bool { return !s.Paused() })
}

func TestPauseWithoutCapabilityIsNoOp(t *testing.T) {
	f := &fakeEngine{preview: testPreview()}
	s, bus := newTestSession(t, basicEngine{f})
	notices := bus.Subscribe(events.TypeNotice)
	mustLoad(t, s)
	mustTransfer(t, s, f, bus)

	if s.CanPauseTransfers() {
		t.Error("basic engine should not report pause capability")
	}
	if err := s.Pause(context.Background()); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if f.pauseCount() != 0 {
		t.Errorf("pause commands = %d, want 0", f.pauseCount())
	}
	select {
	case ev := <-notices:
		if n := ev.(*events.Notice); !strings.Contains(n.Message, "cannot pause") {
			t.Errorf("notice = %q, want pause-unsupported wording", n.Message)
		}
	case <-time.After(time.Second):
		t.Error("no notice for unsupported pause")
	}
}

func TestCancelDuringTransferKeepsPartialProgress(t *testing.T) {
	f := &fakeEngine{preview: testPreview()}
	s, bus := newTestSession(t, f)
	mustLoad(t, s)
	mustTransfer(t, s, f, bus)
	tok := f.lastPlan().Token

	if err := s.Cancel(context.Background()); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if f.cancelCount() != 1 {
		t.Fatalf("cancel commands = %d, want 1", f.cancelCount())
	}
	if got := s.State(); got != StateTransferring {
		t.Fatalf("state = %s, want %s until the engine confirms", got, StateTransferring)
	}

	partial := insertedResult("accounts", "users", 17)
	partial.Partial = true
	bus.Publish(events.NewTransferCancelled(tok, partial))
	waitState(t, s, StateFinished)

	res := s.Result()
	if res == nil || !res.Cancelled {
		t.Fatalf("result = %+v, want Cancelled=true", res)
	}
	if got := res.TotalInserted(); got != 17 {
		t.Errorf("inserted = %d, want the 17 documents moved before cancel", got)
	}
}

func TestFailureThenRetryRunsRemainingDatabases(t *testing.T) {
	f := &fakeEngine{preview: testPreview()}
	s, bus := newTestSession(t, f)
	mustLoad(t, s)
	mustTransfer(t, s, f, bus)
	tok := f.lastPlan().Token

	bus.Publish(events.NewTransferFailed(tok, models.ErrorInfo{
		Message:   "duplicate key on billing.invoices",
		Database:  "billing",
		Partial:   insertedResult("accounts", "users", 40),
		Remaining: []string{"billing", "audit"},
	}))
	waitState(t, s, StateFailed)

	fail := s.Failure()
	if fail == nil {
		t.Fatal("no failure info in failed state")
	}
	if len(fail.Remaining) != 2 || fail.Remaining[0] != "billing" {
		t.Fatalf("remaining = %v, want [billing audit]", fail.Remaining)
	}
	if got := fail.Partial.TotalInserted(); got != 40 {
		t.Errorf("preserved progress = %d, want 40", got)
	}

	if err := s.Retry(context.Background()); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	waitState(t, s, StateTransferring)
	retryPlan := f.lastPlan()
	if len(retryPlan.Databases) != 2 || retryPlan.Databases[0] != "billing" || retryPlan.Databases[1] != "audit" {
		t.Fatalf("retry databases = %v, want [billing audit]", retryPlan.Databases)
	}
	if retryPlan.Token == tok {
		t.Error("retry reused the failed operation token")
	}

	rest := insertedResult("billing", "invoices", 25)
	rest.Database("audit").Collection("trail").DocumentsInserted = 60
	bus.Publish(events.NewTransferCompleted(retryPlan.Token, rest))
	waitState(t, s, StateFinished)

	res := s.Result()
	if got := res.TotalInserted(); got != 125 {
		t.Errorf("merged inserted = %d, want 125 across both runs", got)
	}
	if res.Partial {
		t.Error("full retry completion should not be partial")
	}
}

func TestSkipAndContinueDropsFirstRemaining(t *testing.T) {
	f := &fakeEngine{preview: testPreview()}
	s, bus := newTestSession(t, f)
	mustLoad(t, s)
	mustTransfer(t, s, f, bus)
	tok := f.lastPlan().Token

	bus.Publish(events.NewTransferFailed(tok, models.ErrorInfo{
		Message:   "index build failed",
		Database:  "billing",
		Partial:   insertedResult("accounts", "users", 40),
		Remaining: []string{"billing", "audit"},
	}))
	waitState(t, s, StateFailed)

	if !s.CanSkip() {
		t.Fatal("skip should be offered with two databases remaining")
	}
	if err := s.SkipAndContinue(context.Background()); err != nil {
		t.Fatalf("SkipAndContinue: %v", err)
	}
	waitState(t, s, StateTransferring)

	plan := f.lastPlan()
	if len(plan.Databases) != 1 || plan.Databases[0] != "audit" {
		t.Fatalf("post-skip databases = %v, want [audit]", plan.Databases)
	}

	bus.Publish(events.NewTransferCompleted(plan.Token, insertedResult("audit", "trail", 60)))
	waitState(t, s, StateFinished)

	res := s.Result()
	if !res.Partial {
		t.Error("result after a skipped database must be partial")
	}
	if got := res.TotalInserted(); got != 100 {
		t.Errorf("inserted = %d, want 100 (accounts plus audit)", got)
	}
	found := false
	for _, e := range res.Errors {
		if strings.Contains(e, "billing") {
			found = true
		}
	}
	if !found {
		t.Errorf("result errors %v do not name the skipped database", res.Errors)
	}
}

func TestSkipWithOneRemainingFinishesPartial(t *testing.T) {
	f := &fakeEngine{preview: testPreview()}
	s, bus := newTestSession(t, f)
	mustLoad(t, s)
	mustTransfer(t, s, f, bus)
	tok := f.lastPlan().Token
	dispatched := f.planCount()

	bus.Publish(events.NewTransferFailed(tok, models.ErrorInfo{
		Message:   "disk full",
		Database:  "audit",
		Partial:   insertedResult("accounts", "users", 40),
		Remaining: []string{"audit"},
	}))
	waitState(t, s, StateFailed)

	if s.CanSkip() {
		t.Error("skip must not be offered with a single database remaining")
	}
	if err := s.SkipAndContinue(context.Background()); err != nil {
		t.Fatalf("SkipAndContinue: %v", err)
	}
	if got := s.State(); got != StateFinished {
		t.Fatalf("state = %s, want %s", got, StateFinished)
	}
	if f.planCount() != dispatched {
		t.Error("degenerate skip dispatched another run")
	}
	res := s.Result()
	if res == nil || !res.Partial {
		t.Fatalf("result = %+v, want partial", res)
	}
	if got := res.TotalInserted(); got != 40 {
		t.Errorf("inserted = %d, want preserved 40", got)
	}
}

func TestDismissWithProgressFinishesPartial(t *testing.T) {
	f := &fakeEngine{preview: testPreview()}
	s, bus := newTestSession(t, f)
	mustLoad(t, s)
	mustTransfer(t, s, f, bus)
	tok := f.lastPlan().Token

	bus.Publish(events.NewTransferFailed(tok, models.ErrorInfo{
		Message:   "connection reset",
		Partial:   insertedResult("accounts", "users", 12),
		Remaining: []string{"billing", "audit"},
	}))
	waitState(t, s, StateFailed)

	if err := s.Dismiss(); err != nil {
		t.Fatalf("Dismiss: %v", err)
	}
	if got := s.State(); got != StateFinished {
		t.Fatalf("state = %s, want %s", got, StateFinished)
	}
	res := s.Result()
	if res == nil || !res.Partial || res.TotalInserted() != 12 {
		t.Fatalf("result = %+v, want partial with 12 inserted", res)
	}
}

func TestDismissWithoutProgressCloses(t *testing.T) {
	f := &fakeEngine{preview: testPreview()}
	s, bus := newTestSession(t, f)
	mustLoad(t, s)
	mustTransfer(t, s, f, bus)
	tok := f.lastPlan().Token

	bus.Publish(events.NewTransferFailed(tok, models.ErrorInfo{
		Message:   "cannot connect to destination",
		Remaining: []string{"accounts", "billing", "audit"},
	}))
	waitState(t, s, StateFailed)

	if err := s.Dismiss(); err != nil {
		t.Fatalf("Dismiss: %v", err)
	}
	if got := s.State(); got != StateClosed {
		t.Errorf("state = %s, want %s when nothing was transferred", got, StateClosed)
	}
}

func TestCloseDuringTransferIssuesCancel(t *testing.T) {
	f := &fakeEngine{preview: testPreview()}
	s, bus := newTestSession(t, f)
	mustLoad(t, s)
	mustTransfer(t, s, f, bus)

	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := s.State(); got != StateClosed {
		t.Errorf("state = %s, want %s", got, StateClosed)
	}
	if f.cancelCount() != 1 {
		t.Errorf("cancel commands = %d, want 1", f.cancelCount())
	}
}

func TestSelectionEditsIgnoredOutsideConfiguring(t *testing.T) {
	f := &fakeEngine{preview: testPreview()}
	s, bus := newTestSession(t, f)
	mustLoad(t, s)
	mustTransfer(t, s, f, bus)

	before := s.SelectionSnapshot()
	s.ToggleDatabase("accounts")
	s.ToggleCollection("billing", "invoices")
	s.DeselectAll()
	after := s.SelectionSnapshot()

	bd, bc := before.Counts()
	ad, ac := after.Counts()
	if bd != ad || bc != ac {
		t.Errorf("selection changed mid-transfer: %d/%d -> %d/%d", bd, bc, ad, ac)
	}
	if err := s.SetMode(models.ModeReplace); !errors.Is(err, ErrInvalidState) {
		t.Errorf("SetMode mid-transfer = %v, want ErrInvalidState", err)
	}
}

func TestBackDiscardsDryRun(t *testing.T) {
	f := &fakeEngine{preview: testPreview()}
	s, bus := newTestSession(t, f)
	mustLoad(t, s)
	mustReview(t, s, f, bus, insertedResult("accounts", "users", 40))

	if err := s.Back(); err != nil {
		t.Fatalf("Back: %v", err)
	}
	if got := s.State(); got != StateConfiguring {
		t.Errorf("state = %s, want %s", got, StateConfiguring)
	}
	if s.DryRunResult() != nil {
		t.Error("dry-run result survived going back")
	}
}

func TestEtaNeedsTwoSamples(t *testing.T) {
	f := &fakeEngine{preview: testPreview()}
	s, bus := newTestSession(t, f)
	mustLoad(t, s)
	mustTransfer(t, s, f, bus)
	tok := f.lastPlan().Token

	if _, ok := s.ETA(); ok {
		t.Error("ETA available before any sample")
	}
	bus.Publish(events.NewTransferProgress(tok, models.Progress{DocumentsDone: 10, DocumentsTotal: 135}))
	waitFor(t, "first sample", func() bool { return s.Progress().DocumentsDone == 10 })
	if _, ok := s.ETA(); ok {
		t.Error("ETA available with a single sample")
	}
	bus.Publish(events.NewTransferProgress(tok, models.Progress{DocumentsDone: 30, DocumentsTotal: 135}))
	waitFor(t, "second sample", func() bool { return s.Progress().DocumentsDone == 30 })
	if _, ok := s.ETA(); !ok {
		t.Error("no ETA after two advancing samples")
	}
}
