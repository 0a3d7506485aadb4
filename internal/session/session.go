// Package session implements the import workflow state machine. A Session
// walks one archive through configuring, analyzing, reviewing and
// transferring, listens to the engine's operation events while an operation
// is in flight, and publishes its own state transitions and notices for the
// UI plane. All mutating calls are safe for concurrent use.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mongohaul/mongohaul/internal/engine"
	"github.com/mongohaul/mongohaul/internal/eta"
	"github.com/mongohaul/mongohaul/internal/events"
	"github.com/mongohaul/mongohaul/internal/logging"
	"github.com/mongohaul/mongohaul/internal/models"
	"github.com/mongohaul/mongohaul/internal/selection"
)

// State names a position in the import workflow.
type State string

const (
	// StateIdle is the initial state before any archive is loaded.
	StateIdle State = "idle"
	// StateConfiguring offers selection, mode and scope editing.
	StateConfiguring State = "configuring"
	// StateAnalyzing, StateReviewing and StateTransferring follow the
	// dispatch lifecycle of a dry run and then the real transfer.
	StateAnalyzing    State = "analyzing"
	StateReviewing    State = "reviewing"
	StateTransferring State = "transferring"
	// StateFinished and StateFailed are outcome states; StateClosed is the
	// end of the session's life.
	StateFinished State = "finished"
	StateFailed   State = "failed"
	StateClosed   State = "closed"
)

var (
	// ErrInvalidState rejects a call that the current state does not allow.
	ErrInvalidState = errors.New("operation not valid in current session state")
	// ErrEmptySelection rejects analysis without any selected collection.
	ErrEmptySelection = errors.New("nothing selected")
	// ErrNoSourceDatabase rejects a single-database plan without a source.
	ErrNoSourceDatabase = errors.New("no source database chosen for single-database transfer")
	// ErrDropConfirmationRequired is returned by Commit when the mode would
	// drop existing data; the caller shows PendingDrops and then calls
	// ConfirmDrops to proceed.
	ErrDropConfirmationRequired = errors.New("transfer would drop existing data and needs confirmation")
)

// operation event types the session listens for while one is in flight.
var opEventTypes = []events.Type{
	events.TypeTransferProgress,
	events.TypeTransferCompleted,
	events.TypeTransferCancelled,
	events.TypeTransferFailed,
	events.TypeTransferPaused,
	events.TypeTransferResumed,
	events.TypeDryRunProgress,
	events.TypeDryRunCompleted,
	events.TypeDryRunFailed,
}

// Session drives one import workflow from archive load to a terminal state.
type Session struct {
	bus *events.Bus
	eng engine.Engine
	log *logging.Logger

	mu     sync.Mutex
	state  State
	paused bool

	archivePath string
	preview     *models.ArchivePreview
	sel         selection.Selection
	mode        models.Mode
	scope       models.Scope

	plan              engine.Plan
	token             models.OpToken
	analysisCancelled bool
	dropsConfirmed    bool

	dryRun   *models.Result
	progress models.Progress
	tracker  *eta.Tracker

	// accumulated carries counts across retry runs so partial progress is
	// never lost; skipped lists databases dropped via skip-and-continue.
	accumulated *models.Result
	skipped     []string
	result      *models.Result
	failure     *models.ErrorInfo

	opCh <-chan events.Event
	stop chan struct{}
}

// New returns an idle session wired to the given bus and engine.
func New(bus *events.Bus, eng engine.Engine, log *logging.Logger) *Session {
	return &Session{
		bus:     bus,
		eng:     eng,
		log:     log,
		state:   StateIdle,
		sel:     selection.New(),
		mode:    models.ModeMerge,
		scope:   models.ConnectionScope{},
		tracker: eta.NewTracker(),
	}
}

// LoadArchive previews the archive and enters configuring with everything
// selected. Loading a different archive while configuring replaces the
// preview and selection wholesale.
func (s *Session) LoadArchive(ctx context.Context, path string) error {
	s.mu.Lock()
	if s.state != StateIdle && s.state != StateConfiguring {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot load archive while %s", ErrInvalidState, st)
	}
	s.mu.Unlock()

	pv, err := s.eng.Preview(ctx, path)
	if err != nil {
		s.publishNotice(events.NoticeError, fmt.Sprintf("could not read archive: %v", err))
		return fmt.Errorf("preview archive %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle && s.state != StateConfiguring {
		return fmt.Errorf("%w: session moved to %s during preview", ErrInvalidState, s.state)
	}
	s.archivePath = path
	s.preview = pv
	s.sel = selection.New()
	s.sel.SelectAll(pv)
	s.dryRun = nil
	s.dropsConfirmed = false
	s.setStateLocked(StateConfiguring)
	s.log.Info().Str("archive", path).Int("databases", len(pv.Databases)).Msg("archive loaded")
	return nil
}

// SetMode changes the transfer mode. Only valid while configuring.
func (s *Session) SetMode(m models.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConfiguring {
		return fmt.Errorf("%w: cannot change mode while %s", ErrInvalidState, s.state)
	}
	if !m.Valid() {
		return fmt.Errorf("invalid transfer mode %q", m)
	}
	s.mode = m
	return nil
}

// SetScope changes the transfer scope. Only valid while configuring.
func (s *Session) SetScope(sc models.Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConfiguring {
		return fmt.Errorf("%w: cannot change scope while %s", ErrInvalidState, s.state)
	}
	s.scope = sc
	return nil
}

// ToggleDatabase flips a database's tri-state checkbox. Ignored outside
// configuring; selection edits cannot race a dispatched plan.
func (s *Session) ToggleDatabase(db string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConfiguring {
		return
	}
	s.sel.ToggleDatabase(s.preview, db)
}

// ToggleCollection flips one collection's checkbox. Ignored outside
// configuring.
func (s *Session) ToggleCollection(db, coll string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConfiguring {
		return
	}
	s.sel.ToggleCollection(s.preview, db, coll)
}

// SelectAll checks every previewed collection. Ignored outside configuring.
func (s *Session) SelectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConfiguring {
		return
	}
	s.sel.SelectAll(s.preview)
}

// DeselectAll clears the selection. Ignored outside configuring.
func (s *Session) DeselectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConfiguring {
		return
	}
	s.sel.Clear()
}

// Analyze builds the plan from the current selection and starts a dry run.
// Narrow plans use the engine's synchronous dry run when it offers one;
// everything else goes through the event plane and resolves when the
// completion event arrives. A dispatch rejection returns the session to
// configuring with a notice.
func (s *Session) Analyze(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateConfiguring {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot analyze while %s", ErrInvalidState, st)
	}
	plan, err := BuildPlan(s.preview, s.sel, s.scope, s.mode)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	plan.Token = models.NewOpToken("dryrun")
	s.plan = plan
	s.token = plan.Token
	s.analysisCancelled = false
	s.dryRun = nil
	s.dropsConfirmed = false
	s.progress = models.Progress{}
	s.tracker.Reset()
	s.setStateLocked(StateAnalyzing)

	runner, sync := s.eng.(engine.SyncDryRunner)
	if _, narrow := s.scope.(models.DatabaseScope); !narrow {
		sync = false
	}
	s.mu.Unlock()

	if sync {
		res, err := runner.DryRunSync(ctx, plan)
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state != StateAnalyzing || s.token != plan.Token || s.analysisCancelled {
			return nil
		}
		if err != nil {
			s.setStateLocked(StateConfiguring)
			s.publishNotice(events.NoticeError, fmt.Sprintf("dry run failed: %v", err))
			return fmt.Errorf("dry run: %w", err)
		}
		if res == nil {
			res = &models.Result{}
		}
		res.DryRun = true
		s.dryRun = res
		s.setStateLocked(StateReviewing)
		return nil
	}

	if err := s.eng.DryRun(ctx, plan); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state == StateAnalyzing && s.token == plan.Token {
			s.setStateLocked(StateConfiguring)
			s.publishNotice(events.NoticeError, fmt.Sprintf("could not start dry run: %v", err))
		}
		return fmt.Errorf("dispatch dry run: %w", err)
	}
	return nil
}

// CancelAnalysis abandons a running dry run locally. No command goes to the
// engine; a result arriving afterwards is discarded by the cancelled flag
// and the token check.
func (s *Session) CancelAnalysis() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAnalyzing {
		return
	}
	s.analysisCancelled = true
	s.setStateLocked(StateConfiguring)
	s.log.Debug().Str("token", string(s.token)).Msg("analysis cancelled, result will be discarded")
}

// Back returns from reviewing to configuring, discarding the dry run.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReviewing {
		return fmt.Errorf("%w: cannot go back while %s", ErrInvalidState, s.state)
	}
	s.dryRun = nil
	s.dropsConfirmed = false
	s.setStateLocked(StateConfiguring)
	return nil
}

// Commit starts the reviewed transfer. When the mode would drop existing
// data it returns ErrDropConfirmationRequired instead and changes nothing;
// the caller presents PendingDrops and proceeds through ConfirmDrops.
// Declining is simply not calling ConfirmDrops.
func (s *Session) Commit(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateReviewing {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot commit while %s", ErrInvalidState, st)
	}
	if s.mode.Destructive() && !s.dropsConfirmed && s.dryRun != nil {
		if drops := s.dryRun.Drops(); len(drops.Entries) > 0 {
			s.mu.Unlock()
			return ErrDropConfirmationRequired
		}
	}
	plan := s.plan
	plan.Token = models.NewOpToken("import")
	s.plan = plan
	s.token = plan.Token
	s.paused = false
	s.progress = models.Progress{}
	s.tracker.Reset()
	s.accumulated = nil
	s.skipped = nil
	s.result = nil
	s.failure = nil
	s.setStateLocked(StateTransferring)
	s.mu.Unlock()

	if err := s.eng.Execute(ctx, plan); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state == StateTransferring && s.token == plan.Token {
			s.setStateLocked(StateReviewing)
			s.publishNotice(events.NoticeError, fmt.Sprintf("could not start transfer: %v", err))
		}
		return fmt.Errorf("dispatch transfer: %w", err)
	}
	s.log.Info().Str("token", string(plan.Token)).Str("shape", string(plan.Shape)).Str("mode", string(plan.Mode)).Msg("transfer started")
	return nil
}

// ConfirmDrops acknowledges the pending drop summary and commits.
func (s *Session) ConfirmDrops(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateReviewing {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot confirm drops while %s", ErrInvalidState, st)
	}
	s.dropsConfirmed = true
	s.mu.Unlock()
	return s.Commit(ctx)
}

// Pause asks the engine to suspend the running transfer. The paused flag
// flips only when the engine acknowledges with a paused event, never
// optimistically. Engines without pause support make this a no-op notice.
func (s *Session) Pause(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateTransferring || s.paused {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	ok, err := engine.Pause(ctx, s.eng)
	if err != nil {
		return fmt.Errorf("request pause: %w", err)
	}
	if !ok {
		s.publishNotice(events.NoticeInfo, "this engine cannot pause transfers")
	}
	return nil
}

// Resume asks the engine to continue a paused transfer. Acknowledged the
// same way Pause is.
func (s *Session) Resume(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateTransferring || !s.paused {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	_, err := engine.Resume(ctx, s.eng)
	if err != nil {
		return fmt.Errorf("request resume: %w", err)
	}
	return nil
}

// Cancel stops the current operation. While analyzing it is local only;
// while transferring it sends the engine a cancel command and stays in
// transferring until the engine confirms, preserving whatever progress the
// engine reports with the cancelled event.
func (s *Session) Cancel(ctx context.Context) error {
	s.mu.Lock()
	st := s.state
	s.mu.Unlock()
	switch st {
	case StateAnalyzing:
		s.CancelAnalysis()
		return nil
	case StateTransferring:
		return engine.Cancel(ctx, s.eng)
	default:
		return fmt.Errorf("%w: nothing to cancel while %s", ErrInvalidState, st)
	}
}

// Retry redispatches the failed plan narrowed to the databases that had not
// been attempted yet. Progress from earlier runs is folded into the final
// result when the retry completes.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateFailed || s.failure == nil {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot retry while %s", ErrInvalidState, st)
	}
	if len(s.failure.Remaining) == 0 {
		s.finishFromFailureLocked()
		s.mu.Unlock()
		return nil
	}
	return s.dispatchRemainingLocked(ctx, s.failure.Remaining)
}

// CanSkip reports whether skip-and-continue is currently offered: only in
// the failed state and only when more than one database remains, because
// skipping the sole remaining database would leave nothing to run.
func (s *Session) CanSkip() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateFailed && s.failure != nil && len(s.failure.Remaining) > 1
}

// SkipAndContinue drops the first remaining database from the failed plan
// and redispatches the rest. With one or zero databases remaining it
// degenerates to finishing with the partial result.
func (s *Session) SkipAndContinue(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateFailed || s.failure == nil {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot skip while %s", ErrInvalidState, st)
	}
	remaining := s.failure.Remaining
	if len(remaining) <= 1 {
		if len(remaining) == 1 {
			s.noteSkipLocked(remaining[0])
		}
		s.finishFromFailureLocked()
		s.mu.Unlock()
		return nil
	}
	s.noteSkipLocked(remaining[0])
	return s.dispatchRemainingLocked(ctx, remaining[1:])
}

// dispatchRemainingLocked narrows the plan to remaining and executes it.
// Called with the lock held; releases it.
func (s *Session) dispatchRemainingLocked(ctx context.Context, remaining []string) error {
	plan, err := restrictPlan(s.plan, remaining)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	plan.Token = models.NewOpToken("import")
	s.plan = plan
	s.token = plan.Token
	s.paused = false
	s.progress = models.Progress{}
	s.tracker.Reset()
	s.setStateLocked(StateTransferring)
	s.mu.Unlock()

	if err := s.eng.Execute(ctx, plan); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state == StateTransferring && s.token == plan.Token {
			s.setStateLocked(StateFailed)
			s.publishNotice(events.NoticeError, fmt.Sprintf("could not restart transfer: %v", err))
		}
		return fmt.Errorf("dispatch transfer: %w", err)
	}
	s.log.Info().Str("token", string(plan.Token)).Strs("databases", plan.Databases).Msg("transfer resumed after failure")
	return nil
}

// Dismiss acknowledges a failure. With partial progress the session finishes
// and surfaces that progress as the final result; with none the session
// closes.
func (s *Session) Dismiss() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateFailed || s.failure == nil {
		return fmt.Errorf("%w: cannot dismiss while %s", ErrInvalidState, s.state)
	}
	if s.failure.HasProgress() {
		s.finishFromFailureLocked()
		return nil
	}
	s.setStateLocked(StateClosed)
	return nil
}

// Close ends the session from any state. Closing mid-transfer still sends
// the engine a cancel command so the run does not continue unobserved.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	transferring := s.state == StateTransferring
	s.setStateLocked(StateClosed)
	s.mu.Unlock()

	if transferring {
		if err := engine.Cancel(ctx, s.eng); err != nil {
			s.log.Warn().Err(err).Msg("cancel on close failed")
		}
	}
	return nil
}

// finishFromFailureLocked surfaces accumulated progress as a partial final
// result and finishes. Called with the lock held.
func (s *Session) finishFromFailureLocked() {
	res := s.accumulated
	if res == nil {
		res = &models.Result{}
	}
	res.Partial = true
	s.result = res
	s.failure = nil
	s.setStateLocked(StateFinished)
}

// noteSkipLocked records a skipped database on the accumulated result so the
// final report names it. Called with the lock held.
func (s *Session) noteSkipLocked(db string) {
	s.skipped = append(s.skipped, db)
	if s.accumulated == nil {
		s.accumulated = &models.Result{}
	}
	msg := fmt.Sprintf("skipped database %q", db)
	if s.failure != nil && s.failure.Message != "" {
		msg += " after: " + s.failure.Message
	}
	s.accumulated.Errors = append(s.accumulated.Errors, msg)
}

// pump forwards operation events to the handler until detached.
func (s *Session) pump(ch <-chan events.Event, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			s.handleEvent(ev)
		}
	}
}

// handleEvent applies one engine event. Every branch checks the state and
// the operation token, so events from a superseded or cancelled operation
// fall through without effect.
func (s *Session) handleEvent(ev events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e := ev.(type) {
	case *events.TransferProgress:
		if s.state != StateTransferring || e.Token != s.token {
			return
		}
		s.progress = e.Progress
		s.tracker.Record(e.Progress.DocumentsDone)

	case *events.TransferCompleted:
		if s.state != StateTransferring || e.Token != s.token {
			return
		}
		res := e.Result
		if res == nil {
			res = &models.Result{}
		}
		res = models.MergeResults(s.accumulated, res)
		if len(s.skipped) > 0 {
			res.Partial = true
		}
		s.result = res
		s.failure = nil
		s.setStateLocked(StateFinished)
		s.log.Info().Int64("inserted", res.TotalInserted()).Msg("transfer completed")

	case *events.TransferCancelled:
		if s.state != StateTransferring || e.Token != s.token {
			return
		}
		res := e.Result
		if res == nil {
			res = &models.Result{}
		}
		res = models.MergeResults(s.accumulated, res)
		res.Cancelled = true
		if len(s.skipped) > 0 {
			res.Partial = true
		}
		s.result = res
		s.failure = nil
		s.setStateLocked(StateFinished)
		s.log.Info().Int64("inserted", res.TotalInserted()).Msg("transfer cancelled")

	case *events.TransferFailed:
		if s.state != StateTransferring || e.Token != s.token {
			return
		}
		info := e.Info
		info.Partial = models.MergeResults(s.accumulated, info.Partial)
		s.accumulated = info.Partial
		s.failure = &info
		s.setStateLocked(StateFailed)
		s.log.Error().Str("database", info.Database).Str("collection", info.Collection).Msg(info.Message)

	case *events.TransferPaused:
		if s.state != StateTransferring || e.Token != s.token || s.paused {
			return
		}
		s.paused = true
		s.publishStateLocked()

	case *events.TransferResumed:
		if s.state != StateTransferring || e.Token != s.token || !s.paused {
			return
		}
		s.paused = false
		s.publishStateLocked()

	case *events.DryRunProgress:
		if s.state != StateAnalyzing || e.Token != s.token || s.analysisCancelled {
			return
		}
		s.progress = e.Progress
		s.tracker.Record(e.Progress.DocumentsDone)

	case *events.DryRunCompleted:
		if s.state != StateAnalyzing || e.Token != s.token || s.analysisCancelled {
			return
		}
		res := e.Result
		if res == nil {
			res = &models.Result{}
		}
		res.DryRun = true
		s.dryRun = res
		s.setStateLocked(StateReviewing)

	case *events.DryRunFailed:
		if s.state != StateAnalyzing || e.Token != s.token || s.analysisCancelled {
			return
		}
		s.setStateLocked(StateConfiguring)
		s.publishNotice(events.NoticeError, "dry run failed: "+e.Message)
	}
}

// setStateLocked records the transition, manages the event subscription that
// must exist exactly while an operation is in flight, and announces the new
// state. Called with the lock held.
func (s *Session) setStateLocked(to State) {
	from := s.state
	if from == to {
		return
	}
	s.state = to

	wasOp := from == StateAnalyzing || from == StateTransferring
	isOp := to == StateAnalyzing || to == StateTransferring
	if wasOp && !isOp {
		s.detachLocked()
	}
	if isOp && !wasOp {
		s.attachLocked()
	}
	if !isOp {
		s.paused = false
	}
	s.publishStateLocked()
	s.log.Debug().Str("from", string(from)).Str("to", string(to)).Msg("session state")
}

func (s *Session) attachLocked() {
	if s.opCh != nil {
		return
	}
	s.opCh = s.bus.Subscribe(opEventTypes...)
	s.stop = make(chan struct{})
	go s.pump(s.opCh, s.stop)
}

func (s *Session) detachLocked() {
	if s.opCh == nil {
		return
	}
	s.bus.Unsubscribe(s.opCh)
	close(s.stop)
	s.opCh, s.stop = nil, nil
}

func (s *Session) publishStateLocked() {
	s.bus.Publish(events.NewSessionState(string(s.state), s.paused))
}

func (s *Session) publishNotice(level events.NoticeLevel, msg string) {
	s.bus.Publish(events.NewNotice(level, msg))
}

// State returns the current workflow state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Paused reports whether the engine has acknowledged a pause.
func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Busy reports whether an operation is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateAnalyzing || s.state == StateTransferring
}

// ArchivePath returns the loaded archive's path.
func (s *Session) ArchivePath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.archivePath
}

// Preview returns the archive preview. Callers must treat it as read-only.
func (s *Session) Preview() *models.ArchivePreview {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview
}

// SelectionSnapshot returns an independent copy of the selection.
func (s *Session) SelectionSnapshot() selection.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel.Clone()
}

// DatabaseState returns the tri-state checkbox value for one database.
func (s *Session) DatabaseState(db string) selection.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel.DatabaseState(s.preview, db)
}

// CollectionSelected reports whether one collection is checked.
func (s *Session) CollectionSelected(db, coll string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel.Has(db, coll)
}

// Mode returns the configured transfer mode.
func (s *Session) Mode() models.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Scope returns the configured transfer scope.
func (s *Session) Scope() models.Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// DryRunResult returns the reviewing-state preview result, nil outside it.
func (s *Session) DryRunResult() *models.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dryRun
}

// PendingDrops summarizes what a destructive commit would drop.
func (s *Session) PendingDrops() models.DropSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dryRun == nil {
		return models.DropSummary{}
	}
	return s.dryRun.Drops()
}

// Progress returns the latest progress snapshot.
func (s *Session) Progress() models.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// ETA estimates time remaining for the in-flight operation. ok is false
// until enough samples exist for a sound estimate.
func (s *Session) ETA() (remaining time.Duration, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Estimate(s.progress.DocumentsDone, s.progress.DocumentsTotal)
}

// Result returns the final result once finished, nil before.
func (s *Session) Result() *models.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Failure returns the failure details while in the failed state.
func (s *Session) Failure() *models.ErrorInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateFailed {
		return nil
	}
	return s.failure
}

// CanPauseTransfers reports whether the engine supports pausing at all.
func (s *Session) CanPauseTransfers() bool {
	return engine.CanPause(s.eng)
}
