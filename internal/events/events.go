// Package events carries the asynchronous traffic between the engine, the
// session state machine, and whatever front end is attached. Two planes share
// one bus: token-tagged operation events flowing engine to session, and
// session-state/notice events flowing session to UI.
package events

import (
	"time"

	"github.com/mongohaul/mongohaul/internal/models"
)

// Type identifies an event topic on the bus.
type Type string

const (
	// Operation events, engine to session. Every payload carries the OpToken
	// of the dispatch it belongs to.
	TypeTransferProgress  Type = "transfer.progress"
	TypeTransferCompleted Type = "transfer.completed"
	TypeTransferCancelled Type = "transfer.cancelled"
	TypeTransferFailed    Type = "transfer.failed"
	TypeTransferPaused    Type = "transfer.paused"
	TypeTransferResumed   Type = "transfer.resumed"
	TypeDryRunProgress    Type = "dryrun.progress"
	TypeDryRunCompleted   Type = "dryrun.completed"
	TypeDryRunFailed      Type = "dryrun.failed"

	// Session events, session to UI.
	TypeSessionState Type = "session.state"
	TypeNotice       Type = "session.notice"
)

// Event is the base interface for everything published on the bus.
type Event interface {
	Type() Type
	Timestamp() time.Time
}

// Base provides the common event fields.
type Base struct {
	EventType Type
	Time      time.Time
}

func (e Base) Type() Type           { return e.EventType }
func (e Base) Timestamp() time.Time { return e.Time }

func at(t Type) Base { return Base{EventType: t, Time: time.Now()} }

// TransferProgress reports document movement during a live transfer.
type TransferProgress struct {
	Base
	Token    models.OpToken
	Progress models.Progress
}

// TransferCompleted carries the final result of a successful transfer.
type TransferCompleted struct {
	Base
	Token  models.OpToken
	Result *models.Result
}

// TransferCancelled carries the partial result of a cooperative cancel.
// Result.Cancelled is always true.
type TransferCancelled struct {
	Base
	Token  models.OpToken
	Result *models.Result
}

// TransferFailed reports a mid-run failure with retry context.
type TransferFailed struct {
	Base
	Token models.OpToken
	Info  models.ErrorInfo
}

// TransferPaused acknowledges a pause command taking effect.
type TransferPaused struct {
	Base
	Token models.OpToken
}

// TransferResumed acknowledges a resume command taking effect.
type TransferResumed struct {
	Base
	Token models.OpToken
}

// DryRunProgress reports scan progress for an event-driven dry run.
type DryRunProgress struct {
	Base
	Token    models.OpToken
	Progress models.Progress
}

// DryRunCompleted carries the result of an event-driven dry run.
type DryRunCompleted struct {
	Base
	Token  models.OpToken
	Result *models.Result
}

// DryRunFailed reports that an event-driven dry run could not finish.
type DryRunFailed struct {
	Base
	Token   models.OpToken
	Message string
}

// SessionState announces a session state transition to the UI plane.
type SessionState struct {
	Base
	State  string
	Paused bool
}

// NoticeLevel grades transient notices for UI styling.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeWarn  NoticeLevel = "warn"
	NoticeError NoticeLevel = "error"
)

// Notice is a transient, non-modal message for the operator (dispatch
// failures, degraded capabilities). Not used for mid-run failures, which get
// the dedicated failed state instead.
type Notice struct {
	Base
	Level   NoticeLevel
	Message string
}

// Constructors stamp the type tag and timestamp so publish sites stay short.

func NewTransferProgress(token models.OpToken, p models.Progress) *TransferProgress {
	return &TransferProgress{Base: at(TypeTransferProgress), Token: token, Progress: p}
}

func NewTransferCompleted(token models.OpToken, r *models.Result) *TransferCompleted {
	return &TransferCompleted{Base: at(TypeTransferCompleted), Token: token, Result: r}
}

func NewTransferCancelled(token models.OpToken, r *models.Result) *TransferCancelled {
	return &TransferCancelled{Base: at(TypeTransferCancelled), Token: token, Result: r}
}

func NewTransferFailed(token models.OpToken, info models.ErrorInfo) *TransferFailed {
	return &TransferFailed{Base: at(TypeTransferFailed), Token: token, Info: info}
}

func NewTransferPaused(token models.OpToken) *TransferPaused {
	return &TransferPaused{Base: at(TypeTransferPaused), Token: token}
}

func NewTransferResumed(token models.OpToken) *TransferResumed {
	return &TransferResumed{Base: at(TypeTransferResumed), Token: token}
}

func NewDryRunProgress(token models.OpToken, p models.Progress) *DryRunProgress {
	return &DryRunProgress{Base: at(TypeDryRunProgress), Token: token, Progress: p}
}

func NewDryRunCompleted(token models.OpToken, r *models.Result) *DryRunCompleted {
	return &DryRunCompleted{Base: at(TypeDryRunCompleted), Token: token, Result: r}
}

func NewDryRunFailed(token models.OpToken, message string) *DryRunFailed {
	return &DryRunFailed{Base: at(TypeDryRunFailed), Token: token, Message: message}
}

func NewSessionState(state string, paused bool) *SessionState {
	return &SessionState{Base: at(TypeSessionState), State: state, Paused: paused}
}

func NewNotice(level NoticeLevel, message string) *Notice {
	return &Notice{Base: at(TypeNotice), Level: level, Message: message}
}
