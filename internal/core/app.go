// Package core wires the application together: configuration, logging, the
// event bus, the transfer engine, desktop notifications, and the rule that at
// most one import session is live per process.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mongohaul/mongohaul/internal/config"
	"github.com/mongohaul/mongohaul/internal/engine"
	"github.com/mongohaul/mongohaul/internal/events"
	"github.com/mongohaul/mongohaul/internal/logging"
	"github.com/mongohaul/mongohaul/internal/notify"
	"github.com/mongohaul/mongohaul/internal/report"
	"github.com/mongohaul/mongohaul/internal/session"
)

// ErrSessionActive rejects opening a new import while one is analyzing or
// transferring.
var ErrSessionActive = errors.New("an import is already in progress")

// App owns the long-lived pieces every front end shares.
type App struct {
	cfg      *config.Config
	log      *logging.Logger
	bus      *events.Bus
	eng      engine.Engine
	notifier *notify.Notifier

	mu      sync.Mutex
	current *session.Session

	watchCh <-chan events.Event
	done    chan struct{}
}

// NewApp assembles the application. The notification watcher runs until
// Close.
func NewApp(cfg *config.Config, log *logging.Logger, bus *events.Bus, eng engine.Engine) *App {
	a := &App{
		cfg:      cfg,
		log:      log,
		bus:      bus,
		eng:      eng,
		notifier: notify.NewNotifier(cfg.Notifications, log),
		done:     make(chan struct{}),
	}
	a.watchCh = bus.Subscribe(events.TypeSessionState)
	go a.watch()
	return a
}

// Config returns the loaded configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Bus returns the shared event bus.
func (a *App) Bus() *events.Bus { return a.bus }

// Engine returns the transfer engine.
func (a *App) Engine() engine.Engine { return a.eng }

// Logger returns the application logger.
func (a *App) Logger() *logging.Logger { return a.log }

// OpenImport starts a new import session. Only one session may be in flight:
// opening is rejected while the current one is analyzing or transferring, and
// otherwise replaces it.
func (a *App) OpenImport() (*session.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != nil && a.current.Busy() {
		return nil, fmt.Errorf("%w (state %s)", ErrSessionActive, a.current.State())
	}
	a.current = session.New(a.bus, a.eng, a.log)
	return a.current, nil
}

// Session returns the live session, nil when none has been opened.
func (a *App) Session() *session.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// CloseSession ends the live session, cancelling a running transfer.
func (a *App) CloseSession(ctx context.Context) error {
	a.mu.Lock()
	s := a.current
	a.current = nil
	a.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Close(ctx)
}

// watch turns terminal session states into desktop notifications.
func (a *App) watch() {
	for {
		select {
		case <-a.done:
			return
		case ev, ok := <-a.watchCh:
			if !ok {
				return
			}
			st, ok := ev.(*events.SessionState)
			if !ok {
				continue
			}
			switch session.State(st.State) {
			case session.StateFinished:
				if s := a.Session(); s != nil {
					a.notifier.TransferComplete(report.OneLine(s.Result()), s.ArchivePath())
				}
			case session.StateFailed:
				if s := a.Session(); s != nil {
					if f := s.Failure(); f != nil {
						a.notifier.TransferFailed(f.Message)
					}
				}
			}
		}
	}
}

// Close tears the application down: the live session first, then the watcher
// and the bus, and finally the engine if it holds connections.
func (a *App) Close(ctx context.Context) error {
	err := a.CloseSession(ctx)

	close(a.done)
	a.bus.Unsubscribe(a.watchCh)
	a.bus.Close()

	if closer, ok := a.eng.(interface{ Close(context.Context) error }); ok {
		if cerr := closer.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
