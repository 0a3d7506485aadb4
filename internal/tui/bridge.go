package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mongohaul/mongohaul/internal/constants"
	"github.com/mongohaul/mongohaul/internal/events"
)

// busMsg wraps one bus event as a tea.Msg.
type busMsg struct {
	ev events.Event
}

// bridge adapts the event bus to bubbletea's message loop. A goroutine moves
// events from the bus subscription into a buffered tea.Msg channel; the model
// re-arms listen() after every delivered message.
type bridge struct {
	bus  *events.Bus
	sub  <-chan events.Event
	msgs chan tea.Msg
	done chan struct{}
}

func newBridge(bus *events.Bus) *bridge {
	b := &bridge{
		bus:  bus,
		msgs: make(chan tea.Msg, constants.BridgeBuffer),
		done: make(chan struct{}),
	}
	b.sub = bus.Subscribe(
		events.TypeSessionState,
		events.TypeNotice,
		events.TypeTransferProgress,
		events.TypeDryRunProgress,
	)
	go b.pump()
	return b
}

func (b *bridge) pump() {
	defer close(b.msgs)
	for {
		select {
		case <-b.done:
			return
		case ev, ok := <-b.sub:
			if !ok {
				return
			}
			select {
			case b.msgs <- busMsg{ev: ev}:
			case <-b.done:
				return
			}
		}
	}
}

// listen returns a command that blocks until the next bus event. nil means
// the bridge closed and no further listen should be armed.
func (b *bridge) listen() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-b.msgs
		if !ok {
			return nil
		}
		return msg
	}
}

func (b *bridge) close() {
	b.bus.Unsubscribe(b.sub)
	close(b.done)
}
