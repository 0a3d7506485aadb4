package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/mongohaul/mongohaul/internal/models"
)

// TransferUI manages per-collection progress bars for a running transfer
// using mpb. On a non-terminal it degrades to plain line output.
type TransferUI struct {
	progress   *mpb.Progress
	mu         sync.Mutex
	bars       map[string]*CollectionBar // "db.coll" -> bar
	isTerminal bool
	totalColls int
	completed  int32
}

// CollectionBar tracks one collection's progress bar.
type CollectionBar struct {
	bar        *mpb.Bar
	ui         *TransferUI
	index      int
	database   string
	collection string
	docs       int64
	startTime  time.Time
	lastUpdate time.Time
	lastDocs   int64
	phase      atomic.Value // models.Phase
}

// NewTransferUI creates the multi-bar UI for a transfer covering totalColls
// collections.
func NewTransferUI(totalColls int) *TransferUI {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))

	var p *mpb.Progress
	if isTerminal {
		// Enable ANSI escape sequences on Windows for proper bar rendering
		enableWindowsANSI(os.Stderr)

		p = mpb.New(
			mpb.WithOutput(os.Stderr),
			mpb.WithRefreshRate(300*time.Millisecond),
			mpb.WithWidth(80),
		)
	} else {
		// Non-TTY: disable bars, text output only
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	return &TransferUI{
		progress:   p,
		bars:       make(map[string]*CollectionBar),
		isTerminal: isTerminal,
		totalColls: totalColls,
	}
}

// Observe applies one progress snapshot, creating the collection's bar on
// first sight and advancing it afterwards. Call from the event loop.
func (u *TransferUI) Observe(p models.Progress) {
	if p.Database == "" || p.Collection == "" {
		return
	}
	key := p.Database + "." + p.Collection

	u.mu.Lock()
	cb, ok := u.bars[key]
	if !ok {
		cb = u.addBar(p)
		u.bars[key] = cb
	}
	u.mu.Unlock()

	cb.phase.Store(p.Phase)
	cb.update(p.DocumentsDone)
}

// addBar creates the bar for a collection just entering the progress stream.
// Called with u.mu held.
func (u *TransferUI) addBar(p models.Progress) *CollectionBar {
	index := len(u.bars) + 1
	cb := &CollectionBar{
		ui:         u,
		index:      index,
		database:   p.Database,
		collection: p.Collection,
		docs:       p.DocumentsTotal,
		startTime:  time.Now(),
		lastUpdate: time.Now(),
	}
	cb.phase.Store(p.Phase)

	if u.isTerminal {
		cb.bar = u.progress.New(p.DocumentsTotal,
			mpb.BarStyle().
				Lbound("[").
				Filler("█").
				Tip("█").
				Padding("░").
				Rbound("]"),
			mpb.PrependDecorators(
				decor.Any(func(s decor.Statistics) string {
					label := fmt.Sprintf("[%d/%d] %s.%s", cb.index, u.totalColls, cb.database, cb.collection)
					if ph, _ := cb.phase.Load().(models.Phase); ph == models.PhaseDropping {
						return label + " (dropping)"
					}
					return label
				}, decor.WCSyncSpace),
			),
			mpb.AppendDecorators(
				decor.CountersNoUnit("%d / %d", decor.WCSyncSpace),
				decor.Name("  "),
				decor.Percentage(decor.WCSyncSpace),
				decor.Name("  ETA ", decor.WCSyncWidth),
				decor.EwmaETA(decor.ET_STYLE_GO, 60),
			),
			mpb.BarRemoveOnComplete(),
		)
	} else {
		fmt.Printf("Transferring [%d/%d]: %s.%s (%d documents)\n",
			index, u.totalColls, p.Database, p.Collection, p.DocumentsTotal)
	}
	return cb
}

// update advances the bar using EWMA timing so speed and ETA stay accurate.
// Throttled to one redraw interval.
func (cb *CollectionBar) update(docsDone int64) {
	if cb.bar == nil {
		return
	}
	now := time.Now()
	elapsed := now.Sub(cb.lastUpdate)

	const updateInterval = 300 * time.Millisecond
	if elapsed >= updateInterval || docsDone >= cb.docs {
		cb.bar.EwmaIncrBy(int(docsDone-cb.lastDocs), elapsed)
		cb.lastDocs = docsDone
		cb.lastUpdate = now
	}
}

// CompleteCollection marks one collection's bar finished and prints its
// summary line above the remaining bars.
func (u *TransferUI) CompleteCollection(db, coll string, inserted, skipped int64) {
	key := db + "." + coll
	u.mu.Lock()
	cb := u.bars[key]
	u.mu.Unlock()
	if cb == nil {
		return
	}

	if cb.bar != nil {
		cb.bar.SetCurrent(cb.docs)
		cb.bar.SetTotal(cb.docs, true) // mark done, trigger BarRemoveOnComplete
	}

	elapsed := time.Since(cb.startTime).Round(time.Second)
	msg := fmt.Sprintf("✓ %s.%s: %d inserted", db, coll, inserted)
	if skipped > 0 {
		msg += fmt.Sprintf(", %d skipped", skipped)
	}
	msg += fmt.Sprintf(" (%s)\n", elapsed)
	u.write(msg)

	atomic.AddInt32(&u.completed, 1)
}

// Fail aborts every open bar, keeping them visible to show where the run
// stopped.
func (u *TransferUI) Fail() {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, cb := range u.bars {
		if cb.bar != nil && !cb.bar.Completed() {
			cb.bar.Abort(false)
		}
	}
}

// write prints through mpb's writer so text lands above active bars.
func (u *TransferUI) write(msg string) {
	if u.isTerminal && u.progress != nil {
		_, _ = u.progress.Write([]byte(msg))
	} else {
		fmt.Print(msg)
	}
}

// Wait blocks until every bar has rendered its final state.
func (u *TransferUI) Wait() {
	if u.progress != nil {
		u.progress.Wait()
	}
}

// Writer returns an io.Writer that safely outputs above the bars.
func (u *TransferUI) Writer() io.Writer {
	if u.progress != nil && u.isTerminal {
		return u.progress
	}
	return os.Stderr
}

// IsTerminal reports whether bars are actually rendering.
func (u *TransferUI) IsTerminal() bool {
	return u.isTerminal
}

// Completed returns the number of finished collections.
func (u *TransferUI) Completed() int {
	return int(atomic.LoadInt32(&u.completed))
}
