package tui

import (
	"testing"
	"time"

	"github.com/mongohaul/mongohaul/internal/events"
	"github.com/mongohaul/mongohaul/internal/models"
)

func previewFixture() *models.ArchivePreview {
	return &models.ArchivePreview{
		Path: "/tmp/snap.mongohaul.tar.gz",
		Databases: []models.DatabasePreview{
			{Name: "shop", Collections: []models.CollectionPreview{
				{Name: "orders", DocumentCount: 10},
				{Name: "users", DocumentCount: 5},
			}},
			{Name: "crm", Collections: []models.CollectionPreview{
				{Name: "leads", DocumentCount: 3},
			}},
		},
	}
}

func TestTreeCollapsedShowsOnlyDatabases(t *testing.T) {
	tr := newTree(previewFixture())
	if len(tr.rows) != 2 {
		t.Fatalf("collapsed tree has %d rows, want 2", len(tr.rows))
	}
	for _, r := range tr.rows {
		if r.coll != "" {
			t.Errorf("collapsed tree should hold database rows only, got %+v", r)
		}
	}
}

func TestTreeExpandAndCollapse(t *testing.T) {
	tr := newTree(previewFixture())

	tr.toggleExpand() // expand shop under cursor 0
	if len(tr.rows) != 4 {
		t.Fatalf("expanded tree has %d rows, want 4", len(tr.rows))
	}
	if tr.rows[1].coll != "orders" || tr.rows[2].coll != "users" {
		t.Errorf("expanded rows = %+v", tr.rows)
	}

	// Collapsing from a collection row lands back on the parent.
	tr.down()
	tr.down()
	tr.toggleExpand()
	if len(tr.rows) != 2 {
		t.Fatalf("collapsed tree has %d rows, want 2", len(tr.rows))
	}
	if r, _ := tr.current(); r.db != "shop" || r.coll != "" {
		t.Errorf("cursor after collapse on %+v, want shop database row", r)
	}
}

func TestTreeCursorBounds(t *testing.T) {
	tr := newTree(previewFixture())
	tr.up()
	if tr.cursor != 0 {
		t.Errorf("cursor moved above the first row: %d", tr.cursor)
	}
	tr.down()
	tr.down()
	tr.down()
	if tr.cursor != 1 {
		t.Errorf("cursor moved past the last row: %d", tr.cursor)
	}
}

func TestBridgeForwardsBusEvents(t *testing.T) {
	bus := events.NewBus(8)
	defer bus.Close()
	b := newBridge(bus)
	defer b.close()

	bus.Publish(events.NewSessionState("reviewing", false))

	select {
	case msg := <-b.msgs:
		bm, ok := msg.(busMsg)
		if !ok {
			t.Fatalf("bridge forwarded %T, want busMsg", msg)
		}
		st, ok := bm.ev.(*events.SessionState)
		if !ok || st.State != "reviewing" {
			t.Errorf("bridge forwarded %+v, want reviewing state", bm.ev)
		}
	case <-time.After(time.Second):
		t.Fatal("bridge did not forward the event")
	}
}

func TestBridgeIgnoresOperationPlaneOnlyEvents(t *testing.T) {
	bus := events.NewBus(8)
	defer bus.Close()
	b := newBridge(bus)
	defer b.close()

	// Completion events belong to the session, not the UI; the bridge does
	// not subscribe to them.
	bus.Publish(events.NewTransferCompleted(models.NewOpToken("import"), &models.Result{}))
	bus.Publish(events.NewNotice(events.NoticeInfo, "hello"))

	select {
	case msg := <-b.msgs:
		bm := msg.(busMsg)
		if _, isNotice := bm.ev.(*events.Notice); !isNotice {
			t.Errorf("first forwarded event is %T, want *events.Notice", bm.ev)
		}
	case <-time.After(time.Second):
		t.Fatal("bridge did not forward the notice")
	}
}
