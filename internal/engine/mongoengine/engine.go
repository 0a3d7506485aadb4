// Package mongoengine moves data between mongohaul archives and a live
// MongoDB deployment. It implements the full engine surface: preview, both
// dry-run variants, transfer with pause and cancel, and export. One
// operation runs at a time; outcomes travel over the event bus labeled with
// the dispatching plan's token.
package mongoengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/mongohaul/mongohaul/internal/archive"
	"github.com/mongohaul/mongohaul/internal/constants"
	"github.com/mongohaul/mongohaul/internal/events"
	"github.com/mongohaul/mongohaul/internal/logging"
	"github.com/mongohaul/mongohaul/internal/models"
)

// ErrBusy rejects a dispatch while another operation is still running.
var ErrBusy = errors.New("another operation is already running")

// Options configure the engine. Zero values fall back to the defaults in
// constants.
type Options struct {
	// URI is the destination deployment's connection string.
	URI string
	// DestinationDB receives single-database transfers. Required only for
	// that shape.
	DestinationDB string
	// BatchSize caps documents per insert batch.
	BatchSize int
	// MaxBatchBytes caps the decoded size of one insert batch.
	MaxBatchBytes int
	// Compressors for the wire protocol, snappy by default.
	Compressors []string
	// ConnectTimeout bounds dialing and the verification ping.
	ConnectTimeout time.Duration
	// SafetyMargin scales the disk preflight requirement for exports.
	SafetyMargin float64
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = constants.InsertBatchSize
	}
	if o.MaxBatchBytes <= 0 {
		o.MaxBatchBytes = constants.MaxBatchBytes
	}
	if len(o.Compressors) == 0 {
		o.Compressors = []string{constants.MongoCompressor}
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = constants.MongoConnectTimeout
	}
	if o.SafetyMargin <= 0 {
		o.SafetyMargin = constants.DiskSafetyMargin
	}
	return o
}

type command int

const (
	cmdPause command = iota
	cmdResume
	cmdCancel
)

// Engine is the MongoDB-backed transfer engine.
type Engine struct {
	opts Options
	bus  *events.Bus
	log  *logging.Logger

	mu     sync.Mutex
	client *mongo.Client
	active bool
	cmds   chan command
}

// New returns an engine that connects lazily on first use.
func New(opts Options, bus *events.Bus, log *logging.Logger) *Engine {
	return &Engine{opts: opts.withDefaults(), bus: bus, log: log}
}

// Preview reads the archive manifest without touching the destination.
func (e *Engine) Preview(ctx context.Context, archivePath string) (*models.ArchivePreview, error) {
	m, err := archive.ReadManifest(archivePath)
	if err != nil {
		return nil, err
	}
	return m.Preview(archivePath), nil
}

// CancelActive asks the running operation to stop at the next batch
// boundary. A no-op when nothing is running.
func (e *Engine) CancelActive(ctx context.Context) error {
	e.sendCommand(cmdCancel)
	return nil
}

// PauseActive asks the running transfer to hold at the next batch boundary.
func (e *Engine) PauseActive(ctx context.Context) error {
	e.sendCommand(cmdPause)
	return nil
}

// ResumeActive releases a paused transfer.
func (e *Engine) ResumeActive(ctx context.Context) error {
	e.sendCommand(cmdResume)
	return nil
}

func (e *Engine) sendCommand(cmd command) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active || e.cmds == nil {
		return
	}
	select {
	case e.cmds <- cmd:
	default:
		e.log.Warn().Int("command", int(cmd)).Msg("engine command queue full, command dropped")
	}
}

// Close disconnects from the destination. Safe to call when never connected.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil
	}
	err := e.client.Disconnect(ctx)
	e.client = nil
	if err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}

// ensureClientLocked dials and pings the destination once, reusing the
// client afterwards. Callers hold e.mu.
func (e *Engine) ensureClientLocked(ctx context.Context) (*mongo.Client, error) {
	if e.client != nil {
		return e.client, nil
	}
	if e.opts.URI == "" {
		return nil, fmt.Errorf("no MongoDB connection string configured")
	}
	opts := options.Client().
		ApplyURI(e.opts.URI).
		SetConnectTimeout(e.opts.ConnectTimeout).
		SetRetryWrites(true).
		SetRetryReads(true).
		SetCompressors(e.opts.Compressors)

	dialCtx, cancel := context.WithTimeout(ctx, e.opts.ConnectTimeout)
	defer cancel()
	client, err := mongo.Connect(dialCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(dialCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	e.log.Debug().Str("uri", redactURI(e.opts.URI)).Msg("connected to destination")
	e.client = client
	return client, nil
}

// beginRun flips the engine into its single active slot, connecting first so
// unreachable destinations surface as synchronous dispatch errors.
func (e *Engine) beginRun(ctx context.Context) (*mongo.Client, chan command, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active {
		return nil, nil, ErrBusy
	}
	client, err := e.ensureClientLocked(ctx)
	if err != nil {
		return nil, nil, err
	}
	e.active = true
	e.cmds = make(chan command, 8)
	return client, e.cmds, nil
}

func (e *Engine) finishRun() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = false
	e.cmds = nil
}

// redactURI hides credentials in a connection string for logs.
func redactURI(uri string) string {
	at := -1
	scheme := -1
	for i := 0; i < len(uri); i++ {
		if uri[i] == '@' {
			at = i
			break
		}
	}
	for i := 0; i+2 < len(uri); i++ {
		if uri[i] == ':' && uri[i+1] == '/' && uri[i+2] == '/' {
			scheme = i + 3
			break
		}
	}
	if at < 0 || scheme < 0 || at < scheme {
		return uri
	}
	return uri[:scheme] + "***" + uri[at:]
}
