package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mongohaul/mongohaul/internal/config"
	"github.com/mongohaul/mongohaul/internal/core"
	"github.com/mongohaul/mongohaul/internal/engine/mongoengine"
	"github.com/mongohaul/mongohaul/internal/events"
	"github.com/mongohaul/mongohaul/internal/fetch"
	"github.com/mongohaul/mongohaul/internal/logging"
	"github.com/mongohaul/mongohaul/internal/models"
	"github.com/mongohaul/mongohaul/internal/progress"
	"github.com/mongohaul/mongohaul/internal/report"
	"github.com/mongohaul/mongohaul/internal/session"
	"github.com/mongohaul/mongohaul/internal/tui"
)

var (
	importYes      bool
	importAll      bool
	importDBs      []string
	importColls    []string
	importMode     string
	importSourceDB string
	importDestDB   string
	importNoTUI    bool
)

var importCmd = &cobra.Command{
	Use:   "import <archive>",
	Short: "Import a snapshot archive into the configured deployment",
	Long: `Import walks an archive through selection, dry run, review and transfer.

With no selection flags on a terminal, an interactive session opens. With
--all or --db/--coll the import runs non-interactively; combine with --yes to
accept a destructive replace without a prompt.

The archive may be a local path, an http(s) URL, s3://bucket/key or
azblob://container/blob.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVarP(&importYes, "yes", "y", false, "skip confirmation prompts")
	importCmd.Flags().BoolVar(&importAll, "all", false, "import every database in the archive")
	importCmd.Flags().StringSliceVar(&importDBs, "db", nil, "database to import (repeatable)")
	importCmd.Flags().StringSliceVar(&importColls, "coll", nil, "collection to import as db.collection (repeatable)")
	importCmd.Flags().StringVar(&importMode, "mode", "merge", "transfer mode: merge or replace")
	importCmd.Flags().StringVar(&importSourceDB, "source-db", "", "import a single archived database")
	importCmd.Flags().StringVar(&importDestDB, "dest-db", "", "destination database for --source-db")
	importCmd.Flags().BoolVar(&importNoTUI, "no-tui", false, "force the plain-text flow")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := ensureProxyPassword(cfg); err != nil {
		return err
	}

	mode := models.Mode(importMode)
	if !mode.Valid() {
		return fmt.Errorf("invalid --mode %q: use merge or replace", importMode)
	}

	interactive := !importAll && len(importDBs) == 0 && len(importColls) == 0 &&
		!importNoTUI && term.IsTerminal(int(os.Stdout.Fd()))

	var log *logging.Logger
	if interactive {
		fileLog, closer, lerr := logging.NewFileLogger(logDir())
		if lerr != nil {
			fileLog = logging.NewLogger(logging.ModeTUI, nil)
		} else {
			defer closer.Close()
		}
		log = fileLog
	} else {
		log = logging.NewDefaultCLILogger()
	}

	// Materialize the archive locally before anything touches the engine.
	loc, err := fetch.ParseLocation(args[0])
	if err != nil {
		return err
	}
	stage, err := os.MkdirTemp("", "mongohaul-fetch-")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(stage)

	var rep progress.Reporter = progress.NewNoOpProgress()
	if !interactive {
		rep = progress.NewCLIProgress()
	}
	archivePath, err := fetch.New(cfg, log).Fetch(ctx, loc, stage, rep)
	if err != nil {
		return err
	}

	bus := events.NewBus(0)
	eng := mongoengine.New(mongoengine.Options{
		URI:            cfg.Mongo.URI,
		DestinationDB:  importDestDB,
		BatchSize:      cfg.Transfer.BatchSize,
		Compressors:    cfg.CompressorList(),
		ConnectTimeout: time.Duration(cfg.Mongo.ConnectTimeoutSeconds) * time.Second,
		SafetyMargin:   cfg.Transfer.DiskSafetyMargin,
	}, bus, log)
	app := core.NewApp(cfg, log, bus, eng)
	defer app.Close(context.Background())

	if interactive {
		return tui.Run(ctx, app, archivePath)
	}
	return runPlainImport(ctx, app, archivePath, mode)
}

// runPlainImport drives one session through the whole workflow without the
// TUI: dry run, review on stdout, confirmation prompts, mpb transfer bars.
func runPlainImport(ctx context.Context, app *core.App, archivePath string, mode models.Mode) error {
	sess, err := app.OpenImport()
	if err != nil {
		return err
	}
	defer sess.Close(context.Background())

	// Watch the session plane for the whole run. Subscribing before any
	// dispatch means no transition can be missed.
	watch := app.Bus().Subscribe(
		events.TypeSessionState,
		events.TypeNotice,
		events.TypeTransferProgress,
		events.TypeDryRunProgress,
	)
	defer app.Bus().Unsubscribe(watch)

	if err := sess.LoadArchive(ctx, archivePath); err != nil {
		return err
	}
	if err := applySelection(sess, importDBs, importColls); err != nil {
		return err
	}
	if err := sess.SetMode(mode); err != nil {
		return err
	}
	if importSourceDB != "" {
		if err := sess.SetScope(models.DatabaseScope{SourceDB: importSourceDB}); err != nil {
			return err
		}
	}

	// Dry run. The single-database path resolves synchronously; the
	// connection-scope path resolves through the event plane.
	if err := sess.Analyze(ctx); err != nil {
		return err
	}
	state, err := waitForStates(ctx, sess, watch, nil, session.StateReviewing, session.StateConfiguring)
	if err != nil {
		return err
	}
	if state != session.StateReviewing {
		return fmt.Errorf("dry run did not complete")
	}

	fmt.Println(report.Render(sess.DryRunResult(), reportOptions(sess)))

	// Commit, stopping for the destructive confirmation when required.
	err = sess.Commit(ctx)
	if errors.Is(err, session.ErrDropConfirmationRequired) {
		fmt.Print(report.RenderDrops(sess.PendingDrops()))
		if !importYes {
			ok, perr := promptYesNo(os.Stdin, "Drop this data and continue?")
			if perr != nil {
				return perr
			}
			if !ok {
				fmt.Println("Import aborted; nothing was changed.")
				return nil
			}
		}
		err = sess.ConfirmDrops(ctx)
	}
	if err != nil {
		return err
	}

	return followTransfer(ctx, sess, watch)
}

// followTransfer renders progress until the session reaches a terminal state,
// translating Ctrl+C into a cooperative cancel and failures into the
// retry/skip/dismiss prompt.
func followTransfer(ctx context.Context, sess *session.Session, watch <-chan events.Event) error {
	_, colls := sess.SelectionSnapshot().Counts()
	ui := progress.NewTransferUI(colls)

	cancelled := false
	for {
		select {
		case <-ctx.Done():
			if !cancelled {
				cancelled = true
				fmt.Fprintln(ui.Writer(), "Cancelling, waiting for the engine to stop...")
				// Detached context: the signal context is already done.
				_ = sess.Cancel(context.Background())
			}

		case ev, ok := <-watch:
			if !ok {
				return nil
			}
			switch e := ev.(type) {
			case *events.TransferProgress:
				ui.Observe(e.Progress)

			case *events.Notice:
				fmt.Fprintf(ui.Writer(), "[%s] %s\n", e.Level, e.Message)

			case *events.SessionState:
				switch session.State(e.State) {
				case session.StateFinished:
					ui.Wait()
					fmt.Println(report.Render(sess.Result(), reportOptions(sess)))
					return nil

				case session.StateFailed:
					ui.Fail()
					ui.Wait()
					if done, err := handleFailure(ctx, sess); done || err != nil {
						if err == nil && sess.Result() != nil {
							fmt.Println(report.Render(sess.Result(), reportOptions(sess)))
						}
						return err
					}
					// Retry or skip re-entered transferring; new bars.
					_, colls := sess.SelectionSnapshot().Counts()
					ui = progress.NewTransferUI(colls)

				case session.StateClosed:
					return nil
				}
			}
		}
	}
}

// handleFailure reports a failure and resolves the operator's decision. done
// is true when the session reached its final shape (dismissed); false means a
// retry or skip was dispatched and the transfer continues.
func handleFailure(ctx context.Context, sess *session.Session) (done bool, err error) {
	info := sess.Failure()
	fmt.Print(report.RenderFailure(info))

	if importYes {
		// Non-interactive runs fail fast, preserving partial progress.
		if derr := sess.Dismiss(); derr != nil {
			return true, derr
		}
		return true, fmt.Errorf("import failed: %s", info.Message)
	}

	action, err := promptFailure(os.Stdin, sess.CanSkip())
	if err != nil {
		return true, err
	}
	switch action {
	case FailureRetry:
		return false, sess.Retry(ctx)
	case FailureSkip:
		return false, sess.SkipAndContinue(ctx)
	default:
		if derr := sess.Dismiss(); derr != nil {
			return true, derr
		}
		return true, nil
	}
}

// waitForStates drains the watch channel until the session reaches one of the
// target states. onEvent, when set, sees every event first (for progress).
func waitForStates(ctx context.Context, sess *session.Session, watch <-chan events.Event, onEvent func(events.Event), targets ...session.State) (session.State, error) {
	// The transition may already have happened synchronously.
	if st := sess.State(); stateIn(st, targets) {
		return st, nil
	}
	for {
		select {
		case <-ctx.Done():
			sess.CancelAnalysis()
			return sess.State(), ctx.Err()
		case ev, ok := <-watch:
			if !ok {
				return sess.State(), fmt.Errorf("event bus closed")
			}
			if onEvent != nil {
				onEvent(ev)
			}
			if st, ok := ev.(*events.SessionState); ok {
				if s := session.State(st.State); stateIn(s, targets) {
					return s, nil
				}
			}
		}
	}
}

func stateIn(s session.State, set []session.State) bool {
	for _, t := range set {
		if s == t {
			return true
		}
	}
	return false
}

// applySelection narrows the freshly loaded session (which selects
// everything) to the databases and db.collection pairs given on the command
// line. No flags means keep everything.
func applySelection(sess *session.Session, dbs, colls []string) error {
	if len(dbs) == 0 && len(colls) == 0 {
		return nil
	}
	pv := sess.Preview()
	sess.DeselectAll()

	for _, db := range dbs {
		if pv.Database(db) == nil {
			return fmt.Errorf("database %q is not in the archive", db)
		}
		sess.ToggleDatabase(db)
	}
	for _, pair := range colls {
		db, coll, ok := strings.Cut(pair, ".")
		if !ok || db == "" || coll == "" {
			return fmt.Errorf("--coll expects db.collection, got %q", pair)
		}
		found := false
		for _, c := range pv.CollectionNames(db) {
			if c == coll {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("collection %q is not in the archive", pair)
		}
		if !sess.CollectionSelected(db, coll) {
			sess.ToggleCollection(db, coll)
		}
	}
	return nil
}

func reportOptions(sess *session.Session) report.Options {
	scope := sess.Scope().String()
	if importDestDB != "" {
		scope += " -> " + importDestDB
	}
	return report.Options{
		ScopeLabel:  scope,
		ArchivePath: sess.ArchivePath(),
	}
}

// logDir picks the directory for TUI log files, falling back to the
// temporary directory when the config dir is unavailable.
func logDir() string {
	if err := config.EnsureLogDirectory(); err == nil {
		return config.LogDirectory()
	}
	return os.TempDir()
}
