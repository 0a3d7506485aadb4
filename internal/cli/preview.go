package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mongohaul/mongohaul/internal/engine/mongoengine"
	"github.com/mongohaul/mongohaul/internal/events"
	"github.com/mongohaul/mongohaul/internal/fetch"
	"github.com/mongohaul/mongohaul/internal/logging"
	"github.com/mongohaul/mongohaul/internal/progress"
)

var previewCmd = &cobra.Command{
	Use:   "preview <archive>",
	Short: "List what a snapshot archive contains",
	Long: `Preview reads the archive manifest and lists its databases, collections
and document counts without touching any deployment.`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

func runPreview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := ensureProxyPassword(cfg); err != nil {
		return err
	}
	log := logging.NewDefaultCLILogger()

	loc, err := fetch.ParseLocation(args[0])
	if err != nil {
		return err
	}
	stage, err := os.MkdirTemp("", "mongohaul-fetch-")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(stage)

	archivePath, err := fetch.New(cfg, log).Fetch(ctx, loc, stage, progress.NewCLIProgress())
	if err != nil {
		return err
	}

	// Preview never dials the destination, so the engine needs no URI here.
	bus := events.NewBus(0)
	defer bus.Close()
	eng := mongoengine.New(mongoengine.Options{}, bus, log)
	pv, err := eng.Preview(ctx, archivePath)
	if err != nil {
		return err
	}

	fmt.Printf("Archive: %s\n", args[0])
	if pv.Source != "" {
		fmt.Printf("Source:  %s\n", pv.Source)
	}
	if !pv.CreatedAt.IsZero() {
		fmt.Printf("Created: %s\n", pv.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATABASE\tCOLLECTION\tDOCUMENTS")
	for _, db := range pv.Databases {
		for _, coll := range db.Collections {
			fmt.Fprintf(w, "%s\t%s\t%d\n", db.Name, coll.Name, coll.DocumentCount)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nTotal: %d databases, %d documents\n", len(pv.Databases), pv.TotalDocuments())
	return nil
}
