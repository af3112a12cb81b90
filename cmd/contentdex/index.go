package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/contentdex/contentdex/internal/domain"
	"github.com/contentdex/contentdex/internal/domain/content"
	"github.com/contentdex/contentdex/internal/domain/syncstate"
	"github.com/contentdex/contentdex/internal/tracker"
)

type indexFlags struct {
	setup          bool
	perPage        int
	offset         int
	indexables     []string
	noBulk         bool
	showBulkErrors bool
	networkWide    int
	resume         bool
}

func newIndexCmd() *cobra.Command {
	var flags indexFlags

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Run a full sync from the content store into the search index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(flags)
		},
	}

	cmd.Flags().BoolVar(&flags.setup, "setup", false, "delete and recreate the indices with fresh mappings before syncing")
	cmd.Flags().IntVar(&flags.perPage, "per-page", 0, "objects per bulk page (default from config)")
	cmd.Flags().IntVar(&flags.offset, "offset", 0, "skip this many objects of the first indexable")
	cmd.Flags().StringSliceVar(&flags.indexables, "post-type", nil, "indexables to sync (default: all)")
	cmd.Flags().BoolVar(&flags.noBulk, "nobulk", false, "index documents one request at a time")
	cmd.Flags().BoolVar(&flags.showBulkErrors, "show-bulk-errors", false, "print the collected per-document errors after the run")
	cmd.Flags().IntVar(&flags.networkWide, "network-wide", 0, "sync this many sites; bare flag means every site in the content store (0 = current site only)")
	// Value is optional: --network-wide alone syncs every known site.
	cmd.Flags().Lookup("network-wide").NoOptDefVal = "-1"
	cmd.Flags().BoolVar(&flags.resume, "resume", false, "resume a paused sync instead of starting a new one")

	return cmd
}

func runIndex(flags indexFlags) error {
	a, err := newApp(indexerOptions{noBulk: flags.noBulk})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	indexables := flags.indexables
	if len(indexables) == 0 {
		indexables = defaultIndexables
	}
	for _, ind := range indexables {
		if !content.Type(ind).IsValid() {
			return fmt.Errorf("unknown indexable %q", ind)
		}
	}

	pageSize := flags.perPage
	if pageSize <= 0 {
		pageSize = a.cfg.Sync.PageSize
	}
	siteCount := flags.networkWide
	if siteCount == -1 {
		siteCount = a.content.SiteCount()
	}
	if siteCount < 1 {
		siteCount = 1
	}

	var st *syncstate.State
	if flags.resume {
		st, err = a.tracker.Resume(ctx)
		if errors.Is(err, domain.ErrNoActiveSync) {
			return fmt.Errorf("nothing to resume: no sync state found")
		}
	} else {
		st, err = a.tracker.Start(ctx, tracker.StartOptions{
			Method:     syncstate.MethodCLI,
			Indexables: indexables,
			PageSize:   pageSize,
			SiteCount:  siteCount,
			PutMapping: flags.setup,
			Offset:     flags.offset,
		})
		var sie *domain.SyncInProgressError
		if errors.As(err, &sie) {
			return fmt.Errorf("a sync is already running (run %s, started %s); cancel it or wait",
				sie.RunID, sie.StartedAt.Format("2006-01-02 15:04:05"))
		}
	}
	if err != nil {
		return err
	}

	a.log.Info("sync started",
		zap.String("run_id", st.RunID),
		zap.Strings("indexables", st.Indexables),
		zap.Int("page_size", st.PageSize),
		zap.Int("site_count", st.SiteCount),
		zap.Bool("setup", st.PutMapping),
	)

	runErr := a.indexer.Run(ctx, st)

	fmt.Printf("Status:  %s\n", st.Status)
	fmt.Printf("Synced:  %d\n", st.Synced)
	fmt.Printf("Failed:  %d\n", st.Failed)
	fmt.Printf("Skipped: %d\n", st.Skipped)
	if flags.showBulkErrors && len(st.Errors) > 0 {
		fmt.Println("Errors:")
		for _, e := range st.Errors {
			fmt.Printf("  %dx %s\n", e.Count, e.Message)
		}
	}

	if runErr != nil {
		return fmt.Errorf("sync failed: %w", runErr)
	}
	if st.Status == syncstate.StatusFailed {
		return fmt.Errorf("sync finished with status %s", st.Status)
	}
	return nil
}
