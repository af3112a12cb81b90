package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/contentdex/contentdex/internal/domain"
)

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the running or paused sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCancel()
		},
	}
}

func runCancel() error {
	a, err := newApp(indexerOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.tracker.Cancel(context.Background())
	if errors.Is(err, domain.ErrNoActiveSync) {
		fmt.Println("no sync to cancel")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("sync %s cancelled (synced %d, failed %d)\n", st.RunID, st.Synced, st.Failed)
	return nil
}
