package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/contentdex/contentdex/internal/domain"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the state of the current or most recent sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

func runStatus() error {
	a, err := newApp(indexerOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.tracker.Current(context.Background())
	if errors.Is(err, domain.ErrNoActiveSync) {
		fmt.Println("no sync has been run")
		return nil
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}
