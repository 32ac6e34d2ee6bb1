package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xaenox/topic-reader/internal/storage"
	"github.com/xaenox/topic-reader/internal/threadurl"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <threadID|url>",
		Short: "Show the saved summary of a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			threadID := args[0]
			if target, ok := threadurl.Extract(threadID); ok {
				threadID = target.ThreadID
			}

			summary, err := a.service.GetSummaryByThread(cmd.Context(), threadID)
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("no saved summary for thread %s", threadID)
			}
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}
}
