package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xaenox/topic-reader/internal/models"
	"github.com/xaenox/topic-reader/internal/pipeline"
	"github.com/xaenox/topic-reader/internal/storage"
	"github.com/xaenox/topic-reader/internal/threadurl"
)

func newSummarizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize <url|threadID>",
		Short: "Generate and save the summary of a thread",
		Long: `Fetch every message of a thread, ask for confirmation, generate a summary
and save it. A thread that already has a summary is shown instead unless
--force is given.

Examples:
  topicreader summarize https://discord.com/channels/1/2
  topicreader summarize 123456789012345678 --channel 987654321098765432 --yes`,
		Args: cobra.ExactArgs(1),
		RunE: runSummarize,
	}

	cmd.Flags().String("channel", "", "parent channel ID (thread IDs only)")
	cmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
	cmd.Flags().Bool("force", false, "regenerate even if a summary exists")
	return cmd
}

func runSummarize(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	yes, _ := cmd.Flags().GetBool("yes")
	force, _ := cmd.Flags().GetBool("force")
	channelID, _ := cmd.Flags().GetString("channel")

	var confirm pipeline.ConfirmFunc
	if !yes {
		confirm = promptConfirm(cmd.InOrStdin(), cmd.OutOrStdout())
	}

	var result *pipeline.Result
	if threadurl.IsLink(args[0]) && !force {
		result, err = a.service.SummarizeURL(cmd.Context(), args[0], confirm)
	} else {
		threadID := args[0]
		if target, ok := threadurl.Extract(threadID); ok {
			threadID = target.ThreadID
		}
		result, err = a.service.Summarize(cmd.Context(), pipeline.Request{
			ThreadID:  threadID,
			ChannelID: channelID,
			Force:     force,
		}, confirm)
	}
	if errors.Is(err, pipeline.ErrDeclined) {
		fmt.Fprintln(cmd.OutOrStdout(), "Cancelled, no summary was generated.")
		return nil
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if result.Existing {
		fmt.Fprintln(out, "This thread was already summarized (use --force to regenerate).")
		fmt.Fprintln(out)
	}
	printSummary(out, result.Summary)
	if !result.Existing {
		printSaveResult(out, result.Save)
	}
	return nil
}

func promptConfirm(in io.Reader, out io.Writer) pipeline.ConfirmFunc {
	reader := bufio.NewReader(in)
	return func(_ context.Context, p pipeline.Preview) (bool, error) {
		name := p.ThreadName
		if name == "" {
			name = p.ThreadID
		}
		fmt.Fprintf(out, "Thread %q has %d messages. Send them to OpenAI and generate a summary? [y/N] ", name, p.MessageCount)
		answer, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, err
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes", nil
	}
}

func printSummary(out io.Writer, s *models.Summary) {
	fmt.Fprintf(out, "%s\n", s.Title)
	fmt.Fprintf(out, "Category: %s\n", s.Category)
	if len(s.Keywords) > 0 {
		fmt.Fprintf(out, "Keywords: %s\n", strings.Join(s.Keywords, ", "))
	}
	if s.ChannelName != "" || s.ThreadName != "" {
		fmt.Fprintf(out, "Thread:   #%s / %s\n", s.ChannelName, s.ThreadName)
	}
	fmt.Fprintf(out, "\n%s\n", s.Summary)
	if len(s.Attachments) > 0 {
		fmt.Fprintln(out, "\nAttachments:")
		for _, att := range s.Attachments {
			fmt.Fprintf(out, "  - %s (%s)\n", att.Filename, att.URL)
		}
	}
	fmt.Fprintf(out, "\nID: %s\n", s.ID)
}

func printSaveResult(out io.Writer, r storage.SaveResult) {
	if r.BackendSaved {
		fmt.Fprintln(out, "Saved locally and to PostgreSQL.")
		return
	}
	fmt.Fprintf(out, "Saved locally only: %s\n", r.Error)
}
