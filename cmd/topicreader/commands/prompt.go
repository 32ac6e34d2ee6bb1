package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xaenox/topic-reader/internal/models"
	"github.com/xaenox/topic-reader/internal/prompt"
	"github.com/xaenox/topic-reader/internal/storage"
)

func newPromptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Manage the summary prompt template",
		Long: `The template may use {{channelName}}, {{threadName}} and {{messagesText}}.
Without a saved template the built-in default is used.`,
	}
	cmd.PersistentFlags().String("key", models.DefaultPromptKey, "prompt key")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Print the saved prompt, or the default one",
			Args:  cobra.NoArgs,
			RunE:  runPromptGet,
		},
		&cobra.Command{
			Use:   "set <file|->",
			Short: "Save a prompt template read from a file or stdin",
			Args:  cobra.ExactArgs(1),
			RunE:  runPromptSet,
		},
		&cobra.Command{
			Use:   "delete",
			Short: "Delete the saved prompt and fall back to the default",
			Args:  cobra.NoArgs,
			RunE:  runPromptDelete,
		},
	)
	return cmd
}

func runPromptGet(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	key, _ := cmd.Flags().GetString("key")
	p, err := a.local.GetPrompt(cmd.Context(), key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fmt.Fprintln(cmd.ErrOrStderr(), "(no saved prompt, showing the default)")
		fmt.Fprintln(cmd.OutOrStdout(), prompt.DefaultTemplate)
		return nil
	case err != nil:
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), p.Prompt)
	return nil
}

func runPromptSet(cmd *cobra.Command, args []string) error {
	var body []byte
	var err error
	if args[0] == "-" {
		body, err = io.ReadAll(cmd.InOrStdin())
	} else {
		body, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read prompt: %w", err)
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return errors.New("prompt content is required")
	}
	if !strings.Contains(text, prompt.MessagesTextToken) {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: the prompt has no %s placeholder, so no messages will be sent\n", prompt.MessagesTextToken)
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	key, _ := cmd.Flags().GetString("key")
	saved, err := a.local.SavePrompt(cmd.Context(), &models.Prompt{Key: key, Prompt: text})
	if err != nil {
		return err
	}
	if a.remote != nil {
		if _, err := a.remote.SavePrompt(cmd.Context(), &models.Prompt{Key: key, Prompt: text}); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: prompt not saved to PostgreSQL: %v\n", err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved prompt %q (%d characters).\n", saved.Key, len(saved.Prompt))
	return nil
}

func runPromptDelete(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	key, _ := cmd.Flags().GetString("key")
	if err := a.local.DeletePrompt(cmd.Context(), key); err != nil {
		return err
	}
	if a.remote != nil {
		if err := a.remote.DeletePrompt(cmd.Context(), key); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: prompt not deleted from PostgreSQL: %v\n", err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted prompt %q.\n", key)
	return nil
}
