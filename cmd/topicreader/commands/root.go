// Package commands implements the topicreader CLI.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command with all subcommands registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "topicreader",
		Short: "Summarize Discord threads with OpenAI",
		Long: `topicreader reads a Discord thread, asks OpenAI for a structured summary
(title, summary, keywords, category) and saves it locally and, when
configured, to PostgreSQL.

Examples:
  topicreader channels
  topicreader threads 123456789012345678
  topicreader summarize https://discord.com/channels/1/2
  topicreader serve
  topicreader bot`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newChannelsCmd(),
		newThreadsCmd(),
		newSummarizeCmd(),
		newShowCmd(),
		newPromptCmd(),
		newServeCmd(),
		newBotCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "config.yaml", "path to the config file")
	rootCmd.PersistentFlags().String("env-file", ".env", "path to a .env file loaded before the config")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}
