package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newChannelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "List the text channels the bot can read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			guildID, _ := cmd.Flags().GetString("guild")
			if guildID == "" {
				guildID = a.cfg.Discord.GuildID
			}

			channels, err := a.service.ListChannels(cmd.Context(), guildID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tGUILD")
			for _, ch := range channels {
				fmt.Fprintf(w, "%s\t#%s\t%s\n", ch.ID, ch.Name, ch.GuildID)
			}
			return w.Flush()
		},
	}

	cmd.Flags().String("guild", "", "only list channels of this guild")
	return cmd
}

func newThreadsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "threads <channelID>",
		Short: "List active and archived threads of a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			threads, err := a.service.ListThreads(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tMESSAGES\tLAST ACTIVITY")
			for _, th := range threads {
				last := "-"
				if th.LastActivity != nil {
					last = th.LastActivity.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", th.ID, th.Name, th.MessageCount, last)
			}
			return w.Flush()
		},
	}
}
