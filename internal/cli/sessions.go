package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// NewSessionsCommand creates the sessions command.
func NewSessionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List the session journal",
		Long: `List every provisioning session recorded in the site database, committed
or rolled back, in the order they finished.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, rootOpts)
			if err != nil {
				return err
			}
			st, err := e.openStore(false)
			if err != nil {
				return err
			}
			defer e.closeStore(st)

			sessions, err := st.Sessions(commandContext(cmd))
			if err != nil {
				return e.out.fail(ExitCommandError, ErrCodeStore, "failed to read sessions", err, nil)
			}
			if e.out.JSON() {
				return e.out.Success(sessions)
			}

			tw := tabwriter.NewWriter(e.out.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tCREATED\tUPDATED\tSEQ\tFINISHED")
			for _, s := range sessions {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d-%d\t%s\n",
					s.ID, s.Status, s.Created, s.Updated, s.SeqStart, s.SeqEnd,
					s.FinishedAt.UTC().Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}
