package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions [session-id]",
	Short: "List conversation sessions or show one",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := setup(ctx)
		defer a.Close()

		var (
			out any
			err error
		)
		if len(args) == 1 {
			out, err = a.service.Session(ctx, args[0])
		} else {
			out, err = a.service.Sessions(ctx)
		}
		if err != nil {
			fail(a.logger, "reading sessions", err)
		}

		if err := printJSON(out); err != nil {
			a.logger.Fatal("writing output", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}
