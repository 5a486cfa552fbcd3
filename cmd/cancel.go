package cmd

import (
	"github.com/spf13/cobra"

	"github.com/projecteru2/cocoon/daemon"
)

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel OP_ID",
		Short: "cancel a running operation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := daemon.New(conf)
			if err != nil {
				return err
			}
			defer d.Close() //nolint:errcheck

			resp, err := d.Cancel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
}
