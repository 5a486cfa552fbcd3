package cmd

import (
	"github.com/spf13/cobra"

	"github.com/projecteru2/cocoon/daemon"
)

func housekeepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "housekeep",
		Short: "run zombie recovery and sandbox pruning once, then exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := daemon.New(conf)
			if err != nil {
				return err
			}
			defer d.Close() //nolint:errcheck

			return d.RunHousekeeping(cmd.Context())
		},
	}
}
