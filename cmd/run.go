package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/projecteru2/cocoon/daemon"
	"github.com/projecteru2/cocoon/reqctx"
	"github.com/projecteru2/cocoon/types"
)

func runCmd() *cobra.Command {
	var gitURL, gitRef string

	cmd := &cobra.Command{
		Use:   "run OP_ID VERB [ARGS...]",
		Short: "submit an operation and wait for its terminal result",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, cliArgs []string) error {
			d, err := daemon.New(conf)
			if err != nil {
				return err
			}
			defer d.Close() //nolint:errcheck

			src := types.Source{Kind: types.SourceLocal}
			if gitURL != "" {
				src = types.Source{Kind: types.SourceGit, URL: gitURL, Ref: gitRef}
			}

			ctx := reqctx.WithSession(reqctx.WithActor(cmd.Context(), conf.DefaultActor), conf.DefaultSession)
			resp, err := d.Submit(ctx, cliArgs[0], types.Verb(cliArgs[1]), cliArgs[2:], src)
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}

	cmd.Flags().StringVar(&gitURL, "git-url", "", "clone this git repository as the operation's source")
	cmd.Flags().StringVar(&gitRef, "git-ref", "", "git ref to check out (requires --git-url)")
	return cmd
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
