package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var titleCmd = &cobra.Command{
	Use:   "title [prompt]",
	Short: "Generate a short conversation title for a prompt",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(appConfig)
		if err != nil {
			return err
		}
		defer a.close()

		title := a.engine.Title(cmd.Context(), strings.Join(args, " "), a.cfg.APIKey)
		fmt.Fprintln(cmd.OutOrStdout(), title)
		return nil
	},
}
