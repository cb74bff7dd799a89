package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe every configured adapter and print status",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			statuses := make([]any, 0, len(rt.adapters))
			for _, a := range rt.adapters {
				statuses = append(statuses, a.Health())
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(statuses)
		},
	}
}
