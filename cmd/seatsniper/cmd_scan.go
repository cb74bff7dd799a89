package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newScanCmd() *cobra.Command {
	var (
		city       string
		sampleSize int
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "One-shot scan of a city across all marketplaces",
		Long: `Searches every configured adapter for upcoming events in a city and
samples listings from the soonest few. Bounded by a 45 second deadline;
adapter failures are reported but never abort the scan.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if city == "" {
				return fmt.Errorf("--city is required")
			}

			rt, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			if sampleSize <= 0 {
				sampleSize = rt.cfg.Monitor.ScanSampleSize
			}
			result := rt.scheduler.Scan(cmd.Context(), city, sampleSize)

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			fmt.Printf("%d events found in %s\n", len(result.Events), city)
			for adapter, msg := range result.Errors {
				fmt.Printf("  ! %s: %s\n", adapter, msg)
			}
			for _, event := range result.Events {
				fmt.Printf("  %s  %-10s  %s @ %s\n",
					event.DateTime.Format("2006-01-02 15:04"),
					event.Platform, event.Name, event.Venue.Name)
			}
			for _, sampled := range result.Sampled {
				fmt.Printf("\n%s — top listings:\n", sampled.Event.Name)
				for _, pick := range sampled.Picks {
					l := pick.Listing
					row := ""
					if l.Row != "" {
						row = " row " + l.Row
					}
					fmt.Printf("  %-20s %3d pts  $%.0f/ea x%d  (%s)\n",
						l.Section+row, pick.Score.TotalScore, l.PricePerTicket,
						l.Quantity, strings.ReplaceAll(string(pick.Score.Recommendation), "_", " "))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&city, "city", "", "city to scan")
	cmd.Flags().IntVar(&sampleSize, "sample", 0, "events to sample listings from (default 3)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON")
	return cmd
}
