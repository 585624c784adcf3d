// Package statscmder provides the stats command for showing ledger aggregates
// from a running chronicle server.
package statscmder

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/chronicle/pkg/cliui"
	"github.com/papercomputeco/chronicle/pkg/config"
	"github.com/papercomputeco/chronicle/pkg/ledger"
)

var statsFlags = config.FlagSet{
	config.FlagAPITarget: {Name: "api-target", Shorthand: "a", ViperKey: "client.api_target", Description: "Chronicle API server URL"},
}

type statsCommander struct {
	apiTarget string
	v         *viper.Viper
}

const statsLongDesc string = `Show aggregates over the chronicle ledger.

Queries a running chronicle server for record totals broken down by
entity type and lifecycle state.`

const statsShortDesc string = "Show ledger aggregates"

func NewStatsCmd() *cobra.Command {
	cmder := &statsCommander{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: statsShortDesc,
		Long:  statsLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			var err error
			cmder.v, err = config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(cmder.v, cmd, statsFlags, []string{config.FlagAPITarget})
			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, statsFlags, config.FlagAPITarget, &cmder.apiTarget)

	return cmd
}

func (c *statsCommander) run() error {
	target := c.v.GetString("client.api_target")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(target + "/stats")
	if err != nil {
		return fmt.Errorf("reaching chronicle server at %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chronicle server returned %s", resp.Status)
	}

	stats := ledger.Stats{}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return fmt.Errorf("decoding stats: %w", err)
	}

	fmt.Printf("\n  %s %d\n\n", cliui.KeyStyle.Render("Total records:"), stats.Total)

	printBreakdown("By entity type", stats.ByEntityType)
	printBreakdown("By status", stats.ByStatus)

	return nil
}

func printBreakdown(title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("  %s\n", cliui.KeyStyle.Render(title))
	for _, k := range keys {
		fmt.Printf("    %s %d\n", cliui.DimStyle.Render(k+":"), counts[k])
	}
	fmt.Println()
}
