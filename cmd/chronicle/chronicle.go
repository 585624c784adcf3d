// Package chroniclecmder
package chroniclecmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/chronicle/cmd/chronicle/config"
	keygencmder "github.com/papercomputeco/chronicle/cmd/chronicle/keygen"
	ledgercmder "github.com/papercomputeco/chronicle/cmd/chronicle/ledger"
	predictcmder "github.com/papercomputeco/chronicle/cmd/chronicle/predict"
	servecmder "github.com/papercomputeco/chronicle/cmd/chronicle/serve"
	statscmder "github.com/papercomputeco/chronicle/cmd/chronicle/stats"
	versioncmder "github.com/papercomputeco/chronicle/cmd/version"
)

const chronicleLongDesc string = `Chronicle is an immutable, content-addressed record ledger with
trajectory-matching outcome prediction.

Record actions as they happen:
  chronicle serve           Run the API server
  chronicle stats           Show ledger aggregates
  chronicle predict         Predict the outcome of a new action

Move ledgers around:
  chronicle export          Dump the ledger as newline-delimited JSON
  chronicle import          Load records through the append path

Sign what you record:
  chronicle keygen          Generate and persist a signing key`

const chronicleShortDesc string = "Chronicle - action ledger with outcome prediction"

func NewChronicleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chronicle",
		Short: chronicleShortDesc,
		Long:  chronicleLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .chronicle/ directory location")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(statscmder.NewStatsCmd())
	cmd.AddCommand(ledgercmder.NewExportCmd())
	cmd.AddCommand(ledgercmder.NewImportCmd())
	cmd.AddCommand(keygencmder.NewKeygenCmd())
	cmd.AddCommand(predictcmder.NewPredictCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
