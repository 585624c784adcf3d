// Package ledgercmder provides the export and import commands for moving
// ledger contents as newline-delimited canonical JSON.
package ledgercmder

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chronicle/cmd/chronicle/sqlitepath"
	"github.com/papercomputeco/chronicle/pkg/ledger"
	"github.com/papercomputeco/chronicle/pkg/ledger/sqlite"
)

type exportCommander struct {
	sqlitePath string
	output     string
}

const exportLongDesc string = `Export the ledger as newline-delimited canonical JSON.

Each line is one record in its canonical serialized form, insertion
order preserved. Writes to stdout unless --output is given.

Examples:
  chronicle export > records.ndjson
  chronicle export --output records.ndjson
  chronicle export --sqlite /path/to/chronicle.sqlite`

const exportShortDesc string = "Export the ledger as newline-delimited JSON"

func NewExportCmd() *cobra.Command {
	cmder := &exportCommander{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: exportShortDesc,
		Long:  exportLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmder.run()
		},
	}

	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to the SQLite ledger database")
	cmd.Flags().StringVarP(&cmder.output, "output", "o", "", "File to write instead of stdout")

	return cmd
}

func (c *exportCommander) run() error {
	path, err := sqlitepath.Resolve(c.sqlitePath)
	if err != nil {
		return err
	}

	led, err := sqlite.New(path)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer led.Close()

	out := os.Stdout
	if c.output != "" {
		f, err := os.Create(c.output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	n, err := ledger.Export(context.Background(), led, out)
	if err != nil {
		return err
	}

	if c.output != "" {
		fmt.Fprintf(os.Stderr, "exported %d records to %s\n", n, c.output)
	}
	return nil
}
