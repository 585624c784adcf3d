package ledgercmder

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chronicle/cmd/chronicle/sqlitepath"
	"github.com/papercomputeco/chronicle/pkg/cliui"
	"github.com/papercomputeco/chronicle/pkg/ledger"
	"github.com/papercomputeco/chronicle/pkg/ledger/sqlite"
)

type importCommander struct {
	sqlitePath string
	configDir  string
}

const importLongDesc string = `Import newline-delimited JSON records into the ledger.

Every line goes through the same validation and duplicate detection as
a live append: invalid records and duplicates are counted and skipped.
Reads from the given file, or stdin when no file is given.

Examples:
  chronicle import records.ndjson
  cat records.ndjson | chronicle import
  chronicle import --sqlite /path/to/chronicle.sqlite records.ndjson`

const importShortDesc string = "Import newline-delimited JSON records"

func NewImportCmd() *cobra.Command {
	cmder := &importCommander{}

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: importShortDesc,
		Long:  importLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			input := ""
			if len(args) == 1 {
				input = args[0]
			}
			return cmder.run(input)
		},
	}

	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to the SQLite ledger database")

	return cmd
}

func (c *importCommander) run(input string) error {
	path, err := sqlitepath.ResolveOrDefault(c.sqlitePath, c.configDir)
	if err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	if input != "" {
		f, err := os.Open(input)
		if err != nil {
			return fmt.Errorf("opening import file: %w", err)
		}
		defer f.Close()
		in = f
	}

	led, err := sqlite.New(path)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer led.Close()

	var summary *ledger.ImportSummary
	err = cliui.Step(os.Stderr, fmt.Sprintf("Importing into %s", path), func() error {
		var stepErr error
		summary, stepErr = ledger.Import(context.Background(), led, in)
		return stepErr
	})
	if err != nil {
		return err
	}

	fmt.Printf("\n  %s %d\n  %s %d\n  %s %d\n\n",
		cliui.KeyStyle.Render("Imported:"), summary.Imported,
		cliui.KeyStyle.Render("Duplicates:"), summary.Duplicates,
		cliui.KeyStyle.Render("Invalid:"), summary.Invalid,
	)
	return nil
}
