// Package keygencmder provides the keygen command for generating the
// ed25519 signing key stored in the .chronicle/ directory.
package keygencmder

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chronicle/pkg/cliui"
	"github.com/papercomputeco/chronicle/pkg/dotdir"
	"github.com/papercomputeco/chronicle/pkg/record"
)

type keygenCommander struct {
	force bool
}

const keygenLongDesc string = `Generate an ed25519 signing keypair.

The keypair is stored as key.json in the .chronicle/ directory and used
by the server to sign unsigned records on append when signing.enabled
is set. An existing key is never overwritten unless --force is given.

Examples:
  chronicle keygen
  chronicle keygen --force
  chronicle config set signing.enabled true`

const keygenShortDesc string = "Generate an ed25519 signing keypair"

func NewKeygenCmd() *cobra.Command {
	cmder := &keygenCommander{}

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: keygenShortDesc,
		Long:  keygenLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.run(configDir)
		},
	}

	cmd.Flags().BoolVarP(&cmder.force, "force", "f", false, "Overwrite an existing key")

	return cmd
}

func (c *keygenCommander) run(configDir string) error {
	ddm := dotdir.NewManager()

	existing, err := ddm.LoadKeyState(configDir)
	if err != nil {
		return fmt.Errorf("checking for existing key: %w", err)
	}
	if existing != nil && !c.force {
		return fmt.Errorf("a signing key already exists; pass --force to replace it")
	}

	priv, pub, err := record.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("generating keypair: %w", err)
	}

	state := dotdir.NewKeyState(priv, pub)
	if err := ddm.SaveKeyState(state, configDir); err != nil {
		return fmt.Errorf("saving keypair: %w", err)
	}

	target, err := ddm.Target(configDir)
	if err != nil {
		return err
	}

	fmt.Printf("\n  %s Generated %s signing key\n\n", cliui.SuccessMark, state.Algorithm)
	fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("Public key:"), cliui.ValueStyle.Render(hex.EncodeToString(pub)))
	fmt.Printf("  %s %s\n\n", cliui.KeyStyle.Render("Stored in:"), cliui.DimStyle.Render(target))

	return nil
}
