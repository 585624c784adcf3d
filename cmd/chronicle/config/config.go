// Package configcmder provides the config command for managing persistent
// chronicle configuration stored in the .chronicle/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent chronicle configuration.

Configuration is stored as config.toml in the .chronicle/ directory and
provides default values for command flags. CLI flags always take
precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  storage.backend, storage.sqlite_path, storage.postgres_url,
  api.listen, client.api_target,
  index.m, index.ef_construction, index.ef_search,
  signing.enabled,
  events.enabled, events.brokers, events.topic

Use subcommands to get, set, or list configuration values:
  chronicle config set <key> <value>    Set a configuration value
  chronicle config get <key>            Get a configuration value
  chronicle config list                 List all configuration values

Examples:
  chronicle config set storage.backend sqlite
  chronicle config set signing.enabled true
  chronicle config get api.listen
  chronicle config list`

const configShortDesc string = "Manage persistent chronicle configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
