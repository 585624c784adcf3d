// Package predictcmder provides the predict command for asking a running
// chronicle server to forecast an outcome from historical trajectories.
package predictcmder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/chronicle/pkg/cliui"
	"github.com/papercomputeco/chronicle/pkg/config"
	"github.com/papercomputeco/chronicle/pkg/trajectory"
	"github.com/papercomputeco/chronicle/pkg/utils"
)

var predictFlags = config.FlagSet{
	config.FlagAPITarget: {Name: "api-target", Shorthand: "a", ViperKey: "client.api_target", Description: "Chronicle API server URL"},
}

type predictCommander struct {
	apiTarget string
	v         *viper.Viper

	entityType     string
	environment    string
	emotionalState string
	stakes         string
	intent         string
	k              int
}

const predictLongDesc string = `Predict the outcome of a described action.

Sends the description and any structured context to a running chronicle
server, which matches it against historical trajectories and returns a
predicted result with a confidence score.

Examples:
  chronicle predict "charge the enemy line"
  chronicle predict --entity-type battle --stakes high "charge the enemy line"
  chronicle predict -k 10 "negotiate a truce"`

const predictShortDesc string = "Predict an outcome from historical trajectories"

func NewPredictCmd() *cobra.Command {
	cmder := &predictCommander{}

	cmd := &cobra.Command{
		Use:   "predict <text>",
		Short: predictShortDesc,
		Long:  predictLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			var err error
			cmder.v, err = config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(cmder.v, cmd, predictFlags, []string{config.FlagAPITarget})
			return nil
		},
		RunE: func(_ *cobra.Command, args []string) error {
			return cmder.run(args[0])
		},
	}

	config.AddStringFlag(cmd, predictFlags, config.FlagAPITarget, &cmder.apiTarget)

	cmd.Flags().StringVar(&cmder.entityType, "entity-type", "", "Entity type of the action being predicted")
	cmd.Flags().StringVar(&cmder.environment, "environment", "", "Domain or arena the action happens in")
	cmd.Flags().StringVar(&cmder.emotionalState, "emotional-state", "", "The actor's disposition")
	cmd.Flags().StringVar(&cmder.stakes, "stakes", "", "What is riding on the outcome")
	cmd.Flags().StringVar(&cmder.intent, "intent", "", "What the actor is trying to achieve")
	cmd.Flags().IntVarP(&cmder.k, "matches", "k", 5, "Number of historical matches to consider")

	return cmd
}

type predictRequest struct {
	Context trajectory.Context `json:"context"`
	Text    string             `json:"text"`
	K       int                `json:"k"`
}

func (c *predictCommander) run(text string) error {
	target := c.v.GetString("client.api_target")

	body, err := json.Marshal(predictRequest{
		Context: trajectory.Context{
			Environment:    c.environment,
			EmotionalState: c.emotionalState,
			Stakes:         c.stakes,
			EntityType:     c.entityType,
			Intent:         c.intent,
		},
		Text: text,
		K:    c.k,
	})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(target+"/predict", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("reaching chronicle server at %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := struct {
			Error string `json:"error"`
		}{}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errBody); decodeErr == nil && errBody.Error != "" {
			return fmt.Errorf("chronicle server: %s", errBody.Error)
		}
		return fmt.Errorf("chronicle server returned %s", resp.Status)
	}

	outcome := trajectory.Outcome{}
	if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
		return fmt.Errorf("decoding prediction: %w", err)
	}

	fmt.Printf("\n  %s %s\n", cliui.KeyStyle.Render("Predicted result:"), cliui.ValueStyle.Render(string(outcome.Result)))
	fmt.Printf("  %s %.0f%%\n", cliui.KeyStyle.Render("Confidence:"), outcome.Confidence*100)
	fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("Reasoning:"), outcome.Reasoning)
	if len(outcome.MatchedIDs) > 0 {
		short := make([]string, len(outcome.MatchedIDs))
		for i, id := range outcome.MatchedIDs {
			short[i] = utils.Truncate(id, 12)
		}
		fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("Matched:"), cliui.DimStyle.Render(strings.Join(short, ", ")))
	}
	fmt.Println()

	return nil
}
