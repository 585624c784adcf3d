// Package trajectory predicts likely outcomes for a new situation by
// finding and aggregating similar historical records.
package trajectory

import (
	"strings"

	"github.com/papercomputeco/chronicle/pkg/record"
)

// Context is the structured situation description used for matching.
// Every field is optional; absent fields are simply excluded from
// comparison.
type Context struct {
	// Environment is the domain or arena the action happens in.
	Environment string `json:"environment,omitempty"`

	// EmotionalState describes the actor's disposition.
	EmotionalState string `json:"emotional_state,omitempty"`

	// Stakes describes what is riding on the outcome.
	Stakes string `json:"stakes,omitempty"`

	// EntityType mirrors the record entity type being predicted.
	EntityType string `json:"entity_type,omitempty"`

	// Intent is what the actor is trying to achieve.
	Intent string `json:"intent,omitempty"`

	// PreviousActions lists the actions leading up to this situation.
	PreviousActions []string `json:"previous_actions,omitempty"`
}

// Comparison weights per field. Normalization uses only the weights of
// fields present on both sides, so a sparse context is not penalized for
// what it never claimed.
const (
	environmentWeight = 0.3
	emotionalWeight   = 0.2
	stakesWeight      = 0.2
	entityTypeWeight  = 0.3
	intentWeight      = 0.2
	prevActionsWeight = 0.1
)

// Compare returns the weighted agreement of two contexts in [0, 1].
// Fields missing on either side contribute to neither numerator nor
// denominator; two contexts with no shared fields compare as 0.
func Compare(a, b Context) float64 {
	var agreement, total float64

	field := func(x, y string, weight float64) {
		if x == "" || y == "" {
			return
		}
		total += weight
		if strings.EqualFold(x, y) {
			agreement += weight
		}
	}

	field(a.Environment, b.Environment, environmentWeight)
	field(a.EmotionalState, b.EmotionalState, emotionalWeight)
	field(a.Stakes, b.Stakes, stakesWeight)
	field(a.EntityType, b.EntityType, entityTypeWeight)
	field(a.Intent, b.Intent, intentWeight)

	if len(a.PreviousActions) > 0 && len(b.PreviousActions) > 0 {
		total += prevActionsWeight
		agreement += prevActionsWeight * jaccard(a.PreviousActions, b.PreviousActions)
	}

	if total == 0 {
		return 0
	}
	return agreement / total
}

// jaccard is intersection over union of two action sets, case-insensitive.
func jaccard(a, b []string) float64 {
	setA := make(map[string]bool, len(a))
	for _, s := range a {
		setA[strings.ToLower(s)] = true
	}
	setB := make(map[string]bool, len(b))
	for _, s := range b {
		setB[strings.ToLower(s)] = true
	}

	intersection := 0
	for s := range setA {
		if setB[s] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// ContextFromRecord derives a comparable context from a stored record. The
// structured fields live under a "context" key in payload or input; entity
// type always comes from the record itself.
func ContextFromRecord(rec *record.Record) Context {
	ctx := Context{EntityType: rec.EntityType}

	raw, ok := rec.Payload["context"].(map[string]any)
	if !ok {
		raw, ok = rec.Input["context"].(map[string]any)
	}
	if !ok {
		return ctx
	}

	if v, ok := raw["environment"].(string); ok {
		ctx.Environment = v
	}
	if v, ok := raw["emotional_state"].(string); ok {
		ctx.EmotionalState = v
	}
	if v, ok := raw["stakes"].(string); ok {
		ctx.Stakes = v
	}
	if v, ok := raw["intent"].(string); ok {
		ctx.Intent = v
	}
	if actions, ok := raw["previous_actions"].([]any); ok {
		for _, a := range actions {
			if s, ok := a.(string); ok {
				ctx.PreviousActions = append(ctx.PreviousActions, s)
			}
		}
	}

	return ctx
}
