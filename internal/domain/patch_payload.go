package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RuleUpdate replaces the content of an existing rule
type RuleUpdate struct {
	RuleID  string `json:"ruleId"`
	Content string `json:"content"`
}

// StandardChanges is the change set of an UPDATE_STANDARD patch
type StandardChanges struct {
	Name           *string         `json:"name,omitempty"`
	Description    *string         `json:"description,omitempty"`
	RulesToAdd     []string        `json:"rulesToAdd,omitempty"`
	RulesToUpdate  []RuleUpdate    `json:"rulesToUpdate,omitempty"`
	RulesToDelete  []string        `json:"rulesToDelete,omitempty"`
	ExampleChanges json.RawMessage `json:"exampleChanges,omitempty"`
}

// UpdateStandardPayload is the payload written for UPDATE_STANDARD proposals
type UpdateStandardPayload struct {
	StandardID string          `json:"standardId"`
	Changes    StandardChanges `json:"changes"`
	Rationale  string          `json:"rationale"`
}

// NewStandardPayload is the payload written for NEW_STANDARD proposals
type NewStandardPayload struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Rules       []string `json:"rules"`
	Scope       string   `json:"scope"`
	Rationale   string   `json:"rationale"`
}

// RecipeAction is the kind of recipe change proposed
type RecipeAction string

const (
	RecipeActionAddSteps    RecipeAction = "addSteps"
	RecipeActionUpdateSteps RecipeAction = "updateSteps"
)

// UpdateRecipePayload is the payload written for UPDATE_RECIPE proposals
type UpdateRecipePayload struct {
	RecipeID  string       `json:"recipeId"`
	Action    RecipeAction `json:"action"`
	Content   string       `json:"content"`
	Rationale string       `json:"rationale"`
}

// NewRecipePayload is the payload written for NEW_RECIPE proposals
type NewRecipePayload struct {
	Name      string `json:"name"`
	Content   string `json:"content"`
	Rationale string `json:"rationale"`
}

// PayloadForm names which UPDATE_STANDARD shape a stored payload used
type PayloadForm string

const (
	PayloadFormChanges PayloadForm = "changes"
	PayloadFormRules   PayloadForm = "rules"
	PayloadFormLegacy  PayloadForm = "legacy"
)

// Legacy single-rule actions
const (
	LegacyActionAddRule    = "addRule"
	LegacyActionUpdateRule = "updateRule"
)

// StandardUpdate is an UPDATE_STANDARD payload normalised into one change
// set, whichever shape it was stored in.
type StandardUpdate struct {
	StandardID string
	Form       PayloadForm
	Changes    StandardChanges
	Rationale  string
}

type standardUpdateWire struct {
	StandardID   string           `json:"standardId"`
	Changes      *StandardChanges `json:"changes"`
	Rules        *distilledRules  `json:"rules"`
	Description  *string          `json:"description"`
	Action       string           `json:"action"`
	TargetRuleID string           `json:"targetRuleId"`
	Content      string           `json:"content"`
	Rationale    string           `json:"rationale"`
}

type distilledRules struct {
	ToKeep []string `json:"toKeep"`
	ToAdd  []struct {
		Content string `json:"content"`
	} `json:"toAdd"`
	ToUpdate []struct {
		RuleID     string `json:"ruleId"`
		NewContent string `json:"newContent"`
	} `json:"toUpdate"`
	ToDelete []string `json:"toDelete"`
}

// DecodeStandardUpdate resolves a stored UPDATE_STANDARD payload. The
// shape is selected by the presence of "changes", then "rules", then
// "action".
func DecodeStandardUpdate(raw json.RawMessage) (*StandardUpdate, error) {
	var wire standardUpdateWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, NewDomainErrorWithCause(ErrCodeValidation, ErrMalformedPatchPayload.Message, err)
	}
	if wire.StandardID == "" {
		return nil, NewDomainError(ErrCodeValidation, "standardId is required")
	}

	update := &StandardUpdate{StandardID: wire.StandardID, Rationale: wire.Rationale}

	switch {
	case wire.Changes != nil:
		update.Form = PayloadFormChanges
		update.Changes = *wire.Changes
	case wire.Rules != nil:
		update.Form = PayloadFormRules
		for _, add := range wire.Rules.ToAdd {
			update.Changes.RulesToAdd = append(update.Changes.RulesToAdd, add.Content)
		}
		for _, upd := range wire.Rules.ToUpdate {
			update.Changes.RulesToUpdate = append(update.Changes.RulesToUpdate, RuleUpdate{RuleID: upd.RuleID, Content: upd.NewContent})
		}
		update.Changes.RulesToDelete = wire.Rules.ToDelete
		update.Changes.Description = wire.Description
	case wire.Action != "":
		update.Form = PayloadFormLegacy
		switch wire.Action {
		case LegacyActionAddRule:
			update.Changes.RulesToAdd = []string{wire.Content}
		case LegacyActionUpdateRule:
			if wire.TargetRuleID == "" {
				return nil, ErrTargetRuleIDRequired
			}
			update.Changes.RulesToUpdate = []RuleUpdate{{RuleID: wire.TargetRuleID, Content: wire.Content}}
		default:
			return nil, NewDomainError(ErrCodeValidation, fmt.Sprintf("unknown legacy action %q", wire.Action))
		}
	default:
		return nil, ErrMalformedPatchPayload
	}

	for _, content := range update.Changes.RulesToAdd {
		if strings.TrimSpace(content) == "" {
			return nil, NewDomainError(ErrCodeValidation, "rule content cannot be empty")
		}
	}
	for _, upd := range update.Changes.RulesToUpdate {
		if upd.RuleID == "" {
			return nil, ErrTargetRuleIDRequired
		}
	}

	return update, nil
}
