package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloo-solutions/learnings/internal/domain"
)

var (
	errAICallFailed     = errors.New("completion call failed")
	errUnusableAIOutput = errors.New("unusable completion output")
)

// aiOutput is a typed completion answer that can check its own shape
type aiOutput interface {
	validate() error
}

// decodeAIResult decodes a completion result into out and validates it.
// Data may be the raw answer text or an already decoded JSON value.
func decodeAIResult(result *domain.CompletionResult, out aiOutput) error {
	if result == nil {
		return errAICallFailed
	}
	if !result.Success {
		return fmt.Errorf("%w: %s", errAICallFailed, result.Error)
	}

	var raw []byte
	switch data := result.Data.(type) {
	case nil:
		return fmt.Errorf("%w: empty answer", errUnusableAIOutput)
	case string:
		text := stripFence(strings.TrimSpace(data))
		if text == "" {
			return fmt.Errorf("%w: empty answer", errUnusableAIOutput)
		}
		raw = []byte(text)
	default:
		encoded, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("%w: %v", errUnusableAIOutput, err)
		}
		raw = encoded
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", errUnusableAIOutput, err)
	}
	if err := out.validate(); err != nil {
		return fmt.Errorf("%w: %v", errUnusableAIOutput, err)
	}
	return nil
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// candidateSelection accepts either a bare id array or {"ids": [...]}
type candidateSelection struct {
	IDs []string
}

func (c *candidateSelection) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &c.IDs)
	}
	var wrapped struct {
		IDs []string `json:"ids"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return err
	}
	c.IDs = wrapped.IDs
	return nil
}

func (c *candidateSelection) validate() error {
	if c.IDs == nil {
		return errors.New("no ids in answer")
	}
	return nil
}

const (
	matchActionAddRule     = "addRule"
	matchActionUpdateRule  = "updateRule"
	matchActionAddSteps    = "addSteps"
	matchActionUpdateSteps = "updateSteps"
	matchActionNoMatch     = "noMatch"
)

type standardMatch struct {
	Action       string `json:"action"`
	TargetRuleID string `json:"targetRuleId"`
	Content      string `json:"content"`
	Rationale    string `json:"rationale"`
}

func (m *standardMatch) validate() error {
	switch m.Action {
	case matchActionAddRule, matchActionUpdateRule, matchActionNoMatch:
		return nil
	}
	return fmt.Errorf("unknown standard action %q", m.Action)
}

// isNoMatch also covers answers that cannot produce a change
func (m *standardMatch) isNoMatch() bool {
	if m.Action == matchActionNoMatch || strings.TrimSpace(m.Content) == "" {
		return true
	}
	return m.Action == matchActionUpdateRule && m.TargetRuleID == ""
}

type recipeMatch struct {
	Action    string `json:"action"`
	Content   string `json:"content"`
	Rationale string `json:"rationale"`
}

func (m *recipeMatch) validate() error {
	switch m.Action {
	case matchActionAddSteps, matchActionUpdateSteps, matchActionNoMatch:
		return nil
	}
	return fmt.Errorf("unknown recipe action %q", m.Action)
}

func (m *recipeMatch) isNoMatch() bool {
	return m.Action == matchActionNoMatch || strings.TrimSpace(m.Content) == ""
}

type newStandardDraft struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Rules       []string `json:"rules"`
	Scope       string   `json:"scope"`
}

type newRecipeDraft struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type newArtifactDecision struct {
	CreateStandard bool              `json:"createStandard"`
	CreateRecipe   bool              `json:"createRecipe"`
	Standard       *newStandardDraft `json:"standard"`
	Recipe         *newRecipeDraft   `json:"recipe"`
	Rationale      string            `json:"rationale"`
}

func (d *newArtifactDecision) validate() error {
	return nil
}

// standardDraft returns the proposed standard, if any. The create flags are
// advisory; a named draft is what makes a proposal.
func (d *newArtifactDecision) standardDraft() *newStandardDraft {
	if d.Standard == nil || strings.TrimSpace(d.Standard.Name) == "" {
		return nil
	}
	return d.Standard
}

func (d *newArtifactDecision) recipeDraft() *newRecipeDraft {
	if d.Recipe == nil || strings.TrimSpace(d.Recipe.Name) == "" {
		return nil
	}
	return d.Recipe
}
