package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	standardFilterPrompt = "Existing standards"
	recipeFilterPrompt   = "Existing recipes"
	standardMatchPrompt  = "changes a coding standard"
	recipeMatchPrompt    = "changes an implementation recipe"
	newArtifactsPrompt   = "No existing standard or recipe"
)

func newTestTopic() *domain.Topic {
	return &domain.Topic{
		ID:      "topic-1",
		SpaceID: "space-1",
		Title:   "Use TypeScript for all new code",
		Content: "We agreed that every new module is written in TypeScript.",
		CodeExamples: []domain.CodeExample{
			{Code: "const x: number = 1;", Language: "typescript"},
		},
		CaptureContext: domain.CaptureContextMCP,
		CreatedBy:      "user-1",
		Status:         domain.TopicStatusPending,
	}
}

func newTestStandard() *domain.Standard {
	return &domain.Standard{
		ID:          "std-1",
		SpaceID:     "space-1",
		Name:        "Frontend Conventions",
		Slug:        "frontend-conventions",
		Description: "How we write frontend code",
	}
}

type distillationFixture struct {
	ai        *MockAI
	standards *MockStandardsPort
	recipes   *MockRecipesPort
	service   *DistillationService
}

func newDistillationFixture() *distillationFixture {
	f := &distillationFixture{
		ai:        new(MockAI),
		standards: new(MockStandardsPort),
		recipes:   new(MockRecipesPort),
	}
	f.ai.On("IsConfigured", mock.Anything).Return(true)
	f.service = NewDistillationService(f.ai, f.standards, f.recipes, nil, nil, nil)
	return f
}

func (f *distillationFixture) noRecipes() {
	f.recipes.On("ListRecipesByOrganization", mock.Anything, "org-1").Return([]*domain.Recipe{}, nil)
}

func (f *distillationFixture) noNewArtifacts() {
	f.ai.On("Execute", mock.Anything, promptContaining(newArtifactsPrompt)).
		Return(aiAnswer(map[string]any{"createStandard": false, "createRecipe": false, "standard": nil, "recipe": nil}), nil)
}

func TestDistillationService_Distill_AddRuleProposal(t *testing.T) {
	ctx := context.Background()
	f := newDistillationFixture()
	topic := newTestTopic()
	standard := newTestStandard()

	f.standards.On("ListStandardsBySpace", mock.Anything, "space-1").Return([]*domain.Standard{standard}, nil)
	f.standards.On("GetLatestRulesByStandardID", mock.Anything, "std-1").
		Return([]domain.Rule{{ID: "rule-1", Content: "Use functional components"}}, nil)
	f.noRecipes()

	f.ai.On("Execute", mock.Anything, promptContaining(standardFilterPrompt)).
		Return(aiAnswer(map[string]any{"ids": []any{"std-1"}}), nil)
	f.ai.On("Execute", mock.Anything, promptContaining(standardMatchPrompt)).
		Return(aiAnswer(map[string]any{"action": "addRule", "content": "Use TypeScript", "rationale": "team decision"}), nil)

	proposals, err := f.service.Distill(ctx, topic, "org-1")
	require.NoError(t, err)
	require.Len(t, proposals, 1)

	p := proposals[0]
	assert.Equal(t, domain.PatchTypeUpdateStandard, p.PatchType)
	assert.Equal(t, "# Frontend Conventions\n\nHow we write frontend code\n\n## Rules\n\n- Use functional components", p.DiffOriginal)
	assert.Equal(t, "# Frontend Conventions\n\nHow we write frontend code\n\n## Rules\n\n- Use functional components\n- Use TypeScript", p.DiffModified)

	var payload domain.UpdateStandardPayload
	require.NoError(t, json.Unmarshal(p.ProposedChanges, &payload))
	assert.Equal(t, "std-1", payload.StandardID)
	assert.Equal(t, []string{"Use TypeScript"}, payload.Changes.RulesToAdd)
	assert.Equal(t, "team decision", payload.Rationale)

	f.ai.AssertNotCalled(t, "Execute", mock.Anything, promptContaining(newArtifactsPrompt))
}

func TestDistillationService_Distill_UpdateRule(t *testing.T) {
	ctx := context.Background()

	t.Run("known target rule becomes a rule update", func(t *testing.T) {
		f := newDistillationFixture()
		f.standards.On("ListStandardsBySpace", mock.Anything, "space-1").Return([]*domain.Standard{newTestStandard()}, nil)
		f.standards.On("GetLatestRulesByStandardID", mock.Anything, "std-1").Return([]domain.Rule{
			{ID: "rule-1", Content: "Prefer JavaScript"},
			{ID: "rule-2", Content: "Use functional components"},
		}, nil)
		f.noRecipes()

		f.ai.On("Execute", mock.Anything, promptContaining(standardFilterPrompt)).Return(aiAnswer([]any{"std-1"}), nil)
		f.ai.On("Execute", mock.Anything, promptContaining(standardMatchPrompt)).
			Return(aiAnswer(`{"action":"updateRule","targetRuleId":"rule-1","content":"Prefer TypeScript","rationale":"r"}`), nil)

		proposals, err := f.service.Distill(ctx, newTestTopic(), "org-1")
		require.NoError(t, err)
		require.Len(t, proposals, 1)

		var payload domain.UpdateStandardPayload
		require.NoError(t, json.Unmarshal(proposals[0].ProposedChanges, &payload))
		assert.Empty(t, payload.Changes.RulesToAdd)
		assert.Equal(t, []domain.RuleUpdate{{RuleID: "rule-1", Content: "Prefer TypeScript"}}, payload.Changes.RulesToUpdate)
		assert.Contains(t, proposals[0].DiffModified, "- Prefer TypeScript\n- Use functional components")
	})

	t.Run("unknown target rule is treated as no match", func(t *testing.T) {
		f := newDistillationFixture()
		f.standards.On("ListStandardsBySpace", mock.Anything, "space-1").Return([]*domain.Standard{newTestStandard()}, nil)
		f.standards.On("GetLatestRulesByStandardID", mock.Anything, "std-1").Return([]domain.Rule{{ID: "rule-1", Content: "x"}}, nil)
		f.noRecipes()
		f.noNewArtifacts()

		f.ai.On("Execute", mock.Anything, promptContaining(standardFilterPrompt)).Return(aiAnswer([]any{"std-1"}), nil)
		f.ai.On("Execute", mock.Anything, promptContaining(standardMatchPrompt)).
			Return(aiAnswer(map[string]any{"action": "updateRule", "targetRuleId": "rule-404", "content": "y"}), nil)

		proposals, err := f.service.Distill(ctx, newTestTopic(), "org-1")
		require.NoError(t, err)
		assert.Empty(t, proposals)
	})
}

func TestDistillationService_Distill_RecipeFilterFailureKeepsStandardProposals(t *testing.T) {
	ctx := context.Background()
	f := newDistillationFixture()

	f.standards.On("ListStandardsBySpace", mock.Anything, "space-1").Return([]*domain.Standard{newTestStandard()}, nil)
	f.standards.On("GetLatestRulesByStandardID", mock.Anything, "std-1").Return([]domain.Rule{}, nil)
	f.recipes.On("ListRecipesByOrganization", mock.Anything, "org-1").
		Return([]*domain.Recipe{{ID: "rec-1", Name: "Add an endpoint", Content: "1. Write handler"}}, nil)

	f.ai.On("Execute", mock.Anything, promptContaining(standardFilterPrompt)).Return(aiAnswer([]any{"std-1"}), nil)
	f.ai.On("Execute", mock.Anything, promptContaining(standardMatchPrompt)).
		Return(aiAnswer(map[string]any{"action": "addRule", "content": "Use TypeScript"}), nil)
	f.ai.On("Execute", mock.Anything, promptContaining(recipeFilterPrompt)).Return(nil, errors.New("upstream timeout"))

	proposals, err := f.service.Distill(ctx, newTestTopic(), "org-1")
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	assert.Equal(t, domain.PatchTypeUpdateStandard, proposals[0].PatchType)
	f.recipes.AssertNotCalled(t, "GetRecipeByIDInternal", mock.Anything, mock.Anything)
}

func TestDistillationService_Distill_CandidateFiltering(t *testing.T) {
	ctx := context.Background()
	f := newDistillationFixture()

	standards := make([]*domain.Standard, 0, 7)
	ids := []any{"unknown-id"}
	for i := 1; i <= 7; i++ {
		id := fmt.Sprintf("std-%d", i)
		standards = append(standards, &domain.Standard{ID: id, SpaceID: "space-1", Name: id})
		ids = append(ids, id, id)
	}

	f.standards.On("ListStandardsBySpace", mock.Anything, "space-1").Return(standards, nil)
	f.standards.On("GetLatestRulesByStandardID", mock.Anything, mock.Anything).Return([]domain.Rule{}, nil)
	f.noRecipes()
	f.noNewArtifacts()

	f.ai.On("Execute", mock.Anything, promptContaining(standardFilterPrompt)).Return(aiAnswer(map[string]any{"ids": ids}), nil)
	f.ai.On("Execute", mock.Anything, promptContaining(standardMatchPrompt)).
		Return(aiAnswer(map[string]any{"action": "noMatch", "content": ""}), nil)

	proposals, err := f.service.Distill(ctx, newTestTopic(), "org-1")
	require.NoError(t, err)
	assert.Empty(t, proposals)

	f.standards.AssertNumberOfCalls(t, "GetLatestRulesByStandardID", MaxStandardCandidates)
	for i := 1; i <= MaxStandardCandidates; i++ {
		f.standards.AssertCalled(t, "GetLatestRulesByStandardID", mock.Anything, fmt.Sprintf("std-%d", i))
	}
}

func TestDistillationService_Distill_MalformedAnalysisIsSkipped(t *testing.T) {
	ctx := context.Background()
	f := newDistillationFixture()

	f.standards.On("ListStandardsBySpace", mock.Anything, "space-1").Return([]*domain.Standard{
		newTestStandard(),
		{ID: "std-2", SpaceID: "space-1", Name: "Backend"},
	}, nil)
	f.standards.On("GetLatestRulesByStandardID", mock.Anything, mock.Anything).Return([]domain.Rule{}, nil)
	f.noRecipes()

	f.ai.On("Execute", mock.Anything, promptContaining(standardFilterPrompt)).Return(aiAnswer([]any{"std-1", "std-2"}), nil)
	f.ai.On("Execute", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, standardMatchPrompt) && strings.Contains(p, "Frontend Conventions")
	})).Return(aiAnswer("this is not json"), nil)
	f.ai.On("Execute", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, standardMatchPrompt) && strings.Contains(p, "Standard: Backend")
	})).Return(aiAnswer(map[string]any{"action": "addRule", "content": "Return typed errors"}), nil)

	proposals, err := f.service.Distill(ctx, newTestTopic(), "org-1")
	require.NoError(t, err)
	require.Len(t, proposals, 1)

	var payload domain.UpdateStandardPayload
	require.NoError(t, json.Unmarshal(proposals[0].ProposedChanges, &payload))
	assert.Equal(t, "std-2", payload.StandardID)
}

func TestDistillationService_Distill_RecipeProposals(t *testing.T) {
	ctx := context.Background()
	recipe := &domain.Recipe{ID: "rec-1", SpaceID: "space-1", Name: "Add an endpoint", Content: "1. Write the handler\n2. Register the route"}

	tests := []struct {
		name     string
		action   string
		content  string
		modified string
	}{
		{
			name:     "addSteps appends to the current content",
			action:   "addSteps",
			content:  "3. Add a TypeScript client",
			modified: "# Add an endpoint\n\n1. Write the handler\n2. Register the route\n\n3. Add a TypeScript client",
		},
		{
			name:     "updateSteps replaces the content",
			action:   "updateSteps",
			content:  "1. Write the handler in TypeScript",
			modified: "# Add an endpoint\n\n1. Write the handler in TypeScript",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDistillationFixture()
			f.standards.On("ListStandardsBySpace", mock.Anything, "space-1").Return([]*domain.Standard{}, nil)
			f.recipes.On("ListRecipesByOrganization", mock.Anything, "org-1").Return([]*domain.Recipe{recipe}, nil)
			f.recipes.On("GetRecipeByIDInternal", mock.Anything, "rec-1").Return(recipe, nil)

			f.ai.On("Execute", mock.Anything, promptContaining(recipeFilterPrompt)).Return(aiAnswer(map[string]any{"ids": []any{"rec-1"}}), nil)
			f.ai.On("Execute", mock.Anything, promptContaining(recipeMatchPrompt)).
				Return(aiAnswer(map[string]any{"action": tt.action, "content": tt.content, "rationale": "r"}), nil)

			proposals, err := f.service.Distill(ctx, newTestTopic(), "org-1")
			require.NoError(t, err)
			require.Len(t, proposals, 1)

			p := proposals[0]
			assert.Equal(t, domain.PatchTypeUpdateRecipe, p.PatchType)
			assert.Equal(t, "# Add an endpoint\n\n1. Write the handler\n2. Register the route", p.DiffOriginal)
			assert.Equal(t, tt.modified, p.DiffModified)

			var payload domain.UpdateRecipePayload
			require.NoError(t, json.Unmarshal(p.ProposedChanges, &payload))
			assert.Equal(t, "rec-1", payload.RecipeID)
			assert.Equal(t, domain.RecipeAction(tt.action), payload.Action)
			f.ai.AssertNotCalled(t, "Execute", mock.Anything, promptContaining(standardFilterPrompt))
		})
	}
}

func TestDistillationService_Distill_NewArtifacts(t *testing.T) {
	ctx := context.Background()
	f := newDistillationFixture()

	f.standards.On("ListStandardsBySpace", mock.Anything, "space-1").Return([]*domain.Standard{}, nil)
	f.noRecipes()
	f.ai.On("Execute", mock.Anything, promptContaining(newArtifactsPrompt)).Return(aiAnswer(map[string]any{
		"createStandard": true,
		"createRecipe":   true,
		"standard": map[string]any{
			"name":        "TypeScript",
			"description": "Language rules",
			"rules":       []any{"Use TypeScript", " "},
			"scope":       "**/*.ts",
		},
		"recipe":    map[string]any{"name": "Migrate a module", "content": "1. Rename to .ts"},
		"rationale": "nothing covers it",
	}), nil)

	proposals, err := f.service.Distill(ctx, newTestTopic(), "org-1")
	require.NoError(t, err)
	require.Len(t, proposals, 2)

	assert.Equal(t, domain.PatchTypeNewStandard, proposals[0].PatchType)
	assert.Empty(t, proposals[0].DiffOriginal)
	assert.Equal(t, "# TypeScript\n\nLanguage rules\n\n## Rules\n\n- Use TypeScript", proposals[0].DiffModified)

	var std domain.NewStandardPayload
	require.NoError(t, json.Unmarshal(proposals[0].ProposedChanges, &std))
	assert.Equal(t, []string{"Use TypeScript"}, std.Rules)
	assert.Equal(t, "**/*.ts", std.Scope)

	assert.Equal(t, domain.PatchTypeNewRecipe, proposals[1].PatchType)
	assert.Empty(t, proposals[1].DiffOriginal)
	assert.Equal(t, "# Migrate a module\n\n1. Rename to .ts", proposals[1].DiffModified)
}

func TestDistillationService_Distill_AINotConfigured(t *testing.T) {
	ai := new(MockAI)
	ai.On("IsConfigured", mock.Anything).Return(false)
	standards := new(MockStandardsPort)
	recipes := new(MockRecipesPort)
	service := NewDistillationService(ai, standards, recipes, nil, nil, nil)

	_, err := service.Distill(context.Background(), newTestTopic(), "org-1")

	assert.ErrorIs(t, err, domain.ErrAINotConfigured)
	standards.AssertNotCalled(t, "ListStandardsBySpace", mock.Anything, mock.Anything)
	ai.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestDistillationService_DistillTopic_PersistsPendingPatches(t *testing.T) {
	ctx := context.Background()
	f := newDistillationFixture()
	topic := newTestTopic()

	topics := new(MockTopicRepository)
	topics.On("GetByID", mock.Anything, "topic-1").Return(topic, nil)

	patchRepo := new(MockKnowledgePatchRepository)
	patchRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.KnowledgePatch")).Return(nil)
	txRunner := &testTxRunner{repos: &testTxRepos{patches: patchRepo}}
	patches := NewKnowledgePatchServiceWithUUIDGen(patchRepo, txRunner, nil, nil, nil, NewMockUUIDGenerator("patch-1"))

	f.service = NewDistillationService(f.ai, f.standards, f.recipes, topics, patches, nil)
	f.standards.On("ListStandardsBySpace", mock.Anything, "space-1").Return([]*domain.Standard{newTestStandard()}, nil)
	f.standards.On("GetLatestRulesByStandardID", mock.Anything, "std-1").Return([]domain.Rule{}, nil)
	f.noRecipes()
	f.ai.On("Execute", mock.Anything, promptContaining(standardFilterPrompt)).Return(aiAnswer([]any{"std-1"}), nil)
	f.ai.On("Execute", mock.Anything, promptContaining(standardMatchPrompt)).
		Return(aiAnswer(map[string]any{"action": "addRule", "content": "Use TypeScript"}), nil)

	result, err := f.service.DistillTopic(ctx, "org-1", "topic-1")
	require.NoError(t, err)
	require.Len(t, result.Patches, 1)

	patch := result.Patches[0]
	assert.Equal(t, "patch-1", patch.ID)
	assert.Equal(t, "topic-1", patch.TopicID)
	assert.Equal(t, "space-1", patch.SpaceID)
	assert.Equal(t, domain.PatchStatusPendingReview, patch.Status)
	assert.True(t, txRunner.called)
	patchRepo.AssertNumberOfCalls(t, "Create", 1)
}

func TestDistillationService_DistillTopic_TopicNotFound(t *testing.T) {
	topics := new(MockTopicRepository)
	topics.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrTopicNotFound)
	service := NewDistillationService(new(MockAI), new(MockStandardsPort), new(MockRecipesPort), topics, nil, nil)

	_, err := service.DistillTopic(context.Background(), "org-1", "missing")
	assert.ErrorIs(t, err, domain.ErrTopicNotFound)
}

func TestFormatCodeExamples(t *testing.T) {
	assert.Equal(t, noCodeExamples, formatCodeExamples(nil))
	assert.Equal(t,
		"```go\nfmt.Println(1)\n```\n\n```sql\nSELECT 1\n```",
		formatCodeExamples([]domain.CodeExample{
			{Code: "fmt.Println(1)", Language: "go"},
			{Code: "SELECT 1", Language: "sql"},
		}),
	)
}

func TestDecodeAIResult(t *testing.T) {
	t.Run("fenced string answer", func(t *testing.T) {
		var sel candidateSelection
		err := decodeAIResult(aiAnswer("```json\n{\"ids\":[\"a\"]}\n```"), &sel)
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, sel.IDs)
	})

	t.Run("unsuccessful result", func(t *testing.T) {
		var sel candidateSelection
		err := decodeAIResult(&domain.CompletionResult{Success: false, Error: "boom"}, &sel)
		assert.ErrorIs(t, err, errAICallFailed)
	})

	t.Run("unknown action", func(t *testing.T) {
		var m standardMatch
		err := decodeAIResult(aiAnswer(map[string]any{"action": "rewriteEverything"}), &m)
		assert.ErrorIs(t, err, errUnusableAIOutput)
	})

	t.Run("object without ids", func(t *testing.T) {
		var sel candidateSelection
		err := decodeAIResult(aiAnswer(map[string]any{"standards": []any{"a"}}), &sel)
		assert.ErrorIs(t, err, errUnusableAIOutput)
	})
}
