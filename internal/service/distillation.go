package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/cloo-solutions/learnings/internal/logger"
	"github.com/cloo-solutions/learnings/internal/telemetry"
)

const (
	MaxStandardCandidates = 5
	MaxRecipeCandidates   = 3

	standardSummaryLength = 200
	recipePreviewLines    = 2
	noCodeExamples        = "No code examples provided"
)

// TopicReader loads topics for distillation
type TopicReader interface {
	GetByID(ctx context.Context, id string) (*domain.Topic, error)
}

// PatchCreator persists distillation proposals as reviewable patches
type PatchCreator interface {
	CreatePatches(ctx context.Context, topic *domain.Topic, proposals []domain.PatchProposal) ([]*domain.KnowledgePatch, error)
}

// DistillationService turns topics into knowledge patch proposals
type DistillationService struct {
	ai        AICompleter
	standards StandardsPort
	recipes   RecipesPort
	topics    TopicReader
	patches   PatchCreator
	log       *logger.Logger
}

// NewDistillationService creates a new DistillationService instance.
// topics and patches are only needed by DistillTopic.
func NewDistillationService(
	ai AICompleter,
	standards StandardsPort,
	recipes RecipesPort,
	topics TopicReader,
	patches PatchCreator,
	log *logger.Logger,
) *DistillationService {
	if log == nil {
		log = logger.NewNop()
	}
	return &DistillationService{
		ai:        ai,
		standards: standards,
		recipes:   recipes,
		topics:    topics,
		patches:   patches,
		log:       log.With("component", "distillation"),
	}
}

// DistillationResult is the outcome of distilling one stored topic
type DistillationResult struct {
	TopicID string
	Patches []*domain.KnowledgePatch
}

// DistillTopic loads a topic, distills it and stores the proposals as
// PENDING_REVIEW patches.
func (s *DistillationService) DistillTopic(ctx context.Context, organizationID, topicID string) (*DistillationResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "DistillationService.DistillTopic", telemetry.SpanAttributes{
		OrgID:     organizationID,
		TopicID:   topicID,
		Operation: "distill_topic",
	})
	defer span.End()

	topic, err := s.topics.GetByID(ctx, topicID)
	if err != nil {
		return nil, err
	}

	proposals, err := s.Distill(ctx, topic, organizationID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	patches, err := s.patches.CreatePatches(ctx, topic, proposals)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to store patches for topic %s: %w", topic.ID, err)
	}

	return &DistillationResult{TopicID: topic.ID, Patches: patches}, nil
}

// Distill proposes changes for a topic. Every AI step is isolated: a failed
// or unusable answer only drops the proposals that step would have produced.
func (s *DistillationService) Distill(ctx context.Context, topic *domain.Topic, organizationID string) ([]domain.PatchProposal, error) {
	ctx, span := telemetry.StartSpan(ctx, "DistillationService.Distill", telemetry.SpanAttributes{
		OrgID:     organizationID,
		SpaceID:   topic.SpaceID,
		TopicID:   topic.ID,
		Operation: "distill",
	})
	defer span.End()

	if s.ai == nil || !s.ai.IsConfigured(ctx) {
		return nil, domain.ErrAINotConfigured
	}

	log := s.log.With("topic_id", topic.ID, "space_id", topic.SpaceID)
	examples := formatCodeExamples(topic.CodeExamples)

	var proposals []domain.PatchProposal

	for _, standard := range s.filterStandards(ctx, topic, examples, log) {
		if proposal := s.analyzeStandard(ctx, topic, standard, examples, log); proposal != nil {
			proposals = append(proposals, *proposal)
		}
	}

	for _, recipe := range s.filterRecipes(ctx, topic, organizationID, examples, log) {
		if proposal := s.analyzeRecipe(ctx, topic, recipe, examples, log); proposal != nil {
			proposals = append(proposals, *proposal)
		}
	}

	if len(proposals) == 0 {
		proposals = s.determineNewArtifacts(ctx, topic, examples, log)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.Info("topic distilled", "proposals", len(proposals))
	return proposals, nil
}

func (s *DistillationService) filterStandards(ctx context.Context, topic *domain.Topic, examples string, log *logger.Logger) []*domain.Standard {
	standards, err := s.standards.ListStandardsBySpace(ctx, topic.SpaceID)
	if err != nil {
		log.Warn("failed to list standards", "error", err)
		return nil
	}
	if len(standards) == 0 {
		return nil
	}

	lines := make([]string, 0, len(standards))
	byID := make(map[string]*domain.Standard, len(standards))
	for _, std := range standards {
		byID[std.ID] = std
		lines = append(lines, fmt.Sprintf("%s | %s | %s", std.ID, std.Name, truncateRunes(std.Description, standardSummaryLength)))
	}

	prompt := renderPrompt(filterStandardsPrompt, map[string]string{
		"topicTitle":   topic.Title,
		"topicContent": topic.Content,
		"codeExamples": examples,
		"candidates":   strings.Join(lines, "\n"),
		"limit":        strconv.Itoa(MaxStandardCandidates),
	})

	var selection candidateSelection
	if err := s.complete(ctx, prompt, &selection); err != nil {
		log.Warn("standard candidate filtering failed", "error", err)
		return nil
	}

	return pickCandidates(selection.IDs, byID, MaxStandardCandidates)
}

func (s *DistillationService) filterRecipes(ctx context.Context, topic *domain.Topic, organizationID, examples string, log *logger.Logger) []*domain.Recipe {
	recipes, err := s.recipes.ListRecipesByOrganization(ctx, organizationID)
	if err != nil {
		log.Warn("failed to list recipes", "error", err)
		return nil
	}
	if len(recipes) == 0 {
		return nil
	}

	lines := make([]string, 0, len(recipes))
	byID := make(map[string]*domain.Recipe, len(recipes))
	for _, recipe := range recipes {
		byID[recipe.ID] = recipe
		lines = append(lines, fmt.Sprintf("%s | %s | %s", recipe.ID, recipe.Name, firstLines(recipe.Content, recipePreviewLines)))
	}

	prompt := renderPrompt(filterRecipesPrompt, map[string]string{
		"topicTitle":   topic.Title,
		"topicContent": topic.Content,
		"codeExamples": examples,
		"candidates":   strings.Join(lines, "\n"),
		"limit":        strconv.Itoa(MaxRecipeCandidates),
	})

	var selection candidateSelection
	if err := s.complete(ctx, prompt, &selection); err != nil {
		log.Warn("recipe candidate filtering failed", "error", err)
		return nil
	}

	return pickCandidates(selection.IDs, byID, MaxRecipeCandidates)
}

func (s *DistillationService) analyzeStandard(ctx context.Context, topic *domain.Topic, standard *domain.Standard, examples string, log *logger.Logger) *domain.PatchProposal {
	log = log.With("standard_id", standard.ID)

	rules, err := s.standards.GetLatestRulesByStandardID(ctx, standard.ID)
	if err != nil {
		log.Warn("failed to load rules", "error", err)
		return nil
	}

	ruleLines := make([]string, 0, len(rules))
	for _, rule := range rules {
		ruleLines = append(ruleLines, fmt.Sprintf("[%s] %s", rule.ID, rule.Content))
	}
	rulesText := strings.Join(ruleLines, "\n")
	if rulesText == "" {
		rulesText = "No rules defined yet"
	}

	prompt := renderPrompt(analyzeStandardPrompt, map[string]string{
		"topicTitle":          topic.Title,
		"topicContent":        topic.Content,
		"codeExamples":        examples,
		"standardName":        standard.Name,
		"standardDescription": standard.Description,
		"rules":               rulesText,
	})

	var match standardMatch
	if err := s.complete(ctx, prompt, &match); err != nil {
		log.Warn("standard analysis failed", "error", err)
		return nil
	}
	if match.isNoMatch() {
		return nil
	}

	original := make([]string, len(rules))
	for i, rule := range rules {
		original[i] = rule.Content
	}
	modified := append([]string(nil), original...)
	content := strings.TrimSpace(match.Content)

	changes := domain.StandardChanges{}
	switch match.Action {
	case matchActionAddRule:
		changes.RulesToAdd = []string{content}
		modified = append(modified, content)
	case matchActionUpdateRule:
		idx := ruleIndex(rules, match.TargetRuleID)
		if idx < 0 {
			log.Info("answer targets an unknown rule, ignoring", "rule_id", match.TargetRuleID)
			return nil
		}
		changes.RulesToUpdate = []domain.RuleUpdate{{RuleID: match.TargetRuleID, Content: content}}
		modified[idx] = content
	}

	payload, err := json.Marshal(domain.UpdateStandardPayload{
		StandardID: standard.ID,
		Changes:    changes,
		Rationale:  match.Rationale,
	})
	if err != nil {
		log.Error("failed to encode standard payload", "error", err)
		return nil
	}

	return &domain.PatchProposal{
		PatchType:       domain.PatchTypeUpdateStandard,
		ProposedChanges: payload,
		DiffOriginal:    renderStandardDocument(standard.Name, standard.Description, original),
		DiffModified:    renderStandardDocument(standard.Name, standard.Description, modified),
	}
}

func (s *DistillationService) analyzeRecipe(ctx context.Context, topic *domain.Topic, candidate *domain.Recipe, examples string, log *logger.Logger) *domain.PatchProposal {
	log = log.With("recipe_id", candidate.ID)

	recipe, err := s.recipes.GetRecipeByIDInternal(ctx, candidate.ID)
	if err != nil {
		log.Warn("failed to load recipe", "error", err)
		return nil
	}

	prompt := renderPrompt(analyzeRecipePrompt, map[string]string{
		"topicTitle":    topic.Title,
		"topicContent":  topic.Content,
		"codeExamples":  examples,
		"recipeName":    recipe.Name,
		"recipeContent": recipe.Content,
	})

	var match recipeMatch
	if err := s.complete(ctx, prompt, &match); err != nil {
		log.Warn("recipe analysis failed", "error", err)
		return nil
	}
	if match.isNoMatch() {
		return nil
	}

	content := strings.TrimSpace(match.Content)
	modified := content
	if match.Action == matchActionAddSteps {
		modified = strings.TrimRight(recipe.Content, "\n") + "\n\n" + content
	}

	payload, err := json.Marshal(domain.UpdateRecipePayload{
		RecipeID:  recipe.ID,
		Action:    domain.RecipeAction(match.Action),
		Content:   content,
		Rationale: match.Rationale,
	})
	if err != nil {
		log.Error("failed to encode recipe payload", "error", err)
		return nil
	}

	return &domain.PatchProposal{
		PatchType:       domain.PatchTypeUpdateRecipe,
		ProposedChanges: payload,
		DiffOriginal:    renderRecipeDocument(recipe.Name, recipe.Content),
		DiffModified:    renderRecipeDocument(recipe.Name, modified),
	}
}

func (s *DistillationService) determineNewArtifacts(ctx context.Context, topic *domain.Topic, examples string, log *logger.Logger) []domain.PatchProposal {
	prompt := renderPrompt(newArtifactPrompt, map[string]string{
		"topicTitle":   topic.Title,
		"topicContent": topic.Content,
		"codeExamples": examples,
	})

	var decision newArtifactDecision
	if err := s.complete(ctx, prompt, &decision); err != nil {
		log.Warn("new artifact determination failed", "error", err)
		return nil
	}

	var proposals []domain.PatchProposal

	if draft := decision.standardDraft(); draft != nil {
		payload, err := json.Marshal(domain.NewStandardPayload{
			Name:        draft.Name,
			Description: draft.Description,
			Rules:       nonEmpty(draft.Rules),
			Scope:       draft.Scope,
			Rationale:   decision.Rationale,
		})
		if err == nil {
			proposals = append(proposals, domain.PatchProposal{
				PatchType:       domain.PatchTypeNewStandard,
				ProposedChanges: payload,
				DiffModified:    renderStandardDocument(draft.Name, draft.Description, nonEmpty(draft.Rules)),
			})
		}
	}

	if draft := decision.recipeDraft(); draft != nil {
		payload, err := json.Marshal(domain.NewRecipePayload{
			Name:      draft.Name,
			Content:   draft.Content,
			Rationale: decision.Rationale,
		})
		if err == nil {
			proposals = append(proposals, domain.PatchProposal{
				PatchType:       domain.PatchTypeNewRecipe,
				ProposedChanges: payload,
				DiffModified:    renderRecipeDocument(draft.Name, draft.Content),
			})
		}
	}

	return proposals
}

func (s *DistillationService) complete(ctx context.Context, prompt string, out aiOutput) error {
	result, err := s.ai.Execute(ctx, prompt)
	if err != nil {
		return err
	}
	return decodeAIResult(result, out)
}

// pickCandidates keeps known ids in answer order, without duplicates
func pickCandidates[T any](ids []string, known map[string]T, limit int) []T {
	seen := make(map[string]bool, len(ids))
	picked := make([]T, 0, limit)
	for _, id := range ids {
		candidate, ok := known[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		picked = append(picked, candidate)
		if len(picked) == limit {
			break
		}
	}
	return picked
}

func ruleIndex(rules []domain.Rule, id string) int {
	for i, rule := range rules {
		if rule.ID == id {
			return i
		}
	}
	return -1
}

func formatCodeExamples(examples []domain.CodeExample) string {
	if len(examples) == 0 {
		return noCodeExamples
	}
	blocks := make([]string, len(examples))
	for i, ex := range examples {
		blocks[i] = "```" + ex.Language + "\n" + ex.Code + "\n```"
	}
	return strings.Join(blocks, "\n\n")
}

func renderStandardDocument(name, description string, rules []string) string {
	items := make([]string, len(rules))
	for i, rule := range rules {
		items[i] = "- " + rule
	}
	return fmt.Sprintf("# %s\n\n%s\n\n## Rules\n\n%s", name, description, strings.Join(items, "\n"))
}

func renderRecipeDocument(name, content string) string {
	return fmt.Sprintf("# %s\n\n%s", name, content)
}

func firstLines(s string, n int) string {
	lines := strings.SplitN(strings.TrimSpace(s), "\n", n+1)
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, " ")
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, strings.TrimSpace(v))
		}
	}
	return out
}
