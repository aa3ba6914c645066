package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/cloo-solutions/learnings/internal/logger"
	"github.com/cloo-solutions/learnings/internal/telemetry"
)

// PatchApplier writes accepted patches back to the standards port
type PatchApplier struct {
	standards     StandardsPort
	embeddingJobs EmbeddingJobRepositoryInterface
	uuidGen       UUIDGenerator
	log           *logger.Logger
}

// NewPatchApplier creates a new PatchApplier. embeddingJobs is optional; when
// set every new standard version is queued for indexing.
func NewPatchApplier(standards StandardsPort, embeddingJobs EmbeddingJobRepositoryInterface, log *logger.Logger) *PatchApplier {
	return NewPatchApplierWithUUIDGen(standards, embeddingJobs, log, &DefaultUUIDGenerator{})
}

// NewPatchApplierWithUUIDGen creates a new PatchApplier with custom UUID generator (for testing)
func NewPatchApplierWithUUIDGen(standards StandardsPort, embeddingJobs EmbeddingJobRepositoryInterface, log *logger.Logger, uuidGen UUIDGenerator) *PatchApplier {
	if log == nil {
		log = logger.NewNop()
	}
	return &PatchApplier{
		standards:     standards,
		embeddingJobs: embeddingJobs,
		uuidGen:       uuidGen,
		log:           log.With("component", "patch_applier"),
	}
}

// Apply applies an accepted patch and reports whether anything changed.
// Mutations are independent port calls: a failure part way returns the
// error and leaves earlier mutations in place.
func (a *PatchApplier) Apply(ctx context.Context, patch *domain.KnowledgePatch, organizationID, userID string) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "PatchApplier.Apply", telemetry.SpanAttributes{
		OrgID:     organizationID,
		SpaceID:   patch.SpaceID,
		PatchID:   patch.ID,
		Operation: "apply",
	})
	defer span.End()

	switch patch.PatchType {
	case domain.PatchTypeUpdateStandard:
		applied, err := a.applyStandardUpdate(ctx, patch, organizationID, userID)
		if err != nil {
			span.SetError(err)
		}
		return applied, err
	default:
		a.log.Info("patch type not yet supported for application", "patch_id", patch.ID, "patch_type", patch.PatchType)
		return false, nil
	}
}

func (a *PatchApplier) applyStandardUpdate(ctx context.Context, patch *domain.KnowledgePatch, organizationID, userID string) (bool, error) {
	update, err := domain.DecodeStandardUpdate(patch.ProposedChanges)
	if err != nil {
		return false, err
	}

	standard, err := a.standards.GetStandard(ctx, update.StandardID)
	if err != nil {
		if domain.IsCode(err, domain.ErrCodeNotFound) {
			return false, domain.NewNotFoundError(domain.ErrStandardNotFound, update.StandardID)
		}
		return false, err
	}

	log := a.log.With("patch_id", patch.ID, "standard_id", standard.ID, "payload_form", update.Form)
	a.logUnsupported(log, update.Changes)

	changes := update.Changes
	mutations := 0

	for i, content := range changes.RulesToAdd {
		version, err := a.standards.AddRuleToStandard(ctx, domain.AddRuleCommand{
			StandardID:     standard.ID,
			StandardSlug:   standard.Slug,
			RuleContent:    content,
			OrganizationID: organizationID,
			UserID:         userID,
		})
		if err != nil {
			return false, fmt.Errorf("failed to add rule %d of %d to standard %s: %w", i+1, len(changes.RulesToAdd), standard.ID, err)
		}
		mutations++
		a.queueEmbedding(ctx, log, version)
	}

	for i, ru := range changes.RulesToUpdate {
		version, err := a.standards.UpdateStandardRules(ctx, domain.UpdateRuleCommand{
			StandardID:     standard.ID,
			RuleID:         ru.RuleID,
			NewRuleContent: ru.Content,
			OrganizationID: organizationID,
			UserID:         userID,
		})
		if err != nil {
			return false, fmt.Errorf("failed to update rule %d of %d (%s) on standard %s: %w", i+1, len(changes.RulesToUpdate), ru.RuleID, standard.ID, err)
		}
		mutations++
		a.queueEmbedding(ctx, log, version)
	}

	log.Info("patch applied", "mutations", mutations)
	return mutations > 0, nil
}

func (a *PatchApplier) logUnsupported(log *logger.Logger, changes domain.StandardChanges) {
	if len(changes.RulesToDelete) > 0 {
		log.Warn("rule deletion is not supported, skipping", "rules", changes.RulesToDelete)
	}
	if len(changes.ExampleChanges) > 0 && string(changes.ExampleChanges) != "null" {
		log.Warn("example changes are not supported, skipping")
	}
	if changes.Name != nil {
		log.Warn("name change is not supported, skipping", "name", *changes.Name)
	}
	if changes.Description != nil {
		log.Warn("description change is not supported, skipping")
	}
}

func (a *PatchApplier) queueEmbedding(ctx context.Context, log *logger.Logger, version *domain.StandardVersion) {
	if a.embeddingJobs == nil || version == nil {
		return
	}
	job := domain.NewStandardEmbeddingJob(a.uuidGen.NewString(), version.ID, time.Now().UTC())
	if err := a.embeddingJobs.Create(ctx, job); err != nil {
		log.Warn("failed to queue embedding for new standard version", "version_id", version.ID, "error", err)
	}
}
