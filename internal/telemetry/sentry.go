// Package telemetry wraps Sentry tracing for the learnings services.
package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/learnings/internal/domain"
	"github.com/cloo-solutions/learnings/internal/logger"
	"github.com/getsentry/sentry-go"
)

const serviceName = "learningsd"

// Config holds the configuration for Sentry initialization.
type Config struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
	Debug            bool
}

// Init initializes Sentry and returns a function that flushes pending
// events. An empty DSN disables reporting.
func Init(cfg Config, log *logger.Logger) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate == 0 {
		cfg.TracesSampleRate = SampleRateFor(cfg.Environment)
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		ServerName:       serviceName,
		TracesSampler: sentry.TracesSampler(func(ctx sentry.SamplingContext) float64 {
			return sampleSpan(ctx.Span, cfg.TracesSampleRate)
		}),
	})
	if err != nil {
		log.Warn("sentry: failed to initialize, continuing without tracing", "error", err)
		return func() {}, nil
	}

	log.Info("sentry: tracing initialized", "environment", cfg.Environment, "sample_rate", cfg.TracesSampleRate)
	return func() { sentry.Flush(5 * time.Second) }, nil
}

func sampleSpan(span *sentry.Span, rate float64) float64 {
	if span.Name == "GET /health" {
		return 0
	}
	// Child spans follow the parent's decision
	var root sentry.SpanID
	if span.ParentSpanID != root {
		if span.Sampled.Bool() {
			return 1
		}
		return 0
	}
	return rate
}

// SampleRateFor returns the default trace sample rate for an environment.
func SampleRateFor(environment string) float64 {
	if environment == "" || environment == "development" {
		return 1.0
	}
	return 0.1
}

// SpanAttributes are tagged on a span when set.
type SpanAttributes struct {
	OrgID     string
	SpaceID   string
	TopicID   string
	PatchID   string
	JobID     string
	Operation string
}

func (a SpanAttributes) apply(span *sentry.Span) {
	for key, value := range map[string]string{
		"org_id":   a.OrgID,
		"space_id": a.SpaceID,
		"topic_id": a.TopicID,
		"patch_id": a.PatchID,
		"job_id":   a.JobID,
	} {
		if value != "" {
			span.SetTag(key, value)
		}
	}
	if a.Operation != "" {
		span.SetData("operation", a.Operation)
	}
}

// Span is a service-level span.
type Span struct {
	inner *sentry.Span
}

// StartSpan creates a child span when the context already carries one and
// a new transaction otherwise.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}
	attrs.apply(span)

	return span.Context(), &Span{inner: span}
}

// End finishes the span.
func (s *Span) End() {
	s.inner.Finish()
}

// SetData attaches a data field to the span.
func (s *Span) SetData(key string, value interface{}) {
	s.inner.SetData(key, value)
}

// SetError marks the span failed. Only unexpected failures are reported as
// exceptions; caller mistakes such as validation errors are not.
func (s *Span) SetError(err error) {
	if err == nil {
		return
	}
	s.inner.Status = sentry.SpanStatusInternalError
	if !reportable(err) {
		return
	}
	if hub := sentry.GetHubFromContext(s.inner.Context()); hub != nil {
		hub.CaptureException(err)
	}
}

func reportable(err error) bool {
	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return true
	}
	switch domainErr.Code {
	case domain.ErrCodeValidation, domain.ErrCodeNotFound, domain.ErrCodeAlreadyExists, domain.ErrCodeInvalidState:
		return false
	default:
		return true
	}
}
