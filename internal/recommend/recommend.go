// Package recommend turns free-text design needs into training
// recommendations through a text generator.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"draughtsman/internal/metrics"
)

const (
	MessageEmptyNeeds = "Design needs cannot be empty."
	MessageFailed     = "Failed to get recommendation. Please try again later."
)

// ErrNoGenerator is the cause recorded when no generator is configured.
var ErrNoGenerator = errors.New("recommendation generator not configured")

var promptTemplate = template.Must(template.New("prompt").Parse(`You are an expert in electrical design training programs and resources.

Based on the user's design needs, provide relevant training program or resource recommendations.

Design Needs: {{.DesignNeeds}}`))

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Recommendation struct {
	Recommendation string `json:"recommendation"`
}

// Error carries a message safe to show users. The cause is kept for logs.
type Error struct {
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Empty reports whether the request was rejected before any generation.
func (e *Error) Empty() bool { return e.Message == MessageEmptyNeeds }

type Service struct {
	Generator Generator
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// Prompt renders the generation prompt for needs.
func Prompt(needs string) (string, error) {
	var b strings.Builder
	if err := promptTemplate.Execute(&b, struct{ DesignNeeds string }{needs}); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return b.String(), nil
}

// Recommend asks the generator for recommendations. Blank needs are rejected
// without calling it. Every failure is an *Error.
func (s Service) Recommend(ctx context.Context, designNeeds string) (Recommendation, error) {
	ctx, span := otel.Tracer("draughtsman/recommend").Start(ctx, "recommend.generate")
	defer span.End()

	needs := strings.TrimSpace(designNeeds)
	if needs == "" {
		s.Metrics.IncrementRecommendation("rejected")
		span.SetAttributes(attribute.String("recommend.outcome", "rejected"))
		return Recommendation{}, &Error{Message: MessageEmptyNeeds}
	}
	fail := func(cause error) (Recommendation, error) {
		s.logger().Error("recommendation failed", zap.Error(cause))
		s.Metrics.IncrementRecommendation("failed")
		span.RecordError(cause)
		span.SetStatus(codes.Error, cause.Error())
		return Recommendation{}, &Error{Message: MessageFailed, cause: cause}
	}
	if s.Generator == nil {
		return fail(ErrNoGenerator)
	}
	prompt, err := Prompt(needs)
	if err != nil {
		return fail(err)
	}
	text, err := s.Generator.Generate(ctx, prompt)
	if err != nil {
		return fail(err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fail(errors.New("generator returned no text"))
	}
	s.Metrics.IncrementRecommendation("ok")
	span.SetAttributes(attribute.String("recommend.outcome", "ok"))
	return Recommendation{Recommendation: text}, nil
}

func (s Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
