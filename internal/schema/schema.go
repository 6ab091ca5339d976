// Package schema declares per-form field rules and evaluates raw submissions
// against them.
package schema

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Format is an optional value format check.
type Format int

const (
	FormatNone Format = iota
	FormatEmail
	FormatOneOf
)

// Rule describes one accepted field. Zero-valued messages fall back to
// generated text built from Label.
type Rule struct {
	Field           string
	Label           string
	Required        bool
	RequiredMessage string

	MinLen     int
	MinMessage string
	MaxLen     int
	MaxMessage string

	Format        Format
	Options       []string
	FormatMessage string

	// EqualTo names another field this one must repeat. A violation is
	// reported on this field.
	EqualTo      string
	EqualMessage string
}

// Schema is an ordered rule set for one form.
type Schema struct {
	Name  string
	Rules []Rule
}

// FieldIssue is one violated rule.
type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result holds either Values (valid) or Issues plus the echoed Raw input.
type Result struct {
	Values map[string]string
	Issues []FieldIssue
	Raw    map[string]string
}

// Valid reports whether the submission passed every rule.
func (r Result) Valid() bool { return len(r.Issues) == 0 }

// Messages returns the issue texts in rule order.
func (r Result) Messages() []string {
	if len(r.Issues) == 0 {
		return nil
	}
	out := make([]string, 0, len(r.Issues))
	for _, is := range r.Issues {
		out = append(out, is.Message)
	}
	return out
}

// Validate evaluates raw against every rule in declaration order. Validation
// is all-or-nothing: any issue discards the typed values.
func (s Schema) Validate(raw map[string]string) Result {
	var issues []FieldIssue
	for _, rule := range s.Rules {
		issues = append(issues, rule.check(raw)...)
	}
	if len(issues) > 0 {
		return Result{Issues: issues, Raw: maps.Clone(raw)}
	}
	values := make(map[string]string, len(s.Rules))
	for _, rule := range s.Rules {
		values[rule.Field] = raw[rule.Field]
	}
	return Result{Values: values}
}

// Fields returns the declared field names in order.
func (s Schema) Fields() []string {
	out := make([]string, 0, len(s.Rules))
	for _, r := range s.Rules {
		out = append(out, r.Field)
	}
	return out
}

// Persisted drops empty optional fields from validated values.
func (s Schema) Persisted(values map[string]string) map[string]string {
	out := make(map[string]string, len(s.Rules))
	for _, r := range s.Rules {
		v := values[r.Field]
		if !r.Required && strings.TrimSpace(v) == "" {
			continue
		}
		out[r.Field] = v
	}
	return out
}

func (r Rule) check(raw map[string]string) []FieldIssue {
	v, ok := raw[r.Field]
	if !ok || strings.TrimSpace(v) == "" {
		if r.Required {
			return []FieldIssue{{Field: r.Field, Message: r.requiredMessage()}}
		}
		return nil
	}
	var out []FieldIssue
	n := utf8.RuneCountInString(v)
	if r.MinLen > 0 && n < r.MinLen {
		out = append(out, FieldIssue{Field: r.Field, Message: r.minMessage()})
	}
	if r.MaxLen > 0 && n > r.MaxLen {
		out = append(out, FieldIssue{Field: r.Field, Message: r.maxMessage()})
	}
	switch r.Format {
	case FormatEmail:
		if !IsEmail(v) {
			out = append(out, FieldIssue{Field: r.Field, Message: r.formatMessage()})
		}
	case FormatOneOf:
		if !slices.Contains(r.Options, v) {
			out = append(out, FieldIssue{Field: r.Field, Message: r.formatMessage()})
		}
	}
	if r.EqualTo != "" && raw[r.EqualTo] != v {
		out = append(out, FieldIssue{Field: r.Field, Message: r.equalMessage()})
	}
	return out
}

func (r Rule) label() string {
	if r.Label != "" {
		return r.Label
	}
	return r.Field
}

func (r Rule) requiredMessage() string {
	if r.RequiredMessage != "" {
		return r.RequiredMessage
	}
	return fmt.Sprintf("%s is required.", r.label())
}

func (r Rule) minMessage() string {
	if r.MinMessage != "" {
		return r.MinMessage
	}
	return fmt.Sprintf("%s must be at least %d characters.", r.label(), r.MinLen)
}

func (r Rule) maxMessage() string {
	if r.MaxMessage != "" {
		return r.MaxMessage
	}
	return fmt.Sprintf("%s must be at most %d characters.", r.label(), r.MaxLen)
}

func (r Rule) formatMessage() string {
	if r.FormatMessage != "" {
		return r.FormatMessage
	}
	if r.Format == FormatEmail {
		return "Invalid email address."
	}
	return fmt.Sprintf("%s must be one of: %s.", r.label(), strings.Join(r.Options, ", "))
}

func (r Rule) equalMessage() string {
	if r.EqualMessage != "" {
		return r.EqualMessage
	}
	return fmt.Sprintf("%s does not match.", r.label())
}

// IsEmail reports whether s is a syntactically valid address.
func IsEmail(s string) bool {
	return validate.Var(s, "required,email") == nil
}
