// Package prompt composes role-specific prompts around retrieved context.
package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"medisync-rag/internal/models"
)

// Template slots.
const (
	ContextSlot = "{context_str}"
	QuerySlot   = "{query_str}"
)

// segmentSeparator separates retrieved segments inside the context block.
const segmentSeparator = "\n\n"

var slotPattern = regexp.MustCompile(`\{[A-Za-z_][A-Za-z0-9_]*\}`)

// Composer holds one validated template per role.
type Composer struct {
	templates map[models.Role]string
}

// NewComposer validates templates: every role needs one, each with exactly
// one context slot followed later by exactly one query slot, and no other slots.
func NewComposer(templates map[models.Role]string) (*Composer, error) {
	c := &Composer{templates: make(map[models.Role]string, len(models.Roles))}
	for _, role := range models.Roles {
		tmpl, ok := templates[role]
		if !ok || strings.TrimSpace(tmpl) == "" {
			return nil, fmt.Errorf("missing template for role %s", role)
		}
		if err := Validate(tmpl); err != nil {
			return nil, fmt.Errorf("template for role %s: %w", role, err)
		}
		c.templates[role] = tmpl
	}
	for role := range templates {
		if !role.Valid() {
			return nil, fmt.Errorf("template given for unknown role %q", role)
		}
	}
	return c, nil
}

// Validate checks the slot structure of a single template.
func Validate(tmpl string) error {
	if n := strings.Count(tmpl, ContextSlot); n != 1 {
		return fmt.Errorf("%s must appear exactly once, found %d", ContextSlot, n)
	}
	if n := strings.Count(tmpl, QuerySlot); n != 1 {
		return fmt.Errorf("%s must appear exactly once, found %d", QuerySlot, n)
	}
	if strings.Index(tmpl, ContextSlot) > strings.Index(tmpl, QuerySlot) {
		return fmt.Errorf("%s must come before %s", ContextSlot, QuerySlot)
	}
	for _, slot := range slotPattern.FindAllString(tmpl, -1) {
		if slot != ContextSlot && slot != QuerySlot {
			return fmt.Errorf("unknown slot %s", slot)
		}
	}
	return nil
}

// Compose fills the role's template. Segment texts are joined verbatim in
// the given order; substituted values are never scanned for slots.
func (c *Composer) Compose(role models.Role, segments []models.ScoredSegment, question string) (string, error) {
	tmpl, ok := c.templates[role]
	if !ok {
		return "", fmt.Errorf("no template for role %q", role)
	}

	texts := make([]string, len(segments))
	for i, s := range segments {
		texts[i] = s.Text
	}

	r := strings.NewReplacer(
		ContextSlot, strings.Join(texts, segmentSeparator),
		QuerySlot, question,
	)
	return r.Replace(tmpl), nil
}

// Template returns the template used for role.
func (c *Composer) Template(role models.Role) string {
	return c.templates[role]
}
