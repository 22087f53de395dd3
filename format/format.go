// Package format holds the immutable registry of chat formats and picks the one
// a sender is allowed to use.
package format

import (
	"chat-pipeline/domain"
	"chat-pipeline/errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// BodyPlaceholder is the slot receiving the message body.
const BodyPlaceholder = "%message%"

type SegmentKind int

const (
	Literal SegmentKind = iota
	Body
)

type Segment struct {
	Kind SegmentKind
	Text string
}

// Template is an ordered sequence of segments with exactly one body slot.
type Template struct {
	Name     string
	Segments []Segment
}

// Rule binds a permission to a format name. Rules are evaluated in declaration order.
type Rule struct {
	Permission string
	Format     string
}

// NewTemplate builds a template from its declared parts, concatenated in order.
// Every occurrence of BodyPlaceholder becomes a body segment, there must be exactly one.
func NewTemplate(name string, parts []string) (Template, error) {
	var segments []Segment
	slots := 0
	for _, part := range parts {
		pieces := strings.Split(part, BodyPlaceholder)
		for i, piece := range pieces {
			if i > 0 {
				segments = append(segments, Segment{Kind: Body})
				slots++
			}
			if piece != "" {
				segments = append(segments, Segment{Kind: Literal, Text: piece})
			}
		}
	}
	if slots != 1 {
		return Template{}, fmt.Errorf("format %q has %d placeholders: %w", name, slots, errors.ErrMissingBodySlot)
	}
	return Template{Name: name, Segments: segments}, nil
}

// Registry maps format names to templates. It is never mutated after NewRegistry.
type Registry struct {
	templates   map[string]Template
	order       []string
	rules       []Rule
	defaultName string
}

// NewRegistry validates the configuration: at least one template, a declared default and
// rules only pointing to declared formats. A nil rules slice derives one "format.<name>"
// rule per template, in declaration order.
func NewRegistry(templates []Template, rules []Rule, defaultName string) (*Registry, error) {
	if len(templates) == 0 {
		return nil, errors.ErrEmptyFormats
	}
	byName := make(map[string]Template, len(templates))
	order := make([]string, 0, len(templates))
	for _, t := range templates {
		if _, ok := byName[t.Name]; ok {
			return nil, fmt.Errorf("format %q declared twice", t.Name)
		}
		byName[t.Name] = t
		order = append(order, t.Name)
	}
	if _, ok := byName[defaultName]; !ok {
		return nil, fmt.Errorf("%q: %w", defaultName, errors.ErrNoDefaultFormat)
	}
	if rules == nil {
		rules = DeriveRules(order)
	}
	for _, rule := range rules {
		if _, ok := byName[rule.Format]; !ok {
			return nil, fmt.Errorf("rule %q -> %q: %w", rule.Permission, rule.Format, errors.ErrUnknownFormat)
		}
	}
	return &Registry{
		templates:   byName,
		order:       order,
		rules:       append([]Rule(nil), rules...),
		defaultName: defaultName,
	}, nil
}

// DeriveRules grants each format to the holders of "format.<name>".
func DeriveRules(names []string) []Rule {
	return lo.Map(names, func(name string, _ int) Rule {
		return Rule{Permission: domain.FormatCapabilityPrefix + name, Format: name}
	})
}

func (r *Registry) Default() Template {
	return r.templates[r.defaultName]
}

func (r *Registry) Template(name string) (Template, bool) {
	t, ok := r.templates[name]
	return t, ok
}

func (r *Registry) Rules() []Rule {
	return append([]Rule(nil), r.rules...)
}

// Names lists the formats in declaration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Resolve returns the template of the first rule whose permission is held,
// or the default template. It never fails.
func Resolve(capabilities domain.CapabilitySet, registry *Registry) Template {
	for _, rule := range registry.rules {
		if capabilities.Has(rule.Permission) {
			return registry.templates[rule.Format]
		}
	}
	return registry.Default()
}
