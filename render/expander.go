package render

import (
	"chat-pipeline/contract"
	"chat-pipeline/domain"
	"maps"
)

var _ contract.PlaceholderExpander = StaticExpander{}

// StaticExpander expands placeholders whose value is the same for every participant,
// such as the network name.
type StaticExpander struct {
	values map[string]string
}

func NewStaticExpander(values map[string]string) StaticExpander {
	return StaticExpander{values: maps.Clone(values)}
}

func (e StaticExpander) Expand(_ domain.Participant, text string) string {
	return Substitute(text, e.values)
}
