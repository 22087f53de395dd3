// Package runtime handles the infrastructure-level tasks like loading configuration,
// participant sessions and the supervised audit workers.
package runtime

import (
	"chat-pipeline/errors"
	"chat-pipeline/format"
	"chat-pipeline/moderation"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed defaults/chat.yaml
var defaultsFolder embed.FS

const (
	defaultConfigPath = "defaults/chat.yaml"
	defaultFormatName = "default"
)

var validate = validator.New()

// ChatConfig is an immutable snapshot of the chat configuration.
type ChatConfig struct {
	Registry     *format.Registry
	Filter       *moderation.Filter
	Permissions  StaticPermissions
	Placeholders map[string]string
}

type ruleEntry struct {
	Permission string `yaml:"permission" validate:"required"`
	Format     string `yaml:"format" validate:"required"`
}

type filterEntry struct {
	Name  string   `yaml:"name"`
	Regex string   `yaml:"regex"`
	Glob  string   `yaml:"glob"`
	Words []string `yaml:"words"`
}

type permissionsEntry struct {
	Default []string            `yaml:"default"`
	Players map[string][]string `yaml:"players"`
}

// rawConfig keeps formats and filter as nodes, their declared order is meaningful.
type rawConfig struct {
	Formats       yaml.Node         `yaml:"formats"`
	DefaultFormat string            `yaml:"default-format"`
	Rules         []ruleEntry       `yaml:"rules" validate:"omitempty,dive"`
	Filter        yaml.Node         `yaml:"filter"`
	Permissions   permissionsEntry  `yaml:"permissions"`
	Placeholders  map[string]string `yaml:"placeholders"`
}

// ChatConfigLoader reads the chat configuration, from a file or from the embedded defaults.
type ChatConfigLoader struct {
	matchTimeout time.Duration
	log          *slog.Logger
}

func NewChatConfigLoader(matchTimeout time.Duration, log *slog.Logger) *ChatConfigLoader {
	return &ChatConfigLoader{matchTimeout: matchTimeout, log: log}
}

// Load reads path, or the embedded defaults when path is empty.
func (l *ChatConfigLoader) Load(path string) (*ChatConfig, error) {
	var (
		data []byte
		err  error
	)
	if path == "" {
		data, err = defaultsFolder.ReadFile(defaultConfigPath)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	config, err := l.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("chat config %q: %w", path, err)
	}
	l.log.Info("Chat configuration loaded",
		"path", path,
		"formats", len(config.Registry.Names()),
		"rules", len(config.Registry.Rules()),
		"filters", config.Filter.Len())
	return config, nil
}

func (l *ChatConfigLoader) Parse(data []byte) (*ChatConfig, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if err := validate.Struct(raw); err != nil {
		return nil, err
	}

	templates, err := parseFormats(&raw.Formats)
	if err != nil {
		return nil, err
	}
	var rules []format.Rule
	if raw.Rules != nil {
		rules = make([]format.Rule, 0, len(raw.Rules))
		for _, r := range raw.Rules {
			rules = append(rules, format.Rule{Permission: r.Permission, Format: r.Format})
		}
	}
	defaultName := raw.DefaultFormat
	if defaultName == "" {
		defaultName = defaultFormatName
	}
	registry, err := format.NewRegistry(templates, rules, defaultName)
	if err != nil {
		return nil, err
	}

	specs, err := parseFilter(&raw.Filter)
	if err != nil {
		return nil, err
	}
	filter, err := moderation.NewFilter(specs, l.matchTimeout, l.log)
	if err != nil {
		return nil, err
	}

	return &ChatConfig{
		Registry:     registry,
		Filter:       filter,
		Permissions:  NewStaticPermissions(raw.Permissions.Default, raw.Permissions.Players),
		Placeholders: raw.Placeholders,
	}, nil
}

// parseFormats walks the mapping in document order. A format is either a single string,
// a list of parts or a mapping of named parts.
func parseFormats(node *yaml.Node) ([]format.Template, error) {
	if node.Kind == 0 {
		return nil, errors.ErrEmptyFormats
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: formats must be a mapping", node.Line)
	}
	var templates []format.Template
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		parts, err := formatParts(node.Content[i+1])
		if err != nil {
			return nil, fmt.Errorf("format %q: %w", name, err)
		}
		template, err := format.NewTemplate(name, parts)
		if err != nil {
			return nil, err
		}
		templates = append(templates, template)
	}
	return templates, nil
}

func formatParts(node *yaml.Node) ([]string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return []string{node.Value}, nil
	case yaml.SequenceNode:
		var parts []string
		err := node.Decode(&parts)
		return parts, err
	case yaml.MappingNode:
		parts := make([]string, 0, len(node.Content)/2)
		for i := 1; i < len(node.Content); i += 2 {
			if node.Content[i].Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: part %q must be a string", node.Content[i].Line, node.Content[i-1].Value)
			}
			parts = append(parts, node.Content[i].Value)
		}
		return parts, nil
	default:
		return nil, fmt.Errorf("line %d: unsupported format layout", node.Line)
	}
}

// parseFilter accepts plain strings (regex) or mappings with exactly one of regex, glob or words.
func parseFilter(node *yaml.Node) ([]moderation.RuleSpec, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: filter must be a list: %w", node.Line, errors.ErrInvalidRule)
	}
	specs := make([]moderation.RuleSpec, 0, len(node.Content))
	for _, item := range node.Content {
		if item.Kind == yaml.ScalarNode {
			specs = append(specs, moderation.RuleSpec{Kind: moderation.KindRegex, Pattern: item.Value})
			continue
		}
		var entry filterEntry
		if err := item.Decode(&entry); err != nil {
			return nil, fmt.Errorf("line %d: %w: %v", item.Line, errors.ErrInvalidRule, err)
		}
		spec, err := entry.toSpec()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", item.Line, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func (e filterEntry) toSpec() (moderation.RuleSpec, error) {
	var specs []moderation.RuleSpec
	if e.Regex != "" {
		specs = append(specs, moderation.RuleSpec{Name: e.Name, Kind: moderation.KindRegex, Pattern: e.Regex})
	}
	if e.Glob != "" {
		specs = append(specs, moderation.RuleSpec{Name: e.Name, Kind: moderation.KindGlob, Pattern: e.Glob})
	}
	if len(e.Words) > 0 {
		specs = append(specs, moderation.RuleSpec{Name: e.Name, Kind: moderation.KindWords, Words: e.Words})
	}
	if len(specs) != 1 {
		return moderation.RuleSpec{}, fmt.Errorf("%w: exactly one of regex, glob or words is expected", errors.ErrInvalidRule)
	}
	return specs[0], nil
}
