package runtime

import (
	"chat-pipeline/domain"
	"chat-pipeline/errors"
	"chat-pipeline/format"
	"chat-pipeline/render"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newLoader() *ChatConfigLoader {
	return NewChatConfigLoader(time.Second, logs.GetLoggerFromLevel(slog.LevelDebug))
}

func TestChatConfigLoader_EmbeddedDefaults(t *testing.T) {
	req := require.New(t)

	// When no path is given
	config, err := newLoader().Load("")

	// Then the embedded file is used, formats keep their declared order
	req.NoError(err)
	req.Equal([]string{"owner", "admin", "vip", "default"}, config.Registry.Names())
	req.Equal("default", config.Registry.Default().Name)
	req.Equal(4, config.Filter.Len())
	req.Equal("ElytraPvP", config.Placeholders["network"])
}

func TestChatConfigLoader_DerivesRulesInDeclaredOrder(t *testing.T) {
	req := require.New(t)

	// Given formats declared out of alphabetical order and no explicit rules
	config, err := newLoader().Parse([]byte(`
formats:
  zeta: "Z %message%"
  alpha: "A %message%"
  default: "%message%"
`))
	req.NoError(err)

	// Then one "format.<name>" rule per format is derived, in document order
	req.Equal([]format.Rule{
		{Permission: "format.zeta", Format: "zeta"},
		{Permission: "format.alpha", Format: "alpha"},
		{Permission: "format.default", Format: "default"},
	}, config.Registry.Rules())

	// And a sender holding both picks the first declared
	picked := format.Resolve(domain.NewCapabilitySet("format.alpha", "format.zeta"), config.Registry)
	req.Equal("zeta", picked.Name)
}

func TestChatConfigLoader_ExplicitRules(t *testing.T) {
	req := require.New(t)

	// Given explicit rules pointing to a format by a custom permission
	config, err := newLoader().Parse([]byte(`
formats:
  staff: "[Staff] %message%"
  plain: "%message%"
default-format: plain
rules:
  - permission: server.staff
    format: staff
`))
	req.NoError(err)

	// Then only the declared rule exists
	req.Equal([]format.Rule{{Permission: "server.staff", Format: "staff"}}, config.Registry.Rules())
	req.Equal("staff", format.Resolve(domain.NewCapabilitySet("server.staff"), config.Registry).Name)
	req.Equal("plain", format.Resolve(domain.NewCapabilitySet("format.staff"), config.Registry).Name)
}

func TestChatConfigLoader_FormatLayouts(t *testing.T) {
	req := require.New(t)

	// Given the three accepted layouts of a format
	config, err := newLoader().Parse([]byte(`
formats:
  scalar: "<%player_name%> %message%"
  list: ["<", "%player_name%", "> ", "%message%"]
  default:
    name: "<%player_name%> "
    message: "%message%"
`))
	req.NoError(err)

	// Then they all render the same line
	subs := map[string]string{"player_name": "Steve"}
	for _, name := range []string{"scalar", "list", "default"} {
		template, ok := config.Registry.Template(name)
		req.True(ok, name)
		req.Equal("<Steve> hi", render.Render(template, "hi", true, subs), name)
	}
}

func TestChatConfigLoader_ConfigurationErrors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want error
	}{
		{
			name: "no formats",
			yaml: "default-format: default\n",
			want: errors.ErrEmptyFormats,
		},
		{
			name: "missing default",
			yaml: "formats:\n  vip: \"%message%\"\n",
			want: errors.ErrNoDefaultFormat,
		},
		{
			name: "no body slot",
			yaml: "formats:\n  default: \"%player_name%\"\n",
			want: errors.ErrMissingBodySlot,
		},
		{
			name: "rule to unknown format",
			yaml: "formats:\n  default: \"%message%\"\nrules:\n  - permission: a\n    format: ghost\n",
			want: errors.ErrUnknownFormat,
		},
		{
			name: "malformed regex",
			yaml: "formats:\n  default: \"%message%\"\nfilter:\n  - \"(unclosed\"\n",
			want: errors.ErrInvalidRule,
		},
		{
			name: "ambiguous rule",
			yaml: "formats:\n  default: \"%message%\"\nfilter:\n  - regex: a\n    glob: b\n",
			want: errors.ErrInvalidRule,
		},
		{
			name: "filter is not a list",
			yaml: "formats:\n  default: \"%message%\"\nfilter: spam\n",
			want: errors.ErrInvalidRule,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newLoader().Parse([]byte(tc.yaml))
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestChatConfigLoader_PermissionsAndFile(t *testing.T) {
	req := require.New(t)

	// Given a config file granting colour to everyone and a format to one player
	path := filepath.Join(t.TempDir(), "chat.yaml")
	req.NoError(os.WriteFile(path, []byte(`
formats:
  vip: "[VIP] %message%"
  default: "%message%"
permissions:
  default: [elytrachat.color]
  players:
    Steve: [format.vip]
`), 0o600))

	// When it is loaded
	config, err := newLoader().Load(path)
	req.NoError(err)

	// Then the permissions apply by case-insensitive name
	steve := domain.Participant{Name: "steve"}
	alex := domain.Participant{Name: "Alex"}
	req.True(config.Permissions.HasCapability(steve, "format.vip"))
	req.True(config.Permissions.HasCapability(alex, domain.CapabilityColor))
	req.False(config.Permissions.HasCapability(alex, "format.vip"))
}

func TestChatConfigLoader_MissingFile(t *testing.T) {
	_, err := newLoader().Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
