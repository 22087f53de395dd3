package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// GATEWAY_ADDR points to a running chat-pipeline, the suite is skipped without it
	GatewayAddr string `envconfig:"GATEWAY_ADDR"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
	// E2E_OVERSIGHT_NAME must hold staff.filter in the chat configuration of the target
	OversightName string `envconfig:"E2E_OVERSIGHT_NAME" default:"e2e_mod"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
