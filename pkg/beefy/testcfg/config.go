package testcfg

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds test-specific configuration for registry client acceptance tests
type Config struct {
	HTTPTimeout time.Duration `env:"BEEFY_TEST_HTTP_TIMEOUT" envDefault:"30s"`
	BaseURL     string        `env:"BEEFY_TEST_BASE_URL" envDefault:"https://api.beefy.finance"`
}

// New loads test configuration from environment variables
func New() Config {
	return env.Must(env.ParseAs[Config]())
}
