package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Validatable is implemented by configs that check cross-field constraints
// after the environment has been parsed.
type Validatable interface {
	Validate() error
}

// Load parses environment variables into cfg using its `env` tags. If cfg
// implements Validatable, Validate is called once parsing succeeds.
//
//	type Config struct {
//	    Port    int             `env:"STOREFRONT_HTTP_PORT" envDefault:"8080"`
//	    TaxRate decimal.Decimal `env:"TAX_RATE" envDefault:"0.18"`
//	}
func Load(cfg any) error {
	if err := env.ParseWithOptions(cfg, env.Options{FuncMap: decimalParsers()}); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if v, ok := cfg.(Validatable); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
	}
	return nil
}
