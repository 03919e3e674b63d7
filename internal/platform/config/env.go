// Package config loads process configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Prefix namespaces every environment variable read by this module.
const Prefix = "TRESORGATE_"

// ParseEnv loads configuration from prefixed process environment variables.
func ParseEnv(target any) error {
	return parse(target, env.Options{Prefix: Prefix})
}

func parse(target any, opts env.Options) error {
	if err := env.ParseWithOptions(target, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
