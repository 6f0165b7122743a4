// Package config reads walking and simulation configs from JSON or YAML files.
//
// Files are layered over the defaults so a file only needs the values it changes.
package config

import (
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"go.viam.com/biped/sim"
	"go.viam.com/biped/walking"
)

// Decode reads the file at path and decodes it over base. Keys that do not belong to T are an error.
func Decode[T any](path string, base T) (T, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("json")
	}
	if err := v.ReadInConfig(); err != nil {
		return base, errors.Wrapf(err, "cannot read config %q", path)
	}

	out := base
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Result:      &out,
		ErrorUnused: true,
	})
	if err != nil {
		return base, err
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return base, errors.Wrapf(err, "cannot decode config %q", path)
	}
	return out, nil
}

// Load reads a walking config from path over walking.DefaultConfig and validates it.
func Load(path string) (walking.Config, error) {
	cfg, err := Decode(path, walking.DefaultConfig())
	if err != nil {
		return walking.Config{}, err
	}
	if err := cfg.Validate(name(path)); err != nil {
		return walking.Config{}, err
	}
	return cfg, nil
}

// LoadSimulation reads a simulation config from path over sim.DefaultConfig and validates it.
func LoadSimulation(path string) (sim.Config, error) {
	cfg, err := Decode(path, sim.DefaultConfig())
	if err != nil {
		return sim.Config{}, err
	}
	if err := cfg.Validate(name(path)); err != nil {
		return sim.Config{}, err
	}
	return cfg, nil
}

func name(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// WalkingSchema describes the walking config file.
func WalkingSchema() *jsonschema.Schema {
	return jsonschema.Reflect(&walking.Config{})
}

// SimulationSchema describes the simulation config file.
func SimulationSchema() *jsonschema.Schema {
	return jsonschema.Reflect(&sim.Config{})
}
