// Package config loads transpiler settings from a TOML file.
package config

import (
	"os"

	"github.com/pelletier/go-toml"
	"tlog.app/go/errors"
)

type (
	Config struct {
		// Globals are host-defined names seeded into the global object.
		Globals []string `toml:"globals"`

		Output Output `toml:"output"`

		Jobs   int  `toml:"jobs" default:"1"`
		Verify bool `toml:"verify" default:"true"`

		Verbosity string `toml:"verbosity"`
	}

	Output struct {
		Format string `toml:"format" default:"json"`
		Dir    string `toml:"dir"`
	}
)

const (
	FormatJSON = "json"
	FormatText = "text"
)

var ErrFormat = errors.New("unsupported output format")

func Default() *Config {
	return &Config{
		Output: Output{Format: FormatJSON},
		Jobs:   1,
		Verify: true,
	}
}

// Load reads name over the defaults. A missing file is not an error if optional is set.
func Load(name string, optional bool) (*Config, error) {
	data, err := os.ReadFile(name)
	if optional && os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	c := Default()

	err := toml.Unmarshal(data, c)
	if err != nil {
		return nil, errors.Wrap(err, "parse config")
	}

	err = c.Validate()
	if err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Config) Validate() error {
	switch c.Output.Format {
	case FormatJSON, FormatText:
	default:
		return errors.Wrap(ErrFormat, "%q", c.Output.Format)
	}

	if c.Jobs < 1 {
		c.Jobs = 1
	}

	return nil
}

// AddGlobals appends names not yet present.
func (c *Config) AddGlobals(names ...string) {
outer:
	for _, n := range names {
		for _, g := range c.Globals {
			if g == n {
				continue outer
			}
		}

		c.Globals = append(c.Globals, n)
	}
}
