package compiler

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/goalc/internal/diag"
)

// Config is the on-disk form of Options.
//
//	suppress: [W402, W406]
//	warnings_as_errors: true
//	debug_info: true
//	naming:
//	  database_prefix: DB_
type Config struct {
	Suppress         []string `yaml:"suppress"`
	WarningsAsErrors bool     `yaml:"warnings_as_errors"`
	DebugInfo        bool     `yaml:"debug_info"`
	Naming           *Naming  `yaml:"naming"`
}

// LoadConfig reads a YAML config file. Unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML config document.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	for _, c := range cfg.Suppress {
		if !validCode(c) {
			return nil, fmt.Errorf("decode config: %q is not a diagnostic code", c)
		}
	}
	return &cfg, nil
}

// Apply layers the config over opts.
func (c *Config) Apply(opts Options) Options {
	for _, code := range c.Suppress {
		opts.Suppress = append(opts.Suppress, diag.Code(strings.ToUpper(code)))
	}
	opts.WarningsAsErrors = opts.WarningsAsErrors || c.WarningsAsErrors
	opts.DebugInfo = opts.DebugInfo || c.DebugInfo
	if c.Naming != nil {
		opts.Naming = *c.Naming
	}
	return opts
}

// ParseCodes validates a list of diagnostic codes, e.g. from a flag.
func ParseCodes(codes []string) ([]diag.Code, error) {
	out := make([]diag.Code, 0, len(codes))
	for _, c := range codes {
		if !validCode(c) {
			return nil, fmt.Errorf("%q is not a diagnostic code", c)
		}
		out = append(out, diag.Code(strings.ToUpper(c)))
	}
	return out, nil
}

// validCode accepts E or W followed by three digits.
func validCode(c string) bool {
	if len(c) != 4 {
		return false
	}
	switch c[0] {
	case 'E', 'e', 'W', 'w':
	default:
		return false
	}
	for _, r := range c[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
