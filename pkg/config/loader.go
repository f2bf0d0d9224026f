package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the project config file looked up when --config is not
// given.
const DefaultPath = "opaldeploy.yml"

// Environment variables overriding control credentials from the file.
const (
	EnvToken    = "OPALDEPLOY_TOKEN"
	EnvUsername = "OPALDEPLOY_USERNAME"
	EnvPassword = "OPALDEPLOY_PASSWORD"
)

var validate = validator.New()

// Load reads, defaults and validates a project configuration file.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Path = path

	applyDefaults(&cfg)
	applyEnv(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Project.Source == "" {
		cfg.Project.Source = "."
	}
	if cfg.Project.Database == "" {
		cfg.Project.Database = DatabaseNone
	}
	if cfg.Project.Dependencies.Python == "" {
		cfg.Project.Dependencies.Python = "3.6"
	}
	if cfg.Project.ArchiveExcludes == nil {
		cfg.Project.ArchiveExcludes = []string{"__pycache__", ".DS_Store"}
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvToken); v != "" {
		cfg.Control.Token = v
	}
	if v := os.Getenv(EnvUsername); v != "" {
		cfg.Control.Username = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		cfg.Control.Password = v
	}
}

// Validate checks structural constraints plus the rules the struct tags
// cannot express: credential presence and version parseability.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if cfg.Control.Token == "" && (cfg.Control.Username == "" || cfg.Control.Password == "") {
		return fmt.Errorf("invalid config: control needs a token or a username and password")
	}

	if err := checkVersion("dependencies.python", cfg.Project.Dependencies.Python); err != nil {
		return err
	}
	if err := checkVersion("dependencies.redis", cfg.Project.Dependencies.Redis); err != nil {
		return err
	}

	if sv := cfg.Project.Supervisor; sv != nil {
		for name, prog := range sv.Programs {
			if prog.Command == "" {
				return fmt.Errorf("invalid config: program %q has no command", name)
			}
		}
		for _, member := range sv.Group {
			if _, ok := sv.Programs[member]; !ok {
				return fmt.Errorf("invalid config: group member %q is not a declared program", member)
			}
		}
	}
	return nil
}

// checkVersion rejects a requested dependency version that does not parse
// as a semantic version. A bad version would otherwise surface halfway
// through an install.
func checkVersion(field, version string) error {
	if version == "" {
		return nil
	}
	if !semver.IsValid("v" + version) {
		return fmt.Errorf("invalid config: %s: %q is not a valid version", field, version)
	}
	return nil
}
