// Package config loads and validates the declarative project
// configuration that drives every command: what to deploy, where, and
// which platform resources the project needs.
package config

// DatabaseKind selects the relational database backing the project.
type DatabaseKind string

const (
	DatabaseNone     DatabaseKind = "none"
	DatabaseSQLite   DatabaseKind = "sqlite"
	DatabasePostgres DatabaseKind = "postgres"
	DatabaseMariaDB  DatabaseKind = "mariadb"
)

// Managed reports whether the database kind is provisioned through the
// control panel. SQLite lives in the project directory and "none" needs
// nothing at all.
func (k DatabaseKind) Managed() bool {
	return k == DatabasePostgres || k == DatabaseMariaDB
}

// Config is the full contents of an opaldeploy.yml file.
type Config struct {
	Project Project `yaml:"project" validate:"required"`
	Control Control `yaml:"control"`

	// Path is where the config was loaded from; the directory containing
	// it is the root for local tar/scp operations.
	Path string `yaml:"-"`
}

// Project describes the application being deployed.
type Project struct {
	// Name is the project name, used as the app and database name in the
	// control panel.
	Name string `yaml:"name" validate:"required"`

	// Source is the source directory relative to the config file.
	Source string `yaml:"source"`

	// Server is the hostname of the target panel server.
	Server string `yaml:"server" validate:"required,hostname"`

	// Account is the panel account (OS user) the project runs under.
	Account string `yaml:"account" validate:"required"`

	// AccountPassword is the password used when the account has to be
	// created; the panel may override it with a generated one.
	AccountPassword string `yaml:"password"`

	// Database selects the relational database kind.
	Database DatabaseKind `yaml:"database" validate:"omitempty,oneof=none sqlite postgres mariadb"`

	// Dependencies lists requested runtime versions.
	Dependencies Dependencies `yaml:"dependencies"`

	// Supervisor describes the processes to run under supervisord.
	// When nil, all supervisor steps are no-ops.
	Supervisor *Supervisor `yaml:"supervisor"`

	// ArchiveExcludes are tar exclusion patterns for uploads and backups.
	ArchiveExcludes []string `yaml:"archive_excludes"`
}

// Dependencies holds requested versions for runtimes installed on the
// account. Versions must parse as (possibly shortened) semantic versions.
type Dependencies struct {
	Python string `yaml:"python"`
	Redis  string `yaml:"redis"`
}

// Control holds API access for the control panel. Either Token or
// Username+Password must be set; environment variables override both.
type Control struct {
	URL      string `yaml:"url" validate:"omitempty,url"`
	Token    string `yaml:"token"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Supervisor is the declarative supervisord specification.
type Supervisor struct {
	// Programs maps program names to their specifications.
	Programs map[string]Program `yaml:"programs"`

	// Group lists program names joined into one process group named
	// after the project.
	Group []string `yaml:"group"`

	// Environment entries are joined into the supervisord environment
	// directive.
	Environment []string `yaml:"environment"`

	// Settings are extra supervisord section directives. Explicit values
	// always win over computed defaults.
	Settings map[string]string `yaml:",inline"`
}

// Loglevel returns the configured loglevel, defaulting to info.
func (s *Supervisor) Loglevel() string {
	if s == nil {
		return "info"
	}
	if lvl, ok := s.Settings["loglevel"]; ok && lvl != "" {
		return lvl
	}
	return "info"
}

// Program describes one supervised process.
type Program struct {
	// Command selects the command template: celery-worker, celery-beat,
	// redis-server, gunicorn or uwsgi.
	Command string `yaml:"command" validate:"required"`

	// Args are command-line arguments for the selected template.
	Args map[string]string `yaml:"args"`

	// Directives are supervisord program directives (autostart, user,
	// directory, log redirection...). Explicit values always win over
	// computed defaults.
	Directives map[string]string `yaml:",inline"`
}
