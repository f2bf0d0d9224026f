package pipeline

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/opaldeploy/opaldeploy/pkg/config"
	"github.com/opaldeploy/opaldeploy/pkg/opalapi"
	"github.com/opaldeploy/opaldeploy/pkg/transports"
)

// Context is the state threaded through a pipeline run: the read-only
// project configuration, the mutable accumulator, and the executor
// commands currently run against.
type Context struct {
	Project *config.Project
	Control *config.Control

	// Data accumulates resource ids and info records as steps discover
	// or create them. Populated incrementally, never rolled back.
	Data *Data

	// Exec is the bound executor. It starts pointed at the local machine
	// and is swapped exactly once, when account SSH access is
	// established.
	Exec transports.Executor

	// Local always points at the operator's machine, for steps that
	// archive and push files from the local checkout after the bound
	// executor has moved to the remote host.
	Local transports.Executor

	// API is attached by the login step.
	API *opalapi.Client

	// ConfigDir is the directory the project config was loaded from;
	// local archive operations run relative to it.
	ConfigDir string
}

// NewContext builds a fresh context for one command invocation.
func NewContext(cfg *config.Config, exec transports.Executor) *Context {
	return &Context{
		Project:   &cfg.Project,
		Control:   &cfg.Control,
		Data:      &Data{},
		Exec:      exec,
		Local:     exec,
		ConfigDir: filepath.Dir(cfg.Path),
	}
}

// Data is the accumulator of everything a run discovers or creates.
// Every field a step ever writes is named here; steps depend on fields
// populated by earlier steps.
type Data struct {
	ServerID string `json:"server_id,omitempty"`

	AccountID       string          `json:"account_id,omitempty"`
	AccountInfo     *opalapi.OSUser `json:"account_info,omitempty"`
	AccountPassword string          `json:"account_password,omitempty"`

	AppID   string       `json:"app_id,omitempty"`
	AppInfo *opalapi.App `json:"app_info,omitempty"`

	CacheAppID   string       `json:"cache_app_id,omitempty"`
	CacheAppInfo *opalapi.App `json:"cache_app_info,omitempty"`

	SupervisorAppID string `json:"supervisor_app_id,omitempty"`

	DBID   string            `json:"db_id,omitempty"`
	DBInfo *opalapi.Database `json:"db_info,omitempty"`

	// Filesystem paths derived from account and project names.
	AppPath    string `json:"app_path,omitempty"`
	LogPath    string `json:"log_path,omitempty"`
	SrcPath    string `json:"src_path,omitempty"`
	EnvPath    string `json:"env_path,omitempty"`
	BackupPath string `json:"backup_path,omitempty"`

	// Executable paths found on the account.
	PythonBin      string `json:"python_bin,omitempty"`
	PipBin         string `json:"pip_bin,omitempty"`
	RedisServerBin string `json:"redis_server_bin,omitempty"`
	RedisCLIBin    string `json:"redis_cli_bin,omitempty"`
}

// DerivePaths fills in the filesystem layout for the project under the
// account's home directory.
func (d *Data) DerivePaths(account, project string) {
	d.AppPath = strings.ToLower("/home/" + account + "/apps/" + project)
	d.LogPath = strings.ToLower("/home/" + account + "/logs/apps/" + project)
	d.SrcPath = d.AppPath + "/app"
	d.EnvPath = d.AppPath + "/env"
	d.BackupPath = d.AppPath + "/backup"
}

// Summary renders the accumulated data as indented JSON for the operator.
func (d *Data) Summary() string {
	out, err := json.MarshalIndent(d, "", "    ")
	if err != nil {
		return ""
	}
	return string(out)
}
