// Package supervisor synthesizes supervisord configuration from the
// declarative program specification and uploads it to the deployment
// account, skipping the write when nothing changed.
package supervisor

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/ini.v1"

	"github.com/opaldeploy/opaldeploy/pkg/config"
	"github.com/opaldeploy/opaldeploy/pkg/pipeline"
)

// Program command selectors.
const (
	CommandCeleryWorker = "celery-worker"
	CommandCeleryBeat   = "celery-beat"
	CommandRedisServer  = "redis-server"
	CommandGunicorn     = "gunicorn"
	CommandUwsgi        = "uwsgi"
)

// BuildMainConfig renders supervisord.conf for the account: control
// socket, daemon settings, RPC interface, control client and the include
// directive for per-project config files.
func BuildMainConfig(project *config.Project) ([]byte, string, error) {
	account := project.Account
	socket := fmt.Sprintf("/home/%s/tmp/supervisor.sock", account)

	f := ini.Empty()

	sec, err := f.NewSection("unix_http_server")
	if err != nil {
		return nil, "", err
	}
	sec.Key("file").SetValue(socket)

	sec, err = f.NewSection("supervisord")
	if err != nil {
		return nil, "", err
	}
	sv := project.Supervisor
	settings := map[string]string{}
	if sv != nil {
		for k, v := range sv.Settings {
			settings[k] = v
		}
		if len(sv.Environment) > 0 {
			if _, ok := settings["environment"]; !ok {
				settings["environment"] = strings.Join(sv.Environment, ", ")
			}
		}
	}
	setDefault(settings, "logfile", fmt.Sprintf("/home/%s/logs/apps/%s_supervisor/supervisord.log", account, account))
	setDefault(settings, "loglevel", project.Supervisor.Loglevel())
	setDefault(settings, "pidfile", fmt.Sprintf("/home/%s/tmp/supervisord.pid", account))
	writeSorted(sec, settings)

	sec, err = f.NewSection("rpcinterface:supervisor")
	if err != nil {
		return nil, "", err
	}
	sec.Key("supervisor.rpcinterface_factory").SetValue("supervisor.rpcinterface:make_main_rpcinterface")

	sec, err = f.NewSection("supervisorctl")
	if err != nil {
		return nil, "", err
	}
	sec.Key("serverurl").SetValue("unix://" + socket)

	sec, err = f.NewSection("include")
	if err != nil {
		return nil, "", err
	}
	sec.Key("files").SetValue(fmt.Sprintf("/home/%s/etc/supervisor.d/*.conf", account))

	remotePath := fmt.Sprintf("/home/%s/etc/supervisord.conf", account)
	return render(f), remotePath, nil
}

// BuildProgramConfig renders the per-project config: one program section
// per declared program with its command line resolved from the selector,
// plus an optional group section joining programs under the project name.
func BuildProgramConfig(project *config.Project, data *pipeline.Data) ([]byte, string, error) {
	sv := project.Supervisor
	f := ini.Empty()

	if sv != nil && len(sv.Group) > 0 {
		sec, err := f.NewSection("group:" + project.Name)
		if err != nil {
			return nil, "", err
		}
		sec.Key("programs").SetValue(strings.Join(sv.Group, ", "))
	}

	names := programNames(sv)
	for _, name := range names {
		prog := sv.Programs[name]

		command, directives, ok := resolveCommand(project, data, name, prog)
		if !ok {
			continue
		}

		sec, err := f.NewSection("program:" + name)
		if err != nil {
			return nil, "", err
		}
		sec.Key("command").SetValue(command)

		for k, v := range prog.Directives {
			directives[k] = v
		}
		setDefault(directives, "user", project.Account)
		setDefault(directives, "directory", data.SrcPath)
		setDefault(directives, "autostart", "true")
		setDefault(directives, "autorestart", "true")
		// stop the whole process tree, see Supervisor/supervisor#600
		setDefault(directives, "stopasgroup", "true")
		setDefault(directives, "stopsignal", "QUIT")
		setDefault(directives, "stdout_logfile", fmt.Sprintf("%s/%s.log", data.LogPath, name))
		if _, ok := directives["stderr_logfile"]; !ok {
			setDefault(directives, "redirect_stderr", "true")
		}
		writeSorted(sec, directives)
	}

	remotePath := fmt.Sprintf("/home/%s/etc/supervisor.d/%s.conf", project.Account, project.Name)
	return render(f), remotePath, nil
}

// resolveCommand maps a program's command selector to a full command
// line plus computed section directives. ok=false means the program is
// skipped; the remaining programs are still rendered.
func resolveCommand(project *config.Project, data *pipeline.Data, name string, prog config.Program) (string, map[string]string, bool) {
	loglevel := project.Supervisor.Loglevel()
	args := map[string]string{}
	for k, v := range prog.Args {
		args[k] = v
	}
	directives := map[string]string{}

	switch prog.Command {
	case CommandCeleryWorker:
		setDefault(args, "loglevel", strings.ToUpper(loglevel))
		return fmt.Sprintf("%s/bin/celery -A %s worker %s",
			data.EnvPath, project.Name, buildArgs(args, "=")), directives, true

	case CommandCeleryBeat:
		setDefault(args, "loglevel", strings.ToUpper(loglevel))
		setDefault(args, "pidfile", data.AppPath+"/tmp/celerybeat.pid")
		return fmt.Sprintf("%s/bin/celery -A %s beat %s",
			data.EnvPath, project.Name, buildArgs(args, "=")), directives, true

	case CommandRedisServer:
		if data.CacheAppInfo != nil {
			setDefault(args, "port", fmt.Sprintf("%d", data.CacheAppInfo.Port))
			setDefault(args, "logfile", fmt.Sprintf("/home/%s/logs/apps/%s/redis.log", project.Account, data.CacheAppInfo.Name))
			directives["directory"] = fmt.Sprintf("/home/%s/apps/%s", project.Account, data.CacheAppInfo.Name)
		}
		setDefault(args, "dir", fmt.Sprintf("/home/%s/tmp", project.Account))
		setDefault(args, "pidfile", fmt.Sprintf("/home/%s/tmp/redis.pid", project.Account))
		setDefault(args, "loglevel", strings.ToUpper(loglevel))
		return fmt.Sprintf("%s /home/%s/etc/redis.conf %s",
			data.RedisServerBin, project.Account, buildArgs(args, " ")), directives, true

	case CommandGunicorn:
		setDefault(args, "pid", data.AppPath+"/tmp/gunicorn.pid")
		if data.AppInfo != nil {
			setDefault(args, "bind", fmt.Sprintf("127.0.0.1:%d", data.AppInfo.Port))
		}
		// log to stdout/stderr and let supervisor capture it
		setDefault(args, "access-logfile", "-")
		setDefault(args, "error-logfile", "-")
		if lvl, ok := args["loglevel"]; ok {
			delete(args, "loglevel")
			args["log-level"] = lvl
		}
		return fmt.Sprintf("%s/bin/gunicorn %s %s.wsgi:application",
			data.EnvPath, buildArgs(args, " "), project.Name), directives, true

	case CommandUwsgi:
		log.Warn().Str("program", name).Msg("uwsgi programs are not supported, skipping")
		return "", nil, false

	default:
		log.Error().Str("program", name).Str("command", prog.Command).Msg("unknown supervisor command, skipping program")
		return "", nil, false
	}
}

// buildArgs renders an argument map as --key<delim>value pairs in key
// order.
func buildArgs(args map[string]string, delim string) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(args))
	for _, k := range keys {
		parts = append(parts, "--"+k+delim+args[k])
	}
	return strings.Join(parts, " ")
}

func programNames(sv *config.Supervisor) []string {
	if sv == nil {
		return nil
	}
	names := make([]string, 0, len(sv.Programs))
	for name := range sv.Programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func setDefault(m map[string]string, key, value string) {
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}

func writeSorted(sec *ini.Section, values map[string]string) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sec.Key(k).SetValue(values[k])
	}
}

func render(f *ini.File) []byte {
	var buf bytes.Buffer
	_, _ = f.WriteTo(&buf)
	return buf.Bytes()
}
