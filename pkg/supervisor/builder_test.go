package supervisor

import (
	"strings"
	"testing"

	"github.com/opaldeploy/opaldeploy/pkg/config"
	"github.com/opaldeploy/opaldeploy/pkg/opalapi"
	"github.com/opaldeploy/opaldeploy/pkg/pipeline"
)

// normalize collapses the ini writer's key alignment padding so tests
// can assert on logical key = value lines.
func normalize(content []byte) string {
	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.Join(lines, "\n")
}

func testProject(programs map[string]config.Program, group []string) *config.Project {
	return &config.Project{
		Name:    "myproject",
		Account: "myaccount",
		Supervisor: &config.Supervisor{
			Programs: programs,
			Group:    group,
		},
	}
}

func testData() *pipeline.Data {
	d := &pipeline.Data{
		AppInfo:        &opalapi.App{Name: "myproject", Port: 40100},
		CacheAppInfo:   &opalapi.App{Name: "myproject_redis", Port: 40200},
		RedisServerBin: "/home/myaccount/bin/redis-server",
	}
	d.DerivePaths("myaccount", "myproject")
	return d
}

func TestBuildMainConfigSections(t *testing.T) {
	project := testProject(nil, nil)
	content, path, err := BuildMainConfig(project)
	if err != nil {
		t.Fatalf("BuildMainConfig failed: %v", err)
	}
	if path != "/home/myaccount/etc/supervisord.conf" {
		t.Errorf("unexpected remote path: %s", path)
	}

	text := normalize(content)
	for _, want := range []string{
		"[unix_http_server]",
		"[supervisord]",
		"[rpcinterface:supervisor]",
		"[supervisorctl]",
		"[include]",
		"file = /home/myaccount/tmp/supervisor.sock",
		"serverurl = unix:///home/myaccount/tmp/supervisor.sock",
		"files = /home/myaccount/etc/supervisor.d/*.conf",
		"loglevel = info",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("main config missing %q:\n%s", want, text)
		}
	}
}

func TestBuildMainConfigSettingsWin(t *testing.T) {
	project := testProject(nil, nil)
	project.Supervisor.Settings = map[string]string{"loglevel": "debug", "minfds": "4096"}
	project.Supervisor.Environment = []string{"LANG=en_US.UTF-8", "LC_ALL=en_US.UTF-8"}

	content, _, err := BuildMainConfig(project)
	if err != nil {
		t.Fatalf("BuildMainConfig failed: %v", err)
	}

	text := normalize(content)
	if !strings.Contains(text, "loglevel = debug") {
		t.Errorf("explicit loglevel should win:\n%s", text)
	}
	if !strings.Contains(text, "minfds") {
		t.Errorf("extra settings should pass through:\n%s", text)
	}
	if !strings.Contains(text, "environment = LANG=en_US.UTF-8, LC_ALL=en_US.UTF-8") {
		t.Errorf("environment entries should be joined:\n%s", text)
	}
}

func TestBuildProgramConfigGunicornDefaults(t *testing.T) {
	project := testProject(map[string]config.Program{
		"web": {Command: CommandGunicorn, Args: map[string]string{"workers": "3"}},
	}, nil)

	content, path, err := BuildProgramConfig(project, testData())
	if err != nil {
		t.Fatalf("BuildProgramConfig failed: %v", err)
	}
	if path != "/home/myaccount/etc/supervisor.d/myproject.conf" {
		t.Errorf("unexpected remote path: %s", path)
	}

	text := normalize(content)
	if !strings.Contains(text, "[program:web]") {
		t.Fatalf("missing program section:\n%s", text)
	}
	// bind defaults to localhost on the panel-assigned app port
	if !strings.Contains(text, "--bind 127.0.0.1:40100") {
		t.Errorf("gunicorn bind not defaulted from the app port:\n%s", text)
	}
	if !strings.Contains(text, "--workers 3") {
		t.Errorf("explicit args should be rendered:\n%s", text)
	}
	if !strings.Contains(text, "myproject.wsgi:application") {
		t.Errorf("wsgi module should be derived from the project name:\n%s", text)
	}
	for _, directive := range []string{
		"user = myaccount",
		"directory = /home/myaccount/apps/myproject/app",
		"autostart = true",
		"autorestart = true",
		"stopasgroup = true",
		"stopsignal = QUIT",
		"redirect_stderr = true",
		"stdout_logfile = /home/myaccount/logs/apps/myproject/web.log",
	} {
		if !strings.Contains(text, directive) {
			t.Errorf("missing default directive %q:\n%s", directive, text)
		}
	}
}

func TestBuildProgramConfigGunicornExplicitBindWins(t *testing.T) {
	project := testProject(map[string]config.Program{
		"web": {Command: CommandGunicorn, Args: map[string]string{"bind": "0.0.0.0:9000"}},
	}, nil)

	content, _, err := BuildProgramConfig(project, testData())
	if err != nil {
		t.Fatalf("BuildProgramConfig failed: %v", err)
	}
	if !strings.Contains(string(content), "--bind 0.0.0.0:9000") {
		t.Errorf("explicit bind should win:\n%s", content)
	}
	if strings.Contains(string(content), "40100") {
		t.Errorf("defaulted bind should not appear:\n%s", content)
	}
}

func TestBuildProgramConfigRedisDefaults(t *testing.T) {
	project := testProject(map[string]config.Program{
		"redis": {Command: CommandRedisServer},
	}, nil)

	content, _, err := BuildProgramConfig(project, testData())
	if err != nil {
		t.Fatalf("BuildProgramConfig failed: %v", err)
	}

	text := normalize(content)
	// port comes from the cache app record
	if !strings.Contains(text, "--port 40200") {
		t.Errorf("redis port not defaulted from the cache app:\n%s", text)
	}
	if !strings.Contains(text, "/home/myaccount/bin/redis-server /home/myaccount/etc/redis.conf") {
		t.Errorf("redis command line malformed:\n%s", text)
	}
	if !strings.Contains(text, "directory = /home/myaccount/apps/myproject_redis") {
		t.Errorf("redis directory should point at the cache app:\n%s", text)
	}
}

func TestBuildProgramConfigCeleryArgsUseEquals(t *testing.T) {
	project := testProject(map[string]config.Program{
		"worker": {Command: CommandCeleryWorker, Args: map[string]string{"concurrency": "2"}},
		"beat":   {Command: CommandCeleryBeat},
	}, nil)

	content, _, err := BuildProgramConfig(project, testData())
	if err != nil {
		t.Fatalf("BuildProgramConfig failed: %v", err)
	}

	text := normalize(content)
	if !strings.Contains(text, "/home/myaccount/apps/myproject/env/bin/celery -A myproject worker") {
		t.Errorf("celery worker command malformed:\n%s", text)
	}
	if !strings.Contains(text, "--concurrency=2") {
		t.Errorf("celery args should use --key=value form:\n%s", text)
	}
	if !strings.Contains(text, "--loglevel=INFO") {
		t.Errorf("celery loglevel should default to the uppercased supervisor level:\n%s", text)
	}
	if !strings.Contains(text, "--pidfile=/home/myaccount/apps/myproject/tmp/celerybeat.pid") {
		t.Errorf("celery beat pidfile not defaulted:\n%s", text)
	}
}

func TestBuildProgramConfigSkipsUwsgiAndUnknown(t *testing.T) {
	project := testProject(map[string]config.Program{
		"web":     {Command: CommandUwsgi},
		"mystery": {Command: "nodejs"},
		"worker":  {Command: CommandCeleryWorker},
	}, nil)

	content, _, err := BuildProgramConfig(project, testData())
	if err != nil {
		t.Fatalf("skipped programs must not fail the build: %v", err)
	}

	text := normalize(content)
	if strings.Contains(text, "[program:web]") {
		t.Errorf("uwsgi program should be skipped:\n%s", text)
	}
	if strings.Contains(text, "[program:mystery]") {
		t.Errorf("unknown command should be skipped:\n%s", text)
	}
	if !strings.Contains(text, "[program:worker]") {
		t.Errorf("remaining programs should still render:\n%s", text)
	}
}

func TestBuildProgramConfigGroupFirst(t *testing.T) {
	project := testProject(map[string]config.Program{
		"worker": {Command: CommandCeleryWorker},
		"beat":   {Command: CommandCeleryBeat},
	}, []string{"worker", "beat"})

	content, _, err := BuildProgramConfig(project, testData())
	if err != nil {
		t.Fatalf("BuildProgramConfig failed: %v", err)
	}

	text := normalize(content)
	groupIdx := strings.Index(text, "[group:myproject]")
	if groupIdx < 0 {
		t.Fatalf("missing group section:\n%s", text)
	}
	if !strings.Contains(text, "programs = worker, beat") {
		t.Errorf("group members malformed:\n%s", text)
	}
	if progIdx := strings.Index(text, "[program:"); progIdx >= 0 && progIdx < groupIdx {
		t.Errorf("group section should come before program sections:\n%s", text)
	}
}

func TestBuildProgramConfigStderrLogfileDisablesRedirect(t *testing.T) {
	project := testProject(map[string]config.Program{
		"worker": {
			Command:    CommandCeleryWorker,
			Directives: map[string]string{"stderr_logfile": "/home/myaccount/logs/apps/myproject/worker.err"},
		},
	}, nil)

	content, _, err := BuildProgramConfig(project, testData())
	if err != nil {
		t.Fatalf("BuildProgramConfig failed: %v", err)
	}

	text := normalize(content)
	if strings.Contains(text, "redirect_stderr") {
		t.Errorf("redirect_stderr should be omitted when stderr_logfile is set:\n%s", text)
	}
	if !strings.Contains(text, "stderr_logfile") {
		t.Errorf("explicit stderr_logfile should be rendered:\n%s", text)
	}
}
