package ssh

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("opal1.opalstack.com", "myaccount")
	if cfg.Port != 22 {
		t.Errorf("got port %d, want 22", cfg.Port)
	}
	if cfg.ConnectTimeout != 30*time.Second {
		t.Errorf("got timeout %v, want 30s", cfg.ConnectTimeout)
	}
	if cfg.Address() != "opal1.opalstack.com:22" {
		t.Errorf("got address %q", cfg.Address())
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing host", func(c *Config) { c.Host = "" }, true},
		{"missing user", func(c *Config) { c.User = "" }, true},
		{"zero port", func(c *Config) { c.Port = 0 }, true},
		{"port too large", func(c *Config) { c.Port = 70000 }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig("host", "user")
			tc.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestResolveAliasUnknownHost(t *testing.T) {
	// Point home at an empty directory so no real ssh config interferes.
	t.Setenv("HOME", t.TempDir())

	cfg, err := ResolveAlias("myaccount")
	if err != nil {
		t.Fatalf("ResolveAlias failed: %v", err)
	}
	if cfg.Host != "myaccount" || cfg.User != "myaccount" {
		t.Errorf("an unknown alias should resolve to itself, got host=%q user=%q", cfg.Host, cfg.User)
	}
	if cfg.Alias != "myaccount" {
		t.Errorf("got alias %q", cfg.Alias)
	}
}

func TestResolveAliasFromSSHConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	sshDir := filepath.Join(home, ".ssh")
	writeFile(t, sshDir, "config", `Host myaccount
  HostName opal1.opalstack.com
  User myaccount
  Port 2222
  IdentityFile ~/.ssh/deploy_key
`)

	cfg, err := ResolveAlias("myaccount")
	if err != nil {
		t.Fatalf("ResolveAlias failed: %v", err)
	}
	if cfg.Host != "opal1.opalstack.com" {
		t.Errorf("got host %q", cfg.Host)
	}
	if cfg.User != "myaccount" {
		t.Errorf("got user %q", cfg.User)
	}
	if cfg.Port != 2222 {
		t.Errorf("got port %d", cfg.Port)
	}
	if want := filepath.Join(home, ".ssh", "deploy_key"); cfg.PrivateKeyPath != want {
		t.Errorf("got key path %q, want %q", cfg.PrivateKeyPath, want)
	}
}

func TestExpandHome(t *testing.T) {
	if got := expandHome("/home/me", "~/.ssh/key"); got != "/home/me/.ssh/key" {
		t.Errorf("got %q", got)
	}
	if got := expandHome("/home/me", "/abs/key"); got != "/abs/key" {
		t.Errorf("absolute paths must pass through, got %q", got)
	}
}
