package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"

	"github.com/ykaravaev/secretarybot/internal/config"
)

// Load reads through the package-level viper instance, so cases cannot run
// in parallel and must reset between runs.
func loadFrom(t *testing.T, yaml string) (*config.Config, error) {
	t.Helper()
	viper.Reset()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if yaml != "" {
		if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
			t.Fatalf("writing config file: %v", err)
		}
	}
	return config.Load(path)
}

const minimalYAML = `
telegram:
  token: "123:abc"
database:
  user: bot
  password: pw
  name: secretary
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := loadFrom(t, minimalYAML)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("log defaults = %q/%q, want info/json", cfg.Log.Level, cfg.Log.Format)
	}
	if cfg.Database.Host != "localhost" || cfg.Database.Port != 5432 {
		t.Errorf("database defaults = %q:%d, want localhost:5432", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Retention.Days != 30 || cfg.Retention.SweepIntervalSeconds != 3600 || cfg.Retention.SweepBatchSize != 1000 {
		t.Errorf("unexpected retention defaults: %+v", cfg.Retention)
	}
	if cfg.Cache.Dir != "__cache__" {
		t.Errorf("cache dir default = %q, want __cache__", cfg.Cache.Dir)
	}
	if cfg.Messages.Welcome == "" {
		t.Error("welcome message default is empty")
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	cfg, err := loadFrom(t, minimalYAML+`
log:
  level: debug
  format: text
retention:
  days: 7
`)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("log = %q/%q, want debug/text", cfg.Log.Level, cfg.Log.Format)
	}
	if cfg.Retention.Days != 7 {
		t.Errorf("retention days = %d, want 7", cfg.Retention.Days)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("BOT_TELEGRAM_TOKEN", "999:env")
	t.Setenv("BOT_DATABASE_HOST", "db.internal")

	cfg, err := loadFrom(t, minimalYAML)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Telegram.Token != "999:env" {
		t.Errorf("token = %q, want env value", cfg.Telegram.Token)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("database host = %q, want db.internal", cfg.Database.Host)
	}
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("BOT_TELEGRAM_TOKEN", "123:abc")
	t.Setenv("BOT_DATABASE_USER", "bot")
	t.Setenv("BOT_DATABASE_PASSWORD", "pw")
	t.Setenv("BOT_DATABASE_NAME", "secretary")

	cfg, err := loadFrom(t, "")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Database.Name != "secretary" {
		t.Errorf("database name = %q, want secretary", cfg.Database.Name)
	}
}

func TestLoadValidationFailures(t *testing.T) {
	testCases := []struct {
		name string
		yaml string
	}{
		{
			name: "missing token",
			yaml: `
database:
  user: bot
  password: pw
  name: secretary
`,
		},
		{
			name: "invalid log level",
			yaml: minimalYAML + `
log:
  level: loud
`,
		},
		{
			name: "invalid port",
			yaml: `
telegram:
  token: "123:abc"
database:
  user: bot
  password: pw
  name: secretary
  port: 123456
`,
		},
		{
			name: "non-positive retention",
			yaml: minimalYAML + `
retention:
  days: 0
`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := loadFrom(t, tc.yaml); err == nil {
				t.Error("Load() succeeded, want validation error")
			}
		})
	}
}
