package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.Copy.Text || !cfg.Copy.Media || !cfg.Copy.Documents {
		t.Error("all content types should be selected by default")
	}
	if cfg.Copy.Pacing() != 500*time.Millisecond {
		t.Errorf("default pacing = %v, want 500ms", cfg.Copy.Pacing())
	}
	if cfg.Copy.MaxRetries != 5 {
		t.Errorf("default maxRetries = %d, want 5", cfg.Copy.MaxRetries)
	}
	if cfg.Copy.ReconnectInterval() != 5*time.Second {
		t.Errorf("default reconnect interval = %v, want 5s", cfg.Copy.ReconnectInterval())
	}
	if cfg.Copy.ResolveRetry != "shared" {
		t.Errorf("default resolveRetry = %q, want shared", cfg.Copy.ResolveRetry)
	}
	if cfg.Copy.Journal {
		t.Error("journal should be off by default")
	}
	if cfg.Client.CodeTimeout() != time.Minute {
		t.Errorf("default code timeout = %v, want 1m", cfg.Client.CodeTimeout())
	}
	if cfg.Notify.Enabled {
		t.Error("notify should be disabled by default")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("default log level = %q, want info", cfg.Log.Level)
	}
}

func TestDataPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/tmp/tgcopy-test"

	if got := cfg.LogDir(); got != "/tmp/tgcopy-test/logs" {
		t.Errorf("LogDir() = %q", got)
	}
	if got := cfg.JournalDir(); got != "/tmp/tgcopy-test/journal" {
		t.Errorf("JournalDir() = %q", got)
	}
	if got := cfg.JobsPath(); got != "/tmp/tgcopy-test/jobs.json" {
		t.Errorf("JobsPath() = %q", got)
	}
	if got := cfg.CredentialsPath(); got != "/tmp/tgcopy-test/credentials.json" {
		t.Errorf("CredentialsPath() = %q", got)
	}
}

func TestDataPathDefault(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = ""
	path := cfg.DataPath()

	if path == "" || path == "~/.tgcopy" {
		t.Errorf("DataPath() = %q, want expanded default", path)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Copy.MaxRetries != 5 {
		t.Errorf("maxRetries = %d, want default 5", cfg.Copy.MaxRetries)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Copy.Documents = false
	cfg.Copy.ResolveRetry = "unbounded"
	cfg.Stream.Addr = ":9999"

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config permissions = %o, want 600", perm)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Copy.Documents {
		t.Error("documents should be false after round trip")
	}
	if loaded.Copy.ResolveRetry != "unbounded" {
		t.Errorf("resolveRetry = %q", loaded.Copy.ResolveRetry)
	}
	if loaded.Stream.Addr != ":9999" {
		t.Errorf("stream addr = %q", loaded.Stream.Addr)
	}
}

func TestLoadConfigPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"copy":{"pacingMs":100}}`), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Copy.PacingMs != 100 {
		t.Errorf("pacingMs = %d, want 100", cfg.Copy.PacingMs)
	}
	if cfg.Copy.MaxRetries != 5 {
		t.Errorf("maxRetries = %d, want default 5", cfg.Copy.MaxRetries)
	}
	if cfg.Client.DeviceModel != "Desktop" {
		t.Errorf("deviceModel = %q, want default", cfg.Client.DeviceModel)
	}
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("TGCOPY_LOG_LEVEL", "debug")
	t.Setenv("TGCOPY_NOTIFY_CHAT_ID", "-100123")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Notify.ChatID != -100123 {
		t.Errorf("notify chat = %d, want -100123", cfg.Notify.ChatID)
	}
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	if Exists(path) {
		t.Fatal("config should not exist yet")
	}
	if err := InitConfig(path); err != nil {
		t.Fatalf("InitConfig: %v", err)
	}
	if !Exists(path) {
		t.Error("config should exist after InitConfig")
	}
}

func TestCredentialsRoundTrip(t *testing.T) {
	store := FileCredentials{Path: filepath.Join(t.TempDir(), CredentialsFile)}

	if _, err := store.Load(); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("Load() on empty store = %v, want ErrNoCredentials", err)
	}

	want := Credentials{APIID: 12345, APIHash: "abcdef", Phone: "+15550001234"}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(store.Path)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"api_id"`, `"api_hash"`, `"phone"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("credentials file lacks %s: %s", key, data)
		}
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}

	if err := store.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := store.Remove(); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Setenv("TGCOPY_API_ID", "777")
	t.Setenv("TGCOPY_API_HASH", "hash")
	t.Setenv("TGCOPY_PHONE", "+1000")

	store := FileCredentials{Path: filepath.Join(t.TempDir(), CredentialsFile)}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.APIID != 777 || got.APIHash != "hash" || got.Phone != "+1000" {
		t.Errorf("Load() = %+v", got)
	}
}

func TestCredentialsValidate(t *testing.T) {
	err := Credentials{APIHash: "x"}.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if got := err.Error(); got != "missing credentials: api_id, phone" {
		t.Errorf("Validate() = %q", got)
	}
	if err := (Credentials{APIID: 1, APIHash: "x", Phone: "+1"}).Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestExpandPath(t *testing.T) {
	// Empty path
	if got := expandPath(""); got != "" {
		t.Errorf("expandPath('') = %q, want empty", got)
	}

	// Tilde expansion
	result := expandPath("~/test")
	if result == "~/test" {
		t.Error("expandPath should expand tilde")
	}

	// Just tilde
	result = expandPath("~")
	if result == "~" {
		t.Error("expandPath('~') should expand to home dir")
	}

	// Absolute path
	result = expandPath("/tmp/test")
	if result != "/tmp/test" {
		t.Errorf("expandPath('/tmp/test') = %q, want /tmp/test", result)
	}
}
