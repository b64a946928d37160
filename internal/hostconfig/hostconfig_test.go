package hostconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func withHome(t *testing.T, dir string) {
	t.Helper()
	prev := homeOverride
	homeOverride = dir
	t.Cleanup(func() { homeOverride = prev })
}

func TestResolveDirs_defaultsUnderHomeWhenNoXDGVars(t *testing.T) {
	home := t.TempDir()
	withHome(t, home)
	for _, v := range []string{"XDG_CONFIG_HOME", "XDG_DATA_HOME", "XDG_CACHE_HOME", "XDG_STATE_HOME"} {
		t.Setenv(v, "")
	}

	d, err := ResolveDirs()
	if err != nil {
		t.Fatal(err)
	}
	if d.Config != filepath.Join(home, ".config", appName) {
		t.Fatalf("unexpected config dir: %s", d.Config)
	}
	if d.Legacy != filepath.Join(home, "."+appName) {
		t.Fatalf("unexpected legacy dir: %s", d.Legacy)
	}
}

func TestResolveDirs_honorsXDGConfigHome(t *testing.T) {
	home := t.TempDir()
	withHome(t, home)
	custom := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", custom)

	d, err := ResolveDirs()
	if err != nil {
		t.Fatal(err)
	}
	if d.Config != filepath.Join(custom, appName) {
		t.Fatalf("expected XDG_CONFIG_HOME to be honored, got %s", d.Config)
	}
}

func TestEnsureDirs_createsDirectoriesNotLegacy(t *testing.T) {
	home := t.TempDir()
	withHome(t, home)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("XDG_STATE_HOME", "")

	d, err := EnsureDirs()
	if err != nil {
		t.Fatal(err)
	}
	for _, dir := range []string{d.Config, d.Data, d.Cache, d.State} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected %s to exist as a directory: %v", dir, err)
		}
	}
	if _, err := os.Stat(d.Legacy); !os.IsNotExist(err) {
		t.Fatal("EnsureDirs must never create the legacy directory")
	}
}

func TestMigrateLegacy_copiesFilesNotAlreadyPresent(t *testing.T) {
	legacy := t.TempDir()
	dest := t.TempDir()
	if err := os.WriteFile(filepath.Join(legacy, "settings.json"), []byte(`{"a":1}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dest, "settings.json"), []byte(`{"a":2}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(legacy, "new.json"), []byte(`{"b":1}`), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := MigrateLegacy(legacy, dest); err != nil {
		t.Fatal(err)
	}

	existing, err := os.ReadFile(filepath.Join(dest, "settings.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(existing) != `{"a":2}` {
		t.Fatal("MigrateLegacy must never overwrite an already-present file")
	}

	migrated, err := os.ReadFile(filepath.Join(dest, "new.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(migrated) != `{"b":1}` {
		t.Fatal("expected new.json to be copied from the legacy directory")
	}
}

func TestMigrateLegacy_missingLegacyDirIsNoop(t *testing.T) {
	dest := t.TempDir()
	if err := MigrateLegacy(filepath.Join(dest, "does-not-exist"), dest); err != nil {
		t.Fatalf("missing legacy dir must not be an error: %v", err)
	}
}

func TestPreferencesLoad_missingFileYieldsDefaults(t *testing.T) {
	dir := t.TempDir()
	p, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if p != Default() {
		t.Fatalf("expected defaults for a missing config file, got %+v", p)
	}
}

func TestPreferencesSaveLoad_roundTrip(t *testing.T) {
	dir := t.TempDir()
	want := Default()
	want.MaxParallelTools = 4
	want.LogLevel = "debug"

	if err := Save(dir, want); err != nil {
		t.Fatal(err)
	}
	got, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("want %+v, got %+v", want, got)
	}
}

func TestPreferencesLoad_corruptFileFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	p, err := Load(dir)
	if err != nil {
		t.Fatalf("a corrupt config must not fail startup: %v", err)
	}
	if p != Default() {
		t.Fatalf("expected defaults for a corrupt config file, got %+v", p)
	}
}
