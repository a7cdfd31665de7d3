package dirs

import (
	"path/filepath"
	"runtime"
	"testing"
)

func TestConfigDirHonorsXDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG variables are linux-only behavior")
	}
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
	got, err := ConfigDir()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("/tmp/xdg-config", AppName()); got != want {
		t.Errorf("ConfigDir() = %q, want %q", got, want)
	}
}

func TestDataDirHonorsXDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG variables are linux-only behavior")
	}
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
	got, err := DataDir()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("/tmp/xdg-data", AppName()); got != want {
		t.Errorf("DataDir() = %q, want %q", got, want)
	}
}

func TestDirsNonEmpty(t *testing.T) {
	cfg, err := ConfigDir()
	if err != nil {
		t.Fatal(err)
	}
	data, err := DataDir()
	if err != nil {
		t.Fatal(err)
	}
	if cfg == "" || data == "" {
		t.Errorf("empty dirs: %q %q", cfg, data)
	}
}
