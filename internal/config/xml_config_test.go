package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_WritesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.xml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Port != 8089 {
		t.Errorf("Expected default port 8089, got %d", cfg.Server.Port)
	}
	if cfg.Storage.UploadsDirectory != filepath.Join(dir, "data/uploads") {
		t.Errorf("Expected resolved uploads dir, got %s", cfg.Storage.UploadsDirectory)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected config file to be written: %v", err)
	}
	if !strings.Contains(string(data), "<IFCViewer>") || !strings.Contains(string(data), "<HoverColor>#00498a</HoverColor>") {
		t.Errorf("Unexpected default config:\n%s", data)
	}
}

func TestLoadConfig_ViewerSection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.xml")
	xmlData := `<IFCViewer>
  <Viewer>
    <HoverColor>#ff0000</HoverColor>
    <SelectColor>0x00ff00</SelectColor>
    <EnableHover>false</EnableHover>
    <EnableSelection>true</EnableSelection>
    <ClickThresholdPixels>4</ClickThresholdPixels>
    <IdleRenderDelayMs>250</IdleRenderDelayMs>
    <TransparentOpacity>0.5</TransparentOpacity>
    <AlwaysVisibleWhenUnconstrained>true</AlwaysVisibleWhenUnconstrained>
  </Viewer>
  <Requirements><File>rules.toml</File></Requirements>
</IFCViewer>`
	if err := os.WriteFile(path, []byte(xmlData), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Sessions.MaxSessions != 10 {
		t.Errorf("Expected unset sections to keep defaults, got MaxSessions %d", cfg.Sessions.MaxSessions)
	}
	if cfg.Requirements.File != filepath.Join(dir, "rules.toml") {
		t.Errorf("Expected resolved requirements path, got %s", cfg.Requirements.File)
	}

	opts := cfg.ViewerOptions()
	if opts.EnableHover || !opts.EnableSelection {
		t.Errorf("Unexpected toggles: hover=%v selection=%v", opts.EnableHover, opts.EnableSelection)
	}
	if opts.Palette.HoverColor != 0xff0000 || opts.Palette.SelectColor != 0x00ff00 {
		t.Errorf("Unexpected palette: %+v", opts.Palette)
	}
	if opts.ClickThreshold != 4 || opts.IdleDelay != 250*time.Millisecond {
		t.Errorf("Unexpected pointer tuning: %v %v", opts.ClickThreshold, opts.IdleDelay)
	}
	if opts.Palette.TransparentOpacity != 0.5 || !opts.AlwaysVisibleWhenUnconstrained {
		t.Errorf("Unexpected styling options: %+v", opts)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{"bad color", `<IFCViewer><Viewer><HoverColor>red</HoverColor><SelectColor>#16a34a</SelectColor></Viewer></IFCViewer>`},
		{"bad opacity", `<IFCViewer><Viewer><TransparentOpacity>2</TransparentOpacity></Viewer></IFCViewer>`},
		{"bad requirements file", `<IFCViewer><Requirements><File>rules.txt</File></Requirements></IFCViewer>`},
		{"negative model size", `<IFCViewer><Advanced><MaxModelSizeMB>-1</MaxModelSizeMB></Advanced></IFCViewer>`},
		{"malformed xml", `<IFCViewer><Viewer>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.xml")
			os.WriteFile(path, []byte(tt.xml), 0644)
			if _, err := LoadConfig(path); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, ".env"), []byte("S3_ENDPOINT=localhost:9000\nS3_ACCESS_KEY=minio\n"), 0644)
	t.Setenv("PORT", "9100")
	t.Setenv("MAX_SESSIONS", "3")
	t.Setenv("MAX_MODEL_SIZE_MB", "16")
	t.Setenv("S3_SECRET_KEY", "secret")
	t.Cleanup(func() {
		os.Unsetenv("S3_ENDPOINT")
		os.Unsetenv("S3_ACCESS_KEY")
	})

	cfg, err := LoadConfig(filepath.Join(dir, "config.xml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.GetServerAddr() != "0.0.0.0:9100" {
		t.Errorf("Expected port override, got %s", cfg.GetServerAddr())
	}
	if cfg.Sessions.MaxSessions != 3 {
		t.Errorf("Expected MaxSessions 3, got %d", cfg.Sessions.MaxSessions)
	}
	if cfg.MaxModelBytes() != 16<<20 {
		t.Errorf("Expected a 16 MiB model limit, got %d", cfg.MaxModelBytes())
	}
	s3 := cfg.LoaderS3Config()
	if s3 == nil {
		t.Fatal("Expected S3 to be enabled from .env")
	}
	if s3.Endpoint != "localhost:9000" || s3.AccessKey != "minio" || s3.SecretKey != "secret" {
		t.Errorf("Unexpected S3 config: %+v", s3)
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{"#16a34a", 0x16a34a, false},
		{"00498A", 0x00498a, false},
		{"0xffffff", 0xffffff, false},
		{"#fff", 0, true},
		{"#gggggg", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseHexColor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHexColor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseHexColor(%q) = %06x, want %06x", tt.in, got, tt.want)
		}
	}
	if FormatHexColor(0x16a34a) != "#16a34a" {
		t.Errorf("FormatHexColor = %s", FormatHexColor(0x16a34a))
	}
}

func TestLoadRequirements(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	rs, err := cfg.LoadRequirements()
	if err != nil || !rs.Empty() {
		t.Fatalf("Expected empty set without a file, got %+v, %v", rs, err)
	}

	cfg.Requirements.File = filepath.Join(dir, "rules.yaml")
	os.WriteFile(cfg.Requirements.File, []byte("always_visible:\n  - required_kind: IfcWall\n"), 0644)
	rs, err = cfg.LoadRequirements()
	if err != nil {
		t.Fatalf("LoadRequirements failed: %v", err)
	}
	if len(rs.AlwaysVisible) != 1 || rs.AlwaysVisible[0].RequiredKind != "IfcWall" {
		t.Errorf("Unexpected set: %+v", rs)
	}
}
