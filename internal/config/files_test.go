package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestResolveInputsDefaults(t *testing.T) {
	root := t.TempDir()
	top := filepath.Join(root, "APB_SPI_top.json")
	slave := filepath.Join(root, "rtl", "APB_SLAVE.json")
	deep := filepath.Join(root, "rtl", "spi", "SPI_MASTER.json")
	writeFile(t, top, "{}")
	writeFile(t, slave, "{}")
	writeFile(t, deep, "{}")
	writeFile(t, filepath.Join(root, "rtl", "notes.txt"), "ignored")
	writeFile(t, filepath.Join(root, FileName), "{}")

	files, err := DefaultConfig().ResolveInputs(root)
	if err != nil {
		t.Fatalf("ResolveInputs: %v", err)
	}

	want := []string{top, slave, deep}
	if !reflect.DeepEqual(files, want) {
		t.Fatalf("expected %v, got %v", want, files)
	}
}

func TestResolveInputsExclude(t *testing.T) {
	root := t.TempDir()
	keep := filepath.Join(root, "rtl", "core.json")
	drop := filepath.Join(root, "vendor", "ip.json")
	writeFile(t, keep, "{}")
	writeFile(t, drop, "{}")

	cfg := DefaultConfig()
	cfg.Inputs.Exclude = []string{"vendor/*.json"}

	files, err := cfg.ResolveInputs(root)
	if err != nil {
		t.Fatalf("ResolveInputs: %v", err)
	}
	if !reflect.DeepEqual(files, []string{keep}) {
		t.Fatalf("expected only %s, got %v", keep, files)
	}
}

func TestResolveInputsSkipsFactOutputs(t *testing.T) {
	root := t.TempDir()
	keep := filepath.Join(root, "top.json")
	writeFile(t, keep, "{}")
	writeFile(t, filepath.Join(root, "hier.snapshot.json"), "{}")
	writeFile(t, filepath.Join(root, "out", "run.facts.json"), "{}")

	files, err := DefaultConfig().ResolveInputs(root)
	if err != nil {
		t.Fatalf("ResolveInputs: %v", err)
	}
	if !reflect.DeepEqual(files, []string{keep}) {
		t.Fatalf("expected only %s, got %v", keep, files)
	}
}

func TestResolveInputsPatterns(t *testing.T) {
	root := t.TempDir()
	direct := filepath.Join(root, "rtl", "core.json")
	nested := filepath.Join(root, "rtl", "spi", "spi.json")
	other := filepath.Join(root, "tb", "bench.json")
	upper := filepath.Join(root, "rtl", "IP.JSON")
	writeFile(t, direct, "{}")
	writeFile(t, nested, "{}")
	writeFile(t, other, "{}")
	writeFile(t, upper, "{}")

	tests := []struct {
		name  string
		files []string
		want  []string
	}{
		{"double star below dir", []string{"rtl/**/*.json"}, []string{direct, nested}},
		{"single star stays in dir", []string{"rtl/*.json"}, []string{direct}},
		{"absolute pattern", []string{filepath.Join(root, "tb", "*.json")}, []string{other}},
		{"extension is case insensitive", []string{"rtl/*.JSON"}, []string{upper}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Inputs.Files = tt.files

			files, err := cfg.ResolveInputs(root)
			if err != nil {
				t.Fatalf("ResolveInputs: %v", err)
			}
			if !reflect.DeepEqual(files, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, files)
			}
		})
	}
}

func TestResolveInputsSingleFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "mods.txt")
	writeFile(t, path, "[]")

	files, err := DefaultConfig().ResolveInputs(path)
	if err != nil {
		t.Fatalf("ResolveInputs: %v", err)
	}
	if !reflect.DeepEqual(files, []string{path}) {
		t.Fatalf("expected %s, got %v", path, files)
	}
}

func TestResolveInputsMissingRoot(t *testing.T) {
	if _, err := DefaultConfig().ResolveInputs(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error for missing root")
	}
}

func TestLoadFileAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	writeFile(t, path, `{"tops": ["chip"], "lint": {"rules": {"unresolved_instance": "off"}}}`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !reflect.DeepEqual(cfg.Tops, []string{"chip"}) {
		t.Fatalf("expected tops [chip], got %v", cfg.Tops)
	}
	if len(cfg.Inputs.Files) == 0 {
		t.Fatalf("expected default input patterns")
	}
	if !reflect.DeepEqual(cfg.Inputs.Exclude, defaultExclude) {
		t.Fatalf("expected default exclusions, got %v", cfg.Inputs.Exclude)
	}
	if !cfg.SchemaValidationEnabled() {
		t.Fatalf("expected schema validation on by default")
	}
	if cfg.Log.Level != "warn" || cfg.Log.Format != "text" {
		t.Fatalf("expected default log settings, got %+v", cfg.Log)
	}
	if cfg.IsRuleEnabled("unresolved_instance") {
		t.Fatalf("expected unresolved_instance to be off")
	}
	if !cfg.IsRuleEnabled("cyclic_instantiation") {
		t.Fatalf("expected unlisted rules to be enabled")
	}
}

func TestLoadFileRejectsBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	writeFile(t, path, `{"inputs": `)

	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadFindsRootConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), `{"log": {"level": "debug"}}`)

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected root config to be used, got level %q", cfg.Log.Level)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	cfg := DefaultConfig()
	cfg.Lint.Rules["self_instantiation"] = "error"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got := loaded.GetRuleSeverity("self_instantiation", "warning"); got != "error" {
		t.Fatalf("expected severity error, got %q", got)
	}
	if got := loaded.GetRuleSeverity("no_top_module", "warning"); got != "warning" {
		t.Fatalf("expected default severity, got %q", got)
	}
}
