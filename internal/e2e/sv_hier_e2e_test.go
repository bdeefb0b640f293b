package e2e

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestSvHierE2E_Testdata(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the sv-hier binary")
	}
	repoRoot := findRepoRoot(t)
	bin := buildBinary(t, repoRoot)

	home := t.TempDir()
	env := append(os.Environ(),
		"HOME="+home,
		"XDG_CONFIG_HOME="+filepath.Join(home, ".config"),
	)

	t.Run("apb_spi", func(t *testing.T) {
		report := runTreeJSON(t, bin, filepath.Join(repoRoot, "testdata", "records", "apb_spi"), env)
		if len(report.ParseErrors) > 0 {
			t.Fatalf("parse errors: %v", report.ParseErrors)
		}
		if len(report.TopModules) != 1 || report.TopModules[0] != "APB_SPI_top" {
			t.Fatalf("expected APB_SPI_top as the only top, got %v", report.TopModules)
		}
		if got := report.Trees[0].Tree.Count(); got != 7 {
			t.Fatalf("expected 7 nodes, got %d", got)
		}
		if report.Summary.Errors != 0 {
			t.Fatalf("expected no errors, got %+v", report.Violations)
		}
	})

	t.Run("cyclic", func(t *testing.T) {
		report := runTreeJSON(t, bin, filepath.Join(repoRoot, "testdata", "records", "cyclic"), env)
		if len(report.Cycles) != 1 {
			t.Fatalf("expected one cycle, got %+v", report.Cycles)
		}
		if report.Summary.Errors == 0 {
			t.Fatalf("expected cycle to be reported as an error")
		}
	})
}

type treeNode struct {
	Kind     string      `json:"kind"`
	Children []*treeNode `json:"children"`
}

func (n *treeNode) Count() int {
	total := 1
	for _, c := range n.Children {
		total += c.Count()
	}
	return total
}

type report struct {
	TopModules  []string          `json:"top_modules"`
	Cycles      []json.RawMessage `json:"cycles"`
	ParseErrors []json.RawMessage `json:"parse_errors"`
	Violations  []json.RawMessage `json:"violations"`
	Summary     struct {
		Errors int `json:"errors"`
	} `json:"summary"`
	Trees []struct {
		Tree treeNode `json:"tree"`
	} `json:"trees"`
}

func runTreeJSON(t *testing.T, bin, path string, env []string) report {
	t.Helper()

	cmd := exec.Command(bin, "tree", "--json", path)
	cmd.Env = env
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("sv-hier failed for %s: %v\nstderr:\n%s", path, err, stderr.String())
	}

	var result report
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		t.Fatalf("parse JSON output for %s: %v\nstdout:\n%s", path, err, stdout.String())
	}
	return result
}

func buildBinary(t *testing.T, repoRoot string) string {
	t.Helper()
	binPath := filepath.Join(t.TempDir(), "sv-hier")
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/sv-hier")
	cmd.Dir = repoRoot
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("build sv-hier failed: %v\n%s", err, string(out))
	}
	return binPath
}

func findRepoRoot(t *testing.T) string {
	t.Helper()
	start, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, "testdata", "records")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("repo root not found from %s", start)
		}
		dir = parent
	}
}
