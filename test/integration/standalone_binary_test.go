package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func buildBinary(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("standalone binary copy/exec test is unix-focused")
	}
	goModPathBytes, err := exec.Command("go", "env", "GOMOD").Output()
	if err != nil {
		t.Fatalf("go env GOMOD: %v", err)
	}
	goModPath := strings.TrimSpace(string(goModPathBytes))
	if goModPath == "" {
		t.Fatalf("go env GOMOD returned empty")
	}
	repoRoot := filepath.Dir(goModPath)

	binaryPath := filepath.Join(t.TempDir(), "agentbridge")
	build := exec.Command("go", "build", "-o", binaryPath, "./cmd/agentbridge")
	build.Dir = repoRoot
	build.Env = os.Environ()
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("go build: %v\n%s", err, string(out))
	}
	return binaryPath
}

// cleanEnv drops every variable the bridge reads so the host environment
// cannot leak a secret into the run.
func cleanEnv(extra ...string) []string {
	blocked := []string{"API_KEY=", "AGENTBRIDGE_", "PORT=", "BIND_HOST="}
	var env []string
	for _, kv := range os.Environ() {
		keep := true
		for _, prefix := range blocked {
			if strings.HasPrefix(kv, prefix) {
				keep = false
				break
			}
		}
		if keep {
			env = append(env, kv)
		}
	}
	return append(env, extra...)
}

func TestStandaloneBinaryVersionAndHelpWorkOutsideRepo(t *testing.T) {
	binary := buildBinary(t)
	outside := t.TempDir()

	version := exec.Command(binary, "version")
	version.Dir = outside
	out, err := version.CombinedOutput()
	if err != nil {
		t.Fatalf("version failed: %v\n%s", err, string(out))
	}
	if !strings.HasPrefix(string(out), "agentbridge ") {
		t.Fatalf("unexpected version output: %s", out)
	}

	help := exec.Command(binary, "--help")
	help.Dir = outside
	if out, err := help.CombinedOutput(); err != nil {
		t.Fatalf("--help failed: %v\n%s", err, string(out))
	}
}

func TestServeRefusesToStartWithoutSecret(t *testing.T) {
	binary := buildBinary(t)

	serve := exec.Command(binary, "serve", "--port", "0")
	serve.Dir = t.TempDir()
	serve.Env = cleanEnv("XDG_CONFIG_HOME=" + t.TempDir())
	out, err := serve.CombinedOutput()
	if err == nil {
		t.Fatalf("serve started without API_KEY:\n%s", out)
	}
	if _, ok := err.(*exec.ExitError); !ok {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(out), "API_KEY") {
		t.Fatalf("expected API_KEY in output, got:\n%s", out)
	}
}
