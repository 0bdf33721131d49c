package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// setupTestEnv points $HOME at a temp directory so commands read and
// write an isolated ~/.loro.
func setupTestEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	return dir
}

func runCmd(t *testing.T, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	cfgFile = ""
	contextName = ""
	outputJSON = false
	verbose = false

	rootCmd.SetArgs(args)
	err := rootCmd.Execute()

	wOut.Close()
	wErr.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	var outBuf, errBuf bytes.Buffer
	outBuf.ReadFrom(rOut)
	errBuf.ReadFrom(rErr)

	stdout = outBuf.String()
	stderr = errBuf.String()
	if err != nil {
		exitCode = 1
		if stderr == "" {
			stderr = err.Error()
		}
	}

	resetFlags(rootCmd)
	return
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		f.Changed = false
		f.Value.Set(f.DefValue)
	})
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// writeTestFile writes a file to a temp dir and returns its path.
func writeTestFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ---------------------------------------------------------------------------
// config tests
// ---------------------------------------------------------------------------

func TestConfigAddContextAndList(t *testing.T) {
	setupTestEnv(t)

	stdout, _, code := runCmd(t, "config", "add-context", "dev", "--api-key", "sk-test12345678")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(stdout, "saved") {
		t.Fatalf("expected 'saved' in output, got: %s", stdout)
	}

	// First context becomes current.
	stdout, _, code = runCmd(t, "config", "list-contexts")
	if code != 0 {
		t.Fatalf("list-contexts exit %d", code)
	}
	if !strings.Contains(stdout, "* dev") {
		t.Fatalf("expected '* dev', got: %s", stdout)
	}
}

func TestConfigAddContextUpdatesInPlace(t *testing.T) {
	setupTestEnv(t)

	runCmd(t, "config", "add-context", "dev", "--api-key", "sk-test12345678")
	runCmd(t, "config", "add-context", "dev", "--voice", "ash")

	stdout, _, code := runCmd(t, "config", "view")
	if code != 0 {
		t.Fatalf("view exit %d", code)
	}
	if !strings.Contains(stdout, "ash") {
		t.Fatalf("expected updated voice, got: %s", stdout)
	}
	// The API key survives the update, masked.
	if strings.Contains(stdout, "sk-test12345678") {
		t.Fatalf("raw API key leaked: %s", stdout)
	}
	if !strings.Contains(stdout, "5678") {
		t.Fatalf("expected masked key tail, got: %s", stdout)
	}
}

func TestConfigListContextsEmpty(t *testing.T) {
	setupTestEnv(t)

	stdout, _, code := runCmd(t, "config", "list-contexts")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(stdout, "No contexts") {
		t.Fatalf("expected 'No contexts', got: %s", stdout)
	}
}

func TestConfigUseContext(t *testing.T) {
	setupTestEnv(t)

	runCmd(t, "config", "add-context", "dev")
	runCmd(t, "config", "add-context", "prod")

	_, _, code := runCmd(t, "config", "use-context", "prod")
	if code != 0 {
		t.Fatalf("use-context exit %d", code)
	}

	stdout, _, code := runCmd(t, "config", "get-context")
	if code != 0 {
		t.Fatalf("get-context exit %d", code)
	}
	if !strings.Contains(stdout, "prod") {
		t.Fatalf("expected 'prod', got: %s", stdout)
	}
}

func TestConfigUseContextNotFound(t *testing.T) {
	setupTestEnv(t)

	_, stderr, code := runCmd(t, "config", "use-context", "nope")
	if code == 0 {
		t.Fatal("expected non-zero exit for unknown context")
	}
	if !strings.Contains(stderr, "not found") {
		t.Fatalf("expected 'not found', got: %s", stderr)
	}
}

func TestConfigGetContextUnset(t *testing.T) {
	setupTestEnv(t)

	stdout, _, code := runCmd(t, "config", "get-context")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(stdout, "No current context") {
		t.Fatalf("expected 'No current context', got: %s", stdout)
	}
}

func TestConfigDeleteContext(t *testing.T) {
	setupTestEnv(t)

	runCmd(t, "config", "add-context", "dev")
	_, _, code := runCmd(t, "config", "delete-context", "dev")
	if code != 0 {
		t.Fatalf("delete-context exit %d", code)
	}

	stdout, _, _ := runCmd(t, "config", "list-contexts")
	if strings.Contains(stdout, "dev") {
		t.Fatalf("context still listed after delete: %s", stdout)
	}
}

func TestConfigDeleteContextNotFound(t *testing.T) {
	setupTestEnv(t)

	_, stderr, code := runCmd(t, "config", "delete-context", "ghost")
	if code == 0 {
		t.Fatal("expected non-zero exit")
	}
	if !strings.Contains(stderr, "not found") {
		t.Fatalf("expected 'not found', got: %s", stderr)
	}
}
