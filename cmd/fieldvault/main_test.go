package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fieldvault/internal/config"
	"fieldvault/internal/envelope"
	"fieldvault/internal/queue"
	"fieldvault/internal/testsupport"
)

type cliTestEnv struct {
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, extraTOML ...string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q
key_file_path = %q

[intake]
url = "http://127.0.0.1:0/claims"
api_token = "test"
`,
		filepath.Join(base, "data"),
		filepath.Join(base, "logs"),
		filepath.Join(base, "keys", "master.key"),
	)
	for _, section := range extraTOML {
		content += "\n" + section + "\n"
	}
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliTestEnv{configPath: configPath, baseDir: base}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (e *cliTestEnv) openStore(t *testing.T) *queue.Store {
	t.Helper()

	cfg, _, _, err := config.Load(e.configPath)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	sealer := envelope.NewService(envelope.NewFileKeyStore(cfg.Paths.KeyFilePath))
	store, err := queue.Open(cfg, sealer)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestQueueStatusEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "queue", "status")
	if err != nil {
		t.Fatalf("queue status failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Outbox is empty") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestQueueListAndStatusShowItems(t *testing.T) {
	env := setupCLITestEnv(t)
	store := env.openStore(t)

	record := testsupport.NewRecord(t, "farm-7")
	if _, err := store.Enqueue(context.Background(), record, []byte("payload")); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	store.Close()

	out, err := env.run(t, "queue", "list")
	if err != nil {
		t.Fatalf("queue list failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, record.CaptureID) || !strings.Contains(out, "pending") {
		t.Fatalf("list output missing item: %s", out)
	}

	out, err = env.run(t, "queue", "status")
	if err != nil {
		t.Fatalf("queue status failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "pending") {
		t.Fatalf("status output missing pending row: %s", out)
	}
}

func TestQueueListRejectsUnknownState(t *testing.T) {
	env := setupCLITestEnv(t)

	_, err := env.run(t, "queue", "list", "--state", "ripping")
	if err == nil || !strings.Contains(err.Error(), "unknown state") {
		t.Fatalf("expected unknown state error, got %v", err)
	}
}

func TestQueueRemoveMissingItem(t *testing.T) {
	env := setupCLITestEnv(t)

	_, err := env.run(t, "queue", "remove", "nope")
	if err == nil || !strings.Contains(err.Error(), "no item") {
		t.Fatalf("expected missing item error, got %v", err)
	}
}

func TestFarmAddAndList(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "farm", "add",
		"--name", "Amina Odhiambo",
		"--ref", "KE-2041",
		"--crop", "maize",
		"--lat", "-1.2921",
		"--lon", "36.8219")
	if err != nil {
		t.Fatalf("farm add failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Registered farm") {
		t.Fatalf("unexpected output: %s", out)
	}

	out, err = env.run(t, "farm", "list")
	if err != nil {
		t.Fatalf("farm list failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Amina Odhiambo") || !strings.Contains(out, "maize") {
		t.Fatalf("farm list missing registration: %s", out)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(env.baseDir, "generated", "config.toml")

	out, err := env.run(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init failed: %v\n%s", err, out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected generated config: %v", err)
	}

	// Second init without --overwrite must refuse.
	if _, err := env.run(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected overwrite refusal")
	}
	if out, err := env.run(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite failed: %v\n%s", err, out)
	}
}

func TestStatusReportsStoppedDaemonAndEmptyOutbox(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "not running") {
		t.Fatalf("expected stopped daemon in output: %s", out)
	}
	if !strings.Contains(out, "empty") {
		t.Fatalf("expected empty outbox in output: %s", out)
	}
}

func TestConfigShowPrintsEffectiveConfig(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "data_dir") || !strings.Contains(out, "[intake]") {
		t.Fatalf("unexpected config show output: %s", out)
	}
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "test-notify")
	if err != nil {
		t.Fatalf("test-notify failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "not configured") {
		t.Fatalf("unexpected output: %s", out)
	}
}
