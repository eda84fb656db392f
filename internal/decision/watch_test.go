package decision

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestWatchPolicyReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte("autofix_whitelist: [cache-clear]\n"), 0644); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	store := NewPolicyStore(Policy{})
	pw, err := WatchPolicy(path, store, nil)
	if err != nil {
		t.Fatalf("WatchPolicy() error = %v", err)
	}
	defer pw.Close()

	if !store.IsWhitelisted("cache-clear") {
		t.Fatal("initial policy not loaded")
	}

	updated := "autofix_whitelist: [cache-clear, log-rotate]\nemergency_categories: [circuit-break]\n"
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		t.Fatalf("rewrite policy: %v", err)
	}

	waitFor(t, func() bool { return store.IsWhitelisted("log-rotate") })
	if !store.IsEmergency("circuit-break") {
		t.Error("emergency categories not reloaded")
	}
}

func TestWatchPolicyKeepsOldPolicyOnParseError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte("autofix_whitelist: [cache-clear]\n"), 0644); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	store := NewPolicyStore(Policy{})
	errs := make(chan error, 1)
	pw, err := WatchPolicy(path, store, func(err error) {
		select {
		case errs <- err:
		default:
		}
	})
	if err != nil {
		t.Fatalf("WatchPolicy() error = %v", err)
	}
	defer pw.Close()

	if err := os.WriteFile(path, []byte("autofix_whitelist: [unclosed\n"), 0644); err != nil {
		t.Fatalf("rewrite policy: %v", err)
	}

	select {
	case <-errs:
	case <-time.After(3 * time.Second):
		t.Fatal("parse error never reported")
	}
	if !store.IsWhitelisted("cache-clear") {
		t.Error("previous policy must survive a bad reload")
	}
}

func TestWatchPolicyMissingFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")

	store := NewPolicyStore(Policy{AutoFixWhitelist: []string{"stale"}})
	pw, err := WatchPolicy(path, store, nil)
	if err != nil {
		t.Fatalf("WatchPolicy() error = %v", err)
	}
	defer pw.Close()

	if store.IsWhitelisted("stale") {
		t.Error("missing file must reset to the empty policy")
	}

	// Creating the file later picks it up.
	if err := os.WriteFile(path, []byte("autofix_whitelist: [cache-clear]\n"), 0644); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	waitFor(t, func() bool { return store.IsWhitelisted("cache-clear") })
}
