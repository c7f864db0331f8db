package main

import (
	"path/filepath"
	"testing"

	"greylit/internal/testsupport"
)

func TestDaemonStartWhenAlreadyRunning(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"daemon", "start"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("daemon start: %v", err)
	}
	requireContains(t, out, "Daemon already running")
}

func TestDaemonStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"daemon", "status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("daemon status: %v", err)
	}
	requireContains(t, out, "== Daemon ==")
	requireContains(t, out, "Running (pid")
	requireContains(t, out, "== Active Runs ==")
	requireContains(t, out, "== Run History ==")
}

func TestDaemonStatusWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	missingSocket := filepath.Join(testsupport.BaseDir(env.cfg), "missing.sock")
	out, _, err := runCLI(t, []string{"daemon", "status"}, missingSocket, env.configPath)
	if err != nil {
		t.Fatalf("daemon status offline: %v", err)
	}
	requireContains(t, out, "Not running")
}

// Stopping the in-process daemon would tear down the test itself, so stop is
// only exercised against a dead socket here.
func TestDaemonStopWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	missingSocket := filepath.Join(testsupport.BaseDir(env.cfg), "missing.sock")
	out, _, err := runCLI(t, []string{"daemon", "stop"}, missingSocket, env.configPath)
	if err != nil {
		t.Fatalf("daemon stop offline: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}
