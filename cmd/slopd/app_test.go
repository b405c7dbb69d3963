package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"pkt.systems/pslog"
)

func executeRootCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand(pslog.NewStructured(context.Background(), io.Discard))
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersionCommandPrintsModule(t *testing.T) {
	stdout, stderr, err := executeRootCommand(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v (stderr %q)", err, stderr)
	}
	if !strings.Contains(stdout, "slop") {
		t.Fatalf("version output %q does not name the module", stdout)
	}
}

func TestRootCommandHelp(t *testing.T) {
	stdout, _, err := executeRootCommand(t, "--help")
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}
	for _, flag := range []string{"--listen", "--metrics-listen", "--otlp-endpoint", "--sweep-interval"} {
		if !strings.Contains(stdout, flag) {
			t.Fatalf("help output missing %s", flag)
		}
	}
}
