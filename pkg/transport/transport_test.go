package transport

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestRenderDefaultTemplate(t *testing.T) {
	got, err := Render(DefaultTemplate, Substitutions{Hostname: "backup.example.com", UbtsPath: "/usr/local/bin/ubts", DestDir: "/srv/backups"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := "ssh backup.example.com /usr/local/bin/ubts /srv/backups"
	if got != want {
		t.Fatalf("Render = %q, want %q", got, want)
	}
}

func TestRenderLocalTemplate(t *testing.T) {
	got, err := Render(LocalTemplate, Substitutions{UbtsPath: "/usr/local/bin/ubts", DestDir: "/srv/backups"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := "/usr/local/bin/ubts /srv/backups"
	if got != want {
		t.Fatalf("Render = %q, want %q", got, want)
	}
}

func TestRenderRejectsUnknownVariable(t *testing.T) {
	_, err := Render("rsync {nonsense}", Substitutions{})
	if err == nil {
		t.Fatal("expected an error for an unknown template variable")
	}
}

func TestRenderRejectsMissingSubstitution(t *testing.T) {
	_, err := Render(DefaultTemplate, Substitutions{UbtsPath: "/usr/local/bin/ubts", DestDir: "/srv/backups"})
	if err == nil {
		t.Fatal("expected an error for a missing hostname substitution")
	}
}

func TestStartRunsLocalCommand(t *testing.T) {
	conn, err := Start("/bin/cat", Substitutions{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	message := "hello\n"
	if _, err := conn.Stdin.Write([]byte(message)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.Stdin.Close(); err != nil {
		t.Fatalf("close stdin: %v", err)
	}

	buf := make([]byte, len(message))
	if _, err := io.ReadFull(conn.Stdout, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf) != message {
		t.Fatalf("got %q, want %q", buf, message)
	}

	code, err := conn.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
}

func TestWaitReportsNonZeroExitCode(t *testing.T) {
	script := filepath.Join(t.TempDir(), "fail.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nexit 3\n"), 0755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	conn, err := Start(script, Substitutions{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	conn.Stdin.Close()

	// The script writes nothing to stderr, so Wait reports the exit code
	// alone, with no error attached.
	code, err := conn.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if code != 3 {
		t.Fatalf("exit code = %d, want 3", code)
	}
}
