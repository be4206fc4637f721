package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	return path
}

func TestRunProducesTaintReport(t *testing.T) {
	dir := t.TempDir()
	input := writeSource(t, dir, "main.ir", `
define main (param %0) (result 1) (define %0 %1) {
	%1 = %0
	RETURN %1;
};
`)
	output := filepath.Join(dir, "out.json")

	var stdout, stderr bytes.Buffer
	code := run([]string{"--input", input, "--function", "main", "--output", output}, asFile(t, &stdout), asFile(t, &stderr))
	require.Equal(t, exitOK, code, "stderr: %s", stderr.String())

	data, err := os.ReadFile(output)
	require.NoError(t, err)

	var rep report
	require.NoError(t, json.Unmarshal(data, &rep))
	require.Equal(t, "classical", rep.Strategy)

	var names []string
	for _, tn := range rep.Taints {
		names = append(names, tn.Variable)
	}
	require.Contains(t, names, "%1")
}

func TestRunRejectsMissingInput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"--function", "main"}, asFile(t, &stdout), asFile(t, &stderr))
	require.Equal(t, exitInvalidInput, code)
}

func TestRunRejectsMalformedSource(t *testing.T) {
	dir := t.TempDir()
	input := writeSource(t, dir, "bad.ir", `define f (define %0) { RETURN; };`)

	var stdout, stderr bytes.Buffer
	code := run([]string{"--input", input, "--function", "f"}, asFile(t, &stdout), asFile(t, &stderr))
	require.Equal(t, exitInvalidInput, code)
}

func TestRunRejectsUnknownStrategy(t *testing.T) {
	dir := t.TempDir()
	input := writeSource(t, dir, "main.ir", `
define main (result 0) (define %0) {
	RETURN;
};
`)

	var stdout, stderr bytes.Buffer
	code := run([]string{"--input", input, "--function", "main", "--strategy", "bogus"}, asFile(t, &stdout), asFile(t, &stderr))
	require.Equal(t, exitInvalidInput, code)
}

// asFile adapts a bytes.Buffer to the *os.File signature run() expects, by
// writing through a pipe into the buffer in a background goroutine.
func asFile(t *testing.T, buf *bytes.Buffer) *os.File {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf.ReadFrom(r)
	}()
	t.Cleanup(func() {
		w.Close()
		<-done
	})

	return w
}
