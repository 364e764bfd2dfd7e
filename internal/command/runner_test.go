//go:build !windows

package command

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/runger/heats/internal/config"
)

// script writes an executable shell script to a temp dir and returns its
// path.
func script(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cmd.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadParsesJSONLAndSkipsMalformed(t *testing.T) {
	t.Parallel()

	src := script(t, `
echo '{"title":"Alpha","data":"A1"}'
echo 'not json at all'
echo '{"title":"Beta","data":{"pid":42}}'
`)
	r := NewRunner(nil, time.Second)
	providers := map[string]config.ProviderSpec{
		"test": {Source: config.Command{src}},
	}

	items := r.Load(context.Background(), []string{"test"}, providers)
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Display.Title != "Alpha" || items[1].Display.Title != "Beta" {
		t.Errorf("unexpected titles: %q, %q", items[0].Display.Title, items[1].Display.Title)
	}
	if items[0].Provider != "test" || items[0].Display.SourceName != "test" {
		t.Errorf("wrong attribution: %+v", items[0])
	}
}

func TestLoadSkipsUnknownProvider(t *testing.T) {
	t.Parallel()

	src := script(t, `echo '{"title":"Alpha"}'`)
	r := NewRunner(nil, time.Second)
	providers := map[string]config.ProviderSpec{
		"known": {Source: config.Command{src}},
	}

	items := r.Load(context.Background(), []string{"missing", "known"}, providers)
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
}

func TestLoadTimeoutIsBoundedAndKeepsPartialOutput(t *testing.T) {
	t.Parallel()

	src := script(t, `
echo '{"title":"Early"}'
sleep 30
echo '{"title":"Late"}'
`)
	r := NewRunner(nil, 300*time.Millisecond)
	providers := map[string]config.ProviderSpec{
		"slow": {Source: config.Command{src}},
	}

	start := time.Now()
	items := r.Load(context.Background(), []string{"slow"}, providers)
	elapsed := time.Since(start)

	if elapsed > 5*time.Second {
		t.Fatalf("load took %v, want bounded by timeout", elapsed)
	}
	if len(items) != 1 || items[0].Display.Title != "Early" {
		t.Fatalf("got %v, want the item parsed before timeout", items)
	}
}

func TestLoadSpawnFailureYieldsZeroItems(t *testing.T) {
	t.Parallel()

	r := NewRunner(nil, time.Second)
	providers := map[string]config.ProviderSpec{
		"broken": {Source: config.Command{"/nonexistent/heats-no-such-cmd"}},
	}
	if items := r.Load(context.Background(), []string{"broken"}, providers); len(items) != 0 {
		t.Fatalf("got %d items, want 0", len(items))
	}
}

func TestLoadConcurrentProvidersKeepAttribution(t *testing.T) {
	t.Parallel()

	a := script(t, `sleep 0.1; echo '{"title":"FromA"}'`)
	b := script(t, `echo '{"title":"FromB"}'`)
	r := NewRunner(nil, time.Second)
	providers := map[string]config.ProviderSpec{
		"a": {Source: config.Command{a}},
		"b": {Source: config.Command{b}},
	}

	items := r.Load(context.Background(), []string{"a", "b"}, providers)
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	byTitle := map[string]string{}
	for _, li := range items {
		byTitle[li.Display.Title] = li.Provider
	}
	if byTitle["FromA"] != "a" || byTitle["FromB"] != "b" {
		t.Errorf("attribution wrong: %v", byTitle)
	}
}

func TestEvaluateArgMode(t *testing.T) {
	t.Parallel()

	src := script(t, `printf '{"title":"got %s","data":"%s"}\n' "$1" "$1"`)
	r := NewRunner(nil, time.Second)
	evals := map[string]config.EvaluatorSpec{
		"echoer": {Source: config.Command{src}, Input: config.InputArg},
	}

	items := r.Evaluate(context.Background(), "1+2", []string{"echoer"}, evals)
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Display.Title != "got 1+2" {
		t.Errorf("title = %q", items[0].Display.Title)
	}
	if items[0].Display.SourceName != "eval:echoer" {
		t.Errorf("source name = %q", items[0].Display.SourceName)
	}
}

func TestEvaluateStdinMode(t *testing.T) {
	t.Parallel()

	src := script(t, `read q; printf '{"title":"= %s"}\n' "$q"`)
	r := NewRunner(nil, time.Second)
	evals := map[string]config.EvaluatorSpec{
		"calc": {Source: config.Command{src}, Input: config.InputStdin},
	}

	items := r.Evaluate(context.Background(), "6*7", []string{"calc"}, evals)
	if len(items) != 1 || items[0].Display.Title != "= 6*7" {
		t.Fatalf("got %v", items)
	}
}

func TestRunActionAppendsFieldValue(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "out")
	act := script(t, `echo "$2" > `+out)
	r := NewRunner(nil, time.Second)

	r.RunAction(config.Command{act, "fixed-arg"}, config.InputArg, "the-value")

	waitForFile(t, out)
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != "the-value\n" {
		t.Errorf("action arg = %q", got)
	}
}

func TestRunActionStdinMode(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "out")
	act := script(t, `cat > `+out)
	r := NewRunner(nil, time.Second)

	r.RunAction(config.Command{act}, config.InputStdin, "piped-value")

	waitForFile(t, out)
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data); got != "piped-value\n" {
		t.Errorf("action stdin = %q", got)
	}
}

func waitForFile(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if fi, err := os.Stat(path); err == nil && fi.Size() > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("file %s not written by action", path)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	if got := Resolve("/usr/bin/env"); got != "/usr/bin/env" {
		t.Errorf("absolute path changed: %q", got)
	}
	// No sibling of the test binary with this name: falls through to PATH.
	if got := Resolve("heats-no-such-sibling"); got != "heats-no-such-sibling" {
		t.Errorf("fallback = %q", got)
	}
}
