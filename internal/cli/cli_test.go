package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/temirov/reposum/internal/config"
	"github.com/temirov/reposum/internal/summarizer"
)

const (
	readmeContent = "# Widget\nA widget library.\n"
	mainContent   = "package main\n\nfunc main() {}\n"
	modelReply    = `{\"summary\":\"Widget library.\",\"technologies\":[\"Go\"],\"structure\":\"Single main package.\"}`
)

type recordingCopier struct {
	copied []string
}

func (copier *recordingCopier) Copy(text string) error {
	copier.copied = append(copier.copied, text)
	return nil
}

type sourceHost struct {
	server   *httptest.Server
	requests atomic.Int32
}

func newSourceHost(t *testing.T) *sourceHost {
	t.Helper()
	host := &sourceHost{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/repos/acme/widget", func(writer http.ResponseWriter, request *http.Request) {
		host.requests.Add(1)
		writer.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(writer, `{"name":"widget","default_branch":"main"}`)
	})
	mux.HandleFunc("/api/repos/acme/widget/git/trees/main", func(writer http.ResponseWriter, request *http.Request) {
		host.requests.Add(1)
		writer.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(writer, `{"sha":"abc","truncated":false,"tree":[
			{"path":"README.md","type":"blob","size":%d},
			{"path":"main.go","type":"blob","size":%d},
			{"path":"logo.png","type":"blob","size":900}
		]}`, len(readmeContent), len(mainContent))
	})
	mux.HandleFunc("/raw/acme/widget/main/README.md", func(writer http.ResponseWriter, request *http.Request) {
		host.requests.Add(1)
		_, _ = io.WriteString(writer, readmeContent)
	})
	mux.HandleFunc("/raw/acme/widget/main/main.go", func(writer http.ResponseWriter, request *http.Request) {
		host.requests.Add(1)
		_, _ = io.WriteString(writer, mainContent)
	})
	host.server = httptest.NewServer(mux)
	t.Cleanup(host.server.Close)
	return host
}

func newModelServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if !strings.HasSuffix(request.URL.Path, "/chat/completions") {
			http.NotFound(writer, request)
			return
		}
		writer.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(writer, `{"id":"1","object":"chat.completion","created":1,"model":"test-model","choices":[{"index":0,"message":{"role":"assistant","content":"%s"},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`, modelReply)
	}))
	t.Cleanup(server.Close)
	return server
}

type testHarness struct {
	environment runtimeEnvironment
	stdout      *bytes.Buffer
	copier      *recordingCopier
}

func newHarness(t *testing.T, host *sourceHost, variables map[string]string) *testHarness {
	t.Helper()
	values := map[string]string{
		"REPOSUM_LOGGING_LEVEL":       "error",
		"REPOSUM_GITHUB_API_BASE_URL": host.server.URL + "/api",
		"REPOSUM_GITHUB_RAW_BASE_URL": host.server.URL + "/raw",
	}
	for name, value := range variables {
		values[name] = value
	}
	stdout := &bytes.Buffer{}
	copier := &recordingCopier{}
	return &testHarness{
		stdout: stdout,
		copier: copier,
		environment: runtimeEnvironment{
			loadOptions: config.LoadOptions{
				WorkingDirectory: t.TempDir(),
				HomeDirectory:    t.TempDir(),
				LookupEnvironment: func(name string) (string, bool) {
					value, found := values[name]
					return value, found
				},
			},
			copier: copier,
			stdout: stdout,
		},
	}
}

func (harness *testHarness) run(ctx context.Context, arguments ...string) error {
	rootCommand := createRootCommand(harness.environment)
	rootCommand.SetErr(io.Discard)
	rootCommand.SetArgs(normalizeBooleanFlagArguments(rootCommand, arguments))
	return rootCommand.ExecuteContext(ctx)
}

func TestContextCommandPrintsAssembledContext(t *testing.T) {
	t.Parallel()

	host := newSourceHost(t)
	harness := newHarness(t, host, nil)

	if err := harness.run(context.Background(), "context", "https://github.com/acme/widget"); err != nil {
		t.Fatalf("context command failed: %v", err)
	}
	printed := harness.stdout.String()
	for _, expected := range []string{
		"## Directory Structure",
		"### File: README.md\n" + readmeContent,
		"### File: main.go\n" + mainContent,
		"Summary: 2 files",
	} {
		if !strings.Contains(printed, expected) {
			t.Fatalf("expected output to contain %q, got:\n%s", expected, printed)
		}
	}
	if strings.Index(printed, "File: README.md") > strings.Index(printed, "File: main.go") {
		t.Fatalf("expected README before main.go:\n%s", printed)
	}
	if strings.Contains(printed, "logo.png") {
		t.Fatalf("binary file should be excluded:\n%s", printed)
	}
	if len(harness.copier.copied) != 0 {
		t.Fatalf("clipboard used without --clipboard")
	}
}

func TestContextCommandClipboardFlag(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		arguments    []string
		expectCopies int
	}{
		{name: "bare flag", arguments: []string{"context", "--clipboard", "github.com/acme/widget"}, expectCopies: 1},
		{name: "explicit no", arguments: []string{"context", "--clipboard", "no", "github.com/acme/widget"}, expectCopies: 0},
		{name: "explicit yes", arguments: []string{"context", "--clipboard=yes", "github.com/acme/widget"}, expectCopies: 1},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			harness := newHarness(t, newSourceHost(t), nil)
			if err := harness.run(context.Background(), testCase.arguments...); err != nil {
				t.Fatalf("context command failed: %v", err)
			}
			if len(harness.copier.copied) != testCase.expectCopies {
				t.Fatalf("expected %d copies, got %d", testCase.expectCopies, len(harness.copier.copied))
			}
			if testCase.expectCopies > 0 && !strings.Contains(harness.copier.copied[0], readmeContent) {
				t.Fatalf("unexpected clipboard content %q", harness.copier.copied[0])
			}
		})
	}
}

func TestContextCommandBudget(t *testing.T) {
	t.Parallel()

	harness := newHarness(t, newSourceHost(t), nil)
	if err := harness.run(context.Background(), "context", "--budget", "0", "github.com/acme/widget"); err == nil {
		t.Fatalf("expected error for non-positive budget")
	}

	harness = newHarness(t, newSourceHost(t), nil)
	if err := harness.run(context.Background(), "context", "--budget", "60", "github.com/acme/widget"); err != nil {
		t.Fatalf("context command failed: %v", err)
	}
	if strings.Contains(harness.stdout.String(), "### File:") {
		t.Fatalf("expected no files within a 60 character budget:\n%s", harness.stdout.String())
	}
}

func TestContextCommandRejectsInvalidURL(t *testing.T) {
	t.Parallel()

	host := newSourceHost(t)
	harness := newHarness(t, host, nil)
	if err := harness.run(context.Background(), "context", "https://example.com/acme/widget"); err == nil {
		t.Fatalf("expected invalid URL error")
	}
	if host.requests.Load() != 0 {
		t.Fatalf("expected no source host requests, got %d", host.requests.Load())
	}
}

func TestSummarizeCommand(t *testing.T) {
	t.Parallel()

	model := newModelServer(t)
	harness := newHarness(t, newSourceHost(t), map[string]string{
		"NEBIUS_API_KEY":  "secret",
		"NEBIUS_API_BASE": model.URL,
	})

	if err := harness.run(context.Background(), "summarize", "--format", "json", "https://github.com/acme/widget"); err != nil {
		t.Fatalf("summarize command failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(harness.stdout.Bytes(), &decoded); err != nil {
		t.Fatalf("decode output: %v\n%s", err, harness.stdout.String())
	}
	if decoded["summary"] != "Widget library." {
		t.Fatalf("unexpected summary %v", decoded)
	}

	rawHarness := newHarness(t, newSourceHost(t), map[string]string{
		"NEBIUS_API_KEY":  "secret",
		"NEBIUS_API_BASE": model.URL,
	})
	if err := rawHarness.run(context.Background(), "summarize", "github.com/acme/widget"); err != nil {
		t.Fatalf("summarize command failed: %v", err)
	}
	if !strings.Contains(rawHarness.stdout.String(), "Repository: acme/widget") {
		t.Fatalf("unexpected raw output:\n%s", rawHarness.stdout.String())
	}
}

func TestSummarizeCommandErrors(t *testing.T) {
	t.Parallel()

	host := newSourceHost(t)
	harness := newHarness(t, host, nil)
	err := harness.run(context.Background(), "summarize", "github.com/acme/widget")
	if !errors.Is(err, summarizer.ErrMissingAPIKey) {
		t.Fatalf("expected missing API key error, got %v", err)
	}
	if host.requests.Load() != 0 {
		t.Fatalf("expected no source host requests before the key check, got %d", host.requests.Load())
	}

	if err := harness.run(context.Background(), "summarize", "--format", "xml", "github.com/acme/widget"); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestConfigInitCommand(t *testing.T) {
	t.Parallel()

	harness := newHarness(t, newSourceHost(t), nil)
	if err := harness.run(context.Background(), "config", "init"); err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	expectedPath := filepath.Join(harness.environment.loadOptions.WorkingDirectory, config.LocalConfigFileName)
	if _, statErr := os.Stat(expectedPath); statErr != nil {
		t.Fatalf("expected configuration at %s: %v", expectedPath, statErr)
	}
	if err := harness.run(context.Background(), "config", "init"); err == nil {
		t.Fatalf("expected error when configuration exists")
	}
	if err := harness.run(context.Background(), "config", "init", "--force"); err != nil {
		t.Fatalf("config init --force failed: %v", err)
	}
}

func TestServeCommandRunsUntilCanceled(t *testing.T) {
	t.Parallel()

	harness := newHarness(t, newSourceHost(t), nil)
	addresses := make(chan string, 1)
	harness.environment.notifyAddress = func(address string) { addresses <- address }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- harness.run(ctx, "serve", "--address", "127.0.0.1:0")
	}()

	var address string
	select {
	case address = <-addresses:
	case runErr := <-done:
		t.Fatalf("serve exited early: %v", runErr)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not report its address")
	}

	response, getErr := http.Get("http://" + address + "/context")
	if getErr != nil {
		t.Fatalf("request failed: %v", getErr)
	}
	_ = response.Body.Close()
	if response.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET /context, got %d", response.StatusCode)
	}

	cancel()
	select {
	case runErr := <-done:
		if runErr != nil {
			t.Fatalf("serve returned error: %v", runErr)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop after cancellation")
	}
}

func TestNormalizeBooleanFlagArguments(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		arguments []string
		expected  []string
	}{
		{name: "literal value joined", arguments: []string{"context", "--clipboard", "no", "url"}, expected: []string{"context", "--clipboard=no", "url"}},
		{name: "positional kept", arguments: []string{"context", "--clipboard", "url"}, expected: []string{"context", "--clipboard", "url"}},
		{name: "non boolean flag untouched", arguments: []string{"context", "--budget", "1", "url"}, expected: []string{"context", "--budget", "1", "url"}},
		{name: "terminator stops rewriting", arguments: []string{"--", "--clipboard", "yes"}, expected: []string{"--", "--clipboard", "yes"}},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			normalized := normalizeBooleanFlagArguments(createRootCommand(runtimeEnvironment{}), testCase.arguments)
			if strings.Join(normalized, " ") != strings.Join(testCase.expected, " ") {
				t.Fatalf("expected %v, got %v", testCase.expected, normalized)
			}
		})
	}
}
