package e2e

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
)

var (
	kfsBin   string
	projRoot string
	testEnv  *E2ETestEnvironment
)

func TestMain(m *testing.M) {
	os.Exit(runMain(m))
}

func runMain(m *testing.M) int {
	// Build kfs binary once for all tests
	tmpBinDir, err := os.MkdirTemp("", "kfs-bin")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmpBinDir)

	kfsBin = filepath.Join(tmpBinDir, "kfs")

	// Determine project root
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		panic("cannot determine current file path")
	}
	projRoot = filepath.Join(filepath.Dir(thisFile), "..", "..")

	cmd := exec.Command("go", "build", "-o", kfsBin, "./cmd")
	cmd.Dir = projRoot
	if out, err := cmd.CombinedOutput(); err != nil {
		panic(string(out))
	}

	// Create shared test environment
	testEnv, err = NewE2ETestEnvironment(kfsBin)
	if err != nil {
		panic(err)
	}
	defer testEnv.Close()

	return m.Run()
}

func TestE2EScript(t *testing.T) {
	script := strings.Join([]string{
		"listroot",
		"createroot home",
		"createroot work",
		"listroot",
		"setroot 1",
		"getroot",
		"mkdir docs",
		"mkfile docs/todo",
		"cd docs",
		"pwd",
		"open todo",
		"write 1 buy milk",
		"rewind 1",
		"read 1",
		"close 1",
		"cd ..",
		"ls",
		"mkdir docs",
		"cd docs/todo",
		"frobnicate",
		"exit",
		"listroot",
	}, "\n")

	res := testEnv.Run(t, script)
	res.requireSuccess(t)

	expected := strings.Join([]string{
		"No root nodes",
		" 1: home",
		" 2: work",
		"1: home",
		"/docs",
		"fd 1",
		"8 bytes written",
		"buy milk",
		"docs",
		"A file or a directory with this name already exists",
		"Invalid node type",
		"Command not found",
	}, "\n") + "\n"
	if res.stdout != expected {
		t.Fatalf("output mismatch:\nexpected:\n%s\ngot:\n%s", expected, res.stdout)
	}
}

func TestE2ESeedFromHTTP(t *testing.T) {
	files := []*MockFile{
		NewTestFile("/text-content").
			WithTextContent("Text file content for testing.").
			Build(),
		NewTestFile("/binary-content").
			WithBinaryContent(512). // 512 bytes of binary data
			Build(),
	}
	srv := testEnv.Serve(t, files)

	seed := testEnv.WriteFile(t, "seed.json", fmt.Sprintf(`[
		{"type": "dir", "path": "empty/dir"},
		{
			"type": "file",
			"path": "data/text.txt",
			"sources": [{"type": "http", "url": "%[1]s/text-content"}]
		},
		{
			"type": "file",
			"path": "data/binary.bin",
			"sources": [{"type": "http", "url": "%[1]s/binary-content"}]
		}
	]`, srv.URL))

	res := testEnv.Run(t, "", "--seed", seed,
		"-e", "ls",
		"-e", "cat data/text.txt",
		"-e", "stat data/binary.bin",
		"-e", "getroot")
	res.requireSuccess(t)

	for _, want := range []string{"data\nempty\n", "Text file content for testing.\n", "512 B (512 bytes)", "1: root\n"} {
		if !strings.Contains(res.stdout, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, res.stdout)
		}
	}
}

func TestE2EHTTPErrors(t *testing.T) {
	files := []*MockFile{
		NewTestFile("/not-found").WithError(http.StatusNotFound).Build(),
		NewTestFile("/server-error").WithError(http.StatusInternalServerError).Build(),
		NewTestFile("/fallback").WithTextContent("fallback content").Build(),
	}
	srv := testEnv.Serve(t, files)

	seed := testEnv.WriteFile(t, "seed.yaml", fmt.Sprintf(`
- type: file
  path: first
  sources:
    - type: http
      url: %[1]s/not-found
    - type: http
      url: %[1]s/fallback
- type: file
  path: broken
  sources:
    - type: http
      url: %[1]s/server-error
`, srv.URL))

	res := testEnv.Run(t, "", "--root", "web", "--seed", seed,
		"-e", "cat first",
		"-e", "stat broken",
		"-e", "copyto first "+srv.URL+"/server-error",
		"-e", "cat first")
	res.requireSuccess(t)

	if !strings.HasPrefix(res.stdout, "fallback content\n") {
		t.Fatalf("expected fallback content first, got:\n%s", res.stdout)
	}
	if !strings.Contains(res.stdout, "0 B (0 bytes)") {
		t.Fatalf("broken file should exist empty, got:\n%s", res.stdout)
	}
	if !strings.HasSuffix(res.stdout, "Can't access to the specified file\nfallback content\n") {
		t.Fatalf("failed copyto must keep content, got:\n%s", res.stdout)
	}
}

func TestE2ECopytoURLAndHost(t *testing.T) {
	content := bytes.Repeat([]byte("0123456789"), 100)
	srv := testEnv.Serve(t, []*MockFile{
		NewTestFile("/thousand").WithContent(content).Build(),
	})
	host := testEnv.WriteFile(t, "host.txt", "from the host")

	script := strings.Join([]string{
		"createroot r",
		"setroot 1",
		"mkfile remote",
		"mkfile local",
		"copyto remote " + srv.URL + "/thousand",
		"copyto local " + host,
		"cat local",
		"open remote",
		"seek 4 -10 end",
		"read 4",
	}, "\n")

	res := testEnv.Run(t, script)
	res.requireSuccess(t)

	// copyto and cat each use a handle; numbers are never reused
	expected := "1000 B copied\n13 B copied\nfrom the host\nfd 4\n990\n0123456789\n"
	if res.stdout != expected {
		t.Fatalf("output mismatch:\nexpected:\n%s\ngot:\n%s", expected, res.stdout)
	}
}

func TestE2EConfigFile(t *testing.T) {
	cfg := testEnv.WriteFile(t, "kfs.yaml", "max_roots: 1\nsegment_size: 4\nmax_store_bytes: 8\n")

	script := strings.Join([]string{
		"createroot one",
		"createroot two",
		"setroot 1",
		"mkfile a",
		"mkfile b",
		"open a",
		"write 1 12345678",
		"open b",
		"write 2 x",
		"stat a",
	}, "\n")

	res := testEnv.Run(t, script, "--config", cfg)
	res.requireSuccess(t)

	for _, want := range []string{"Hit resource limits\nfd 1\n8 bytes written\nfd 2\nHit resource limits\n", "Segments:"} {
		if !strings.Contains(res.stdout, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, res.stdout)
		}
	}
}

func TestE2EBadFlags(t *testing.T) {
	res := testEnv.Run(t, "", "--config", filepath.Join(testEnv.BaseDir, "missing.yaml"))
	if res.exitCode == 0 {
		t.Fatalf("expected failure for a missing config file")
	}
	if !strings.Contains(res.stderr, "load config") {
		t.Fatalf("expected config error on stderr, got:\n%s", res.stderr)
	}
}

// E2ETestEnvironment manages shared resources for all e2e tests
type E2ETestEnvironment struct {
	KfsBin  string
	BaseDir string
}

// MockFile defines a served file's content and behavior
type MockFile struct {
	path        string
	content     []byte
	contentType string
	errorCode   int // 0 = success, 404, 500, etc.
}

// TestFileBuilder provides a fluent API for creating test files
type TestFileBuilder struct {
	file MockFile
}

// result is the outcome of one kfs process
type result struct {
	stdout   string
	stderr   string
	exitCode int
}

func (r *result) requireSuccess(t *testing.T) {
	t.Helper()
	if r.exitCode != 0 {
		t.Fatalf("kfs exited with %d\nstderr:\n%s", r.exitCode, r.stderr)
	}
}

// NewTestFile creates a new test file builder with the given path
func NewTestFile(path string) *TestFileBuilder {
	return &TestFileBuilder{
		file: MockFile{
			path:        path,
			contentType: "text/plain",
		},
	}
}

// WithTextContent sets text content and appropriate content type
func (b *TestFileBuilder) WithTextContent(content string) *TestFileBuilder {
	b.file.content = []byte(content)
	b.file.contentType = "text/plain"
	return b
}

// WithBinaryContent generates binary content of the specified size
func (b *TestFileBuilder) WithBinaryContent(size int) *TestFileBuilder {
	b.file.content = make([]byte, size)
	for i := range b.file.content {
		b.file.content[i] = byte(i % 256)
	}
	b.file.contentType = "application/octet-stream"
	return b
}

// WithContent sets raw content bytes
func (b *TestFileBuilder) WithContent(content []byte) *TestFileBuilder {
	b.file.content = content
	return b
}

// WithError makes the file return an HTTP error status
func (b *TestFileBuilder) WithError(statusCode int) *TestFileBuilder {
	b.file.errorCode = statusCode
	return b
}

// Build creates the final MockFile
func (b *TestFileBuilder) Build() *MockFile {
	return &b.file
}

// NewE2ETestEnvironment creates a shared test environment
func NewE2ETestEnvironment(kfsBinary string) (*E2ETestEnvironment, error) {
	baseDir, err := os.MkdirTemp("", "kfs-e2e-tests")
	if err != nil {
		return nil, err
	}
	return &E2ETestEnvironment{KfsBin: kfsBinary, BaseDir: baseDir}, nil
}

// Close cleans up the test environment
func (env *E2ETestEnvironment) Close() {
	if env.BaseDir != "" {
		_ = os.RemoveAll(env.BaseDir) // Best effort cleanup
	}
}

// Serve starts a mock HTTP server for files that lives until the test ends
func (env *E2ETestEnvironment) Serve(t *testing.T, files []*MockFile) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for _, file := range files {
		mockFile := file
		mux.HandleFunc(file.path, func(w http.ResponseWriter, r *http.Request) {
			env.handleMockRequest(w, r, mockFile)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// handleMockRequest handles HTTP requests for mock files
func (env *E2ETestEnvironment) handleMockRequest(w http.ResponseWriter, r *http.Request, file *MockFile) {
	// Return error if specified
	if file.errorCode != 0 {
		http.Error(w, fmt.Sprintf("Mock error %d", file.errorCode), file.errorCode)
		return
	}

	w.Header().Set("Content-Type", file.contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(file.content)))

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(file.content); err != nil {
		// In tests, we can't really recover from write errors
		panic(fmt.Sprintf("Failed to write mock response: %v", err))
	}
}

// WriteFile writes content to a fresh file under a per-test directory
func (env *E2ETestEnvironment) WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	dir, err := os.MkdirTemp(env.BaseDir, "case")
	if err != nil {
		t.Fatalf("failed to create test dir: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// Run starts kfs with args, feeds stdin and waits for it to exit
func (env *E2ETestEnvironment) Run(t *testing.T, stdin string, args ...string) *result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := exec.Command(env.KfsBin, args...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	res := &result{}
	if err := cmd.Run(); err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			t.Fatalf("failed to run kfs: %v", err)
		}
		res.exitCode = exitErr.ExitCode()
	}
	res.stdout = stdout.String()
	res.stderr = stderr.String()
	return res
}
