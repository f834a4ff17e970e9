package e2e

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	startupTimeout = 10 * time.Second
	pollInterval   = 100 * time.Millisecond
)

// lockedBuffer is a thread-safe wrapper around bytes.Buffer.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (lb *lockedBuffer) Write(p []byte) (int, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.buf.Write(p)
}

func (lb *lockedBuffer) String() string {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.buf.String()
}

// serverProc holds the running server subprocess and its output.
type serverProc struct {
	cmd    *exec.Cmd
	stdout *lockedBuffer
	url    string
}

var (
	builtBinary string
	buildOnce   sync.Once
	buildErr    error
)

func getBinary(t *testing.T) string {
	t.Helper()
	buildOnce.Do(func() {
		dir, err := os.MkdirTemp("", "agenttask-e2e-*")
		if err != nil {
			buildErr = err
			return
		}
		binary := filepath.Join(dir, "agenttask")
		cmd := exec.Command("go", "build", "-o", binary, "./cmd/agenttask")
		cmd.Dir = findRepoRoot(t)
		out, err := cmd.CombinedOutput()
		if err != nil {
			buildErr = fmt.Errorf("go build failed: %w\n%s", err, out)
			return
		}
		builtBinary = binary
	})
	if buildErr != nil {
		t.Fatal(buildErr)
	}
	return builtBinary
}

func findRepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find repo root")
		}
		dir = parent
	}
}

// startServer runs "agenttask serve" against the SQLite file at dbPath.
func startServer(t *testing.T, binary, dbPath string) *serverProc {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	stdout := &lockedBuffer{}
	cmd := exec.Command(binary, "serve")
	cmd.Env = append(os.Environ(),
		"AGENTTASK_LISTEN_ADDR="+addr,
		"AGENTTASK_STORE=sqlite",
		"AGENTTASK_DB_PATH="+dbPath,
		"AGENTTASK_LOG_LEVEL=info",
	)
	cmd.Stdout = stdout
	cmd.Stderr = stdout

	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}

	sp := &serverProc{
		cmd:    cmd,
		stdout: stdout,
		url:    "http://" + addr,
	}

	t.Cleanup(sp.stop)

	deadline := time.Now().Add(startupTimeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(sp.url + "/healthz")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == 200 {
				return sp
			}
		}
		time.Sleep(pollInterval)
	}
	t.Fatalf("server did not become ready within %v\nstdout:\n%s", startupTimeout, stdout.String())
	return nil
}

func (sp *serverProc) stop() {
	if sp.cmd.ProcessState != nil {
		return
	}
	sp.cmd.Process.Kill()
	sp.cmd.Wait()
}

func TestBinaryHealthzAndMetrics(t *testing.T) {
	sp := startServer(t, getBinary(t), filepath.Join(t.TempDir(), "test.db"))

	resp, err := http.Get(sp.url + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	var health map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode healthz: %v", err)
	}
	resp.Body.Close()
	if health["status"] != "ok" {
		t.Errorf("status = %v, want ok", health["status"])
	}
	if health["step_types"] != float64(7) {
		t.Errorf("step_types = %v, want 7", health["step_types"])
	}

	resp, err = http.Get(sp.url + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	for _, name := range []string{"agenttask_http_requests_total", "agenttask_http_request_duration_seconds"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestBinaryStructuredJSONLogs(t *testing.T) {
	sp := startServer(t, getBinary(t), filepath.Join(t.TempDir(), "test.db"))

	resp, err := http.Get(sp.url + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()

	// Poll for log output with a deadline.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(sp.stdout.String(), `"msg":"request"`) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	scanner := bufio.NewScanner(strings.NewReader(sp.stdout.String()))
	foundRequestLog := false
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if entry["msg"] == "request" {
			foundRequestLog = true
			for _, key := range []string{"method", "path", "status", "duration_ms"} {
				if _, ok := entry[key]; !ok {
					t.Errorf("request log missing field %q", key)
				}
			}
		}
	}
	if !foundRequestLog {
		t.Errorf("no structured request log found in stdout\noutput:\n%s", sp.stdout.String())
	}
}

func TestBinaryTasksSurviveRestart(t *testing.T) {
	binary := getBinary(t)
	dbPath := filepath.Join(t.TempDir(), "test.db")

	sp := startServer(t, binary, dbPath)
	payload := `{"name":"persisted","config":{"steps":[{"type":"set","config":{"value":"kept"},"responseVariable":"out"}]}}`
	resp, err := http.Post(sp.url+"/v1/tasks", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("POST /v1/tasks: %v", err)
	}
	var created map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	resp.Body.Close()
	id, _ := created["id"].(string)
	if len(id) != 26 {
		t.Fatalf("id = %v, expected 26-char ULID", created["id"])
	}
	sp.stop()

	sp = startServer(t, binary, dbPath)
	resp, err = http.Post(sp.url+"/v1/tasks/"+id+"/run", "application/json", nil)
	if err != nil {
		t.Fatalf("POST run: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want 200\nbody: %s", resp.StatusCode, b)
	}
	var run map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	vars, _ := run["variables"].(map[string]any)
	if vars["out"] != "kept" {
		t.Errorf("variables = %v, want out=kept", run["variables"])
	}
}
