package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Little-Star888/agenttask/internal/model"
)

func submitTask(t *testing.T, baseURL, taskID string) model.RunResult {
	t.Helper()
	resp := doJSON(t, http.MethodPost, baseURL+"/v1/tasks/"+taskID+"/run/async", `{"variables":{"who":"bg"}}`)
	expectStatus(t, resp, http.StatusAccepted)
	var res model.RunResult
	decodeBody(t, resp, &res)
	if loc := resp.Header.Get("Location"); loc != "/v1/runs/"+res.RunID {
		t.Errorf("Location = %q, want /v1/runs/%s", loc, res.RunID)
	}
	return res
}

// waitForRun polls the run until it reaches a terminal status.
func waitForRun(t *testing.T, baseURL, runID string) model.RunResult {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp := doJSON(t, http.MethodGet, baseURL+"/v1/runs/"+runID, "")
		expectStatus(t, resp, http.StatusOK)
		var res model.RunResult
		decodeBody(t, resp, &res)
		if res.Status == model.RunCompleted || res.Status == model.RunFailed {
			return res
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("run %s did not finish", runID)
	return model.RunResult{}
}

func TestSubmitTaskCompletes(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	task := createTask(t, ts.URL, `{"name":"bg","config":{"steps":[
		{"type":"delay","config":{"duration":"20ms"}},
		{"type":"set","config":{"value":"hi ${who}"},"responseVariable":"out"}
	]}}`)

	pending := submitTask(t, ts.URL, task.ID)
	if pending.Status != model.RunPending {
		t.Errorf("submitted status = %q, want %q", pending.Status, model.RunPending)
	}

	final := waitForRun(t, ts.URL, pending.RunID)
	if !final.Success || final.Variables["out"] != "hi bg" {
		t.Errorf("final run = %+v", final)
	}

	resp := doJSON(t, http.MethodGet, ts.URL+"/v1/runs", "")
	expectStatus(t, resp, http.StatusOK)
	var list listRunsResponse
	decodeBody(t, resp, &list)
	if list.Total != 1 || list.Runs[0].RunID != pending.RunID {
		t.Errorf("runs = %+v", list)
	}
}

func TestSubmitDisabledTask(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	task := createTask(t, ts.URL, `{"name":"off","config":{"active":false,"steps":[{"type":"fail"}]}}`)

	resp := doJSON(t, http.MethodPost, ts.URL+"/v1/tasks/"+task.ID+"/run/async", "")
	expectErrorReason(t, resp, http.StatusConflict, reasonTaskDisabled)
}

func TestCancelRun(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	task := createTask(t, ts.URL, `{"name":"slow","config":{"steps":[
		{"type":"delay","config":{"duration":"10s"}},
		{"type":"set","config":{"value":1},"responseVariable":"never"}
	]}}`)
	pending := submitTask(t, ts.URL, task.ID)

	resp := doJSON(t, http.MethodDelete, ts.URL+"/v1/runs/"+pending.RunID, "")
	expectStatus(t, resp, http.StatusAccepted)

	final := waitForRun(t, ts.URL, pending.RunID)
	if final.Status != model.RunFailed || final.Reason != model.ReasonCancelled {
		t.Errorf("final = %s/%s, want failed/cancelled", final.Status, final.Reason)
	}
	if final.Steps[1].Ran {
		t.Error("step after cancellation ran")
	}
	if _, ok := final.Variables["never"]; ok {
		t.Error("variable from skipped step is present")
	}
}

func TestRunNotFound(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp := doJSON(t, http.MethodGet, ts.URL+"/v1/runs/unknown", "")
	expectErrorReason(t, resp, http.StatusNotFound, reasonNotFound)

	resp = doJSON(t, http.MethodDelete, ts.URL+"/v1/runs/unknown", "")
	expectErrorReason(t, resp, http.StatusNotFound, reasonNotFound)

	resp = doJSON(t, http.MethodGet, ts.URL+"/v1/runs/unknown/events", "")
	expectErrorReason(t, resp, http.StatusNotFound, reasonNotFound)
}

func TestStreamEvents(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	task := createTask(t, ts.URL, `{"name":"stream","config":{"steps":[
		{"type":"delay","config":{"duration":"500ms"}},
		{"type":"set","config":{"value":"done"},"responseVariable":"result"}
	]}}`)
	pending := submitTask(t, ts.URL, task.ID)

	resp, err := http.Get(ts.URL + "/v1/runs/" + pending.RunID + "/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	// The handler ends the stream once the run finishes.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	stream := string(body)

	if !strings.Contains(stream, "event: "+model.EventStepCompleted+"\n") {
		t.Errorf("stream missing step.completed event:\n%s", stream)
	}
	if !strings.Contains(stream, "event: "+model.EventRunFinished+"\n") {
		t.Errorf("stream missing run.finished event:\n%s", stream)
	}
	if !strings.HasSuffix(stream, "event: done\ndata: completed\n\n") {
		t.Errorf("stream should end with done/completed:\n%s", stream)
	}
}

func TestStreamEventsFinishedRun(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	task := createTask(t, ts.URL, `{"name":"quick","config":{"steps":[{"type":"fail","config":{"message":"nope"}}]}}`)
	pending := submitTask(t, ts.URL, task.ID)
	waitForRun(t, ts.URL, pending.RunID)

	resp, err := http.Get(ts.URL + "/v1/runs/" + pending.RunID + "/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if got, want := string(body), "event: done\ndata: failed\n\n"; got != want {
		t.Errorf("stream = %q, want %q", got, want)
	}
}

func TestWriteSSEEventMultiline(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := writeSSEEvent(rec, "log", "one\ntwo"); err != nil {
		t.Fatalf("writeSSEEvent: %v", err)
	}
	if got, want := rec.Body.String(), "event: log\ndata: one\ndata: two\n\n"; got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}
