package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCompatLifecycle(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp := doJSON(t, http.MethodPost, ts.URL+"/agent-task/save", `{
		"name": "legacy",
		"config": {"steps": [{"type": "set", "config": {"value": "v"}, "responseVariable": "out"}]}
	}`)
	expectStatus(t, resp, http.StatusOK)
	var saved compatResponse
	decodeBody(t, resp, &saved)
	if !saved.Success || saved.Task == nil || saved.Task.UUID == "" {
		t.Fatalf("save = %+v", saved)
	}
	uuid := saved.Task.UUID

	resp = doJSON(t, http.MethodGet, ts.URL+"/agent-task/list", "")
	expectStatus(t, resp, http.StatusOK)
	var list compatListResponse
	decodeBody(t, resp, &list)
	if !list.Success || len(list.Tasks) != 1 || list.Tasks[0].UUID != uuid {
		t.Errorf("list = %+v", list)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/agent-task/"+uuid, "")
	expectStatus(t, resp, http.StatusOK)
	var got compatResponse
	decodeBody(t, resp, &got)
	if !got.Success || got.Task.Name != "legacy" || got.Task.CreatedAt == nil {
		t.Errorf("get = %+v", got)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/agent-task/"+uuid+"/run", "")
	expectStatus(t, resp, http.StatusOK)
	var run compatResponse
	decodeBody(t, resp, &run)
	if !run.Success || run.Results == nil || !run.Results.Success {
		t.Fatalf("run = %+v", run)
	}
	if run.Results.Variables["out"] != "v" || len(run.Results.Results) != 1 {
		t.Errorf("run results = %+v", run.Results)
	}

	resp = doJSON(t, http.MethodDelete, ts.URL+"/agent-task/"+uuid, "")
	expectStatus(t, resp, http.StatusOK)
	var del compatResponse
	decodeBody(t, resp, &del)
	if !del.Success {
		t.Errorf("delete = %+v", del)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/agent-task/"+uuid, "")
	expectStatus(t, resp, http.StatusNotFound)
	var missing compatResponse
	decodeBody(t, resp, &missing)
	if missing.Success || missing.Error == "" {
		t.Errorf("missing = %+v", missing)
	}
}

func TestCompatSaveRequiresNameAndConfig(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	for _, body := range []string{
		`{"config":{"steps":[{"type":"set"}]}}`,
		`{"name":"x"}`,
	} {
		resp := doJSON(t, http.MethodPost, ts.URL+"/agent-task/save", body)
		expectStatus(t, resp, http.StatusBadRequest)
		var out compatResponse
		decodeBody(t, resp, &out)
		if out.Success || out.Error != "Name and config are required" {
			t.Errorf("body %s: response = %+v", body, out)
		}
	}
}

func TestCompatSaveOverwriteByUUID(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	task := createTask(t, ts.URL, greetTask)

	resp := doJSON(t, http.MethodPost, ts.URL+"/agent-task/save",
		`{"uuid":"`+task.ID+`","name":"updated","config":{"steps":[{"type":"fail"}]}}`)
	expectStatus(t, resp, http.StatusOK)
	var out compatResponse
	decodeBody(t, resp, &out)
	if out.Task.UUID != task.ID || out.Task.Name != "updated" {
		t.Errorf("overwrite = %+v", out.Task)
	}
}

func TestCompatRunFailure(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	task := createTask(t, ts.URL, `{"name":"f","config":{"steps":[{"type":"fail","config":{"message":"bad"}}]}}`)

	resp := doJSON(t, http.MethodPost, ts.URL+"/agent-task/"+task.ID+"/run", "")
	expectStatus(t, resp, http.StatusInternalServerError)
	var out compatResponse
	decodeBody(t, resp, &out)
	if out.Success || out.Results == nil || out.Results.Success {
		t.Fatalf("run failure = %+v", out)
	}
	if out.Results.Results[0].Error != "bad" {
		t.Errorf("step error = %q, want bad", out.Results.Results[0].Error)
	}
}
