package jobboard

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/ats-scorer/internal/candidates"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc(jobsPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"total":2,"jobs":[{"id":1,"title":"Risk analyst","description":"fraud"},{"id":"2","title":"Ops"}]}`))
	})
	mux.HandleFunc(applicationsPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != userAgent {
			http.Error(w, "bad agent", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		gz.Write([]byte(`{"total":2,"applications":[` +
			`{"id":10,"candidate_name":"Zoe","job_id":1,"cv_url":"https://cv.example/zoe.pdf","answers":[{"question":"Why?","value":"Because"}]},` +
			`{"id":11,"candidate_name":"Ana","job_id":1,"answers":[{"question":"Stack","value":["go","sql"]},{"question":"Notice","value":{"weeks":2}}]},` +
			`{"id":12,"candidate_name":"Luis","job_id":1}]}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestFetchJobs(t *testing.T) {
	server := newTestServer(t)
	core, logs := observer.New(zap.InfoLevel)
	client := New(zap.New(core), server.URL+"/", "secret")

	jobs, err := client.FetchJobs(context.Background())
	if err != nil {
		t.Fatalf("FetchJobs returned error: %v", err)
	}

	want := []candidates.Job{
		{ID: 1, Title: "Risk analyst", Description: "fraud"},
		{ID: 2, Title: "Ops"},
	}
	if len(jobs) != len(want) {
		t.Fatalf("expected %d jobs, got %d", len(want), len(jobs))
	}
	for i := range want {
		if jobs[i] != want[i] {
			t.Fatalf("job %d: expected %+v, got %+v", i, want[i], jobs[i])
		}
	}

	entries := logs.FilterMessage("fetched jobs").All()
	if len(entries) != 1 {
		t.Fatalf("expected one fetched jobs log entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["count"]; got != int64(2) {
		t.Fatalf("expected count 2 in log, got %v", got)
	}
}

func TestFetchApplicationsGzip(t *testing.T) {
	server := newTestServer(t)
	client := New(nil, server.URL, "secret")

	apps, err := client.FetchApplications(context.Background())
	if err != nil {
		t.Fatalf("FetchApplications returned error: %v", err)
	}
	if len(apps) != 3 {
		t.Fatalf("expected three applications, got %d", len(apps))
	}

	app := apps[0]
	if app.ID != 10 || app.JobID != 1 || app.CandidateName != "Zoe" || app.CVURL != "https://cv.example/zoe.pdf" {
		t.Fatalf("unexpected application: %+v", app)
	}
	if got := string(app.Answers); got != `[{"question":"Why?","value":"Because"}]` {
		t.Fatalf("unexpected answers: %s", got)
	}
}

func TestFetchApplicationsKeepsAnswerShapes(t *testing.T) {
	server := newTestServer(t)
	client := New(nil, server.URL, "secret")

	apps, err := client.FetchApplications(context.Background())
	if err != nil {
		t.Fatalf("FetchApplications returned error: %v", err)
	}
	if len(apps) != 3 {
		t.Fatalf("expected three applications, got %d", len(apps))
	}

	var answers []map[string]any
	if err := json.Unmarshal(apps[1].Answers, &answers); err != nil {
		t.Fatalf("answers are not json: %v", err)
	}
	if len(answers) != 2 {
		t.Fatalf("expected two answers, got %s", apps[1].Answers)
	}
	stack, ok := answers[0]["value"].([]any)
	if !ok || len(stack) != 2 || stack[0] != "go" || stack[1] != "sql" {
		t.Fatalf("expected list value to survive, got %#v", answers[0]["value"])
	}
	if notice, ok := answers[1]["value"].(map[string]any); !ok || notice["weeks"] != float64(2) {
		t.Fatalf("expected object value to survive, got %#v", answers[1]["value"])
	}

	if apps[2].Answers != nil {
		t.Fatalf("expected missing answers to stay nil, got %s", apps[2].Answers)
	}
}

func TestBadStatus(t *testing.T) {
	server := newTestServer(t)
	client := New(nil, server.URL, "wrong")

	_, err := client.FetchJobs(context.Background())
	if err == nil {
		t.Fatal("expected error for unauthorized response")
	}
	if !strings.Contains(err.Error(), "bad status: 401") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMissingListIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"total":0}`))
	}))
	defer server.Close()

	jobs, err := New(nil, server.URL, "secret").FetchJobs(context.Background())
	if err != nil {
		t.Fatalf("FetchJobs returned error: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(jobs))
	}
}
