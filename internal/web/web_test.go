package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"jsoncal/internal/config"
	"jsoncal/internal/jsonschema"
	appLog "jsoncal/internal/log"
)

const standup = `{"events":[{"id":"3f2504e0-4f89-41d3-9a0c-0305e82c3301","title":"Standup","start":"2024-01-01T09:00:00Z","end":"2024-01-01T09:15:00Z"}]}`

func newTestServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	appLog.SetOutput(io.Discard)
	t.Cleanup(func() { appLog.SetOutput(os.Stderr) })
	srv := httptest.NewServer(NewServer(cfg).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, contentType, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, contentType, strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

type issueDTO struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Key     string `json:"key"`
}

type validateDTO struct {
	Valid    bool           `json:"valid"`
	Calendar map[string]any `json:"calendar"`
	Issues   []issueDTO     `json:"issues"`
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestValidateAccepts(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, data := post(t, srv.URL+"/api/validate", "application/json", standup)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	var got validateDTO
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if !got.Valid {
		t.Error("valid = false")
	}
	ev := got.Calendar["events"].([]any)[0].(map[string]any)
	if ev["private"] != false || got.Calendar["private"] != false {
		t.Errorf("defaults not applied: %s", data)
	}
}

func TestValidateYAML(t *testing.T) {
	srv := newTestServer(t, nil)
	body := `
events:
  - id: 3f2504e0-4f89-41d3-9a0c-0305e82c3301
    title: Standup
    start: "2024-01-01"
    end: "2024-01-02"
`
	resp, data := post(t, srv.URL+"/api/validate", "application/yaml", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
}

func TestValidateRejects(t *testing.T) {
	srv := newTestServer(t, nil)
	body := `{"color":"blue","events":[{"id":"3f2504e0-4f89-41d3-9a0c-0305e82c3301","title":"","start":"2024-01-01","end":"2024-01-02"}],"foo":1}`

	resp, data := post(t, srv.URL+"/api/validate", "application/json", body)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	var got validateDTO
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	want := []issueDTO{
		{Path: "color", Kind: "value_constraint", Message: "Invalid hex color (#RRGGBB)"},
		{Path: "events[0].title", Kind: "value_constraint", Message: "string must contain at least 1 character(s)"},
		{Path: "", Kind: "unknown_key", Message: `unrecognized key "foo"`, Key: "foo"},
	}
	if diff := cmp.Diff(want, got.Issues); diff != "" {
		t.Errorf("issues (-want +got):\n%s", diff)
	}

	_, data = post(t, srv.URL+"/api/validate?fail_fast=true", "application/json", body)
	got = validateDTO{}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Issues) != 1 || got.Issues[0].Path != "color" {
		t.Errorf("fail_fast issues = %+v", got.Issues)
	}

	resp, _ = post(t, srv.URL+"/api/validate", "application/json", "{not json")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("malformed JSON status = %d", resp.StatusCode)
	}
	resp, _ = post(t, srv.URL+"/api/validate", "text/calendar", "garbage")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad ICS status = %d", resp.StatusCode)
	}
}

func TestICSRoundTrip(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, data := post(t, srv.URL+"/api/ics", "application/json", standup)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(string(data), "SUMMARY:Standup") {
		t.Errorf("body:\n%s", data)
	}

	resp, back := post(t, srv.URL+"/api/validate", "text/calendar", string(data))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("re-validate status = %d: %s", resp.StatusCode, back)
	}

	resp, _ = post(t, srv.URL+"/api/ics", "application/json", `{"events":[]}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("invalid document status = %d", resp.StatusCode)
	}
}

func TestSchemaEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, tt := range []struct {
		query  string
		status int
		draft  string
	}{
		{"", http.StatusOK, "https://json-schema.org/draft/2020-12/schema"},
		{"?target=draft-07&reused=inline", http.StatusOK, "http://json-schema.org/draft-07/schema#"},
		{"?io=sideways", http.StatusBadRequest, ""},
	} {
		resp, err := http.Get(srv.URL + "/schema.json" + tt.query)
		if err != nil {
			t.Fatal(err)
		}
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != tt.status {
			t.Errorf("%q: status = %d", tt.query, resp.StatusCode)
			continue
		}
		if tt.status != http.StatusOK {
			continue
		}
		s, err := jsonschema.Parse(data)
		if err != nil {
			t.Fatalf("%q: %v", tt.query, err)
		}
		if s.SchemaURI != tt.draft {
			t.Errorf("%q: $schema = %q", tt.query, s.SchemaURI)
		}
	}
}

func TestContractEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/api/contract")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var got contractResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if !got.OK || len(got.Mismatches) != 0 {
		t.Errorf("contract = %+v", got)
	}
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "s3cret"}
	srv := newTestServer(t, cfg)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/health status = %d, want 200 without credentials", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/schema.json")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/schema.json", nil)
	req.SetBasicAuth("admin", "s3cret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("authorized status = %d", resp.StatusCode)
	}
}
