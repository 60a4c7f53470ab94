package app

import (
	"net/http"
	"testing"
)

func TestNewRequest(t *testing.T) {
	query := map[string]any{"page": "2"}
	r := NewRequest("", "users", query, WithScriptPath("/site/index.php"))

	if r.Method() != http.MethodGet {
		t.Errorf("Method() = %q, want GET", r.Method())
	}
	if r.URI() != "users" || r.ScriptPath() != "/site/index.php" {
		t.Errorf("request = %+v", r)
	}
	if r.Session() != nil {
		t.Error("session should be off by default")
	}

	query["page"] = "3"
	if r.Query()["page"] != "2" {
		t.Error("request shares the caller's query map")
	}

	if q := NewRequest("POST", "", nil).Query(); q == nil {
		t.Error("nil query should become an empty map")
	}
}

func TestBufferResponse(t *testing.T) {
	r := NewBufferResponse()
	if r.Status != http.StatusOK {
		t.Errorf("Status = %d", r.Status)
	}
	r.SetStatus(http.StatusTeapot)
	r.SetHeader("content-type", "text/plain")
	_, _ = r.WriteString("hi")

	if r.Status != http.StatusTeapot || r.Headers.Get("Content-Type") != "text/plain" || r.String() != "hi" {
		t.Errorf("response = %d %v %q", r.Status, r.Headers, r.String())
	}

	var zero BufferResponse
	zero.SetHeader("X-Test", "1")
	if zero.Headers.Get("X-Test") != "1" {
		t.Error("zero response should allocate headers")
	}
}
