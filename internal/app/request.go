package app

import (
	"bytes"
	"maps"
	"net/http"

	"github.com/dshills/atomik/internal/dispatcher"
)

// Request is the incoming request of one Run.
type Request interface {
	dispatcher.Request

	// URI is the requested URI. Empty means it is read from the trigger
	// query parameter.
	URI() string

	// Session is the request's session data; nil when sessions are off.
	Session() map[string]any
}

// Response receives the output of one Run.
type Response interface {
	dispatcher.Response
	SetStatus(code int)
}

// RequestOption configures a request built by NewRequest.
type RequestOption func(*request)

// WithScriptPath sets the path of the front script, from which base_url
// is derived.
func WithScriptPath(path string) RequestOption {
	return func(r *request) {
		r.script = path
	}
}

// WithSession gives the request a session.
func WithSession(session map[string]any) RequestOption {
	return func(r *request) {
		r.session = session
	}
}

type request struct {
	method  string
	uri     string
	query   map[string]any
	script  string
	session map[string]any
}

// NewRequest creates a request for uri. A nil query is an empty one.
func NewRequest(method, uri string, query map[string]any, opts ...RequestOption) Request {
	if method == "" {
		method = http.MethodGet
	}
	r := &request{
		method: method,
		uri:    uri,
		query:  maps.Clone(query),
		script: "/index.php",
	}
	if r.query == nil {
		r.query = make(map[string]any)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *request) Method() string          { return r.method }
func (r *request) URI() string             { return r.uri }
func (r *request) Query() map[string]any   { return r.query }
func (r *request) ScriptPath() string      { return r.script }
func (r *request) Session() map[string]any { return r.session }

// BufferResponse collects the output in memory.
type BufferResponse struct {
	bytes.Buffer

	Status  int
	Headers http.Header
}

// NewBufferResponse creates an empty response with status 200.
func NewBufferResponse() *BufferResponse {
	return &BufferResponse{Status: http.StatusOK, Headers: make(http.Header)}
}

// SetStatus sets the status code.
func (r *BufferResponse) SetStatus(code int) {
	r.Status = code
}

// SetHeader replaces the header key.
func (r *BufferResponse) SetHeader(key, value string) {
	if r.Headers == nil {
		r.Headers = make(http.Header)
	}
	r.Headers.Set(key, value)
}
