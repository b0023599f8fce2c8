package mgmt

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/schema"

	"github.com/lci-net/lcifwd/core"
)

// StatusQuery is the decoded form of the status endpoint's query
// string. Pretty defaults to false (compact JSON); ?pretty=1 indents
// the response for a human reading it in a browser.
type StatusQuery struct {
	Pretty bool `schema:"pretty"`
}

var queryDecoder = schema.NewDecoder()

func init() {
	queryDecoder.IgnoreUnknownKeys(true)
}

// StatusServer is the read-only observability surface of spec.md §7:
// it never accepts writes, the Control message family (§6) is the only
// way to mutate the forwarder's state.
type StatusServer struct {
	fw *core.Forwarder
}

// NewStatusServer builds a status HTTP handler over fw's metrics.
func NewStatusServer(fw *core.Forwarder) *StatusServer {
	return &StatusServer{fw: fw}
}

func (s *StatusServer) String() string { return "mgmt-httpstatus" }

// ServeHTTP renders the forwarder's current metrics snapshot as JSON.
func (s *StatusServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var q StatusQuery
	if err := queryDecoder.Decode(&q, r.URL.Query()); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	if q.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(s.fw.MetricsSnapshot()); err != nil {
		core.Log.Warn(s, "failed to encode status response", "err", err)
	}
}

// ListenAndServe binds and runs the status server on addr until it
// fails or the process exits. Intended to be run in its own goroutine
// by the CLI.
func (s *StatusServer) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/status", s)
	core.Log.Info(s, "status endpoint listening", "addr", addr)
	return http.ListenAndServe(addr, mux)
}
