// Package apitest runs an in-memory backend that speaks the REST envelope
// contract for every resource definition. It counts calls per operation,
// can require a bearer token and can inject failures.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dailyyoga/studysync/resource"
	"github.com/gorilla/mux"
)

// Prefix is the API root mounted on the test server
const Prefix = "/api"

// Doc is a stored document
type Doc = map[string]any

type failure struct {
	status  int
	message string
}

// Option configures the server
type Option func(*Server)

// WithToken requires "Authorization: Bearer <token>" on every request
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithDelay delays every response
func WithDelay(d time.Duration) Option {
	return func(s *Server) { s.delay = d }
}

// WithClock overrides the time stamped on created and updated documents
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// Server is the fake backend
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	token    string
	delay    time.Duration
	now      func() time.Time
	docs     map[string]map[string]Doc
	calls    map[string]int
	failures map[string]failure
	seq      int
}

// New starts a server with routes for every resource definition
func New(opts ...Option) *Server {
	s := &Server{
		now:      time.Now,
		docs:     make(map[string]map[string]Doc),
		calls:    make(map[string]int),
		failures: make(map[string]failure),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	api := r.PathPrefix(Prefix).Subrouter()
	for _, def := range resource.Definitions() {
		for op, ep := range def.Endpoints {
			path := "/" + def.Domain + "/" + ep.Action
			if ep.WithID {
				path += "/{id}"
			}
			api.HandleFunc(path, s.handler(def, op)).Methods(ep.Method)
		}
	}
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusNotFound, "Route not found", nil)
	})

	s.Server = httptest.NewServer(r)
	return s
}

// BaseURL is the URL to configure the HTTP client with
func (s *Server) BaseURL() string {
	return s.URL + Prefix
}

// SetToken changes the required token, empty disables the check
func (s *Server) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// SetDelay changes the response delay
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Seed stores documents, assigning ids to those without one, and returns the ids
func (s *Server) Seed(name string, docs ...Doc) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		doc := copyDoc(d)
		id, _ := doc["_id"].(string)
		if id == "" {
			id = s.nextIDLocked(name)
			doc["_id"] = id
		}
		s.collectionLocked(name)[id] = doc
		ids = append(ids, id)
	}
	return ids
}

// Doc returns a copy of a stored document
func (s *Server) Doc(name, id string) (Doc, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[name][id]
	if !ok {
		return nil, false
	}
	return copyDoc(d), true
}

// Count returns the number of stored documents of a resource
func (s *Server) Count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs[name])
}

// Calls returns how many requests reached an operation, including rejected ones
func (s *Server) Calls(name string, op resource.Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[callKey(name, op)]
}

// TotalCalls returns the number of requests served
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// ResetCalls zeroes the counters
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = make(map[string]int)
}

// Fail makes an operation answer with status and message until ClearFailures
func (s *Server) Fail(name string, op resource.Op, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[callKey(name, op)] = failure{status: status, message: message}
}

// ClearFailures removes every injected failure
func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]failure)
}

func (s *Server) handler(def resource.Definition, op resource.Op) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[callKey(def.Name, op)]++
		token, delay := s.token, s.delay
		fail, failing := s.failures[callKey(def.Name, op)]
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			writeEnvelope(w, http.StatusUnauthorized, "Unauthorized", nil)
			return
		}
		if failing {
			writeEnvelope(w, fail.status, fail.message, nil)
			return
		}

		id := mux.Vars(r)["id"]
		switch op {
		case resource.OpList:
			s.list(w, r, def)
		case resource.OpGet:
			s.get(w, def, id)
		case resource.OpCreate:
			s.create(w, r, def)
		case resource.OpUpdate:
			s.update(w, r, def, id)
		case resource.OpDelete:
			s.delete(w, def, id)
		}
	}
}

// list applies every query parameter except pagination and search as an equality filter
func (s *Server) list(w http.ResponseWriter, r *http.Request, def resource.Definition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := r.URL.Query()
	out := make([]Doc, 0, len(s.docs[def.Name]))
	for _, d := range s.docs[def.Name] {
		if matches(d, query) {
			out = append(out, copyDoc(d))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return fmt.Sprint(out[i]["_id"]) < fmt.Sprint(out[j]["_id"])
	})
	writeEnvelope(w, http.StatusOK, "Success", out)
}

func (s *Server) get(w http.ResponseWriter, def resource.Definition, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.docs[def.Name][id]
	if !ok {
		writeEnvelope(w, http.StatusNotFound, def.Label+" not found", nil)
		return
	}
	writeEnvelope(w, http.StatusOK, "Success", copyDoc(d))
}

func (s *Server) create(w http.ResponseWriter, r *http.Request, def resource.Definition) {
	var in Doc
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeEnvelope(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextIDLocked(def.Name)
	now := s.now().UTC().Format(time.RFC3339Nano)
	in["_id"] = id
	in["createdAt"] = now
	in["updatedAt"] = now
	s.collectionLocked(def.Name)[id] = in
	writeEnvelope(w, http.StatusCreated, def.Label+" created", copyDoc(in))
}

func (s *Server) update(w http.ResponseWriter, r *http.Request, def resource.Definition, id string) {
	var in Doc
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeEnvelope(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.docs[def.Name][id]
	if !ok {
		writeEnvelope(w, http.StatusNotFound, def.Label+" not found", nil)
		return
	}
	for k, v := range in {
		if k == "_id" {
			continue
		}
		d[k] = v
	}
	d["updatedAt"] = s.now().UTC().Format(time.RFC3339Nano)
	writeEnvelope(w, http.StatusOK, def.Label+" updated", copyDoc(d))
}

func (s *Server) delete(w http.ResponseWriter, def resource.Definition, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[def.Name][id]; !ok {
		writeEnvelope(w, http.StatusNotFound, def.Label+" not found", nil)
		return
	}
	delete(s.docs[def.Name], id)
	writeEnvelope(w, http.StatusOK, def.Label+" deleted", nil)
}

func (s *Server) collectionLocked(name string) map[string]Doc {
	c, ok := s.docs[name]
	if !ok {
		c = make(map[string]Doc)
		s.docs[name] = c
	}
	return c
}

func (s *Server) nextIDLocked(name string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", strings.TrimSuffix(name, "s"), s.seq)
}

func matches(d Doc, query map[string][]string) bool {
	for k, vals := range query {
		switch k {
		case "page", "limit", "search":
			continue
		}
		got, ok := d[k]
		if !ok || len(vals) == 0 || fmt.Sprint(got) != vals[0] {
			return false
		}
	}
	return true
}

func copyDoc(d Doc) Doc {
	out := make(Doc, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func callKey(name string, op resource.Op) string {
	return name + " " + string(op)
}

func writeEnvelope(w http.ResponseWriter, status int, message string, data any) {
	state := "success"
	if status >= 400 {
		state = "fail"
	}
	if status >= 500 {
		state = "error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":     state,
		"statusCode": status,
		"message":    message,
		"data":       data,
	})
}
