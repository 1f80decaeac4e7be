// Package clientapi implements the Client API HTTP surface from spec §6.3:
// topic creation/listing, message enqueue/dequeue, and status. Grounded on
// the teacher's pkg/api/http.go handler structure (a *http.ServeMux behind
// a single ServeHTTP), generalized to the broker's four operations and to
// always answering with HTTP 200 plus a logical {success: ...} body rather
// than the teacher's status-code-per-outcome style — a hard requirement of
// spec §6.3 ("All client responses return HTTP 200 on logical success or
// failure").
package clientapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/raftmq/broker/internal/command"
	"github.com/raftmq/broker/internal/raftnode"
	"github.com/raftmq/broker/internal/statemachine"
)

// engine is the subset of *raftnode.Engine the Client API depends on.
type engine interface {
	Submit(ctx context.Context, cmd command.Command) (statemachine.Result, error)
	Status() raftnode.Status
	LeaderHint() *int
}

// Server mounts /topic, /message, /message/<topic>, and /status.
type Server struct {
	engine     engine
	mux        *http.ServeMux
	submitWait time.Duration
}

// NewServer builds a Server backed by engine. submitWait bounds how long a
// request blocks waiting for its command to apply before returning a
// {success: false} timeout response (design default 2s, spec §5's
// cancellable wait).
func NewServer(e engine, submitWait time.Duration) *Server {
	if submitWait <= 0 {
		submitWait = 2 * time.Second
	}
	s := &Server{engine: e, mux: http.NewServeMux(), submitWait: submitWait}
	s.mux.HandleFunc("/topic", s.handleTopic)
	s.mux.HandleFunc("/message", s.handleMessage)
	s.mux.HandleFunc("/message/", s.handleDequeue)
	s.mux.HandleFunc("/status", s.handleStatus)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// submit appends cmd and waits for its result, translating ErrNotLeader and
// timeouts into a {success: false} body rather than a non-200 status, per
// spec §6.3.
func (s *Server) submit(r *http.Request, cmd command.Command) statemachine.Result {
	ctx, cancel := context.WithTimeout(r.Context(), s.submitWait)
	defer cancel()

	result, err := s.engine.Submit(ctx, cmd)
	if err != nil {
		return statemachine.Result{Success: false, Error: err.Error()}
	}
	return result
}

type topicRequest struct {
	Topic string `json:"topic"`
}

func (s *Server) handleTopic(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		var req topicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		result := s.submit(r, command.CreateTopic(req.Topic))
		writeJSON(w, map[string]bool{"success": result.Success})

	case http.MethodGet:
		result := s.submit(r, command.ListTopics())
		topics := result.Topics
		if topics == nil {
			topics = []string{}
		}
		writeJSON(w, map[string]interface{}{"success": result.Success, "topics": topics})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type messageRequest struct {
	Topic   string `json:"topic"`
	Message string `json:"message"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	result := s.submit(r, command.Enqueue(req.Topic, req.Message))
	writeJSON(w, map[string]bool{"success": result.Success})
}

func (s *Server) handleDequeue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	topic := strings.TrimPrefix(r.URL.Path, "/message/")
	if topic == "" {
		http.Error(w, "topic required", http.StatusBadRequest)
		return
	}

	result := s.submit(r, command.Dequeue(topic))
	if !result.Success {
		writeJSON(w, map[string]bool{"success": false})
		return
	}
	writeJSON(w, map[string]interface{}{"success": true, "message": result.Message})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.engine.Status()
	writeJSON(w, map[string]interface{}{"role": status.Role.String(), "term": status.Term})
}
