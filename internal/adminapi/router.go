// Package adminapi serves a read-only HTTP inspection surface for a
// running server node: federations, federates, and connects as JSON.
// It exists for operators and never touches the RTI wire protocol; all
// handlers run their reads through the server loop's post queue so the
// single-goroutine model state is never raced.
package adminapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/openrti/rtinode/internal/federation"
	"github.com/openrti/rtinode/internal/logger"
	"github.com/openrti/rtinode/internal/serverloop"
)

// FederationSummary is the JSON shape of one federation.
type FederationSummary struct {
	Name               string `json:"name"`
	Handle             uint64 `json:"handle"`
	LogicalTimeFactory string `json:"logicalTimeFactory,omitempty"`
	FederateCount      int    `json:"federateCount"`
	ObjectInstances    int    `json:"objectInstances"`
	ObjectClasses      int    `json:"objectClasses"`
	InteractionClasses int    `json:"interactionClasses"`
	Modules            int    `json:"modules"`
}

// FederateSummary is the JSON shape of one joined federate.
type FederateSummary struct {
	Name           string `json:"name"`
	Handle         uint64 `json:"handle"`
	Type           string `json:"type,omitempty"`
	ResignPending  bool   `json:"resignPending"`
	TimeRegulating bool   `json:"timeRegulating"`
}

// ConnectSummary is the JSON shape of one transport connect.
type ConnectSummary struct {
	Handle   uint64 `json:"handle"`
	Name     string `json:"name,omitempty"`
	IsParent bool   `json:"isParent"`
}

// Server pairs the chi router with the loop it reads through.
type Server struct {
	loop *serverloop.Loop
	log  *logger.Logger
	auth *Auth
}

// NewServer builds the admin surface over loop. auth may be nil to
// serve unauthenticated (tests only).
func NewServer(loop *serverloop.Loop, log *logger.Logger, auth *Auth) *Server {
	return &Server{loop: loop, log: log, auth: auth}
}

// Router assembles the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if s.auth != nil {
			r.Use(s.auth.Middleware)
		}
		r.Get("/federations", s.listFederations)
		r.Get("/federations/{name}/federates", s.listFederates)
		r.Get("/connects", s.listConnects)
	})
	return r
}

// onLoop runs fn on the dispatch goroutine and waits for its result,
// bounded by the request context.
func (s *Server) onLoop(r *http.Request, fn func() any) (any, bool) {
	done := make(chan any, 1)
	s.loop.PostOperation(func() {
		done <- fn()
	})
	select {
	case v := <-done:
		return v, true
	case <-r.Context().Done():
		return nil, false
	}
}

func (s *Server) listFederations(w http.ResponseWriter, r *http.Request) {
	v, ok := s.onLoop(r, func() any {
		node := s.loop.Dispatcher().Node()
		out := make([]FederationSummary, 0)
		for _, fed := range node.Federations() {
			out = append(out, FederationSummary{
				Name:               fed.Name,
				Handle:             uint64(fed.Handle),
				LogicalTimeFactory: fed.LogicalTimeFactoryName,
				FederateCount:      fed.FederateCount(),
				ObjectInstances:    fed.Instances.Len(),
				ObjectClasses:      fed.Model.ObjectClassCount(),
				InteractionClasses: fed.Model.InteractionClassCount(),
				Modules:            fed.Model.ModuleCount(),
			})
		}
		return out
	})
	if !ok {
		http.Error(w, "request cancelled", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) listFederates(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	v, ok := s.onLoop(r, func() any {
		node := s.loop.Dispatcher().Node()
		fed, ok := node.FederationByName(name)
		if !ok {
			return nil
		}
		out := make([]FederateSummary, 0, fed.FederateCount())
		for _, f := range fed.Federates() {
			out = append(out, federateSummary(f))
		}
		return out
	})
	if !ok {
		http.Error(w, "request cancelled", http.StatusServiceUnavailable)
		return
	}
	if v == nil {
		http.Error(w, "federation not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func federateSummary(f *federation.Federate) FederateSummary {
	return FederateSummary{
		Name:           f.Name,
		Handle:         uint64(f.Handle),
		Type:           f.Type,
		ResignPending:  f.ResignPending,
		TimeRegulating: f.IsTimeRegulating(),
	}
}

func (s *Server) listConnects(w http.ResponseWriter, r *http.Request) {
	v, ok := s.onLoop(r, func() any {
		node := s.loop.Dispatcher().Node()
		out := make([]ConnectSummary, 0, node.ConnectCount())
		for _, c := range node.Connects() {
			out = append(out, ConnectSummary{
				Handle:   uint64(c.Handle),
				Name:     c.Name,
				IsParent: c.IsParent,
			})
		}
		return out
	})
	if !ok {
		http.Error(w, "request cancelled", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// bearerToken extracts the token from an Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(h, "Bearer "), true
}
