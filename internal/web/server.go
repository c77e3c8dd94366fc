// Package web serves the dashboard: conversation and task list views, the
// controls that start and stop the daemon and a websocket feed of status
// changes.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	log "log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"

	"jarvis/internal/conversation"
	"jarvis/internal/status"
	"jarvis/internal/tasks"
)

//go:embed templates/*.html
var templateFS embed.FS

type Refresher interface {
	Refresh(ctx context.Context) error
}

// Daemon controls the assistant process.
type Daemon interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Running() bool
}

type Deps struct {
	Tasks        *tasks.Store
	Conversation *conversation.Log
	Status       *status.Channel
	// Scraper and Daemon are optional.
	Scraper Refresher
	Daemon  Daemon

	AudioDir     string
	ResponsePath string
}

type Server struct {
	deps     Deps
	tmpl     *template.Template
	upgrader websocket.Upgrader
}

func NewServer(deps Deps) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, err
	}
	return &Server{deps: deps, tmpl: tmpl}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /reset", s.handleReset)
	mux.HandleFunc("GET /start", s.handleStart)
	mux.HandleFunc("GET /end", s.handleEnd)
	mux.HandleFunc("GET /get_conversation", s.handleGetConversation)
	mux.HandleFunc("POST /get_conversation", s.handleDoneSpeaking)
	mux.HandleFunc("GET /get_tasks", s.handleGetTasks)
	mux.HandleFunc("POST /update_task", s.handleUpdateTask)
	mux.HandleFunc("GET /scrape_data", s.handleScrape)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.Handle("GET /audio/", noStore(http.StripPrefix("/audio/", http.FileServer(http.Dir(s.deps.AudioDir)))))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// noStore keeps browsers from replaying a previous reply; the response file
// is overwritten every turn.
func noStore(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		h.ServeHTTP(w, r)
	})
}

type pageData struct {
	Conversation []string
	Status       status.Phase
	Running      bool
	AudioURL     string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	lines, err := s.deps.Conversation.Lines()
	if err != nil {
		log.Error("Failed to read conversation", "err", err)
		http.Error(w, "failed to read conversation", http.StatusInternalServerError)
		return
	}
	if err := s.deps.Status.Set(status.Ready); err != nil {
		log.Warn("Failed to reset status", "err", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "index.html", pageData{
		Conversation: lines,
		Status:       s.deps.Status.Get(),
		Running:      s.running(),
		AudioURL:     "/audio/" + filepath.Base(s.deps.ResponsePath),
	}); err != nil {
		log.Error("Failed to render page", "err", err)
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.resetSession(); err != nil {
		http.Error(w, "failed to reset", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.refresh(r.Context())
	if err := s.resetSession(); err != nil {
		http.Error(w, "failed to reset", http.StatusInternalServerError)
		return
	}
	if s.deps.Daemon != nil {
		if err := s.deps.Daemon.Start(r.Context()); err != nil {
			log.Error("Failed to start daemon", "err", err)
			http.Error(w, "failed to start assistant", http.StatusInternalServerError)
			return
		}
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	if s.deps.Daemon != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer cancel()
		if err := s.deps.Daemon.Stop(ctx); err != nil {
			log.Warn("Failed to stop daemon cleanly", "err", err)
		}
	}
	if err := s.deps.Status.Set(status.Ready); err != nil {
		log.Warn("Failed to reset status", "err", err)
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	s.refresh(r.Context())
	http.Redirect(w, r, "/", http.StatusFound)
}

type conversationResponse struct {
	Status       status.Phase `json:"status"`
	Note         string       `json:"note,omitempty"`
	Running      bool         `json:"running"`
	Conversation []string     `json:"conversation"`
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	lines, err := s.deps.Conversation.Lines()
	if err != nil {
		log.Error("Failed to read conversation", "err", err)
		http.Error(w, "failed to read conversation", http.StatusInternalServerError)
		return
	}
	if lines == nil {
		lines = []string{}
	}
	snap := s.deps.Status.Snapshot()
	writeJSON(w, conversationResponse{
		Status:       snap.Status,
		Note:         snap.Note,
		Running:      s.running(),
		Conversation: lines,
	})
}

// handleDoneSpeaking is how the page reports the end of playback.
func (s *Server) handleDoneSpeaking(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DoneSpeaking bool `json:"doneSpeaking"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.DoneSpeaking {
		if err := s.deps.Status.Set(status.Idle); err != nil {
			log.Error("Failed to write status", "err", err)
			http.Error(w, "failed to write status", http.StatusInternalServerError)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetTasks(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Tasks.Load()
	if err != nil {
		log.Error("Failed to load tasks", "err", err)
		http.Error(w, "failed to load tasks", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"tasks": list})
}

type updateTaskRequest struct {
	Index *int   `json:"index"`
	ID    string `json:"id"`
	Done  bool   `json:"done"`
}

// handleUpdateTask sets the done flag by position or by id. Unknown targets
// are ignored.
func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var err error
	switch {
	case req.ID != "":
		_, err = s.deps.Tasks.SetDone(req.ID, req.Done)
	case req.Index != nil:
		_, err = s.deps.Tasks.Toggle(*req.Index, req.Done)
	default:
		http.Error(w, "index or id is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Error("Failed to update task", "err", err)
		http.Error(w, "failed to update task", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) resetSession() error {
	if err := s.deps.Conversation.Reset(); err != nil {
		log.Error("Failed to clear conversation", "err", err)
		return err
	}
	if err := s.deps.Tasks.Reset(); err != nil {
		log.Error("Failed to clear tasks", "err", err)
		return err
	}
	return nil
}

func (s *Server) refresh(ctx context.Context) {
	if s.deps.Scraper == nil {
		return
	}
	if err := s.deps.Scraper.Refresh(ctx); err != nil {
		log.Warn("Real-time data refresh incomplete", "err", err)
	}
}

func (s *Server) running() bool {
	return s.deps.Daemon != nil && s.deps.Daemon.Running()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
