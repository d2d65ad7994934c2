// Package server is the HTTP chat surface: a web page, JSON endpoints for
// chat and the knowledge base, and a websocket for streamed replies.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dyike/BrokerGo/internal/knowledge"
)

//go:embed static
var staticFiles embed.FS

const (
	maxUploadBytes  = 32 << 20
	shutdownTimeout = 10 * time.Second
)

// Chatter runs chat turns for a session.
type Chatter interface {
	Chat(ctx context.Context, sessionID, message string) (string, error)
	Stream(ctx context.Context, sessionID, message string, onChunk func(string) error) (string, error)
	Reset(ctx context.Context, sessionID string) error
}

// KnowledgeBase indexes uploaded documents.
type KnowledgeBase interface {
	AddFile(ctx context.Context, path string) (int, error)
	DeleteSource(ctx context.Context, name string) (int64, error)
	Clear(ctx context.Context) error
}

type Server struct {
	router    *mux.Router
	chat      Chatter
	kb        KnowledgeBase
	uploadDir string
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

func New(chat Chatter, kb KnowledgeBase, uploadDir string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router:    mux.NewRouter(),
		chat:      chat,
		kb:        kb,
		uploadDir: uploadDir,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		logger: logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(s.logRequests)
	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	s.router.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)
	s.router.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)
	s.router.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	s.router.HandleFunc("/delete_file", s.handleDeleteFile).Methods(http.MethodPost)
	s.router.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)

	static, _ := fs.Sub(staticFiles, "static")
	s.router.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(static))))
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down and
// clears the knowledge base.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down, clearing knowledge base")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	shutdownErr := srv.Shutdown(shutdownCtx)
	if s.kb != nil {
		if err := s.kb.Clear(shutdownCtx); err != nil {
			s.logger.Warn("clear knowledge base", zap.Error(err))
		}
	}
	return shutdownErr
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	page, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "index missing", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	reply, err := s.chat.Chat(r.Context(), req.SessionID, req.Message)
	if err != nil {
		s.logger.Error("chat failed", zap.String("session", req.SessionID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, chatResponse{Response: "Error: " + err.Error(), SessionID: req.SessionID})
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Response: reply, SessionID: req.SessionID})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	// An empty body resets nothing.
	_ = decodeJSON(r, &req)
	if req.SessionID != "" {
		if err := s.chat.Reset(r.Context(), req.SessionID); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.kb == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "knowledge base is not configured"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing file: " + err.Error()})
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !knowledge.Supported(name) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Unsupported file type. Please upload PDF or TXT."})
		return
	}

	path, err := s.saveUpload(name, file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	defer os.Remove(path)

	n, err := s.kb.AddFile(r.Context(), path)
	if err != nil {
		s.logger.Error("index upload failed", zap.String("file", name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Successfully processed %s and added to knowledge base.", name),
		"chunks":  n,
	})
}

func (s *Server) saveUpload(name string, src io.Reader) (string, error) {
	dir := s.uploadDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(dir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("save upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("save upload: %w", err)
	}
	return path, nil
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if s.kb == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "knowledge base is not configured"})
		return
	}
	var req struct {
		Filename string `json:"filename"`
	}
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Filename) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "filename is required"})
		return
	}
	if _, err := s.kb.DeleteSource(r.Context(), req.Filename); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Successfully deleted %s from knowledge base.", req.Filename),
	})
}
