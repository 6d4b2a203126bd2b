package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"docrag/internal/config"
	"docrag/internal/models"
	"docrag/internal/providers"
	"docrag/internal/search"
	"docrag/internal/storage"
	"docrag/internal/util"
	"docrag/internal/workflows"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
)

type Server struct {
	cfg         config.Config
	db          *storage.DB
	collections *storage.CollectionRepo
	documents   *storage.DocumentRepo
	chunks      *storage.ChunkRepo
	files       *storage.FileStore
	engine      *search.Engine
	llm         providers.LLMProvider
	temporal    tclient.Client
	log         *slog.Logger
}

// NewServer wires handlers around already-constructed dependencies. The
// Temporal client is dialed by the caller and injected, never reached for
// globally.
func NewServer(cfg config.Config, db *storage.DB, engine *search.Engine, llm providers.LLMProvider, tc tclient.Client, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:         cfg,
		db:          db,
		collections: storage.NewCollectionRepo(db),
		documents:   storage.NewDocumentRepo(db),
		chunks:      storage.NewChunkRepo(db),
		files:       storage.NewFileStore(cfg.DataRoot),
		engine:      engine,
		llm:         llm,
		temporal:    tc,
		log:         log,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/collections", s.handleCollections)
	mux.HandleFunc("/api/collections/", s.handleCollectionScoped)
	mux.HandleFunc("/api/documents/", s.handleDocumentScoped)
	mux.HandleFunc("/api/search", s.handleSearch)
	mux.HandleFunc("/api/search/suggestions", s.handleSuggestions)
	mux.HandleFunc("/api/search/analytics", s.handleAnalytics)
	mux.HandleFunc("/api/rag/query", s.handleRAGQuery)
	mux.HandleFunc("/api/rag/optimize-context", s.handleOptimizeContext)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		writeErr(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		collections, err := s.collections.List(r.Context())
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"collections": collections})
	case http.MethodPost:
		var req struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("name is required"))
			return
		}
		c := models.Collection{CollectionID: uuid.NewString(), Name: req.Name, Description: req.Description}
		if err := s.collections.Create(r.Context(), c); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"collection_id": c.CollectionID, "name": c.Name})
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) handleCollectionScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/collections/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	collectionID := parts[0]

	if len(parts) == 2 && parts[1] == "documents" {
		switch r.Method {
		case http.MethodPost:
			s.handleUpload(w, r, collectionID)
		case http.MethodGet:
			docs, err := s.documents.ListByCollection(r.Context(), collectionID)
			if err != nil {
				writeErr(w, statusFor(err), err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
		default:
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		}
		return
	}
	if len(parts) == 1 && r.Method == http.MethodGet {
		c, err := s.collections.Get(r.Context(), collectionID)
		if err != nil {
			writeErr(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, c)
		return
	}

	writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
}

var uploadExtensions = map[string]bool{".pdf": true, ".txt": true, ".md": true}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, collectionID string) {
	if _, err := s.collections.Get(r.Context(), collectionID); err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		if single, ok := firstSingleFile(r.MultipartForm.File); ok {
			files = append(files, single)
		}
	}
	if len(files) == 0 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no files provided"))
		return
	}

	type uploadResult struct {
		Filename   string `json:"filename"`
		DocumentID string `json:"document_id"`
	}
	out := make([]uploadResult, 0, len(files))
	skipped := make([]string, 0)

	for _, fh := range files {
		name := filepath.Base(fh.Filename)
		if !uploadExtensions[strings.ToLower(filepath.Ext(name))] {
			skipped = append(skipped, name)
			continue
		}
		f, err := fh.Open()
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		var buf bytes.Buffer
		sum, err := util.SHA256HexFromReader(io.TeeReader(f, &buf))
		_ = f.Close()
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		data := buf.Bytes()
		if err := s.files.Write(collectionID, name, data); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		doc := models.Document{
			DocumentID:   uuid.NewString(),
			CollectionID: collectionID,
			Filename:     name,
			ContentType:  fh.Header.Get("Content-Type"),
			SizeBytes:    int64(len(data)),
			ContentHash:  sum,
			Status:       models.StatusPending,
		}
		if err := s.documents.Insert(r.Context(), doc); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		out = append(out, uploadResult{Filename: name, DocumentID: doc.DocumentID})
	}

	writeJSON(w, http.StatusOK, map[string]any{"uploaded": out, "skipped": skipped})
}

func (s *Server) handleDocumentScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/documents/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	documentID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.handleDocumentStatus(w, r, documentID)
		case http.MethodDelete:
			s.handleDocumentDelete(w, r, documentID)
		default:
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		}
		return
	}
	if len(parts) == 2 && parts[1] == "ingest" {
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.handleIngest(w, r, documentID)
		return
	}
	if len(parts) == 2 && parts[1] == "chunks" {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		chunks, err := s.chunks.ListByDocument(r.Context(), documentID)
		if err != nil {
			writeErr(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"chunks": chunks})
		return
	}

	writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request, documentID string) {
	if _, err := s.documents.Get(r.Context(), documentID); err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	// One in-flight job per document: the workflow id is derived from the
	// document id and concurrent starts are rejected.
	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                                       "ingest-" + documentID,
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.DocumentIngestWorkflow, workflows.DocumentIngestInput{DocumentID: documentID})
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"workflow_id": we.GetID(), "run_id": we.GetRunID()})
}

func (s *Server) handleDocumentStatus(w http.ResponseWriter, r *http.Request, documentID string) {
	doc, err := s.documents.Get(r.Context(), documentID)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	resp := map[string]any{"document": doc}
	// The row's chunk_count is written only at completion; the live count
	// covers documents mid-ingest or superseded by a re-run.
	if n, err := s.chunks.CountByDocument(r.Context(), documentID); err == nil {
		resp["chunk_count"] = n
	}
	// A live workflow query gives stage-level detail; fall back to the row
	// alone when no run is active.
	if qr, err := s.temporal.QueryWorkflow(r.Context(), "ingest-"+documentID, "", workflows.QueryGetStatus); err == nil {
		var live workflows.IngestStatus
		if err := qr.Get(&live); err == nil {
			resp["live"] = live
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDocumentDelete(w http.ResponseWriter, r *http.Request, documentID string) {
	doc, err := s.documents.Get(r.Context(), documentID)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	if err := s.files.Delete(doc.CollectionID, doc.Filename); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.documents.Delete(r.Context(), documentID); err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": documentID})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req search.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	results, err := s.engine.Search(r.Context(), req)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	suggestions, err := s.engine.Suggestions(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	days, err := strconv.Atoi(r.URL.Query().Get("days"))
	if err != nil || days <= 0 {
		days = 7
	}
	analytics, err := s.engine.Analytics(r.Context(), time.Now().AddDate(0, 0, -days))
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

func (s *Server) handleRAGQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		Query           string `json:"query"`
		CollectionID    string `json:"collection_id"`
		Limit           int    `json:"limit"`
		MaxContextChars int    `json:"max_context_chars"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if req.MaxContextChars <= 0 {
		req.MaxContextChars = 4000
	}
	results, err := s.engine.Search(r.Context(), search.Request{
		Query:        req.Query,
		CollectionID: req.CollectionID,
		Mode:         search.ModeHybrid,
		Limit:        req.Limit,
	})
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}

	// Sources must cite only chunks that made it into the prompt: a result
	// dropped by the context budget is not a source of the answer.
	optimized := search.OptimizeContext(results, req.MaxContextChars)
	contextText := search.JoinContext(optimized)
	prompt := fmt.Sprintf(
		"Answer the question using only the context below. Say so when the context is insufficient.\n\nContext:\n%s\n\nQuestion: %s",
		contextText, strings.TrimSpace(req.Query))
	answer, err := s.llm.Generate(r.Context(), prompt)
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}

	type source struct {
		ChunkID    string  `json:"chunk_id"`
		DocumentID string  `json:"document_id"`
		Filename   string  `json:"filename,omitempty"`
		Snippet    string  `json:"snippet"`
		Score      float64 `json:"score"`
	}
	sources := make([]source, 0, len(optimized))
	for _, res := range optimized {
		sources = append(sources, source{
			ChunkID:    res.ChunkID,
			DocumentID: res.DocumentID,
			Filename:   res.Filename,
			Snippet:    res.Snippet,
			Score:      res.Score,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"answer":        answer,
		"context_chars": len([]rune(contextText)),
		"sources":       sources,
	})
}

func (s *Server) handleOptimizeContext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		Query           string `json:"query"`
		CollectionID    string `json:"collection_id"`
		Limit           int    `json:"limit"`
		MaxContextChars int    `json:"max_context_chars"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if req.MaxContextChars <= 0 {
		req.MaxContextChars = 4000
	}
	results, err := s.engine.Search(r.Context(), search.Request{
		Query:        req.Query,
		CollectionID: req.CollectionID,
		Mode:         search.ModeHybrid,
		Limit:        req.Limit,
	})
	if err != nil {
		writeErr(w, statusFor(err), err)
		return
	}
	optimized := search.OptimizeContext(results, req.MaxContextChars)
	writeJSON(w, http.StatusOK, map[string]any{
		"results":           optimized,
		"result_count":      len(optimized),
		"context_chars":     len([]rune(search.JoinContext(optimized))),
		"max_context_chars": req.MaxContextChars,
	})
}

func firstSingleFile(form map[string][]*multipart.FileHeader) (*multipart.FileHeader, bool) {
	for _, fhs := range form {
		if len(fhs) > 0 {
			return fhs[0], true
		}
	}
	return nil, false
}

func statusFor(err error) int {
	switch {
	case util.IsValidation(err):
		return http.StatusBadRequest
	case util.IsNotFound(err):
		return http.StatusNotFound
	case util.IsRetryableProvider(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
