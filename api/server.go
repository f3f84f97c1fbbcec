package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/fabfab/rag-explorer/chat"
	"github.com/fabfab/rag-explorer/domain"
	"github.com/fabfab/rag-explorer/ingestion"
	"github.com/fabfab/rag-explorer/retrieval"
)

// multipartOverhead is the slack allowed on top of the upload limit for the
// multipart envelope and the other form fields.
const multipartOverhead = 1 << 20

// Server exposes the analyse, prompt preview and question answering workflows
// over HTTP.
type Server struct {
	chat      *chat.Service
	ingestion *ingestion.Service
	maxUpload int64
	logger    *log.Logger
	handler   http.Handler
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type promptRequest struct {
	Context  string `json:"context"`
	Question string `json:"question"`
	Role     string `json:"role"`
}

type queryRequest struct {
	Question          string   `json:"question"`
	CollectionName    string   `json:"collection_name"`
	CollectionNames   []string `json:"collection_names"`
	PromptingStrategy string   `json:"prompting_strategy"`
	Role              string   `json:"role"`
	TopK              *int     `json:"top_k"`
	RunAllStrategies  bool     `json:"run_all_strategies"`
}

// New constructs a Server. maxUpload caps the size of analysed files; zero
// selects ingestion.DefaultMaxUploadBytes.
func New(chatSvc *chat.Service, ingestSvc *ingestion.Service, maxUpload int64, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if maxUpload <= 0 {
		maxUpload = ingestion.DefaultMaxUploadBytes
	}

	s := &Server{chat: chatSvc, ingestion: ingestSvc, maxUpload: maxUpload, logger: logger}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/chunking/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/prompting/generate", s.handlePrompts)
	mux.HandleFunc("/api/rag/query", s.handleQuery)
	mux.HandleFunc("/api/rag/status", s.handleStatus)
	mux.HandleFunc("/api/rag/collections/{name}", s.handleDeleteCollection)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, fmt.Errorf("file too large, max %d bytes: %w", s.maxUpload, domain.ErrInvalidInput))
			return
		}
		s.writeError(w, fmt.Errorf("parse form: %w: %w", domain.ErrInvalidInput, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, fmt.Errorf("file is required: %w", domain.ErrInvalidInput))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.maxUpload+1))
	if err != nil {
		s.writeError(w, fmt.Errorf("read upload: %w", err))
		return
	}

	req := ingestion.AnalyzeRequest{
		Filename:      header.Filename,
		Data:          data,
		IndexStrategy: r.FormValue("index_strategy"),
		AutoIndex:     true,
	}
	if v := strings.TrimSpace(r.FormValue("chunk_size")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, fmt.Errorf("chunk_size must be a positive integer: %w", domain.ErrInvalidInput))
			return
		}
		req.ChunkTokens = n
	}
	if v := strings.TrimSpace(r.FormValue("auto_index")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, fmt.Errorf("auto_index must be a boolean: %w", domain.ErrInvalidInput))
			return
		}
		req.AutoIndex = b
	}

	resp, err := s.ingestion.Analyze(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePrompts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req promptRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, fmt.Errorf("decode request: %w: %w", domain.ErrInvalidInput, err))
		return
	}

	preview, err := s.chat.Prompts(req.Context, req.Question, req.Role)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, preview)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, fmt.Errorf("decode request: %w: %w", domain.ErrInvalidInput, err))
		return
	}

	topK := chat.DefaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}

	collections := append(retrieval.SplitCollections(req.CollectionName), req.CollectionNames...)
	resp, err := s.chat.Answer(r.Context(), chat.Request{
		Question:         req.Question,
		Collections:      collections,
		TopK:             topK,
		RunAllStrategies: req.RunAllStrategies,
		Strategy:         req.PromptingStrategy,
		Role:             req.Role,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	status, err := s.chat.Status(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		s.methodNotAllowed(w, http.MethodDelete)
		return
	}

	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		s.writeError(w, fmt.Errorf("collection name is required: %w", domain.ErrInvalidInput))
		return
	}

	chunks, err := s.ingestion.Delete(r.Context(), name)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: fmt.Sprintf("collection %s deleted (%d chunks)", name, chunks)})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeStatus(w, http.StatusMethodNotAllowed, domain.KindInputError, fmt.Errorf("method not allowed, use %s", allowed))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

// writeError reports err with the status its kind maps to.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := domain.Kind(err)
	s.writeStatus(w, statusFor(kind), kind, err)
}

func (s *Server) writeStatus(w http.ResponseWriter, status int, kind string, err error) {
	s.logger.Printf("api error (%d): %v", status, err)
	s.writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

func statusFor(kind string) int {
	switch kind {
	case domain.KindInputError:
		return http.StatusBadRequest
	case domain.KindNotConfigured:
		return http.StatusServiceUnavailable
	case domain.KindNotFound, domain.KindEmpty, domain.KindNoResults:
		return http.StatusNotFound
	case domain.KindGenerationFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}

	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}

	return nil
}
