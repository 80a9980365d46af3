package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"packshot-studio/internal/config"
	"packshot-studio/internal/ean"
	"packshot-studio/internal/history"
	"packshot-studio/internal/httpclient"
	"packshot-studio/internal/packshot"
	"packshot-studio/internal/removebg"
	"packshot-studio/internal/vision"
)

const maxUploadBytes = 100 << 20

type server struct {
	cfg       config.Config
	processor *packshot.Processor
	vis       *vision.Client
	store     *history.Store
	logger    *slog.Logger
}

type apiError struct {
	Error string `json:"error"`
}

type packshotResult struct {
	Filename string `json:"filename"`
	Data     string `json:"data,omitempty"`
	Error    string `json:"error,omitempty"`
}

type packshotResponse struct {
	BatchID string           `json:"batchId,omitempty"`
	Results []packshotResult `json:"results"`
}

type renamePreviewRequest struct {
	Filenames          []string       `json:"filenames"`
	RemoveLeadingZeros bool           `json:"removeLeadingZeros"`
	AIResults          []ean.AIResult `json:"aiResults,omitempty"`
}

type renamePreviewResponse struct {
	Previews []ean.RenamePreview `json:"previews"`
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg)

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4:            cfg.PreferIPv4,
		Timeout:               cfg.HTTPTimeout,
		ResponseHeaderTimeout: cfg.RemoveTimeout,
	})

	remover := removebg.New(removebg.Options{
		APIKey:        cfg.RemoveBGAPIKey,
		BaseURL:       cfg.RemoveBGURL,
		HTTPClient:    httpClient,
		Logger:        logger,
		MaxMegapixels: cfg.MaxMegapixels,
		MaxBodyBytes:  cfg.MaxBodyBytes,
		Timeout:       cfg.RemoveTimeout,
	})

	processor := packshot.New(packshot.ProcessorOptions{
		Remover: remover,
		Logger:  logger,
	})

	s := &server{
		cfg:       cfg,
		processor: processor,
		logger:    logger,
	}

	if cfg.GeminiAPIKey != "" {
		s.vis = vision.New(vision.Options{
			APIKey:     cfg.GeminiAPIKey,
			BaseURL:    cfg.GeminiBaseURL,
			APIVersion: cfg.GeminiVersion,
			HTTPClient: httpClient,
			Logger:     logger,
		})
	}

	if cfg.HistoryDB != "" {
		store, err := history.New(cfg.HistoryDB)
		if err != nil {
			logger.Error("history store init failed", "err", err)
			os.Exit(1)
		}
		defer store.Close()
		s.store = store
	}

	addr := strings.TrimSpace(getEnv("WEB_ADDR", ":8080"))

	mux := http.NewServeMux()
	mux.HandleFunc("/api/packshot", s.handlePackshot)
	mux.HandleFunc("/api/rename/preview", s.handleRenamePreview)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/history/", s.handleHistoryItems)

	srv := &http.Server{
		Addr:              addr,
		Handler:           withLogging(mux, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       90 * time.Second,
	}

	logger.Info("web started", "addr", addr, "remove_bg", remover.Enabled(), "vision", s.vis != nil, "history", s.store != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
	}
}

func (s *server) handlePackshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid multipart form"})
		return
	}

	files := formFiles(r)
	if len(files) == 0 {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "missing images"})
		return
	}

	items := make([]packshot.Item, 0, len(files))
	for _, fh := range files {
		data, err := readFile(fh)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "failed to read " + fh.Filename})
			return
		}
		items = append(items, packshot.Item{Filename: fh.Filename, Data: data})
	}

	opts := packshot.Options{
		RemoveBackground: parseBool(r.FormValue("remove_background")),
		FrameSize:        s.cfg.FrameSize,
		Concurrency:      s.cfg.MaxConcurrent,
	}
	if raw := strings.TrimSpace(r.FormValue("frame_size")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size <= 0 {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid frame_size"})
			return
		}
		opts.FrameSize = size
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	results := s.processor.ProcessAll(ctx, items, opts)

	resp := packshotResponse{Results: make([]packshotResult, len(results))}
	for i, res := range results {
		resp.Results[i] = packshotResult{
			Filename: res.Filename,
			Data:     base64.StdEncoding.EncodeToString(res.Data),
			Error:    res.Error,
		}
	}

	if s.store != nil {
		originals := make([]string, len(items))
		for i, item := range items {
			originals[i] = item.Filename
		}
		batch, err := s.store.RecordBatch("packshot", originals, results)
		if err != nil {
			s.logger.Warn("history write failed", "err", err)
		} else {
			resp.BatchID = batch.ID
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleRenamePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}

	contentType := strings.TrimSpace(r.Header.Get("Content-Type"))
	if strings.HasPrefix(contentType, "multipart/") {
		s.renamePreviewMultipart(w, r)
		return
	}

	var req renamePreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid json body"})
		return
	}

	previews := ean.PreviewRenames(req.Filenames, ean.PreviewOptions{
		RemoveLeadingZeros: req.RemoveLeadingZeros,
		AIResults:          req.AIResults,
	})
	writeJSON(w, http.StatusOK, renamePreviewResponse{Previews: previews})
}

// renamePreviewMultipart previews renames for uploaded files; names without
// a pattern match optionally go through the vision model first.
func (s *server) renamePreviewMultipart(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid multipart form"})
		return
	}

	files := formFiles(r)
	if len(files) == 0 {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "missing images"})
		return
	}

	names := make([]string, len(files))
	for i, fh := range files {
		names[i] = fh.Filename
	}

	var aiResults []ean.AIResult
	if parseBool(r.FormValue("use_ai")) && s.vis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
		defer cancel()

		aiResults = make([]ean.AIResult, len(files))
		for i, fh := range files {
			if _, ok := ean.ExtractFromFilename(fh.Filename); ok {
				continue
			}
			data, err := readFile(fh)
			if err != nil {
				continue
			}
			result, err := s.vis.ExtractEAN(ctx, data, fh.Header.Get("Content-Type"))
			if err != nil {
				s.logger.Warn("ean extraction failed", "file", fh.Filename, "err", err)
				continue
			}
			aiResults[i] = result
		}
	}

	previews := ean.PreviewRenames(names, ean.PreviewOptions{
		RemoveLeadingZeros: parseBool(r.FormValue("remove_leading_zeros")),
		AIResults:          aiResults,
	})
	writeJSON(w, http.StatusOK, renamePreviewResponse{Previews: previews})
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}
	if s.store == nil {
		writeJSON(w, http.StatusNotFound, apiError{Error: "history disabled"})
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	batches, err := s.store.ListBatches(limit)
	if err != nil {
		s.logger.Error("history list failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "history unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"batches": batches})
}

func (s *server) handleHistoryItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}
	if s.store == nil {
		writeJSON(w, http.StatusNotFound, apiError{Error: "history disabled"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/history/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusNotFound, apiError{Error: "not found"})
		return
	}

	items, err := s.store.BatchItems(id)
	if err != nil {
		s.logger.Error("history items failed", "err", err, "batch", id)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "history unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func formFiles(r *http.Request) []*multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	if files := r.MultipartForm.File["images"]; len(files) > 0 {
		return files
	}
	return r.MultipartForm.File["image"]
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	file, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseBool(value string) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}

func withLogging(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Info("http", "method", r.Method, "path", r.URL.Path, "dur_ms", time.Since(start).Milliseconds())
	})
}
