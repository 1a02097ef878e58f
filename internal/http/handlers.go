package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tilecache/internal/config"
	"tilecache/internal/library"
	"tilecache/internal/tileset"
)

type TileRenderer interface {
	RenderTile(rel string, id int) (*tileset.TileImage, error)
}

type Handlers struct {
	config   *config.Config
	logger   *zap.Logger
	library  *library.Library
	renderer TileRenderer
}

func New(config *config.Config, logger *zap.Logger, library *library.Library, renderer TileRenderer) *Handlers {
	return &Handlers{
		config:   config,
		logger:   logger,
		library:  library,
		renderer: renderer,
	}
}

// Routes registers every endpoint on a new mux wrapped in the middlewares.
func (h *Handlers) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/tilesets", h.HandleTilesets)
	mux.HandleFunc("/api/tilesets/meta", h.HandleTilesetMeta)
	mux.HandleFunc("/api/tilesets/tile", h.HandleTile)
	mux.HandleFunc("/api/tilesets/tile.png", h.HandleTileImage)
	mux.HandleFunc("/healthz", h.HandleHealthz)

	return h.CORSMiddleware(h.RequestLoggingMiddleware(mux))
}

func (h *Handlers) RequestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		start := time.Now()

		ip := h.extractIP(r)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		wrapped.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)

		h.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("ip", ip),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Int64("bytes", wrapped.bytesWritten),
			zap.Int64("duration_ms", duration.Milliseconds()),
			zap.String("user_agent", r.UserAgent()),
		)
	})
}

func (h *Handlers) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigin := ""

		if h.config.AllowedOrigin != "" {
			allowedOrigin = h.config.AllowedOrigin
		} else {
			host := r.Host
			if origin != "" && (strings.HasPrefix(origin, "http://"+host) || strings.HasPrefix(origin, "https://"+host)) {
				allowedOrigin = origin
			} else if origin == "" {
				allowedOrigin = "*"
			}
		}

		if allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type tilesetEntry struct {
	Path   string `json:"path"`
	Cached bool   `json:"cached"`
}

func (h *Handlers) HandleTilesets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	paths := h.library.Paths()
	entries := make([]tilesetEntry, 0, len(paths))
	for _, p := range paths {
		_, cached := h.library.Cached(p)
		entries = append(entries, tilesetEntry{Path: p, Cached: cached})
	}

	writeJSON(w, entries)
}

func (h *Handlers) HandleTilesetMeta(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ts, hit, ok := h.getTileset(w, r)
	if !ok {
		return
	}

	w.Header().Set("X-Cache", cacheStatus(hit))
	writeJSON(w, map[string]interface{}{
		"instance_id": ts.InstanceID,
		"name":        ts.Name,
		"tile_width":  ts.TileWidth,
		"tile_height": ts.TileHeight,
		"spacing":     ts.Spacing,
		"margin":      ts.Margin,
		"tile_count":  ts.TileCount,
		"columns":     ts.Columns,
		"rows":        ts.Rows(),
		"image":       ts.Image,
		"tiles":       ts.Tiles,
	})
}

func (h *Handlers) HandleTile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, ok := parseTileID(w, r)
	if !ok {
		return
	}

	ts, hit, ok := h.getTileset(w, r)
	if !ok {
		return
	}

	rect, err := ts.TileRect(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"id":     id,
		"x":      rect.Min.X,
		"y":      rect.Min.Y,
		"width":  rect.Dx(),
		"height": rect.Dy(),
	}
	if tile, ok := ts.Tile(id); ok {
		response["type"] = tile.Type
		response["properties"] = tile.Properties
	}

	w.Header().Set("X-Cache", cacheStatus(hit))
	writeJSON(w, response)
}

func (h *Handlers) HandleTileImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, ok := parseTileID(w, r)
	if !ok {
		return
	}

	result, err := h.renderer.RenderTile(r.URL.Query().Get("path"), id)
	if err != nil {
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Failed to render tile", zap.Error(err))
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("ETag", `"`+result.ETag+`"`)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(result.Data)))
	w.Header().Set("Content-Type", result.ContentType)

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	w.Write(result.Data)
}

func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// getTileset resolves the path query parameter and writes the error response
// itself when that fails.
func (h *Handlers) getTileset(w http.ResponseWriter, r *http.Request) (*tileset.Tileset, bool, bool) {
	ts, hit, err := h.library.Get(r.URL.Query().Get("path"))
	if err != nil {
		http.Error(w, err.Error(), errorStatus(err))
		return nil, false, false
	}
	return ts, hit, true
}

func parseTileID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.URL.Query().Get("id"))
	if err != nil || id < 0 {
		http.Error(w, "Invalid tile id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, library.ErrInvalidPath):
		return http.StatusBadRequest
	case errors.Is(err, library.ErrNotFound), errors.Is(err, tileset.ErrTileOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, tileset.ErrInvalidTileset), errors.Is(err, tileset.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func cacheStatus(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// Not for real production use due to potential spoofing
func (h *Handlers) extractIP(r *http.Request) string {
	ip := r.Header.Get("X-Real-Ip")
	if ip != "" {
		return strings.Split(ip, ":")[0]
	}

	addr := r.RemoteAddr
	if addr != "" {
		return strings.Split(addr, ":")[0]
	}

	return "unknown"
}

type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}
