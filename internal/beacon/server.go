package beacon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/cssfp/internal/database"
)

const (
	// DefaultShutdownTimeout bounds the graceful shutdown.
	DefaultShutdownTimeout = 5 * time.Second

	// cookiePreviewLength is how much of a cookie header is logged.
	cookiePreviewLength = 20

	// verifyMarker in a path is answered with the 1x1 pixel.
	verifyMarker = "verify_"
)

// HitRecorder stores beacon hits. *database.Store implements it.
type HitRecorder interface {
	InsertBeaconHit(ctx context.Context, hit *database.BeaconHit) (int64, error)
}

// Server is an HTTP endpoint that records every request a stylesheet sink
// makes, so that conditional fetches can be observed from outside the
// browser.
type Server struct {
	addr      string
	staticDir string
	logger    *slog.Logger
	recorder  HitRecorder
	clock     func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for hits and server errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStaticDir serves existing files below dir.
func WithStaticDir(dir string) Option {
	return func(s *Server) {
		s.staticDir = dir
	}
}

// WithRecorder stores every hit.
func WithRecorder(r HitRecorder) Option {
	return func(s *Server) {
		s.recorder = r
	}
}

// WithClock sets the time source of hit timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		s.clock = clock
	}
}

// NewServer creates a beacon server listening on addr.
func NewServer(addr string, opts ...Option) *Server {
	s := &Server{
		addr:   addr,
		logger: slog.Default(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListenAndServe listens on the configured address and serves until ctx is
// canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled, then shuts down
// gracefully. It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("beacon server listening", "address", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("beacon server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down beacon server: %w", err)
	}
	s.logger.Info("beacon server stopped")
	return nil
}

// Handler returns the request handler. Every path is accepted.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serveHTTP)
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		w.Header().Set("Allow", "GET, POST, PUT, DELETE")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	hit := s.newHit(r)
	w.Header().Set("X-Request-Id", hit.HitID)

	s.logger.Info("beacon hit",
		"hit_id", hit.HitID,
		"client_ip", hit.ClientIP,
		"method", hit.Method,
		"url", hit.URL,
		"headers", hit.Headers,
		"cookie_preview", hit.Cookie,
	)
	if s.recorder != nil {
		if _, err := s.recorder.InsertBeaconHit(r.Context(), hit); err != nil {
			s.logger.Warn("failed to store beacon hit", "hit_id", hit.HitID, "error", err)
		}
	}

	file := strings.TrimPrefix(r.URL.Path, "/")
	if strings.Contains(file, verifyMarker) {
		s.servePixel(w)
		return
	}
	if s.serveStatic(w, r, file) {
		return
	}
	writeNotFound(w, file)
}

// newHit captures the parts of a request worth keeping.
func (s *Server) newHit(r *http.Request) *database.BeaconHit {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	headers := r.Header.Clone()
	cookie := cookiePreview(headers.Get("Cookie"))
	if cookie != "" {
		headers.Set("Cookie", cookie)
	}

	return &database.BeaconHit{
		HitID:     id.String(),
		ClientIP:  clientIP(r.RemoteAddr),
		Method:    r.Method,
		URL:       requestURL(r),
		Path:      r.URL.Path,
		Headers:   headers,
		Cookie:    cookie,
		Timestamp: s.clock(),
	}
}

// cookiePreview keeps the first characters of a cookie header.
func cookiePreview(cookie string) string {
	if cookie == "" {
		return ""
	}
	r := []rune(cookie)
	if len(r) > cookiePreviewLength {
		r = r[:cookiePreviewLength]
	}
	return string(r) + "..."
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// requestURL rebuilds the absolute URL the client asked for.
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// pixel is a transparent 1x1 PNG.
var pixel = sync.OnceValue(func() []byte {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.NRGBA{})
	var buf bytes.Buffer
	_ = png.Encode(&buf, img) //nolint:errcheck // encoding into memory
	return buf.Bytes()
})

func (s *Server) servePixel(w http.ResponseWriter) {
	data := pixel()
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data) //nolint:errcheck
}

// serveStatic serves file from the static directory and reports whether it
// did. os.Root keeps lookups inside the directory.
func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request, file string) bool {
	if s.staticDir == "" || file == "" {
		return false
	}
	root, err := os.OpenRoot(s.staticDir)
	if err != nil {
		s.logger.Warn("static directory unavailable", "dir", s.staticDir, "error", err)
		return false
	}
	defer root.Close() //nolint:errcheck

	f, err := root.Open(file)
	if err != nil {
		return false
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return false
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return true
}

// notFound is the body of a 404 answer.
type notFound struct {
	Error         string `json:"error"`
	RequestedFile string `json:"requested_file"`
}

func writeNotFound(w http.ResponseWriter, file string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_ = json.NewEncoder(w).Encode(notFound{Error: "File not found", RequestedFile: file}) //nolint:errcheck
}
