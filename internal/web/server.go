package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/soundbluemusic/dictgen/internal/ops"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// NewServer creates and configures the HTTP server for the dictionary preview.
// The build output is served read-only under /site/.
func NewServer(rt *ops.Runtime, version, bind string, port int) (*http.Server, error) {
	// Create sub-FS for templates (strip "templates/" prefix)
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("failed to create template sub-FS: %w", err)
	}

	// Create sub-FS for static files (strip "static/" prefix)
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to create static sub-FS: %w", err)
	}

	renderer := NewRenderer(templateSub, version, rt.Logger)

	h := &Handlers{
		rt:       rt,
		renderer: renderer,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	})
	mux.HandleFunc("GET /dashboard", h.HandleDashboard)
	mux.HandleFunc("GET /entries", h.HandleEntries)
	mux.HandleFunc("GET /entries/{id}", h.HandleEntry)
	mux.HandleFunc("GET /routes", h.HandleRoutes)
	mux.HandleFunc("GET /verify", h.HandleVerify)
	mux.HandleFunc("POST /reload", h.HandleReload)

	// The same handlers answer JSON under /api/.
	mux.HandleFunc("GET /api/meta", h.HandleDashboard)
	mux.HandleFunc("GET /api/entries", h.HandleEntries)
	mux.HandleFunc("GET /api/entries/{id}", h.HandleEntry)
	mux.HandleFunc("GET /api/routes", h.HandleRoutes)
	mux.HandleFunc("GET /api/verify", h.HandleVerify)
	mux.HandleFunc("POST /api/reload", h.HandleReload)

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticSub)))
	mux.Handle("GET /site/", http.StripPrefix("/site/", http.FileServer(http.Dir(rt.Config.OutDir))))

	handler := securityHeaders(mux)

	return &http.Server{
		Addr:              net.JoinHostPort(bind, strconv.Itoa(port)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run serves until ctx is done, then drains in-flight requests for up to five
// seconds. The CLI cancels ctx on SIGINT/SIGTERM.
func Run(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("Preview server running", zap.String("url", "http://"+srv.Addr))
	if host, _, err := net.SplitHostPort(srv.Addr); err == nil && (host == "" || host == "0.0.0.0" || host == "::") {
		logger.Warn("Server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
