// Package web provides the configuration and status UI of the fridge-sensor daemon.
package web

import (
	"context"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sweeney/fridge-sensor/internal/power"
	"github.com/sweeney/fridge-sensor/internal/settings"
	"github.com/sweeney/fridge-sensor/internal/status"
)

// ReasonFirmwareUpdate is the restart reason after a successful upload.
const ReasonFirmwareUpdate = "FIRMWARE_UPDATE"

// maxFirmwareSize bounds an upload.
const maxFirmwareSize = 64 << 20

// ConfigService reads and updates the running configuration.
type ConfigService interface {
	Settings() settings.Config
	ApplyUpdate(values map[string]string) (settings.Config, error)
}

// Updater installs an uploaded firmware image.
type Updater interface {
	Apply(r io.Reader) (int64, error)
}

// Options configure a Server. Updater nil disables /update; Metrics nil
// disables /metrics.
type Options struct {
	Config    ConfigService
	Tracker   *status.Tracker
	System    *status.Collector
	Updater   Updater
	Restarter power.Restarter
	Metrics   http.Handler
	Logger    *zap.SugaredLogger
}

// Server serves the UI over HTTP.
type Server struct {
	httpServer *http.Server
	opts       Options
	log        *zap.SugaredLogger
}

// New creates a Server listening on addr.
func New(addr string, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	s := &Server{opts: opts, log: opts.Logger}
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	return s
}

// Router returns the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.AllowAll().Handler)

	r.Get("/", s.handleIndex)
	r.Get("/index.html", s.handleIndex)
	r.Get("/index.json", s.handleJSON)
	r.Get("/config", s.handleConfig)
	r.Get("/system", s.handleSystem)

	r.Get("/test", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("Hello, world"))
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/getdata", s.handleGetData)
	r.Post("/getdata", s.handleGetData)
	r.Get("/getsys", s.handleGetSys)
	r.Post("/update", s.handleUpdate)

	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}
	return r
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderIndex(w, s.opts.Tracker.Snapshot(), s.opts.Config.Settings()); err != nil {
		s.log.Warnw("render index", "error", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.opts.Tracker.Snapshot()))
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderConfig(w, s.opts.Config.Settings()); err != nil {
		s.log.Warnw("render config", "error", err)
	}
}

func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderSystem(w, s.opts.System.Collect()); err != nil {
		s.log.Warnw("render system", "error", err)
	}
}

// handleGetData applies any query or form values and returns the resulting
// configuration. Rejected keys are listed in X-Config-Errors and answered
// with 400; the accepted keys are still applied.
func (s *Server) handleGetData(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	values := make(map[string]string, len(r.Form))
	for k, vs := range r.Form {
		if k == "format" || len(vs) == 0 {
			continue
		}
		// A checkbox is preceded by a hidden "false"; the last value wins.
		values[k] = vs[len(vs)-1]
	}

	cfg, err := s.opts.Config.ApplyUpdate(values)
	code := http.StatusOK
	if err != nil {
		code = http.StatusBadRequest
		msgs := make([]string, 0)
		for _, e := range multierr.Errors(err) {
			msgs = append(msgs, e.Error())
		}
		sort.Strings(msgs)
		w.Header().Set("X-Config-Errors", strings.Join(msgs, "; "))
	}
	if len(values) > 0 {
		s.log.Infow("configuration updated", "keys", len(values), "rejected", err)
	}
	if err := writeResponse(w, r, code, cfg); err != nil {
		s.log.Warnw("write getdata response", "error", err)
	}
}

func (s *Server) handleGetSys(w http.ResponseWriter, r *http.Request) {
	if err := writeResponse(w, r, http.StatusOK, s.opts.System.Collect()); err != nil {
		s.log.Warnw("write getsys response", "error", err)
	}
}

// handleUpdate streams the first file part of a multipart upload to the
// updater and restarts on success.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if s.opts.Updater == nil {
		http.Error(w, "firmware update disabled", http.StatusForbidden)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFirmwareSize)
	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "expected multipart upload", http.StatusBadRequest)
		return
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			http.Error(w, "no firmware file in upload", http.StatusBadRequest)
			return
		}
		if err != nil {
			http.Error(w, "bad upload", http.StatusBadRequest)
			return
		}
		if part.FileName() == "" {
			part.Close()
			continue
		}

		n, err := s.opts.Updater.Apply(part)
		part.Close()
		if err != nil {
			s.log.Errorw("firmware update failed", "file", part.FileName(), "error", err)
			http.Error(w, "Update failed: "+err.Error(), http.StatusInternalServerError)
			return
		}

		s.log.Infow("firmware updated", "file", part.FileName(), "bytes", n)
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("Update Done, restarting..."))
		s.opts.Restarter.Restart(ReasonFirmwareUpdate)
		return
	}
}
