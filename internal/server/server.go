package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"golang.org/x/sync/errgroup"

	"github.com/joeblew999/plat-mission/internal/api"
	"github.com/joeblew999/plat-mission/internal/api/ui"
	"github.com/joeblew999/plat-mission/internal/basemap"
	"github.com/joeblew999/plat-mission/internal/humastar"
	"github.com/joeblew999/plat-mission/internal/journal"
	"github.com/joeblew999/plat-mission/internal/mission"
	"github.com/joeblew999/plat-mission/internal/planner"
	"github.com/joeblew999/plat-mission/internal/service"
	"github.com/joeblew999/plat-mission/internal/templates"
	"github.com/joeblew999/plat-mission/internal/upstream"
	"github.com/joeblew999/plat-mission/web"
)

const (
	sessionName  = "plat-mission"
	workspaceKey = "workspace"
	shutdownWait = 5 * time.Second
)

// Config holds the server configuration.
type Config struct {
	Host            string
	Port            string
	APIBase         string // Planning backend base URL
	SessionSecret   string // Cookie signing key; random per process when empty
	UpstreamTimeout time.Duration
	WorkspaceTTL    time.Duration // Idle workspaces are dropped after this; zero keeps them
	Journal         bool
	WebDir          string  // Serve templates and static files from disk instead of the binary
	Simplify        float64 // Polyline simplification tolerance in degrees
	Logger          *slog.Logger

	// Backend replaces the HTTP client to APIBase.
	Backend planner.Backend
}

// Server is the mission planner HTTP server.
type Server struct {
	config     Config
	logger     *slog.Logger
	mux        *http.ServeMux
	handler    http.Handler
	humaAPI    huma.API
	renderer   *templates.Renderer
	devFS      fs.FS // Re-parsed on every page load when serving from disk
	static     fs.FS
	backend    planner.Backend
	bus        *service.EventBus
	workspaces *service.WorkspaceService
	journal    *journal.Journal
	sessions   *sessions.CookieStore
}

// New creates a new mission planner server.
func New(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	humaConfig := huma.DefaultConfig("plat-mission API", api.Version)
	humaConfig.Info.Description = "Mission planning front end: basemaps, plan submission and the rendered plan journal."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s", net.JoinHostPort(displayHost(cfg.Host), cfg.Port)), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	humaAPI := humago.New(mux, humaConfig)

	templateFS, staticFS := web.Templates(), web.Static()
	if cfg.WebDir != "" {
		templateFS = os.DirFS(filepath.Join(cfg.WebDir, "templates"))
		staticFS = os.DirFS(filepath.Join(cfg.WebDir, "static"))
		logger.Info("serving web assets from disk", "dir", cfg.WebDir)
	}
	renderer, err := templates.New(templateFS)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	backend := cfg.Backend
	if backend == nil {
		backend = upstream.New(cfg.APIBase,
			upstream.WithTimeout(cfg.UpstreamTimeout),
			upstream.WithLogger(logger.With("component", "upstream")),
		)
	}

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		secret = securecookie.GenerateRandomKey(32)
		logger.Warn("no session secret configured, sessions end when the process exits")
	}
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	s := &Server{
		config:   cfg,
		logger:   logger,
		mux:      mux,
		humaAPI:  humaAPI,
		renderer: renderer,
		static:   staticFS,
		backend:  backend,
		bus:      service.NewEventBus(),
		sessions: store,
	}
	s.workspaces = service.NewWorkspaceService(s.newController, s.bus)
	if cfg.WebDir != "" {
		s.devFS = templateFS
	}

	if cfg.Journal {
		j, err := journal.Open("", logger.With("component", "journal"))
		if err != nil {
			logger.Error("journal disabled", "error", err)
		} else {
			s.journal = j
		}
	}

	s.routes()
	s.handler = s.logRequests(s.withWorkspace(mux))
	return s, nil
}

func (s *Server) newController(id string) *planner.Controller {
	return planner.New(planner.Config{
		Backend:  s.backend,
		Renderer: s.renderer,
		Logger:   s.logger.With("workspace", id),
		Simplify: s.config.Simplify,
		OnRendered: func(p *planner.Plan) {
			s.bus.Publish(service.Event{
				Resource: service.ResourcePlans,
				Action:   service.ActionRendered,
				ID:       id,
				Plan:     p,
			})
		},
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Workspaces returns the workspace registry.
func (s *Server) Workspaces() *service.WorkspaceService {
	return s.workspaces
}

// Bus returns the event bus plans are published on.
func (s *Server) Bus() *service.EventBus {
	return s.bus
}

// Journal returns the plan journal, or nil when disabled.
func (s *Server) Journal() *journal.Journal {
	return s.journal
}

// Serve listens on the configured address and runs the background workers
// until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              net.JoinHostPort(s.config.Host, s.config.Port),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		// Long-lived SSE streams end with the server context.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g.Go(func() error {
		s.logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if ttl := s.config.WorkspaceTTL; ttl > 0 {
		g.Go(func() error {
			s.workspaces.RunSweeper(ctx, sweepInterval(ttl), ttl)
			return nil
		})
	}
	if s.journal != nil {
		g.Go(func() error { return s.journal.Run(ctx, s.bus) })
	}

	return g.Wait()
}

// Close closes server resources.
func (s *Server) Close() error {
	if s.journal != nil {
		return s.journal.Close()
	}
	return nil
}

func (s *Server) routes() {
	services := &api.Services{Backend: s.backend, Journal: s.journal}
	huma.AutoRegister(s.humaAPI, api.NewAPIHandler(services))

	api.NewInfoHandler(s.config.APIBase, s.journal != nil, s.workspaces.Len).RegisterRoutes(s.humaAPI)

	journalDB := api.NewDBHandler(nil)
	if s.journal != nil {
		journalDB = api.NewDBHandler(s.journal.DB())
	}
	journalDB.RegisterRoutes(s.humaAPI)

	ui.New(s.renderer, s.bus, s.logger.With("component", "ui")).RegisterRoutes(s.humaAPI)

	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServerFS(s.static)))
	s.mux.HandleFunc("/", s.handlePage)
}

type basemapLink struct {
	URL        string
	PrettyName string
}

type pageView struct {
	humastar.PageData
	MapContainer string
	Basemaps     []basemapLink
	ToggleURL    string
	SubmitURL    string
	EventsURL    string
	DateMin      string
	DateMax      string
	Resistances  [][2]string
	Models       [][2]string
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	ws, ok := service.WorkspaceFrom(r.Context())
	if !ok {
		http.Error(w, "no workspace for this session", http.StatusInternalServerError)
		return
	}
	if s.devFS != nil {
		if err := s.renderer.Reload(s.devFS); err != nil {
			s.logger.Error("reload templates", "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	pd := humastar.BuildPageData(s.humaAPI, ui.Tag, map[string]any{
		"sidebarOpen": ws.Controller.Open(),
		"error":       "",
	})
	view := pageView{
		PageData:     pd,
		MapContainer: ui.DefaultContainer,
		ToggleURL:    pd.Route(ui.OpToggle),
		SubmitURL:    pd.Route(ui.OpSubmit),
		EventsURL:    pd.Route(ui.OpEvents),
		Resistances:  mission.Resistances,
		Models:       mission.Models,
	}
	view.DateMin, view.DateMax = mission.LatestDateBounds(time.Now())
	for _, src := range basemap.All() {
		view.Basemaps = append(view.Basemaps, basemapLink{
			URL:        pd.Route(ui.OpBasemap, "name", src.Key),
			PrettyName: src.PrettyName,
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.Execute(w, "page", view); err != nil {
		s.logger.Error("render page", "error", err)
	}
}

// withWorkspace attaches the caller's workspace to page and plan requests,
// starting a session on first visit.
func (s *Server) withWorkspace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !workspaceRoute(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := s.sessions.Get(r, sessionName)
		if err != nil {
			s.logger.Debug("discarding unreadable session", "error", err)
		}
		id, _ := sess.Values[workspaceKey].(string)
		if id == "" {
			id = uuid.NewString()
			sess.Values[workspaceKey] = id
			if err := sess.Save(r, w); err != nil {
				s.logger.Error("save session", "error", err)
				http.Error(w, "failed to start session", http.StatusInternalServerError)
				return
			}
			s.logger.Info("workspace created", "workspace", id)
		}

		ws := s.workspaces.GetOrCreate(id)
		next.ServeHTTP(w, r.WithContext(service.WithWorkspace(r.Context(), ws)))
	})
}

func workspaceRoute(path string) bool {
	return path == "/" ||
		strings.HasPrefix(path, "/api/v1/ui/") ||
		path == "/api/v1/plan" ||
		strings.HasPrefix(path, "/api/v1/plan/")
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func sweepInterval(ttl time.Duration) time.Duration {
	return max(ttl/4, time.Second)
}

func displayHost(host string) string {
	if host == "" || host == "0.0.0.0" {
		return "localhost"
	}
	return host
}
