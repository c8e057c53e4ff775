package widget

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dday/internal/clock"
	"dday/internal/config"
	appLog "dday/internal/log"
	"dday/internal/model"
	"dday/internal/snapshot"
)

// Host is the widget host: it renders timelines from the shared snapshot,
// exposes the reload API the app calls after every sync, and optionally
// captures each widget as PNG.
//
// Host implements snapshot.Reloader, so an app running in the same process
// can signal it directly.
type Host struct {
	cfg      *config.Config
	provider *Provider
	clock    clock.Clock
	capturer Capturer
	kinds    []string
	router   *mux.Router

	// 종류별 타임라인 캐시. reload 또는 정책 만료 시 비운다.
	timelineMu sync.RWMutex
	timelines  map[string]Timeline

	captureCh chan string

	// onExternal 은 HTTP 로 들어온 reload 요청(다른 프로세스의 변경)마다 호출된다.
	onExternal func()
}

// NewHost constructs a Host reading from store. capturer may be nil.
func NewHost(cfg *config.Config, store snapshot.Store, clk clock.Clock, capturer Capturer) *Host {
	if clk == nil {
		clk = clock.Real{}
	}
	h := &Host{
		cfg:       cfg,
		provider:  NewProvider(store, clk, cfg.TimelinePolicy()),
		clock:     clk,
		capturer:  capturer,
		kinds:     []string{model.WidgetKind},
		router:    mux.NewRouter(),
		timelines: make(map[string]Timeline),
		captureCh: make(chan string, 8),
	}
	h.registerRoutes()
	return h
}

// Handler returns the router, wrapped in basic auth when configured.
func (h *Host) Handler() http.Handler {
	var handler http.Handler = h.router
	if h.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+h.cfg.Widget.Listen)
		handler = h.basicAuthMiddleware(handler)
	}
	return handler
}

func (h *Host) registerRoutes() {
	r := h.router
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/widgets/{kind}", h.handleWidgetPage).Methods(http.MethodGet)
	r.HandleFunc("/api/widgets/{kind}", h.handleWidgetJSON).Methods(http.MethodGet)
	r.HandleFunc("/api/reload", h.handleReloadAll).Methods(http.MethodPost)
	r.HandleFunc("/api/reload/{kind}", h.handleReloadKind).Methods(http.MethodPost)
	r.HandleFunc("/preview/{kind}.png", h.handlePreview).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

// Serve runs the HTTP server (and the capture worker) until ctx is done,
// then shuts down gracefully.
func (h *Host) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              h.cfg.Widget.Listen,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	if h.capturer != nil {
		go h.captureLoop(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting widget host", "listen", "http://"+h.cfg.Widget.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLog.Error("widget host shutdown failed", err)
			return err
		}
		appLog.Info("widget host stopped")
		return nil
	}
}

// --- reload API (snapshot.Reloader) ---

// ReloadAllTimelines drops every cached timeline.
func (h *Host) ReloadAllTimelines() {
	h.timelineMu.Lock()
	h.timelines = make(map[string]Timeline)
	h.timelineMu.Unlock()

	reloadsTotal.WithLabelValues("all").Inc()
	for _, k := range h.kinds {
		h.requestCapture(k)
	}
	appLog.Debug("widget timelines reloaded", "scope", "all")
}

// ReloadTimelines drops the cached timeline of one kind.
func (h *Host) ReloadTimelines(kind string) {
	h.timelineMu.Lock()
	delete(h.timelines, kind)
	h.timelineMu.Unlock()

	reloadsTotal.WithLabelValues(kind).Inc()
	if h.knownKind(kind) {
		h.requestCapture(kind)
	}
	appLog.Debug("widget timelines reloaded", "scope", kind)
}

// Timeline returns the cached timeline for kind, rebuilding it once the
// policy interval has passed or after a reload.
func (h *Host) Timeline(kind string) Timeline {
	now := h.clock.Now()

	h.timelineMu.RLock()
	tl, ok := h.timelines[kind]
	h.timelineMu.RUnlock()
	if ok && now.Before(tl.Next) {
		return tl
	}

	tl = h.provider.Timeline(kind)
	h.timelineMu.Lock()
	h.timelines[kind] = tl
	h.timelineMu.Unlock()
	timelineBuildsTotal.WithLabelValues(kind).Inc()
	return tl
}

func (h *Host) knownKind(kind string) bool {
	for _, k := range h.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// --- capture ---

func (h *Host) requestCapture(kind string) {
	if h.capturer == nil || !h.cfg.Widget.Capture.Enabled {
		return
	}
	select {
	case h.captureCh <- kind:
	default:
		// 이미 대기 중인 요청이 있으면 그걸로 충분하다.
	}
}

func (h *Host) captureLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case kind := <-h.captureCh:
			for _, fam := range []Family{FamilySmall, FamilyMedium} {
				if err := h.capturer.Capture(ctx, kind, fam); err != nil {
					appLog.Error("widget capture failed", err, "kind", kind, "family", string(fam))
					continue
				}
				appLog.Debug("widget captured", "kind", kind, "family", string(fam))
			}
		}
	}
}

// --- handlers ---

func (h *Host) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Host) view(w http.ResponseWriter, r *http.Request) (View, bool) {
	kind := mux.Vars(r)["kind"]
	if !h.knownKind(kind) {
		writeError(w, http.StatusNotFound, "unknown widget kind")
		return View{}, false
	}
	family := ParseFamily(r.URL.Query().Get("family"))
	return BuildView(h.Timeline(kind), family, h.cfg.Locale), true
}

func (h *Host) handleWidgetPage(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	body, err := RenderHTML(v)
	if err != nil {
		appLog.Error("widget render failed", err, "kind", v.Kind)
		writeError(w, http.StatusInternalServerError, "failed to render widget")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Host) handleWidgetJSON(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type reloadResponse struct {
	Reloaded string `json:"reloaded"`
}

// OnExternalReload registers fn to run, on its own goroutine, whenever a
// reload arrives over HTTP rather than from an in-process call.
func (h *Host) OnExternalReload(fn func()) {
	h.onExternal = fn
}

func (h *Host) notifyExternal() {
	if h.onExternal != nil {
		go h.onExternal()
	}
}

func (h *Host) handleReloadAll(w http.ResponseWriter, _ *http.Request) {
	h.ReloadAllTimelines()
	h.notifyExternal()
	writeJSON(w, http.StatusAccepted, reloadResponse{Reloaded: "all"})
}

func (h *Host) handleReloadKind(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]
	h.ReloadTimelines(kind)
	h.notifyExternal()
	writeJSON(w, http.StatusAccepted, reloadResponse{Reloaded: kind})
}

// handlePreview serves the last captured PNG from disk.
func (h *Host) handlePreview(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]
	if !h.knownKind(kind) {
		http.NotFound(w, r)
		return
	}
	family := ParseFamily(r.URL.Query().Get("family"))
	// http.ServeFile 이 없는 파일은 404 로 돌려준다.
	http.ServeFile(w, r, PreviewPath(h.cfg.Widget.Capture.OutputDir, kind, family))
}

// --- auth ---

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (h *Host) basicAuthEnabled() bool {
	ba := h.cfg.Widget.BasicAuth
	if ba == nil {
		return false
	}
	// 빈 사용자명 또는 비밀번호가 설정된 경우에는 비활성화로 취급한다.
	return ba.Username != "" && ba.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (h *Host) basicAuthMiddleware(next http.Handler) http.Handler {
	username := h.cfg.Widget.BasicAuth.Username
	password := h.cfg.Widget.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health 는 항상 무인증으로 노출한다.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="DDay", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
