package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/airframesio/country-compare/cmd/catalog"
	"github.com/airframesio/country-compare/cmd/charts"
	"github.com/airframesio/country-compare/cmd/pipeline"
	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// maxUploadSize bounds catalog uploads
const maxUploadSize = 32 << 20

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(_ *http.Request) bool {
			return true // Allow all origins for local development
		},
	}

	// logBroadcast receives every log record; the dashboard streams it
	logBroadcast = make(chan LogMessage, 1000)
)

// WSMessage is an event pushed to dashboard clients
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// LogMessage is one log record as sent to the log stream
type LogMessage struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// clientWrapper wraps a websocket connection with a write mutex to ensure thread-safe writes
type clientWrapper struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (cw *clientWrapper) writeJSON(v interface{}) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	_ = cw.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return cw.conn.WriteJSON(v)
}

// hub fans messages out to a set of websocket clients
type hub struct {
	mu        sync.RWMutex
	clients   map[*websocket.Conn]*clientWrapper
	broadcast chan interface{}
}

func newHub() *hub {
	return &hub{
		clients:   make(map[*websocket.Conn]*clientWrapper),
		broadcast: make(chan interface{}, 100),
	}
}

func (h *hub) add(conn *websocket.Conn) *clientWrapper {
	wrapper := &clientWrapper{conn: conn}
	h.mu.Lock()
	h.clients[conn] = wrapper
	h.mu.Unlock()
	return wrapper
}

func (h *hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// publish queues msg without blocking; a full queue drops it
func (h *hub) publish(msg interface{}) {
	select {
	case h.broadcast <- msg:
	default:
	}
}

// run delivers queued messages until ctx is done, dropping clients whose
// writes fail
func (h *hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.broadcast:
			h.send(msg)
		}
	}
}

func (h *hub) send(msg interface{}) {
	h.mu.RLock()
	var failedClients []*websocket.Conn
	for conn, wrapper := range h.clients {
		if err := wrapper.writeJSON(msg); err != nil {
			failedClients = append(failedClients, conn)
		}
	}
	h.mu.RUnlock()

	if len(failedClients) > 0 {
		h.mu.Lock()
		for _, conn := range failedClients {
			if wrapper, exists := h.clients[conn]; exists {
				wrapper.conn.Close()
				delete(h.clients, conn)
			}
		}
		h.mu.Unlock()
	}
}

// pumpLogs forwards logBroadcast into the log hub
func pumpLogs(ctx context.Context, logs *hub) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-logBroadcast:
			logs.publish(msg)
		}
	}
}

// StatusResponse is served by /api/status and pushed as a "status" event
type StatusResponse struct {
	Version         string    `json:"version"`
	UpdateAvailable bool      `json:"updateAvailable"`
	LatestVersion   string    `json:"latestVersion,omitempty"`
	ReleaseURL      string    `json:"releaseUrl,omitempty"`
	CatalogLocation string    `json:"catalogLocation"`
	CatalogSource   string    `json:"catalogSource,omitempty"`
	CatalogEntries  int       `json:"catalogEntries"`
	CatalogDropped  int       `json:"catalogDropped"`
	CachedDatasets  int       `json:"cachedDatasets"`
	Timestamp       time.Time `json:"timestamp"`
}

// MetricsResponse is served by /api/metrics
type MetricsResponse struct {
	Source  string   `json:"source"`
	Metrics []string `json:"metrics"`
}

// CountriesResponse is served by /api/countries
type CountriesResponse struct {
	Countries []string `json:"countries"`
	Source    string   `json:"source,omitempty"`
	Probed    int      `json:"probed"`
	Fallback  bool     `json:"fallback"`
}

// dashboardServer serves the web dashboard for one session
type dashboardServer struct {
	session *pipeline.Session
	logger  *slog.Logger
	events  *hub
	logs    *hub
}

func newDashboardServer(session *pipeline.Session, log *slog.Logger) *dashboardServer {
	return &dashboardServer{
		session: session,
		logger:  log,
		events:  newHub(),
		logs:    newHub(),
	}
}

func (s *dashboardServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.serveDashboard)
	mux.HandleFunc("GET /api/status", s.serveStatus)
	mux.HandleFunc("GET /api/metrics", s.serveMetrics)
	mux.HandleFunc("GET /api/countries", s.serveCountries)
	mux.HandleFunc("POST /api/catalog", s.uploadCatalog)
	mux.HandleFunc("GET /api/compare", s.serveCompare)
	mux.HandleFunc("GET /api/chart/{kind}", s.serveChart)
	mux.HandleFunc("GET /ws", s.handleWebSocket(s.events, true))
	mux.HandleFunc("GET /ws/logs", s.handleWebSocket(s.logs, false))
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *dashboardServer) writeProblem(w http.ResponseWriter, err error) {
	p := pipeline.Describe(err)
	if p.Status >= http.StatusInternalServerError {
		s.logger.Error(fmt.Sprintf("❌ %s: %s", p.Kind, p.Message))
	} else {
		s.logger.Warn(fmt.Sprintf("⚠️  %s: %s", p.Kind, p.Message))
	}
	writeJSON(w, p.Status, p)
}

func (s *dashboardServer) serveDashboard(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(dashboardHTML))
}

func (s *dashboardServer) status(ctx context.Context) StatusResponse {
	response := StatusResponse{
		Version:         Version,
		CatalogLocation: s.session.CatalogLocation(),
		CachedDatasets:  s.session.CachedDatasets(),
		Timestamp:       time.Now(),
	}
	if result := getVersionCheckResult(); result != nil {
		response.UpdateAvailable = result.UpdateAvailable
		response.LatestVersion = result.LatestVersion
		response.ReleaseURL = result.ReleaseURL
	}
	if cat, err := s.session.Catalog(ctx); err == nil {
		response.CatalogSource = cat.Source()
		response.CatalogEntries = cat.Len()
		response.CatalogDropped = cat.Dropped()
	}
	return response
}

func (s *dashboardServer) serveStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status(r.Context()))
}

func (s *dashboardServer) serveMetrics(w http.ResponseWriter, r *http.Request) {
	cat, err := s.session.Catalog(r.Context())
	if err != nil {
		s.writeProblem(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MetricsResponse{Source: cat.Source(), Metrics: cat.Metrics()})
}

func (s *dashboardServer) serveCountries(w http.ResponseWriter, r *http.Request) {
	res, err := s.session.Countries(r.Context())
	if err != nil {
		s.writeProblem(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountriesResponse{
		Countries: res.Countries,
		Source:    res.Source,
		Probed:    res.Probed,
		Fallback:  res.Fallback,
	})
}

func (s *dashboardServer) uploadCatalog(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, pipeline.Problem{
			Kind:    pipeline.KindCatalogFormat,
			Message: fmt.Sprintf("expected a multipart \"file\" field: %v", err),
		})
		return
	}
	defer file.Close()

	cat, err := s.session.SetUploadedCatalog(file, header.Filename)
	if err != nil {
		s.writeProblem(w, err)
		return
	}
	s.logger.Info(fmt.Sprintf("📥 Loaded uploaded catalog %s with %d metrics", header.Filename, cat.Len()))

	response := MetricsResponse{Source: cat.Source(), Metrics: cat.Metrics()}
	s.events.publish(WSMessage{Type: "catalog", Data: response})
	writeJSON(w, http.StatusOK, response)
}

func (s *dashboardServer) serveCompare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.session.Compare(r.Context(), q.Get("metric"), q.Get("a"), q.Get("b"))
	if err != nil {
		s.writeProblem(w, err)
		return
	}
	s.events.publish(WSMessage{Type: "status", Data: s.status(r.Context())})
	writeJSON(w, http.StatusOK, res)
}

func (s *dashboardServer) serveChart(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	if kind != "bar.png" && kind != "line.png" {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	res, err := s.session.Compare(r.Context(), q.Get("metric"), q.Get("a"), q.Get("b"))
	if err != nil {
		s.writeProblem(w, err)
		return
	}

	var buf bytes.Buffer
	if kind == "bar.png" {
		err = charts.WriteBar(res, &buf)
	} else {
		err = charts.WriteLine(res, &buf)
	}
	if err != nil {
		if errors.Is(err, charts.ErrInsufficientSeries) {
			writeJSON(w, http.StatusUnprocessableEntity, pipeline.Problem{
				Kind:    pipeline.KindNoDataForCountry,
				Message: err.Error(),
			})
			return
		}
		s.writeProblem(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

// handleWebSocket registers the connection with h until the client goes
// away. Event clients get the current status on connect.
func (s *dashboardServer) handleWebSocket(h *hub, sendStatus bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Debug(fmt.Sprintf("WebSocket upgrade error: %v", err))
			return
		}
		defer conn.Close()

		wrapper := h.add(conn)
		defer h.remove(conn)

		if sendStatus {
			_ = wrapper.writeJSON(WSMessage{Type: "status", Data: s.status(r.Context())})
		}

		// Keep connection alive until the client closes it
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					s.logger.Debug(fmt.Sprintf("WebSocket error: %v", err))
				}
				return
			}
		}
	}
}

// watchCatalog invalidates the session catalog whenever the local catalog
// file changes. The parent directory is watched so editors that replace
// the file on save are still seen.
func (s *dashboardServer) watchCatalog(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer watcher.Close()

		var debounceTimer *time.Timer
		debounceDuration := 200 * time.Millisecond

		for {
			select {
			case <-ctx.Done():
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, s.reloadCatalog)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn(fmt.Sprintf("⚠️  File watcher error: %v", err))
			}
		}
	}()
	return nil
}

func (s *dashboardServer) reloadCatalog() {
	s.session.InvalidateCatalog()
	s.logger.Info(fmt.Sprintf("🔄 Catalog %s changed, reloading", s.session.CatalogLocation()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cat, err := s.session.Catalog(ctx)
	if err != nil {
		s.events.publish(WSMessage{Type: "error", Data: pipeline.Describe(err)})
		return
	}
	s.events.publish(WSMessage{Type: "catalog", Data: MetricsResponse{Source: cat.Source(), Metrics: cat.Metrics()}})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web dashboard",
	Long: `Starts a local web server with the interactive comparison dashboard.
The catalog can be given with --catalog or uploaded from the browser.`,
	RunE: runServe,
}

func init() {
	flags := serveCmd.Flags()
	flags.IntP("port", "p", 8080, "port to run the web server on")
	flags.Bool("watch", true, "reload a local catalog file when it changes")
	_ = viper.BindPFlag("serve.port", flags.Lookup("port"))
	_ = viper.BindPFlag("serve.watch", flags.Lookup("watch"))
}

func runServe(_ *cobra.Command, _ []string) error {
	config, err := prepare(true)
	if err != nil {
		return err
	}

	ctx, stop := commandContext()
	defer stop()

	startVersionCheck(ctx, config.Debug)

	server := newDashboardServer(newSession(config, logger), logger)
	go server.events.run(ctx)
	go server.logs.run(ctx)
	go pumpLogs(ctx, server.logs)

	if loc := config.Catalog.Location; config.Serve.Watch && catalog.IsLocalFile(loc) {
		if err := server.watchCatalog(ctx, loc); err != nil {
			logger.Warn(fmt.Sprintf("⚠️  Catalog watch disabled: %v", err))
		}
	}

	addr := fmt.Sprintf(":%d", config.Serve.Port)
	logger.Info("")
	logger.Info(fmt.Sprintf("🚀 Country Compare v%s", Version))
	logger.Info(fmt.Sprintf("📊 Starting web server on http://localhost%s", addr))
	logger.Info("⌨️  Press Ctrl+C to stop the server")

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("🛑 Shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
