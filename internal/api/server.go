// Package api exposes the tracker, the wheel and the tournaments over HTTP.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"golang.org/x/exp/slog"

	"github.com/MJE43/slot-tracker-go/internal/lib/logger"
	"github.com/MJE43/slot-tracker-go/internal/tracker"
	"github.com/MJE43/slot-tracker-go/internal/wheelsvc"
)

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Tracker     *tracker.Tracker
	Wheel       *wheelsvc.Service
	DB          Pinger
	Logger      *slog.Logger
	CORSOrigins []string
	// RequestTimeout bounds every non-streaming request. Zero means 60s.
	RequestTimeout time.Duration
}

// Server handles HTTP requests
type Server struct {
	tracker   *tracker.Tracker
	wheel     *wheelsvc.Service
	db        Pinger
	log       *slog.Logger
	errs      *ErrorHandler
	validate  *validator.Validate
	upgrader  websocket.Upgrader
	origins   []string
	timeout   time.Duration
	startTime time.Time
}

func NewServer(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = logger.Discard()
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 60 * time.Second
	}
	log := d.Logger.With(slog.String("component", "api"))
	s := &Server{
		tracker:   d.Tracker,
		wheel:     d.Wheel,
		db:        d.DB,
		log:       log,
		errs:      NewErrorHandler(log),
		validate:  validator.New(),
		origins:   d.CORSOrigins,
		timeout:   d.RequestTimeout,
		startTime: time.Now(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	log.Info("api server created", slog.String("version", Version))
	return s
}

// Routes sets up the HTTP routes with their middleware.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.log))
	r.Use(s.errs.RecoveryHandler)
	r.Use(CORS(s.origins))

	r.Get("/health", s.handleHealth)
	r.Get("/health/live", s.handleLiveness)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/wheel/ws", s.handleWheelWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.timeout))

			r.Get("/version", s.handleVersion)

			r.Route("/games", func(r chi.Router) {
				r.Get("/", s.handleListGames)
				r.Post("/", s.handleAddGame)
				r.Post("/move", s.handleMoveGame)
				r.Post("/sort", s.handleSortGames)
				r.Route("/{gameID}", func(r chi.Router) {
					r.Get("/", s.handleGetGame)
					r.Patch("/", s.handleUpdateGame)
					r.Delete("/", s.handleDeleteGame)
					r.Post("/toggle", s.handleToggleGame)
					r.Post("/sessions", s.handleAddSession)
					r.Post("/autoplay", s.handleAddAutoPlay)
					r.Patch("/sessions/{sessionID}", s.handleUpdateSession)
					r.Put("/sessions/{sessionID}", s.handleEditSession)
					r.Delete("/sessions/{sessionID}", s.handleDeleteSession)
					r.Put("/sessions/{sessionID}/autoplay-win", s.handleAutoPlayWin)
				})
			})
			r.Get("/stats", s.handleStats)
			r.Get("/export", s.handleExport)
			r.Post("/import", s.handleImport)

			r.Route("/wheel", func(r chi.Router) {
				r.Get("/", s.handleWheelView)
				r.Put("/segments", s.handleSetSegments)
				r.Post("/segments", s.handleAddSegment)
				r.Patch("/segments/{segmentID}", s.handleUpdateSegment)
				r.Delete("/segments/{segmentID}", s.handleDeleteSegment)
				r.Put("/size", s.handleSetSize)
				r.Put("/sound", s.handleSetSound)
				r.Post("/spin", s.handleSpin)
				r.Post("/advance", s.handleAdvance)
				r.Get("/layout", s.handleLayout)
				r.Get("/preset", s.handleExportPreset)
				r.Get("/history", s.handleHistory)
				r.Delete("/history", s.handleClearHistory)
				r.Post("/verify", s.handleVerify)
			})

			r.Route("/tournaments", func(r chi.Router) {
				r.Get("/", s.handleListTournaments)
				r.Post("/", s.handleAddTournament)
				r.Route("/{tournamentID}", func(r chi.Router) {
					r.Get("/", s.handleGetTournament)
					r.Patch("/", s.handleUpdateTournament)
					r.Delete("/", s.handleDeleteTournament)
					r.Get("/leaderboard", s.handleLeaderboard)
					r.Post("/players", s.handleAddPlayer)
					r.Patch("/players/{playerID}", s.handleUpdatePlayer)
					r.Delete("/players/{playerID}", s.handleDeletePlayer)
				})
			})
		})
	})

	return r
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, GetVersionInfo())
}

// decode reads and validates a JSON body, writing the error response when
// it fails.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		s.errs.HandleDecodeError(w, r, err)
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		s.errs.HandleValidationError(w, r, err)
		return false
	}
	return true
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func (s *Server) int64Param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		s.errs.HandleParamError(w, r, name, err)
		return 0, false
	}
	return v, true
}

func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}
