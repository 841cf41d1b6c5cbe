package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/render"
	"github.com/shopspring/decimal"

	"github.com/MJE43/slot-tracker-go/internal/ledger"
)

const maxImportBytes = 32 << 20

type GamesResponse struct {
	Games  []ledger.Game `json:"games"`
	Totals ledger.Totals `json:"totals"`
}

type GameResponse struct {
	Game   ledger.Game           `json:"game"`
	Stats  ledger.GameStats      `json:"stats"`
	Series []ledger.HistoryPoint `json:"series"`
}

type StatsResponse struct {
	Totals    ledger.Totals      `json:"totals"`
	Analytics []ledger.ChartRow  `json:"analytics"`
	Games     []ledger.GameStats `json:"games"`
}

type UpdateGameRequest struct {
	Name     *string          `json:"name" validate:"omitempty,max=200"`
	Provider *string          `json:"provider" validate:"omitempty,max=200"`
	Profit   *decimal.Decimal `json:"profit"`
	Wagered  *decimal.Decimal `json:"wagered"`
	Count    *int64           `json:"count" validate:"omitempty,gte=0"`
}

type MoveGameRequest struct {
	ActiveID int64 `json:"activeId" validate:"required"`
	OverID   int64 `json:"overId" validate:"required"`
}

type SortRequest struct {
	Key       string `json:"key" validate:"required"`
	Direction string `json:"direction" validate:"required,oneof=asc desc"`
}

type AddSessionRequest struct {
	Date     string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Profit   decimal.Decimal `json:"profit"`
	Wagered  decimal.Decimal `json:"wagered"`
	BonusBuy bool            `json:"bonusBuy"`
}

type UpdateSessionRequest struct {
	Profit   *decimal.Decimal `json:"profit"`
	Wagered  *decimal.Decimal `json:"wagered"`
	Loss     *decimal.Decimal `json:"loss"`
	BonusBuy *bool            `json:"bonusBuy"`
}

// EditSessionRequest replaces wager and profit; loss is recomputed.
type EditSessionRequest struct {
	Wagered decimal.Decimal `json:"wagered"`
	Profit  decimal.Decimal `json:"profit"`
}

type AutoPlayRequest struct {
	BetAmount  decimal.Decimal `json:"betAmount"`
	SpinsCount int64           `json:"spinsCount" validate:"required,gt=0"`
	TotalWin   decimal.Decimal `json:"totalWin"`
}

type AutoPlayWinRequest struct {
	TotalWin decimal.Decimal `json:"totalWin"`
}

type ImportResponse struct {
	Imported int `json:"imported"`
	Dropped  int `json:"dropped"`
}

// handleListGames returns the games in stored order, optionally filtered
// by ?q= and sorted by ?sort=&dir= without changing the stored order.
func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games := s.tracker.Games()
	totals := ledger.Summarize(games)

	q := r.URL.Query()
	if term := q.Get("q"); term != "" {
		games = ledger.Filter(games, term)
	}
	if key := q.Get("sort"); key != "" {
		k, err := ledger.ParseSortKey(key)
		if err != nil {
			s.errs.HandleParamError(w, r, "sort", err)
			return
		}
		dir := ledger.Asc
		if q.Get("dir") == string(ledger.Desc) {
			dir = ledger.Desc
		}
		games = ledger.Sort(games, ledger.SortConfig{Key: k, Direction: dir})
	}
	s.respond(w, r, http.StatusOK, GamesResponse{Games: games, Totals: totals})
}

func (s *Server) handleAddGame(w http.ResponseWriter, r *http.Request) {
	var g ledger.Game
	err := s.tracker.UpdateLedger(func(l *ledger.Ledger) error {
		g = l.AddGame()
		return nil
	})
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, g)
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	id, ok := s.int64Param(w, r, "gameID")
	if !ok {
		return
	}
	var (
		g   ledger.Game
		err error
	)
	s.tracker.ViewLedger(func(l *ledger.Ledger) { g, err = l.Game(id) })
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, GameResponse{Game: g, Stats: ledger.Stats(g), Series: ledger.Series(g)})
}

func (s *Server) handleUpdateGame(w http.ResponseWriter, r *http.Request) {
	id, ok := s.int64Param(w, r, "gameID")
	if !ok {
		return
	}
	var req UpdateGameRequest
	if !s.decode(w, r, &req) {
		return
	}
	var g ledger.Game
	err := s.tracker.UpdateLedger(func(l *ledger.Ledger) (err error) {
		g, err = l.UpdateGame(id, ledger.GameUpdate{
			Name:     req.Name,
			Provider: req.Provider,
			Profit:   req.Profit,
			Wagered:  req.Wagered,
			Count:    req.Count,
		})
		return err
	})
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, g)
}

func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	id, ok := s.int64Param(w, r, "gameID")
	if !ok {
		return
	}
	if err := s.tracker.UpdateLedger(func(l *ledger.Ledger) error { return l.DeleteGame(id) }); err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleGame(w http.ResponseWriter, r *http.Request) {
	id, ok := s.int64Param(w, r, "gameID")
	if !ok {
		return
	}
	var expanded bool
	err := s.tracker.UpdateLedger(func(l *ledger.Ledger) (err error) {
		expanded, err = l.ToggleExpand(id)
		return err
	})
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, map[string]bool{"expanded": expanded})
}

func (s *Server) handleMoveGame(w http.ResponseWriter, r *http.Request) {
	var req MoveGameRequest
	if !s.decode(w, r, &req) {
		return
	}
	err := s.tracker.UpdateLedger(func(l *ledger.Ledger) error {
		return l.MoveGame(req.ActiveID, req.OverID)
	})
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	games := s.tracker.Games()
	s.respond(w, r, http.StatusOK, GamesResponse{Games: games, Totals: ledger.Summarize(games)})
}

// handleSortGames reorders the stored games, which is what clicking a
// column header does.
func (s *Server) handleSortGames(w http.ResponseWriter, r *http.Request) {
	var req SortRequest
	if !s.decode(w, r, &req) {
		return
	}
	key, err := ledger.ParseSortKey(req.Key)
	if err != nil {
		s.errs.HandleParamError(w, r, "key", err)
		return
	}
	err = s.tracker.UpdateLedger(func(l *ledger.Ledger) error {
		l.SortInPlace(ledger.SortConfig{Key: key, Direction: ledger.Direction(req.Direction)})
		return nil
	})
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	games := s.tracker.Games()
	s.respond(w, r, http.StatusOK, GamesResponse{Games: games, Totals: ledger.Summarize(games)})
}

func (s *Server) handleAddSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.int64Param(w, r, "gameID")
	if !ok {
		return
	}
	var req AddSessionRequest
	if !s.decode(w, r, &req) {
		return
	}
	var sess ledger.Session
	err := s.tracker.UpdateLedger(func(l *ledger.Ledger) (err error) {
		sess, err = l.AddSession(id, ledger.NewSession{
			Date:     req.Date,
			Profit:   req.Profit,
			Wagered:  req.Wagered,
			BonusBuy: req.BonusBuy,
		})
		return err
	})
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, sess)
}

func (s *Server) handleAddAutoPlay(w http.ResponseWriter, r *http.Request) {
	id, ok := s.int64Param(w, r, "gameID")
	if !ok {
		return
	}
	var req AutoPlayRequest
	if !s.decode(w, r, &req) {
		return
	}
	var sess ledger.Session
	err := s.tracker.UpdateLedger(func(l *ledger.Ledger) (err error) {
		sess, err = l.AddAutoPlay(id, req.BetAmount, req.SpinsCount, req.TotalWin)
		return err
	})
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, sess)
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	gameID, ok := s.int64Param(w, r, "gameID")
	if !ok {
		return
	}
	sessionID, ok := s.int64Param(w, r, "sessionID")
	if !ok {
		return
	}
	var req UpdateSessionRequest
	if !s.decode(w, r, &req) {
		return
	}
	var sess ledger.Session
	err := s.tracker.UpdateLedger(func(l *ledger.Ledger) (err error) {
		sess, err = l.UpdateSession(gameID, sessionID, ledger.SessionUpdate{
			Profit:   req.Profit,
			Wagered:  req.Wagered,
			Loss:     req.Loss,
			BonusBuy: req.BonusBuy,
		})
		return err
	})
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, sess)
}

func (s *Server) handleEditSession(w http.ResponseWriter, r *http.Request) {
	gameID, ok := s.int64Param(w, r, "gameID")
	if !ok {
		return
	}
	sessionID, ok := s.int64Param(w, r, "sessionID")
	if !ok {
		return
	}
	var req EditSessionRequest
	if !s.decode(w, r, &req) {
		return
	}
	var sess ledger.Session
	err := s.tracker.UpdateLedger(func(l *ledger.Ledger) (err error) {
		sess, err = l.EditSession(gameID, sessionID, req.Wagered, req.Profit)
		return err
	})
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, sess)
}

func (s *Server) handleAutoPlayWin(w http.ResponseWriter, r *http.Request) {
	gameID, ok := s.int64Param(w, r, "gameID")
	if !ok {
		return
	}
	sessionID, ok := s.int64Param(w, r, "sessionID")
	if !ok {
		return
	}
	var req AutoPlayWinRequest
	if !s.decode(w, r, &req) {
		return
	}
	var sess ledger.Session
	err := s.tracker.UpdateLedger(func(l *ledger.Ledger) (err error) {
		sess, err = l.UpdateAutoPlayWin(gameID, sessionID, req.TotalWin)
		return err
	})
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	gameID, ok := s.int64Param(w, r, "gameID")
	if !ok {
		return
	}
	sessionID, ok := s.int64Param(w, r, "sessionID")
	if !ok {
		return
	}
	err := s.tracker.UpdateLedger(func(l *ledger.Ledger) error {
		return l.DeleteSession(gameID, sessionID)
	})
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	games := s.tracker.Games()
	stats := make([]ledger.GameStats, len(games))
	for i, g := range games {
		stats[i] = ledger.Stats(g)
	}
	s.respond(w, r, http.StatusOK, StatsResponse{
		Totals:    ledger.Summarize(games),
		Analytics: ledger.Analytics(games),
		Games:     stats,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, name, err := s.tracker.Export()
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		s.errs.HandleDecodeError(w, r, err)
		return
	}
	res, err := s.tracker.Import(r.Context(), data)
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, ImportResponse{Imported: len(res.Games), Dropped: res.Dropped})
}
