package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/MJE43/slot-tracker-go/internal/tournament"
)

var errNegativePrizePool = errors.New("prize pool must not be negative")

type UpdateTournamentRequest struct {
	Name      *string          `json:"name" validate:"omitempty,max=200"`
	StartDate *string          `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate   *string          `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	PrizePool *decimal.Decimal `json:"prizePool"`
}

type UpdatePlayerRequest struct {
	Name   *string `json:"name" validate:"omitempty,max=200"`
	Points *int64  `json:"points"`
}

type LeaderboardResponse struct {
	Tournament tournament.Tournament `json:"tournament"`
	Standings  []tournament.Standing `json:"standings"`
}

func (s *Server) handleListTournaments(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, s.tracker.Tournaments())
}

func (s *Server) handleAddTournament(w http.ResponseWriter, r *http.Request) {
	var t tournament.Tournament
	err := s.tracker.UpdateTournaments(func(b *tournament.Book) error {
		t = b.Add()
		return nil
	})
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, t)
}

func (s *Server) handleGetTournament(w http.ResponseWriter, r *http.Request) {
	t, err := s.tracker.Tournament(chi.URLParam(r, "tournamentID"))
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, t)
}

func (s *Server) handleUpdateTournament(w http.ResponseWriter, r *http.Request) {
	var req UpdateTournamentRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.PrizePool != nil && req.PrizePool.IsNegative() {
		s.errs.HandleValidationError(w, r, errNegativePrizePool)
		return
	}
	id := chi.URLParam(r, "tournamentID")
	var t tournament.Tournament
	err := s.tracker.UpdateTournaments(func(b *tournament.Book) (err error) {
		t, err = b.Update(id, tournament.Update{
			Name:      req.Name,
			StartDate: req.StartDate,
			EndDate:   req.EndDate,
			PrizePool: req.PrizePool,
		})
		return err
	})
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, t)
}

func (s *Server) handleDeleteTournament(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "tournamentID")
	if err := s.tracker.UpdateTournaments(func(b *tournament.Book) error { return b.Delete(id) }); err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	t, err := s.tracker.Tournament(chi.URLParam(r, "tournamentID"))
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, LeaderboardResponse{Tournament: t, Standings: t.Leaderboard()})
}

func (s *Server) handleAddPlayer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "tournamentID")
	var p tournament.Player
	err := s.tracker.UpdateTournaments(func(b *tournament.Book) (err error) {
		p, err = b.AddPlayer(id)
		return err
	})
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, p)
}

func (s *Server) handleUpdatePlayer(w http.ResponseWriter, r *http.Request) {
	var req UpdatePlayerRequest
	if !s.decode(w, r, &req) {
		return
	}
	tid, pid := chi.URLParam(r, "tournamentID"), chi.URLParam(r, "playerID")
	var p tournament.Player
	err := s.tracker.UpdateTournaments(func(b *tournament.Book) (err error) {
		p, err = b.UpdatePlayer(tid, pid, tournament.PlayerUpdate{Name: req.Name, Points: req.Points})
		return err
	})
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, p)
}

func (s *Server) handleDeletePlayer(w http.ResponseWriter, r *http.Request) {
	tid, pid := chi.URLParam(r, "tournamentID"), chi.URLParam(r, "playerID")
	err := s.tracker.UpdateTournaments(func(b *tournament.Book) error { return b.DeletePlayer(tid, pid) })
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
