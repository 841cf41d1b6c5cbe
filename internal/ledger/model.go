// Package ledger keeps the per-game gambling session records and the
// statistics derived from them. Amounts are decimals; the package holds no
// locks and does no I/O.
package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrGameNotFound    = errors.New("ledger: game not found")
	ErrSessionNotFound = errors.New("ledger: session not found")
	ErrNotAutoPlay     = errors.New("ledger: session is not an auto-play session")
	ErrInvalidAmount   = errors.New("ledger: invalid amount")
	ErrInvalidIndex    = errors.New("ledger: index out of range")
)

const (
	DefaultGameName     = "New Game"
	DefaultGameProvider = "Unknown"

	dayLayout = "2006-01-02"
)

// Game is one tracked slot title with running totals.
type Game struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Provider string          `json:"provider"`
	Profit   decimal.Decimal `json:"profit"`
	Wagered  decimal.Decimal `json:"wagered"`
	Loss     decimal.Decimal `json:"loss"`
	Count    int64           `json:"count"`
	Expanded bool            `json:"expanded"`

	History  []HistoryPoint `json:"history"`
	Sessions []Session      `json:"sessions"`
}

// HistoryPoint is one entry of a game's chart series.
type HistoryPoint struct {
	Date    string          `json:"date"`
	Profit  decimal.Decimal `json:"profit"`
	Wagered decimal.Decimal `json:"wagered"`
}

// Session is one play session of a game.
type Session struct {
	ID       int64           `json:"id"`
	Date     string          `json:"date"`
	Profit   decimal.Decimal `json:"profit"`
	Wagered  decimal.Decimal `json:"wagered"`
	Loss     decimal.Decimal `json:"loss"`
	BonusBuy bool            `json:"bonusBuy"`
	AutoPlay *AutoPlay       `json:"autoPlay,omitempty"`
}

// AutoPlay describes a batch of identical automatic spins.
type AutoPlay struct {
	BetAmount  decimal.Decimal `json:"betAmount"`
	SpinsCount int64           `json:"spinsCount"`
	TotalWin   decimal.Decimal `json:"totalWin"`
	StartDate  string          `json:"startDate"`
	EndDate    string          `json:"endDate"`
}

// NetProfit is profit minus wagered, the game's balance change.
func (g Game) NetProfit() decimal.Decimal {
	return g.Profit.Sub(g.Wagered)
}

// NetProfit is the session's balance change.
func (s Session) NetProfit() decimal.Decimal {
	return s.Profit.Sub(s.Wagered)
}

func (g *Game) sessionIndex(id int64) int {
	for i := range g.Sessions {
		if g.Sessions[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneGame(g Game) Game {
	if g.History != nil {
		g.History = append([]HistoryPoint(nil), g.History...)
	}
	if g.Sessions != nil {
		sessions := make([]Session, len(g.Sessions))
		for i, s := range g.Sessions {
			sessions[i] = cloneSession(s)
		}
		g.Sessions = sessions
	}
	return g
}

func cloneSession(s Session) Session {
	if s.AutoPlay != nil {
		ap := *s.AutoPlay
		s.AutoPlay = &ap
	}
	return s
}

// parseDate understands the two date shapes the UI writes: full ISO
// timestamps and bare days.
func parseDate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, dayLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
