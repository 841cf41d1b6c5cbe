package ledger

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RTP is the return-to-player percentage, (wagered-loss)/wagered·100, or
// zero when nothing was wagered.
func RTP(wagered, loss decimal.Decimal) decimal.Decimal {
	if !wagered.IsPositive() {
		return decimal.Zero
	}
	return wagered.Sub(loss).Div(wagered).Mul(hundred)
}

// Totals aggregates the dashboard stat cards.
type Totals struct {
	NetProfit decimal.Decimal `json:"netProfit"`
	Wagered   decimal.Decimal `json:"wagered"`
	Loss      decimal.Decimal `json:"loss"`
	RTP       decimal.Decimal `json:"rtp"`
	Games     int             `json:"games"`
	Spins     int64           `json:"spins"`
}

// Summarize totals every game.
func Summarize(games []Game) Totals {
	t := Totals{Games: len(games)}
	for _, g := range games {
		t.NetProfit = t.NetProfit.Add(g.NetProfit())
		t.Wagered = t.Wagered.Add(g.Wagered)
		t.Loss = t.Loss.Add(g.Loss)
		t.Spins += g.Count
	}
	t.RTP = RTP(t.Wagered, t.Loss)
	return t
}

// GameStats are the figures shown in an expanded game row.
type GameStats struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	NetProfit  decimal.Decimal `json:"netProfit"`
	WinRate    decimal.Decimal `json:"winRate"`
	AverageBet decimal.Decimal `json:"averageBet"`
	RTP        decimal.Decimal `json:"rtp"`
}

// Stats computes a game's derived figures. Win rate is profit/wagered·100
// and the average bet is wagered/count; both are zero on empty input.
func Stats(g Game) GameStats {
	s := GameStats{
		ID:        g.ID,
		Name:      g.Name,
		NetProfit: g.NetProfit(),
		RTP:       RTP(g.Wagered, g.Loss),
	}
	if g.Wagered.IsPositive() {
		s.WinRate = g.Profit.Div(g.Wagered).Mul(hundred)
	}
	if g.Count > 0 {
		s.AverageBet = g.Wagered.Div(decimal.NewFromInt(g.Count))
	}
	return s
}

// ChartRow is one bar of the analytics charts.
type ChartRow struct {
	Name    string          `json:"name"`
	Profit  decimal.Decimal `json:"profit"`
	Wagered decimal.Decimal `json:"wagered"`
	RTP     decimal.Decimal `json:"rtp"`
}

// Analytics returns the per-game chart rows in display order.
func Analytics(games []Game) []ChartRow {
	rows := make([]ChartRow, len(games))
	for i, g := range games {
		rows[i] = ChartRow{
			Name:    g.Name,
			Profit:  g.Profit,
			Wagered: g.Wagered,
			RTP:     RTP(g.Wagered, g.Loss),
		}
	}
	return rows
}

// Series is a game's history in date order.
func Series(g Game) []HistoryPoint {
	out := append([]HistoryPoint{}, g.History...)
	sortHistory(out)
	return out
}
