package ledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// SortKey names a sortable game column.
type SortKey string

const (
	SortByID            SortKey = "id"
	SortByName          SortKey = "name"
	SortByProvider      SortKey = "provider"
	SortByProfit        SortKey = "profit"
	SortByWagered       SortKey = "wagered"
	SortByLoss          SortKey = "loss"
	SortByCount         SortKey = "count"
	SortByBalanceChange SortKey = "balanceChange"
)

// Direction is ascending or descending.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// SortConfig is the active sort column.
type SortConfig struct {
	Key       SortKey   `json:"key"`
	Direction Direction `json:"direction"`
}

// ParseSortKey validates a key coming from a request.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(s); k {
	case SortByID, SortByName, SortByProvider, SortByProfit, SortByWagered,
		SortByLoss, SortByCount, SortByBalanceChange:
		return k, nil
	}
	return "", fmt.Errorf("ledger: unknown sort key %q", s)
}

// Toggle returns the config after clicking key's header: a second click on
// an ascending column flips it to descending, anything else sorts ascending.
func (c *SortConfig) Toggle(key SortKey) SortConfig {
	if c != nil && c.Key == key && c.Direction == Asc {
		return SortConfig{Key: key, Direction: Desc}
	}
	return SortConfig{Key: key, Direction: Asc}
}

// Sort returns a stably sorted copy of games.
func Sort(games []Game, cfg SortConfig) []Game {
	out := append([]Game(nil), games...)
	cmp := comparator(cfg.Key)
	sort.SliceStable(out, func(i, j int) bool {
		c := cmp(out[i], out[j])
		if cfg.Direction == Desc {
			return c > 0
		}
		return c < 0
	})
	return out
}

func comparator(key SortKey) func(a, b Game) int {
	dec := func(f func(Game) decimal.Decimal) func(a, b Game) int {
		return func(a, b Game) int { return f(a).Cmp(f(b)) }
	}
	switch key {
	case SortByName:
		return func(a, b Game) int { return compareText(a.Name, b.Name) }
	case SortByProvider:
		return func(a, b Game) int { return compareText(a.Provider, b.Provider) }
	case SortByProfit:
		return dec(func(g Game) decimal.Decimal { return g.Profit })
	case SortByWagered:
		return dec(func(g Game) decimal.Decimal { return g.Wagered })
	case SortByLoss:
		return dec(func(g Game) decimal.Decimal { return g.Loss })
	case SortByBalanceChange:
		return dec(Game.NetProfit)
	case SortByCount:
		return func(a, b Game) int { return compareInt(a.Count, b.Count) }
	default:
		return func(a, b Game) int { return compareInt(a.ID, b.ID) }
	}
}

func compareText(a, b string) int {
	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Filter keeps games whose name or provider contains term, ignoring case.
// An empty term keeps everything.
func Filter(games []Game, term string) []Game {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return append([]Game(nil), games...)
	}
	var out []Game
	for _, g := range games {
		if strings.Contains(strings.ToLower(g.Name), term) ||
			strings.Contains(strings.ToLower(g.Provider), term) {
			out = append(out, g)
		}
	}
	return out
}

// SortInPlace reorders the ledger itself, which is what clicking a column
// header does in the dashboard.
func (l *Ledger) SortInPlace(cfg SortConfig) {
	l.games = Sort(l.games, cfg)
}
