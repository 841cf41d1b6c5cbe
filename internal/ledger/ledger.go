package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Ledger is an ordered list of games. The order is the user's display order
// and survives save and load.
type Ledger struct {
	games  []Game
	now    func() time.Time
	lastID int64
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New builds a ledger over games, which it copies.
func New(games []Game, opts ...Option) *Ledger {
	l := &Ledger{now: time.Now}
	for _, o := range opts {
		o(l)
	}
	l.Replace(games)
	return l
}

// Replace swaps in a new game list, e.g. after an import.
func (l *Ledger) Replace(games []Game) {
	l.games = make([]Game, len(games))
	for i, g := range games {
		l.games[i] = cloneGame(g)
		l.observeID(g.ID)
		for _, s := range g.Sessions {
			l.observeID(s.ID)
		}
	}
}

// Games returns a deep copy of the games in display order.
func (l *Ledger) Games() []Game {
	out := make([]Game, len(l.games))
	for i, g := range l.games {
		out[i] = cloneGame(g)
	}
	return out
}

// Len is the number of games.
func (l *Ledger) Len() int { return len(l.games) }

// Game returns a copy of one game.
func (l *Ledger) Game(id int64) (Game, error) {
	i := l.index(id)
	if i < 0 {
		return Game{}, fmt.Errorf("%w: %d", ErrGameNotFound, id)
	}
	return cloneGame(l.games[i]), nil
}

// nextID hands out millisecond timestamps, bumped to stay unique.
func (l *Ledger) nextID() int64 {
	id := l.now().UnixMilli()
	if id <= l.lastID {
		id = l.lastID + 1
	}
	l.lastID = id
	return id
}

func (l *Ledger) observeID(id int64) {
	if id > l.lastID {
		l.lastID = id
	}
}

func (l *Ledger) index(id int64) int {
	for i := range l.games {
		if l.games[i].ID == id {
			return i
		}
	}
	return -1
}

func (l *Ledger) game(id int64) (*Game, error) {
	i := l.index(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %d", ErrGameNotFound, id)
	}
	return &l.games[i], nil
}

// AddGame prepends a blank game.
func (l *Ledger) AddGame() Game {
	g := Game{
		ID:       l.nextID(),
		Name:     DefaultGameName,
		Provider: DefaultGameProvider,
		History:  []HistoryPoint{},
		Sessions: []Session{},
	}
	l.games = append([]Game{g}, l.games...)
	return cloneGame(g)
}

// GameUpdate carries inline edits of a game row. Nil fields are unchanged.
type GameUpdate struct {
	Name     *string
	Provider *string
	Profit   *decimal.Decimal
	Wagered  *decimal.Decimal
	Count    *int64
}

// UpdateGame applies inline edits. Editing profit recomputes loss as
// wagered minus profit.
func (l *Ledger) UpdateGame(id int64, u GameUpdate) (Game, error) {
	g, err := l.game(id)
	if err != nil {
		return Game{}, err
	}
	if u.Count != nil && *u.Count < 0 {
		return Game{}, fmt.Errorf("%w: count %d", ErrInvalidAmount, *u.Count)
	}
	if u.Name != nil {
		g.Name = *u.Name
	}
	if u.Provider != nil {
		g.Provider = *u.Provider
	}
	if u.Wagered != nil {
		g.Wagered = *u.Wagered
	}
	if u.Profit != nil {
		g.Profit = *u.Profit
		g.Loss = g.Wagered.Sub(g.Profit)
	}
	if u.Count != nil {
		g.Count = *u.Count
	}
	return cloneGame(*g), nil
}

// DeleteGame removes a game.
func (l *Ledger) DeleteGame(id int64) error {
	i := l.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrGameNotFound, id)
	}
	l.games = append(l.games[:i], l.games[i+1:]...)
	return nil
}

// ToggleExpand flips the expanded flag and returns the new value.
func (l *Ledger) ToggleExpand(id int64) (bool, error) {
	g, err := l.game(id)
	if err != nil {
		return false, err
	}
	g.Expanded = !g.Expanded
	return g.Expanded, nil
}

// Move relocates the game at index from to index to, shifting the games in
// between.
func (l *Ledger) Move(from, to int) error {
	n := len(l.games)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("%w: move %d -> %d of %d", ErrInvalidIndex, from, to, n)
	}
	l.games = arrayMove(l.games, from, to)
	return nil
}

// MoveGame moves the game activeID to the position currently held by overID,
// which is how a drag-and-drop ends.
func (l *Ledger) MoveGame(activeID, overID int64) error {
	from, to := l.index(activeID), l.index(overID)
	if from < 0 {
		return fmt.Errorf("%w: %d", ErrGameNotFound, activeID)
	}
	if to < 0 {
		return fmt.Errorf("%w: %d", ErrGameNotFound, overID)
	}
	if from == to {
		return nil
	}
	return l.Move(from, to)
}

func arrayMove[T any](s []T, from, to int) []T {
	out := make([]T, 0, len(s))
	out = append(out, s[:from]...)
	out = append(out, s[from+1:]...)
	item := s[from]
	out = append(out[:to], append([]T{item}, out[to:]...)...)
	return out
}

// NewSession is the input for a manual session.
type NewSession struct {
	Date     string
	Profit   decimal.Decimal
	Wagered  decimal.Decimal
	BonusBuy bool
}

// AddSession appends a manual session and folds it into the game's totals.
// An empty date means today.
func (l *Ledger) AddSession(gameID int64, in NewSession) (Session, error) {
	g, err := l.game(gameID)
	if err != nil {
		return Session{}, err
	}
	if in.Date == "" {
		in.Date = l.now().Format(dayLayout)
	}
	s := Session{
		ID:       l.nextID(),
		Date:     in.Date,
		Profit:   in.Profit,
		Wagered:  in.Wagered,
		Loss:     in.Wagered.Sub(in.Profit),
		BonusBuy: in.BonusBuy,
	}
	g.Sessions = append(g.Sessions, s)
	g.Profit = g.Profit.Add(s.Profit)
	g.Wagered = g.Wagered.Add(s.Wagered)
	g.Loss = g.Loss.Add(s.Loss)
	if !s.Profit.IsZero() || !s.Wagered.IsZero() {
		g.setHistory(s.Date, s.Profit, s.Wagered)
	}
	return s, nil
}

// AddAutoPlay records a batch of spins at a fixed bet. The wager is
// bet·spins, the loss is wager minus win, and the spin count grows by spins.
func (l *Ledger) AddAutoPlay(gameID int64, bet decimal.Decimal, spins int64, win decimal.Decimal) (Session, error) {
	g, err := l.game(gameID)
	if err != nil {
		return Session{}, err
	}
	if !bet.IsPositive() {
		return Session{}, fmt.Errorf("%w: bet must be positive", ErrInvalidAmount)
	}
	if spins <= 0 {
		return Session{}, fmt.Errorf("%w: spins must be positive", ErrInvalidAmount)
	}
	if win.IsNegative() {
		return Session{}, fmt.Errorf("%w: win must not be negative", ErrInvalidAmount)
	}

	ts := l.now().UTC().Format(time.RFC3339Nano)
	wagered := bet.Mul(decimal.NewFromInt(spins))
	s := Session{
		ID:      l.nextID(),
		Date:    ts,
		Profit:  win,
		Wagered: wagered,
		Loss:    wagered.Sub(win),
		AutoPlay: &AutoPlay{
			BetAmount:  bet,
			SpinsCount: spins,
			TotalWin:   win,
			StartDate:  ts,
			EndDate:    ts,
		},
	}
	g.Sessions = append(g.Sessions, s)
	g.Profit = g.Profit.Add(s.Profit)
	g.Wagered = g.Wagered.Add(s.Wagered)
	g.Loss = g.Loss.Add(s.Loss)
	g.Count += spins
	g.setHistory(s.Date, s.Profit, s.Wagered)
	return cloneSession(s), nil
}

// SessionUpdate carries session edits. Nil fields are unchanged, so a
// legitimate zero can be written.
type SessionUpdate struct {
	Profit   *decimal.Decimal
	Wagered  *decimal.Decimal
	Loss     *decimal.Decimal
	BonusBuy *bool
}

// UpdateSession applies u, moves the game totals by the difference, and
// replaces the history point for the session's date.
func (l *Ledger) UpdateSession(gameID, sessionID int64, u SessionUpdate) (Session, error) {
	g, err := l.game(gameID)
	if err != nil {
		return Session{}, err
	}
	i := g.sessionIndex(sessionID)
	if i < 0 {
		return Session{}, fmt.Errorf("%w: %d", ErrSessionNotFound, sessionID)
	}
	old := g.Sessions[i]
	s := old
	if u.Profit != nil {
		s.Profit = *u.Profit
	}
	if u.Wagered != nil {
		s.Wagered = *u.Wagered
	}
	if u.Loss != nil {
		s.Loss = *u.Loss
	}
	if u.BonusBuy != nil {
		s.BonusBuy = *u.BonusBuy
	}

	g.Profit = g.Profit.Sub(old.Profit).Add(s.Profit)
	g.Wagered = g.Wagered.Sub(old.Wagered).Add(s.Wagered)
	g.Loss = g.Loss.Sub(old.Loss).Add(s.Loss)
	g.Sessions[i] = s
	g.setHistory(s.Date, s.Profit, s.Wagered)
	return cloneSession(s), nil
}

// EditSession is the row editor's save: new wager and profit, with loss
// recomputed as wager minus profit.
func (l *Ledger) EditSession(gameID, sessionID int64, wagered, profit decimal.Decimal) (Session, error) {
	loss := wagered.Sub(profit)
	return l.UpdateSession(gameID, sessionID, SessionUpdate{
		Profit:  &profit,
		Wagered: &wagered,
		Loss:    &loss,
	})
}

// UpdateAutoPlayWin corrects the total win of an auto-play session.
func (l *Ledger) UpdateAutoPlayWin(gameID, sessionID int64, win decimal.Decimal) (Session, error) {
	g, err := l.game(gameID)
	if err != nil {
		return Session{}, err
	}
	i := g.sessionIndex(sessionID)
	if i < 0 {
		return Session{}, fmt.Errorf("%w: %d", ErrSessionNotFound, sessionID)
	}
	if g.Sessions[i].AutoPlay == nil {
		return Session{}, ErrNotAutoPlay
	}
	if win.IsNegative() {
		return Session{}, fmt.Errorf("%w: win must not be negative", ErrInvalidAmount)
	}

	s, err := l.UpdateSession(gameID, sessionID, SessionUpdate{Profit: &win, Loss: ptr(g.Sessions[i].Wagered.Sub(win))})
	if err != nil {
		return Session{}, err
	}
	ap := *s.AutoPlay
	ap.TotalWin = win
	g.Sessions[i].AutoPlay = &ap
	return cloneSession(g.Sessions[i]), nil
}

// DeleteSession removes a session and takes it back out of the totals.
func (l *Ledger) DeleteSession(gameID, sessionID int64) error {
	g, err := l.game(gameID)
	if err != nil {
		return err
	}
	i := g.sessionIndex(sessionID)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrSessionNotFound, sessionID)
	}
	s := g.Sessions[i]
	g.Profit = g.Profit.Sub(s.Profit)
	g.Wagered = g.Wagered.Sub(s.Wagered)
	g.Loss = g.Loss.Sub(s.Loss)
	if s.AutoPlay != nil {
		g.Count -= s.AutoPlay.SpinsCount
	}
	g.Sessions = append(g.Sessions[:i], g.Sessions[i+1:]...)
	g.restoreHistory(s.Date)
	return nil
}

// restoreHistory rebuilds the point for date from the newest surviving
// session on that date, or drops it when none is left.
func (g *Game) restoreHistory(date string) {
	for i := len(g.Sessions) - 1; i >= 0; i-- {
		if s := g.Sessions[i]; s.Date == date {
			g.setHistory(date, s.Profit, s.Wagered)
			return
		}
	}
	g.dropHistory(date)
}

// setHistory replaces the point for date and keeps the series in date order.
func (g *Game) setHistory(date string, profit, wagered decimal.Decimal) {
	g.dropHistory(date)
	g.History = append(g.History, HistoryPoint{Date: date, Profit: profit, Wagered: wagered})
	sortHistory(g.History)
}

func (g *Game) dropHistory(date string) {
	kept := g.History[:0]
	for _, h := range g.History {
		if h.Date != date {
			kept = append(kept, h)
		}
	}
	g.History = kept
}

func sortHistory(h []HistoryPoint) {
	sort.SliceStable(h, func(i, j int) bool {
		return dateLess(h[i].Date, h[j].Date)
	})
}

func dateLess(a, b string) bool {
	ta, okA := parseDate(a)
	tb, okB := parseDate(b)
	if okA && okB {
		return ta.Before(tb)
	}
	return a < b
}

func ptr[T any](v T) *T { return &v }
