// Package tournament keeps friendly leaderboards: tournaments with a prize
// pool and a list of players ranked by points.
package tournament

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// StorageKey is the key-value slot holding the tournament list.
	StorageKey = "tournaments"

	DefaultName       = "New Tournament"
	DefaultPlayerName = "New Player"
	defaultLength     = 7 * 24 * time.Hour
	dateLayout        = "2006-01-02"
)

var (
	ErrNotFound       = errors.New("tournament: not found")
	ErrPlayerNotFound = errors.New("tournament: player not found")
	ErrInvalidDates   = errors.New("tournament: end date before start date")
)

// DefaultPrizePool seeds every new tournament.
var DefaultPrizePool = decimal.NewFromInt(1000)

type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Points int64  `json:"points"`
}

type Tournament struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Players   []Player        `json:"players"`
	StartDate string          `json:"startDate"`
	EndDate   string          `json:"endDate"`
	PrizePool decimal.Decimal `json:"prizePool"`
}

// Trophy marks the top three places.
type Trophy string

const (
	Gold   Trophy = "gold"
	Silver Trophy = "silver"
	Bronze Trophy = "bronze"
)

// Standing is one leaderboard row.
type Standing struct {
	Rank   int    `json:"rank"`
	Trophy Trophy `json:"trophy,omitempty"`
	Player Player `json:"player"`
}

// Leaderboard orders players by points, highest first. Ties keep the order
// players were added in.
func (t Tournament) Leaderboard() []Standing {
	players := append([]Player(nil), t.Players...)
	sort.SliceStable(players, func(i, j int) bool { return players[i].Points > players[j].Points })

	out := make([]Standing, len(players))
	for i, p := range players {
		out[i] = Standing{Rank: i + 1, Player: p}
		switch i {
		case 0:
			out[i].Trophy = Gold
		case 1:
			out[i].Trophy = Silver
		case 2:
			out[i].Trophy = Bronze
		}
	}
	return out
}

// Book is the ordered tournament list.
type Book struct {
	items  []Tournament
	now    func() time.Time
	lastID int64
}

// New wraps an existing list, which it copies.
func New(items []Tournament, now func() time.Time) *Book {
	if now == nil {
		now = time.Now
	}
	b := &Book{now: now}
	b.items = make([]Tournament, len(items))
	for i, t := range items {
		b.items[i] = clone(t)
	}
	return b
}

// Default is the tournament shown before anything has been saved.
func Default(now time.Time) Tournament {
	return Tournament{
		ID:        "1",
		Name:      DefaultName,
		Players:   []Player{},
		StartDate: now.Format(dateLayout),
		EndDate:   now.Add(defaultLength).Format(dateLayout),
		PrizePool: DefaultPrizePool,
	}
}

// Decode parses the stored list. A missing value yields the single default
// tournament.
func Decode(data []byte, now time.Time) ([]Tournament, error) {
	if len(data) == 0 {
		return []Tournament{Default(now)}, nil
	}
	var items []Tournament
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("tournament: decode: %w", err)
	}
	for i := range items {
		if items[i].Players == nil {
			items[i].Players = []Player{}
		}
	}
	return items, nil
}

// Encode serializes the list.
func Encode(items []Tournament) ([]byte, error) {
	if items == nil {
		items = []Tournament{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("tournament: encode: %w", err)
	}
	return data, nil
}

func clone(t Tournament) Tournament {
	t.Players = append([]Player{}, t.Players...)
	return t
}

func (b *Book) nextID() string {
	id := b.now().UnixMilli()
	if id <= b.lastID {
		id = b.lastID + 1
	}
	b.lastID = id
	return strconv.FormatInt(id, 10)
}

func (b *Book) find(id string) (*Tournament, error) {
	for i := range b.items {
		if b.items[i].ID == id {
			return &b.items[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// List returns copies of every tournament.
func (b *Book) List() []Tournament {
	out := make([]Tournament, len(b.items))
	for i, t := range b.items {
		out[i] = clone(t)
	}
	return out
}

// Get returns one tournament.
func (b *Book) Get(id string) (Tournament, error) {
	t, err := b.find(id)
	if err != nil {
		return Tournament{}, err
	}
	return clone(*t), nil
}

// Add appends a default tournament named after its position.
func (b *Book) Add() Tournament {
	t := Default(b.now())
	t.ID = b.nextID()
	t.Name = fmt.Sprintf("Tournament %d", len(b.items)+1)
	b.items = append(b.items, t)
	return clone(t)
}

// Update carries tournament edits. Nil fields are unchanged.
type Update struct {
	Name      *string
	StartDate *string
	EndDate   *string
	PrizePool *decimal.Decimal
}

// Update applies u.
func (b *Book) Update(id string, u Update) (Tournament, error) {
	t, err := b.find(id)
	if err != nil {
		return Tournament{}, err
	}
	next := *t
	if u.Name != nil {
		next.Name = *u.Name
	}
	if u.StartDate != nil {
		next.StartDate = *u.StartDate
	}
	if u.EndDate != nil {
		next.EndDate = *u.EndDate
	}
	if u.PrizePool != nil {
		next.PrizePool = *u.PrizePool
	}
	if err := checkDates(next.StartDate, next.EndDate); err != nil {
		return Tournament{}, err
	}
	*t = next
	return clone(next), nil
}

func checkDates(start, end string) error {
	s, errS := time.Parse(dateLayout, start)
	e, errE := time.Parse(dateLayout, end)
	if errS != nil {
		return fmt.Errorf("tournament: start date %q: %w", start, errS)
	}
	if errE != nil {
		return fmt.Errorf("tournament: end date %q: %w", end, errE)
	}
	if e.Before(s) {
		return ErrInvalidDates
	}
	return nil
}

// Delete removes a tournament.
func (b *Book) Delete(id string) error {
	for i := range b.items {
		if b.items[i].ID == id {
			b.items = append(b.items[:i], b.items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// AddPlayer appends a player with zero points.
func (b *Book) AddPlayer(tournamentID string) (Player, error) {
	t, err := b.find(tournamentID)
	if err != nil {
		return Player{}, err
	}
	p := Player{ID: b.nextID(), Name: DefaultPlayerName}
	t.Players = append(t.Players, p)
	return p, nil
}

// PlayerUpdate carries player edits. Nil fields are unchanged.
type PlayerUpdate struct {
	Name   *string
	Points *int64
}

// UpdatePlayer applies u to one player.
func (b *Book) UpdatePlayer(tournamentID, playerID string, u PlayerUpdate) (Player, error) {
	t, err := b.find(tournamentID)
	if err != nil {
		return Player{}, err
	}
	for i := range t.Players {
		if t.Players[i].ID != playerID {
			continue
		}
		if u.Name != nil {
			t.Players[i].Name = *u.Name
		}
		if u.Points != nil {
			t.Players[i].Points = *u.Points
		}
		return t.Players[i], nil
	}
	return Player{}, fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
}

// DeletePlayer removes one player.
func (b *Book) DeletePlayer(tournamentID, playerID string) error {
	t, err := b.find(tournamentID)
	if err != nil {
		return err
	}
	for i := range t.Players {
		if t.Players[i].ID == playerID {
			t.Players = append(t.Players[:i], t.Players[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
}
