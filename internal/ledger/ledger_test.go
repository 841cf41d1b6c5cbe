package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fixedClock(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

var day = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func newLedger(t *testing.T) *Ledger {
	t.Helper()
	return New(nil, WithClock(fixedClock(day)))
}

func assertDec(t *testing.T, what string, got, want decimal.Decimal) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("%s = %s, want %s", what, got, want)
	}
}

func TestAddGamePrepends(t *testing.T) {
	l := newLedger(t)
	first := l.AddGame()
	second := l.AddGame()

	if first.Name != DefaultGameName || first.Provider != DefaultGameProvider {
		t.Errorf("defaults = %q/%q", first.Name, first.Provider)
	}
	if first.ID == second.ID {
		t.Fatal("ids collide")
	}
	games := l.Games()
	if games[0].ID != second.ID || games[1].ID != first.ID {
		t.Errorf("newest game should be first")
	}
}

func TestNextIDMonotonicUnderFrozenClock(t *testing.T) {
	frozen := func() time.Time { return day }
	l := New([]Game{{ID: day.UnixMilli() + 5}}, WithClock(frozen))
	a := l.AddGame()
	b := l.AddGame()
	if a.ID <= day.UnixMilli()+5 || b.ID != a.ID+1 {
		t.Errorf("ids = %d, %d", a.ID, b.ID)
	}
}

func TestUpdateGame(t *testing.T) {
	l := newLedger(t)
	g := l.AddGame()
	name, wagered, profit := "Gates of Olympus", d("200"), d("150")

	got, err := l.UpdateGame(g.ID, GameUpdate{Name: &name, Wagered: &wagered})
	if err != nil {
		t.Fatalf("UpdateGame: %v", err)
	}
	if got.Name != name || got.Provider != DefaultGameProvider {
		t.Errorf("got %q/%q", got.Name, got.Provider)
	}
	assertDec(t, "loss after wager edit", got.Loss, decimal.Zero)

	got, _ = l.UpdateGame(g.ID, GameUpdate{Profit: &profit})
	assertDec(t, "loss after profit edit", got.Loss, d("50"))

	neg := int64(-1)
	if _, err := l.UpdateGame(g.ID, GameUpdate{Count: &neg}); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative count err = %v", err)
	}
	if _, err := l.UpdateGame(999, GameUpdate{Name: &name}); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("missing game err = %v", err)
	}
}

func TestDeleteAndToggle(t *testing.T) {
	l := newLedger(t)
	g := l.AddGame()

	open, err := l.ToggleExpand(g.ID)
	if err != nil || !open {
		t.Fatalf("ToggleExpand = %v, %v", open, err)
	}
	if open, _ = l.ToggleExpand(g.ID); open {
		t.Error("second toggle should collapse")
	}
	if err := l.DeleteGame(g.ID); err != nil {
		t.Fatalf("DeleteGame: %v", err)
	}
	if l.Len() != 0 {
		t.Errorf("Len = %d", l.Len())
	}
	if err := l.DeleteGame(g.ID); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestMove(t *testing.T) {
	games := []Game{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}
	tests := []struct {
		name     string
		from, to int
		want     []int64
	}{
		{"down", 0, 2, []int64{2, 3, 1, 4}},
		{"up", 3, 1, []int64{1, 4, 2, 3}},
		{"same", 2, 2, []int64{1, 2, 3, 4}},
		{"to end", 0, 3, []int64{2, 3, 4, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(games)
			if err := l.Move(tt.from, tt.to); err != nil {
				t.Fatalf("Move: %v", err)
			}
			for i, g := range l.Games() {
				if g.ID != tt.want[i] {
					t.Fatalf("order = %v, want %v", ids(l.Games()), tt.want)
				}
			}
		})
	}

	l := New(games)
	if err := l.Move(0, 4); !errors.Is(err, ErrInvalidIndex) {
		t.Errorf("out of range err = %v", err)
	}
	if err := l.MoveGame(4, 1); err != nil {
		t.Fatalf("MoveGame: %v", err)
	}
	if got := ids(l.Games()); got[0] != 4 || got[1] != 1 {
		t.Errorf("MoveGame order = %v", got)
	}
}

func ids(games []Game) []int64 {
	out := make([]int64, len(games))
	for i, g := range games {
		out[i] = g.ID
	}
	return out
}

func TestAddAutoPlay(t *testing.T) {
	l := newLedger(t)
	g := l.AddGame()

	s, err := l.AddAutoPlay(g.ID, d("0.20"), 100, d("14.50"))
	if err != nil {
		t.Fatalf("AddAutoPlay: %v", err)
	}
	assertDec(t, "session wagered", s.Wagered, d("20"))
	assertDec(t, "session loss", s.Loss, d("5.50"))
	if s.AutoPlay == nil || s.AutoPlay.SpinsCount != 100 {
		t.Fatalf("autoPlay = %+v", s.AutoPlay)
	}

	got, _ := l.Game(g.ID)
	assertDec(t, "game profit", got.Profit, d("14.50"))
	assertDec(t, "game wagered", got.Wagered, d("20"))
	assertDec(t, "game loss", got.Loss, d("5.50"))
	if got.Count != 100 {
		t.Errorf("count = %d, want 100", got.Count)
	}
	if len(got.History) != 1 || got.History[0].Date != s.Date {
		t.Errorf("history = %+v", got.History)
	}

	bad := []struct {
		bet   string
		spins int64
		win   string
	}{
		{"0", 10, "1"},
		{"1", 0, "1"},
		{"1", 10, "-1"},
	}
	for _, b := range bad {
		if _, err := l.AddAutoPlay(g.ID, d(b.bet), b.spins, d(b.win)); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("AddAutoPlay(%s,%d,%s) err = %v", b.bet, b.spins, b.win, err)
		}
	}
}

func TestUpdateAutoPlayWin(t *testing.T) {
	l := newLedger(t)
	g := l.AddGame()
	s, _ := l.AddAutoPlay(g.ID, d("1"), 50, d("30"))

	up, err := l.UpdateAutoPlayWin(g.ID, s.ID, d("70"))
	if err != nil {
		t.Fatalf("UpdateAutoPlayWin: %v", err)
	}
	assertDec(t, "session profit", up.Profit, d("70"))
	assertDec(t, "session loss", up.Loss, d("-20"))
	assertDec(t, "autoplay total win", up.AutoPlay.TotalWin, d("70"))

	got, _ := l.Game(g.ID)
	assertDec(t, "game profit", got.Profit, d("70"))
	assertDec(t, "game loss", got.Loss, d("-20"))
	assertDec(t, "game wagered", got.Wagered, d("50"))
	if got.Count != 50 {
		t.Errorf("count = %d, want 50", got.Count)
	}
	if len(got.History) != 1 {
		t.Fatalf("history = %+v", got.History)
	}
	assertDec(t, "history profit", got.History[0].Profit, d("70"))

	manual, _ := l.AddSession(g.ID, NewSession{})
	if _, err := l.UpdateAutoPlayWin(g.ID, manual.ID, d("1")); !errors.Is(err, ErrNotAutoPlay) {
		t.Errorf("manual session err = %v", err)
	}
}

func TestUpdateSessionAllowsZero(t *testing.T) {
	l := newLedger(t)
	g := l.AddGame()
	s, err := l.AddSession(g.ID, NewSession{Date: "2024-06-01", Profit: d("40"), Wagered: d("100")})
	if err != nil {
		t.Fatalf("AddSession: %v", err)
	}

	zero := decimal.Zero
	up, err := l.UpdateSession(g.ID, s.ID, SessionUpdate{Profit: &zero})
	if err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}
	assertDec(t, "session profit", up.Profit, decimal.Zero)
	assertDec(t, "session wagered", up.Wagered, d("100"))

	got, _ := l.Game(g.ID)
	assertDec(t, "game profit", got.Profit, decimal.Zero)
	assertDec(t, "game wagered", got.Wagered, d("100"))
	assertDec(t, "game loss", got.Loss, d("60"))
}

func TestEditSessionKeepsHistorySorted(t *testing.T) {
	l := newLedger(t)
	g := l.AddGame()
	late, _ := l.AddSession(g.ID, NewSession{Date: "2024-06-03", Profit: d("1"), Wagered: d("2")})
	early, _ := l.AddSession(g.ID, NewSession{Date: "2024-06-01"})

	if _, err := l.EditSession(g.ID, early.ID, d("10"), d("25")); err != nil {
		t.Fatalf("EditSession: %v", err)
	}
	if _, err := l.EditSession(g.ID, late.ID, d("5"), d("0")); err != nil {
		t.Fatalf("EditSession: %v", err)
	}

	got, _ := l.Game(g.ID)
	if len(got.History) != 2 || got.History[0].Date != "2024-06-01" || got.History[1].Date != "2024-06-03" {
		t.Fatalf("history = %+v", got.History)
	}
	assertDec(t, "game wagered", got.Wagered, d("15"))
	assertDec(t, "game profit", got.Profit, d("25"))
	assertDec(t, "game loss", got.Loss, d("-10"))

	if _, err := l.EditSession(g.ID, 12345, d("1"), d("1")); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("missing session err = %v", err)
	}
}

func TestDeleteSessionReversesTotals(t *testing.T) {
	l := newLedger(t)
	g := l.AddGame()
	keep, _ := l.AddSession(g.ID, NewSession{Date: "2024-05-30", Profit: d("3"), Wagered: d("4")})
	ap, _ := l.AddAutoPlay(g.ID, d("0.5"), 10, d("2"))

	if err := l.DeleteSession(g.ID, ap.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	got, _ := l.Game(g.ID)
	assertDec(t, "profit", got.Profit, d("3"))
	assertDec(t, "wagered", got.Wagered, d("4"))
	assertDec(t, "loss", got.Loss, d("1"))
	if got.Count != 0 || len(got.Sessions) != 1 || got.Sessions[0].ID != keep.ID {
		t.Errorf("game after delete = %+v", got)
	}
	if len(got.History) != 1 || got.History[0].Date != "2024-05-30" {
		t.Errorf("history = %+v", got.History)
	}
}

func TestDeleteSessionKeepsSameDayPoint(t *testing.T) {
	tests := []struct {
		name        string
		deleteFirst bool
		wantProfit  string
		wantWagered string
	}{
		{"delete older", true, "5", "7"},
		{"delete newer", false, "2", "3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLedger(t)
			g := l.AddGame()
			first, _ := l.AddSession(g.ID, NewSession{Date: "2024-05-01", Profit: d("2"), Wagered: d("3")})
			second, _ := l.AddSession(g.ID, NewSession{Date: "2024-05-01", Profit: d("5"), Wagered: d("7")})

			victim := second.ID
			if tt.deleteFirst {
				victim = first.ID
			}
			if err := l.DeleteSession(g.ID, victim); err != nil {
				t.Fatalf("DeleteSession: %v", err)
			}
			got, _ := l.Game(g.ID)
			if len(got.Sessions) != 1 || len(got.History) != 1 {
				t.Fatalf("sessions = %d, history = %+v", len(got.Sessions), got.History)
			}
			assertDec(t, "point profit", got.History[0].Profit, d(tt.wantProfit))
			assertDec(t, "point wagered", got.History[0].Wagered, d(tt.wantWagered))

			if err := l.DeleteSession(g.ID, got.Sessions[0].ID); err != nil {
				t.Fatalf("DeleteSession: %v", err)
			}
			if got, _ = l.Game(g.ID); len(got.History) != 0 {
				t.Errorf("history after last delete = %+v", got.History)
			}
		})
	}
}

func TestGamesReturnsCopies(t *testing.T) {
	l := newLedger(t)
	g := l.AddGame()
	l.AddAutoPlay(g.ID, d("1"), 1, d("1"))

	games := l.Games()
	games[0].Name = "mutated"
	games[0].Sessions[0].AutoPlay.SpinsCount = 999

	again, _ := l.Game(g.ID)
	if again.Name == "mutated" || again.Sessions[0].AutoPlay.SpinsCount == 999 {
		t.Error("Games leaked internal state")
	}
}
