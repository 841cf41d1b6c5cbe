package tournament

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var now = time.Date(2024, 12, 28, 15, 0, 0, 0, time.UTC)

func clock() func() time.Time { return func() time.Time { return now } }

func TestDecodeMissingGivesDefault(t *testing.T) {
	items, err := Decode(nil, now)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d tournaments", len(items))
	}
	d := items[0]
	if d.Name != DefaultName || d.StartDate != "2024-12-28" || d.EndDate != "2025-01-04" {
		t.Errorf("default = %+v", d)
	}
	if !d.PrizePool.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("prize pool = %s", d.PrizePool)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	b := New([]Tournament{Default(now)}, clock())
	b.AddPlayer("1")
	data, err := Encode(b.List())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	items, err := Decode(data, now)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(items) != 1 || len(items[0].Players) != 1 {
		t.Errorf("items = %+v", items)
	}

	if _, err := Decode([]byte("{"), now); err == nil {
		t.Error("expected decode error")
	}
	legacy, err := Decode([]byte(`[{"id":"1","name":"x","startDate":"2024-01-01","endDate":"2024-01-08","prizePool":500}]`), now)
	if err != nil || legacy[0].Players == nil || !legacy[0].PrizePool.Equal(decimal.NewFromInt(500)) {
		t.Errorf("legacy decode = %+v, %v", legacy, err)
	}
}

func TestAddNamesByPosition(t *testing.T) {
	b := New([]Tournament{Default(now)}, clock())
	a := b.Add()
	c := b.Add()
	if a.Name != "Tournament 2" || c.Name != "Tournament 3" {
		t.Errorf("names = %q, %q", a.Name, c.Name)
	}
	if a.ID == c.ID || a.ID == "1" {
		t.Errorf("ids = %q, %q", a.ID, c.ID)
	}
	if len(b.List()) != 3 {
		t.Errorf("len = %d", len(b.List()))
	}
}

func TestUpdate(t *testing.T) {
	b := New([]Tournament{Default(now)}, clock())
	name, pool := "Xmas Cup", decimal.RequireFromString("2500.50")

	got, err := b.Update("1", Update{Name: &name, PrizePool: &pool})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Name != name || !got.PrizePool.Equal(pool) || got.StartDate != "2024-12-28" {
		t.Errorf("got %+v", got)
	}

	early := "2024-12-01"
	if _, err := b.Update("1", Update{EndDate: &early}); !errors.Is(err, ErrInvalidDates) {
		t.Errorf("end before start err = %v", err)
	}
	bad := "28/12/2024"
	if _, err := b.Update("1", Update{StartDate: &bad}); err == nil {
		t.Error("expected date parse error")
	}
	if cur, _ := b.Get("1"); cur.EndDate != "2025-01-04" {
		t.Errorf("rejected update changed state: %+v", cur)
	}
	if _, err := b.Update("nope", Update{Name: &name}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}
}

func TestPlayersAndLeaderboard(t *testing.T) {
	b := New([]Tournament{Default(now)}, clock())
	names := []string{"ann", "bob", "cat", "dan", "eve"}
	points := []int64{30, 50, 30, 10, 70}
	for i := range names {
		p, err := b.AddPlayer("1")
		if err != nil {
			t.Fatalf("AddPlayer: %v", err)
		}
		if p.Name != DefaultPlayerName || p.Points != 0 {
			t.Errorf("new player = %+v", p)
		}
		if _, err := b.UpdatePlayer("1", p.ID, PlayerUpdate{Name: &names[i], Points: &points[i]}); err != nil {
			t.Fatalf("UpdatePlayer: %v", err)
		}
	}

	tr, _ := b.Get("1")
	board := tr.Leaderboard()
	wantOrder := []string{"eve", "bob", "ann", "cat", "dan"}
	wantTrophy := []Trophy{Gold, Silver, Bronze, "", ""}
	for i, s := range board {
		if s.Player.Name != wantOrder[i] || s.Rank != i+1 || s.Trophy != wantTrophy[i] {
			t.Errorf("row %d = %+v", i, s)
		}
	}
	if tr.Players[0].Name != "ann" {
		t.Error("Leaderboard reordered the stored players")
	}

	if err := b.DeletePlayer("1", tr.Players[0].ID); err != nil {
		t.Fatalf("DeletePlayer: %v", err)
	}
	if err := b.DeletePlayer("1", tr.Players[0].ID); !errors.Is(err, ErrPlayerNotFound) {
		t.Errorf("second delete err = %v", err)
	}
	if _, err := b.UpdatePlayer("1", "ghost", PlayerUpdate{}); !errors.Is(err, ErrPlayerNotFound) {
		t.Errorf("missing player err = %v", err)
	}
}

func TestDelete(t *testing.T) {
	b := New([]Tournament{Default(now)}, clock())
	if err := b.Delete("1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(b.List()) != 0 {
		t.Error("tournament not deleted")
	}
	if err := b.Delete("1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}
