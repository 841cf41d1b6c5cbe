package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRTP(t *testing.T) {
	tests := []struct {
		wagered, loss, want string
	}{
		{"100", "4", "96"},
		{"100", "0", "100"},
		{"100", "150", "-50"},
		{"0", "10", "0"},
		{"-5", "1", "0"},
	}
	for _, tt := range tests {
		got := RTP(d(tt.wagered), d(tt.loss))
		if !got.Equal(d(tt.want)) {
			t.Errorf("RTP(%s, %s) = %s, want %s", tt.wagered, tt.loss, got, tt.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	games := []Game{
		{Name: "a", Profit: d("80"), Wagered: d("100"), Loss: d("20"), Count: 10},
		{Name: "b", Profit: d("300"), Wagered: d("200"), Loss: d("-100"), Count: 5},
	}
	tot := Summarize(games)
	assertDec(t, "net profit", tot.NetProfit, d("80"))
	assertDec(t, "wagered", tot.Wagered, d("300"))
	assertDec(t, "loss", tot.Loss, d("-80"))
	assertDec(t, "rtp", tot.RTP, d("300").Add(d("80")).Div(d("300")).Mul(d("100")))
	if tot.Games != 2 || tot.Spins != 15 {
		t.Errorf("counts = %d games, %d spins", tot.Games, tot.Spins)
	}

	empty := Summarize(nil)
	if !empty.RTP.IsZero() || !empty.NetProfit.IsZero() {
		t.Errorf("empty totals = %+v", empty)
	}
}

func TestStats(t *testing.T) {
	s := Stats(Game{Profit: d("50"), Wagered: d("200"), Loss: d("150"), Count: 40})
	assertDec(t, "win rate", s.WinRate, d("25"))
	assertDec(t, "average bet", s.AverageBet, d("5"))
	assertDec(t, "rtp", s.RTP, d("25"))
	assertDec(t, "net", s.NetProfit, d("-150"))

	zero := Stats(Game{})
	if !zero.WinRate.IsZero() || !zero.AverageBet.IsZero() {
		t.Errorf("zero game stats = %+v", zero)
	}
}

func TestAnalyticsAndSeries(t *testing.T) {
	g := Game{
		Name: "x", Profit: d("1"), Wagered: d("2"), Loss: d("1"),
		History: []HistoryPoint{
			{Date: "2024-06-03T10:00:00Z", Profit: decimal.Zero},
			{Date: "2024-06-01", Profit: decimal.Zero},
			{Date: "2024-06-02T23:59:59.5Z", Profit: decimal.Zero},
		},
	}
	rows := Analytics([]Game{g})
	if len(rows) != 1 || rows[0].Name != "x" {
		t.Fatalf("rows = %+v", rows)
	}
	assertDec(t, "row rtp", rows[0].RTP, d("50"))

	series := Series(g)
	want := []string{"2024-06-01", "2024-06-02T23:59:59.5Z", "2024-06-03T10:00:00Z"}
	for i, p := range series {
		if p.Date != want[i] {
			t.Fatalf("series order = %+v", series)
		}
	}
	if g.History[0].Date != "2024-06-03T10:00:00Z" {
		t.Error("Series sorted the game's own history")
	}
}
