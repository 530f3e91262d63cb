package series

import (
	"math"
	"testing"
	"time"

	"stockanalyzer/pkg/model"
)

func f(v float64) *float64 { return &v }

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestNormalize_Example(t *testing.T) {
	raw := &model.RawSeries{
		Symbol: "TEST",
		Bars: []model.RawBar{
			{Date: day(1), Close: f(100), AdjClose: f(100)},
			{Date: day(2), Close: f(110), AdjClose: f(110)},
			{Date: day(3), Close: f(99), AdjClose: f(99)},
		},
	}

	n := Normalize(raw)
	if n.Empty() {
		t.Fatal("Expected non-empty series")
	}
	if n.Ticker() != "TEST" {
		t.Errorf("Expected ticker TEST, got %s", n.Ticker())
	}
	if len(n.Returns) != 2 {
		t.Fatalf("Expected 2 returns, got %d", len(n.Returns))
	}
	if !n.Returns[0].Date.Equal(day(2)) || math.Abs(n.Returns[0].Return-0.10) > 1e-12 {
		t.Errorf("Unexpected first return: %+v", n.Returns[0])
	}
	if !n.Returns[1].Date.Equal(day(3)) || math.Abs(n.Returns[1].Return+0.10) > 1e-12 {
		t.Errorf("Unexpected second return: %+v", n.Returns[1])
	}

	total := TotalReturn(n.Prices)
	if math.Abs(total-(-0.01)) > 1e-12 {
		t.Errorf("Expected total return -0.01, got %f", total)
	}
}

func TestNormalize_ReturnCount(t *testing.T) {
	for _, size := range []int{2, 3, 10, 25} {
		bars := make([]model.RawBar, size)
		for i := range bars {
			bars[i] = model.RawBar{Date: day(1).AddDate(0, 0, i), Close: f(100 + float64(i))}
		}
		n := Normalize(&model.RawSeries{Symbol: "X", Bars: bars})
		if len(n.Returns) != size-1 {
			t.Errorf("size %d: expected %d returns, got %d", size, size-1, len(n.Returns))
		}
		if n.Prices.Len() != size {
			t.Errorf("size %d: expected %d prices, got %d", size, size, n.Prices.Len())
		}
	}
}

func TestNormalize_AdjCloseFallback(t *testing.T) {
	raw := &model.RawSeries{
		Symbol: "NOADJ",
		Bars: []model.RawBar{
			{Date: day(1), Close: f(50)},
			{Date: day(2), Close: f(55), AdjClose: f(54)},
			{Date: day(3), Close: f(60), AdjClose: f(math.NaN())},
		},
	}

	n := Normalize(raw)
	want := []float64{50, 54, 60}
	for i, p := range n.Prices.Points {
		if p.AdjClose != want[i] {
			t.Errorf("point %d: expected adj close %f, got %f", i, want[i], p.AdjClose)
		}
	}
}

func TestNormalize_Empty(t *testing.T) {
	tests := []struct {
		name string
		raw  *model.RawSeries
	}{
		{"nil", nil},
		{"no bars", &model.RawSeries{Symbol: "A"}},
		{"no close field", &model.RawSeries{Symbol: "A", Bars: []model.RawBar{
			{Date: day(1), Open: f(1), AdjClose: f(1)},
			{Date: day(2), Open: f(2), AdjClose: f(2)},
		}}},
		{"single usable point", &model.RawSeries{Symbol: "A", Bars: []model.RawBar{
			{Date: day(1), Close: f(10)},
			{Date: day(2)},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := Normalize(tt.raw)
			if !n.Empty() {
				t.Errorf("Expected empty series, got %d points", n.Prices.Len())
			}
		})
	}
}

func TestNormalize_SortsAndDeduplicates(t *testing.T) {
	raw := &model.RawSeries{
		Symbol: "DUP",
		Bars: []model.RawBar{
			{Date: day(3), Close: f(30)},
			{Date: day(1), Close: f(10)},
			{Date: day(2), Close: f(20)},
			{Date: day(2).Add(4 * time.Hour), Close: f(21)},
		},
	}

	n := Normalize(raw)
	if n.Prices.Len() != 3 {
		t.Fatalf("Expected 3 points, got %d", n.Prices.Len())
	}
	for i := 1; i < n.Prices.Len(); i++ {
		if !n.Prices.Points[i].Date.After(n.Prices.Points[i-1].Date) {
			t.Errorf("Dates not strictly increasing at %d", i)
		}
	}
	if n.Prices.Points[1].Close != 21 {
		t.Errorf("Expected later bar to win for duplicate date, got %f", n.Prices.Points[1].Close)
	}
}

func TestNormalize_DropsIncompleteRows(t *testing.T) {
	raw := &model.RawSeries{
		Symbol: "GAP",
		Bars: []model.RawBar{
			{Date: day(1)},
			{Date: day(2), Close: f(0)},
			{Date: day(3), Close: f(100)},
			{Date: day(4), Close: f(105)},
		},
	}

	n := Normalize(raw)
	if n.Prices.Len() != 2 {
		t.Fatalf("Expected 2 points, got %d", n.Prices.Len())
	}
	if !n.Prices.Points[0].Date.Equal(day(3)) {
		t.Errorf("Expected first point on day 3, got %s", n.Prices.Points[0].Date)
	}
}

func TestTotalReturn_ShortSeries(t *testing.T) {
	if !math.IsNaN(TotalReturn(model.PriceSeries{})) {
		t.Error("Expected NaN for empty series")
	}
}
