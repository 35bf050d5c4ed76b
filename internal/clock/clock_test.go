package clock

import (
	"testing"
	"time"
)

func nyInstant(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.ParseInLocation("2006-01-02T15:04:05", s, NewYorkLocation())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return parsed.UTC()
}

func TestIsPreMarket_Boundaries(t *testing.T) {
	cal := WeekdayCalendar{}

	cases := []struct {
		name string
		ny   string
		want bool
	}{
		{"just before open", "2025-03-04T03:59:59", false},
		{"at open", "2025-03-04T04:00:00", true},
		{"mid window", "2025-03-04T07:15:00", true},
		{"just before close", "2025-03-04T09:29:59", true},
		{"at close", "2025-03-04T09:30:00", false},
		{"regular session", "2025-03-04T10:00:00", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			instant := nyInstant(t, tc.ny)
			got := IsPreMarket(instant, cal)
			if got != tc.want {
				t.Errorf("IsPreMarket(%s) = %v, want %v", tc.ny, got, tc.want)
			}
		})
	}
}

func TestIsPreMarket_WeekendExcluded(t *testing.T) {
	cal := WeekdayCalendar{}
	// 2025-03-08 is a Saturday.
	instant := nyInstant(t, "2025-03-08T05:00:00")
	if IsPreMarket(instant, cal) {
		t.Fatal("expected weekend pre-market window to be excluded")
	}
}

func TestSystemClock_Monotonic(t *testing.T) {
	c := NewSystemClock()
	prev := c.NowUTC()
	for i := 0; i < 1000; i++ {
		next := c.NowUTC()
		if next.Before(prev) {
			t.Fatalf("clock went backwards: %v then %v", prev, next)
		}
		prev = next
	}
}

func TestFixedClock_AdvanceAndSet(t *testing.T) {
	start := time.Date(2025, 3, 4, 14, 0, 0, 0, time.UTC)
	c := NewFixedClock(start)
	if !c.NowUTC().Equal(start) {
		t.Fatalf("expected %v, got %v", start, c.NowUTC())
	}
	c.Advance(time.Hour)
	if !c.NowUTC().Equal(start.Add(time.Hour)) {
		t.Fatalf("advance did not apply")
	}
	c.Set(start)
	if !c.NowUTC().Equal(start) {
		t.Fatalf("set did not apply")
	}
}
