package state

import "testing"

func TestLeapYears(t *testing.T) {
	cases := map[int]bool{3024: true, 3025: false, 3100: false, 3200: true, 3028: true}
	for year, want := range cases {
		if got := IsLeapYear(year); got != want {
			t.Errorf("IsLeapYear(%d) = %v, want %v", year, got, want)
		}
	}
	if DaysInMonth(2, 3024) != 29 || DaysInMonth(2, 3025) != 28 {
		t.Fatal("February length wrong")
	}
}

func TestAddDaysRollover(t *testing.T) {
	cases := []struct {
		from Date
		n    int
		want Date
	}{
		{Date{1, 1, 3025}, 30, Date{31, 1, 3025}},
		{Date{31, 1, 3025}, 1, Date{1, 2, 3025}},
		{Date{28, 2, 3025}, 1, Date{1, 3, 3025}},
		{Date{28, 2, 3024}, 1, Date{29, 2, 3024}},
		{Date{31, 12, 3025}, 1, Date{1, 1, 3026}},
		{Date{1, 1, 3025}, 365, Date{1, 1, 3026}},
		{Date{1, 3, 3024}, -1, Date{29, 2, 3024}},
		{Date{1, 1, 3026}, -1, Date{31, 12, 3025}},
	}
	for _, tc := range cases {
		if got := tc.from.AddDays(tc.n); got != tc.want {
			t.Errorf("%v.AddDays(%d) = %v, want %v", tc.from, tc.n, got, tc.want)
		}
	}
}

func TestOrdinalMatchesAddDays(t *testing.T) {
	start := Date{15, 6, 3024}
	for _, n := range []int{0, 1, 17, 200, 731, 1500} {
		end := start.AddDays(n)
		if got := start.DaysUntil(end); got != n {
			t.Errorf("DaysUntil after AddDays(%d) = %d", n, got)
		}
		if !end.Valid() {
			t.Errorf("AddDays(%d) produced invalid %v", n, end)
		}
	}
}

func TestDateValid(t *testing.T) {
	if (Date{29, 2, 3025}).Valid() {
		t.Error("29 Feb 3025 reported valid")
	}
	if !(Date{29, 2, 3024}).Valid() {
		t.Error("29 Feb 3024 reported invalid")
	}
	if (Date{1, 13, 3025}).Valid() || (Date{0, 1, 3025}).Valid() {
		t.Error("out of range date reported valid")
	}
}
