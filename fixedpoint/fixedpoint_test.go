package fixedpoint

import (
	"math/big"
	"testing"
)

func mustParse(t *testing.T, s string) *big.Int {
	t.Helper()
	x, err := ParseStable(s)
	if err != nil {
		t.Fatalf("ParseStable(%q): %v", s, err)
	}
	return x
}

func TestRescale_TruncatesTowardZero(t *testing.T) {
	cases := []struct {
		in       int64
		from, to uint8
		want     int64
	}{
		{199, 2, 0, 1},
		{-199, 2, 0, -1},
		{100, 2, 0, 1},
		{99, 2, 0, 0},
		{-99, 2, 0, 0},
		{1, 0, 2, 100},
		{-3, 0, 3, -3000},
		{42, 4, 4, 42},
	}
	for _, c := range cases {
		got := Rescale(big.NewInt(c.in), c.from, c.to)
		if got.Int64() != c.want {
			t.Fatalf("Rescale(%d, %d, %d) = %s, want %d", c.in, c.from, c.to, got, c.want)
		}
	}
}

func TestRescale_DoesNotAliasInput(t *testing.T) {
	in := big.NewInt(12345)
	out := Rescale(in, 2, 2)
	out.SetInt64(0)
	if in.Int64() != 12345 {
		t.Fatalf("input mutated through result")
	}
	if Rescale(nil, 0, 18).Sign() != 0 {
		t.Fatalf("nil input should rescale to zero")
	}
}

func TestStableValue_KnownQuotes(t *testing.T) {
	// Price 2000 at 8 decimals: 1 base unit of 1e18 is worth 2000 stable units.
	price := big.NewInt(2000_0000_0000)

	got := StableValue(mustParse(t, "1"), price, 8)
	if got.Cmp(mustParse(t, "2000")) != 0 {
		t.Fatalf("StableValue(1) = %s, want 2000", FormatStable(got))
	}

	// 0.0025 base units is worth exactly 5 stable units.
	got = StableValue(mustParse(t, "0.0025"), price, 8)
	if got.Cmp(mustParse(t, "5")) != 0 {
		t.Fatalf("StableValue(0.0025) = %s, want 5", FormatStable(got))
	}

	// One unit under 0.0025 quotes strictly below 5.
	under := new(big.Int).Sub(mustParse(t, "0.0025"), big.NewInt(1))
	got = StableValue(under, price, 8)
	if got.Cmp(mustParse(t, "5")) >= 0 {
		t.Fatalf("StableValue(0.0025 - 1) = %s, want < 5", FormatStable(got))
	}

	// Truncation: a single base unit quotes to the rescaled price / 1e18.
	got = StableValue(big.NewInt(1), price, 8)
	if got.Cmp(big.NewInt(2000)) != 0 {
		t.Fatalf("StableValue(1 unit) = %s, want 2000", got)
	}
}

func TestStableValue_ZeroAndNil(t *testing.T) {
	price := big.NewInt(2000_0000_0000)
	if StableValue(big.NewInt(0), price, 8).Sign() != 0 {
		t.Fatalf("zero amount should quote to zero")
	}
	if StableValue(mustParse(t, "1"), big.NewInt(0), 8).Sign() != 0 {
		t.Fatalf("zero price should quote to zero")
	}
	if StableValue(nil, price, 8).Sign() != 0 {
		t.Fatalf("nil amount should quote to zero")
	}
	if StableValue(mustParse(t, "1"), nil, 8).Sign() != 0 {
		t.Fatalf("nil price should quote to zero")
	}
}

func TestStableValue_ZeroPriceDecimals(t *testing.T) {
	// Price 3 at 0 decimals: 2 base units are worth 6 stable units.
	got := StableValue(mustParse(t, "2"), big.NewInt(3), 0)
	if got.Cmp(mustParse(t, "6")) != 0 {
		t.Fatalf("StableValue = %s, want 6", FormatStable(got))
	}
}

func TestParseStable_Values(t *testing.T) {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	got := mustParse(t, "5")
	want := new(big.Int).Mul(big.NewInt(5), unit)
	if got.Cmp(want) != 0 {
		t.Fatalf("ParseStable(5) = %s, want %s", got, want)
	}

	got = mustParse(t, "0.000000000000000001")
	if got.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("smallest unit = %s, want 1", got)
	}

	got = mustParse(t, "-0.25")
	want = new(big.Int).Quo(unit, big.NewInt(-4))
	if got.Cmp(want) != 0 {
		t.Fatalf("ParseStable(-0.25) = %s, want %s", got, want)
	}
}

func TestParseStable_Rejects(t *testing.T) {
	bad := []string{
		"",
		".",
		"-",
		"1.",
		"1.2.3",
		"abc",
		"1,5",
		"0.0000000000000000001",
		"1e18",
		" 1",
	}
	for _, s := range bad {
		if _, err := ParseStable(s); err == nil {
			t.Fatalf("ParseStable(%q): expected error", s)
		}
	}
}

func TestFormatStable_RoundTrip(t *testing.T) {
	cases := []string{"0", "5", "0.0025", "-0.25", "2000.5", "123456789.000000000000000001"}
	for _, s := range cases {
		x := mustParse(t, s)
		if got := FormatStable(x); got != s {
			t.Fatalf("FormatStable(ParseStable(%q)) = %q", s, got)
		}
	}
	if FormatStable(nil) != "0" {
		t.Fatalf("FormatStable(nil) should be 0")
	}
}
