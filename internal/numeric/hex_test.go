package numeric

import (
	"math/big"
	"testing"
)

func TestFeeHexRoundTrip(t *testing.T) {
	cases := []*big.Int{nil, big.NewInt(0), big.NewInt(1000)}
	for _, fee := range cases {
		hex := FeeToHex(fee)
		got, err := FeeFromHex(hex)
		if err != nil {
			t.Fatalf("FeeFromHex(%q): %v", hex, err)
		}
		if (fee == nil) != (got == nil) {
			t.Fatalf("fee=%v hex=%q got=%v", fee, hex, got)
		}
		if fee != nil && fee.Cmp(got) != 0 {
			t.Fatalf("fee=%v hex=%q got=%v", fee, hex, got)
		}
	}
}

func TestFeeToHexValue(t *testing.T) {
	if got := FeeToHex(big.NewInt(1000)); got != "0x3e8" {
		t.Fatalf("got %q, want 0x3e8", got)
	}
}

func TestParseUint64(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want uint64
		ok   bool
	}{
		{"", 0, true},
		{"10", 10, true},
		{"0x10", 16, true},
		{"not-a-number", 0, false},
	} {
		got, ok := ParseUint64(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseUint64(%q) = %d, %v; want %d, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
