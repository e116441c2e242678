package money

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseRejectsMalformedInput(t *testing.T) {
	for _, raw := range []string{"", "  ", "abc", "12.3.4", "1,000", "Rp500"} {
		if _, err := Parse(raw); !errors.Is(err, ErrInvalid) {
			t.Fatalf("Parse(%q): expected ErrInvalid, got %v", raw, err)
		}
	}
}

func TestParseAcceptsDecimals(t *testing.T) {
	m, err := Parse(" 50000 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !m.Equal(FromInt(50_000)) {
		t.Fatalf("expected 50000, got %s", m)
	}

	frac, err := Parse("0.01")
	if err != nil {
		t.Fatalf("parse fraction: %v", err)
	}
	if frac.String() != "0.01" {
		t.Fatalf("expected 0.01, got %s", frac)
	}
}

func TestArithmeticIsExact(t *testing.T) {
	// 0.1 + 0.2 is the classic binary float trap.
	a, _ := Parse("0.1")
	b, _ := Parse("0.2")
	want, _ := Parse("0.3")
	if got := a.Add(b); !got.Equal(want) {
		t.Fatalf("0.1 + 0.2 = %s, want 0.3", got)
	}

	balance := FromInt(100_000)
	rate, _ := Parse("0.01")
	if got := balance.MulRate(rate); !got.Equal(FromInt(1_000)) {
		t.Fatalf("100000 * 0.01 = %s, want 1000", got)
	}
}

func TestIsMultipleOf(t *testing.T) {
	unit := FromInt(50_000)
	if !FromInt(150_000).IsMultipleOf(unit) {
		t.Fatal("150000 should be a multiple of 50000")
	}
	if FromInt(75_000).IsMultipleOf(unit) {
		t.Fatal("75000 should not be a multiple of 50000")
	}
	if !FromInt(75_000).IsMultipleOf(Zero()) {
		t.Fatal("zero unit disables the check")
	}
}

func TestGroupedString(t *testing.T) {
	cases := map[string]string{
		"0":           "0",
		"500":         "500",
		"5000":        "5,000",
		"5000000":     "5,000,000",
		"-1234.56":    "-1,234.56",
		"123456789.5": "123,456,789.5",
	}
	for raw, want := range cases {
		m, err := Parse(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got := m.GroupedString(); got != want {
			t.Fatalf("GroupedString(%s) = %q, want %q", raw, got, want)
		}
	}
}

func TestJSONRoundTrip(t *testing.T) {
	m, _ := Parse("1234.56")
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"1234.56"` {
		t.Fatalf("expected quoted string, got %s", data)
	}

	var back Money
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(m) {
		t.Fatalf("round trip mismatch: %s != %s", back, m)
	}
}
