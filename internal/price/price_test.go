package price

import (
	"errors"
	"math"
	"testing"
)

func TestParse(t *testing.T) {
	cases := map[string]int64{
		"1g23s45c": 12345,
		"2g":       20000,
		"50s":      5000,
		"100c":     100,
		"1g5c":     10005,
		" 3G10S ":  31000,
		"0c":       0,
		"150s":     15000,
	}
	for in, want := range cases {
		got, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q) unexpected error: %v", in, err)
		}
		if got != want {
			t.Fatalf("Parse(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "abc", "1s2g", "12", "1g 2s", "-5c", "1.5g", "g", "1gg",
		"1000000000000000g", "2000000000000000g", "922337203685478g", "9223372036854775808c",
		"922337203685477g5808c", "922337203685477g58s08c",
	} {
		if _, err := Parse(in); !errors.Is(err, ErrInvalidPriceFormat) {
			t.Fatalf("Parse(%q) expected ErrInvalidPriceFormat, got %v", in, err)
		}
	}
}

func TestParseLargestPrice(t *testing.T) {
	got, err := Parse("922337203685477g58s07c")
	if err != nil {
		t.Fatalf("Parse unexpected error: %v", err)
	}
	if got != math.MaxInt64 {
		t.Fatalf("Parse = %d, want %d", got, int64(math.MaxInt64))
	}
}

func TestFormat(t *testing.T) {
	cases := map[int64]string{
		12345: "1g23s45c",
		0:     "0g00s00c",
		5:     "0g00s05c",
		20000: "2g00s00c",
		10105: "1g01s05c",
	}
	for in, want := range cases {
		if got := Format(in); got != want {
			t.Fatalf("Format(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	cases := map[string]string{
		"1g23s45c": "1g23s45c",
		"50s":      "0g50s00c",
		"2g5c":     "2g00s05c",
		"150s":     "1g50s00c",
	}
	for in, want := range cases {
		v, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", in, err)
		}
		if got := Format(v); got != want {
			t.Fatalf("Format(Parse(%q)) = %q, want %q", in, got, want)
		}
	}
}

func TestPercentChange(t *testing.T) {
	if got := PercentChange(100, 0); got != "N/A" {
		t.Fatalf("expected N/A, got %s", got)
	}
	if got := PercentChange(150, 100); got != "+50.00%" {
		t.Fatalf("expected +50.00%%, got %s", got)
	}
	if got := PercentChange(90, 120); got != "-25.00%" {
		t.Fatalf("expected -25.00%%, got %s", got)
	}
	if got := PercentChange(100, 100); got != "+0.00%" {
		t.Fatalf("expected +0.00%%, got %s", got)
	}
}
