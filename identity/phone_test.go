package identity

import (
	"reflect"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+52 33 1234 5678", "+523312345678"},
		{"whatsapp:+5213312345678", "+5213312345678"},
		{"52-33-1234-5678", "+523312345678"},
		{"  +1 (415) 555-0101 ", "+14155550101"},
		{"", ""},
		{"whatsapp:", ""},
	}

	for _, c := range cases {
		if got := Canonicalize(c.in); got != c.want {
			t.Errorf("Canonicalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestVariantsMexicoMobilePrefix(t *testing.T) {
	got := Variants("+523312345678")
	want := []string{"+523312345678", "+5213312345678"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Variants = %v, want %v", got, want)
	}

	got = Variants("+5213312345678")
	want = []string{"+5213312345678", "+523312345678"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Variants = %v, want %v", got, want)
	}
}

func TestVariantsOtherCountriesUnchanged(t *testing.T) {
	got := Variants("+14155550101")
	if len(got) != 1 || got[0] != "+14155550101" {
		t.Errorf("Variants = %v, want just the canonical form", got)
	}
}

func TestEquivalentEncodingsShareCanonicalVariantSet(t *testing.T) {
	a := Variants(Canonicalize("whatsapp:+52 33 1234 5678"))
	b := Variants(Canonicalize("+5233 1234 5678"))
	if !reflect.DeepEqual(a, b) {
		t.Errorf("equivalent encodings diverged: %v vs %v", a, b)
	}
}
