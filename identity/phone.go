package identity

import "strings"

// Canonicalize reduces a channel address to E.164-ish form: digits only,
// leading +, channel prefixes such as "whatsapp:" removed.
func Canonicalize(address string) string {
	s := strings.TrimSpace(address)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}

	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	digits := b.String()
	if len(digits) == 0 {
		return ""
	}

	return "+" + digits
}

// Variants returns every stored encoding that may refer to the canonical
// number. Mexican numbers historically carried an extra mobile-prefix "1"
// after the country code, and records exist in both encodings.
func Variants(canonical string) []string {
	variants := []string{canonical}

	switch {
	case strings.HasPrefix(canonical, "+521"):
		variants = append(variants, "+52"+canonical[len("+521"):])
	case strings.HasPrefix(canonical, "+52"):
		variants = append(variants, "+521"+canonical[len("+52"):])
	}

	return variants
}
