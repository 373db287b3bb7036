package databind

import (
	"fmt"
	"net/netip"
	"strings"
	"unicode"
)

// MaskerFunc adapts a function to Masker.
type MaskerFunc func(string) string

// Mask calls f(value).
func (f MaskerFunc) Mask(value string) string { return f(value) }

// SSNMasker keeps the last four digits: 123-45-6789 -> ***-**-6789.
func SSNMasker() Masker {
	return MaskerFunc(func(v string) string {
		last4, ok := lastDigits(v, 4)
		if !ok {
			return hideAll(v)
		}
		return "***-**-" + last4
	})
}

// EmailMasker keeps the first character and the domain: alice@example.com -> a***@example.com.
func EmailMasker() Masker {
	return MaskerFunc(func(v string) string {
		at := strings.LastIndexByte(v, '@')
		if at < 1 {
			return hideAll(v)
		}
		return v[:1] + "***" + v[at:]
	})
}

// PhoneMasker keeps the last four digits: (555) 123-4567 -> (***) ***-4567.
func PhoneMasker() Masker {
	return MaskerFunc(func(v string) string {
		digits := digitsOf(v)
		if len(digits) < 4 {
			return hideAll(v)
		}
		last4 := digits[len(digits)-4:]
		switch {
		case len(digits) >= 10 && strings.HasPrefix(v, "("):
			return "(***) ***-" + last4
		case len(digits) >= 10:
			return "***-***-" + last4
		default:
			return "***-" + last4
		}
	})
}

// CardMasker keeps the last four digits and the grouping separator:
// 4111-1111-1111-1111 -> ****-****-****-1111.
func CardMasker() Masker {
	return MaskerFunc(func(v string) string {
		digits := digitsOf(v)
		if len(digits) < 4 {
			return hideAll(v)
		}
		last4 := digits[len(digits)-4:]
		var sep string
		switch {
		case strings.Contains(v, " "):
			sep = " "
		case strings.Contains(v, "-"):
			sep = "-"
		default:
			return strings.Repeat("*", len(digits)-4) + last4
		}
		groups := make([]string, 0, (len(digits)-1)/4+1)
		for range (len(digits) - 1) / 4 {
			groups = append(groups, "****")
		}
		return strings.Join(append(groups, last4), sep)
	})
}

// IPMasker keeps the network half of an address:
// 192.168.1.100 -> 192.168.xxx.xxx, and for IPv6 the first four groups.
func IPMasker() Masker {
	return MaskerFunc(func(v string) string {
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return hideAll(v)
		}
		if addr.Is4() {
			b := addr.As4()
			return fmt.Sprintf("%d.%d.xxx.xxx", b[0], b[1])
		}
		b := addr.As16()
		return fmt.Sprintf("%02x%02x:%02x%02x:%02x%02x:%02x%02x:xxxx:xxxx:xxxx:xxxx",
			b[0], b[1], b[2], b[3], b[4], b[5], b[6], b[7])
	})
}

// UUIDMasker keeps the first segment.
func UUIDMasker() Masker {
	return MaskerFunc(func(v string) string {
		first, _, ok := strings.Cut(v, "-")
		if !ok || strings.Count(v, "-") != 4 {
			return hideAll(v)
		}
		return first + "-****-****-****-************"
	})
}

// IBANMasker keeps the country code, check digits and last four characters.
func IBANMasker() Masker {
	return MaskerFunc(func(v string) string {
		if len(v) <= 8 {
			return hideAll(v)
		}
		return v[:4] + strings.Repeat("*", len(v)-8) + v[len(v)-4:]
	})
}

// NameMasker keeps the first letter of each word: John Smith -> J*** S****.
func NameMasker() Masker {
	return MaskerFunc(func(v string) string {
		words := strings.Fields(v)
		for i, w := range words {
			r := []rune(w)
			words[i] = string(r[0]) + strings.Repeat("*", len(r)-1)
		}
		return strings.Join(words, " ")
	})
}

func hideAll(v string) string { return strings.Repeat("*", len(v)) }

func digitsOf(v string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, v)
}

func lastDigits(v string, n int) (string, bool) {
	d := digitsOf(v)
	if len(d) < n {
		return "", false
	}
	return d[len(d)-n:], true
}

func builtinMaskers() map[MaskType]Masker {
	return map[MaskType]Masker{
		MaskSSN:   SSNMasker(),
		MaskEmail: EmailMasker(),
		MaskPhone: PhoneMasker(),
		MaskCard:  CardMasker(),
		MaskIP:    IPMasker(),
		MaskUUID:  UUIDMasker(),
		MaskIBAN:  IBANMasker(),
		MaskName:  NameMasker(),
	}
}
