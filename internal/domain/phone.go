package domain

import (
	"net/url"
	"regexp"
	"strings"
)

// French numbering plan patterns, applied to the cleaned form.
var (
	phoneNoise = regexp.MustCompile(`[\s.\-()]`)

	nationalMobile      = regexp.MustCompile(`^0[67]\d{8}$`)
	internationalMobile = regexp.MustCompile(`^\+?33[67]\d{8}$`)
	doubleZeroMobile    = regexp.MustCompile(`^0033[67]\d{8}$`)

	geographicFixed = regexp.MustCompile(`^0[1-5]\d{8}$`)
	specialFixed    = regexp.MustCompile(`^0[89]\d{8}$`)

	nationalAny = regexp.MustCompile(`^0\d{9}$`)
)

const (
	internationalPrefix = "+33"
	doubleZeroPrefix    = "0033"
	channelDeepLinkBase = "https://wa.me/"
)

// CleanPhoneNumber strips whitespace, dots, hyphens and parentheses.
func CleanPhoneNumber(raw string) string {
	return phoneNoise.ReplaceAllString(raw, "")
}

// IsMobile reports whether raw is a French mobile number (06/07) in national,
// +33/33 or 0033 form.
func IsMobile(raw string) bool {
	cleaned := CleanPhoneNumber(raw)
	return nationalMobile.MatchString(cleaned) ||
		internationalMobile.MatchString(cleaned) ||
		doubleZeroMobile.MatchString(cleaned)
}

// IsFixedLine reports whether raw is a national fixed or special number
// (01-05, 08, 09).
func IsFixedLine(raw string) bool {
	cleaned := CleanPhoneNumber(raw)
	return geographicFixed.MatchString(cleaned) || specialFixed.MatchString(cleaned)
}

// IsDispatchable is the filter applied to missed calls before dispatch.
func IsDispatchable(raw string) bool {
	return IsMobile(raw) && !IsFixedLine(raw)
}

// ToInternational converts a French number to +33 form. Unrecognised input is
// returned unchanged.
func ToInternational(raw string) string {
	cleaned := CleanPhoneNumber(raw)

	switch {
	case strings.HasPrefix(cleaned, internationalPrefix):
		return cleaned
	case strings.HasPrefix(cleaned, doubleZeroPrefix):
		return "+" + cleaned[2:]
	case strings.HasPrefix(cleaned, "0") && len(cleaned) == 10:
		return internationalPrefix + cleaned[1:]
	}

	return raw
}

// ToChannelID returns the international form without the leading '+', as
// expected by WhatsApp.
func ToChannelID(raw string) string {
	return strings.TrimPrefix(ToInternational(raw), "+")
}

// FormatForDisplay groups national digits in pairs ("06 12 34 56 78").
func FormatForDisplay(raw string) string {
	cleaned := CleanPhoneNumber(raw)

	if nationalAny.MatchString(cleaned) {
		return pairDigits(cleaned)
	}
	if strings.HasPrefix(cleaned, internationalPrefix) && len(cleaned) == 12 {
		return pairDigits("0" + cleaned[3:])
	}

	return raw
}

// WhatsAppDeepLink builds the wa.me link pre-filled with text.
func WhatsAppDeepLink(raw string, text string) string {
	encoded := strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	return channelDeepLinkBase + ToChannelID(raw) + "?text=" + encoded
}

func pairDigits(s string) string {
	parts := make([]string, 0, (len(s)+1)/2)
	for i := 0; i < len(s); i += 2 {
		end := min(i+2, len(s))
		parts = append(parts, s[i:end])
	}
	return strings.Join(parts, " ")
}
