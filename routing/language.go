package routing

import "unicode"

// DetectLanguage classifies message text by script: Latin letters mean
// Uzbek, Cyrillic letters mean Russian. Mixed text follows the majority
// script. Text without letters of either script is unsupported and goes
// to manual review.
func DetectLanguage(text string) (lang string, ok bool) {
	var latin, cyrillic int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Latin, r):
			latin++
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
		}
	}

	switch {
	case cyrillic > latin:
		return "ru", true
	case latin > 0:
		return "uz", true
	default:
		return "", false
	}
}
