// Package device classifies visiting clients into coarse device classes
// based on the raw User-Agent string.
package device

import "strings"

// Class is a coarse categorization of a visiting client.
type Class string

const (
	Desktop Class = "desktop"
	Mobile  Class = "mobile"
	Tablet  Class = "tablet"
	Unknown Class = "unknown"
)

var (
	mobileKeywords  = []string{"mobile", "android", "iphone", "ipod", "blackberry", "windows phone"}
	tabletKeywords  = []string{"tablet", "ipad", "playbook", "silk"}
	desktopKeywords = []string{"desktop", "windows", "macintosh", "linux", "x11", "cros"}
)

// Classify derives the device class from a free-text User-Agent string.
// Matching is ordered: mobile patterns win over tablet patterns, which win
// over desktop patterns. A UA mentioning both "Mobile" and "Tablet" is
// therefore classified as mobile.
func Classify(userAgent string) Class {
	ua := strings.ToLower(userAgent)

	for _, kw := range mobileKeywords {
		if strings.Contains(ua, kw) {
			return Mobile
		}
	}

	for _, kw := range tabletKeywords {
		if strings.Contains(ua, kw) {
			return Tablet
		}
	}

	for _, kw := range desktopKeywords {
		if strings.Contains(ua, kw) {
			return Desktop
		}
	}

	return Unknown
}
