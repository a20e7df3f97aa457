package analytics

import (
	"strings"

	"github.com/mssola/useragent"
	"github.com/zfogg/blog/backend/internal/models"
)

// DeviceFromUserAgent classifies a User-Agent header. Returns nil when the
// header is empty.
func DeviceFromUserAgent(ua string) *models.DeviceType {
	if ua == "" {
		return nil
	}
	parsed := useragent.New(ua)

	var d models.DeviceType
	switch {
	case isTablet(parsed):
		d = models.DeviceTablet
	case parsed.Mobile():
		d = models.DeviceMobile
	default:
		d = models.DeviceDesktop
	}
	return &d
}

// useragent reports every Android WebKit browser as mobile, so Android
// tablets are told apart by the missing "Mobile" token.
func isTablet(ua *useragent.UserAgent) bool {
	if ua.Platform() == "iPad" {
		return true
	}
	raw := strings.ToLower(ua.UA())
	if strings.Contains(raw, "tablet") {
		return true
	}
	return strings.HasPrefix(ua.OS(), "Android") && !strings.Contains(raw, "mobile")
}
