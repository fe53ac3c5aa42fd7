package paywall

import "time"

// Config controls how paywall screens are served.
type Config struct {
	BasePath       string        `env:"PAYWALL_BASE_PATH" envDefault:"/paywall"`
	MaxScreens     int           `env:"PAYWALL_MAX_SCREENS" envDefault:"10000"`
	ScreenIdleTTL  time.Duration `env:"PAYWALL_SCREEN_IDLE_TTL" envDefault:"30m"`
	NoticeLimit    int           `env:"PAYWALL_NOTICE_LIMIT" envDefault:"8"`
	DatastarScript string        `env:"PAYWALL_DATASTAR_SCRIPT" envDefault:"https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.6/bundles/datastar.js"`
	TermsURL       string        `env:"PAYWALL_TERMS_URL" envDefault:"/terms"`
	PrivacyURL     string        `env:"PAYWALL_PRIVACY_URL" envDefault:"/privacy"`
	// UserHeader names a header set by a trusted auth proxy. When set, the
	// app user is read from it and the app_user_id query parameter is ignored.
	UserHeader string `env:"PAYWALL_USER_HEADER"`
}
