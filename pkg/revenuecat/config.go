package revenuecat

import "time"

// Config holds the billing backend credentials and transport settings.
// The API key is injected once at construction and reused for every call.
type Config struct {
	APIKey     string        `env:"REVENUECAT_API_KEY,required"`
	BaseURL    string        `env:"REVENUECAT_BASE_URL" envDefault:"https://api.revenuecat.com/v1"`
	Timeout    time.Duration `env:"REVENUECAT_TIMEOUT" envDefault:"10s"`
	FetchToken string        `env:"REVENUECAT_FETCH_TOKEN"` // receipt/payment token sent with purchases
	Platform   string        `env:"REVENUECAT_PLATFORM" envDefault:"web"`
}
