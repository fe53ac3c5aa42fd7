package paywall

import (
	"fmt"

	"golang.org/x/text/language"

	"github.com/dmitrymomot/paywall/pkg/price"
)

// Config controls catalog source and entitlement evaluation.
type Config struct {
	EntitlementID   string `env:"PAYWALL_ENTITLEMENT_ID" envDefault:"premium"`
	Currency        string `env:"PAYWALL_CURRENCY" envDefault:"USD"`
	Locale          string `env:"PAYWALL_LOCALE" envDefault:"en"`
	DefaultOffering string `env:"PAYWALL_DEFAULT_OFFERING"` // overrides the catalog default when set
	CatalogFile     string `env:"PAYWALL_CATALOG_FILE"`     // YAML; built-in catalog when empty
}

// Catalog resolves the startup catalog from the configured file or the built-in one.
func (cfg Config) Catalog() (Catalog, error) {
	catalog := DefaultCatalog()
	if cfg.CatalogFile != "" {
		loaded, err := LoadCatalogFile(cfg.CatalogFile)
		if err != nil {
			return Catalog{}, err
		}
		catalog = loaded
	}
	if cfg.DefaultOffering != "" {
		return catalog.WithDefault(cfg.DefaultOffering)
	}
	return catalog, nil
}

// PriceParser builds the receipt price parser for the configured currency and locale.
func (cfg Config) PriceParser() (*price.Parser, error) {
	tag, err := language.Parse(cfg.Locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", cfg.Locale, err)
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "USD"
	}
	return price.NewParser(currency, tag)
}
