package paywall

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Well-known offering identifiers of the default catalog.
const (
	OfferingMonthly  = "monthly"
	OfferingAnnual   = "annual"
	OfferingLifetime = "lifetime"
)

// Offering is a purchasable tier with display metadata. Identity key: ID.
type Offering struct {
	ID      string `yaml:"id" json:"id"`
	Title   string `yaml:"title" json:"title"`
	Price   string `yaml:"price" json:"price"`
	Period  string `yaml:"period" json:"period"`
	Badge   string `yaml:"badge,omitempty" json:"badge,omitempty"`
	Popular bool   `yaml:"popular,omitempty" json:"popular,omitempty"`
}

// Catalog is an immutable, ordered set of offerings with a default selection.
// Price refreshes produce a new Catalog; they never add or remove offerings.
type Catalog struct {
	offerings []Offering
	defaultID string
}

// NewCatalog validates offerings and returns a Catalog.
// An empty defaultID selects the first offering.
func NewCatalog(defaultID string, offerings ...Offering) (Catalog, error) {
	if len(offerings) == 0 {
		return Catalog{}, ErrEmptyCatalog
	}
	seen := make(map[string]struct{}, len(offerings))
	for _, o := range offerings {
		if strings.TrimSpace(o.ID) == "" || o.Title == "" || o.Price == "" {
			return Catalog{}, fmt.Errorf("%w: %q", ErrInvalidOffering, o.ID)
		}
		if _, ok := seen[o.ID]; ok {
			return Catalog{}, fmt.Errorf("%w: %q", ErrDuplicateOffering, o.ID)
		}
		seen[o.ID] = struct{}{}
	}
	if defaultID == "" {
		defaultID = offerings[0].ID
	}
	if _, ok := seen[defaultID]; !ok {
		return Catalog{}, fmt.Errorf("%w: %q", ErrInvalidDefault, defaultID)
	}
	return Catalog{offerings: slices.Clone(offerings), defaultID: defaultID}, nil
}

// DefaultCatalog is the built-in monthly/annual/lifetime lineup with static fallback prices.
func DefaultCatalog() Catalog {
	return Catalog{
		defaultID: OfferingAnnual,
		offerings: []Offering{
			{ID: OfferingMonthly, Title: "Monthly", Price: "$4.99", Period: "/month"},
			{ID: OfferingAnnual, Title: "Annual", Price: "$29.99", Period: "/year", Badge: "Best Value", Popular: true},
			{ID: OfferingLifetime, Title: "Lifetime", Price: "$99.99", Period: "one-time"},
		},
	}
}

// Offerings returns a copy of the offerings in display order.
func (c Catalog) Offerings() []Offering {
	return slices.Clone(c.offerings)
}

// Len returns the number of offerings.
func (c Catalog) Len() int {
	return len(c.offerings)
}

// DefaultID is the identifier selected when a screen mounts.
func (c Catalog) DefaultID() string {
	return c.defaultID
}

func (c Catalog) Get(id string) (Offering, bool) {
	i := c.index(id)
	if i < 0 {
		return Offering{}, false
	}
	return c.offerings[i], true
}

func (c Catalog) Has(id string) bool {
	return c.index(id) >= 0
}

// WithPrices returns a copy where every offering whose ID has a non-empty entry
// in prices takes that display price. Unmatched offerings keep their price.
func (c Catalog) WithPrices(prices map[string]string) Catalog {
	next := Catalog{offerings: slices.Clone(c.offerings), defaultID: c.defaultID}
	for i, o := range next.offerings {
		if p := strings.TrimSpace(prices[o.ID]); p != "" {
			next.offerings[i].Price = p
		}
	}
	return next
}

// WithDefault returns a copy with a different default selection.
func (c Catalog) WithDefault(id string) (Catalog, error) {
	if !c.Has(id) {
		return c, fmt.Errorf("%w: %q", ErrInvalidDefault, id)
	}
	next := c
	next.offerings = slices.Clone(c.offerings)
	next.defaultID = id
	return next, nil
}

func (c Catalog) index(id string) int {
	return slices.IndexFunc(c.offerings, func(o Offering) bool { return o.ID == id })
}

// catalogDocument is the on-disk YAML layout.
type catalogDocument struct {
	Default   string     `yaml:"default,omitempty"`
	Offerings []Offering `yaml:"offerings"`
}

// DecodeCatalog reads a YAML catalog:
//
//	default: annual
//	offerings:
//	  - id: monthly
//	    title: Monthly
//	    price: $4.99
//	    period: /month
func DecodeCatalog(r io.Reader) (Catalog, error) {
	var doc catalogDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Catalog{}, ErrEmptyCatalog
		}
		return Catalog{}, errors.Join(ErrLoadCatalog, err)
	}
	return NewCatalog(doc.Default, doc.Offerings...)
}

// LoadCatalogFile reads a YAML catalog from path.
func LoadCatalogFile(path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return Catalog{}, errors.Join(ErrLoadCatalog, err)
	}
	defer func() { _ = f.Close() }()
	return DecodeCatalog(f)
}

// EncodeYAML writes the catalog in the same layout DecodeCatalog reads.
func (c Catalog) EncodeYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(catalogDocument{Default: c.defaultID, Offerings: c.offerings}); err != nil {
		return err
	}
	return enc.Close()
}
