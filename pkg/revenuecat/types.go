package revenuecat

import (
	"bytes"
	"encoding/json"
	"time"
)

// OfferingsResponse matches GET /subscribers/{app_user_id}/offerings.
// The backend has shipped "offerings" both as a list and as an object keyed
// by identifier; both decode into Offerings.
type OfferingsResponse struct {
	CurrentOfferingID string
	Offerings         map[string]Offering
}

func (r *OfferingsResponse) UnmarshalJSON(data []byte) error {
	var raw struct {
		CurrentOfferingID string          `json:"current_offering_id"`
		Offerings         json.RawMessage `json:"offerings"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.CurrentOfferingID = raw.CurrentOfferingID
	r.Offerings = make(map[string]Offering)

	body := bytes.TrimSpace(raw.Offerings)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil
	}
	if body[0] == '[' {
		var list []Offering
		if err := json.Unmarshal(body, &list); err != nil {
			return err
		}
		for _, o := range list {
			r.Offerings[o.Identifier] = o
		}
		return nil
	}

	var byID map[string]Offering
	if err := json.Unmarshal(body, &byID); err != nil {
		return err
	}
	for id, o := range byID {
		if o.Identifier == "" {
			o.Identifier = id
		}
		r.Offerings[id] = o
	}
	return nil
}

// Offering is a remote group of packages.
type Offering struct {
	Identifier  string    `json:"identifier"`
	Description string    `json:"description,omitempty"`
	Packages    []Package `json:"packages"`
}

// Package ties a package identifier to a store product.
type Package struct {
	Identifier                string  `json:"identifier"`
	PlatformProductIdentifier string  `json:"platform_product_identifier,omitempty"`
	Product                   Product `json:"product"`
}

// Product carries the store's localized pricing.
type Product struct {
	Identifier  string  `json:"identifier,omitempty"`
	PriceString string  `json:"price_string,omitempty"`
	Price       float64 `json:"price,omitempty"`
	Currency    string  `json:"currency_code,omitempty"`
}

// Current returns the offering referenced by CurrentOfferingID.
func (r *OfferingsResponse) Current() (Offering, bool) {
	if r == nil || r.CurrentOfferingID == "" {
		return Offering{}, false
	}
	o, ok := r.Offerings[r.CurrentOfferingID]
	return o, ok
}

// Package looks up a package by identifier.
func (o Offering) Package(id string) (Package, bool) {
	for _, p := range o.Packages {
		if p.Identifier == id {
			return p, true
		}
	}
	return Package{}, false
}

// Receipt is the body of POST /receipts.
type Receipt struct {
	AppUserID  string `json:"app_user_id"`
	FetchToken string `json:"fetch_token"`
	ProductID  string `json:"product_id"`
	Price      string `json:"price,omitempty"`
	Currency   string `json:"currency,omitempty"`
}

// SubscriberResponse matches GET /subscribers/{app_user_id} and POST /receipts.
type SubscriberResponse struct {
	Subscriber Subscriber `json:"subscriber"`
}

// Subscriber holds the entitlement map for one app user.
type Subscriber struct {
	OriginalAppUserID string                 `json:"original_app_user_id,omitempty"`
	Entitlements      map[string]Entitlement `json:"entitlements"`
}

// Entitlement is a single access grant. IsActive is optional in responses;
// when it is missing, activity is derived from ExpiresDate.
type Entitlement struct {
	IsActive          *bool      `json:"is_active,omitempty"`
	ExpiresDate       *time.Time `json:"expires_date"`
	ProductIdentifier string     `json:"product_identifier,omitempty"`
	PurchaseDate      *time.Time `json:"purchase_date,omitempty"`
}

// Active reports whether the entitlement grants access at the given instant.
// A null expiration means lifetime access.
func (e Entitlement) Active(now time.Time) bool {
	if e.IsActive != nil {
		return *e.IsActive
	}
	if e.ExpiresDate == nil {
		return true
	}
	return now.Before(*e.ExpiresDate)
}

// Entitlement returns the named entitlement if the subscriber has one.
func (s Subscriber) Entitlement(id string) (Entitlement, bool) {
	e, ok := s.Entitlements[id]
	return e, ok
}
