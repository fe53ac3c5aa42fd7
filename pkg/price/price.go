// Package price turns localized display prices ("$29.99") into the plain
// amount and ISO currency code the billing backend expects on receipts.
package price

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	ErrInvalidCurrency = errors.New("invalid ISO 4217 currency code")
	ErrInvalidPrice    = errors.New("display price has no numeric amount")
)

// Parser strips currency decoration for a single configured currency.
type Parser struct {
	unit    currency.Unit
	symbols []string
}

// NewParser builds a Parser for the ISO code, resolving its symbols for tag.
func NewParser(code string, tag language.Tag) (*Parser, error) {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return nil, errors.Join(ErrInvalidCurrency, err)
	}

	p := message.NewPrinter(tag)
	seen := make(map[string]struct{})
	var symbols []string
	for _, s := range []string{
		p.Sprint(currency.Symbol(unit)),
		p.Sprint(currency.NarrowSymbol(unit)),
		unit.String(),
	} {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		symbols = append(symbols, s)
	}

	return &Parser{unit: unit, symbols: symbols}, nil
}

// MustNewParser is like NewParser but panics on an invalid code.
func MustNewParser(code string, tag language.Tag) *Parser {
	p, err := NewParser(code, tag)
	if err != nil {
		panic(fmt.Sprintf("price: %v", err))
	}
	return p
}

// Currency returns the ISO 4217 code, e.g. "USD".
func (p *Parser) Currency() string {
	return p.unit.String()
}

// Symbols returns the currency markers Amount strips.
func (p *Parser) Symbols() []string {
	return append([]string(nil), p.symbols...)
}

// Amount returns the numeric part of a display price.
//
//	"$29.99"    -> "29.99"
//	"US$ 4.99"  -> "4.99"
//	"99.99 USD" -> "99.99"
func (p *Parser) Amount(display string) (string, error) {
	s := strings.TrimSpace(display)
	for _, sym := range p.symbols {
		s = strings.TrimSpace(strings.TrimPrefix(s, sym))
		s = strings.TrimSpace(strings.TrimSuffix(s, sym))
	}

	// Anything left that is not part of a number is decoration we don't know about.
	s = strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r)
	})
	if s == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidPrice, display)
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' && r != ',' {
			return "", fmt.Errorf("%w: %q", ErrInvalidPrice, display)
		}
	}
	return s, nil
}
