package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// MaxTitleLength is the longest title a product may carry, in characters.
	MaxTitleLength = 120

	// DiscountLabel is reported for every product alongside its sale price.
	DiscountLabel = "10%"

	// PriceScale is the number of fractional digits kept for prices.
	PriceScale = 2
)

var (
	// DefaultPrice is applied when a product is created without a price.
	DefaultPrice = decimal.RequireFromString("29.99")

	saleFactor = decimal.RequireFromString("0.8")
)

// Product represents a catalog item
type Product struct {
	ID        int64           `json:"id"`
	OwnerID   *int64          `json:"owner_id,omitempty"`
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	Price     decimal.Decimal `json:"price"`
	Public    bool            `json:"public"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SalePrice returns the discounted price rounded to two decimals.
func (p *Product) SalePrice() decimal.Decimal {
	return p.Price.Mul(saleFactor).Round(PriceScale)
}

// SalePriceString formats SalePrice with exactly two decimals.
func (p *Product) SalePriceString() string {
	return p.SalePrice().StringFixed(PriceScale)
}

// Discount returns the discount label shown next to the sale price.
func (p *Product) Discount() string {
	return DiscountLabel
}

// HasOwner reports whether the product is attached to a user.
func (p *Product) HasOwner() bool {
	return p.OwnerID != nil
}

// Clone returns a deep copy of the product.
func (p *Product) Clone() *Product {
	c := *p
	if p.OwnerID != nil {
		owner := *p.OwnerID
		c.OwnerID = &owner
	}
	return &c
}

// ProductPage is one page of a product listing
type ProductPage struct {
	Products []*Product
	Total    int
	Limit    int
	Offset   int
}

// HasNext reports whether more products follow this page.
func (p *ProductPage) HasNext() bool {
	return p.Limit > 0 && p.Offset+len(p.Products) < p.Total
}

// HasPrevious reports whether products precede this page.
func (p *ProductPage) HasPrevious() bool {
	return p.Offset > 0
}

// Caller identifies who is performing an operation. A nil *Caller is anonymous.
type Caller struct {
	UserID   int64
	Username string
	Staff    bool
}

// IsAnonymous reports whether the caller carries no identity.
func (c *Caller) IsAnonymous() bool {
	return c == nil
}

// SearchHit is one raw ranked result returned by the search index
type SearchHit struct {
	ObjectID string                 `json:"objectID"`
	Score    float64                `json:"score"`
	Fields   map[string]interface{} `json:"fields"`
}

// SearchResult holds the raw ranked results of a search query
type SearchResult struct {
	Index string      `json:"index"`
	Query string      `json:"query"`
	Total int         `json:"nbHits"`
	Hits  []SearchHit `json:"hits"`
}
