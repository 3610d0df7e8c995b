package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/tendant/simple-product/pkg/catalog"
)

// Price marshals as a JSON number with exactly two decimals
type Price decimal.Decimal

func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(p).StringFixed(catalog.PriceScale)), nil
}

func (p *Price) UnmarshalJSON(b []byte) error {
	d, err := decimal.NewFromString(string(trimQuotes(b)))
	if err != nil {
		return err
	}
	*p = Price(d)
	return nil
}

func trimQuotes(b []byte) []byte {
	if len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"' {
		return b[1 : len(b)-1]
	}
	return b
}

// ProductResponse is the wire representation of a product
type ProductResponse struct {
	URL        string `json:"url"`
	EditURL    string `json:"edit_url"`
	PK         int64  `json:"pk"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	Price      Price  `json:"price"`
	SalePrice  string `json:"sale_price"`
	MyDiscount string `json:"my_discount"`
}

// PageResponse is a limit/offset page of products
type PageResponse struct {
	Count    int               `json:"count"`
	Next     *string           `json:"next"`
	Previous *string           `json:"previous"`
	Results  []ProductResponse `json:"results"`
}

// baseURL returns scheme://host for building hyperlinks.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

func productURL(r *http.Request, prefix string, id int64) string {
	return fmt.Sprintf("%s%s/%d/", baseURL(r), prefix, id)
}

func (h *ProductHandler) serialize(r *http.Request, p *catalog.Product) ProductResponse {
	detail := productURL(r, h.prefix, p.ID)
	return ProductResponse{
		URL:        detail,
		EditURL:    detail + "update/",
		PK:         p.ID,
		Title:      p.Title,
		Content:    p.Content,
		Price:      Price(p.Price),
		SalePrice:  p.SalePriceString(),
		MyDiscount: p.Discount(),
	}
}

func (h *ProductHandler) serializePage(r *http.Request, page *catalog.ProductPage) PageResponse {
	resp := PageResponse{
		Count:   page.Total,
		Results: make([]ProductResponse, 0, len(page.Products)),
	}
	for _, p := range page.Products {
		resp.Results = append(resp.Results, h.serialize(r, p))
	}

	if page.HasNext() {
		next := pageURL(r, page.Limit, page.Offset+page.Limit)
		resp.Next = &next
	}
	if page.HasPrevious() {
		offset := page.Offset - page.Limit
		if offset < 0 {
			offset = 0
		}
		prev := pageURL(r, page.Limit, offset)
		resp.Previous = &prev
	}
	return resp
}

// pageURL rewrites limit and offset on the current request URL. Offset zero is dropped.
func pageURL(r *http.Request, limit, offset int) string {
	u := url.URL{Path: r.URL.Path}
	q := r.URL.Query()
	q.Set("limit", strconv.Itoa(limit))
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	} else {
		q.Del("offset")
	}
	u.RawQuery = q.Encode()
	return baseURL(r) + u.String()
}

// Decimal returns the price as a decimal.
func (p Price) Decimal() decimal.Decimal {
	return decimal.Decimal(p)
}
