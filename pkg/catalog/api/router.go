package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-product/pkg/catalog"
	"github.com/tendant/simple-product/pkg/catalog/auth"
)

const productsPrefix = "/api/products"

// Mount registers the product, search and token routes on r. Every route sees
// the caller resolved from an optional bearer token.
func Mount(r chi.Router, service catalog.Service, users *auth.Directory, tokens *auth.Tokens) {
	products := NewProductHandler(service, productsPrefix)
	search := NewSearchHandler(service)
	login := NewLoginHandler(users, tokens)

	r.Group(func(r chi.Router) {
		r.Use(tokens.Middleware)
		r.Mount(productsPrefix, products.Routes())
		r.Get("/api/search/", search.Search)
	})
	r.HandleFunc("/api/auth/", login.Dispatch)
}
