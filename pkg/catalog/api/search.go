package api

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/simple-product/pkg/catalog"
	"github.com/tendant/simple-product/pkg/catalog/auth"
)

// SearchHandler exposes the search index read path
type SearchHandler struct {
	service catalog.Service
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(service catalog.Service) *SearchHandler {
	return &SearchHandler{service: service}
}

// Search runs ?q= against ?index= and hands back the ranked hits untouched.
// Any other query parameter is forwarded to the index (tags, hitsPerPage, page).
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	params := make(map[string]string)
	for key, values := range query {
		if key == "q" || key == "index" || len(values) == 0 {
			continue
		}
		params[key] = values[0]
	}

	result, err := h.service.SearchProducts(r.Context(), auth.CallerFrom(r.Context()), catalog.SearchRequest{
		Query:     query.Get("q"),
		IndexName: query.Get("index"),
		Params:    params,
	})
	if err != nil {
		writeError(w, r, "search", err)
		return
	}

	render.JSON(w, r, result)
}
