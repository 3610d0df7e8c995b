package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-product/pkg/catalog"
	"github.com/tendant/simple-product/pkg/catalog/auth"
)

const maxBodyBytes = 1 << 20

const (
	actionUpdate = "update"
	actionDelete = "delete"
)

// ProductHandler serves the product resource
type ProductHandler struct {
	service catalog.Service
	prefix  string
}

// NewProductHandler creates a handler whose hyperlinks are rooted at prefix,
// the path the routes are mounted on (e.g. "/api/products").
func NewProductHandler(service catalog.Service, prefix string) *ProductHandler {
	return &ProductHandler{
		service: service,
		prefix:  strings.TrimSuffix(prefix, "/"),
	}
}

// Routes returns the product routes. Every route goes through Dispatch.
func (h *ProductHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.HandleFunc("/", h.Dispatch)
	r.HandleFunc("/{id}/", h.Dispatch)
	r.HandleFunc("/{id}/{action}/", h.Dispatch)

	return r
}

// Dispatch selects the operation from the method, the presence of an id and
// the trailing action segment.
func (h *ProductHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	rawID := chi.URLParam(r, "id")
	action := chi.URLParam(r, "action")

	if rawID == "" {
		switch r.Method {
		case http.MethodGet:
			h.ListProducts(w, r)
		case http.MethodPost:
			h.CreateProduct(w, r)
		default:
			methodNotAllowed(w, r, "GET, POST")
		}
		return
	}

	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		writeDetail(w, r, http.StatusNotFound, "Not found.")
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, "GET")
			return
		}
		h.GetProduct(w, r, id)
	case actionUpdate:
		switch r.Method {
		case http.MethodPut:
			h.UpdateProduct(w, r, id, false)
		case http.MethodPatch:
			h.UpdateProduct(w, r, id, true)
		default:
			methodNotAllowed(w, r, "PUT, PATCH")
		}
	case actionDelete:
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, "DELETE")
			return
		}
		h.DeleteProduct(w, r, id)
	default:
		writeDetail(w, r, http.StatusNotFound, "Not found.")
	}
}

// ListProducts returns one page of products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	req := catalog.ListProductsRequest{
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}

	page, err := h.service.ListProducts(r.Context(), auth.CallerFrom(r.Context()), req)
	if err != nil {
		writeError(w, r, "list", err)
		return
	}

	render.JSON(w, r, h.serializePage(r, page))
}

// GetProduct returns a single product
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request, id int64) {
	product, err := h.service.GetProduct(r.Context(), auth.CallerFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, "retrieve", err)
		return
	}

	render.JSON(w, r, h.serialize(r, product))
}

// CreateProduct creates a product. An unparseable body is treated as empty.
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	payload, err := readPayload(r)
	if err != nil {
		slog.Warn("Ignoring malformed request body", "method", r.Method, "error", err)
		payload = nil
	}

	product, err := h.service.CreateProduct(r.Context(), auth.CallerFrom(r.Context()), catalog.CreateProductRequest{
		Fields: fieldsFromPayload(payload),
	})
	if err != nil {
		writeError(w, r, "create", err)
		return
	}

	slog.Info("Product created", "product_id", product.ID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, h.serialize(r, product))
}

// UpdateProduct replaces (PUT) or patches (PATCH) a product
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request, id int64, partial bool) {
	caller := auth.CallerFrom(r.Context())

	payload, err := readPayload(r)
	if err != nil {
		if partial {
			if authErr := h.service.Authorize(caller, catalog.OperationUpdate); authErr != nil {
				writeError(w, r, "update", authErr)
				return
			}
			writeError(w, r, "update", fmt.Errorf("%w: JSON parse error - %v", catalog.ErrInvalidRequest, err))
			return
		}
		slog.Warn("Ignoring malformed request body", "method", r.Method, "error", err)
		payload = nil
	}

	product, err := h.service.UpdateProduct(r.Context(), caller, catalog.UpdateProductRequest{
		ID:      id,
		Fields:  fieldsFromPayload(payload),
		Partial: partial,
	})
	if err != nil {
		writeError(w, r, "update", err)
		return
	}

	render.JSON(w, r, h.serialize(r, product))
}

// DeleteProduct removes a product
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request, id int64) {
	if err := h.service.DeleteProduct(r.Context(), auth.CallerFrom(r.Context()), id); err != nil {
		writeError(w, r, "delete", err)
		return
	}

	slog.Info("Product deleted", "product_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// readPayload decodes a JSON object body. An empty body is an empty payload.
func readPayload(r *http.Request) (map[string]json.RawMessage, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]json.RawMessage{}, nil
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// fieldsFromPayload maps the JSON body onto ProductFields. Values of the wrong
// JSON type are passed through as raw text so validation reports them.
func fieldsFromPayload(payload map[string]json.RawMessage) catalog.ProductFields {
	var fields catalog.ProductFields

	if raw, ok := payload["title"]; ok {
		title := textValue(raw)
		fields.Title = &title
	}
	if raw, ok := payload["content"]; ok {
		content := textValue(raw)
		fields.Content = &content
	}
	if raw, ok := payload["price"]; ok {
		price := textValue(raw)
		fields.Price = &price
	}
	if raw, ok := payload["public"]; ok {
		public := textValue(raw)
		fields.Public = &public
	}

	return fields
}

// textValue returns a JSON string unquoted, null as "", and anything else verbatim.
func textValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return ""
	}
	return trimmed
}

func queryInt(r *http.Request, key string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 0 {
		return 0
	}
	return v
}
