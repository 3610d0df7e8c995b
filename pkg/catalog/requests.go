package catalog

// ProductFields carries proposed values for a product. Nil fields were not supplied.
type ProductFields struct {
	Title   *string
	Content *string
	Price   *string
	Public  *string
}

// CreateProductRequest contains parameters for creating a product
type CreateProductRequest struct {
	Fields ProductFields
}

// UpdateProductRequest contains parameters for updating a product.
// A full update requires a title; a partial update changes only supplied fields.
type UpdateProductRequest struct {
	ID      int64
	Fields  ProductFields
	Partial bool
}

// ListProductsRequest contains pagination parameters for listing products
type ListProductsRequest struct {
	Limit  int
	Offset int
}

// SearchRequest contains parameters for querying the search index
type SearchRequest struct {
	Query     string
	IndexName string
	Params    map[string]string
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
