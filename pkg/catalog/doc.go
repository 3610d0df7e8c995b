// Package catalog provides a small product catalog service: a permission-gated,
// validated CRUD layer over a pluggable Repository, with best-effort
// synchronization of every write into a search Indexer.
//
// Basic usage:
//
//	repo := memory.New()
//	svc, err := catalog.New(
//		catalog.WithRepository(repo),
//		catalog.WithIndexer(search.NewSynchronizer(searchmemory.New(), "catalog_Product")),
//		catalog.WithGate(catalog.NewStaffGate(catalog.ReadPolicyPublic)),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	staff := &catalog.Caller{UserID: 1, Username: "admin", Staff: true}
//	product, err := svc.CreateProduct(ctx, staff, catalog.CreateProductRequest{
//		Fields: catalog.ProductFields{
//			Title: catalog.StringPtr("IPhone17 pro"),
//			Price: catalog.StringPtr("123.11"),
//		},
//	})
//
// Products whose content is empty after a create or update carry their title
// as content. Index write failures are logged and counted but never returned
// to the caller; the repository is authoritative.
package catalog
