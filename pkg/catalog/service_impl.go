package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	// DefaultPageSize is used when a list request does not set a limit
	DefaultPageSize = 10

	// MaxPageSize caps the number of products returned per page
	MaxPageSize = 100

	// DefaultIndexTimeout bounds each best-effort index write
	DefaultIndexTimeout = 5 * time.Second
)

// service implements the Service interface
type service struct {
	repository   Repository
	indexer      Indexer
	gate         Gate
	validator    *Validator
	logger       *slog.Logger
	pageSize     int
	indexTimeout time.Duration
	now          func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithIndexer sets the search index synchronizer
func WithIndexer(indexer Indexer) Option {
	return func(s *service) {
		s.indexer = indexer
	}
}

// WithGate sets the permission gate
func WithGate(gate Gate) Option {
	return func(s *service) {
		s.gate = gate
	}
}

// WithLogger sets the logger used for best-effort failures
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithPageSize sets the default page size for listings
func WithPageSize(size int) Option {
	return func(s *service) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// WithIndexTimeout bounds each index write
func WithIndexTimeout(d time.Duration) Option {
	return func(s *service) {
		if d > 0 {
			s.indexTimeout = d
		}
	}
}

// WithClock overrides the time source, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		indexer:      NoopIndexer{},
		gate:         NewStaffGate(ReadPolicyPublic),
		logger:       slog.Default(),
		pageSize:     DefaultPageSize,
		indexTimeout: DefaultIndexTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	s.validator = NewValidator(s.repository)

	return s, nil
}

func (s *service) ListProducts(ctx context.Context, caller *Caller, req ListProductsRequest) (*ProductPage, error) {
	if err := s.gate.Check(caller, OperationList); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.pageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	products, total, err := s.repository.ListProducts(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	return &ProductPage{
		Products: products,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	}, nil
}

func (s *service) GetProduct(ctx context.Context, caller *Caller, id int64) (*Product, error) {
	if err := s.gate.Check(caller, OperationRetrieve); err != nil {
		return nil, err
	}
	return s.repository.GetProduct(ctx, id)
}

func (s *service) CreateProduct(ctx context.Context, caller *Caller, req CreateProductRequest) (*Product, error) {
	if err := s.gate.Check(caller, OperationCreate); err != nil {
		return nil, err
	}

	fields, err := s.validator.Validate(ctx, req.Fields, 0, true)
	if err != nil {
		return nil, err
	}

	now := s.now()
	product := &Product{
		Title:     *fields.Title,
		Price:     DefaultPrice,
		Public:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if fields.Content != nil {
		product.Content = *fields.Content
	}
	if fields.Price != nil {
		product.Price = *fields.Price
	}
	if fields.Public != nil {
		product.Public = *fields.Public
	}
	if !caller.IsAnonymous() {
		owner := caller.UserID
		product.OwnerID = &owner
	}
	backfillContent(product)

	if err := s.repository.CreateProduct(ctx, product); err != nil {
		if errors.Is(err, ErrDuplicateTitle) {
			return nil, DuplicateTitleError()
		}
		return nil, &ProductError{
			ID:  product.ID,
			Op:  "create",
			Err: err,
		}
	}

	s.syncUpsert(ctx, product)

	return product, nil
}

func (s *service) UpdateProduct(ctx context.Context, caller *Caller, req UpdateProductRequest) (*Product, error) {
	if err := s.gate.Check(caller, OperationUpdate); err != nil {
		return nil, err
	}

	product, err := s.repository.GetProduct(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	fields, err := s.validator.Validate(ctx, req.Fields, product.ID, !req.Partial)
	if err != nil {
		return nil, err
	}

	if fields.Title != nil {
		product.Title = *fields.Title
	}
	if fields.Content != nil {
		product.Content = *fields.Content
	}
	if fields.Price != nil {
		product.Price = *fields.Price
	}
	if fields.Public != nil {
		product.Public = *fields.Public
	}
	backfillContent(product)
	product.UpdatedAt = s.now()

	if err := s.repository.UpdateProduct(ctx, product); err != nil {
		switch {
		case errors.Is(err, ErrDuplicateTitle):
			return nil, DuplicateTitleError()
		case errors.Is(err, ErrProductNotFound):
			return nil, err
		}
		return nil, &ProductError{
			ID:  product.ID,
			Op:  "update",
			Err: err,
		}
	}

	s.syncUpsert(ctx, product)

	return product, nil
}

func (s *service) DeleteProduct(ctx context.Context, caller *Caller, id int64) error {
	if err := s.gate.Check(caller, OperationDelete); err != nil {
		return err
	}

	if err := s.repository.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return err
		}
		return &ProductError{
			ID:  id,
			Op:  "delete",
			Err: err,
		}
	}

	s.syncRemove(ctx, id)

	return nil
}

func (s *service) SearchProducts(ctx context.Context, caller *Caller, req SearchRequest) (*SearchResult, error) {
	if err := s.gate.Check(caller, OperationSearch); err != nil {
		return nil, err
	}

	result, err := s.indexer.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}
	return result, nil
}

func (s *service) Authorize(caller *Caller, op Operation) error {
	return s.gate.Check(caller, op)
}

func (s *service) DetachOwner(ctx context.Context, ownerID int64) (int64, error) {
	ids, err := s.repository.ClearOwner(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to detach owner %d: %w", ownerID, err)
	}

	for _, id := range ids {
		product, err := s.repository.GetProduct(ctx, id)
		if err != nil {
			s.logger.Warn("Product vanished while detaching owner", "product_id", id, "error", err)
			continue
		}
		s.syncUpsert(ctx, product)
	}

	return int64(len(ids)), nil
}

// backfillContent fills empty content with the title.
func backfillContent(p *Product) {
	if p.Content == "" {
		p.Content = p.Title
	}
}

// indexContext detaches from request cancellation so a store write that
// already happened is still propagated to the index.
func (s *service) indexContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.indexTimeout)
}

func (s *service) syncUpsert(ctx context.Context, product *Product) {
	ictx, cancel := s.indexContext(ctx)
	defer cancel()

	if err := s.indexer.Upsert(ictx, product); err != nil {
		s.reportIndexError(ctx, &IndexSyncError{ID: product.ID, Op: "upsert", Err: err})
	}
}

func (s *service) syncRemove(ctx context.Context, id int64) {
	ictx, cancel := s.indexContext(ctx)
	defer cancel()

	if err := s.indexer.Remove(ictx, id); err != nil {
		s.reportIndexError(ctx, &IndexSyncError{ID: id, Op: "remove", Err: err})
	}
}

// reportIndexError logs but never fails the operation; the store stays authoritative.
func (s *service) reportIndexError(ctx context.Context, err *IndexSyncError) {
	s.logger.ErrorContext(ctx, "Failed to sync search index",
		"product_id", err.ID,
		"op", err.Op,
		"error", err.Err,
	)
}
