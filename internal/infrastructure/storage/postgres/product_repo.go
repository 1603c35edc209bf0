package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/apperror"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/id"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/domain/catalog"
)

const productsTable = "products"

// ProductRepo implements catalog.Repository.
type ProductRepo struct {
	txm     *TxManager
	builder squirrel.StatementBuilderType
}

// NewProductRepo creates a new product repository.
func NewProductRepo(txm *TxManager) *ProductRepo {
	return &ProductRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var productColumns = []string{
	"id", "code", "name", "ownership_type",
	"unit_cost_basis", "sell_price", "current_stock",
	"created_at", "updated_at",
}

// Create persists a new product.
func (r *ProductRepo) Create(ctx context.Context, product *catalog.Product) error {
	q := r.builder.Insert(productsTable).
		Columns(productColumns...).
		Values(
			product.ID, product.Code, product.Name, product.OwnershipType,
			product.UnitCostBasis, product.SellPrice, product.CurrentStock,
			product.CreatedAt, product.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return apperror.NewStorage(fmt.Errorf("build insert: %w", err))
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewConflict(fmt.Sprintf("product code %q already exists", product.Code))
		}
		return apperror.NewStorage(fmt.Errorf("insert product: %w", err))
	}

	return nil
}

// Get retrieves a product by ID.
func (r *ProductRepo) Get(ctx context.Context, productID id.ID) (*catalog.Product, error) {
	q := r.builder.Select(productColumns...).
		From(productsTable).
		Where(squirrel.Eq{"id": productID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, apperror.NewStorage(fmt.Errorf("build query: %w", err))
	}

	var product catalog.Product
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &product, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("product", productID)
		}
		return nil, apperror.NewStorage(fmt.Errorf("get product: %w", err))
	}

	return &product, nil
}

// GetByCode retrieves a product by its unique code.
func (r *ProductRepo) GetByCode(ctx context.Context, code string) (*catalog.Product, error) {
	q := r.builder.Select(productColumns...).
		From(productsTable).
		Where(squirrel.Eq{"code": code}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, apperror.NewStorage(fmt.Errorf("build query: %w", err))
	}

	var product catalog.Product
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &product, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("product", code)
		}
		return nil, apperror.NewStorage(fmt.Errorf("get product by code: %w", err))
	}

	return &product, nil
}

// List returns all products ordered by code.
func (r *ProductRepo) List(ctx context.Context) ([]*catalog.Product, error) {
	q := r.builder.Select(productColumns...).
		From(productsTable).
		OrderBy("code")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, apperror.NewStorage(fmt.Errorf("build query: %w", err))
	}

	var products []*catalog.Product
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &products, sql, args...); err != nil {
		return nil, apperror.NewStorage(fmt.Errorf("select products: %w", err))
	}

	return products, nil
}

// Ensure interface compliance.
var _ catalog.Repository = (*ProductRepo)(nil)
