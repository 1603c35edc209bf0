// Package catalog provides the product catalog: per-product ownership
// classification, cost basis, sell price and the cached stock counter.
package catalog

import (
	"context"
	"time"

	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/apperror"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/id"
	"github.com/BroAegg/web-koperasi-umb-sub001/internal/core/types"
)

// OwnershipType classifies who owns a product's inventory.
// There is no fallback for unknown values: every consumer matches
// exhaustively and rejects anything else.
type OwnershipType string

const (
	// OwnershipStoreOwned marks inventory bought and owned outright; its cost
	// is recognized at purchase time.
	OwnershipStoreOwned OwnershipType = "STORE_OWNED"
	// OwnershipConsigned marks third-party inventory sold on behalf of a
	// consignor; its cost is recognized at sale time, batch by batch.
	OwnershipConsigned OwnershipType = "CONSIGNED"
)

// Valid reports whether t is a known ownership type.
func (t OwnershipType) Valid() bool {
	switch t {
	case OwnershipStoreOwned, OwnershipConsigned:
		return true
	}
	return false
}

// Product is a catalog entry.
type Product struct {
	ID   id.ID  `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`

	OwnershipType OwnershipType `db:"ownership_type" json:"ownershipType"`

	// UnitCostBasis is required for STORE_OWNED products. For CONSIGNED
	// products cost comes from batch data; this field stays nil.
	UnitCostBasis *types.Money `db:"unit_cost_basis" json:"unitCostBasis,omitempty"`

	SellPrice types.Money `db:"sell_price" json:"sellPrice"`

	// CurrentStock caches the signed sum of all movement events for this
	// product. The ledger is the source of truth; the cache is updated in the
	// same commit as every append and must always equal a full replay.
	CurrentStock int64 `db:"current_stock" json:"currentStock"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewProduct creates a product with a generated ID.
func NewProduct(code, name string, ownership OwnershipType, sellPrice types.Money) *Product {
	now := time.Now().UTC()
	return &Product{
		ID:            id.New(),
		Code:          code,
		Name:          name,
		OwnershipType: ownership,
		SellPrice:     sellPrice,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Validate checks product invariants.
func (p *Product) Validate(ctx context.Context) error {
	if p.Code == "" {
		return apperror.NewValidation("code is required").
			WithDetail("field", "code")
	}
	if p.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	if !p.OwnershipType.Valid() {
		return apperror.NewValidation("unknown ownership type").
			WithDetail("field", "ownershipType").
			WithDetail("value", string(p.OwnershipType))
	}
	if p.SellPrice.IsNegative() {
		return apperror.NewValidation("sell price must not be negative").
			WithDetail("field", "sellPrice")
	}
	switch p.OwnershipType {
	case OwnershipStoreOwned:
		if p.UnitCostBasis == nil {
			return apperror.NewValidation("unit cost basis is required for store-owned products").
				WithDetail("field", "unitCostBasis")
		}
		if p.UnitCostBasis.IsNegative() {
			return apperror.NewValidation("unit cost basis must not be negative").
				WithDetail("field", "unitCostBasis")
		}
	case OwnershipConsigned:
		if p.UnitCostBasis != nil {
			return apperror.NewValidation("consigned products derive cost from batches, not a cost basis").
				WithDetail("field", "unitCostBasis")
		}
	}
	return nil
}
