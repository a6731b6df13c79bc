// Package cart keeps the local cart view in sync with the vendor backend
// using the optimistic apply/rollback pattern. Entries are keyed by product:
// the server enforces one line per product and the client never creates
// duplicates.
package cart

import (
	"context"
	"fmt"

	"plantaria/internal/api"
	"plantaria/internal/errs"
	"plantaria/internal/models"
	"plantaria/internal/optimistic"
)

type vendorAPI interface {
	Cart(ctx context.Context) ([]models.CartEntry, error)
	CartAdd(ctx context.Context, productID int) (models.CartEntry, error)
	CartRemove(ctx context.Context, productID int) error
	PlaceOrder(ctx context.Context, req api.OrderRequest) (models.Order, error)
	CancelOrder(ctx context.Context, orderID int) error
}

type Store struct {
	api    vendorAPI
	entity *optimistic.Entity[[]models.CartEntry]
}

func NewStore(client vendorAPI) *Store {
	return &Store{
		api:    client,
		entity: optimistic.NewEntity([]models.CartEntry{}),
	}
}

// Entries returns the current cart snapshot.
func (s *Store) Entries() []models.CartEntry {
	return s.entity.Get()
}

// Contains reports whether the cart holds an entry for the product.
func (s *Store) Contains(productID int) bool {
	for _, e := range s.entity.Get() {
		if e.ProductID == productID {
			return true
		}
	}
	return false
}

// Load replaces local state with the server's authoritative cart.
func (s *Store) Load(ctx context.Context) error {
	entries, err := s.api.Cart(ctx)
	if err != nil {
		return err
	}
	s.entity.Set(entries)
	return nil
}

// Add puts a product in the cart optimistically. A product already present
// is rejected locally: the server would refuse the duplicate anyway, and
// toggling add/remove substitutes for quantity edits.
func (s *Store) Add(ctx context.Context, product models.Product) error {
	if s.Contains(product.ID) {
		return &errs.ValidationError{Detail: fmt.Sprintf("%s is already in the cart", product.Title)}
	}

	provisional := models.CartEntry{
		ProductID: product.ID,
		UnitPrice: product.Price,
		Quantity:  1,
	}

	m := optimistic.Mutation[[]models.CartEntry, struct{}]{
		Kind:    optimistic.KindCartAdd,
		Capture: func([]models.CartEntry) struct{} { return struct{}{} },
		Apply: func(entries []models.CartEntry) []models.CartEntry {
			return append(append([]models.CartEntry{}, entries...), provisional)
		},
		Call: func(ctx context.Context) (func([]models.CartEntry) []models.CartEntry, error) {
			created, err := s.api.CartAdd(ctx, product.ID)
			if err != nil {
				return nil, err
			}
			if created.ID == 0 {
				return nil, nil
			}
			// Swap the provisional line for the server's, which carries the
			// assigned cart-line id.
			return func(entries []models.CartEntry) []models.CartEntry {
				out := make([]models.CartEntry, len(entries))
				copy(out, entries)
				for i := range out {
					if out[i].ProductID == product.ID && out[i].ID == 0 {
						out[i] = created
						break
					}
				}
				return out
			}, nil
		},
		Restore: func(entries []models.CartEntry, _ struct{}) []models.CartEntry {
			// Rollback is scoped to this product's line.
			out := make([]models.CartEntry, 0, len(entries))
			for _, e := range entries {
				if e.ProductID != product.ID {
					out = append(out, e)
				}
			}
			return out
		},
	}
	return optimistic.Run(ctx, s.entity, m)
}

type removePrior struct {
	entry models.CartEntry
	found bool
}

// Remove drops the product's cart line optimistically and reinserts it on
// failure.
func (s *Store) Remove(ctx context.Context, productID int) error {
	if !s.Contains(productID) {
		return errs.ErrNotFound
	}

	m := optimistic.Mutation[[]models.CartEntry, removePrior]{
		Kind: optimistic.KindCartRemove,
		Capture: func(entries []models.CartEntry) removePrior {
			for _, e := range entries {
				if e.ProductID == productID {
					return removePrior{entry: e, found: true}
				}
			}
			return removePrior{}
		},
		Apply: func(entries []models.CartEntry) []models.CartEntry {
			out := make([]models.CartEntry, 0, len(entries))
			for _, e := range entries {
				if e.ProductID != productID {
					out = append(out, e)
				}
			}
			return out
		},
		Call: func(ctx context.Context) (func([]models.CartEntry) []models.CartEntry, error) {
			return nil, s.api.CartRemove(ctx, productID)
		},
		Restore: func(entries []models.CartEntry, prior removePrior) []models.CartEntry {
			if !prior.found {
				return entries
			}
			return append(append([]models.CartEntry{}, entries...), prior.entry)
		},
	}
	return optimistic.Run(ctx, s.entity, m)
}

// PlaceOrder is a direct authoritative call; orders are not mirrored in
// local cart state beyond what the server reports.
func (s *Store) PlaceOrder(ctx context.Context, productID, quantity int) (models.Order, error) {
	return s.api.PlaceOrder(ctx, api.OrderRequest{ProductID: productID, Quantity: quantity})
}

// CancelOrder cancels an order and, on acknowledgment, drops any cart line
// the order was placed from.
func (s *Store) CancelOrder(ctx context.Context, orderID int) error {
	if err := s.api.CancelOrder(ctx, orderID); err != nil {
		return err
	}
	s.entity.Update(func(entries []models.CartEntry) []models.CartEntry {
		out := make([]models.CartEntry, 0, len(entries))
		for _, e := range entries {
			if e.ID != orderID {
				out = append(out, e)
			}
		}
		return out
	})
	return nil
}
