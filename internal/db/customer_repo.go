package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"dealbase/internal/types"
)

// CustomerRepository provides data access for the customers table, the
// local mirror of Stripe customer objects keyed by application user ID.
type CustomerRepository struct {
	db DBTX
}

// NewCustomerRepository creates a new CustomerRepository backed by the given
// database connection (pool or transaction).
func NewCustomerRepository(db DBTX) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// customerColumns defines the standard set of columns selected for customer
// queries. Used consistently across all query methods to avoid column drift.
const customerColumns = `c.id, c.user_id, c.stripe_customer_id, c.email, c.name,
	c.created_at, c.updated_at`

// scanCustomer scans a single customer row into a types.Customer struct.
// The columns must match the order defined in customerColumns. The name
// column may be NULL in the database.
func scanCustomer(row pgx.Row) (*types.Customer, error) {
	var c types.Customer
	var name *string
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.StripeCustomerID,
		&c.Email,
		&name,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if name != nil {
		c.Name = *name
	}
	return &c, nil
}

// GetByUserID retrieves the billing customer record for an application user.
// Returns ErrCodeNotFoundCustomer if the user has never been provisioned.
func (r *CustomerRepository) GetByUserID(ctx context.Context, userID string) (*types.Customer, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+customerColumns+`
		 FROM customers c
		 WHERE c.user_id = $1`,
		userID,
	)

	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundCustomer, "customer not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve customer", err)
	}
	return c, nil
}

// GetByStripeID retrieves a customer by its Stripe customer identifier.
// Used by webhook processing to map provider objects back to local users.
func (r *CustomerRepository) GetByStripeID(ctx context.Context, stripeCustomerID string) (*types.Customer, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+customerColumns+`
		 FROM customers c
		 WHERE c.stripe_customer_id = $1`,
		stripeCustomerID,
	)

	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundCustomer, "customer not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve customer", err)
	}
	return c, nil
}

// Upsert inserts a customer record or refreshes the mutable fields of an
// existing one. Conflict target is user_id: a user keeps the same Stripe
// customer for life, so stripe_customer_id is deliberately NOT updated on
// conflict. Returns the stored row.
func (r *CustomerRepository) Upsert(ctx context.Context, c *types.Customer) (*types.Customer, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO customers (id, user_id, stripe_customer_id, email, name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), NOW(), NOW())
		 ON CONFLICT (user_id) DO UPDATE SET
		     email = EXCLUDED.email,
		     name = EXCLUDED.name,
		     updated_at = NOW()
		 RETURNING id, user_id, stripe_customer_id, email, name, created_at, updated_at`,
		c.ID,
		c.UserID,
		c.StripeCustomerID,
		c.Email,
		c.Name,
	)

	stored, err := scanCustomer(row)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to upsert customer", err)
	}
	return stored, nil
}
