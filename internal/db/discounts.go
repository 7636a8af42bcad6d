package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createFsDiscount = `
INSERT INTO fs_discounts (guardian_id, title, discount_type, discount_value, valid_from, valid_until, billing_month)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, guardian_id, title, discount_type, discount_value, valid_from, valid_until, billing_month, created_at
`

// CreateFsDiscountParams captures the fields for a new referral discount.
type CreateFsDiscountParams struct {
	GuardianID    pgtype.UUID
	Title         pgtype.Text
	DiscountType  string
	DiscountValue int64
	ValidFrom     pgtype.Date
	ValidUntil    pgtype.Date
	BillingMonth  string
}

// CreateFsDiscount inserts a friend-referral discount.
func (q *Queries) CreateFsDiscount(ctx context.Context, arg CreateFsDiscountParams) (FsDiscount, error) {
	row := q.db.QueryRow(ctx, createFsDiscount,
		arg.GuardianID, arg.Title, arg.DiscountType, arg.DiscountValue, arg.ValidFrom, arg.ValidUntil, arg.BillingMonth)
	return scanFsDiscount(row)
}

const listFsDiscountsByGuardianMonth = `
SELECT id, guardian_id, title, discount_type, discount_value, valid_from, valid_until, billing_month, created_at
FROM fs_discounts
WHERE guardian_id = $1 AND billing_month = $2
ORDER BY created_at, id
`

// ListFsDiscountsByGuardianMonthParams scopes a discount listing.
type ListFsDiscountsByGuardianMonthParams struct {
	GuardianID   pgtype.UUID
	BillingMonth string
}

// ListFsDiscountsByGuardianMonth returns referral discounts applicable to the month.
func (q *Queries) ListFsDiscountsByGuardianMonth(ctx context.Context, arg ListFsDiscountsByGuardianMonthParams) ([]FsDiscount, error) {
	rows, err := q.db.Query(ctx, listFsDiscountsByGuardianMonth, arg.GuardianID, arg.BillingMonth)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []FsDiscount
	for rows.Next() {
		d, err := scanFsDiscount(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

const deleteFsDiscount = `
DELETE FROM fs_discounts WHERE id = $1
RETURNING guardian_id, billing_month
`

// DeleteFsDiscountRow reports the scope of a removed referral discount.
type DeleteFsDiscountRow struct {
	GuardianID   pgtype.UUID
	BillingMonth string
}

// DeleteFsDiscount removes a referral discount.
func (q *Queries) DeleteFsDiscount(ctx context.Context, id pgtype.UUID) (DeleteFsDiscountRow, error) {
	row := q.db.QueryRow(ctx, deleteFsDiscount, id)
	var r DeleteFsDiscountRow
	err := row.Scan(&r.GuardianID, &r.BillingMonth)
	return r, err
}

const getMileAccount = `
SELECT guardian_id, balance, potential_discount, updated_at
FROM mile_accounts
WHERE guardian_id = $1
`

// GetMileAccount fetches the server-computed mileage state for a guardian.
func (q *Queries) GetMileAccount(ctx context.Context, guardianID pgtype.UUID) (MileAccount, error) {
	row := q.db.QueryRow(ctx, getMileAccount, guardianID)
	var m MileAccount
	err := row.Scan(&m.GuardianID, &m.Balance, &m.PotentialDiscount, &m.UpdatedAt)
	return m, err
}

const upsertMileAccount = `
INSERT INTO mile_accounts (guardian_id, balance, potential_discount, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (guardian_id)
DO UPDATE SET balance = EXCLUDED.balance, potential_discount = EXCLUDED.potential_discount, updated_at = now()
RETURNING guardian_id, balance, potential_discount, updated_at
`

// UpsertMileAccountParams captures a mileage account write.
type UpsertMileAccountParams struct {
	GuardianID        pgtype.UUID
	Balance           int64
	PotentialDiscount int64
}

// UpsertMileAccount creates or replaces the mileage account state.
func (q *Queries) UpsertMileAccount(ctx context.Context, arg UpsertMileAccountParams) (MileAccount, error) {
	row := q.db.QueryRow(ctx, upsertMileAccount, arg.GuardianID, arg.Balance, arg.PotentialDiscount)
	var m MileAccount
	err := row.Scan(&m.GuardianID, &m.Balance, &m.PotentialDiscount, &m.UpdatedAt)
	return m, err
}

func scanFsDiscount(row interface{ Scan(dest ...any) error }) (FsDiscount, error) {
	var d FsDiscount
	err := row.Scan(&d.ID, &d.GuardianID, &d.Title, &d.DiscountType, &d.DiscountValue,
		&d.ValidFrom, &d.ValidUntil, &d.BillingMonth, &d.CreatedAt)
	return d, err
}
