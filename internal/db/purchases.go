package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createPurchasedItem = `
INSERT INTO purchased_items (
	guardian_id, student_id, brand_name, product_name, course_name,
	product_type, billing_month, unit_price, quantity, discount_amount, final_price
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id, guardian_id, student_id, brand_name, product_name, course_name,
	product_type, billing_month, unit_price, quantity, discount_amount, final_price, created_at
`

// CreatePurchasedItemParams captures the fields for a new purchased line item.
type CreatePurchasedItemParams struct {
	GuardianID     pgtype.UUID
	StudentID      pgtype.UUID
	BrandName      pgtype.Text
	ProductName    pgtype.Text
	CourseName     pgtype.Text
	ProductType    string
	BillingMonth   string
	UnitPrice      int64
	Quantity       int32
	DiscountAmount int64
	FinalPrice     int64
}

// CreatePurchasedItem inserts a purchased line item.
func (q *Queries) CreatePurchasedItem(ctx context.Context, arg CreatePurchasedItemParams) (PurchasedItem, error) {
	row := q.db.QueryRow(ctx, createPurchasedItem,
		arg.GuardianID, arg.StudentID, arg.BrandName, arg.ProductName, arg.CourseName,
		arg.ProductType, arg.BillingMonth, arg.UnitPrice, arg.Quantity, arg.DiscountAmount, arg.FinalPrice,
	)
	return scanPurchasedItem(row)
}

const deletePurchasedItem = `
DELETE FROM purchased_items WHERE id = $1
RETURNING guardian_id, billing_month
`

// DeletePurchasedItemRow reports the scope of a removed line item so callers
// can invalidate the matching statement cache.
type DeletePurchasedItemRow struct {
	GuardianID   pgtype.UUID
	BillingMonth string
}

// DeletePurchasedItem removes a line item.
func (q *Queries) DeletePurchasedItem(ctx context.Context, id pgtype.UUID) (DeletePurchasedItemRow, error) {
	row := q.db.QueryRow(ctx, deletePurchasedItem, id)
	var r DeletePurchasedItemRow
	err := row.Scan(&r.GuardianID, &r.BillingMonth)
	return r, err
}

const listPurchasedItemsByGuardianMonth = `
SELECT p.id, p.guardian_id, p.student_id, s.name AS student_name,
	p.brand_name, p.product_name, p.course_name, p.product_type, p.billing_month,
	p.unit_price, p.quantity, p.discount_amount, p.final_price, p.created_at
FROM purchased_items p
LEFT JOIN students s ON s.id = p.student_id
WHERE p.guardian_id = $1 AND p.billing_month = $2
ORDER BY p.created_at, p.id
`

// ListPurchasedItemsByGuardianMonthParams scopes a purchase listing.
type ListPurchasedItemsByGuardianMonthParams struct {
	GuardianID   pgtype.UUID
	BillingMonth string
}

// ListPurchasedItemsByGuardianMonthRow joins the student display name onto the item.
type ListPurchasedItemsByGuardianMonthRow struct {
	ID             pgtype.UUID
	GuardianID     pgtype.UUID
	StudentID      pgtype.UUID
	StudentName    pgtype.Text
	BrandName      pgtype.Text
	ProductName    pgtype.Text
	CourseName     pgtype.Text
	ProductType    string
	BillingMonth   string
	UnitPrice      int64
	Quantity       int32
	DiscountAmount int64
	FinalPrice     int64
	CreatedAt      pgtype.Timestamptz
}

// ListPurchasedItemsByGuardianMonth returns all line items for one guardian and month.
func (q *Queries) ListPurchasedItemsByGuardianMonth(ctx context.Context, arg ListPurchasedItemsByGuardianMonthParams) ([]ListPurchasedItemsByGuardianMonthRow, error) {
	rows, err := q.db.Query(ctx, listPurchasedItemsByGuardianMonth, arg.GuardianID, arg.BillingMonth)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListPurchasedItemsByGuardianMonthRow
	for rows.Next() {
		var r ListPurchasedItemsByGuardianMonthRow
		if err := rows.Scan(
			&r.ID, &r.GuardianID, &r.StudentID, &r.StudentName,
			&r.BrandName, &r.ProductName, &r.CourseName, &r.ProductType, &r.BillingMonth,
			&r.UnitPrice, &r.Quantity, &r.DiscountAmount, &r.FinalPrice, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const countPurchasedItemsByGuardianMonth = `
SELECT count(*) FROM purchased_items WHERE guardian_id = $1 AND billing_month = $2
`

// CountPurchasedItemsByGuardianMonth counts line items for pagination.
func (q *Queries) CountPurchasedItemsByGuardianMonth(ctx context.Context, arg ListPurchasedItemsByGuardianMonthParams) (int64, error) {
	row := q.db.QueryRow(ctx, countPurchasedItemsByGuardianMonth, arg.GuardianID, arg.BillingMonth)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const listActiveGuardianIDsByMonth = `
SELECT DISTINCT guardian_id FROM purchased_items WHERE billing_month = $1
`

// ListActiveGuardianIDsByMonth returns guardians with purchase activity in the month.
func (q *Queries) ListActiveGuardianIDsByMonth(ctx context.Context, billingMonth string) ([]pgtype.UUID, error) {
	rows, err := q.db.Query(ctx, listActiveGuardianIDsByMonth, billingMonth)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []pgtype.UUID
	for rows.Next() {
		var id pgtype.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanPurchasedItem(row interface{ Scan(dest ...any) error }) (PurchasedItem, error) {
	var p PurchasedItem
	err := row.Scan(
		&p.ID, &p.GuardianID, &p.StudentID, &p.BrandName, &p.ProductName, &p.CourseName,
		&p.ProductType, &p.BillingMonth, &p.UnitPrice, &p.Quantity, &p.DiscountAmount, &p.FinalPrice, &p.CreatedAt,
	)
	return p, err
}
