package db

import "github.com/jackc/pgx/v5/pgtype"

// Guardian is the account holder (parent) a billing statement belongs to.
type Guardian struct {
	ID           pgtype.UUID
	Name         string
	Email        string
	PasswordHash string
	Roles        []string
	CreatedAt    pgtype.Timestamptz
	UpdatedAt    pgtype.Timestamptz
}

// Student is one child enrolled under a guardian.
type Student struct {
	ID         pgtype.UUID
	GuardianID pgtype.UUID
	Name       string
	CreatedAt  pgtype.Timestamptz
}

// Session stores a hashed rotating refresh token.
type Session struct {
	ID           pgtype.UUID
	GuardianID   pgtype.UUID
	RefreshToken string
	UserAgent    pgtype.Text
	Ip           pgtype.Text
	ExpiresAt    pgtype.Timestamptz
	CreatedAt    pgtype.Timestamptz
}

// PurchasedItem is one billed line item as stored.
type PurchasedItem struct {
	ID             pgtype.UUID
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
	CreatedAt      pgtype.Timestamptz
}

// MileAccount is the server-computed mileage state per guardian.
type MileAccount struct {
	GuardianID        pgtype.UUID
	Balance           int64
	PotentialDiscount int64
	UpdatedAt         pgtype.Timestamptz
}

// FsDiscount is a friend-referral discount row.
type FsDiscount struct {
	ID            pgtype.UUID
	GuardianID    pgtype.UUID
	Title         pgtype.Text
	DiscountType  string
	DiscountValue int64
	ValidFrom     pgtype.Date
	ValidUntil    pgtype.Date
	BillingMonth  string
	CreatedAt     pgtype.Timestamptz
}
