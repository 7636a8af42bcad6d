package purchase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/mizuki-dev/backend-juku/internal/billing"
	"github.com/mizuki-dev/backend-juku/internal/common"
	"github.com/mizuki-dev/backend-juku/internal/db"
)

// Querier is the subset of the query layer the purchase service depends on.
type Querier interface {
	CreatePurchasedItem(ctx context.Context, arg db.CreatePurchasedItemParams) (db.PurchasedItem, error)
	DeletePurchasedItem(ctx context.Context, id pgtype.UUID) (db.DeletePurchasedItemRow, error)
	ListPurchasedItemsByGuardianMonth(ctx context.Context, arg db.ListPurchasedItemsByGuardianMonthParams) ([]db.ListPurchasedItemsByGuardianMonthRow, error)
	CountPurchasedItemsByGuardianMonth(ctx context.Context, arg db.ListPurchasedItemsByGuardianMonthParams) (int64, error)
	CreateFsDiscount(ctx context.Context, arg db.CreateFsDiscountParams) (db.FsDiscount, error)
	DeleteFsDiscount(ctx context.Context, id pgtype.UUID) (db.DeleteFsDiscountRow, error)
	UpsertMileAccount(ctx context.Context, arg db.UpsertMileAccountParams) (db.MileAccount, error)
	CreateStudent(ctx context.Context, arg db.CreateStudentParams) (db.Student, error)
}

// Invalidator drops cached statements after a mutation.
type Invalidator interface {
	Invalidate(ctx context.Context, guardianID, month string) error
}

// Service manages purchased line items and the admin-maintained discount
// inputs they feed into.
type Service struct {
	Q          Querier
	Validate   *validator.Validate
	Statements Invalidator
	Logger     zerolog.Logger
}

// CreatePurchaseInput is the admin payload for a new line item.
type CreatePurchaseInput struct {
	GuardianID     string `json:"guardian_id" validate:"required,uuid"`
	StudentID      string `json:"student_id" validate:"omitempty,uuid"`
	BrandName      string `json:"brand_name" validate:"max=120"`
	ProductName    string `json:"product_name" validate:"max=200"`
	CourseName     string `json:"course_name" validate:"max=200"`
	ProductType    string `json:"product_type" validate:"required,oneof=tuition monthly_fee textbook enrollment facility expense"`
	BillingMonth   string `json:"billing_month" validate:"required"`
	UnitPrice      int64  `json:"unit_price" validate:"gte=0"`
	Quantity       int32  `json:"quantity" validate:"gte=1"`
	DiscountAmount int64  `json:"discount_amount" validate:"gte=0"`
	FinalPrice     int64  `json:"final_price" validate:"gte=0"`
}

// CreateFsDiscountInput is the admin payload for a referral discount row.
type CreateFsDiscountInput struct {
	GuardianID    string     `json:"guardian_id" validate:"required,uuid"`
	Title         string     `json:"title" validate:"max=200"`
	DiscountType  string     `json:"discount_type" validate:"required,max=50"`
	DiscountValue int64      `json:"discount_value" validate:"gte=0"`
	BillingMonth  string     `json:"billing_month" validate:"required"`
	ValidFrom     *time.Time `json:"valid_from"`
	ValidUntil    *time.Time `json:"valid_until"`
}

// UpsertMileAccountInput is the admin payload for mile account state.
type UpsertMileAccountInput struct {
	GuardianID        string `json:"guardian_id" validate:"required,uuid"`
	Balance           int64  `json:"balance" validate:"gte=0"`
	PotentialDiscount int64  `json:"potential_discount" validate:"gte=0"`
	BillingMonth      string `json:"billing_month" validate:"omitempty"`
}

// CreateStudentInput is the admin payload for registering a student.
type CreateStudentInput struct {
	GuardianID string `json:"guardian_id" validate:"required,uuid"`
	Name       string `json:"name" validate:"required,max=120"`
}

// PurchaseView is the API representation of one line item.
type PurchaseView struct {
	billing.PurchasedItem
	GuardianID string `json:"guardian_id"`
}

func (s *Service) validateInput(v any) error {
	if s.Validate == nil {
		return nil
	}
	if err := s.Validate.Struct(v); err != nil {
		var verr validator.ValidationErrors
		if errors.As(err, &verr) {
			details := make(map[string]string, len(verr))
			for _, fe := range verr {
				details[fe.Field()] = fe.Tag()
			}
			return common.NewAppError("VALIDATION_ERROR", "invalid payload", http.StatusBadRequest, err).WithDetails(details)
		}
		return err
	}
	return nil
}

// CreatePurchase inserts a line item and invalidates the affected statement.
func (s *Service) CreatePurchase(ctx context.Context, in CreatePurchaseInput) (PurchaseView, error) {
	if err := s.validateInput(in); err != nil {
		return PurchaseView{}, err
	}
	if !common.ValidBillingMonth(in.BillingMonth) {
		return PurchaseView{}, common.NewAppError("INVALID_MONTH", "billing month must be formatted as YYYY-MM", http.StatusBadRequest, nil)
	}

	gid, err := pgUUIDFromString(in.GuardianID)
	if err != nil {
		return PurchaseView{}, common.NewAppError("VALIDATION_ERROR", "invalid guardian id", http.StatusBadRequest, err)
	}
	var sid pgtype.UUID
	if in.StudentID != "" {
		sid, err = pgUUIDFromString(in.StudentID)
		if err != nil {
			return PurchaseView{}, common.NewAppError("VALIDATION_ERROR", "invalid student id", http.StatusBadRequest, err)
		}
	}

	created, err := s.Q.CreatePurchasedItem(ctx, db.CreatePurchasedItemParams{
		GuardianID:     gid,
		StudentID:      sid,
		BrandName:      pgText(in.BrandName),
		ProductName:    pgText(in.ProductName),
		CourseName:     pgText(in.CourseName),
		ProductType:    in.ProductType,
		BillingMonth:   in.BillingMonth,
		UnitPrice:      in.UnitPrice,
		Quantity:       in.Quantity,
		DiscountAmount: in.DiscountAmount,
		FinalPrice:     in.FinalPrice,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return PurchaseView{}, common.NewAppError("NOT_FOUND", "guardian or student does not exist", http.StatusNotFound, err)
		}
		return PurchaseView{}, fmt.Errorf("create purchased item: %w", err)
	}

	s.invalidate(ctx, in.GuardianID, in.BillingMonth)
	return convertPurchase(created), nil
}

// DeletePurchase removes a line item and invalidates the affected statement.
func (s *Service) DeletePurchase(ctx context.Context, id string) error {
	pid, err := pgUUIDFromString(id)
	if err != nil {
		return common.NewAppError("VALIDATION_ERROR", "invalid purchase id", http.StatusBadRequest, err)
	}
	deleted, err := s.Q.DeletePurchasedItem(ctx, pid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.NewAppError("NOT_FOUND", "purchase not found", http.StatusNotFound, err)
		}
		return fmt.Errorf("delete purchased item: %w", err)
	}
	s.invalidate(ctx, uuidString(deleted.GuardianID), deleted.BillingMonth)
	return nil
}

// ListPurchases returns the guardian's line items for one month plus pagination metadata.
func (s *Service) ListPurchases(ctx context.Context, guardianID, month string, page, perPage int) ([]PurchaseView, common.Pagination, error) {
	gid, err := pgUUIDFromString(guardianID)
	if err != nil {
		return nil, common.Pagination{}, common.NewAppError("VALIDATION_ERROR", "invalid guardian id", http.StatusBadRequest, err)
	}
	arg := db.ListPurchasedItemsByGuardianMonthParams{GuardianID: gid, BillingMonth: month}

	total, err := s.Q.CountPurchasedItemsByGuardianMonth(ctx, arg)
	if err != nil {
		return nil, common.Pagination{}, fmt.Errorf("count purchased items: %w", err)
	}
	rows, err := s.Q.ListPurchasedItemsByGuardianMonth(ctx, arg)
	if err != nil {
		return nil, common.Pagination{}, fmt.Errorf("list purchased items: %w", err)
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 50
	}
	start := (page - 1) * perPage
	if start > len(rows) {
		start = len(rows)
	}
	end := start + perPage
	if end > len(rows) {
		end = len(rows)
	}

	views := make([]PurchaseView, 0, end-start)
	for _, row := range rows[start:end] {
		views = append(views, convertPurchaseRow(row))
	}
	return views, common.Pagination{Page: page, PerPage: perPage, TotalItems: total}, nil
}

// CreateFsDiscount records a referral discount and invalidates the statement.
func (s *Service) CreateFsDiscount(ctx context.Context, in CreateFsDiscountInput) (billing.FSDiscount, error) {
	if err := s.validateInput(in); err != nil {
		return billing.FSDiscount{}, err
	}
	if !common.ValidBillingMonth(in.BillingMonth) {
		return billing.FSDiscount{}, common.NewAppError("INVALID_MONTH", "billing month must be formatted as YYYY-MM", http.StatusBadRequest, nil)
	}
	gid, err := pgUUIDFromString(in.GuardianID)
	if err != nil {
		return billing.FSDiscount{}, common.NewAppError("VALIDATION_ERROR", "invalid guardian id", http.StatusBadRequest, err)
	}

	created, err := s.Q.CreateFsDiscount(ctx, db.CreateFsDiscountParams{
		GuardianID:    gid,
		Title:         pgText(in.Title),
		DiscountType:  in.DiscountType,
		DiscountValue: in.DiscountValue,
		ValidFrom:     pgDate(in.ValidFrom),
		ValidUntil:    pgDate(in.ValidUntil),
		BillingMonth:  in.BillingMonth,
	})
	if err != nil {
		return billing.FSDiscount{}, fmt.Errorf("create fs discount: %w", err)
	}

	s.invalidate(ctx, in.GuardianID, in.BillingMonth)
	return convertFsDiscount(created), nil
}

// DeleteFsDiscount removes a referral discount and invalidates the statement.
func (s *Service) DeleteFsDiscount(ctx context.Context, id string) error {
	did, err := pgUUIDFromString(id)
	if err != nil {
		return common.NewAppError("VALIDATION_ERROR", "invalid discount id", http.StatusBadRequest, err)
	}
	deleted, err := s.Q.DeleteFsDiscount(ctx, did)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.NewAppError("NOT_FOUND", "discount not found", http.StatusNotFound, err)
		}
		return fmt.Errorf("delete fs discount: %w", err)
	}
	s.invalidate(ctx, uuidString(deleted.GuardianID), deleted.BillingMonth)
	return nil
}

// UpsertMileAccount writes mile account state for a guardian.
func (s *Service) UpsertMileAccount(ctx context.Context, in UpsertMileAccountInput) (billing.MileInfo, error) {
	if err := s.validateInput(in); err != nil {
		return billing.MileInfo{}, err
	}
	gid, err := pgUUIDFromString(in.GuardianID)
	if err != nil {
		return billing.MileInfo{}, common.NewAppError("VALIDATION_ERROR", "invalid guardian id", http.StatusBadRequest, err)
	}

	account, err := s.Q.UpsertMileAccount(ctx, db.UpsertMileAccountParams{
		GuardianID:        gid,
		Balance:           in.Balance,
		PotentialDiscount: in.PotentialDiscount,
	})
	if err != nil {
		return billing.MileInfo{}, fmt.Errorf("upsert mile account: %w", err)
	}

	if common.ValidBillingMonth(in.BillingMonth) {
		s.invalidate(ctx, in.GuardianID, in.BillingMonth)
	}
	return billing.MileInfo{Balance: account.Balance, PotentialDiscount: account.PotentialDiscount}, nil
}

// CreateStudent registers a student under a guardian.
func (s *Service) CreateStudent(ctx context.Context, in CreateStudentInput) (db.Student, error) {
	if err := s.validateInput(in); err != nil {
		return db.Student{}, err
	}
	gid, err := pgUUIDFromString(in.GuardianID)
	if err != nil {
		return db.Student{}, common.NewAppError("VALIDATION_ERROR", "invalid guardian id", http.StatusBadRequest, err)
	}
	student, err := s.Q.CreateStudent(ctx, db.CreateStudentParams{GuardianID: gid, Name: in.Name})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return db.Student{}, common.NewAppError("NOT_FOUND", "guardian does not exist", http.StatusNotFound, err)
		}
		return db.Student{}, fmt.Errorf("create student: %w", err)
	}
	return student, nil
}

func (s *Service) invalidate(ctx context.Context, guardianID, month string) {
	if s.Statements == nil || guardianID == "" || month == "" {
		return
	}
	if err := s.Statements.Invalidate(ctx, guardianID, month); err != nil {
		s.Logger.Warn().Err(err).
			Str("guardian_id", guardianID).
			Str("month", month).
			Msg("statement cache invalidation failed")
	}
}

func convertPurchase(p db.PurchasedItem) PurchaseView {
	return PurchaseView{
		GuardianID: uuidString(p.GuardianID),
		PurchasedItem: billing.PurchasedItem{
			ID:             uuidString(p.ID),
			StudentID:      uuidString(p.StudentID),
			BrandName:      p.BrandName.String,
			ProductName:    p.ProductName.String,
			CourseName:     p.CourseName.String,
			ProductType:    p.ProductType,
			BillingMonth:   p.BillingMonth,
			UnitPrice:      p.UnitPrice,
			Quantity:       p.Quantity,
			DiscountAmount: p.DiscountAmount,
			FinalPrice:     p.FinalPrice,
			CreatedAt:      p.CreatedAt.Time,
		},
	}
}

func convertPurchaseRow(row db.ListPurchasedItemsByGuardianMonthRow) PurchaseView {
	return PurchaseView{
		GuardianID: uuidString(row.GuardianID),
		PurchasedItem: billing.PurchasedItem{
			ID:             uuidString(row.ID),
			StudentID:      uuidString(row.StudentID),
			StudentName:    row.StudentName.String,
			BrandName:      row.BrandName.String,
			ProductName:    row.ProductName.String,
			CourseName:     row.CourseName.String,
			ProductType:    row.ProductType,
			BillingMonth:   row.BillingMonth,
			UnitPrice:      row.UnitPrice,
			Quantity:       row.Quantity,
			DiscountAmount: row.DiscountAmount,
			FinalPrice:     row.FinalPrice,
			CreatedAt:      row.CreatedAt.Time,
		},
	}
}

func convertFsDiscount(d db.FsDiscount) billing.FSDiscount {
	out := billing.FSDiscount{
		ID:            uuidString(d.ID),
		Title:         d.Title.String,
		DiscountType:  d.DiscountType,
		DiscountValue: d.DiscountValue,
	}
	if d.ValidFrom.Valid {
		from := d.ValidFrom.Time
		out.ValidFrom = &from
	}
	if d.ValidUntil.Valid {
		until := d.ValidUntil.Time
		out.ValidUntil = &until
	}
	return out
}

func pgUUIDFromString(value string) (pgtype.UUID, error) {
	var id pgtype.UUID
	if err := id.Scan(value); err != nil {
		return pgtype.UUID{}, err
	}
	return id, nil
}

func uuidString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	u, err := uuid.FromBytes(id.Bytes[:])
	if err != nil {
		return ""
	}
	return u.String()
}

func pgText(value string) pgtype.Text {
	if value == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: value, Valid: true}
}

func pgDate(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: *t, Valid: true}
}
