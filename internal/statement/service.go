package statement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/mizuki-dev/backend-juku/internal/billing"
	"github.com/mizuki-dev/backend-juku/internal/db"
	"github.com/mizuki-dev/backend-juku/internal/obs"
)

// Mile discount sources reported on statements.
const (
	MileSourceServer = "server"
	MileSourceLocal  = "local"
)

// Querier is the subset of the query layer the statement service depends on.
type Querier interface {
	ListPurchasedItemsByGuardianMonth(ctx context.Context, arg db.ListPurchasedItemsByGuardianMonthParams) ([]db.ListPurchasedItemsByGuardianMonthRow, error)
	ListFsDiscountsByGuardianMonth(ctx context.Context, arg db.ListFsDiscountsByGuardianMonthParams) ([]db.FsDiscount, error)
	GetMileAccount(ctx context.Context, guardianID pgtype.UUID) (db.MileAccount, error)
}

// Statement is the assembled household bill for one guardian and month.
type Statement struct {
	GuardianID         string                  `json:"guardian_id"`
	Month              string                  `json:"month"`
	Students           []billing.StudentGroup  `json:"students"`
	TotalAmount        billing.Money           `json:"total_amount"`
	Miles              billing.MileCalculation `json:"miles"`
	MileAccount        billing.MileInfo        `json:"mile_account"`
	MileDiscount       billing.Money           `json:"mile_discount"`
	MileDiscountSource string                  `json:"mile_discount_source"`
	FSDiscounts        []billing.FSDiscount    `json:"fs_discounts"`
	FSDiscountTotal    billing.Money           `json:"fs_discount_total"`
	PayableAmount      billing.Money           `json:"payable_amount"`
	GeneratedAt        time.Time               `json:"generated_at"`
}

// MilesSummary is the mileage-only projection of a statement.
type MilesSummary struct {
	GuardianID         string                  `json:"guardian_id"`
	Month              string                  `json:"month"`
	Miles              billing.MileCalculation `json:"miles"`
	MileAccount        billing.MileInfo        `json:"mile_account"`
	MileDiscount       billing.Money           `json:"mile_discount"`
	MileDiscountSource string                  `json:"mile_discount_source"`
}

// Service assembles statements with a Redis cache in front of Postgres.
type Service struct {
	Q      Querier
	Cache  *Cache
	Logger zerolog.Logger
	Now    func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// BuildStatement returns the statement for one guardian and month,
// serving from cache when a fresh copy exists.
func (s *Service) BuildStatement(ctx context.Context, guardianID, month string) (Statement, error) {
	key := CacheKey(guardianID, month)

	var cached Statement
	hit, err := s.Cache.GetJSON(ctx, key, &cached)
	if err != nil {
		s.Logger.Warn().Err(err).Str("key", key).Msg("statement cache read failed")
	}
	countCache(hit)
	if hit {
		return cached, nil
	}

	stmt, err := s.compute(ctx, guardianID, month)
	if err != nil {
		countCompute("error")
		return Statement{}, err
	}
	countCompute("ok")

	if err := s.Cache.SetJSON(ctx, key, stmt); err != nil {
		s.Logger.Warn().Err(err).Str("key", key).Msg("statement cache write failed")
	}
	return stmt, nil
}

// MilesSummary returns only the mileage portion of a statement.
func (s *Service) MilesSummary(ctx context.Context, guardianID, month string) (MilesSummary, error) {
	stmt, err := s.BuildStatement(ctx, guardianID, month)
	if err != nil {
		return MilesSummary{}, err
	}
	return MilesSummary{
		GuardianID:         stmt.GuardianID,
		Month:              stmt.Month,
		Miles:              stmt.Miles,
		MileAccount:        stmt.MileAccount,
		MileDiscount:       stmt.MileDiscount,
		MileDiscountSource: stmt.MileDiscountSource,
	}, nil
}

// Warm recomputes the statement and refreshes the cache unconditionally.
func (s *Service) Warm(ctx context.Context, guardianID, month string) error {
	stmt, err := s.compute(ctx, guardianID, month)
	if err != nil {
		countCompute("error")
		return err
	}
	countCompute("ok")
	return s.Cache.SetJSON(ctx, CacheKey(guardianID, month), stmt)
}

// Invalidate drops the cached statement for one guardian and month.
// Admin mutations call this so the next read reflects the change.
func (s *Service) Invalidate(ctx context.Context, guardianID, month string) error {
	return s.Cache.Delete(ctx, CacheKey(guardianID, month))
}

func (s *Service) compute(ctx context.Context, guardianID, month string) (Statement, error) {
	started := s.now()

	gid, err := pgUUIDFromString(guardianID)
	if err != nil {
		return Statement{}, fmt.Errorf("parse guardian id: %w", err)
	}

	rows, err := s.Q.ListPurchasedItemsByGuardianMonth(ctx, db.ListPurchasedItemsByGuardianMonthParams{
		GuardianID:   gid,
		BillingMonth: month,
	})
	if err != nil {
		return Statement{}, fmt.Errorf("list purchased items: %w", err)
	}

	items := make([]billing.PurchasedItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, convertPurchasedItem(row))
	}

	groups := billing.GroupPurchases(items, month)
	miles := billing.CalculateMiles(items, month)

	var total billing.Money
	for _, g := range groups {
		total += g.TotalAmount
	}

	account := billing.MileInfo{}
	dbAccount, err := s.Q.GetMileAccount(ctx, gid)
	switch {
	case err == nil:
		account = billing.MileInfo{Balance: dbAccount.Balance, PotentialDiscount: dbAccount.PotentialDiscount}
	case errors.Is(err, pgx.ErrNoRows):
		// No account yet; local calculation stands alone.
	default:
		return Statement{}, fmt.Errorf("get mile account: %w", err)
	}

	dbDiscounts, err := s.Q.ListFsDiscountsByGuardianMonth(ctx, db.ListFsDiscountsByGuardianMonthParams{
		GuardianID:   gid,
		BillingMonth: month,
	})
	if err != nil {
		return Statement{}, fmt.Errorf("list fs discounts: %w", err)
	}
	fsDiscounts := make([]billing.FSDiscount, 0, len(dbDiscounts))
	for _, d := range dbDiscounts {
		fsDiscounts = append(fsDiscounts, convertFSDiscount(d))
	}

	mileDiscount := billing.ResolveMileDiscount(account, miles.MileDiscount)
	source := MileSourceLocal
	if account.PotentialDiscount > 0 {
		source = MileSourceServer
	}
	if mileDiscount > 0 {
		countMileSource(source)
	}

	fsTotal := billing.SumFSDiscounts(fsDiscounts)
	payable := billing.PayableAmount(total, mileDiscount, fsTotal)

	observeComputeLatency(s.now().Sub(started))

	return Statement{
		GuardianID:         guardianID,
		Month:              month,
		Students:           groups,
		TotalAmount:        total,
		Miles:              miles,
		MileAccount:        account,
		MileDiscount:       mileDiscount,
		MileDiscountSource: source,
		FSDiscounts:        fsDiscounts,
		FSDiscountTotal:    fsTotal,
		PayableAmount:      payable,
		GeneratedAt:        s.now(),
	}, nil
}

func convertPurchasedItem(row db.ListPurchasedItemsByGuardianMonthRow) billing.PurchasedItem {
	return billing.PurchasedItem{
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
	}
}

func convertFSDiscount(d db.FsDiscount) billing.FSDiscount {
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

func countCache(hit bool) {
	if obs.StatementCacheTotal == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	obs.StatementCacheTotal.WithLabelValues(result).Inc()
}

func countCompute(result string) {
	if obs.StatementComputeTotal == nil {
		return
	}
	obs.StatementComputeTotal.WithLabelValues(result).Inc()
}

func countMileSource(source string) {
	if obs.MileDiscountAppliedTotal == nil {
		return
	}
	obs.MileDiscountAppliedTotal.WithLabelValues(source).Inc()
}

func observeComputeLatency(d time.Duration) {
	if obs.StatementComputeLatency == nil {
		return
	}
	obs.StatementComputeLatency.Observe(float64(d.Milliseconds()))
}
