package statement

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mizuki-dev/backend-juku/internal/db"
)

const testGuardianID = "3e8f4a0e-51c4-4f6e-9a3b-6a1d2f9b7c10"

type stubQuerier struct {
	items     []db.ListPurchasedItemsByGuardianMonthRow
	account   db.MileAccount
	noAccount bool
	discounts []db.FsDiscount

	listCalls int
}

func (s *stubQuerier) ListPurchasedItemsByGuardianMonth(_ context.Context, _ db.ListPurchasedItemsByGuardianMonthParams) ([]db.ListPurchasedItemsByGuardianMonthRow, error) {
	s.listCalls++
	return s.items, nil
}

func (s *stubQuerier) ListFsDiscountsByGuardianMonth(_ context.Context, _ db.ListFsDiscountsByGuardianMonthParams) ([]db.FsDiscount, error) {
	return s.discounts, nil
}

func (s *stubQuerier) GetMileAccount(_ context.Context, _ pgtype.UUID) (db.MileAccount, error) {
	if s.noAccount {
		return db.MileAccount{}, pgx.ErrNoRows
	}
	return s.account, nil
}

func tuitionRow(t *testing.T, id, course string, price int64, createdAt time.Time) db.ListPurchasedItemsByGuardianMonthRow {
	t.Helper()
	var rowID pgtype.UUID
	require.NoError(t, rowID.Scan(id))
	return db.ListPurchasedItemsByGuardianMonthRow{
		ID:           rowID,
		CourseName:   pgtype.Text{String: course, Valid: true},
		ProductType:  "tuition",
		BillingMonth: "2025-04",
		UnitPrice:    price,
		Quantity:     1,
		FinalPrice:   price,
		CreatedAt:    pgtype.Timestamptz{Time: createdAt, Valid: true},
	}
}

func newTestService(t *testing.T, q *stubQuerier) *Service {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return &Service{
		Q:      q,
		Cache:  NewCache(client, time.Minute),
		Logger: zerolog.Nop(),
	}
}

func fourCourseQuerier(t *testing.T) *stubQuerier {
	t.Helper()
	base := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	return &stubQuerier{
		items: []db.ListPurchasedItemsByGuardianMonthRow{
			tuitionRow(t, "0d4f0a35-8a7e-4f09-9a30-111111111111", "算数", 8000, base),
			tuitionRow(t, "0d4f0a35-8a7e-4f09-9a30-222222222222", "国語", 8000, base.Add(time.Minute)),
			tuitionRow(t, "0d4f0a35-8a7e-4f09-9a30-333333333333", "英語", 8000, base.Add(2*time.Minute)),
			tuitionRow(t, "0d4f0a35-8a7e-4f09-9a30-444444444444", "理科", 8000, base.Add(3*time.Minute)),
		},
		noAccount: true,
	}
}

func TestBuildStatementComputesTotalsAndPayable(t *testing.T) {
	q := fourCourseQuerier(t)
	svc := newTestService(t, q)

	stmt, err := svc.BuildStatement(context.Background(), testGuardianID, "2025-04")
	require.NoError(t, err)

	require.Equal(t, int64(32000), stmt.TotalAmount)
	// Four courses pool to four miles; two after the base deduction, one pair.
	require.Equal(t, 4, stmt.Miles.TotalCourses)
	require.Equal(t, int64(500), stmt.MileDiscount)
	require.Equal(t, MileSourceLocal, stmt.MileDiscountSource)
	require.Equal(t, int64(31500), stmt.PayableAmount)
}

func TestBuildStatementServerPotentialWins(t *testing.T) {
	q := fourCourseQuerier(t)
	q.noAccount = false
	q.account = db.MileAccount{Balance: 10, PotentialDiscount: 1500}
	svc := newTestService(t, q)

	stmt, err := svc.BuildStatement(context.Background(), testGuardianID, "2025-04")
	require.NoError(t, err)

	require.Equal(t, int64(1500), stmt.MileDiscount)
	require.Equal(t, MileSourceServer, stmt.MileDiscountSource)
	require.Equal(t, int64(30500), stmt.PayableAmount)
}

func TestBuildStatementAppliesFSDiscounts(t *testing.T) {
	q := fourCourseQuerier(t)
	var fsID pgtype.UUID
	require.NoError(t, fsID.Scan("0d4f0a35-8a7e-4f09-9a30-555555555555"))
	q.discounts = []db.FsDiscount{
		{ID: fsID, DiscountType: "referral", DiscountValue: 2000, BillingMonth: "2025-04"},
		{ID: fsID, DiscountType: "referral", DiscountValue: 1000, BillingMonth: "2025-04"},
	}
	svc := newTestService(t, q)

	stmt, err := svc.BuildStatement(context.Background(), testGuardianID, "2025-04")
	require.NoError(t, err)

	require.Equal(t, int64(3000), stmt.FSDiscountTotal)
	require.Equal(t, int64(32000-500-3000), stmt.PayableAmount)
}

func TestBuildStatementPayableFloorsAtZero(t *testing.T) {
	base := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	q := &stubQuerier{
		items: []db.ListPurchasedItemsByGuardianMonthRow{
			tuitionRow(t, "0d4f0a35-8a7e-4f09-9a30-111111111111", "算数", 1000, base),
		},
		account: db.MileAccount{PotentialDiscount: 5000},
	}
	svc := newTestService(t, q)

	stmt, err := svc.BuildStatement(context.Background(), testGuardianID, "2025-04")
	require.NoError(t, err)
	require.Equal(t, int64(0), stmt.PayableAmount)
}

func TestBuildStatementServesFromCache(t *testing.T) {
	q := fourCourseQuerier(t)
	svc := newTestService(t, q)

	first, err := svc.BuildStatement(context.Background(), testGuardianID, "2025-04")
	require.NoError(t, err)
	require.Equal(t, 1, q.listCalls)

	second, err := svc.BuildStatement(context.Background(), testGuardianID, "2025-04")
	require.NoError(t, err)
	require.Equal(t, 1, q.listCalls)
	require.Equal(t, first.PayableAmount, second.PayableAmount)
}

func TestInvalidateForcesRecompute(t *testing.T) {
	q := fourCourseQuerier(t)
	svc := newTestService(t, q)

	_, err := svc.BuildStatement(context.Background(), testGuardianID, "2025-04")
	require.NoError(t, err)

	require.NoError(t, svc.Invalidate(context.Background(), testGuardianID, "2025-04"))

	_, err = svc.BuildStatement(context.Background(), testGuardianID, "2025-04")
	require.NoError(t, err)
	require.Equal(t, 2, q.listCalls)
}

func TestWarmPopulatesCache(t *testing.T) {
	q := fourCourseQuerier(t)
	svc := newTestService(t, q)

	require.NoError(t, svc.Warm(context.Background(), testGuardianID, "2025-04"))
	require.Equal(t, 1, q.listCalls)

	stmt, err := svc.BuildStatement(context.Background(), testGuardianID, "2025-04")
	require.NoError(t, err)
	require.Equal(t, 1, q.listCalls)
	require.Equal(t, int64(31500), stmt.PayableAmount)
}

func TestMilesSummaryProjection(t *testing.T) {
	q := fourCourseQuerier(t)
	svc := newTestService(t, q)

	summary, err := svc.MilesSummary(context.Background(), testGuardianID, "2025-04")
	require.NoError(t, err)
	require.Equal(t, 4, summary.Miles.TotalMiles)
	require.Equal(t, 2, summary.Miles.EffectiveMiles)
	require.Equal(t, int64(500), summary.MileDiscount)
}
