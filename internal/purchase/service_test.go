package purchase

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mizuki-dev/backend-juku/internal/common"
	"github.com/mizuki-dev/backend-juku/internal/db"
)

const testGuardianID = "3e8f4a0e-51c4-4f6e-9a3b-6a1d2f9b7c10"

type stubQuerier struct {
	rows    []db.ListPurchasedItemsByGuardianMonthRow
	deleted db.DeletePurchasedItemRow

	deleteErr error
}

func (s *stubQuerier) CreatePurchasedItem(_ context.Context, arg db.CreatePurchasedItemParams) (db.PurchasedItem, error) {
	return db.PurchasedItem{
		GuardianID:   arg.GuardianID,
		StudentID:    arg.StudentID,
		ProductType:  arg.ProductType,
		BillingMonth: arg.BillingMonth,
		UnitPrice:    arg.UnitPrice,
		Quantity:     arg.Quantity,
		FinalPrice:   arg.FinalPrice,
		CreatedAt:    pgtype.Timestamptz{Time: time.Now(), Valid: true},
	}, nil
}

func (s *stubQuerier) DeletePurchasedItem(_ context.Context, _ pgtype.UUID) (db.DeletePurchasedItemRow, error) {
	if s.deleteErr != nil {
		return db.DeletePurchasedItemRow{}, s.deleteErr
	}
	return s.deleted, nil
}

func (s *stubQuerier) ListPurchasedItemsByGuardianMonth(_ context.Context, _ db.ListPurchasedItemsByGuardianMonthParams) ([]db.ListPurchasedItemsByGuardianMonthRow, error) {
	return s.rows, nil
}

func (s *stubQuerier) CountPurchasedItemsByGuardianMonth(_ context.Context, _ db.ListPurchasedItemsByGuardianMonthParams) (int64, error) {
	return int64(len(s.rows)), nil
}

func (s *stubQuerier) CreateFsDiscount(_ context.Context, arg db.CreateFsDiscountParams) (db.FsDiscount, error) {
	return db.FsDiscount{
		GuardianID:    arg.GuardianID,
		Title:         arg.Title,
		DiscountType:  arg.DiscountType,
		DiscountValue: arg.DiscountValue,
		BillingMonth:  arg.BillingMonth,
	}, nil
}

func (s *stubQuerier) DeleteFsDiscount(_ context.Context, _ pgtype.UUID) (db.DeleteFsDiscountRow, error) {
	return db.DeleteFsDiscountRow{GuardianID: s.deleted.GuardianID, BillingMonth: s.deleted.BillingMonth}, nil
}

func (s *stubQuerier) UpsertMileAccount(_ context.Context, arg db.UpsertMileAccountParams) (db.MileAccount, error) {
	return db.MileAccount{GuardianID: arg.GuardianID, Balance: arg.Balance, PotentialDiscount: arg.PotentialDiscount}, nil
}

func (s *stubQuerier) CreateStudent(_ context.Context, arg db.CreateStudentParams) (db.Student, error) {
	return db.Student{GuardianID: arg.GuardianID, Name: arg.Name}, nil
}

type recordingInvalidator struct {
	keys []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, guardianID, month string) error {
	r.keys = append(r.keys, guardianID+"/"+month)
	return nil
}

func newTestService(q *stubQuerier, inv *recordingInvalidator) *Service {
	return &Service{
		Q:          q,
		Validate:   validator.New(),
		Statements: inv,
		Logger:     zerolog.Nop(),
	}
}

func TestCreatePurchaseValidatesPayload(t *testing.T) {
	svc := newTestService(&stubQuerier{}, &recordingInvalidator{})

	_, err := svc.CreatePurchase(context.Background(), CreatePurchaseInput{
		ProductType:  "tuition",
		BillingMonth: "2025-04",
		Quantity:     1,
	})
	require.Error(t, err)
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
}

func TestCreatePurchaseRejectsBadMonth(t *testing.T) {
	svc := newTestService(&stubQuerier{}, &recordingInvalidator{})

	_, err := svc.CreatePurchase(context.Background(), CreatePurchaseInput{
		GuardianID:   testGuardianID,
		ProductType:  "tuition",
		BillingMonth: "2025/04",
		Quantity:     1,
	})
	require.Error(t, err)
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, "INVALID_MONTH", appErr.Code)
}

func TestCreatePurchaseInvalidatesStatement(t *testing.T) {
	inv := &recordingInvalidator{}
	svc := newTestService(&stubQuerier{}, inv)

	view, err := svc.CreatePurchase(context.Background(), CreatePurchaseInput{
		GuardianID:   testGuardianID,
		ProductType:  "tuition",
		BillingMonth: "2025-04",
		UnitPrice:    8000,
		Quantity:     1,
		FinalPrice:   8000,
	})
	require.NoError(t, err)
	require.Equal(t, "2025-04", view.BillingMonth)
	require.Equal(t, []string{testGuardianID + "/2025-04"}, inv.keys)
}

func TestDeletePurchaseNotFound(t *testing.T) {
	svc := newTestService(&stubQuerier{deleteErr: pgx.ErrNoRows}, &recordingInvalidator{})

	err := svc.DeletePurchase(context.Background(), testGuardianID)
	require.Error(t, err)
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
}

func TestDeletePurchaseInvalidatesDeletedScope(t *testing.T) {
	var gid pgtype.UUID
	require.NoError(t, gid.Scan(testGuardianID))
	inv := &recordingInvalidator{}
	svc := newTestService(&stubQuerier{deleted: db.DeletePurchasedItemRow{GuardianID: gid, BillingMonth: "2025-05"}}, inv)

	require.NoError(t, svc.DeletePurchase(context.Background(), testGuardianID))
	require.Equal(t, []string{testGuardianID + "/2025-05"}, inv.keys)
}

func TestListPurchasesPaginates(t *testing.T) {
	q := &stubQuerier{}
	for i := 0; i < 5; i++ {
		var id pgtype.UUID
		require.NoError(t, id.Scan(fmt.Sprintf("0d4f0a35-8a7e-4f09-9a30-%012d", i)))
		q.rows = append(q.rows, db.ListPurchasedItemsByGuardianMonthRow{
			ID:           id,
			ProductType:  "tuition",
			BillingMonth: "2025-04",
			FinalPrice:   1000,
		})
	}
	svc := newTestService(q, &recordingInvalidator{})

	items, pagination, err := svc.ListPurchases(context.Background(), testGuardianID, "2025-04", 2, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, int64(5), pagination.TotalItems)
	require.Equal(t, 2, pagination.Page)

	items, _, err = svc.ListPurchases(context.Background(), testGuardianID, "2025-04", 3, 2)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestUpsertMileAccountInvalidatesWhenMonthGiven(t *testing.T) {
	inv := &recordingInvalidator{}
	svc := newTestService(&stubQuerier{}, inv)

	account, err := svc.UpsertMileAccount(context.Background(), UpsertMileAccountInput{
		GuardianID:        testGuardianID,
		Balance:           6,
		PotentialDiscount: 1500,
		BillingMonth:      "2025-04",
	})
	require.NoError(t, err)
	require.Equal(t, int64(1500), account.PotentialDiscount)
	require.Equal(t, []string{testGuardianID + "/2025-04"}, inv.keys)
}

func TestUpsertMileAccountSkipsInvalidationWithoutMonth(t *testing.T) {
	inv := &recordingInvalidator{}
	svc := newTestService(&stubQuerier{}, inv)

	_, err := svc.UpsertMileAccount(context.Background(), UpsertMileAccountInput{
		GuardianID: testGuardianID,
		Balance:    2,
	})
	require.NoError(t, err)
	require.Empty(t, inv.keys)
}
