package billing

import (
	"reflect"
	"testing"
	"time"
)

func tuitionItem(id, studentID, month string, price Money) PurchasedItem {
	return PurchasedItem{
		ID:           id,
		StudentID:    studentID,
		StudentName:  "田中太郎",
		BrandName:    "進学ゼミ",
		ProductType:  ProductTuition,
		BillingMonth: month,
		UnitPrice:    price,
		Quantity:     1,
		FinalPrice:   price,
		CreatedAt:    time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestGroupPurchasesFiltersBillingMonth(t *testing.T) {
	items := []PurchasedItem{
		tuitionItem("a", "s1", "2026-04", 8000),
		tuitionItem("b", "s1", "2026-03", 9000),
		tuitionItem("c", "s1", "2026-05", 9000),
	}
	groups := GroupPurchases(items, "2026-04")
	if len(groups) != 1 {
		t.Fatalf("expected 1 student group, got %d", len(groups))
	}
	if len(groups[0].Tickets) != 1 || len(groups[0].Tickets[0].Items) != 1 {
		t.Fatalf("expected exactly the in-month item, got %+v", groups[0].Tickets)
	}
	if groups[0].Tickets[0].Items[0].ItemID != "a" {
		t.Fatalf("wrong item survived filter: %s", groups[0].Tickets[0].Items[0].ItemID)
	}
}

func TestGroupPurchasesEmptyMonth(t *testing.T) {
	groups := GroupPurchases([]PurchasedItem{tuitionItem("a", "s1", "2026-03", 8000)}, "2026-04")
	if len(groups) != 0 {
		t.Fatalf("expected empty result for month without records, got %d groups", len(groups))
	}
}

func TestGroupPurchasesFacilityDedupKeepsHighest(t *testing.T) {
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	facility := func(id string, price Money, offset time.Duration) PurchasedItem {
		return PurchasedItem{
			ID:           id,
			StudentID:    "s1",
			StudentName:  "田中太郎",
			BrandName:    "進学ゼミ",
			ProductType:  ProductFacility,
			BillingMonth: "2026-04",
			UnitPrice:    price,
			Quantity:     1,
			FinalPrice:   price,
			CreatedAt:    base.Add(offset),
		}
	}
	items := []PurchasedItem{
		facility("f1", 300, 0),
		facility("f2", 500, time.Minute),
		facility("f3", 200, 2*time.Minute),
	}
	groups := GroupPurchases(items, "2026-04")
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	group := groups[0]
	if len(group.Tickets) != 1 || len(group.Tickets[0].Items) != 1 {
		t.Fatalf("expected a single surviving facility item, got %+v", group.Tickets)
	}
	if group.Tickets[0].Items[0].ItemID != "f2" {
		t.Fatalf("expected highest-priced facility item to survive, got %s", group.Tickets[0].Items[0].ItemID)
	}
	// Dropped items are excluded from totals, not merely hidden.
	if group.TotalAmount != 500 {
		t.Fatalf("expected total 500, got %d", group.TotalAmount)
	}
}

func TestGroupPurchasesFacilityTieFirstSeenWins(t *testing.T) {
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	items := []PurchasedItem{
		{ID: "f1", StudentID: "s1", ProductType: ProductFacility, BillingMonth: "2026-04", UnitPrice: 500, Quantity: 1, FinalPrice: 500, CreatedAt: base},
		{ID: "f2", StudentID: "s1", ProductType: ProductFacility, BillingMonth: "2026-04", UnitPrice: 500, Quantity: 1, FinalPrice: 500, CreatedAt: base.Add(time.Minute)},
	}
	groups := GroupPurchases(items, "2026-04")
	if got := groups[0].Tickets[0].Items[0].ItemID; got != "f1" {
		t.Fatalf("expected first-seen facility item on price tie, got %s", got)
	}
}

func TestGroupPurchasesDiscountArithmetic(t *testing.T) {
	item := PurchasedItem{
		ID:             "d1",
		StudentID:      "s1",
		StudentName:    "田中太郎",
		BrandName:      "進学ゼミ",
		ProductType:    ProductTuition,
		BillingMonth:   "2026-04",
		UnitPrice:      1000,
		Quantity:       1,
		DiscountAmount: 200,
		FinalPrice:     800,
		CreatedAt:      time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}
	groups := GroupPurchases([]PurchasedItem{item}, "2026-04")
	ticket := groups[0].Tickets[0]
	row := ticket.Items[0]
	if row.OriginalAmount == nil || *row.OriginalAmount != 1000 {
		t.Fatalf("expected original amount 1000, got %v", row.OriginalAmount)
	}
	if ticket.FinalTotal != 800 {
		t.Fatalf("expected final total 800, got %d", ticket.FinalTotal)
	}
	if ticket.DiscountAmount != 200 {
		t.Fatalf("expected ticket discount 200, got %d", ticket.DiscountAmount)
	}
	if ticket.DiscountRate != 20 {
		t.Fatalf("expected discount rate 20, got %d", ticket.DiscountRate)
	}
}

func TestGroupPurchasesNoDiscountOmitsOriginal(t *testing.T) {
	groups := GroupPurchases([]PurchasedItem{tuitionItem("a", "s1", "2026-04", 8000)}, "2026-04")
	ticket := groups[0].Tickets[0]
	if ticket.Items[0].OriginalAmount != nil {
		t.Fatalf("expected no original amount without discount, got %v", *ticket.Items[0].OriginalAmount)
	}
	if ticket.OriginalTotal != nil {
		t.Fatalf("expected no ticket original total, got %v", *ticket.OriginalTotal)
	}
}

func TestGroupPurchasesUnknownStudentPlaceholder(t *testing.T) {
	item := PurchasedItem{
		ID:           "x1",
		ProductType:  ProductExpense,
		ProductName:  "模試代",
		BillingMonth: "2026-04",
		UnitPrice:    3000,
		Quantity:     1,
		FinalPrice:   3000,
	}
	groups := GroupPurchases([]PurchasedItem{item}, "2026-04")
	if groups[0].StudentID != UnknownStudentKey {
		t.Fatalf("expected unknown student key, got %s", groups[0].StudentID)
	}
	if groups[0].StudentName != UnknownStudentLabel {
		t.Fatalf("expected placeholder name, got %s", groups[0].StudentName)
	}
	// Missing brand falls back to the product name.
	if groups[0].Tickets[0].BrandName != "模試代" {
		t.Fatalf("expected product name as brand key, got %s", groups[0].Tickets[0].BrandName)
	}
	// Zero CreatedAt falls back to the billing month string.
	if groups[0].Tickets[0].PurchaseDate != "2026-04" {
		t.Fatalf("expected billing month fallback, got %s", groups[0].Tickets[0].PurchaseDate)
	}
}

func TestGroupPurchasesBrandPartitionPerStudent(t *testing.T) {
	base := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	items := []PurchasedItem{
		{ID: "a", StudentID: "s1", StudentName: "兄", BrandName: "進学ゼミ", ProductType: ProductTuition, BillingMonth: "2026-04", UnitPrice: 8000, Quantity: 1, FinalPrice: 8000, CreatedAt: base},
		{ID: "b", StudentID: "s1", StudentName: "兄", BrandName: "英会話ラボ", ProductType: ProductMonthlyFee, BillingMonth: "2026-04", UnitPrice: 2000, Quantity: 1, FinalPrice: 2000, CreatedAt: base.Add(time.Hour)},
		{ID: "c", StudentID: "s2", StudentName: "妹", BrandName: "進学ゼミ", ProductType: ProductTuition, BillingMonth: "2026-04", UnitPrice: 7000, Quantity: 1, FinalPrice: 7000, CreatedAt: base.Add(2 * time.Hour)},
	}
	groups := GroupPurchases(items, "2026-04")
	if len(groups) != 2 {
		t.Fatalf("expected 2 student groups, got %d", len(groups))
	}
	if len(groups[0].Tickets) != 2 {
		t.Fatalf("expected 2 brand tickets for first student, got %d", len(groups[0].Tickets))
	}
	if groups[0].TotalAmount != 10000 || groups[1].TotalAmount != 7000 {
		t.Fatalf("unexpected totals: %d / %d", groups[0].TotalAmount, groups[1].TotalAmount)
	}
	if groups[0].Tickets[0].Items[0].Description != "授業料" {
		t.Fatalf("expected localized tuition label, got %s", groups[0].Tickets[0].Items[0].Description)
	}
	if groups[0].Tickets[1].Items[0].Description != "月会費" {
		t.Fatalf("expected localized monthly fee label, got %s", groups[0].Tickets[1].Items[0].Description)
	}
}

func TestGroupPurchasesIdempotent(t *testing.T) {
	items := []PurchasedItem{
		tuitionItem("a", "s1", "2026-04", 8000),
		tuitionItem("b", "s2", "2026-04", 7000),
	}
	first := GroupPurchases(items, "2026-04")
	second := GroupPurchases(items, "2026-04")
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical output on repeated calls:\n%+v\n%+v", first, second)
	}
}
