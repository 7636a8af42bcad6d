package billing

import (
	"reflect"
	"testing"
)

func mileItem(id, name string, price Money) PurchasedItem {
	return PurchasedItem{
		ID:           id,
		StudentID:    "s1",
		CourseName:   name,
		ProductType:  ProductTuition,
		BillingMonth: "2026-04",
		UnitPrice:    price,
		Quantity:     1,
		FinalPrice:   price,
	}
}

func TestCalculateMilesFiltersMonth(t *testing.T) {
	items := []PurchasedItem{
		mileItem("a", "算数", 8000),
		{ID: "b", CourseName: "国語", ProductType: ProductTuition, BillingMonth: "2026-03", UnitPrice: 8000, Quantity: 1, FinalPrice: 8000},
	}
	calc := CalculateMiles(items, "2026-04")
	if calc.TotalCourses != 1 {
		t.Fatalf("expected 1 course, got %d", calc.TotalCourses)
	}
}

func TestCalculateMilesIgnoresNonTuition(t *testing.T) {
	items := []PurchasedItem{
		mileItem("a", "算数", 8000),
		{ID: "b", ProductType: ProductTextbook, BillingMonth: "2026-04", UnitPrice: 2000, Quantity: 1, FinalPrice: 2000},
		{ID: "c", ProductType: ProductFacility, BillingMonth: "2026-04", UnitPrice: 500, Quantity: 1, FinalPrice: 500},
	}
	calc := CalculateMiles(items, "2026-04")
	if calc.TotalCourses != 1 || calc.TotalMiles != 1 {
		t.Fatalf("expected only tuition to qualify, got %d courses", calc.TotalCourses)
	}
}

func TestCalculateMilesSingleCourseNoDiscount(t *testing.T) {
	calc := CalculateMiles([]PurchasedItem{mileItem("a", "算数", 8000)}, "2026-04")
	if calc.TotalCourses != 1 || calc.MileDiscount != 0 {
		t.Fatalf("expected 1 course and zero discount, got %d / %d", calc.TotalCourses, calc.MileDiscount)
	}
}

func TestCalculateMilesPairFormula(t *testing.T) {
	items := []PurchasedItem{
		mileItem("a", "算数", 8000),
		mileItem("b", "国語", 8000),
		mileItem("c", "理科", 8000),
		mileItem("d", "社会", 8000),
	}
	calc := CalculateMiles(items, "2026-04")
	if calc.TotalCourses != 4 {
		t.Fatalf("expected 4 courses, got %d", calc.TotalCourses)
	}
	if calc.EffectiveMiles != 2 {
		t.Fatalf("expected 2 effective miles, got %d", calc.EffectiveMiles)
	}
	if calc.MileDiscount != 500 {
		t.Fatalf("expected 500 discount, got %d", calc.MileDiscount)
	}
}

func TestCalculateMilesDuplicateCourseNamesBothCount(t *testing.T) {
	items := []PurchasedItem{
		mileItem("a", "算数", 8000),
		mileItem("b", "算数", 8000),
	}
	calc := CalculateMiles(items, "2026-04")
	if calc.TotalCourses != 2 {
		t.Fatalf("expected duplicate names to count twice, got %d", calc.TotalCourses)
	}
}

func TestCalculateMilesPokkiriTriple(t *testing.T) {
	// Three pokkiri courses and no normal courses: the flat rule stays in
	// effect and pays 500, where the general formula would pay
	// floor((3-2)/2)*500 = 0. This divergence is the contract.
	items := []PurchasedItem{
		mileItem("a", "1000円ポッキリ講座", 1000),
		mileItem("b", "1000円ポッキリ講座", 1000),
		mileItem("c", "1000円ポッキリ講座", 1000),
	}
	calc := CalculateMiles(items, "2026-04")
	if !calc.Is1000PokkiriDoubleCourse {
		t.Fatal("expected pokkiri double-course flag")
	}
	if calc.MileDiscount != 500 {
		t.Fatalf("expected flat 500 discount, got %d", calc.MileDiscount)
	}
	if calc.EffectiveMiles != 0 {
		t.Fatalf("expected formula bypass to leave effective miles at 0, got %d", calc.EffectiveMiles)
	}
}

func TestCalculateMilesPokkiriMixedFallsBackToFormula(t *testing.T) {
	items := []PurchasedItem{
		mileItem("a", "1000円ポッキリ講座", 1000),
		mileItem("b", "1000円ポッキリ講座", 1000),
		mileItem("c", "算数", 8000),
	}
	calc := CalculateMiles(items, "2026-04")
	if calc.Is1000PokkiriDoubleCourse {
		t.Fatal("a normal course should disable the flat pokkiri rule")
	}
	if calc.EffectiveMiles != 1 || calc.MileDiscount != 0 {
		t.Fatalf("expected formula result 1 mile / 0 yen, got %d / %d", calc.EffectiveMiles, calc.MileDiscount)
	}
}

func TestPokkiriClassification(t *testing.T) {
	cases := []struct {
		name  string
		price Money
		want  bool
	}{
		{"1000円ポッキリ講座", 1000, true},
		{"ぽっきりコース", 5000, true},
		{"1000円コース", 1100, true},
		{"1000円コース", 1200, false},
		{"通常講座", 1000, true},
		{"通常講座", 1100, true},
		{"通常講座", 8000, false},
	}
	for _, tc := range cases {
		if got := isPokkiriCourse(tc.name, tc.price); got != tc.want {
			t.Fatalf("isPokkiriCourse(%q, %d) = %v, want %v", tc.name, tc.price, got, tc.want)
		}
	}
}

func TestCalculateMilesIdempotent(t *testing.T) {
	items := []PurchasedItem{
		mileItem("a", "算数", 8000),
		mileItem("b", "国語", 8000),
		mileItem("c", "理科", 8000),
	}
	first := CalculateMiles(items, "2026-04")
	second := CalculateMiles(items, "2026-04")
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical output on repeated calls:\n%+v\n%+v", first, second)
	}
}
