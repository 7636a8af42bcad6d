package billing

import "strings"

const (
	// MileDiscountUnit is the discount earned per pair of effective miles.
	MileDiscountUnit Money = 500
	// PokkiriFlatDiscount is the fixed discount for a pokkiri-only household.
	PokkiriFlatDiscount Money = 500

	// The first two courses in a month earn no discount credit.
	mileBaseDeduction = 2
	milesPerDiscount  = 2

	pokkiriPrice        Money = 1000
	pokkiriPriceWithTax Money = 1100
)

// CalculateMiles counts qualifying tuition items across all siblings for the
// billing month and derives the tiered mileage discount. Every tuition line
// counts as one mile; identical course names are not deduplicated.
func CalculateMiles(items []PurchasedItem, billingMonth string) MileCalculation {
	calc := MileCalculation{Courses: []CourseInfo{}}

	pokkiri := 0
	for _, item := range filterMonth(items, billingMonth) {
		if item.ProductType != ProductTuition {
			continue
		}
		course := CourseInfo{
			ItemID:     item.ID,
			CourseName: courseName(item),
			Price:      item.FinalPrice,
			IsPokkiri:  isPokkiriCourse(courseName(item), item.FinalPrice),
		}
		if course.IsPokkiri {
			pokkiri++
		}
		calc.Courses = append(calc.Courses, course)
	}

	calc.TotalCourses = len(calc.Courses)
	calc.TotalMiles = calc.TotalCourses
	normal := calc.TotalCourses - pokkiri

	// A household buying nothing but flat 1000-yen promo courses gets a
	// fixed discount instead of the mileage formula.
	if pokkiri >= 2 && normal == 0 {
		calc.Is1000PokkiriDoubleCourse = true
		calc.MileDiscount = PokkiriFlatDiscount
		return calc
	}

	if calc.TotalCourses >= 2 {
		effective := calc.TotalMiles - mileBaseDeduction
		if effective < 0 {
			effective = 0
		}
		calc.EffectiveMiles = effective
		calc.MileDiscount = Money(effective/milesPerDiscount) * MileDiscountUnit
	}
	return calc
}

func courseName(item PurchasedItem) string {
	if strings.TrimSpace(item.CourseName) != "" {
		return item.CourseName
	}
	return item.ProductName
}

// isPokkiriCourse classifies flat low-price promo courses by free-text name
// matching, as billed upstream. The fragile matching is intentional contract:
// changing it would alter billing output.
// TODO: replace the name matching once the purchase feed carries a product
// category flag for the pokkiri line.
func isPokkiriCourse(name string, price Money) bool {
	if strings.Contains(name, "ポッキリ") || strings.Contains(name, "ぽっきり") {
		return true
	}
	if strings.Contains(name, "1000円") && price <= pokkiriPriceWithTax {
		return true
	}
	return price == pokkiriPrice || price == pokkiriPriceWithTax
}
