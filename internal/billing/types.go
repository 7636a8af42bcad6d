package billing

import "time"

// Money represents a monetary value in yen.
type Money = int64

// Product types attached to purchased line items. The type decides which
// items earn miles and how the line is labelled on a receipt.
const (
	ProductTuition    = "tuition"
	ProductMonthlyFee = "monthly_fee"
	ProductTextbook   = "textbook"
	ProductEnrollment = "enrollment"
	ProductFacility   = "facility"
	ProductExpense    = "expense"
)

// UnknownStudentKey groups items whose student reference is unset.
const UnknownStudentKey = "unknown"

// UnknownStudentLabel is the display name for items without a student.
const UnknownStudentLabel = "未指定"

// PurchasedItem is one billed line item fetched from storage. Amounts are
// post-tax yen; FinalPrice is authoritative, UnitPrice*Quantity is the
// pre-discount reference used to detect whether a discount applies.
type PurchasedItem struct {
	ID             string    `json:"id"`
	StudentID      string    `json:"student_id,omitempty"`
	StudentName    string    `json:"student_name,omitempty"`
	BrandName      string    `json:"brand_name,omitempty"`
	ProductName    string    `json:"product_name,omitempty"`
	CourseName     string    `json:"course_name,omitempty"`
	ProductType    string    `json:"product_type"`
	BillingMonth   string    `json:"billing_month"`
	UnitPrice      Money     `json:"unit_price"`
	Quantity       int32     `json:"quantity"`
	DiscountAmount Money     `json:"discount_amount"`
	FinalPrice     Money     `json:"final_price"`
	CreatedAt      time.Time `json:"created_at"`
}

// TicketItem is one receipt row. OriginalAmount is set only when the source
// item carried a discount.
type TicketItem struct {
	ItemID         string `json:"item_id"`
	Description    string `json:"description"`
	Amount         Money  `json:"amount"`
	OriginalAmount *Money `json:"original_amount,omitempty"`
}

// Ticket is a receipt grouping of one student's line items under one brand
// for one billing month.
type Ticket struct {
	BrandName      string       `json:"brand_name"`
	PurchaseDate   string       `json:"purchase_date"`
	Items          []TicketItem `json:"items"`
	FinalTotal     Money        `json:"final_total"`
	OriginalTotal  *Money       `json:"original_total,omitempty"`
	DiscountAmount Money        `json:"discount_amount"`
	DiscountRate   int          `json:"discount_rate"`
}

// StudentGroup aggregates one student's tickets within a billing month.
type StudentGroup struct {
	StudentID     string   `json:"student_id"`
	StudentName   string   `json:"student_name"`
	Tickets       []Ticket `json:"tickets"`
	TotalAmount   Money    `json:"total_amount"`
	TotalOriginal *Money   `json:"total_original,omitempty"`
	TotalDiscount Money    `json:"total_discount"`
}

// CourseInfo describes one mile-qualifying tuition line.
type CourseInfo struct {
	ItemID     string `json:"item_id"`
	CourseName string `json:"course_name"`
	Price      Money  `json:"price"`
	IsPokkiri  bool   `json:"is_pokkiri"`
}

// MileCalculation is the household mileage summary for one billing month.
// Miles pool across all siblings of the guardian.
type MileCalculation struct {
	TotalCourses              int          `json:"total_courses"`
	TotalMiles                int          `json:"total_miles"`
	EffectiveMiles            int          `json:"effective_miles"`
	MileDiscount              Money        `json:"mile_discount"`
	Is1000PokkiriDoubleCourse bool         `json:"is_1000_pokkiri_double_course"`
	Courses                   []CourseInfo `json:"courses"`
}

// MileInfo is the server-side mileage account state. A positive
// PotentialDiscount takes precedence over the local calculation.
type MileInfo struct {
	Balance           Money `json:"balance"`
	PotentialDiscount Money `json:"potential_discount"`
}

// FSDiscount is a friend-referral discount, computed upstream and applied
// here as-is.
type FSDiscount struct {
	ID            string     `json:"id"`
	Title         string     `json:"title,omitempty"`
	DiscountType  string     `json:"discount_type"`
	DiscountValue Money      `json:"discount_value"`
	ValidFrom     *time.Time `json:"valid_from,omitempty"`
	ValidUntil    *time.Time `json:"valid_until,omitempty"`
}
