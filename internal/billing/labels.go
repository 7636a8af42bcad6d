package billing

// FallbackLabel is used for product types without a known receipt label and
// for items missing both brand and product names.
const FallbackLabel = "その他"

var productTypeLabels = map[string]string{
	ProductTuition:    "授業料",
	ProductMonthlyFee: "月会費",
	ProductTextbook:   "教材費",
	ProductEnrollment: "入会金",
	ProductFacility:   "設備費",
	ProductExpense:    "諸経費",
}

// ProductTypeLabel returns the localized receipt label for a product type.
func ProductTypeLabel(productType string) string {
	if label, ok := productTypeLabels[productType]; ok {
		return label
	}
	return FallbackLabel
}
