package billing

import (
	"math"
	"sort"
	"strings"
)

const purchaseDateLayout = "2006/01/02"

// GroupPurchases partitions the guardian's purchased items for the given
// billing month into per-student, per-brand receipt groupings. Items outside
// the month are ignored entirely. Within each student, only the single
// highest-priced facility item is billed; the rest are excluded from all
// totals, not merely hidden.
func GroupPurchases(items []PurchasedItem, billingMonth string) []StudentGroup {
	filtered := filterMonth(items, billingMonth)
	if len(filtered) == 0 {
		return []StudentGroup{}
	}

	// First-seen wins facility ties, so fix the iteration order up front.
	sort.SliceStable(filtered, func(i, j int) bool {
		if !filtered[i].CreatedAt.Equal(filtered[j].CreatedAt) {
			return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
		}
		return filtered[i].ID < filtered[j].ID
	})

	byStudent := map[string][]PurchasedItem{}
	var studentOrder []string
	for _, item := range filtered {
		key := studentKey(item)
		if _, seen := byStudent[key]; !seen {
			studentOrder = append(studentOrder, key)
		}
		byStudent[key] = append(byStudent[key], item)
	}

	groups := make([]StudentGroup, 0, len(studentOrder))
	for _, key := range studentOrder {
		groups = append(groups, buildStudentGroup(key, byStudent[key]))
	}
	return groups
}

func filterMonth(items []PurchasedItem, billingMonth string) []PurchasedItem {
	out := make([]PurchasedItem, 0, len(items))
	for _, item := range items {
		if item.BillingMonth == billingMonth {
			out = append(out, item)
		}
	}
	return out
}

func studentKey(item PurchasedItem) string {
	if strings.TrimSpace(item.StudentID) != "" {
		return item.StudentID
	}
	return UnknownStudentKey
}

func studentLabel(items []PurchasedItem) string {
	for _, item := range items {
		if strings.TrimSpace(item.StudentName) != "" {
			return item.StudentName
		}
	}
	return UnknownStudentLabel
}

// dedupFacility keeps only the facility item with the highest final price.
// Strict > comparison over the incoming order means the first item at the
// maximum wins ties; the contract is part of the billing output.
func dedupFacility(items []PurchasedItem) []PurchasedItem {
	bestIdx := -1
	for i, item := range items {
		if item.ProductType != ProductFacility {
			continue
		}
		if bestIdx < 0 || item.FinalPrice > items[bestIdx].FinalPrice {
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return items
	}
	out := make([]PurchasedItem, 0, len(items))
	for i, item := range items {
		if item.ProductType == ProductFacility && i != bestIdx {
			continue
		}
		out = append(out, item)
	}
	return out
}

func brandKey(item PurchasedItem) string {
	if strings.TrimSpace(item.BrandName) != "" {
		return item.BrandName
	}
	if strings.TrimSpace(item.ProductName) != "" {
		return item.ProductName
	}
	return FallbackLabel
}

func buildStudentGroup(key string, items []PurchasedItem) StudentGroup {
	group := StudentGroup{
		StudentID:   key,
		StudentName: studentLabel(items),
	}

	deduped := dedupFacility(items)
	byBrand := map[string][]PurchasedItem{}
	var brandOrder []string
	for _, item := range deduped {
		k := brandKey(item)
		if _, seen := byBrand[k]; !seen {
			brandOrder = append(brandOrder, k)
		}
		byBrand[k] = append(byBrand[k], item)
	}

	hasOriginal := false
	var totalOriginal Money
	for _, brand := range brandOrder {
		ticket := buildTicket(brand, byBrand[brand])
		group.Tickets = append(group.Tickets, ticket)
		group.TotalAmount += ticket.FinalTotal
		group.TotalDiscount += ticket.DiscountAmount
		if ticket.OriginalTotal != nil {
			hasOriginal = true
			totalOriginal += *ticket.OriginalTotal
		} else {
			totalOriginal += ticket.FinalTotal
		}
	}
	if hasOriginal {
		group.TotalOriginal = &totalOriginal
	}
	return group
}

func buildTicket(brand string, items []PurchasedItem) Ticket {
	ticket := Ticket{
		BrandName:    brand,
		PurchaseDate: items[0].BillingMonth,
	}
	if !items[0].CreatedAt.IsZero() {
		ticket.PurchaseDate = items[0].CreatedAt.Format(purchaseDateLayout)
	}

	hasOriginal := false
	var originalTotal Money
	for _, item := range items {
		row := TicketItem{
			ItemID:      item.ID,
			Description: ProductTypeLabel(item.ProductType),
			Amount:      item.FinalPrice,
		}
		if item.DiscountAmount > 0 {
			original := item.UnitPrice * Money(item.Quantity)
			row.OriginalAmount = &original
			hasOriginal = true
			originalTotal += original
		} else {
			originalTotal += item.FinalPrice
		}
		ticket.Items = append(ticket.Items, row)
		ticket.FinalTotal += row.Amount
	}

	if hasOriginal {
		ticket.OriginalTotal = &originalTotal
		if diff := originalTotal - ticket.FinalTotal; diff > 0 {
			ticket.DiscountAmount = diff
			if originalTotal > 0 {
				ticket.DiscountRate = int(math.Round(float64(diff) / float64(originalTotal) * 100))
			}
		}
	}
	return ticket
}
