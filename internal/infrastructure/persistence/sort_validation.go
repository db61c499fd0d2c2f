package persistence

import (
	"strings"

	"github.com/peertrade/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// applyListFilter applies pagination and whitelisted ordering to a list query.
// The sort column is validated against allowedFields so caller-supplied
// ordering can never reach the SQL text unchecked.
func applyListFilter(query *gorm.DB, filter shared.Filter, allowedFields map[string]bool, defaultField string) *gorm.DB {
	field := ValidateSortField(filter.OrderBy, allowedFields, defaultField)
	dir := ValidateSortOrder(filter.OrderDir)
	query = query.Order(field + " " + dir)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	return query
}

// CommonSortFields contains fields common to most entities
var CommonSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
}

// LedgerEntrySortFields contains allowed sort fields for ledger entries
var LedgerEntrySortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"type":         true,
	"amount":       true,
	"currency":     true,
	"reference_id": true,
}

// OrderSortFields contains allowed sort fields for escrow orders
var OrderSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"reference":  true,
	"status":     true,
	"asset":      true,
	"expires_at": true,
}

// AdSortFields contains allowed sort fields for liquidity ads
var AdSortFields = map[string]bool{
	"id":               true,
	"created_at":       true,
	"updated_at":       true,
	"asset":            true,
	"price":            true,
	"available_amount": true,
	"status":           true,
}

// WithdrawalSortFields contains allowed sort fields for withdrawal requests
var WithdrawalSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"status":     true,
	"amount":     true,
	"currency":   true,
}
