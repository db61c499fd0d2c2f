package handler

import (
	"strings"

	"github.com/peertrade/backend/internal/domain/shared"
	"github.com/peertrade/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
)

// parseAmount parses a decimal amount from its string form. Amounts
// travel as strings end to end so no float rounding can creep in.
func parseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}

// toFilter converts list request parameters into a repository filter
func toFilter(req dto.ListRequest) shared.Filter {
	filter := shared.DefaultFilter()
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = req.PageSize
	}
	if req.OrderBy != "" {
		filter.OrderBy = req.OrderBy
	}
	if req.OrderDir != "" {
		filter.OrderDir = req.OrderDir
	}
	return filter
}
