package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxPriceScale is the number of decimal places money columns keep.
const MaxPriceScale = 2

// ValidateOrderRequest checks every structural and business rule and
// reports all violations at once, joined with "; ".
func ValidateOrderRequest(req OrderRequest) error {
	var problems []string

	if req.CustomerID <= 0 {
		problems = append(problems, "customer_id must be greater than 0")
	}

	switch {
	case strings.TrimSpace(req.User) == "":
		problems = append(problems, "user is required")
	case utf8.RuneCountInString(req.User) > MaxUserLen:
		problems = append(problems, fmt.Sprintf("user must not exceed %d characters", MaxUserLen))
	}

	if len(req.Items) == 0 {
		problems = append(problems, "order must contain at least one item")
	}

	for i, it := range req.Items {
		if it.ProductID <= 0 {
			problems = append(problems, fmt.Sprintf("items[%d]: product_id must be greater than 0", i))
		}
		if it.Quantity <= 0 {
			problems = append(problems, fmt.Sprintf("items[%d]: quantity must be greater than 0", i))
		}
		switch {
		case !it.UnitPrice.IsPositive():
			problems = append(problems, fmt.Sprintf("items[%d]: price must be greater than 0", i))
		case !it.UnitPrice.Equal(it.UnitPrice.Truncate(MaxPriceScale)):
			problems = append(problems, fmt.Sprintf("items[%d]: price must have at most %d decimal places", i, MaxPriceScale))
		}
	}

	if len(problems) > 0 {
		return InvalidOrder(strings.Join(problems, "; "))
	}
	return nil
}
