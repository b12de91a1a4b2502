package types

import "time"

// SaleOptions captures a variant's configured discount window. The sweep flips
// IsOnSale at StartDate and clears the whole struct at EndDate.
type SaleOptions struct {
	StartDate          time.Time `json:"startDate"`
	EndDate            time.Time `json:"endDate"`
	DiscountPercentage int       `json:"discountPercentage"`
	SalePriceCents     int       `json:"salePriceCents"`
}
