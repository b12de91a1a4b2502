package enums

import "fmt"

// ScheduleKind distinguishes the effect a schedule entry applies when due.
type ScheduleKind string

const (
	ScheduleKindSaleStart   ScheduleKind = "sale_start"
	ScheduleKindSaleEnd     ScheduleKind = "sale_end"
	ScheduleKindOrderExpiry ScheduleKind = "order_expiry"
)

var validScheduleKinds = []ScheduleKind{
	ScheduleKindSaleStart,
	ScheduleKindSaleEnd,
	ScheduleKindOrderExpiry,
}

// String implements fmt.Stringer.
func (k ScheduleKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known ScheduleKind.
func (k ScheduleKind) IsValid() bool {
	for _, candidate := range validScheduleKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseScheduleKind converts raw input into a ScheduleKind.
func ParseScheduleKind(value string) (ScheduleKind, error) {
	for _, candidate := range validScheduleKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid schedule kind %q", value)
}
