package enums

import "fmt"

// PurchaseKind discriminates the four purchase record variants.
type PurchaseKind string

const (
	PurchaseKindCoursePurchase PurchaseKind = "course_purchase"
	PurchaseKindCustomCourse   PurchaseKind = "custom_course"
	PurchaseKindAIStrategy     PurchaseKind = "ai_strategy"
	PurchaseKindTopup          PurchaseKind = "topup"
)

var validPurchaseKinds = []PurchaseKind{
	PurchaseKindCoursePurchase,
	PurchaseKindCustomCourse,
	PurchaseKindAIStrategy,
	PurchaseKindTopup,
}

// String implements fmt.Stringer.
func (k PurchaseKind) String() string {
	return string(k)
}

// IsValid reports whether the value is known.
func (k PurchaseKind) IsValid() bool {
	for _, candidate := range validPurchaseKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// RequiresGeneration reports whether the variant runs the generation pipeline.
func (k PurchaseKind) RequiresGeneration() bool {
	return k == PurchaseKindCustomCourse || k == PurchaseKindAIStrategy
}

// ParsePurchaseKind converts raw input into a PurchaseKind.
func ParsePurchaseKind(value string) (PurchaseKind, error) {
	for _, candidate := range validPurchaseKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purchase kind %q", value)
}
