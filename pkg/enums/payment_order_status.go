package enums

import "fmt"

// PaymentOrderStatus tracks a gateway top-up order.
type PaymentOrderStatus string

const (
	PaymentOrderStatusCreated PaymentOrderStatus = "CREATED"
	PaymentOrderStatusPaid    PaymentOrderStatus = "PAID"
	PaymentOrderStatusFailed  PaymentOrderStatus = "FAILED"
)

var validPaymentOrderStatuses = []PaymentOrderStatus{
	PaymentOrderStatusCreated,
	PaymentOrderStatusPaid,
	PaymentOrderStatusFailed,
}

// IsValid reports whether the value is a known PaymentOrderStatus.
func (s PaymentOrderStatus) IsValid() bool {
	for _, candidate := range validPaymentOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePaymentOrderStatus converts raw input into PaymentOrderStatus.
func ParsePaymentOrderStatus(value string) (PaymentOrderStatus, error) {
	for _, candidate := range validPaymentOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment order status %q", value)
}
