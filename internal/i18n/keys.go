// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeyInternalError      = "error.internal"
	KeyRateLimited        = "error.rate_limited"
	KeyGatewayTimeout     = "gateway.timeout"
	KeyNotFound           = "error.not_found"
	KeyDuplicate          = "error.duplicate"
	KeyStorageUnavailable = "storage.unavailable"

	// Authentication
	KeyAuthRequired     = "auth.required"
	KeyAuthInvalidToken = "auth.invalid_token"
	KeyAccessDenied     = "auth.forbidden"

	// Users
	KeyUserNotFound = "user.not_found"

	// Products
	KeyProductNotFound     = "product.not_found"
	KeyProductAlreadyVoted = "product.already_voted"

	// Reports and reviews
	KeyReportNotFound = "report.not_found"
	KeyReviewNotFound = "review.not_found"

	// Coupons
	KeyCouponNotFound  = "coupon.not_found"
	KeyCouponDuplicate = "coupon.duplicate"

	// Validation
	KeyValidationInvalid = "validation.invalid"

	// File Upload
	KeyFileInvalidType = "file.invalid_type"
	KeyFileTooLarge    = "file.too_large"
)

// NotFoundKey returns the not-found message key for a resource name.
func NotFoundKey(resource string) string {
	switch resource {
	case "user":
		return KeyUserNotFound
	case "product":
		return KeyProductNotFound
	case "report":
		return KeyReportNotFound
	case "review":
		return KeyReviewNotFound
	case "coupon":
		return KeyCouponNotFound
	default:
		return KeyNotFound
	}
}

// DuplicateKey returns the conflict message key for a resource name.
func DuplicateKey(resource string) string {
	if resource == "coupon" {
		return KeyCouponDuplicate
	}
	return KeyDuplicate
}
