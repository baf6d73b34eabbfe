package purchaseflow

import (
	"context"

	"iapgate/internal/shared/i18n"
)

// NoticeKind classifies a user-facing notice.
type NoticeKind string

const (
	// NoticePurchaseFailed is a store-reported failure other than a
	// cancellation. Code carries the store's error code.
	NoticePurchaseFailed NoticeKind = "purchase_failed"
	// NoticeValidationFailed is the generic purchase error shown for a
	// rejected receipt or an unreachable validator.
	NoticeValidationFailed NoticeKind = "validation_failed"
	// NoticeRequestFailed is a purchase the store refused to start.
	NoticeRequestFailed NoticeKind = "request_failed"
	// NoticeExpired reports an inactive subscription.
	NoticeExpired NoticeKind = "expired"
)

// Notice is a blocking, dismissible message for the user.
type Notice struct {
	Kind      NoticeKind
	Code      string
	ProductID string
}

// Text renders the notice in lang.
func (n Notice) Text(lang i18n.Lang) (title, message string) {
	switch n.Kind {
	case NoticePurchaseFailed:
		return i18n.MsgErrorTitle(lang), i18n.MsgPurchaseErrorWithCode(lang, n.Code)
	case NoticeExpired:
		return i18n.MsgExpiredTitle(lang), i18n.MsgExpired(lang)
	default:
		return i18n.MsgErrorTitle(lang), i18n.MsgPurchaseError(lang)
	}
}

// Notifier presents notices to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notice)

func (f NotifierFunc) Notify(ctx context.Context, n Notice) {
	f(ctx, n)
}
