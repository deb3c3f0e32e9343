package errors

import (
	"errors"
	"fmt"
)

// Kind identifies an entry of the billing failure taxonomy.
type Kind int

const (
	KindUnknown Kind = iota
	KindBindServiceFailed
	KindAlreadyReleased
	KindAlreadyLaunching
	KindUnableToPurchase
	KindPendingIntentMissing
	KindLostContext
	KindSendIntentFailed
	KindBadResponse
	KindNullPurchaseData
	KindVerificationFailed
	KindUnexpectedType
	KindPurchaseDataError
	KindUserCanceled
	KindUnknownResult
	KindRemoteException
	KindArgumentMissing
	KindConsumeFailed
	KindBillingUnsupported
)

var kindNames = map[Kind]string{
	KindUnknown:              "unknown",
	KindBindServiceFailed:    "bind_service_failed",
	KindAlreadyReleased:      "already_released",
	KindAlreadyLaunching:     "already_launching",
	KindUnableToPurchase:     "unable_to_purchase",
	KindPendingIntentMissing: "pending_intent_missing",
	KindLostContext:          "lost_context",
	KindSendIntentFailed:     "send_intent_failed",
	KindBadResponse:          "bad_response",
	KindNullPurchaseData:     "null_purchase_data",
	KindVerificationFailed:   "verification_failed",
	KindUnexpectedType:       "unexpected_type",
	KindPurchaseDataError:    "purchase_data_error",
	KindUserCanceled:         "user_canceled",
	KindUnknownResult:        "unknown_result",
	KindRemoteException:      "remote_exception",
	KindArgumentMissing:      "argument_missing",
	KindConsumeFailed:        "consume_failed",
	KindBillingUnsupported:   "billing_unsupported",
}

// String returns the snake_case name of the kind
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Library-owned failure codes. They are negative so they never collide with
// response codes reported by the billing service (0..8).
const (
	CodeRemoteException      = -1000
	CodeBindServiceFailed    = -1001
	CodeAlreadyReleased      = -1002
	CodeAlreadyLaunching     = -1003
	CodePendingIntentMissing = -1004
	CodeLostContext          = -1005
	CodeSendIntentFailed     = -1006
	CodeBadResponse          = -1007
	CodeNullPurchaseData     = -1008
	CodeVerificationFailed   = -1009
	CodeUnexpectedType       = -1010
	CodeArgumentMissing      = -1011
)

// Failure messages shared by the engine.
const (
	MsgBindServiceFailed     = "billing service could not be bound"
	MsgAlreadyReleased       = "billing processor already released"
	MsgAlreadyLaunching      = "purchase flow is already launching"
	MsgUnableToPurchase      = "unable to buy the item"
	MsgPendingIntentMissing  = "launch token is missing from the service response"
	MsgLostContext           = "no active ui context to host the purchase flow"
	MsgFlowDiscarded         = "purchase flow was discarded by the host"
	MsgBadResponse           = "bad response from the billing service"
	MsgNullResult            = "null result"
	MsgRequestCodeInvalid    = "request code invalid"
	MsgNullPurchaseData      = "purchase data or signature is missing"
	MsgVerificationFailed    = "purchase signature verification failed"
	MsgUnexpectedResponse    = "unexpected type for response code"
	MsgUnexpectedResult      = "unexpected type for result response code"
	MsgNullResponse          = "response from the billing service is null"
	MsgPurchaseDataError     = "failed to get purchase data"
	MsgPurchaseDataListEmpty = "purchase data list is missing"
	MsgListSizeMismatch      = "purchase data and signature lists differ in size"
	MsgUserCanceled          = "user canceled"
	MsgUnknownResult         = "unknown result"
	MsgConsumeFailed         = "failed to consume the purchase"
	MsgBillingUnsupported    = "billing is not supported for this product kind"
)

// BillingError is the single error type reported by the billing engine. Every
// failure carries a numeric code and a message.
type BillingError struct {
	Kind    Kind
	Code    int
	Message string
	Err     error
}

func (e *BillingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (code %d): %s: %v", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s (code %d): %s", e.Kind, e.Code, e.Message)
}

func (e *BillingError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a BillingError of the same kind.
func (e *BillingError) Is(target error) bool {
	t, ok := target.(*BillingError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates a BillingError
func New(kind Kind, code int, message string) *BillingError {
	return &BillingError{Kind: kind, Code: code, Message: message}
}

// Wrap creates a BillingError with a cause
func Wrap(kind Kind, code int, message string, err error) *BillingError {
	return &BillingError{Kind: kind, Code: code, Message: message, Err: err}
}

// Sentinels for errors.Is comparisons.
var (
	ErrBindServiceFailed    = New(KindBindServiceFailed, CodeBindServiceFailed, MsgBindServiceFailed)
	ErrAlreadyReleased      = New(KindAlreadyReleased, CodeAlreadyReleased, MsgAlreadyReleased)
	ErrAlreadyLaunching     = New(KindAlreadyLaunching, CodeAlreadyLaunching, MsgAlreadyLaunching)
	ErrUnableToPurchase     = New(KindUnableToPurchase, 0, MsgUnableToPurchase)
	ErrPendingIntentMissing = New(KindPendingIntentMissing, CodePendingIntentMissing, MsgPendingIntentMissing)
	ErrLostContext          = New(KindLostContext, CodeLostContext, MsgLostContext)
	ErrSendIntentFailed     = New(KindSendIntentFailed, CodeSendIntentFailed, "")
	ErrBadResponse          = New(KindBadResponse, CodeBadResponse, MsgBadResponse)
	ErrNullPurchaseData     = New(KindNullPurchaseData, CodeNullPurchaseData, MsgNullPurchaseData)
	ErrVerificationFailed   = New(KindVerificationFailed, CodeVerificationFailed, MsgVerificationFailed)
	ErrUnexpectedType       = New(KindUnexpectedType, CodeUnexpectedType, MsgUnexpectedResponse)
	ErrPurchaseDataError    = New(KindPurchaseDataError, 0, MsgPurchaseDataError)
	ErrUserCanceled         = New(KindUserCanceled, 0, MsgUserCanceled)
	ErrUnknownResult        = New(KindUnknownResult, 0, MsgUnknownResult)
	ErrRemoteException      = New(KindRemoteException, CodeRemoteException, "")
	ErrArgumentMissing      = New(KindArgumentMissing, CodeArgumentMissing, "")
	ErrConsumeFailed        = New(KindConsumeFailed, 0, MsgConsumeFailed)
	ErrBillingUnsupported   = New(KindBillingUnsupported, 0, MsgBillingUnsupported)
)

func BindServiceFailed(err error) *BillingError {
	return Wrap(KindBindServiceFailed, CodeBindServiceFailed, MsgBindServiceFailed, err)
}

func AlreadyReleased() *BillingError {
	return New(KindAlreadyReleased, CodeAlreadyReleased, MsgAlreadyReleased)
}

func AlreadyLaunching() *BillingError {
	return New(KindAlreadyLaunching, CodeAlreadyLaunching, MsgAlreadyLaunching)
}

// UnableToPurchase carries the response code the service returned for the
// launch token request.
func UnableToPurchase(code int) *BillingError {
	return New(KindUnableToPurchase, code, MsgUnableToPurchase)
}

func PendingIntentMissing() *BillingError {
	return New(KindPendingIntentMissing, CodePendingIntentMissing, MsgPendingIntentMissing)
}

func LostContext(message string) *BillingError {
	return New(KindLostContext, CodeLostContext, message)
}

func SendIntentFailed(err error) *BillingError {
	return Wrap(KindSendIntentFailed, CodeSendIntentFailed, "failed to start the purchase flow", err)
}

func BadResponse(message string) *BillingError {
	return New(KindBadResponse, CodeBadResponse, message)
}

func NullPurchaseData() *BillingError {
	return New(KindNullPurchaseData, CodeNullPurchaseData, MsgNullPurchaseData)
}

func VerificationFailed() *BillingError {
	return New(KindVerificationFailed, CodeVerificationFailed, MsgVerificationFailed)
}

func UnexpectedType(message string) *BillingError {
	return New(KindUnexpectedType, CodeUnexpectedType, message)
}

// PurchaseDataError carries the response code of the failing page.
func PurchaseDataError(code int, message string) *BillingError {
	return New(KindPurchaseDataError, code, message)
}

// UserCanceled carries the platform cancellation code.
func UserCanceled(code int) *BillingError {
	return New(KindUserCanceled, code, MsgUserCanceled)
}

// UnknownResult carries the raw outer completion code.
func UnknownResult(code int, message string) *BillingError {
	return New(KindUnknownResult, code, message)
}

func RemoteException(err error) *BillingError {
	return Wrap(KindRemoteException, CodeRemoteException, "billing service call failed", err)
}

func ArgumentMissing(message string) *BillingError {
	return New(KindArgumentMissing, CodeArgumentMissing, message)
}

func ConsumeFailed(code int) *BillingError {
	return New(KindConsumeFailed, code, MsgConsumeFailed)
}

func BillingUnsupported(code int) *BillingError {
	return New(KindBillingUnsupported, code, MsgBillingUnsupported)
}

// CodeOf returns the numeric code of a BillingError anywhere in err's chain.
func CodeOf(err error) (int, bool) {
	var be *BillingError
	if errors.As(err, &be) {
		return be.Code, true
	}
	return 0, false
}

// KindOf returns the taxonomy kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var be *BillingError
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindUnknown
}
