package service

import (
	"errors"
	"fmt"

	"checkout-service/internal/models"
)

// ErrorKind classifies every failure the order core can return
type ErrorKind int

const (
	// KindValidation is missing or invalid caller input
	KindValidation ErrorKind = iota + 1
	// KindNotFound is an unknown product or order, or an order owned by someone else
	KindNotFound
	// KindInsufficientStock is a reservation that exceeds available stock
	KindInsufficientStock
	// KindAlreadyProcessed is a payment confirmation for a settled order
	KindAlreadyProcessed
	// KindInvalidTransition is a lifecycle move the state machine does not allow
	KindInvalidTransition
	// KindConflict is a duplicate request still in flight or a reused idempotency key
	KindConflict
	// KindStorage is a transaction or connection failure
	KindStorage
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindAlreadyProcessed:
		return "already_processed"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindConflict:
		return "conflict"
	case KindStorage:
		return "storage"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error codes carried to clients
const (
	CodeValidation        = "validation_error"
	CodeMissingAddress    = "missing_address"
	CodeNotFound          = "not_found"
	CodeInsufficientStock = "insufficient_stock"
	CodeAlreadyProcessed  = "already_processed"
	CodeInvalidTransition = "invalid_transition"
	CodeInProgress        = "request_in_progress"
	CodeKeyReused         = "idempotency_key_reused"
	CodeStorage           = "storage_failure"
)

// Error is the single error type returned by the order core
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string

	// set for KindInsufficientStock
	ProductID int64
	Available int

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError extracts an *Error from err's chain
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, treating foreign errors as storage failures
func KindOf(err error) ErrorKind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return KindStorage
}

func validationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func missingAddressError() *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeMissingAddress,
		Message: "shipping address is required: provide one or set a default address on the profile",
	}
}

func productNotFound(productID int64) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: fmt.Sprintf("product %d not found", productID)}
}

func orderNotFound(orderID int64) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: fmt.Sprintf("order %d not found", orderID)}
}

func insufficientStock(productID int64, available int) *Error {
	return &Error{
		Kind:      KindInsufficientStock,
		Code:      CodeInsufficientStock,
		Message:   fmt.Sprintf("insufficient stock for product %d: %d remaining", productID, available),
		ProductID: productID,
		Available: available,
	}
}

func alreadyProcessed(orderID int64, status models.OrderStatus) *Error {
	return &Error{
		Kind:    KindAlreadyProcessed,
		Code:    CodeAlreadyProcessed,
		Message: fmt.Sprintf("order %d is already %s", orderID, status),
	}
}

func invalidTransition(orderID int64, from, to models.OrderStatus) *Error {
	return &Error{
		Kind:    KindInvalidTransition,
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("order %d cannot move from %q to %q", orderID, from, to),
	}
}

func requestInProgress() *Error {
	return &Error{Kind: KindConflict, Code: CodeInProgress, Message: "a request with this idempotency key is in progress"}
}

func idempotencyKeyReused() *Error {
	return &Error{
		Kind:    KindConflict,
		Code:    CodeKeyReused,
		Message: "this idempotency key was already used for a different order request",
	}
}

func storageFailure(op string, err error) *Error {
	return &Error{Kind: KindStorage, Code: CodeStorage, Message: op, Err: err}
}

// asServiceError passes *Error through and wraps anything else as a storage failure
func asServiceError(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsError(err); ok {
		return err
	}
	return storageFailure(op, err)
}
