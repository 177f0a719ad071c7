// internal/domain/common/errors.go
package common

import (
	"errors"
	"fmt"
)

// Kind はエラーの分類です。呼び出し側（HTTP / CLI）は文字列ではなく Kind で分岐します。
type Kind string

const (
	KindUnknown         Kind = "Unknown"
	KindConnectivity    Kind = "Connectivity"    // transport down, retryable
	KindWrongNetwork    Kind = "WrongNetwork"    // requires the user to switch networks
	KindUserDeclined    Kind = "UserDeclined"    // terminal for the attempt
	KindReconciliation  Kind = "Reconciliation"  // retry the whole reconciliation
	KindInvalidQuantity Kind = "InvalidQuantity" // caller bug
	KindActionRejected  Kind = "ActionRejected"  // surfaced verbatim, never auto-retried
)

// Error は Kind 付きのエラーです。Op は失敗した操作名（"eligibility", "mint" など）。
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Wrap は err に kind を付与します。err が nil なら nil。
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf は err チェーン上で最も外側の *Error の Kind を返します。
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable は「システム側で再試行してよい」種別かどうか。
// WrongNetwork / UserDeclined はユーザー操作が必要、ActionRejected は支払いの再送になるため false。
func Retryable(kind Kind) bool {
	switch kind {
	case KindConnectivity, KindReconciliation:
		return true
	default:
		return false
	}
}
