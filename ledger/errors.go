package ledger

import "errors"

// Kind is a stable category for programmatic error handling.
//
// These categories are intended to remain stable across versions.
// Callers should branch on Kind/RuleID rather than matching error strings.
//
// NOTE: Error() strings are intentionally kept human-readable and may evolve.
// Use errors.As to extract *Error for structured handling.
type Kind string

const (
	KindContribution Kind = "Contribution"
	KindAuth         Kind = "Auth"
	KindTransfer     Kind = "Transfer"
	KindRange        Kind = "Range"
	KindFeed         Kind = "Feed"
	KindState        Kind = "State"
	KindConfig       Kind = "Config"
)

// Stable rule identifiers. Each names one violated invariant.
const (
	// RuleAmountNotPositive: contribution amounts must be strictly positive.
	RuleAmountNotPositive = "FV-CON-001"
	// RuleInsufficient: the quoted stable value is below the admission minimum.
	RuleInsufficient = "FV-CON-002"
	// RuleUnauthorized: the caller is not the ledger owner.
	RuleUnauthorized = "FV-AUTH-001"
	// RuleTransferFailed: the collaborator transfer failed and state was rolled back.
	RuleTransferFailed = "FV-TRN-001"
	// RuleNilTransferor: withdrawal requires a transfer collaborator.
	RuleNilTransferor = "FV-TRN-002"
	// RuleIndexOutOfRange: the funder index is at or past the list length.
	RuleIndexOutOfRange = "FV-RNG-001"
	// RuleFeedUnavailable: the price source failed to produce a reading.
	RuleFeedUnavailable = "FV-FEED-001"
	// RuleFeedMalformed: the price source produced an invalid reading.
	RuleFeedMalformed = "FV-FEED-002"
	// RuleStateFailed: the slot store failed a load or an apply.
	RuleStateFailed = "FV-STATE-001"

	// Construction rules.
	RuleNilStore   = "FV-NEW-001"
	RuleZeroOwner  = "FV-NEW-002"
	RuleNilFeed    = "FV-NEW-003"
	RuleBadMinimum = "FV-NEW-004"
)

// Error is the package's structured error type.
//
// RuleID is a stable identifier (e.g., FV-CON-002, FV-AUTH-001) that names
// the violated invariant or validation rule.
//
// Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	RuleID  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func newError(kind Kind, ruleID, msg string) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: msg}
}

func wrapError(kind Kind, ruleID, msg string, cause error) error {
	if cause == nil {
		return newError(kind, ruleID, msg)
	}
	return &Error{Kind: kind, RuleID: ruleID, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// RuleID returns the stable RuleID for a structured error, or "" if unknown.
func RuleID(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.RuleID
}

// IsInsufficient reports whether err rejects a contribution below the minimum.
func IsInsufficient(err error) bool { return RuleID(err) == RuleInsufficient }

// IsUnauthorized reports whether err rejects a caller that is not the owner.
func IsUnauthorized(err error) bool { return RuleID(err) == RuleUnauthorized }

// IsTransferFailed reports whether err records a rolled-back transfer.
func IsTransferFailed(err error) bool { return RuleID(err) == RuleTransferFailed }

// IsOutOfRange reports whether err rejects a funder index past the list end.
func IsOutOfRange(err error) bool { return RuleID(err) == RuleIndexOutOfRange }
