package core

import "fmt"

// Kind identifies the category of a [Error].
type Kind int

const (
	// InvalidWidth means the requested width was not 25 times a power of two between 1 and 64.
	InvalidWidth Kind = iota
	// InvalidLaneSize means a lane size argument was out of the supported {1,2,4,8,16,32,64} set.
	InvalidLaneSize
	// InvalidRotation means a rotation or coordinate argument was out of its supported range.
	InvalidRotation
	// IncompatibleChiTransition means a trail's consecutive states failed the χ-compatibility
	// check at the given round.
	IncompatibleChiTransition
	// WeightInconsistency means a trail's stored weight at a round didn't match the recomputed
	// weight.
	WeightInconsistency
	// TrailParseError means a trail file was malformed.
	TrailParseError
	// CacheIOError means reading or writing a cache file failed.
	CacheIOError
	// UnpackedParityRequired means a packed-parity API was called on a space built without
	// packed parities.
	UnpackedParityRequired
)

func (k Kind) String() string {
	switch k {
	case InvalidWidth:
		return "invalid width"
	case InvalidLaneSize:
		return "invalid lane size"
	case InvalidRotation:
		return "invalid rotation"
	case IncompatibleChiTransition:
		return "incompatible chi transition"
	case WeightInconsistency:
		return "weight inconsistency"
	case TrailParseError:
		return "trail parse error"
	case CacheIOError:
		return "cache I/O error"
	case UnpackedParityRequired:
		return "unpacked parity required"
	default:
		return "unknown"
	}
}

// Error is the tagged error family used across this module, so callers can branch on Kind via
// [errors.Is] against the package-level sentinels below or via [errors.As]. Errors from the
// underlying reader or writer are not wrapped in it: trail.Load, Trail.Save and the KnotInfo
// table's Save and LoadKnotInfoTable return them unchanged, and trail.Load reports end of input
// as io.EOF.
type Error struct {
	Kind Kind

	// Round is set for IncompatibleChiTransition and WeightInconsistency.
	Round int
	// Expected and Found are set for WeightInconsistency.
	Expected, Found int
	// AtByte is set for TrailParseError.
	AtByte int64

	// Msg is a human-readable detail string; the core never writes it anywhere itself (§7: "the
	// core emits no stderr output"), it exists for the caller to display.
	Msg string

	// Err is an optional wrapped cause (e.g. the underlying I/O error for CacheIOError).
	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case IncompatibleChiTransition:
		return fmt.Sprintf("core: %s at round %d: %s", e.Kind, e.Round, e.Msg)
	case WeightInconsistency:
		return fmt.Sprintf("core: %s at round %d: expected %d, found %d", e.Kind, e.Round, e.Expected, e.Found)
	case TrailParseError:
		return fmt.Sprintf("core: %s at byte %d: %s", e.Kind, e.AtByte, e.Msg)
	default:
		if e.Msg != "" {
			return fmt.Sprintf("core: %s: %s", e.Kind, e.Msg)
		}
		return fmt.Sprintf("core: %s", e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a *Error with the same Kind whose Round, Expected, Found and AtByte
// are all zero (as in the sentinels below), so that errors.Is(err, core.ErrInvalidWidth) works
// without the caller needing to inspect Round/Expected/Found/AtByte.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Round == 0 && t.Expected == 0 && t.Found == 0 && t.AtByte == 0
}

// Sentinel errors for use with errors.Is, one per Kind, following the same pattern as
// [github.com/codahale/thyrse]'s ErrInvalidCiphertext.
var (
	ErrInvalidWidth             = &Error{Kind: InvalidWidth}
	ErrInvalidLaneSize          = &Error{Kind: InvalidLaneSize}
	ErrInvalidRotation          = &Error{Kind: InvalidRotation}
	ErrIncompatibleChiTransition = &Error{Kind: IncompatibleChiTransition}
	ErrWeightInconsistency      = &Error{Kind: WeightInconsistency}
	ErrTrailParseError          = &Error{Kind: TrailParseError}
	ErrCacheIOError             = &Error{Kind: CacheIOError}
	ErrUnpackedParityRequired   = &Error{Kind: UnpackedParityRequired}
)
