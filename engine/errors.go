package engine

import "errors"

// Protocol errors. Every operation is all-or-nothing: any of these aborts the
// whole transaction with no observable state change, and the caller gets the
// specific classification to decide between resubmitting and abandoning.
var (
	// Authorization
	ErrNotAuthorized = errors.New("key is not authorized to make changes to this record")

	// Validation
	ErrNameTooLong        = errors.New("name exceeds the maximum length")
	ErrTooManyAdmins      = errors.New("admin list exceeds the maximum size")
	ErrAlreadyExists      = errors.New("record already exists")
	ErrPoolInvalidStart   = errors.New("pool start time has already passed")
	ErrExtendDateInvalid  = errors.New("extend date is not after the current end date")
	ErrUnknownUpdateField = errors.New("unknown update field")
	ErrMismatchedConfig   = errors.New("operation is not permitted by the pool access configuration")
	ErrDenominationNotSupported = errors.New("denomination is not supported")

	// Lifecycle
	ErrPoolNotStarted     = errors.New("pool has not begun its funding round yet")
	ErrEndDatePassed      = errors.New("pool end date has already passed")
	ErrReleasedFunds      = errors.New("pool has already released its funds")
	ErrPoolClosed         = errors.New("pool has been closed")
	ErrPoolStillActive    = errors.New("pool is still active")
	ErrDeactivatedProject = errors.New("project is currently deactivated")
	ErrClosedProject      = errors.New("project has been closed")
	ErrOpenMilestone      = errors.New("milestone is still open")
	ErrClosedMilestone    = errors.New("milestone is closed")
	ErrMilestoneReconciling = errors.New("milestone is being reconciled")

	// Enrollment
	ErrAlreadyEntered = errors.New("project is already entered in this funding round")
	ErrNotInPool      = errors.New("project is not part of this pool")

	// Oracle
	ErrPriceFeedUnavailable = errors.New("failed to load price feed")
	ErrStalePrice           = errors.New("price quote is too old")

	// Allocation
	ErrAlgorithmFailure = errors.New("quadratic funding algorithm failed")

	// Claims
	ErrAlreadyClaimed = errors.New("project has already claimed its payout")
)
