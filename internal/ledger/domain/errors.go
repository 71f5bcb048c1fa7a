package ledger

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a project, member, expense, obligation or
	// contribution does not exist in the project.
	ErrNotFound = errors.New("ledger: not found")
	// ErrEmptyProjectID is returned when a project id is missing.
	ErrEmptyProjectID = errors.New("ledger: empty project id")
	// ErrEmptyUserID is returned when a user id is missing.
	ErrEmptyUserID = errors.New("ledger: empty user id")
	// ErrNotMember is returned when the caller or target is not an active member.
	ErrNotMember = errors.New("ledger: user is not a project member")
	// ErrMemberExists is returned when adding a user that is already active.
	ErrMemberExists = errors.New("ledger: member already exists")
	// ErrNotOwner is returned when acting on another member's obligation.
	ErrNotOwner = errors.New("ledger: obligation belongs to another member")
	// ErrNotProjectAdmin is returned when an admin-only action is attempted
	// by a non-admin.
	ErrNotProjectAdmin = errors.New("ledger: project admin required")
	// ErrAlreadyPaid is returned when submitting or marking a paid obligation.
	ErrAlreadyPaid = errors.New("ledger: obligation already paid")
	// ErrNotPendingApproval is returned when reviewing an obligation that has
	// no pending submission.
	ErrNotPendingApproval = errors.New("ledger: obligation is not pending approval")
	// ErrObligationDeleted is returned when mutating a soft-deleted obligation.
	ErrObligationDeleted = errors.New("ledger: obligation deleted")
	// ErrNonPositiveAmount is returned for zero or negative amounts.
	ErrNonPositiveAmount = errors.New("ledger: amount must be positive")
	// ErrInvalidPercentage is returned for participation outside 0..100.
	ErrInvalidPercentage = errors.New("ledger: percentage must be between 0 and 100")
	// ErrCurrencyNotAllowed is returned when a currency is not permitted by
	// the project currency mode.
	ErrCurrencyNotAllowed = errors.New("ledger: currency not allowed for project")
	// ErrCurrencyModeLocked is returned when changing the currency mode of a
	// project that already has expenses.
	ErrCurrencyModeLocked = errors.New("ledger: currency mode locked once expenses exist")
	// ErrRateRequired is returned when a DUAL operation has no usable rate.
	ErrRateRequired = errors.New("ledger: exchange rate required")
	// ErrDeletionBlocked is returned when receipted obligations prevent
	// deleting an expense.
	ErrDeletionBlocked = errors.New("ledger: deletion blocked by receipted payments")
	// ErrExpenseDeleted is returned when mutating a deleted expense.
	ErrExpenseDeleted = errors.New("ledger: expense deleted")
	// ErrExpenseNotDeleted is returned when restoring a live expense.
	ErrExpenseNotDeleted = errors.New("ledger: expense not deleted")
	// ErrNothingToMark is returned by mark-all-paid when no obligation is pending.
	ErrNothingToMark = errors.New("ledger: nothing to mark")
	// ErrContributionNotPending is returned when deciding a resolved contribution.
	ErrContributionNotPending = errors.New("ledger: contribution is not pending")
	// ErrContributionSettled is returned when rejecting a contribution whose
	// credits were already applied.
	ErrContributionSettled = errors.New("ledger: contribution already credited")
	// ErrNoActiveMembers is returned when splitting a contribution with no
	// active participants.
	ErrNoActiveMembers = errors.New("ledger: no active members")
	// ErrLastAdmin is returned when removing or demoting the only admin.
	ErrLastAdmin = errors.New("ledger: project must keep an admin")
	// ErrEmptyCatalogName is returned for a blank provider or category name.
	ErrEmptyCatalogName = errors.New("ledger: name is required")
	// ErrCategoryNameTaken is returned when another category of the tenant
	// already uses the name.
	ErrCategoryNameTaken = errors.New("ledger: category name already exists")
	// ErrInvalidColor is returned for a category color that is not #RRGGBB.
	ErrInvalidColor = errors.New("ledger: color must be #RRGGBB")
	// ErrCatalogInactive is returned when assigning a deactivated provider
	// or category to an expense.
	ErrCatalogInactive = errors.New("ledger: provider or category is inactive")
)

// Blocker names an obligation preventing an action.
type Blocker struct {
	ObligationID string
	UserID       string
	Reason       string
}

// BlockedError reports which participants block an expense deletion.
type BlockedError struct {
	ExpenseID string
	Blockers  []Blocker
}

func (e *BlockedError) Error() string {
	parts := make([]string, 0, len(e.Blockers))
	for _, b := range e.Blockers {
		parts = append(parts, fmt.Sprintf("%s (%s)", b.UserID, b.Reason))
	}
	return fmt.Sprintf("ledger: expense %s cannot be deleted; remove payments first: %s", e.ExpenseID, strings.Join(parts, ", "))
}

func (e *BlockedError) Unwrap() error { return ErrDeletionBlocked }
