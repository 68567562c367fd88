package economy

import (
	"errors"
	"fmt"
)

// Failure classes. Specific failures wrap one of these so callers can match
// the class with errors.Is without caring about the exact condition.
var (
	ErrValidation   = errors.New("invalid argument")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInsufficient = errors.New("insufficient resource")
	ErrForbidden    = errors.New("forbidden")
	ErrExpired      = errors.New("expired")

	ErrTxConflict = errors.New("storage conflict, retry")
)

var (
	ErrCountryNotFound = fmt.Errorf("country %w", ErrNotFound)
	ErrCountryExists   = fmt.Errorf("%w: country already founded", ErrConflict)
	ErrLandNotFound    = fmt.Errorf("land %w", ErrNotFound)
	ErrLandTaken       = fmt.Errorf("%w: channel is already a land", ErrConflict)
	ErrItemNotFound    = fmt.Errorf("item %w", ErrNotFound)
	ErrNotResource     = fmt.Errorf("%w: only resources trade on the market, items sell to the npc", ErrValidation)
	ErrRecipeNotFound  = fmt.Errorf("recipe %w", ErrNotFound)
	ErrRecipeInactive  = fmt.Errorf("%w: recipe is inactive", ErrForbidden)
	ErrListingNotFound = fmt.Errorf("listing %w", ErrNotFound)
	ErrListingClosed   = fmt.Errorf("%w: listing is no longer open", ErrConflict)
	ErrDuplicateClaim  = fmt.Errorf("%w: already claimed today", ErrConflict)
	ErrSelfTrade       = fmt.Errorf("%w: cannot buy your own listing", ErrConflict)

	ErrInsufficientFunds    = fmt.Errorf("%w: funds", ErrInsufficient)
	ErrInsufficientTreasury = fmt.Errorf("%w: treasury funds", ErrInsufficient)
	ErrInsufficientStock    = fmt.Errorf("%w: stock", ErrInsufficient)
	ErrExceedsAvailable     = fmt.Errorf("%w: quantity exceeds listing", ErrInsufficient)

	ErrNotSeller     = fmt.Errorf("%w: only the seller may cancel", ErrForbidden)
	ErrNotQuoteBuyer = fmt.Errorf("%w: quote belongs to another buyer", ErrForbidden)
	ErrQuoteExpired  = fmt.Errorf("quote %w", ErrExpired)
	ErrQuoteInvalid  = fmt.Errorf("%w: quote token", ErrValidation)
)
