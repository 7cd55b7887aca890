package engine

import (
	"errors"
	"fmt"
)

var ErrValidation = errors.New("invalid request")
var ErrUnknownParticipant = errors.New("participant is not registered")
var ErrUnsupportedCommand = errors.New("unsupported command")
var ErrConfirmationRequired = errors.New("confirmation required")

var ErrLobbyClosed = errors.New("lobby is not open")
var ErrAlreadyAssigned = errors.New("participant already belongs to a team")
var ErrCapacity = errors.New("team is full")
var ErrTeamNotFound = errors.New("team not found")
var ErrInvalidSize = errors.New("team size cannot be smaller than its member count")
var ErrUnassignedParticipants = errors.New("participants are not assigned to any team")
var ErrEmptyTeam = errors.New("cannot lock lobby: one or more teams have no members")
var ErrInvalidTransition = errors.New("invalid lobby transition")

var ErrItemNotFound = errors.New("item not found")
var ErrInvalidPhase = errors.New("item is not available in the current phase")
var ErrAlreadySold = errors.New("item is already sold")
var ErrItemInProgress = errors.New("another item is on the floor")
var ErrQueueExhausted = errors.New("no items left in this phase")
var ErrNoActiveItem = errors.New("no item is up for bidding")
var ErrAuctionPaused = errors.New("auction is paused")
var ErrTimeExpired = errors.New("time is up, bidding closed")
var ErrAlreadyHighestBidder = errors.New("your team already holds the highest bid")
var ErrInsufficientPurse = errors.New("insufficient purse for the next bid")

// UnassignedParticipantsError reports how many online participants block a lock.
type UnassignedParticipantsError struct {
	Count int
}

func (e *UnassignedParticipantsError) Error() string {
	return fmt.Sprintf("cannot lock lobby: %d participants are not assigned to any team", e.Count)
}

func (e *UnassignedParticipantsError) Unwrap() error { return ErrUnassignedParticipants }

// Class groups errors the way clients react to them.
type Class string

const (
	ClassNone       Class = ""
	ClassValidation Class = "validation"
	ClassContention Class = "contention"
	ClassNotFound   Class = "not_found"
	ClassState      Class = "state"
	ClassInternal   Class = "internal"
)

// ClassOf maps an error onto its class. Validation wins over the other
// classes because create-team failures wrap both.
func ClassOf(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrUnknownParticipant),
		errors.Is(err, ErrUnsupportedCommand),
		errors.Is(err, ErrConfirmationRequired),
		errors.Is(err, ErrInvalidSize):
		return ClassValidation
	case errors.Is(err, ErrCapacity),
		errors.Is(err, ErrAlreadyHighestBidder):
		return ClassContention
	case errors.Is(err, ErrTeamNotFound),
		errors.Is(err, ErrItemNotFound):
		return ClassNotFound
	case errors.Is(err, ErrLobbyClosed),
		errors.Is(err, ErrAlreadyAssigned),
		errors.Is(err, ErrUnassignedParticipants),
		errors.Is(err, ErrEmptyTeam),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrInvalidPhase),
		errors.Is(err, ErrAlreadySold),
		errors.Is(err, ErrItemInProgress),
		errors.Is(err, ErrQueueExhausted),
		errors.Is(err, ErrNoActiveItem),
		errors.Is(err, ErrAuctionPaused),
		errors.Is(err, ErrTimeExpired),
		errors.Is(err, ErrInsufficientPurse):
		return ClassState
	default:
		return ClassInternal
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
