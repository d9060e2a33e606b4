package bookings

import "context"

const (
	MsgInvalidTimeFrame  = "Start time should be earlier than the end time"
	MsgDateInPast        = "Appointment date should not be in the past"
	MsgSlotAlreadyBooked = "This time slot is already booked"
	MsgBookingNotFound   = "Booking with provided Id not foud"
	MsgAlreadyCancelled  = "Booking is already cancelled"
	MsgWrongPatientID    = "Wrong patient id"
)

// ValidationResult is the outcome of a validator. A failed result carries
// exactly the message of the first rule that did not hold.
type ValidationResult struct {
	Passed bool
	Errors []string
}

func (r ValidationResult) FirstError() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0]
}

func passed() ValidationResult {
	return ValidationResult{Passed: true}
}

func failed(msg string) ValidationResult {
	return ValidationResult{Errors: []string{msg}}
}

// check returns the message of a violated rule, or "" when the rule holds.
// A non-nil error is a store fault, not a rule violation.
type check func(ctx context.Context) (string, error)

// runChecks evaluates checks in order and stops at the first violation.
func runChecks(ctx context.Context, checks ...check) (ValidationResult, error) {
	for _, c := range checks {
		msg, err := c(ctx)
		if err != nil {
			return ValidationResult{}, err
		}
		if msg != "" {
			return failed(msg), nil
		}
	}
	return passed(), nil
}

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}
