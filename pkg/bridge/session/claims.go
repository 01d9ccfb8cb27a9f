package session

import "strings"

// Confirmation verbs the AI uses when it tells a caller a booking
// happened. If one shows up while the last booking attempt did not
// confirm creation, the bridge corrects the record.
var confirmationVerbs = []string{
	"booked",
	"scheduled",
	"confirmed",
	"set up",
	"locked in",
}

const claimCorrectionInstruction = "Correction: the appointment has NOT been confirmed in the calendar. " +
	"Tell the caller the booking is not finalized yet, apologize briefly, and offer to take a message instead."

// containsBookingClaim reports whether the assistant text claims a
// completed booking.
func containsBookingClaim(text string) bool {
	lower := strings.ToLower(text)
	for _, verb := range confirmationVerbs {
		if strings.Contains(lower, verb) {
			return true
		}
	}
	return false
}
