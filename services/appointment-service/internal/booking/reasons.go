package booking

// Client-facing reasons. They are part of the API contract.
const (
	ReasonValidationFailed       = "validation failed"
	ReasonUserNotFound           = "user not found"
	ReasonProviderCannotBook     = "providers cannot create appointments"
	ReasonNotAProvider           = "you can only create appointments with providers"
	ReasonPastDate               = "past dates are not permitted"
	ReasonSlotUnavailable        = "appointment date is not available"
	ReasonAppointmentNotFound    = "appointment not found"
	ReasonNotOwner               = "you don't have permission to cancel this appointment"
	ReasonAlreadyCanceled        = "appointment already canceled"
	ReasonCancellationWindowOver = "you can only cancel appointments 2 hours in advance"
)
