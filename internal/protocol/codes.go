// internal/protocol/codes.go
package protocol

// Outbound status codes. StatusOK acknowledges an action; every ERROR_*
// status is the last message on its channel.
const (
	StatusOK = "OK"

	// set-identity failures.
	StatusUnknownIdentity = "ERROR_UNKNOWN_IDENTITY"
	StatusSessionClosed1  = "ERROR_SESSION_CLOSED_1"
	StatusNoPushSupport   = "ERROR_NO_PUSH_SUPPORT"
	StatusSecretRefused   = "ERROR_SECRET_REFUSED"

	// switch failures.
	StatusUnknownPage          = "ERROR_UNKNOWN_PAGE"
	StatusSessionClosed2       = "ERROR_SESSION_CLOSED_2"
	StatusSwitchCallbackRaised = "ERROR_SWITCH_CALLBACK_RAISED"
	StatusSwitchRefused        = "ERROR_SWITCH_REFUSED"

	// custom-data failures.
	StatusSessionClosed3            = "ERROR_SESSION_CLOSED_3"
	StatusDataCallbackRaised        = "ERROR_DATA_CALLBACK_RAISED"
	StatusDataCallbackInvalidAnswer = "ERROR_DATA_CALLBACK_INVALID_ANSWER"
)

// Inbound action names.
const (
	ActionSetIdentity = "set-identity"
	ActionSwitch      = "switch"
	ActionCustomData  = "custom-data"
)
