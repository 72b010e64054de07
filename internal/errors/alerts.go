package errors

// Alert is the static title/message pair shown to the user for a failure.
type Alert struct {
	Title   string
	Message string
}

// CannotGetData is the generic fallback alert.
var CannotGetData = Alert{
	Title:   "Cannot get data",
	Message: "Cannot get data from the server, please try again later.",
}

var alerts = map[Kind]Alert{
	KindMissingCredentials: {
		Title:   "Not signed in",
		Message: "Your session is missing, please log in again.",
	},
	KindRefreshExhausted: {
		Title:   "Session expired",
		Message: "Your session has expired, please log in again.",
	},
	KindCannotRefresh: {
		Title:   "Session expired",
		Message: "We could not renew your session, please log in again.",
	},
	KindPersistFailed: {
		Title:   "Cannot login",
		Message: "Sorry, we cannot log you in at the moment",
	},
	KindEmailNotVerified: {
		Title:   "Email not verified",
		Message: "Confirm your email address using the link we sent you, then try again.",
	},
	KindDuplicateValue: {
		Title:   "Value not available",
		Message: "User with this value already exists. Please try another one.",
	},
	KindUnexpectedResponse: CannotGetData,
	KindApplicationError: {
		Title:   "Invalid value",
		Message: "This value is not valid. Check if it contains only allowed symbols.",
	},
	KindWrongPasswordOrEmail: {
		Title:   "Wrong password or email",
		Message: "Check that your email and password are correct.\n\n If you forgot your password, you can reset it.",
	},
	KindUserAlreadyExists: {
		Title:   "User already registered",
		Message: "A user with this email, phone or username already exists, please choose a different one.",
	},
	KindDecodeFailure: CannotGetData,
	KindNetwork: {
		Title:   "No Network",
		Message: "Check your internet connection and try again.\n If the problem persists, please contact support.",
	},
}

// AlertFor maps err to the alert the presentation layer shows. Errors outside
// the taxonomy fall back to CannotGetData.
func AlertFor(err error) Alert {
	if err == nil {
		return Alert{}
	}
	if alert, ok := alerts[KindOf(err)]; ok {
		return alert
	}
	return CannotGetData
}
