package protocol

const (
	// Bridge/protocol validation.
	ErrBadRequest = "E_BAD_REQUEST"
	ErrUnknownOp  = "E_UNKNOWN_OP"

	// Session state.
	ErrStopped  = "E_STOPPED"
	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest: {},
	ErrUnknownOp:  {},
	ErrStopped:    {},
	ErrInternal:   {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
