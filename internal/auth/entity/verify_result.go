package entity

// VerifyResult is the outcome of consuming an OTP session.
//
// The numeric values are shared with the redis consume script.
type VerifyResult int

const (
	VerifyResultNoSession VerifyResult = iota
	VerifyResultSuccess
	VerifyResultExpired
	VerifyResultMismatch
)

func (v VerifyResult) String() string {
	switch v {
	case VerifyResultSuccess:
		return "success"
	case VerifyResultExpired:
		return "expired"
	case VerifyResultMismatch:
		return "mismatch"
	default:
		return "no_session"
	}
}
