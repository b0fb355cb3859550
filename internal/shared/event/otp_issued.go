package event

const OTPIssuedDestination string = "otp_issued"
const OTPIssuedConsumerNotification string = "otp_issued_notification"

// OTPIssuedMessage is published after a successful password check. Code is
// the plaintext one-time code so the notification module can deliver it.
type OTPIssuedMessage struct {
	Username         string `json:"username"`
	Email            string `json:"email"`
	Code             string `json:"code"`
	IssuedAt         int64  `json:"issued_at"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
}
