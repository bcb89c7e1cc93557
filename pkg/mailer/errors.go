package mailer

import "errors"

var (
	// ErrInvalidMessage is returned when a message fails validation before
	// any send is attempted.
	ErrInvalidMessage = errors.New("invalid email message")

	// ErrInvalidConfig is returned when the sender configuration is
	// incomplete.
	ErrInvalidConfig = errors.New("invalid mailer config")

	// ErrSendFailed is returned when the transport rejects or cannot deliver
	// the message. Retryable unless also tagged ErrPermanent.
	ErrSendFailed = errors.New("failed to send email")

	// ErrPermanent tags transport failures that cannot succeed on retry,
	// such as a hard bounce or a suppressed recipient.
	ErrPermanent = errors.New("permanent delivery failure")
)

// IsPermanent reports whether the send error is not worth retrying.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
