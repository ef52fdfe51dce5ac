package err

import (
	"errors"
	"fmt"
	"net"
	"net/url"
)

var (
	ErrorNoRoute             = errors.New("no route for origin")           // Static error for origins without a routing entry.
	ErrorMalformedOrigin     = errors.New("cannot derive origin group id") // Static error for events with no usable origin descriptor.
	ErrorAttachmentTooLarge  = errors.New("attachment exceeds size limit") // Static error for attachments over the upload ceiling.
	ErrorQualityFloorReached = errors.New("image quality floor reached")   // Static error for the compression loop giving up.
	ErrorReconnectExhausted  = errors.New("reconnect attempts exhausted")  // Static error for the supervisor's terminal state.
	ErrorWatermarkMissing    = errors.New("watermark asset is not usable") // Static error for an unreadable watermark image.
	ErrorSessionClosed       = errors.New("source session closed")         // Static error for a stopped platform session.
	ErrorSessionUnavailable  = errors.New("no active source session")      // Static error for calls made between sessions.
	ErrorUnsupportedDriver   = errors.New("unsupported database driver")   // Static error for unknown storage dialects.
)

// DeliveryError reports a non-success response from the destination endpoint.
// The dispatcher raises it; retry-or-drop policy lives with the caller.
type DeliveryError struct {
	StatusCode int
	Body       string
}

// Error - implement the error interface.
func (e *DeliveryError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("destination responded with status %d", e.StatusCode)
	}

	return fmt.Sprintf("destination responded with status %d: %s", e.StatusCode, e.Body)
}

// WrapAttachmentTooLarge wraps the size-limit error with the observed size.
func WrapAttachmentTooLarge(name string, size, limit int64) error {
	return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrorAttachmentTooLarge, name, size, limit)
}

// Retryable reports whether a delivery failure is worth another attempt.
// Rate limiting and server-side errors are transient; any other status is
// a terminal rejection. Transport-level failures and timeouts are transient.
func Retryable(e error) bool {
	var delivery *DeliveryError
	if errors.As(e, &delivery) {
		return delivery.StatusCode == 429 || delivery.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(e, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	return errors.As(e, &urlErr)
}
