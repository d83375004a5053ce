package musicapp

import (
	"errors"
	"fmt"
	"net"
)

// DeliveryError reports a failed POST to the music app.
// StatusCode is zero when the request never got an HTTP reply.
type DeliveryError struct {
	URL        string
	StatusCode int
	Status     string
	Body       string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("music app returned %s for url %s", e.Status, e.URL)
	}
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the delivery gave up waiting for the music app.
func (e *DeliveryError) Timeout() bool {
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}
