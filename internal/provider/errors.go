package provider

import "fmt"

// Error is a typed upstream failure. CostIncurred is the token count the
// provider is known to have billed before failing, taken from the usage
// metadata in the error response body; when the body reports no usage it
// stays zero, so an ambiguous failure never overcharges the user.
type Error struct {
	Status       int
	Message      string
	CostIncurred int64
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("provider: upstream status %d: %s", e.Status, e.Message)
	}
	return "provider: " + e.Message
}
