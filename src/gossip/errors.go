package gossip

import "fmt"

// WireIntegrityError is returned when a received payload does not hash to its
// advertised digest. The sender is penalized for the protocol violation.
type WireIntegrityError struct {
	Advertised string
	Computed   string
}

func (e WireIntegrityError) Error() string {
	return fmt.Sprintf("payload hash %s does not match advertised digest %s",
		e.Computed, e.Advertised)
}
