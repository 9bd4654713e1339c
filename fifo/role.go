package fifo

import (
	"fmt"
	"strings"

	"github.com/c360/ringpipe/errors"
)

// Role is the side of the channel a session is bound to.
type Role int

const (
	// Producer sessions write into the channel.
	Producer Role = iota
	// Consumer sessions read from the channel.
	Consumer
)

// String returns the lowercase role name.
func (r Role) String() string {
	switch r {
	case Producer:
		return "producer"
	case Consumer:
		return "consumer"
	default:
		return "unknown"
	}
}

// ParseRole maps "producer"/"write" and "consumer"/"read" to a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "producer", "write", "w":
		return Producer, nil
	case "consumer", "read", "r":
		return Consumer, nil
	}
	return 0, errors.WrapInvalid(fmt.Errorf("unknown role %q", s), "fifo", "ParseRole", "parse role")
}
