package domain

import (
	"fmt"
	"strings"
)

// ConnectivityError reports long-profile ids that sit on disconnected
// parts of the channel network.
type ConnectivityError struct {
	IDs []string
}

func (e *ConnectivityError) Error() string {
	if len(e.IDs) == 0 {
		return "no connectable channel ids"
	}
	return fmt.Sprintf("could not connect channels: %s", strings.Join(e.IDs, ", "))
}

// UnsupportedError reports a query the targeted result kind cannot
// satisfy, e.g. a long profile over a store with no channel network.
type UnsupportedError struct {
	Op     string
	Reason string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s not supported: %s", e.Op, e.Reason)
}
