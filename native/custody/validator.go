package custody

import "fmt"

// ValidateTransfer decides whether custody may move from a participant holding
// role from to one holding role to. Material only flows downstream:
// originator to handler or processor, handler to processor. Every pair is
// listed so a new role has to be placed in the table explicitly.
func ValidateTransfer(from, to Role) error {
	reject := fmt.Errorf("%w: %s -> %s", ErrInvalidTransferPath, from, to)
	switch from {
	case RoleOriginator:
		switch to {
		case RoleHandler, RoleProcessor:
			return nil
		case RoleOriginator:
			return reject
		}
	case RoleHandler:
		switch to {
		case RoleProcessor:
			return nil
		case RoleHandler, RoleOriginator:
			return reject
		}
	case RoleProcessor:
		return reject
	}
	return reject
}
