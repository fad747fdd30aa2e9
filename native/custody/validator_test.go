package custody_test

import (
	"errors"
	"testing"

	"scavenger/native/custody"
)

func TestValidateTransferTable(t *testing.T) {
	legal := map[[2]custody.Role]bool{
		{custody.RoleOriginator, custody.RoleHandler}:   true,
		{custody.RoleOriginator, custody.RoleProcessor}: true,
		{custody.RoleHandler, custody.RoleProcessor}:    true,
	}
	roles := []custody.Role{custody.RoleOriginator, custody.RoleHandler, custody.RoleProcessor}
	accepted, rejected := 0, 0
	for _, from := range roles {
		for _, to := range roles {
			err := custody.ValidateTransfer(from, to)
			if legal[[2]custody.Role{from, to}] {
				if err != nil {
					t.Fatalf("%s -> %s: expected legal, got %v", from, to, err)
				}
				accepted++
				continue
			}
			if !errors.Is(err, custody.ErrInvalidTransferPath) {
				t.Fatalf("%s -> %s: expected invalid transfer path, got %v", from, to, err)
			}
			rejected++
		}
	}
	if accepted != 3 || rejected != 6 {
		t.Fatalf("expected 3 legal and 6 illegal pairs, got %d/%d", accepted, rejected)
	}
}

func TestValidateTransferRejectsUnknownRoles(t *testing.T) {
	if err := custody.ValidateTransfer(custody.Role(0), custody.RoleHandler); !errors.Is(err, custody.ErrInvalidTransferPath) {
		t.Fatalf("expected rejection of zero role, got %v", err)
	}
	if err := custody.ValidateTransfer(custody.RoleOriginator, custody.Role(9)); !errors.Is(err, custody.ErrInvalidTransferPath) {
		t.Fatalf("expected rejection of unknown role, got %v", err)
	}
}
