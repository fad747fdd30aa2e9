package custody

import (
	"fmt"

	"scavenger/core/events"
)

// InitializeAdmin installs the first admin. It succeeds only while no admin
// exists.
func (e *Engine) InitializeAdmin(admin [20]byte) error {
	if err := e.begin(admin); err != nil {
		return err
	}
	members, err := e.st.RoleMembers(RoleAdmin)
	if err != nil {
		return err
	}
	if len(members) > 0 {
		return ErrAdminAlreadyInitialized
	}
	if err := e.st.SetRole(RoleAdmin, admin[:]); err != nil {
		return err
	}
	e.emit(events.AdminGranted{Admin: admin, Caller: admin})
	return nil
}

// GrantAdmin gives another address the admin capability.
func (e *Engine) GrantAdmin(caller, admin [20]byte) error {
	if err := e.begin(caller); err != nil {
		return err
	}
	if !e.isAdmin(caller) {
		return ErrNotAdmin
	}
	if err := e.st.SetRole(RoleAdmin, admin[:]); err != nil {
		return err
	}
	e.emit(events.AdminGranted{Admin: admin, Caller: caller})
	return nil
}

// IsAdmin reports whether addr holds the admin capability.
func (e *Engine) IsAdmin(addr [20]byte) bool {
	return e.isAdmin(addr)
}

// Distribution returns the share percentages in force. The defaults apply
// until an admin stores a configuration.
func (e *Engine) Distribution() (DistributionConfig, error) {
	var cfg DistributionConfig
	ok, err := e.st.KVGet(distributionKey(), &cfg)
	if err != nil {
		return DistributionConfig{}, err
	}
	if !ok {
		return DefaultDistribution(), nil
	}
	return cfg, nil
}

// SetDistribution overwrites both share percentages.
func (e *Engine) SetDistribution(caller [20]byte, cfg DistributionConfig) error {
	if err := e.begin(caller); err != nil {
		return err
	}
	if !e.isAdmin(caller) {
		return ErrNotAdmin
	}
	return e.writeDistribution(caller, cfg)
}

// SetHandlerShare changes the handler share and keeps the custodian share.
func (e *Engine) SetHandlerShare(caller [20]byte, percent uint32) error {
	if err := e.begin(caller); err != nil {
		return err
	}
	if !e.isAdmin(caller) {
		return ErrNotAdmin
	}
	cfg, err := e.Distribution()
	if err != nil {
		return err
	}
	cfg.HandlerSharePercent = percent
	return e.writeDistribution(caller, cfg)
}

// SetCustodianShare changes the custodian share and keeps the handler share.
func (e *Engine) SetCustodianShare(caller [20]byte, percent uint32) error {
	if err := e.begin(caller); err != nil {
		return err
	}
	if !e.isAdmin(caller) {
		return ErrNotAdmin
	}
	cfg, err := e.Distribution()
	if err != nil {
		return err
	}
	cfg.CustodianSharePercent = percent
	return e.writeDistribution(caller, cfg)
}

func (e *Engine) writeDistribution(caller [20]byte, cfg DistributionConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := e.st.KVPut(distributionKey(), cfg); err != nil {
		return err
	}
	e.emit(events.DistributionUpdated{
		Caller:                caller,
		HandlerSharePercent:   cfg.HandlerSharePercent,
		CustodianSharePercent: cfg.CustodianSharePercent,
	})
	return nil
}

// SetCharity configures the address that receives donations. An admin cannot
// name itself.
func (e *Engine) SetCharity(caller, charity [20]byte) error {
	if err := e.begin(caller); err != nil {
		return err
	}
	if !e.isAdmin(caller) {
		return ErrNotAdmin
	}
	if charity == caller || charity == ([20]byte{}) {
		return ErrInvalidCharity
	}
	if err := e.st.KVPut(charityKey(), charity); err != nil {
		return err
	}
	e.emit(events.CharityUpdated{Charity: charity, Caller: caller})
	return nil
}

// Charity returns the configured donation target.
func (e *Engine) Charity() ([20]byte, bool, error) {
	var charity [20]byte
	ok, err := e.st.KVGet(charityKey(), &charity)
	return charity, ok, err
}

// Donate moves amount reward tokens from donor to the charity.
func (e *Engine) Donate(donor [20]byte, amount uint64) error {
	if err := e.begin(donor); err != nil {
		return err
	}
	if _, err := e.registeredParticipant(donor); err != nil {
		return err
	}
	if amount == 0 {
		return fmt.Errorf("%w: donation must be positive", ErrInvalidAmount)
	}
	charity, ok, err := e.Charity()
	if err != nil {
		return err
	}
	if !ok {
		return ErrCharityNotSet
	}
	if e.tokens == nil {
		return ErrTokenLedgerUnavailable
	}
	if err := e.tokens.Transfer(donor, charity, amount); err != nil {
		return err
	}
	e.emit(events.CharityDonation{Donor: donor, Charity: charity, Amount: amount})
	return nil
}
