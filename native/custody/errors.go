package custody

import "errors"

// Error kinds. Specific errors below wrap one of these so callers can branch
// on the kind with errors.Is.
var (
	ErrNotFound      = errors.New("custody: not found")
	ErrNotActive     = errors.New("custody: not active")
	ErrSelfDealing   = errors.New("custody: self dealing forbidden")
	ErrUnauthorized  = errors.New("custody: unauthorized")
	ErrInvalidAmount = errors.New("custody: invalid amount")
	ErrOverflow      = errors.New("custody: arithmetic overflow")
)

var (
	ErrAlreadyRegistered         = errors.New("custody: participant already registered")
	ErrNotRegistered             = errors.New("custody: participant not registered")
	ErrInvalidRole               = errors.New("custody: invalid role")
	ErrInvalidCategory           = errors.New("custody: invalid category")
	ErrInvalidCoordinate         = errors.New("custody: invalid coordinate")
	ErrInvalidLabel              = errors.New("custody: invalid label")
	ErrCounterpartyNotRegistered = errors.New("custody: counterparty not registered")
	ErrInvalidTransferPath       = errors.New("custody: invalid transfer path")
	ErrAlreadyConfirmed          = errors.New("custody: material already confirmed")
	ErrNotConfirmed              = errors.New("custody: material not confirmed")
	ErrAlreadyVerified           = errors.New("custody: material already verified")
	ErrAlreadyDeactivated        = errors.New("custody: material already deactivated")
	ErrInvalidPercentages        = errors.New("custody: invalid distribution percentages")
	ErrAdminAlreadyInitialized   = errors.New("custody: admin already initialized")
	ErrIncentiveAlreadyActive    = errors.New("custody: incentive already active")
	ErrDistributionMismatch      = errors.New("custody: payouts do not sum to reward pool")
	ErrCharityNotSet             = errors.New("custody: charity not configured")
	ErrInvalidCharity            = errors.New("custody: invalid charity address")
	ErrTokenLedgerUnavailable    = errors.New("custody: token ledger unavailable")
	ErrDuplicateMaterial         = errors.New("custody: duplicate material in batch")
)

var (
	ErrMaterialNotFound    = kinded(ErrNotFound, "custody: material not found")
	ErrIncentiveNotFound   = kinded(ErrNotFound, "custody: incentive not found")
	ErrMaterialDeactivated = kinded(ErrNotActive, "custody: material deactivated")
	ErrIncentiveNotActive  = kinded(ErrNotActive, "custody: incentive not active")
	ErrSelfRegistration    = kinded(ErrSelfDealing, "custody: contract cannot register itself")
	ErrSelfConfirmation    = kinded(ErrSelfDealing, "custody: custodian cannot confirm own material")
	ErrSelfReward          = kinded(ErrSelfDealing, "custody: custodian cannot verify own material")
	ErrNotAdmin            = kinded(ErrUnauthorized, "custody: caller is not an admin")
	ErrNotCustodian        = kinded(ErrUnauthorized, "custody: caller is not the current custodian")
	ErrNotSponsor          = kinded(ErrUnauthorized, "custody: caller is not the incentive sponsor")
	ErrNotProcessor        = kinded(ErrUnauthorized, "custody: sponsor is not a processor")
	ErrCounterOverflow     = kinded(ErrOverflow, "custody: counter overflow")
)

type kindError struct {
	kind error
	msg  string
}

func kinded(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

var kindTable = []struct {
	err  error
	kind string
}{
	{ErrNotFound, "NotFound"},
	{ErrAlreadyRegistered, "AlreadyRegistered"},
	{ErrAlreadyConfirmed, "AlreadyConfirmed"},
	{ErrAlreadyVerified, "AlreadyVerified"},
	{ErrAlreadyDeactivated, "AlreadyDeactivated"},
	{ErrAdminAlreadyInitialized, "AlreadyExists"},
	{ErrIncentiveAlreadyActive, "AlreadyExists"},
	{ErrNotRegistered, "NotRegistered"},
	{ErrCounterpartyNotRegistered, "CounterpartyNotRegistered"},
	{ErrUnauthorized, "Unauthorized"},
	{ErrInvalidTransferPath, "InvalidTransferPath"},
	{ErrInvalidCoordinate, "InvalidCoordinate"},
	{ErrInvalidAmount, "InvalidAmount"},
	{ErrInvalidPercentages, "InvalidAmount"},
	{ErrNotActive, "NotActive"},
	{ErrNotConfirmed, "NotConfirmed"},
	{ErrSelfDealing, "SelfDealingForbidden"},
	{ErrInvalidRole, "InvalidInput"},
	{ErrInvalidCategory, "InvalidInput"},
	{ErrInvalidLabel, "InvalidInput"},
	{ErrInvalidCharity, "InvalidInput"},
	{ErrDuplicateMaterial, "InvalidInput"},
	{ErrCharityNotSet, "NotFound"},
	{ErrOverflow, "Overflow"},
}

// ErrorKind maps err to its taxonomy name, or "Internal" when err does not
// originate from this package.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range kindTable {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	return "Internal"
}
