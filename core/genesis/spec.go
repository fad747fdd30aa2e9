package genesis

import (
	"bytes"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"scavenger/core/state"
	"scavenger/crypto"
	"scavenger/native/custody"
)

// GenesisSpec describes the initial custody state. It is read from YAML; JSON
// documents are accepted as well since YAML is a superset.
type GenesisSpec struct {
	GenesisTime  string            `yaml:"genesisTime" json:"genesisTime"`
	ChainID      string            `yaml:"chainId" json:"chainId"`
	RewardToken  *TokenSpec        `yaml:"rewardToken,omitempty" json:"rewardToken,omitempty"`
	Alloc        map[string]string `yaml:"alloc,omitempty" json:"alloc,omitempty"` // addr -> reward token amount
	Admins       []string          `yaml:"admins,omitempty" json:"admins,omitempty"`
	Distribution *DistributionSpec `yaml:"distribution,omitempty" json:"distribution,omitempty"`
	Charity      string            `yaml:"charity,omitempty" json:"charity,omitempty"`
	Participants []ParticipantSpec `yaml:"participants,omitempty" json:"participants,omitempty"`
	Paused       []string          `yaml:"paused,omitempty" json:"paused,omitempty"`

	genesisTimestamp time.Time
	admins           [][20]byte
	alloc            map[[20]byte]*big.Int
	charity          *[20]byte
	participants     []resolvedParticipant
}

type TokenSpec struct {
	Symbol   string `yaml:"symbol" json:"symbol"`
	Name     string `yaml:"name" json:"name"`
	Decimals uint8  `yaml:"decimals" json:"decimals"`
}

type DistributionSpec struct {
	HandlerSharePercent   uint32 `yaml:"handlerSharePercent" json:"handlerSharePercent"`
	CustodianSharePercent uint32 `yaml:"custodianSharePercent" json:"custodianSharePercent"`
}

type ParticipantSpec struct {
	Address   string `yaml:"address" json:"address"`
	Role      string `yaml:"role" json:"role"`
	Label     string `yaml:"label,omitempty" json:"label,omitempty"`
	Latitude  string `yaml:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude string `yaml:"longitude,omitempty" json:"longitude,omitempty"`
}

type resolvedParticipant struct {
	addr  [20]byte
	role  custody.Role
	label string
	lat   custody.Coordinate
	lon   custody.Coordinate
}

// LoadGenesisSpec reads and validates the genesis document at path.
func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseGenesisSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseGenesisSpec decodes and validates a genesis document. Unknown fields
// are rejected.
func ParseGenesisSpec(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

func (s *GenesisSpec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

// Token returns the reward token definition, defaulting to SCV.
func (s *GenesisSpec) Token() TokenSpec {
	if s.RewardToken == nil {
		return TokenSpec{Symbol: state.RewardSymbol, Name: "Scavenger Reward", Decimals: 0}
	}
	token := *s.RewardToken
	token.Symbol = strings.ToUpper(strings.TrimSpace(token.Symbol))
	return token
}

func (s *GenesisSpec) validate() error {
	parsedTime, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = parsedTime

	if strings.TrimSpace(s.ChainID) == "" {
		return fmt.Errorf("chainId must be provided")
	}
	token := s.Token()
	if token.Symbol == "" {
		return fmt.Errorf("rewardToken: symbol must be provided")
	}
	if strings.TrimSpace(token.Name) == "" {
		return fmt.Errorf("rewardToken: name must be provided")
	}
	if token.Decimals > 18 {
		return fmt.Errorf("rewardToken: decimals must be 18 or fewer")
	}

	// alloc
	s.alloc = make(map[[20]byte]*big.Int, len(s.Alloc))
	for account, amountStr := range s.Alloc {
		addr, err := crypto.ParseAddress(account)
		if err != nil {
			return fmt.Errorf("alloc[%q]: %w", account, err)
		}
		amount, ok := new(big.Int).SetString(strings.TrimSpace(amountStr), 10)
		if !ok || amount.Sign() < 0 {
			return fmt.Errorf("alloc[%q]: invalid amount %q", account, amountStr)
		}
		s.alloc[addr] = amount
	}

	// admins
	s.admins = s.admins[:0]
	seenAdmins := make(map[[20]byte]struct{}, len(s.Admins))
	for i, account := range s.Admins {
		addr, err := crypto.ParseAddress(account)
		if err != nil {
			return fmt.Errorf("admins[%d]: %w", i, err)
		}
		if _, dup := seenAdmins[addr]; dup {
			return fmt.Errorf("admins[%d]: duplicate address %q", i, account)
		}
		seenAdmins[addr] = struct{}{}
		s.admins = append(s.admins, addr)
	}

	if s.Distribution != nil {
		if len(s.admins) == 0 {
			return fmt.Errorf("distribution requires at least one admin")
		}
		cfg := custody.DistributionConfig{
			HandlerSharePercent:   s.Distribution.HandlerSharePercent,
			CustodianSharePercent: s.Distribution.CustodianSharePercent,
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("distribution: %w", err)
		}
	}

	s.charity = nil
	if strings.TrimSpace(s.Charity) != "" {
		if len(s.admins) == 0 {
			return fmt.Errorf("charity requires at least one admin")
		}
		addr, err := crypto.ParseAddress(s.Charity)
		if err != nil {
			return fmt.Errorf("charity: %w", err)
		}
		if addr == s.admins[0] {
			return fmt.Errorf("charity must differ from the first admin")
		}
		s.charity = &addr
	}

	// participants
	s.participants = s.participants[:0]
	seen := make(map[[20]byte]struct{}, len(s.Participants))
	for i, p := range s.Participants {
		addr, err := crypto.ParseAddress(p.Address)
		if err != nil {
			return fmt.Errorf("participants[%d]: %w", i, err)
		}
		if _, dup := seen[addr]; dup {
			return fmt.Errorf("participants[%d]: duplicate address %q", i, p.Address)
		}
		seen[addr] = struct{}{}
		role, err := custody.ParseRole(p.Role)
		if err != nil {
			return fmt.Errorf("participants[%d]: %w", i, err)
		}
		lat, err := custody.ParseCoordinate(p.Latitude)
		if err != nil {
			return fmt.Errorf("participants[%d] latitude: %w", i, err)
		}
		lon, err := custody.ParseCoordinate(p.Longitude)
		if err != nil {
			return fmt.Errorf("participants[%d] longitude: %w", i, err)
		}
		if err := custody.ValidateCoordinates(lat, lon); err != nil {
			return fmt.Errorf("participants[%d]: %w", i, err)
		}
		s.participants = append(s.participants, resolvedParticipant{addr: addr, role: role, label: p.Label, lat: lat, lon: lon})
	}

	for i, module := range s.Paused {
		if strings.TrimSpace(module) == "" {
			return fmt.Errorf("paused[%d]: module name must be provided", i)
		}
	}
	return nil
}

func parseGenesisTime(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("genesisTime must be provided")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("invalid genesisTime %q", value)
}
