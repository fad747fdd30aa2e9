package custody

import (
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// Role is the supply-chain position a participant occupies.
type Role uint8

const (
	RoleOriginator Role = iota + 1
	RoleHandler
	RoleProcessor
)

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOriginator, RoleHandler, RoleProcessor:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	switch r {
	case RoleOriginator:
		return "originator"
	case RoleHandler:
		return "handler"
	case RoleProcessor:
		return "processor"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// ParseRole accepts the canonical role names plus the recycler / collector /
// manufacturer aliases used by field tooling.
func ParseRole(value string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "originator", "recycler":
		return RoleOriginator, nil
	case "handler", "collector":
		return RoleHandler, nil
	case "processor", "manufacturer":
		return RoleProcessor, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidRole, value)
	}
}

// Category enumerates the material types accepted by the ledger.
type Category uint8

const (
	CategoryPaper Category = iota + 1
	CategoryPetPlastic
	CategoryPlastic
	CategoryMetal
	CategoryGlass
)

const categoryCount = 5

// Categories lists every category in declaration order.
func Categories() []Category {
	return []Category{CategoryPaper, CategoryPetPlastic, CategoryPlastic, CategoryMetal, CategoryGlass}
}

// Valid reports whether c is one of the declared categories.
func (c Category) Valid() bool {
	return c >= CategoryPaper && c <= CategoryGlass
}

// Multiplier returns the reward multiplier published for the category.
func (c Category) Multiplier() uint64 {
	switch c {
	case CategoryPaper:
		return 1
	case CategoryPetPlastic:
		return 3
	case CategoryPlastic:
		return 2
	case CategoryMetal:
		return 5
	case CategoryGlass:
		return 2
	default:
		return 0
	}
}

func (c Category) String() string {
	switch c {
	case CategoryPaper:
		return "paper"
	case CategoryPetPlastic:
		return "pet_plastic"
	case CategoryPlastic:
		return "plastic"
	case CategoryMetal:
		return "metal"
	case CategoryGlass:
		return "glass"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

// ParseCategory resolves a category name.
func ParseCategory(value string) (Category, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	for _, c := range Categories() {
		if c.String() == normalized {
			return c, nil
		}
	}
	if normalized == "petplastic" {
		return CategoryPetPlastic, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidCategory, value)
}

func (c Category) index() int { return int(c) - 1 }

// CoordinateScale is the fixed-point scale applied to degrees.
const CoordinateScale = 10_000_000

const (
	MaxLatitude  Coordinate = 90 * CoordinateScale
	MaxLongitude Coordinate = 180 * CoordinateScale
)

// Coordinate is a latitude or longitude in degrees scaled by CoordinateScale.
// It is stored as a zig-zag encoded unsigned integer since RLP has no signed
// integer form.
type Coordinate int64

// EncodeRLP implements rlp.Encoder.
func (c Coordinate) EncodeRLP(w io.Writer) error {
	v := int64(c)
	return rlp.Encode(w, uint64(v<<1)^uint64(v>>63))
}

// DecodeRLP implements rlp.Decoder.
func (c *Coordinate) DecodeRLP(s *rlp.Stream) error {
	u, err := s.Uint64()
	if err != nil {
		return err
	}
	*c = Coordinate(int64(u>>1) ^ -int64(u&1))
	return nil
}

// ValidateCoordinates checks that the pair lies within ±90° / ±180°.
func ValidateCoordinates(lat, lon Coordinate) error {
	if lat < -MaxLatitude || lat > MaxLatitude {
		return fmt.Errorf("%w: latitude %d", ErrInvalidCoordinate, lat)
	}
	if lon < -MaxLongitude || lon > MaxLongitude {
		return fmt.Errorf("%w: longitude %d", ErrInvalidCoordinate, lon)
	}
	return nil
}

// ParticipantStats accumulates a participant's activity.
type ParticipantStats struct {
	Submissions         uint64
	VerifiedSubmissions uint64
	TotalWeight         uint64
	TotalRewards        uint64
	MaterialsReceived   uint64
	CategoryCounts      [categoryCount]uint64
}

// Participant is a registered supply-chain actor.
type Participant struct {
	Address      [20]byte
	Role         Role
	Label        string
	Latitude     Coordinate
	Longitude    Coordinate
	RegisteredAt uint64
	Deregistered bool
	Stats        ParticipantStats
}

// ParticipantInfo combines a participant with figures derived from its stats.
type ParticipantInfo struct {
	Participant         Participant
	VerificationRate    uint64
	AverageWeight       uint64
	MostSubmitted       Category
	ActiveRecycler      bool
	VerifiedContributor bool
}

const (
	activeRecyclerThreshold      = 10
	verifiedContributorThreshold = 80
)

func deriveInfo(p *Participant) *ParticipantInfo {
	info := &ParticipantInfo{Participant: *p}
	stats := p.Stats
	if stats.Submissions > 0 {
		info.VerificationRate = stats.VerifiedSubmissions * 100 / stats.Submissions
		info.AverageWeight = stats.TotalWeight / stats.Submissions
	}
	var best uint64
	for _, c := range Categories() {
		if n := stats.CategoryCounts[c.index()]; n > best {
			best = n
			info.MostSubmitted = c
		}
	}
	info.ActiveRecycler = stats.Submissions >= activeRecyclerThreshold
	info.VerifiedContributor = stats.Submissions > 0 && info.VerificationRate >= verifiedContributorThreshold
	return info
}

// Material is a unit of recyclable material tracked by the ledger.
type Material struct {
	ID           uint64
	Category     Category
	Weight       uint64
	Originator   [20]byte
	Custodian    [20]byte
	SubmittedAt  uint64
	Active       bool
	Verified     bool
	Confirmed    bool
	Confirmer    [20]byte
	Description  string
	Latitude     Coordinate
	Longitude    Coordinate
	Transfers    uint64
	RewardPoints uint64
	VerifiedAt   uint64
}

// TransferRecord is one hop of a material's custody chain.
type TransferRecord struct {
	MaterialID uint64
	From       [20]byte
	To         [20]byte
	Timestamp  uint64
	Latitude   Coordinate
	Longitude  Coordinate
	Note       string
}

// Incentive is a processor-sponsored reward offer for one category.
type Incentive struct {
	ID              uint64
	Sponsor         [20]byte
	Category        Category
	RewardPoints    uint64
	TotalBudget     uint64
	RemainingBudget uint64
	Active          bool
	CreatedAt       uint64
}

// DistributionConfig holds the percentage split applied to reward pools.
type DistributionConfig struct {
	HandlerSharePercent   uint32
	CustodianSharePercent uint32
}

// DefaultDistribution applies until an admin stores a configuration.
func DefaultDistribution() DistributionConfig {
	return DistributionConfig{HandlerSharePercent: 5, CustodianSharePercent: 50}
}

// Validate checks both shares are within [0,100] and sum to at most 100.
func (c DistributionConfig) Validate() error {
	if c.HandlerSharePercent > 100 || c.CustodianSharePercent > 100 {
		return fmt.Errorf("%w: share above 100", ErrInvalidPercentages)
	}
	if c.HandlerSharePercent+c.CustodianSharePercent > 100 {
		return fmt.Errorf("%w: handler %d + custodian %d exceeds 100", ErrInvalidPercentages,
			c.HandlerSharePercent, c.CustodianSharePercent)
	}
	return nil
}

// Counters tracks the last identifiers issued for materials and incentives.
type Counters struct {
	LastMaterialID  uint64
	LastIncentiveID uint64
}

// AggregateMetrics are running totals over the ledger. TotalMaterials and
// TotalWeight cover active materials; TotalTokens covers every verified one.
type AggregateMetrics struct {
	TotalMaterials uint64
	TotalWeight    uint64
	TotalTokens    *uint256.Int
}

func (m *AggregateMetrics) normalize() {
	if m.TotalTokens == nil {
		m.TotalTokens = new(uint256.Int)
	}
}

// Equal reports whether both snapshots carry the same totals.
func (m AggregateMetrics) Equal(other AggregateMetrics) bool {
	m.normalize()
	other.normalize()
	return m.TotalMaterials == other.TotalMaterials &&
		m.TotalWeight == other.TotalWeight &&
		m.TotalTokens.Eq(other.TotalTokens)
}
