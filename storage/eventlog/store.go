package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"scavenger/core/types"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultListLimit = 100
	maxListLimit     = 1000
)

var ErrUnsupportedDriver = errors.New("eventlog: unsupported driver")

// Record is one archived event together with the call that produced it.
type Record struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Height     uint64    `gorm:"index:idx_event_position,priority:1;not null"`
	Position   int       `gorm:"index:idx_event_position,priority:2;not null"`
	CallID     string    `gorm:"index"`
	Method     string    `gorm:"index;not null"`
	Signer     string    `gorm:"index"`
	StateRoot  string    `gorm:"not null"`
	Type       string    `gorm:"index;not null"`
	Topics     string    // space separated, padded with a leading and trailing space
	Attributes string    // JSON object
	CreatedAt  time.Time
}

// TableName pins the table name independent of gorm's pluralisation.
func (Record) TableName() string { return "custody_events" }

// TopicList returns the record's topics.
func (r Record) TopicList() []string {
	return strings.Fields(r.Topics)
}

// AttributeMap decodes the stored attributes.
func (r Record) AttributeMap() (map[string]string, error) {
	out := map[string]string{}
	if strings.TrimSpace(r.Attributes) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(r.Attributes), &out); err != nil {
		return nil, fmt.Errorf("eventlog: decode attributes: %w", err)
	}
	return out, nil
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	FromHeight uint64
	ToHeight   uint64
	Type       string
	Signer     string
	Topic      string
	Limit      int

	after *cursor
}

// cursor resumes a listing after the given event position.
type cursor struct {
	height   uint64
	position int
}

// Store archives committed events in a SQL database.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open connects to driver/dsn and migrates the schema.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %s: %w", driver, err)
	}
	return NewStore(db)
}

// NewStore wraps an existing connection and migrates the schema.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("eventlog: nil database")
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("eventlog: migrate: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Append archives every event of receipt in a single transaction.
func (s *Store) Append(ctx context.Context, receipt *types.Receipt) error {
	if receipt == nil || len(receipt.Events) == 0 {
		return nil
	}
	now := s.now().UTC()
	records := make([]Record, 0, len(receipt.Events))
	for i, evt := range receipt.Events {
		attrs := evt.Attributes
		if attrs == nil {
			attrs = map[string]string{}
		}
		encoded, err := json.Marshal(attrs)
		if err != nil {
			return fmt.Errorf("eventlog: encode attributes: %w", err)
		}
		topics := ""
		if len(evt.Topics) > 0 {
			topics = " " + strings.Join(evt.Topics, " ") + " "
		}
		records = append(records, Record{
			ID:         uuid.New(),
			Height:     receipt.Height,
			Position:   i,
			CallID:     receipt.CallID,
			Method:     receipt.Method,
			Signer:     receipt.Signer,
			StateRoot:  receipt.Root,
			Type:       evt.Type,
			Topics:     topics,
			Attributes: string(encoded),
			CreatedAt:  now,
		})
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&records).Error
	})
}

// List returns archived events in commit order.
func (s *Store) List(ctx context.Context, filter Filter) ([]Record, error) {
	query := s.db.WithContext(ctx).Model(&Record{})
	if filter.FromHeight > 0 {
		query = query.Where("height >= ?", filter.FromHeight)
	}
	if filter.ToHeight > 0 {
		query = query.Where("height <= ?", filter.ToHeight)
	}
	if t := strings.TrimSpace(filter.Type); t != "" {
		query = query.Where("type = ?", t)
	}
	if signer := strings.TrimSpace(filter.Signer); signer != "" {
		query = query.Where("signer = ?", signer)
	}
	if topic := strings.TrimSpace(filter.Topic); topic != "" {
		query = query.Where("topics LIKE ?", "% "+topic+" %")
	}
	if c := filter.after; c != nil {
		query = query.Where("(height > ? OR (height = ? AND position > ?))", c.height, c.height, c.position)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	var out []Record
	if err := query.Order("height ASC").Order("position ASC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("eventlog: list: %w", err)
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
