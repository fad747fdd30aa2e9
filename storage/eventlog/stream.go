package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"scavenger/core/types"
)

type streamAdder interface {
	XAdd(context.Context, *redis.XAddArgs) *redis.StringCmd
	Ping(context.Context) *redis.StatusCmd
	Close() error
}

// StreamOptions configures the Redis stream publisher.
type StreamOptions struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	MaxLen   int64
}

// StreamPublisher appends committed events to a Redis stream, one entry per
// event.
type StreamPublisher struct {
	client streamAdder
	stream string
	maxLen int64
}

// NewStreamPublisher connects to Redis and verifies connectivity.
func NewStreamPublisher(ctx context.Context, opts StreamOptions) (*StreamPublisher, error) {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, errors.New("eventlog: redis address is required")
	}
	raw := redis.NewClient(&redis.Options{Addr: opts.Addr, Password: opts.Password, DB: opts.DB})
	if err := raw.Ping(ctx).Err(); err != nil {
		raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return newStreamPublisher(raw, opts.Stream, opts.MaxLen), nil
}

func newStreamPublisher(client streamAdder, stream string, maxLen int64) *StreamPublisher {
	if strings.TrimSpace(stream) == "" {
		stream = "scavenger:events"
	}
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

// Stream returns the target stream key.
func (p *StreamPublisher) Stream() string { return p.stream }

// Publish appends every event of receipt to the stream.
func (p *StreamPublisher) Publish(ctx context.Context, receipt *types.Receipt) error {
	if receipt == nil {
		return nil
	}
	for i, evt := range receipt.Events {
		attrs, err := json.Marshal(evt.Attributes)
		if err != nil {
			return fmt.Errorf("eventlog: encode attributes: %w", err)
		}
		args := &redis.XAddArgs{
			Stream: p.stream,
			Values: map[string]any{
				"height":     strconv.FormatUint(receipt.Height, 10),
				"position":   strconv.Itoa(i),
				"callId":     receipt.CallID,
				"method":     receipt.Method,
				"signer":     receipt.Signer,
				"type":       evt.Type,
				"topics":     strings.Join(evt.Topics, " "),
				"attributes": string(attrs),
			},
		}
		if p.maxLen > 0 {
			args.MaxLen = p.maxLen
			args.Approx = true
		}
		if err := p.client.XAdd(ctx, args).Err(); err != nil {
			return fmt.Errorf("eventlog: xadd %s: %w", p.stream, err)
		}
	}
	return nil
}

// Close closes the Redis connection.
func (p *StreamPublisher) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}
