package redis

import (
	"context"

	"github.com/turtacn/ProtonGraph/internal/domain/record"
	"github.com/turtacn/ProtonGraph/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ProtonGraph/pkg/errors"
)

const exclusionSetKey = "exclusion"

// ExclusionSet holds the canonical structure keys of an external benchmark
// in a Redis set. Structures present in the set are kept out of produced
// datasets so evaluation against the benchmark stays honest.
type ExclusionSet struct {
	client *Client
	logger logging.Logger
}

// NewExclusionSet builds an exclusion source backed by the given client.
func NewExclusionSet(client *Client, logger logging.Logger) *ExclusionSet {
	return &ExclusionSet{client: client, logger: logger}
}

var _ record.ExclusionSource = (*ExclusionSet)(nil)

// Contains reports whether the canonical key is in the exclusion set.
// A transport failure is returned as-is so callers can abort rather than
// silently admit structures that may overlap the benchmark.
func (e *ExclusionSet) Contains(ctx context.Context, canonicalKey string) (bool, error) {
	member, err := e.client.Raw().SIsMember(ctx, e.client.Key(exclusionSetKey), canonicalKey).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "exclusion set lookup failed")
	}
	return member, nil
}

// Seed loads canonical keys into the exclusion set in batches. It is used
// by the CLI to import benchmark structure keys before a preparation run.
func (e *ExclusionSet) Seed(ctx context.Context, keys []string) (int64, error) {
	const batchSize = 500

	var added int64
	setKey := e.client.Key(exclusionSetKey)
	for start := 0; start < len(keys); start += batchSize {
		end := start + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		members := make([]interface{}, 0, end-start)
		for _, k := range keys[start:end] {
			members = append(members, k)
		}
		n, err := e.client.Raw().SAdd(ctx, setKey, members...).Result()
		if err != nil {
			return added, errors.Wrap(err, errors.ErrCodeCacheError, "exclusion set seed failed")
		}
		added += n
	}

	e.logger.Info("seeded exclusion set",
		logging.Int("keys", len(keys)),
		logging.Int64("added", added),
	)
	return added, nil
}

// Size returns the number of canonical keys currently excluded.
func (e *ExclusionSet) Size(ctx context.Context) (int64, error) {
	n, err := e.client.Raw().SCard(ctx, e.client.Key(exclusionSetKey)).Result()
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeCacheError, "exclusion set size failed")
	}
	return n, nil
}

// Clear removes the exclusion set entirely.
func (e *ExclusionSet) Clear(ctx context.Context) error {
	if err := e.client.Raw().Del(ctx, e.client.Key(exclusionSetKey)).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "exclusion set clear failed")
	}
	return nil
}
