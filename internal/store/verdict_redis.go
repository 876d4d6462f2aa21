package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/local/scanprep/internal/page"
)

// VerdictStore keeps per-page verdicts for a job so callers can audit why a
// page was dropped. Every dropped page must be attributable to a specific
// rule; the verdict record is that attribution.
type VerdictStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewVerdictStore connects to Redis.
func NewVerdictStore(redisURL string, ttl time.Duration) (*VerdictStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opt)
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &VerdictStore{client: c, ttl: ttl}, nil
}

func (s *VerdictStore) Close() error { return s.client.Close() }

func (s *VerdictStore) key(jobID string) string {
	return fmt.Sprintf("job:%s:verdicts", jobID)
}

// Save stores the verdict for one page of a job.
func (s *VerdictStore) Save(ctx context.Context, jobID string, v page.Verdict) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	k := s.key(jobID)
	if err := s.client.HSet(ctx, k, fmt.Sprintf("%d", v.Index), string(b)).Err(); err != nil {
		return err
	}
	if s.ttl > 0 {
		_ = s.client.Expire(ctx, k, s.ttl).Err()
	}
	return nil
}

// List returns all stored verdicts for a job in page order.
func (s *VerdictStore) List(ctx context.Context, jobID string, total int) ([]page.Verdict, error) {
	res, err := s.client.HGetAll(ctx, s.key(jobID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]page.Verdict, 0, len(res))
	for i := 0; i < total; i++ {
		raw, ok := res[fmt.Sprintf("%d", i)]
		if !ok {
			continue
		}
		var v page.Verdict
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
