package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"trivia-rooms/internal/domain"
)

// BankLoader fetches question banks from a backing store (e.g., Postgres).
type BankLoader interface {
	LoadBank(ctx context.Context, bankID string) (domain.QuestionBank, error)
}

// QuestionRepository caches bank JSON in Redis and falls back to a loader on
// cache miss. Banks are stored as: SET bank:{bankID}:data {json}
type QuestionRepository struct {
	client *redis.Client
	loader BankLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionRepository(client *redis.Client, loader BankLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) GetBank(ctx context.Context, bankID string) (domain.QuestionBank, error) {
	if bank, ok := r.cached(ctx, bankID); ok {
		return bank, nil
	}

	result, err, _ := r.sf.Do(bankID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if bank, ok := r.cached(ctx, bankID); ok {
			return bank, nil
		}

		bank, err := r.loader.LoadBank(ctx, bankID)
		if err != nil {
			return domain.QuestionBank{}, err
		}

		if data, err := json.Marshal(bank); err == nil {
			_ = r.client.Set(ctx, r.key(bankID), data, r.ttlWithJitter()).Err()
		}
		return bank, nil
	})
	if err != nil {
		return domain.QuestionBank{}, err
	}
	return result.(domain.QuestionBank), nil
}

func (r *QuestionRepository) cached(ctx context.Context, bankID string) (domain.QuestionBank, bool) {
	data, err := r.client.Get(ctx, r.key(bankID)).Bytes()
	if err != nil || len(data) == 0 {
		return domain.QuestionBank{}, false
	}
	var bank domain.QuestionBank
	if err := json.Unmarshal(data, &bank); err != nil {
		return domain.QuestionBank{}, false
	}
	return bank, true
}

func (r *QuestionRepository) key(bankID string) string {
	return "bank:" + bankID + ":data"
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
