package worker

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultQueueKey = "curator-desk:card-refresh"
	batchSize       = 50
)

// CardRetryQueue keeps tickets whose card must be rendered again. Members
// of a sorted set are ticket ids scored by the time they become due, so
// repeated failures for one ticket collapse into one pending refresh.
type CardRetryQueue struct {
	client      *redis.Client
	key         string
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time
}

// QueueOptions tunes the queue. Zero values pick defaults.
type QueueOptions struct {
	Key         string
	MaxAttempts int
	Backoff     time.Duration
	Now         func() time.Time
}

// NewCardRetryQueue creates a queue on client.
func NewCardRetryQueue(client *redis.Client, opts QueueOptions) *CardRetryQueue {
	q := &CardRetryQueue{
		client:      client,
		key:         opts.Key,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		now:         opts.Now,
	}
	if q.key == "" {
		q.key = defaultQueueKey
	}
	if q.maxAttempts <= 0 {
		q.maxAttempts = 5
	}
	if q.backoff <= 0 {
		q.backoff = 5 * time.Second
	}
	if q.now == nil {
		q.now = time.Now
	}
	return q
}

// Enqueue schedules a refresh now. A ticket already waiting keeps its slot.
func (q *CardRetryQueue) Enqueue(ctx context.Context, ticketID string) error {
	return q.client.ZAddNX(ctx, q.key, redis.Z{
		Score:  float64(q.now().UnixMilli()),
		Member: ticketID,
	}).Err()
}

// Claim removes and returns up to batchSize tickets that are due. A ticket
// is handed to exactly one caller even with several workers polling.
func (q *CardRetryQueue) Claim(ctx context.Context) ([]string, error) {
	due, err := q.client.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(q.now().UnixMilli(), 10),
		Count: batchSize,
	}).Result()
	if err != nil {
		return nil, err
	}
	claimed := make([]string, 0, len(due))
	for _, ticketID := range due {
		removed, err := q.client.ZRem(ctx, q.key, ticketID).Result()
		if err != nil {
			return claimed, err
		}
		if removed == 1 {
			claimed = append(claimed, ticketID)
		}
	}
	return claimed, nil
}

// ErrGaveUp is returned by Retry once a ticket used all its attempts.
var ErrGaveUp = errors.New("card refresh attempts exhausted")

// Retry records a failed attempt and schedules the next one with linear
// backoff, or drops the ticket after the last attempt.
func (q *CardRetryQueue) Retry(ctx context.Context, ticketID string) error {
	attemptsKey := q.attemptsKey()
	attempts, err := q.client.HIncrBy(ctx, attemptsKey, ticketID, 1).Result()
	if err != nil {
		return err
	}
	if attempts >= int64(q.maxAttempts) {
		if err := q.client.HDel(ctx, attemptsKey, ticketID).Err(); err != nil {
			return err
		}
		return ErrGaveUp
	}
	due := q.now().Add(time.Duration(attempts) * q.backoff)
	return q.client.ZAdd(ctx, q.key, redis.Z{Score: float64(due.UnixMilli()), Member: ticketID}).Err()
}

// Done forgets the attempt count of a refreshed ticket.
func (q *CardRetryQueue) Done(ctx context.Context, ticketID string) error {
	return q.client.HDel(ctx, q.attemptsKey(), ticketID).Err()
}

// Len returns the number of waiting tickets.
func (q *CardRetryQueue) Len(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.key).Result()
}

func (q *CardRetryQueue) attemptsKey() string {
	return q.key + ":attempts"
}
