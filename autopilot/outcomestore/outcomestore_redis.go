package outcomestore

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisOutcomePrefix string = "outcome/"
var redisDailyPrefix string = "daily/"
var redisScorePrefix string = "health/"

// RedisStore keeps hour-bucketed outcome counters rather than full records.
// Bucket keys expire shortly after falling out of the window, so the keyspace
// stays proportional to active users.
type RedisStore struct {
	Client *redis.Client
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisStore{Client: rdb}, nil
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) RecordOutcome(ctx context.Context, userID string, o Outcome) error {
	if o.At.IsZero() {
		o.At = time.Now()
	}

	// increment all counters in a single redis round-trip
	multi := s.Client.Pipeline()

	key := redisOutcomePrefix + userID + "/" + hourBucket(o.At)
	if o.Success {
		multi.HIncrBy(ctx, key, "success", 1)
	} else {
		multi.HIncrBy(ctx, key, "failure", 1)
	}
	multi.HIncrBy(ctx, key, "type:"+o.Type, 1)
	multi.Expire(ctx, key, Window+2*time.Hour)

	if o.Success {
		dkey := redisDailyPrefix + userID + "/" + o.Type + "/" + dayBucket(o.At)
		multi.Incr(ctx, dkey)
		multi.Expire(ctx, dkey, 48*time.Hour)
	}

	_, err := multi.Exec(ctx)
	return err
}

func (s *RedisStore) WindowCounts(ctx context.Context, userID string) (WindowCounts, error) {
	now := time.Now()

	multi := s.Client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, 25)
	for i := 0; i <= 24; i++ {
		key := redisOutcomePrefix + userID + "/" + hourBucket(now.Add(-time.Duration(i)*time.Hour))
		cmds = append(cmds, multi.HGetAll(ctx, key))
	}
	if _, err := multi.Exec(ctx); err != nil && err != redis.Nil {
		return WindowCounts{}, err
	}

	counts := WindowCounts{ByType: make(map[string]int)}
	for _, cmd := range cmds {
		for field, val := range cmd.Val() {
			n, err := strconv.Atoi(val)
			if err != nil {
				continue
			}
			switch {
			case field == "success":
				counts.Successes += n
			case field == "failure":
				counts.Failures += n
			case len(field) > 5 && field[:5] == "type:":
				counts.ByType[field[5:]] += n
			}
		}
	}
	return counts, nil
}

func (s *RedisStore) DayCount(ctx context.Context, userID, actionType string) (int, error) {
	key := redisDailyPrefix + userID + "/" + actionType + "/" + dayBucket(time.Now())
	n, err := s.Client.Get(ctx, key).Int()
	if err == redis.Nil {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *RedisStore) GetScore(ctx context.Context, userID string) (int, bool, error) {
	v, err := s.Client.Get(ctx, redisScorePrefix+userID).Int()
	if err == redis.Nil {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (s *RedisStore) SetScore(ctx context.Context, userID string, score int) error {
	return s.Client.Set(ctx, redisScorePrefix+userID, score, 0).Err()
}
