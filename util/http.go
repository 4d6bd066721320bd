package util

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// retryLogger adapts slog to retryablehttp's LeveledLogger. Failures that
// will be retried arrive at ERROR; they are demoted to WARN so only a final
// failure reads as an error in the logs.
type retryLogger struct {
	log *slog.Logger
}

func (l retryLogger) Error(msg string, kv ...interface{}) { l.log.Warn(msg, kv...) }
func (l retryLogger) Warn(msg string, kv ...interface{})  { l.log.Warn(msg, kv...) }
func (l retryLogger) Info(msg string, kv ...interface{})  { l.log.Info(msg, kv...) }

// retries themselves are logged at DEBUG; promote so they stay visible
func (l retryLogger) Debug(msg string, kv ...interface{}) { l.log.Info(msg, kv...) }

// RobustHTTPClient returns a stdlib-shaped *http.Client that transparently
// retries connection errors, 5xx responses (except 501), and 429s honoring
// the Retry-After header, with capped exponential waits between attempts
// and an overall per-request timeout.
func RobustHTTPClient() *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 1 * time.Second
	rc.RetryWaitMax = 10 * time.Second
	rc.Logger = retryablehttp.LeveledLogger(retryLogger{slog.Default().With("subsystem", "http")})

	client := rc.StandardClient()
	client.Timeout = 20 * time.Second
	return client
}
