package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// DefaultDelays is the pause schedule between attempts: 1s, 3s and 5s.
var DefaultDelays = []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

// StatusError reports a non-successful HTTP response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.Code)
}

// Retriable reports whether the server may accept the same request later.
func (e *StatusError) Retriable() bool {
	return e.Code >= http.StatusInternalServerError || e.Code == http.StatusTooManyRequests
}

// WithRetry runs fn once and then once more after each delay while the error is retriable.
// It returns the number of attempts made together with the last error.
func WithRetry(ctx context.Context, delays []time.Duration, fn func() error) (int, error) {
	attempts := 0
	var err error
	for i := 0; ; i++ {
		attempts++
		err = fn()
		if err == nil || !isRetriable(err) || i >= len(delays) {
			return attempts, err
		}

		t := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			t.Stop()
			return attempts, errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
}

func isRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var stErr *StatusError
	if errors.As(err, &stErr) {
		return stErr.Retriable()
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.ConnectionException,
			pgerrcode.ConnectionDoesNotExist,
			pgerrcode.ConnectionFailure,
			pgerrcode.SQLClientUnableToEstablishSQLConnection,
			pgerrcode.SQLServerRejectedEstablishmentOfSQLConnection,
			pgerrcode.TransactionResolutionUnknown,
			pgerrcode.SerializationFailure,
			pgerrcode.TooManyConnections:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	return os.IsTimeout(err)
}
