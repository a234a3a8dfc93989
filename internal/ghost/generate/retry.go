package generate

import (
	"context"
	"errors"

	"github.com/bdobrica/Ghost/common/retry"
)

type retrying struct {
	inner Generator
	cfg   retry.Config
}

// Retrying retries transport failures of g. Rate limits, refusals and an
// expired context end the call at once.
func Retrying(g Generator, cfg retry.Config) Generator {
	cfg.ShouldRetry = transient
	return &retrying{inner: g, cfg: cfg}
}

func transient(err error) bool {
	return !errors.Is(err, ErrRateLimit) &&
		!errors.Is(err, ErrRefusal) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

func (r *retrying) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	var out string
	err := retry.Do(ctx, r.cfg, func() error {
		var err error
		out, err = r.inner.Generate(ctx, prompt, opts)
		return err
	})
	return out, err
}
