// Package retry runs a credential-parameterized operation against the pool
// managed by the ledger, rotating to the next available credential on quota
// failures and propagating everything else unchanged.
package retry

import (
	"context"
	"log/slog"

	"github.com/pyiy/zimage/internal/apierr"
	"github.com/pyiy/zimage/internal/ledger"
)

// Operation is one attempt against a backend. An empty credential means the
// anonymous public quota.
type Operation[T any] func(ctx context.Context, credential string) (T, error)

// Do executes op with credential rotation.
//
// With no credentials configured the operation runs exactly once anonymously
// and any error propagates unchanged. Otherwise attempts are bounded by the
// credential count plus one; each attempt uses the first non-exhausted
// credential, a quota failure marks it exhausted and moves on, and any other
// failure is returned immediately. Attempts are strictly sequential.
func Do[T any](ctx context.Context, lg *ledger.Ledger, log *slog.Logger, op Operation[T]) (T, error) {
	var zero T

	creds, err := lg.Credentials()
	if err != nil {
		return zero, err
	}
	if len(creds) == 0 {
		return op(ctx, "")
	}

	var lastErr error
	for attempt := 0; attempt <= len(creds); attempt++ {
		credential, ok, err := lg.NextAvailable()
		if err != nil {
			return zero, err
		}
		if !ok {
			return zero, apierr.New(apierr.KindQuotaExhausted, "all credentials exhausted for today")
		}

		result, err := op(ctx, credential)
		if err == nil {
			return result, nil
		}
		if !apierr.IsQuota(err) {
			return zero, err
		}

		log.Warn("Credential hit its quota, rotating to the next one", "attempt", attempt+1)
		if markErr := lg.MarkExhausted(credential); markErr != nil {
			return zero, markErr
		}
		lastErr = err
	}

	// The loop bound was hit without success. A pathological backend that
	// answers every credential with a quota error lands here.
	if lastErr != nil {
		return zero, lastErr
	}
	return zero, apierr.New(apierr.KindConnectivity, "no attempt produced a result")
}
