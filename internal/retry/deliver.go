package retry

import (
	"context"
	"errors"

	"github.com/educreche/notify-gateway/internal/metrics"
	"github.com/educreche/notify-gateway/internal/model"
	"github.com/educreche/notify-gateway/internal/provider"
)

// Deliver performs exactly one send attempt for the record and commits the
// outcome: sent on success, error with backoff scheduling on a transient
// provider failure, failed_permanent on an unresolvable destination. Used by
// the direct send path and, post-claim, by the retry sweep.
func Deliver(ctx context.Context, log Log, ch Channel, rec *model.MessageRecord) (model.MessageStatus, error) {
	contactID := ""
	if rec.ProviderContactID != nil && *rec.ProviderContactID != "" {
		// Cached contact id skips the provider lookup on retries.
		contactID = *rec.ProviderContactID
	} else {
		id, err := ch.ResolveContact(ctx, rec)
		if err != nil {
			if errors.Is(err, provider.ErrContactNotFound) {
				// Bad destination: retrying a lookup failure cannot fix it.
				if ferr := log.FailPermanently(ctx, rec, err.Error()); ferr != nil {
					return "", ferr
				}
				metrics.DispatchTotal.WithLabelValues(ch.Name().String(), "failed_permanent").Inc()
				return model.StatusFailedPermanent, nil
			}
			return recordFailure(ctx, log, ch, rec, "resolve contact: "+err.Error())
		}
		contactID = id
	}

	providerMessageID, err := ch.Dispatch(ctx, rec, contactID)
	if err != nil {
		return recordFailure(ctx, log, ch, rec, err.Error())
	}

	var cache *string
	if rec.ProviderContactID == nil && ch.Name() == model.ChannelWhatsApp {
		cache = &contactID
	}
	if err := log.RecordSuccess(ctx, rec, providerMessageID, cache); err != nil {
		return "", err
	}
	metrics.DispatchTotal.WithLabelValues(ch.Name().String(), "sent").Inc()
	return model.StatusSent, nil
}

func recordFailure(ctx context.Context, log Log, ch Channel, rec *model.MessageRecord, sendErr string) (model.MessageStatus, error) {
	status, err := log.RecordFailure(ctx, rec, sendErr)
	if err != nil {
		return "", err
	}
	metrics.DispatchTotal.WithLabelValues(ch.Name().String(), status.String()).Inc()
	return status, nil
}
