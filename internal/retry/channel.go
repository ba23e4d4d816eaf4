package retry

import (
	"context"

	"github.com/educreche/notify-gateway/internal/model"
	"github.com/educreche/notify-gateway/internal/provider"
)

// Channel adapts one delivery channel to the sweep loop: resolve the
// provider-side contact, then dispatch exactly once. Implementations never
// retry; backoff is the sweep's job.
type Channel interface {
	Name() model.Channel
	// Configured reports whether provider credentials are present. Missing
	// credentials are a fail-fast configuration error, never a retried send.
	Configured() bool
	ResolveContact(ctx context.Context, rec *model.MessageRecord) (contactID string, err error)
	Dispatch(ctx context.Context, rec *model.MessageRecord, contactID string) (providerMessageID string, err error)
}

// EmailChannel needs no contact resolution; the address is the contact.
type EmailChannel struct {
	Client *provider.EmailClient
}

func (c EmailChannel) Name() model.Channel { return model.ChannelEmail }

func (c EmailChannel) Configured() bool { return c.Client.Configured() }

func (c EmailChannel) ResolveContact(ctx context.Context, rec *model.MessageRecord) (string, error) {
	return rec.Recipient, nil
}

func (c EmailChannel) Dispatch(ctx context.Context, rec *model.MessageRecord, contactID string) (string, error) {
	return c.Client.Dispatch(ctx, contactID, provider.Content{Subject: rec.Subject, Body: rec.Body})
}

// WhatsAppChannel resolves a conversations-API contact before dispatch.
type WhatsAppChannel struct {
	Client *provider.WhatsAppClient
}

func (c WhatsAppChannel) Name() model.Channel { return model.ChannelWhatsApp }

func (c WhatsAppChannel) Configured() bool { return c.Client.Configured() }

func (c WhatsAppChannel) ResolveContact(ctx context.Context, rec *model.MessageRecord) (string, error) {
	return c.Client.ResolveContact(ctx, rec.Recipient)
}

func (c WhatsAppChannel) Dispatch(ctx context.Context, rec *model.MessageRecord, contactID string) (string, error) {
	return c.Client.Dispatch(ctx, contactID, provider.Content{Body: rec.Body})
}
