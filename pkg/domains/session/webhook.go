package session

import (
	"context"
	"fmt"
	"net/url"

	"github.com/wagateway/pkg/provider"
)

// DefaultWebhookEvents is what the gateway subscribes every instance to.
var DefaultWebhookEvents = []string{"message", "status"}

// WebhookConfigurator keeps the provider-side inbound URL pointed at this
// gateway. The check-then-set is idempotent and runs on every status
// poll, so a provider-side reset heals within one polling interval
// without a separate reconciliation job.
type WebhookConfigurator struct {
	publicBase string
}

func NewWebhookConfigurator(publicBase string) *WebhookConfigurator {
	return &WebhookConfigurator{publicBase: publicBase}
}

func (w *WebhookConfigurator) ExpectedURL(orgID uint, instanceID string) string {
	return fmt.Sprintf("%s/inbound?organization_id=%d&instance_id=%s", w.publicBase, orgID, instanceID)
}

// Ensure fetches the currently configured webhook and overwrites it when
// it is empty, points elsewhere, or is missing either query parameter.
// A correct URL results in no SetWebhook call.
func (w *WebhookConfigurator) Ensure(ctx context.Context, p provider.Provider, orgID uint, instanceID string) error {
	expected := w.ExpectedURL(orgID, instanceID)

	current, err := p.GetWebhook(ctx)
	if err == nil && webhookMatches(current, expected) {
		return nil
	}

	return p.SetWebhook(ctx, expected, DefaultWebhookEvents)
}

func webhookMatches(current, expected string) bool {
	if current == "" {
		return false
	}
	cur, err := url.Parse(current)
	if err != nil {
		return false
	}
	exp, _ := url.Parse(expected)

	if cur.Scheme != exp.Scheme || cur.Host != exp.Host || cur.Path != exp.Path {
		return false
	}
	cq, eq := cur.Query(), exp.Query()
	return cq.Get("organization_id") == eq.Get("organization_id") &&
		cq.Get("instance_id") == eq.Get("instance_id")
}
