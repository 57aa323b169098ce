package backends

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/wagateway/pkg/config"
	"github.com/wagateway/pkg/constant"
	"github.com/wagateway/pkg/domains/credentials"
	"github.com/wagateway/pkg/domains/instances"
	"github.com/wagateway/pkg/entities"
	"github.com/wagateway/pkg/provider"
	"gorm.io/gorm"
)

// Resolver builds the provider adapter for an organization's active
// device slot. Which backend, which base URL and which secrets all come
// out of the credential registry and the Integration/Instance rows, so
// any gateway process can serve any organization.
type Resolver interface {
	For(ctx context.Context, orgID uint) (provider.Provider, entities.Integration, error)
}

type resolver struct {
	instances   instances.Service
	credentials credentials.Service
	cfg         config.Gateway
}

func NewResolver(i instances.Service, c credentials.Service, cfg config.Gateway) Resolver {
	return &resolver{
		instances:   i,
		credentials: c,
		cfg:         cfg,
	}
}

func (r *resolver) For(ctx context.Context, orgID uint) (provider.Provider, entities.Integration, error) {
	integration, err := r.instances.Integration(ctx, orgID)
	if err == gorm.ErrRecordNotFound {
		integration = entities.Integration{
			OrganizationID: orgID,
			Provider:       r.cfg.DefaultProvider,
		}
	} else if err != nil {
		return nil, entities.Integration{}, errors.Wrap(err, "lookup integration")
	}
	if integration.Provider == "" {
		integration.Provider = r.cfg.DefaultProvider
	}

	// The multi-instance model wins when an active instance exists but
	// the legacy row was never mirrored.
	if integration.InstanceID == "" {
		if instance, err := r.instances.Active(ctx, orgID); err == nil {
			integration.InstanceID = instance.InstanceID
			integration.InstanceToken = instance.InstanceToken
			if integration.ClientToken == "" {
				integration.ClientToken = instance.ClientToken
			}
		}
	}

	timeout := time.Duration(r.cfg.HTTPTimeoutSeconds) * time.Second

	switch integration.Provider {
	case constant.ProviderInternal:
		cred, err := r.credentials.Resolve(ctx, orgID)
		if err != nil {
			return nil, entities.Integration{}, err
		}
		store := &deviceTokenStore{instances: r.instances, orgID: orgID}
		return provider.NewInternalGateway(cred.ProviderBaseURL, cred.AdminToken, orgID, store, timeout, r.cfg.MediaMaxBytes), integration, nil
	case constant.ProviderZAPI:
		return provider.NewZAPI(r.cfg.ZAPI.BaseURL, integration.InstanceID, integration.InstanceToken, timeout), integration, nil
	case constant.ProviderMegazap:
		return provider.NewMegazap(r.cfg.Megazap.BaseURL, integration.InstanceID, integration.InstanceToken, timeout), integration, nil
	}
	return nil, entities.Integration{}, errors.Errorf("unknown provider %q for organization %d", integration.Provider, orgID)
}

// deviceTokenStore adapts the instance manager to the internal backend's
// lazy device-token persistence.
type deviceTokenStore struct {
	instances instances.Service
	orgID     uint
}

func (t *deviceTokenStore) DeviceToken(ctx context.Context) (string, error) {
	return t.instances.DeviceToken(ctx, t.orgID)
}

func (t *deviceTokenStore) SaveDeviceToken(ctx context.Context, token string) error {
	return t.instances.SaveDeviceToken(ctx, t.orgID, token)
}
