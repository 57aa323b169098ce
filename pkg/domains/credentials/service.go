package credentials

import (
	"context"

	"github.com/pkg/errors"
	"github.com/wagateway/pkg/config"
	"github.com/wagateway/pkg/gwerr"
	"gorm.io/gorm"
)

// Credentials is everything the gateway needs to act on behalf of one
// organization: its datastore connection and the internal provider
// endpoint that hosts its device sessions.
type Credentials struct {
	DatastoreURL    string
	DatastoreKey    string
	ProviderBaseURL string
	AdminToken      string
	InstanceLimit   int
}

type Service interface {
	Resolve(ctx context.Context, orgID uint) (Credentials, error)
}

type service struct {
	repository Repository
	defaults   config.InternalProvider
}

func NewService(r Repository, defaults config.InternalProvider) Service {
	return &service{
		repository: r,
		defaults:   defaults,
	}
}

// Resolve looks up the per-organization registry entry and falls back to
// the owning user's legacy single-credential record. Missing both is a
// hard stop, never retried.
func (s *service) Resolve(ctx context.Context, orgID uint) (Credentials, error) {
	cred, err := s.repository.FindByOrganization(ctx, orgID)
	if err == nil {
		return s.withDefaults(Credentials{
			DatastoreURL:    cred.DatastoreURL,
			DatastoreKey:    cred.DatastoreKey,
			ProviderBaseURL: cred.ProviderBaseURL,
			AdminToken:      cred.AdminToken,
			InstanceLimit:   cred.InstanceLimit,
		}), nil
	}
	if err != gorm.ErrRecordNotFound {
		return Credentials{}, errors.Wrap(err, "lookup organization credentials")
	}

	user, err := s.repository.FindLegacyOwner(ctx, orgID)
	if err == gorm.ErrRecordNotFound {
		return Credentials{}, errors.Wrapf(gwerr.ErrCredentialsNotFound, "organization %d", orgID)
	}
	if err != nil {
		return Credentials{}, errors.Wrap(err, "lookup legacy owner credentials")
	}

	return s.withDefaults(Credentials{
		DatastoreURL:    user.DatastoreURL,
		DatastoreKey:    user.DatastoreKey,
		ProviderBaseURL: user.ProviderBaseURL,
		AdminToken:      user.AdminToken,
	}), nil
}

func (s *service) withDefaults(c Credentials) Credentials {
	if c.ProviderBaseURL == "" {
		c.ProviderBaseURL = s.defaults.BaseURL
	}
	if c.AdminToken == "" {
		c.AdminToken = s.defaults.AdminToken
	}
	if c.InstanceLimit <= 0 {
		c.InstanceLimit = 1
	}
	return c
}
