package instances

import (
	"context"
	"log"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pkg/errors"
	"github.com/wagateway/pkg/constant"
	"github.com/wagateway/pkg/domains/credentials"
	"github.com/wagateway/pkg/entities"
	"github.com/wagateway/pkg/gwerr"
	"github.com/wagateway/pkg/utils"
	"gorm.io/gorm"
)

// Token rotation selectors.
const (
	RotateInstance = "instance"
	RotateClient   = "client"
	RotateBoth     = "both"
)

const tokenBytes = 24

type Service interface {
	Create(ctx context.Context, orgID uint) (entities.Instance, error)
	List(ctx context.Context, orgID uint) ([]entities.Instance, error)
	Rotate(ctx context.Context, orgID uint, instanceID, which string) (entities.Instance, error)
	SetActive(ctx context.Context, orgID uint, instanceID string) error
	Active(ctx context.Context, orgID uint) (entities.Instance, error)
	Integration(ctx context.Context, orgID uint) (entities.Integration, error)
	ResolveToken(ctx context.Context, orgID uint) (string, error)
	UpdatePairing(ctx context.Context, orgID uint, status string, deviceJID *string, connectedAt *time.Time) error
	DeviceToken(ctx context.Context, orgID uint) (string, error)
	SaveDeviceToken(ctx context.Context, orgID uint, token string) error
}

type service struct {
	repository    Repository
	credentials   credentials.Service
	fallbackToken string
	node          *snowflake.Node
}

func NewService(r Repository, c credentials.Service, fallbackToken string) Service {
	node, err := snowflake.NewNode(1)
	if err != nil {
		log.Panicf("failed to initialize instance id generator: %v", err)
	}
	return &service{
		repository:    r,
		credentials:   c,
		fallbackToken: fallbackToken,
		node:          node,
	}
}

// Create provisions a new device slot. The quota comes from the tenant
// registry (default 1); the two secrets are independent 24-byte tokens
// and are regenerated on the off chance they collide. The organization's
// first instance is activated immediately so a fresh tenant can start a
// session without an explicit instance-set-active call.
func (s *service) Create(ctx context.Context, orgID uint) (entities.Instance, error) {
	cred, err := s.credentials.Resolve(ctx, orgID)
	if err != nil {
		return entities.Instance{}, err
	}

	count, err := s.repository.CountByOrganization(ctx, orgID)
	if err != nil {
		return entities.Instance{}, errors.Wrap(err, "count instances")
	}
	if count >= int64(cred.InstanceLimit) {
		return entities.Instance{}, errors.Wrapf(gwerr.ErrInstanceLimitReached, "limit is %d", cred.InstanceLimit)
	}

	instanceToken, clientToken := newTokenPair()
	instance := entities.Instance{
		OrganizationID: orgID,
		InstanceID:     s.node.Generate().String(),
		InstanceToken:  instanceToken,
		ClientToken:    clientToken,
		Status:         entities.StatusDisconnected,
	}

	if err := s.repository.Create(ctx, &instance); err != nil {
		return entities.Instance{}, errors.Wrap(err, "create instance")
	}
	log.Printf("[info] created instance %s for organization %d", instance.InstanceID, orgID)

	if count == 0 {
		if err := s.repository.Activate(ctx, orgID, instance.InstanceID); err != nil {
			return entities.Instance{}, errors.Wrap(err, "activate first instance")
		}
		instance.IsActive = true
	}

	return instance, nil
}

func (s *service) List(ctx context.Context, orgID uint) ([]entities.Instance, error) {
	return s.repository.List(ctx, orgID)
}

// Rotate replaces the selected token(s) atomically. The returned instance
// is the only place the new values appear; the old ones are invalid the
// moment this returns.
func (s *service) Rotate(ctx context.Context, orgID uint, instanceID, which string) (entities.Instance, error) {
	instance, err := s.repository.FindByInstanceID(ctx, orgID, instanceID)
	if err == gorm.ErrRecordNotFound {
		return entities.Instance{}, errors.Wrap(gwerr.ErrTokenInvalid, constant.INSTANCE_NOT_FOUND)
	}
	if err != nil {
		return entities.Instance{}, errors.Wrap(err, "lookup instance")
	}

	instanceToken, clientToken := instance.InstanceToken, instance.ClientToken
	switch which {
	case RotateInstance:
		instanceToken = utils.GenerateToken(tokenBytes)
	case RotateClient:
		clientToken = utils.GenerateToken(tokenBytes)
	case RotateBoth, "":
		instanceToken, clientToken = newTokenPair()
	default:
		return entities.Instance{}, errors.Errorf("unknown rotation target %q", which)
	}

	if err := s.repository.UpdateTokens(ctx, orgID, instanceID, instanceToken, clientToken); err != nil {
		return entities.Instance{}, errors.Wrap(err, "rotate tokens")
	}
	log.Printf("[info] rotated %s token(s) for instance %s (organization %d)", which, instanceID, orgID)

	instance.InstanceToken = instanceToken
	instance.ClientToken = clientToken
	return instance, nil
}

func (s *service) SetActive(ctx context.Context, orgID uint, instanceID string) error {
	err := s.repository.Activate(ctx, orgID, instanceID)
	if err == gorm.ErrRecordNotFound {
		return errors.Wrap(gwerr.ErrTokenInvalid, constant.INSTANCE_NOT_FOUND)
	}
	return err
}

func (s *service) Active(ctx context.Context, orgID uint) (entities.Instance, error) {
	return s.repository.FindActive(ctx, orgID)
}

func (s *service) Integration(ctx context.Context, orgID uint) (entities.Integration, error) {
	return s.repository.FindIntegration(ctx, orgID, "")
}

// ResolveToken returns the caller-facing secret for the organization,
// preferring the legacy Integration row, then the active Instance, then
// the deployment-wide fallback. The layered order exists because the two
// historical data models coexist and both must keep resolving.
func (s *service) ResolveToken(ctx context.Context, orgID uint) (string, error) {
	integration, err := s.repository.FindIntegration(ctx, orgID, "")
	if err == nil && integration.ClientToken != "" && integration.ClientToken != constant.SentinelInternalToken {
		return integration.ClientToken, nil
	}
	if err != nil && err != gorm.ErrRecordNotFound {
		return "", errors.Wrap(err, "lookup integration token")
	}

	instance, err := s.repository.FindActive(ctx, orgID)
	if err == nil && instance.ClientToken != "" {
		return instance.ClientToken, nil
	}
	if err != nil && err != gorm.ErrRecordNotFound {
		return "", errors.Wrap(err, "lookup active instance token")
	}

	if s.fallbackToken != "" {
		return s.fallbackToken, nil
	}
	return "", errors.Wrapf(gwerr.ErrTokenInvalid, "no client token resolves for organization %d", orgID)
}

func (s *service) UpdatePairing(ctx context.Context, orgID uint, status string, deviceJID *string, connectedAt *time.Time) error {
	return s.repository.UpdatePairing(ctx, orgID, status, deviceJID, connectedAt)
}

// DeviceToken reads the internal backend's provider-session secret from
// the Integration row; empty means none has been provisioned yet.
func (s *service) DeviceToken(ctx context.Context, orgID uint) (string, error) {
	integration, err := s.repository.FindIntegration(ctx, orgID, constant.ProviderInternal)
	if err == gorm.ErrRecordNotFound {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "lookup device token")
	}
	return integration.InstanceToken, nil
}

// SaveDeviceToken persists a lazily provisioned device token onto the
// Integration row (creating it if the organization has none) so every
// subsequent provider call reuses it.
func (s *service) SaveDeviceToken(ctx context.Context, orgID uint, token string) error {
	integration, err := s.repository.FindIntegration(ctx, orgID, constant.ProviderInternal)
	if err == gorm.ErrRecordNotFound {
		integration = entities.Integration{
			OrganizationID: orgID,
			Provider:       constant.ProviderInternal,
			InstanceToken:  token,
			IsActive:       true,
			PairingStatus:  entities.StatusDisconnected,
		}
		return s.repository.SaveIntegration(ctx, &integration)
	}
	if err != nil {
		return errors.Wrap(err, "lookup integration")
	}
	return s.repository.UpdateIntegrationToken(ctx, orgID, constant.ProviderInternal, token)
}

// newTokenPair generates two independent secrets, retrying until they
// differ. Equal secrets would let one credential impersonate the other
// side.
func newTokenPair() (string, string) {
	instanceToken := utils.GenerateToken(tokenBytes)
	clientToken := utils.GenerateToken(tokenBytes)
	for clientToken == instanceToken {
		clientToken = utils.GenerateToken(tokenBytes)
	}
	return instanceToken, clientToken
}
