package session

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/wagateway/pkg/domains/backends"
	"github.com/wagateway/pkg/domains/instances"
	"github.com/wagateway/pkg/dtos"
	"github.com/wagateway/pkg/entities"
	"github.com/wagateway/pkg/gwerr"
	"github.com/wagateway/pkg/provider"
)

// Canonical session states.
const (
	StateDisconnected = entities.StatusDisconnected
	StateWaitingQR    = entities.StatusWaitingQR
	StateConnected    = entities.StatusConnected
)

type Service interface {
	Connect(ctx context.Context, orgID uint) (dtos.SessionStateDTO, error)
	Status(ctx context.Context, orgID uint) (dtos.SessionStateDTO, error)
	QR(ctx context.Context, orgID uint) (dtos.SessionStateDTO, error)
	Logout(ctx context.Context, orgID uint) error
}

type service struct {
	backends  backends.Resolver
	instances instances.Service
	webhooks  *WebhookConfigurator
}

func NewService(b backends.Resolver, i instances.Service, w *WebhookConfigurator) Service {
	return &service{
		backends:  b,
		instances: i,
		webhooks:  w,
	}
}

// MapState reduces the backend's raw booleans to the canonical state:
// connected only when both websocket and login are up, waiting_qr when
// the socket is up but the device is unpaired, disconnected otherwise.
func MapState(connected, loggedIn bool) string {
	switch {
	case connected && loggedIn:
		return StateConnected
	case connected:
		return StateWaitingQR
	default:
		return StateDisconnected
	}
}

func (s *service) Connect(ctx context.Context, orgID uint) (dtos.SessionStateDTO, error) {
	p, integration, err := s.backends.For(ctx, orgID)
	if err != nil {
		return dtos.SessionStateDTO{}, err
	}

	info, err := p.Connect(ctx)
	switch {
	case err == nil:
	case errors.Is(err, gwerr.ErrAlreadyConnected), errors.Is(err, gwerr.ErrAlreadyLoggedIn):
		// Already-connected is success. Fetch the device id
		// opportunistically; a failed status read here is not fatal.
		info = provider.StatusInfo{Connected: true, LoggedIn: true}
		if st, serr := p.Status(ctx); serr == nil {
			info = st
			info.Connected, info.LoggedIn = true, true
		}
	case errors.Is(err, gwerr.ErrNoSession):
		// The session object does not exist on the backend yet. Not an
		// error state: report disconnected so the caller retries Connect.
		s.persist(ctx, orgID, StateDisconnected, "")
		return dtos.SessionStateDTO{State: StateDisconnected, InstanceID: integration.InstanceID}, nil
	default:
		return dtos.SessionStateDTO{}, err
	}

	state := MapState(info.Connected, info.LoggedIn)
	s.persist(ctx, orgID, state, info.DeviceJID)
	return s.stateDTO(state, info.DeviceJID, integration.InstanceID), nil
}

func (s *service) Status(ctx context.Context, orgID uint) (dtos.SessionStateDTO, error) {
	p, integration, err := s.backends.For(ctx, orgID)
	if err != nil {
		return dtos.SessionStateDTO{}, err
	}

	info, err := p.Status(ctx)
	if errors.Is(err, gwerr.ErrNoSession) {
		s.persist(ctx, orgID, StateDisconnected, "")
		return dtos.SessionStateDTO{State: StateDisconnected, InstanceID: integration.InstanceID}, nil
	}
	if err != nil {
		return dtos.SessionStateDTO{}, err
	}

	state := MapState(info.Connected, info.LoggedIn)
	s.persist(ctx, orgID, state, info.DeviceJID)

	// Webhook self-heal piggybacks on the polling path; a failure here
	// must not break the status answer.
	if werr := s.webhooks.Ensure(ctx, p, orgID, integration.InstanceID); werr != nil {
		log.Printf("[warn] webhook re-assert failed for organization %d: %v", orgID, werr)
	}

	return s.stateDTO(state, info.DeviceJID, integration.InstanceID), nil
}

func (s *service) QR(ctx context.Context, orgID uint) (dtos.SessionStateDTO, error) {
	p, integration, err := s.backends.For(ctx, orgID)
	if err != nil {
		return dtos.SessionStateDTO{}, err
	}

	qr, err := p.QR(ctx)
	if errors.Is(err, gwerr.ErrAlreadyLoggedIn) || errors.Is(err, gwerr.ErrAlreadyConnected) {
		// Nothing to scan; the device is paired. Report connected.
		info, serr := p.Status(ctx)
		jid := ""
		if serr == nil {
			jid = info.DeviceJID
		}
		s.persist(ctx, orgID, StateConnected, jid)
		return s.stateDTO(StateConnected, jid, integration.InstanceID), nil
	}
	if err != nil {
		return dtos.SessionStateDTO{}, err
	}

	s.persist(ctx, orgID, StateWaitingQR, "")
	dto := s.stateDTO(StateWaitingQR, "", integration.InstanceID)
	dto.QRPngBase64 = normalizeQR(qr)
	return dto, nil
}

func (s *service) Logout(ctx context.Context, orgID uint) error {
	p, _, err := s.backends.For(ctx, orgID)
	if err != nil {
		return err
	}

	err = p.Logout(ctx)
	// The local rows go to disconnected no matter what the provider said:
	// the row is the source of truth and a half-dead remote session must
	// not keep the gateway reporting connected.
	s.persist(ctx, orgID, StateDisconnected, "")
	if err != nil && !errors.Is(err, gwerr.ErrNoSession) {
		return err
	}
	return nil
}

// persist writes the transition onto the Integration/Instance rows so the
// state survives process restarts. Persistence problems are logged, not
// surfaced: the provider interaction already happened.
func (s *service) persist(ctx context.Context, orgID uint, state, deviceJID string) {
	var jid *string
	var connectedAt *time.Time
	if deviceJID != "" {
		jid = &deviceJID
	}
	if state == StateConnected {
		now := time.Now()
		connectedAt = &now
	}
	if err := s.instances.UpdatePairing(ctx, orgID, state, jid, connectedAt); err != nil {
		log.Printf("[warn] failed to persist session state %q for organization %d: %v", state, orgID, err)
	}
}

func (s *service) stateDTO(state, deviceJID, instanceID string) dtos.SessionStateDTO {
	dto := dtos.SessionStateDTO{State: state, InstanceID: instanceID}
	if deviceJID != "" {
		dto.DeviceJID = &deviceJID
	}
	return dto
}

// normalizeQR guarantees the data URL form regardless of whether the
// backend returned a bare base64 png or a full data URL.
func normalizeQR(qr string) string {
	if strings.HasPrefix(qr, "data:") {
		return qr
	}
	return "data:image/png;base64," + qr
}
