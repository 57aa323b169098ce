package instances

import (
	"context"
	"time"

	"github.com/wagateway/pkg/entities"
	"gorm.io/gorm"
)

type Repository interface {
	CountByOrganization(ctx context.Context, orgID uint) (int64, error)
	Create(ctx context.Context, instance *entities.Instance) error
	List(ctx context.Context, orgID uint) ([]entities.Instance, error)
	FindByInstanceID(ctx context.Context, orgID uint, instanceID string) (entities.Instance, error)
	FindActive(ctx context.Context, orgID uint) (entities.Instance, error)
	UpdateTokens(ctx context.Context, orgID uint, instanceID, instanceToken, clientToken string) error
	Activate(ctx context.Context, orgID uint, instanceID string) error
	UpdatePairing(ctx context.Context, orgID uint, status string, deviceJID *string, connectedAt *time.Time) error
	FindIntegration(ctx context.Context, orgID uint, provider string) (entities.Integration, error)
	SaveIntegration(ctx context.Context, integration *entities.Integration) error
	UpdateIntegrationToken(ctx context.Context, orgID uint, provider, instanceToken string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) Repository {
	return &repository{
		db: db,
	}
}

func (r *repository) CountByOrganization(ctx context.Context, orgID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Instance{}).
		Where("organization_id = ?", orgID).Count(&count).Error
	return count, err
}

func (r *repository) Create(ctx context.Context, instance *entities.Instance) error {
	return r.db.WithContext(ctx).Create(instance).Error
}

func (r *repository) List(ctx context.Context, orgID uint) ([]entities.Instance, error) {
	var list []entities.Instance
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("id asc").
		Find(&list).Error
	return list, err
}

func (r *repository) FindByInstanceID(ctx context.Context, orgID uint, instanceID string) (entities.Instance, error) {
	var instance entities.Instance
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND instance_id = ?", orgID, instanceID).
		First(&instance).Error
	return instance, err
}

func (r *repository) FindActive(ctx context.Context, orgID uint) (entities.Instance, error) {
	var instance entities.Instance
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND is_active = ?", orgID, true).
		First(&instance).Error
	return instance, err
}

// UpdateTokens replaces both token columns in a single statement. The
// rotated-out values are dead the moment the transaction commits.
func (r *repository) UpdateTokens(ctx context.Context, orgID uint, instanceID, instanceToken, clientToken string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entities.Instance{}).
			Where("organization_id = ? AND instance_id = ?", orgID, instanceID).
			Updates(map[string]interface{}{
				"instance_token": instanceToken,
				"client_token":   clientToken,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		// keep the legacy mirror in step when this instance is mirrored
		return tx.Model(&entities.Integration{}).
			Where("organization_id = ? AND instance_id = ?", orgID, instanceID).
			Updates(map[string]interface{}{
				"instance_token": instanceToken,
				"client_token":   clientToken,
			}).Error
	})
}

// Activate flips the target on and every sibling off in one transaction,
// then mirrors the instance into the legacy Integration row so both data
// models resolve the same active device.
func (r *repository) Activate(ctx context.Context, orgID uint, instanceID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var instance entities.Instance
		if err := tx.Where("organization_id = ? AND instance_id = ?", orgID, instanceID).
			First(&instance).Error; err != nil {
			return err
		}

		if err := tx.Model(&entities.Instance{}).
			Where("organization_id = ? AND instance_id <> ?", orgID, instanceID).
			Update("is_active", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&entities.Instance{}).
			Where("organization_id = ? AND instance_id = ?", orgID, instanceID).
			Update("is_active", true).Error; err != nil {
			return err
		}

		var integration entities.Integration
		err := tx.Where("organization_id = ?", orgID).
			Order("is_active desc, id asc").
			First(&integration).Error
		if err == gorm.ErrRecordNotFound {
			integration = entities.Integration{
				OrganizationID: orgID,
				Provider:       "internal",
				IsActive:       true,
				PairingStatus:  instance.Status,
			}
		} else if err != nil {
			return err
		}

		integration.InstanceID = instance.InstanceID
		integration.InstanceToken = instance.InstanceToken
		integration.ClientToken = instance.ClientToken
		return tx.Save(&integration).Error
	})
}

// UpdatePairing persists a session transition onto both the active
// Instance row and the Integration mirror; the rows are the source of
// truth across process restarts.
func (r *repository) UpdatePairing(ctx context.Context, orgID uint, status string, deviceJID *string, connectedAt *time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":       status,
			"device_jid":   deviceJID,
			"connected_at": connectedAt,
		}
		if err := tx.Model(&entities.Instance{}).
			Where("organization_id = ? AND is_active = ?", orgID, true).
			Updates(updates).Error; err != nil {
			return err
		}
		return tx.Model(&entities.Integration{}).
			Where("organization_id = ?", orgID).
			Updates(map[string]interface{}{
				"pairing_status": status,
				"device_jid":     deviceJID,
				"connected_at":   connectedAt,
			}).Error
	})
}

func (r *repository) FindIntegration(ctx context.Context, orgID uint, provider string) (entities.Integration, error) {
	var integration entities.Integration
	query := r.db.WithContext(ctx).Where("organization_id = ?", orgID)
	if provider != "" {
		query = query.Where("provider = ?", provider)
	}
	err := query.Order("is_active desc, id asc").First(&integration).Error
	return integration, err
}

func (r *repository) SaveIntegration(ctx context.Context, integration *entities.Integration) error {
	return r.db.WithContext(ctx).Save(integration).Error
}

func (r *repository) UpdateIntegrationToken(ctx context.Context, orgID uint, provider, instanceToken string) error {
	return r.db.WithContext(ctx).Model(&entities.Integration{}).
		Where("organization_id = ? AND provider = ?", orgID, provider).
		Update("instance_token", instanceToken).Error
}
