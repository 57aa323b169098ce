package credentials

import (
	"context"

	"github.com/wagateway/pkg/entities"
	"gorm.io/gorm"
)

type Repository interface {
	FindByOrganization(ctx context.Context, orgID uint) (entities.OrganizationCredential, error)
	FindLegacyOwner(ctx context.Context, orgID uint) (entities.User, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) Repository {
	return &repository{
		db: db,
	}
}

func (r *repository) FindByOrganization(ctx context.Context, orgID uint) (entities.OrganizationCredential, error) {
	var cred entities.OrganizationCredential
	err := r.db.WithContext(ctx).Where("organization_id = ?", orgID).First(&cred).Error
	return cred, err
}

// FindLegacyOwner returns the organization's first user that still
// carries the pre-registry single-credential columns.
func (r *repository) FindLegacyOwner(ctx context.Context, orgID uint) (entities.User, error) {
	var user entities.User
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND datastore_url <> ''", orgID).
		Order("id asc").
		First(&user).Error
	return user, err
}
