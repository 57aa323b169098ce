package entities

import (
	"gorm.io/gorm"
)

// Organization is the tenant identity. Rows are created by the external
// provisioning subsystem; the gateway only reads them.
type Organization struct {
	gorm.Model
	Name string `json:"name" gorm:"type:varchar(255);not null"`
	Slug string `json:"slug" gorm:"type:varchar(100);uniqueIndex"`
}

// OrganizationCredential is the per-organization entry of the tenant
// registry: the tenant's datastore connection plus the internal provider
// endpoint and instance quota.
type OrganizationCredential struct {
	gorm.Model
	OrganizationID  uint   `json:"organization_id" gorm:"uniqueIndex;not null"`
	DatastoreURL    string `json:"datastore_url" gorm:"type:varchar(500)"`
	DatastoreKey    string `json:"datastore_key" gorm:"type:varchar(500)"`
	ProviderBaseURL string `json:"provider_base_url" gorm:"type:varchar(500)"`
	AdminToken      string `json:"admin_token" gorm:"type:varchar(255)"`
	InstanceLimit   int    `json:"instance_limit" gorm:"default:1"`

	// Relations
	Organization Organization `json:"organization" gorm:"foreignKey:OrganizationID"`
}

// User maps a human operator to an organization. The operator's legacy
// single-credential columns act as the registry fallback for tenants
// provisioned before the per-organization model existed. Login and
// password management live in an external subsystem; the gateway only
// verifies bearer tokens against this mapping.
type User struct {
	gorm.Model
	Email          string `json:"email" gorm:"unique;not null"`
	Name           string `json:"name" gorm:"type:varchar(255)"`
	OrganizationID uint   `json:"organization_id" gorm:"index;not null"`

	// Legacy single-credential record (pre multi-tenant registry).
	DatastoreURL    string `json:"datastore_url" gorm:"type:varchar(500)"`
	DatastoreKey    string `json:"datastore_key" gorm:"type:varchar(500)"`
	ProviderBaseURL string `json:"provider_base_url" gorm:"type:varchar(500)"`
	AdminToken      string `json:"admin_token" gorm:"type:varchar(255)"`

	// Relations
	Organization Organization `json:"organization" gorm:"foreignKey:OrganizationID"`
}
