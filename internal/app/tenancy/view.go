package tenancy

import (
	"time"

	"github.com/dalemusser/tenanthub/internal/domain/models"
)

// AdminSummary is the public part of an administrator record.
type AdminSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// OrgView combines an organization, its administrator, and the connection
// metadata clients use to reach the tenant collection.
type OrgView struct {
	ID             string            `json:"id"`
	Name           string            `json:"organization_name"`
	CollectionName string            `json:"collection_name"`
	AdminUserID    *string           `json:"admin_user_id"`
	Connection     models.Connection `json:"connection"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	Admin          *AdminSummary     `json:"admin,omitempty"`

	// Org is the record the view was built from.
	Org models.Organization `json:"-"`
}

func viewOf(org models.Organization, admin *models.Administrator) OrgView {
	v := OrgView{
		ID:             org.ID.Hex(),
		Name:           org.Name,
		CollectionName: org.CollectionName,
		Connection:     org.Connection,
		CreatedAt:      org.CreatedAt,
		UpdatedAt:      org.UpdatedAt,
		Org:            org,
	}
	if org.AdminID != nil {
		id := org.AdminID.Hex()
		v.AdminUserID = &id
	}
	if admin != nil {
		v.Admin = &AdminSummary{ID: admin.ID.Hex(), Email: admin.Email, Role: admin.Role}
	}
	return v
}
