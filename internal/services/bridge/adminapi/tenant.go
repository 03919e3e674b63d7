package adminapi

import (
	"fmt"
	"regexp"
	"strings"
)

var tenantURLPattern = regexp.MustCompile(`^https://([^.]+)\.api\.tresorit\.io/?$`)

// Tenant identifies the remote authority instance and its admin user.
type Tenant struct {
	ID          string
	ServiceURL  string
	AdminUserID string
}

// WithDefaults derives missing fields: the tenant id from a tenant service
// url, then the service url and admin user from the tenant id.
func (t Tenant) WithDefaults() Tenant {
	t.ID = strings.TrimSpace(t.ID)
	t.ServiceURL = strings.TrimRight(strings.TrimSpace(t.ServiceURL), "/")
	t.AdminUserID = strings.TrimSpace(t.AdminUserID)
	if t.ID == "" && t.ServiceURL != "" {
		if match := tenantURLPattern.FindStringSubmatch(t.ServiceURL); match != nil {
			t.ID = match[1]
		}
	}
	if t.ID == "" {
		return t
	}
	if t.ServiceURL == "" {
		t.ServiceURL = fmt.Sprintf("https://%s.api.tresorit.io", t.ID)
	}
	if t.AdminUserID == "" {
		t.AdminUserID = fmt.Sprintf("admin@%s.tresorit.io", t.ID)
	}
	return t
}

// ClientCallbackURL is the default redirect url for an identity provider
// client hosted by the tenant.
func (t Tenant) ClientCallbackURL(clientID string) string {
	if t.ID == "" || clientID == "" {
		return ""
	}
	return fmt.Sprintf("https://%s.%s.api.tresorit.io/", clientID, t.ID)
}
