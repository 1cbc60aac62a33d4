package models

// AuditLog records security-relevant user operations.
type AuditLog struct {
	Base
	UserID       string `gorm:"size:36;index" json:"user_id"`
	Action       string `gorm:"size:64;not null" json:"action"`
	ResourceType string `gorm:"size:64;not null" json:"resource_type"`
	ResourceID   string `gorm:"size:64" json:"resource_id"`
	IPAddress    string `gorm:"size:64" json:"ip_address"`
	Changes      string `gorm:"type:text" json:"changes,omitempty"`
}

// Audit actions.
const (
	AuditActionRegister      = "register"
	AuditActionConfirm       = "confirm"
	AuditActionLogin         = "login"
	AuditActionLoginFailed   = "login_failed"
	AuditActionLockout       = "lockout"
	AuditActionUnlock        = "unlock"
	AuditActionPasswordReset = "password_reset"
	AuditActionLogout        = "logout"
	AuditActionRenameThread  = "rename_thread"
	AuditActionDeleteThread  = "delete_thread"
)
