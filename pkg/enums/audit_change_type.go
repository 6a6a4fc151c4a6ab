package enums

import "fmt"

// AuditChangeType classifies a reservation audit entry.
type AuditChangeType string

const (
	AuditChangeTypeCreate       AuditChangeType = "create"
	AuditChangeTypeUpdate       AuditChangeType = "update"
	AuditChangeTypeStatusChange AuditChangeType = "status_change"
	AuditChangeTypeOverride     AuditChangeType = "override"
)

var validAuditChangeTypes = []AuditChangeType{
	AuditChangeTypeCreate,
	AuditChangeTypeUpdate,
	AuditChangeTypeStatusChange,
	AuditChangeTypeOverride,
}

// String implements fmt.Stringer.
func (a AuditChangeType) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AuditChangeType.
func (a AuditChangeType) IsValid() bool {
	for _, candidate := range validAuditChangeTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAuditChangeType converts raw input into an AuditChangeType.
func ParseAuditChangeType(value string) (AuditChangeType, error) {
	for _, candidate := range validAuditChangeTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit change type %q", value)
}
