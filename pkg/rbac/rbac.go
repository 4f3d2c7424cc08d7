package rbac

// Permissions for API operations.
const (
	// operator-only queue control
	PermissionQueueControl = "queue:control"
	PermissionQueueRetry   = "queue:retry"

	// regular user operations
	PermissionRunIngest    = "ingest:run"
	PermissionManageRules  = "rules:manage"
	PermissionBuildDigest  = "digest:build"
	PermissionRecordAction = "action:record"
)

const (
	RoleUser     = "user"
	RoleOperator = "operator"
)

var rolePermissions = map[string][]string{
	RoleUser: {
		PermissionRunIngest,
		PermissionManageRules,
		PermissionBuildDigest,
		PermissionRecordAction,
	},
	RoleOperator: {
		PermissionRunIngest,
		PermissionManageRules,
		PermissionBuildDigest,
		PermissionRecordAction,
		PermissionQueueControl,
		PermissionQueueRetry,
	},
}

// Checker resolves roles from the configured operator list.
type Checker struct {
	operators map[int]bool
}

func NewChecker(operatorIDs []int) *Checker {
	ops := make(map[int]bool, len(operatorIDs))
	for _, id := range operatorIDs {
		ops[id] = true
	}
	return &Checker{operators: ops}
}

func (c *Checker) RoleOf(userID int) string {
	if c.operators[userID] {
		return RoleOperator
	}
	return RoleUser
}

func (c *Checker) HasPermission(userID int, permission string) bool {
	permissions, ok := rolePermissions[c.RoleOf(userID)]
	if !ok {
		return false
	}
	for _, p := range permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission returns an error instead of a bool, for handler use.
func (c *Checker) CheckPermission(userID int, permission string) error {
	if !c.HasPermission(userID, permission) {
		return &PermissionDeniedError{
			UserID:     userID,
			Permission: permission,
		}
	}
	return nil
}

type PermissionDeniedError struct {
	UserID     int
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions"
}
