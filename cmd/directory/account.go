package directory

import "time"

// Role is the account's fixed role. Assigned at creation, never migrated.
type Role string

// The three directory roles.
const (
	RoleLearner       Role = "Learner"
	RoleEducator      Role = "Educator"
	RoleAdministrator Role = "Administrator"
)

// ParseRole validates a caller-supplied role string.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleLearner, RoleEducator, RoleAdministrator:
		return Role(s), true
	default:
		return "", false
	}
}

// RoleData is the role-specific profile payload, one variant per role.
// Using a closed union instead of nullable columns on the account keeps
// impossible states (a Learner with a department) unrepresentable.
type RoleData interface {
	roleData() Role
}

// LearnerData is the Learner profile variant.
type LearnerData struct {
	GradeLevel    string
	LearningGoals string
}

// EducatorData is the Educator profile variant.
type EducatorData struct {
	Qualifications string
	ShortBio       string
}

// AdministratorData is the Administrator profile variant.
type AdministratorData struct {
	Department string
}

func (LearnerData) roleData() Role       { return RoleLearner }
func (EducatorData) roleData() Role      { return RoleEducator }
func (AdministratorData) roleData() Role { return RoleAdministrator }

// DataRole reports which role a RoleData variant belongs to.
func DataRole(d RoleData) (Role, bool) {
	if d == nil {
		return "", false
	}
	return d.roleData(), true
}

// Account is the sole directory entity.
//
// Pointer fields model nullable sub-state: a nil code means "no code
// pending". A code past its expiry is treated as absent by callers (lazy
// expiry); the store never needs a background sweep for correctness.
type Account struct {
	ID    string
	Email string // case-normalized, unique
	Role  Role

	PasswordHash string

	FullName string
	RoleData RoleData // nil until the profile is completed

	IsVerified         bool
	VerificationCode   *string
	VerificationExpiry *time.Time

	PasswordResetCode   *string
	PasswordResetExpiry *time.Time

	// RefreshTokens is the ordered set of live refresh tokens. Presence
	// here is the sole proof of a live session.
	RefreshTokens []string

	IsActive bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Draft describes a new account at registration time.
type Draft struct {
	Email              string
	Role               Role
	PasswordHash       string
	VerificationCode   string
	VerificationExpiry time.Time
	Now                time.Time
}

// Patch is a partial update. Nil fields are left untouched; the Clear*
// flags null out a code together with its expiry (single-use consumption).
type Patch struct {
	PasswordHash *string
	IsVerified   *bool
	IsActive     *bool
	FullName     *string

	VerificationCode   *string
	VerificationExpiry *time.Time
	ClearVerification  bool

	PasswordResetCode   *string
	PasswordResetExpiry *time.Time
	ClearPasswordReset  bool

	Now time.Time
}

// CodePurpose selects which pending-code column FindByPendingCode matches.
type CodePurpose string

// Pending-code purposes.
const (
	PurposeVerification  CodePurpose = "verification"
	PurposePasswordReset CodePurpose = "password_reset"
)
