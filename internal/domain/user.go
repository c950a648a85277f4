package domain

import (
	"slices"
	"time"
)

// UserRole is a role granted to a user.
type UserRole string

const (
	RoleCAS1Assessor        UserRole = "CAS1_ASSESSOR"
	RoleCAS1Matcher         UserRole = "CAS1_MATCHER"
	RoleCAS1WorkflowManager UserRole = "CAS1_WORKFLOW_MANAGER"
	RoleCAS1Manager         UserRole = "CAS1_MANAGER"
	RoleCAS1FutureManager   UserRole = "CAS1_FUTURE_MANAGER"
	RoleCAS1Admin           UserRole = "CAS1_ADMIN"
	RoleCAS3Assessor        UserRole = "CAS3_ASSESSOR"
	RoleCAS3Referrer        UserRole = "CAS3_REFERRER"
	RoleCAS2POM             UserRole = "CAS2_POM"
	RoleCAS2Assessor        UserRole = "CAS2_ASSESSOR"
	RoleCAS2Admin           UserRole = "CAS2_ADMIN"
)

// ParseUserRole validates a role name read from a seed file or token.
func ParseUserRole(raw string) (UserRole, bool) {
	r := UserRole(raw)
	switch r {
	case RoleCAS1Assessor, RoleCAS1Matcher, RoleCAS1WorkflowManager, RoleCAS1Manager,
		RoleCAS1FutureManager, RoleCAS1Admin, RoleCAS3Assessor, RoleCAS3Referrer,
		RoleCAS2POM, RoleCAS2Assessor, RoleCAS2Admin:
		return r, true
	}
	return "", false
}

// User is a staff member known to the service.
type User struct {
	ID                string
	DeliusUsername    string
	Name              string
	Email             string
	ProbationRegionID *string
	// PrisonCode is set for CAS2 prison offender managers.
	PrisonCode *string
	Roles      []UserRole
	CreatedAt  time.Time
}

// HasRole reports whether the user holds r.
func (u *User) HasRole(r UserRole) bool {
	return u != nil && slices.Contains(u.Roles, r)
}

// HasAnyRole reports whether the user holds at least one of roles.
func (u *User) HasAnyRole(roles ...UserRole) bool {
	for _, r := range roles {
		if u.HasRole(r) {
			return true
		}
	}
	return false
}

// InRegion reports whether the user belongs to the probation region id.
func (u *User) InRegion(regionID string) bool {
	return u != nil && u.ProbationRegionID != nil && *u.ProbationRegionID == regionID
}
