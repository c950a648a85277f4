package domain

// UserAccess answers who may see or change what. All functions are pure.
type UserAccess struct{}

// CanViewApplication decides read access to a CAS1 or CAS3 application.
func (UserAccess) CanViewApplication(u *User, app *Application) bool {
	if u == nil || app == nil {
		return false
	}
	switch app.Service {
	case ServiceCAS1:
		return app.CreatedByUserID == u.ID || u.HasAnyRole(
			RoleCAS1Assessor, RoleCAS1Matcher, RoleCAS1WorkflowManager, RoleCAS1Manager,
		)
	case ServiceCAS3:
		if app.CreatedByUserID == u.ID {
			return true
		}
		return u.HasRole(RoleCAS3Assessor) && u.InRegion(app.ProbationRegionID())
	}
	return false
}

// CanViewAssessment decides read access to an assessment of app.
func (UserAccess) CanViewAssessment(u *User, a *Assessment, app *Application) bool {
	if u == nil || a == nil || app == nil {
		return false
	}
	switch a.Service {
	case ServiceCAS1:
		if u.HasRole(RoleCAS1WorkflowManager) {
			return true
		}
		return a.AllocatedToUserID != nil && *a.AllocatedToUserID == u.ID
	case ServiceCAS3:
		return u.HasRole(RoleCAS3Assessor) && u.InRegion(app.ProbationRegionID())
	}
	return false
}

// CanViewCas2Application allows the creator and POMs in the current prison.
func (UserAccess) CanViewCas2Application(u *User, app *Cas2Application) bool {
	if u == nil || app == nil {
		return false
	}
	if app.CreatedByUserID == u.ID {
		return true
	}
	return u.HasRole(RoleCAS2POM) && u.PrisonCode != nil && *u.PrisonCode == app.CurrentPrisonCode()
}

// CanManagePremisesBookings decides write access to a premises' bookings.
func (UserAccess) CanManagePremisesBookings(u *User, p *Premises) bool {
	if u == nil || p == nil {
		return false
	}
	switch p.Service {
	case ServiceCAS1:
		return u.HasAnyRole(RoleCAS1Manager, RoleCAS1FutureManager, RoleCAS1WorkflowManager, RoleCAS1Admin)
	case ServiceCAS3:
		return u.HasAnyRole(RoleCAS3Assessor, RoleCAS3Referrer) && u.InRegion(p.ProbationRegionID)
	}
	return false
}

// CanMatch allows booking from placement requests.
func (UserAccess) CanMatch(u *User) bool {
	return u.HasAnyRole(RoleCAS1Matcher, RoleCAS1WorkflowManager)
}

// CanManagePlacementApplication allows the creator or a workflow manager.
func (UserAccess) CanManagePlacementApplication(u *User, pa *PlacementApplication) bool {
	if u == nil || pa == nil {
		return false
	}
	return pa.CreatedByUserID == u.ID || u.HasRole(RoleCAS1WorkflowManager)
}

// CanAssessCas2 allows external CAS2 assessors and admins.
func (UserAccess) CanAssessCas2(u *User) bool {
	return u.HasAnyRole(RoleCAS2Assessor, RoleCAS2Admin)
}
