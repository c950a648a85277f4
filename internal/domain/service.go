// Package domain holds the CAS entities and the pure rules over them.
//
// Nothing here touches storage or transport. Derived statuses, access policy
// and transition guards are plain functions so services and tests share them.
//
// Import Path: approvedpremises.io/cas/internal/domain
package domain

import "strings"

// ServiceName identifies one of the three accommodation service lines.
type ServiceName string

const (
	ServiceCAS1 ServiceName = "approved-premises"
	ServiceCAS2 ServiceName = "cas2"
	ServiceCAS3 ServiceName = "temporary-accommodation"
)

// ParseServiceName accepts the X-Service-Name header value.
func ParseServiceName(raw string) (ServiceName, bool) {
	switch s := ServiceName(strings.TrimSpace(raw)); s {
	case ServiceCAS1, ServiceCAS2, ServiceCAS3:
		return s, true
	default:
		return "", false
	}
}

// ScopeAll matches every service in reference-data service scopes.
const ScopeAll = "*"

// InScope reports whether a service-scoped row applies to s.
func InScope(scope string, s ServiceName) bool {
	return scope == ScopeAll || scope == string(s)
}
