// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity represents the authenticated caller's identity.
// This interface abstracts identity extraction from the web framework,
// allowing handlers to access caller information without depending on Gin.
type Identity interface {
	// UserID returns the authenticated user's ID.
	UserID() uuid.UUID
	// OrganizationID returns the tenant the caller belongs to.
	OrganizationID() uuid.UUID
	// Roles returns the caller's assigned roles.
	Roles() []string
	// HasRole checks if the caller has a specific role.
	HasRole(role string) bool
	// IsAuthenticated returns true if the caller is authenticated.
	IsAuthenticated() bool
}

// identity is the concrete implementation of Identity.
type identity struct {
	userID         uuid.UUID
	organizationID uuid.UUID
	roles          []string
	authenticated  bool
}

func (i *identity) UserID() uuid.UUID {
	return i.userID
}

func (i *identity) OrganizationID() uuid.UUID {
	return i.organizationID
}

func (i *identity) Roles() []string {
	return i.roles
}

func (i *identity) HasRole(role string) bool {
	for _, r := range i.roles {
		if r == role {
			return true
		}
	}
	return false
}

func (i *identity) IsAuthenticated() bool {
	return i.authenticated
}

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if user info is not present.
func GetIdentity(c *gin.Context) Identity {
	userID, userOK := c.Get(ContextUserIDKey)
	if !userOK {
		return &identity{authenticated: false}
	}

	uid, ok := userID.(uuid.UUID)
	if !ok {
		return &identity{authenticated: false}
	}

	var roleList []string
	if roles, ok := c.Get(ContextRolesKey); ok {
		roleList, _ = roles.([]string)
	}

	var orgID uuid.UUID
	if raw, ok := c.Get(ContextOrganizationIDKey); ok {
		orgID, _ = raw.(uuid.UUID)
	}

	return &identity{
		userID:         uid,
		organizationID: orgID,
		roles:          roleList,
		authenticated:  true,
	}
}

// MustGetIdentity extracts the Identity from a Gin context.
// If the caller is not authenticated, it aborts with 401 Unauthorized and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}
