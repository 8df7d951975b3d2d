package services

import (
	"github.com/kendall-kelly/consulting-portal-api/models"
	"github.com/kendall-kelly/consulting-portal-api/utils"
)

// Actor is the authenticated user performing an operation. It is passed explicitly
// to every service call; the role always comes from persistence.
type Actor struct {
	UID         string
	Role        models.Role
	DisplayName string
}

// ActorFromUser builds an Actor from a stored user
func ActorFromUser(u *models.User) Actor {
	return Actor{UID: u.UID, Role: u.Role, DisplayName: u.Name()}
}

// IsStaff reports whether the actor works for the firm
func (a Actor) IsStaff() bool {
	return a.Role.IsStaff()
}

// IsAdmin reports whether the actor is an admin
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// CanManageOrders reports whether the actor may change order status
func (a Actor) CanManageOrders() bool {
	return a.Role == models.RoleAdmin || a.Role == models.RoleEmployee
}

func requireActor(actor Actor) error {
	if actor.UID == "" {
		return utils.Unauthorized("Could not extract user information")
	}
	return nil
}

// canAccessOrder is true for staff and for the client that owns the order
func canAccessOrder(actor Actor, order *models.Order) bool {
	return actor.IsStaff() || order.ClientID == actor.UID
}
