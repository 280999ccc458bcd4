package models

import "time"

// Role is the job a staff member performs
type Role string

const (
	RoleWaiter    Role = "WAITER"
	RolePartner   Role = "PARTNER"
	RoleBartender Role = "BARTENDER"
	RoleBrewer    Role = "BREWER"
	RoleChef      Role = "CHEF"
	RoleBaker     Role = "BAKER"
)

func (r Role) Valid() bool {
	switch r {
	case RoleWaiter, RolePartner, RoleBartender, RoleBrewer, RoleChef, RoleBaker:
		return true
	}
	return false
}

// Station returns the product type a kitchen role prepares. ok is false for
// roles that are not tied to a single station.
func (r Role) Station() (ProductType, bool) {
	switch r {
	case RoleBrewer:
		return ProductBeer, true
	case RoleBartender:
		return ProductWineOrDrink, true
	case RoleChef:
		return ProductMeal, true
	case RoleBaker:
		return ProductPastries, true
	}
	return "", false
}

var (
	PartnerRoles = []Role{RolePartner}
	WaiterRoles  = []Role{RolePartner, RoleWaiter}
	KitchenRoles = []Role{RolePartner, RoleBartender, RoleBrewer, RoleChef, RoleBaker}
)

// User is a staff account. PasswordHash is a bcrypt hash and never leaves the server.
type User struct {
	ID           int       `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

type UserRequest struct {
	FirstName string `json:"first_name" validate:"notblank,max=100"`
	LastName  string `json:"last_name" validate:"notblank,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password"`
	Role      string `json:"role" validate:"oneof=WAITER PARTNER BARTENDER BREWER CHEF BAKER"`
	Active    *bool  `json:"active,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}
