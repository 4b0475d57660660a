package domain

// ActorRole enumerates the roles that may act on a protocol.
type ActorRole string

const (
	RoleDriver     ActorRole = "driver"
	RoleValidator  ActorRole = "validator"
	RoleDispatcher ActorRole = "dispatcher"
	RoleAdmin      ActorRole = "admin"
)

// Actor is the authenticated identity issuing a command.
type Actor struct {
	ID    string
	Name  string
	Role  ActorRole
	Unit  string
	Login string
}

// Account is a stored actor credential record.
type Account struct {
	ID           string
	Login        string
	Name         string
	Role         ActorRole
	Unit         string
	Phone        string
	PasswordHash string
	IsActive     bool
}

// CanValidate reports whether the actor may toggle the validation flag.
func (a Actor) CanValidate() bool {
	return a.Role == RoleValidator || a.Role == RoleAdmin
}

// CanLaunch reports whether the actor may toggle the launch flag.
func (a Actor) CanLaunch() bool {
	return a.Role == RoleDispatcher || a.Role == RoleAdmin
}

// CanDeliver reports whether the actor may record deliveries.
func (a Actor) CanDeliver() bool {
	return a.Role == RoleDriver || a.Role == RoleAdmin
}

// CanAdminister reports whether the actor may hide or force-close.
func (a Actor) CanAdminister() bool {
	return a.Role == RoleAdmin
}

// ValidActorRole reports whether the value is a known role.
func ValidActorRole(role ActorRole) bool {
	switch role {
	case RoleDriver, RoleValidator, RoleDispatcher, RoleAdmin:
		return true
	}
	return false
}

// ActorFromAccount builds the command-side actor view of an account.
func ActorFromAccount(acc *Account) Actor {
	return Actor{
		ID:    acc.ID,
		Name:  acc.Name,
		Role:  acc.Role,
		Unit:  acc.Unit,
		Login: acc.Login,
	}
}
