package auth

import (
	"github.com/angelmondragon/musicportal-backend/pkg/enums"
	"github.com/google/uuid"
)

// Actor is the principal performing an operation. Services receive it
// explicitly instead of reading it from the request.
type Actor struct {
	UserID   uuid.UUID
	Username string
	Role     enums.Role
}

// AnonymousActor is used for unauthenticated callers such as self-registration.
var AnonymousActor = Actor{Username: "Anonymous"}

func (a Actor) IsAnonymous() bool {
	return a.UserID == uuid.Nil
}

func (a Actor) IsAdmin() bool {
	return a.Role == enums.RoleAdministrator
}

// CanManage reports whether the actor may modify a resource owned by ownerID.
func (a Actor) CanManage(ownerID uuid.UUID) bool {
	if a.IsAnonymous() {
		return false
	}
	return a.IsAdmin() || a.UserID == ownerID
}

// ActorFromClaims converts verified token claims into an Actor.
func ActorFromClaims(claims *AccessTokenClaims) Actor {
	if claims == nil {
		return AnonymousActor
	}
	return Actor{UserID: claims.UserID, Username: claims.Username, Role: claims.Role}
}
