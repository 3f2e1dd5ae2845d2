package domain

import "errors"

// OwnerKind distinguishes authenticated users from anonymous sessions.
type OwnerKind string

const (
	OwnerUser    OwnerKind = "user"
	OwnerSession OwnerKind = "session"
)

// Owner is the identity a cart or reservation belongs to: exactly one of
// an authenticated user id or an anonymous session id. Guest-to-user
// transitions happen through an explicit merge, never by swapping the
// owner in place.
type Owner struct {
	Kind OwnerKind `bson:"kind" json:"kind"`
	ID   string    `bson:"id" json:"id"`
}

func UserOwner(userID string) Owner {
	return Owner{Kind: OwnerUser, ID: userID}
}

func SessionOwner(sessionID string) Owner {
	return Owner{Kind: OwnerSession, ID: sessionID}
}

// Key returns the repository key for this owner, e.g. "user:42".
func (o Owner) Key() string {
	return string(o.Kind) + ":" + o.ID
}

func (o Owner) Validate() error {
	if o.ID == "" {
		return errors.New("owner id is empty")
	}
	if o.Kind != OwnerUser && o.Kind != OwnerSession {
		return errors.New("owner kind must be user or session")
	}
	return nil
}
