package cont

import (
	"context"
	"matcore/entity"
)

type ctxKey string

const IdentityKey ctxKey = "identity"

func PutIdentity(c context.Context, id *entity.Identity) context.Context {
	return context.WithValue(c, IdentityKey, *id)
}

func GetIdentity(c context.Context) *entity.Identity {
	id, ok := c.Value(IdentityKey).(entity.Identity)
	if !ok {
		return &entity.Identity{}
	}
	return &id
}
