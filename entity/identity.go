package entity

// Identity is a resolved bearer credential: who is acting and as what role.
// It is produced by the token verifier and carried in the request context;
// handlers never trust a client-supplied actor id.
type Identity struct {
	AccountId string `json:"account_id"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
}

func (i *Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
