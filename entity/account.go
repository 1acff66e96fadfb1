package entity

import (
	"time"
)

// Role is the closed set of platform roles. The hierarchy runs
// ADMIN -> RESELLER_T1 (master) -> RESELLER_T2 (partner) -> STUDENT (learner);
// every non-root account references its direct parent via MasterId.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleMaster  Role = "RESELLER_T1"
	RolePartner Role = "RESELLER_T2"
	RoleStudent Role = "STUDENT"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMaster, RolePartner, RoleStudent:
		return true
	}
	return false
}

// Account represents any platform participant: admin, reseller or learner.
// Role is immutable after creation. A nil ExpiryDate means the account
// never expires.
type Account struct {
	Id         string     `json:"id" bson:"_id"`
	Name       string     `json:"name" bson:"name"`
	Email      string     `json:"email" bson:"email"`
	Role       Role       `json:"role" bson:"role"`
	MasterId   string     `json:"master_id,omitempty" bson:"master_id,omitempty"`
	IsActive   bool       `json:"is_active" bson:"is_active"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty" bson:"expiry_date,omitempty"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
}

func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// RenewalBase returns the date a renewal extends from: the current expiry
// when it is still in the future, otherwise now. Renewing early never loses
// the remaining time; renewing a lapsed account starts fresh.
func (a *Account) RenewalBase(now time.Time) time.Time {
	if a.ExpiryDate != nil && a.ExpiryDate.After(now) {
		return *a.ExpiryDate
	}
	return now
}

// AccountSummary is the minimal projection returned by mutating operations.
type AccountSummary struct {
	Id         string     `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Role       Role       `json:"role"`
	IsActive   bool       `json:"is_active"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
}

func (a *Account) Summary() AccountSummary {
	return AccountSummary{
		Id:         a.Id,
		Name:       a.Name,
		Email:      a.Email,
		Role:       a.Role,
		IsActive:   a.IsActive,
		ExpiryDate: a.ExpiryDate,
	}
}

// Renewal is the result of a renew operation.
type Renewal struct {
	Account    AccountSummary `json:"account"`
	ExpiryDate time.Time      `json:"expiry_date"`
}
