package core

import (
	"context"
	"log/slog"
	"time"

	"matcore/entity"
	"matcore/lib/api/fault"
	"matcore/lib/sl"
)

// Store is the persistence surface the core depends on. Lookups return
// (nil, nil) when the document is absent; conditional mutations report
// whether the expected prior state was found so callers can distinguish
// a lost race from a store failure.
type Store interface {
	GetAccount(ctx context.Context, id string) (*entity.Account, error)
	Downline(ctx context.Context, masterId string) ([]*entity.Account, error)
	RenewAccount(ctx context.Context, id string, expiry time.Time) error
	DeleteAccount(ctx context.Context, id string) error

	InsertLicense(ctx context.Context, license *entity.License) error
	InsertLicenses(ctx context.Context, batch []*entity.License) error
	GetLicense(ctx context.Context, id string) (*entity.License, error)
	LicensesByOwner(ctx context.Context, owner string) ([]*entity.License, error)
	// AttachLearner reports false when the license is absent, full,
	// expired or already holds the learner; the whole condition is part
	// of the seat-grabbing update, not a separate read.
	AttachLearner(ctx context.Context, licenseId string, ref entity.LearnerRef) (bool, error)
	DetachLearner(ctx context.Context, userId string) (int64, error)

	InsertRequest(ctx context.Context, request *entity.LicenseRequest) error
	GetRequest(ctx context.Context, id string) (*entity.LicenseRequest, error)
	PendingRequests(ctx context.Context) ([]*entity.LicenseRequest, error)
	ResolveRequest(ctx context.Context, id string, to entity.RequestStatus, reason string) (bool, error)
}

// TokenVerifier maps a bearer credential to an identity or rejects it.
type TokenVerifier interface {
	Verify(token string) (*entity.Identity, error)
}

type Core struct {
	db     Store
	tokens TokenVerifier
	log    *slog.Logger
	now    func() time.Time
}

func New(db Store, tokens TokenVerifier, log *slog.Logger) *Core {
	if db == nil {
		panic("store is nil")
	}
	return &Core{
		db:     db,
		tokens: tokens,
		log:    log.With(sl.Module("core")),
		now:    time.Now,
	}
}

func (c *Core) AuthenticateByToken(token string) (*entity.Identity, error) {
	if c.tokens == nil {
		return nil, fault.Unauthorized("authentication not enabled")
	}
	return c.tokens.Verify(token)
}

// assertOwnership enforces the hierarchy: an admin bypasses the check,
// anyone else must be the target's direct parent.
func (c *Core) assertOwnership(actor *entity.Identity, target *entity.Account) error {
	if actor.IsAdmin() {
		return nil
	}
	if target.MasterId != actor.AccountId {
		return fault.Forbidden("not your downline")
	}
	return nil
}

func (c *Core) account(ctx context.Context, id string) (*entity.Account, error) {
	acc, err := c.db.GetAccount(ctx, id)
	if err != nil {
		return nil, fault.Internal("account lookup: %v", err)
	}
	if acc == nil {
		return nil, fault.NotFound("account not found")
	}
	return acc, nil
}

// Hierarchy returns the actor's active direct downline.
func (c *Core) Hierarchy(ctx context.Context, actor *entity.Identity) ([]*entity.Account, error) {
	accounts, err := c.db.Downline(ctx, actor.AccountId)
	if err != nil {
		return nil, fault.Internal("downline lookup: %v", err)
	}
	return accounts, nil
}
