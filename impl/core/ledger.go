package core

import (
	"context"
	"log/slog"

	"matcore/entity"
	"matcore/lib/api/fault"
)

// CreateLicense inserts a single-seat AVAILABLE license owned by the actor.
// Role gating happens upstream; the core only records ownership.
func (c *Core) CreateLicense(ctx context.Context, actor *entity.Identity, price float64) (*entity.License, error) {
	license := entity.NewLicense(actor.AccountId, price, c.now().UTC())
	if err := c.db.InsertLicense(ctx, license); err != nil {
		return nil, fault.Internal("insert license: %v", err)
	}
	c.log.With(
		slog.String("license_id", license.Id),
		slog.String("owner", actor.AccountId),
	).Info("license created")
	return license, nil
}

// Licenses lists the actor's licenses newest-first with per-status counts.
func (c *Core) Licenses(ctx context.Context, actor *entity.Identity) (*entity.LicenseList, error) {
	licenses, err := c.db.LicensesByOwner(ctx, actor.AccountId)
	if err != nil {
		return nil, fault.Internal("list licenses: %v", err)
	}
	return &entity.LicenseList{
		Licenses: licenses,
		Stats:    entity.CountStatuses(licenses),
	}, nil
}

// AttachLearner seats a learner on one of the actor's licenses. The seat
// grab is a conditional update on the stored status, so two racing calls
// on the last seat cannot both succeed.
func (c *Core) AttachLearner(ctx context.Context, actor *entity.Identity, licenseId, userId string) (*entity.License, error) {
	license, err := c.db.GetLicense(ctx, licenseId)
	if err != nil {
		return nil, fault.Internal("license lookup: %v", err)
	}
	if license == nil {
		return nil, fault.NotFound("license not found")
	}
	if !actor.IsAdmin() && license.OwnedBy != actor.AccountId {
		return nil, fault.Forbidden("not your license")
	}

	learner, err := c.account(ctx, userId)
	if err != nil {
		return nil, err
	}
	if learner.Role != entity.RoleStudent {
		return nil, fault.BadRequest("account %s is not a learner", userId)
	}
	for _, ref := range license.Learners {
		if ref.UserId == userId {
			return nil, fault.Conflict("learner already on this license")
		}
	}

	ref := entity.LearnerRef{UserId: userId, AddedAt: c.now().UTC()}
	ok, err := c.db.AttachLearner(ctx, licenseId, ref)
	if err != nil {
		return nil, fault.Internal("attach learner: %v", err)
	}
	if !ok {
		// full, expired, or a racing attach seated this learner first
		return nil, fault.Conflict("no free seat for this learner")
	}

	license, err = c.db.GetLicense(ctx, licenseId)
	if err != nil {
		return nil, fault.Internal("license lookup: %v", err)
	}
	c.log.With(
		slog.String("license_id", licenseId),
		slog.String("learner", userId),
	).Info("learner attached")
	return license, nil
}

// DeleteStudent removes a learner account and prunes its seat from every
// license that holds it, reverting each toward AVAILABLE.
func (c *Core) DeleteStudent(ctx context.Context, actor *entity.Identity, id string) error {
	target, err := c.account(ctx, id)
	if err != nil {
		return err
	}
	if target.Role != entity.RoleStudent {
		return fault.BadRequest("account %s is not a learner", id)
	}
	if err = c.assertOwnership(actor, target); err != nil {
		return err
	}

	if err = c.db.DeleteAccount(ctx, id); err != nil {
		return fault.Internal("delete account: %v", err)
	}
	pruned, err := c.db.DetachLearner(ctx, id)
	if err != nil {
		// account is gone but license seats were not pruned; surface it
		return fault.Internal("detach learner from licenses: %v", err)
	}
	c.log.With(
		slog.String("learner", id),
		slog.Int64("licenses_pruned", pruned),
	).Info("learner deleted")
	return nil
}
