package core

import (
	"context"
	"log/slog"

	"matcore/entity"
	"matcore/lib/api/fault"
)

const (
	partnerExtensionDays = 360
	studentExtensionDays = 90
)

// RenewPartner extends a partner subscription by 360 days. The actor must
// be the partner's master or an admin; role gating runs upstream.
func (c *Core) RenewPartner(ctx context.Context, actor *entity.Identity, targetId string) (*entity.Renewal, error) {
	return c.renew(ctx, actor, targetId, entity.RolePartner, partnerExtensionDays)
}

// RenewStudent extends a learner subscription by 90 days.
func (c *Core) RenewStudent(ctx context.Context, actor *entity.Identity, targetId string) (*entity.Renewal, error) {
	return c.renew(ctx, actor, targetId, entity.RoleStudent, studentExtensionDays)
}

// renew extends the target's expiry from its current future expiry, or from
// now when lapsed or unset, and always reactivates the account. Expiry is
// never shortened here; deactivation is an external process.
func (c *Core) renew(ctx context.Context, actor *entity.Identity, targetId string, want entity.Role, days int) (*entity.Renewal, error) {
	target, err := c.account(ctx, targetId)
	if err != nil {
		return nil, err
	}
	if target.Role != want {
		return nil, fault.BadRequest("target account is not a %s", want)
	}
	if err = c.assertOwnership(actor, target); err != nil {
		return nil, err
	}

	now := c.now().UTC()
	expiry := target.RenewalBase(now).AddDate(0, 0, days)
	if err = c.db.RenewAccount(ctx, targetId, expiry); err != nil {
		return nil, fault.Internal("renew account: %v", err)
	}

	target.ExpiryDate = &expiry
	target.IsActive = true
	c.log.With(
		slog.String("account", targetId),
		slog.String("role", string(target.Role)),
		slog.Time("expiry", expiry),
	).Info("subscription renewed")
	return &entity.Renewal{Account: target.Summary(), ExpiryDate: expiry}, nil
}
