package core

import (
	"context"
	"log/slog"

	"matcore/entity"
	"matcore/lib/api/fault"
	"matcore/lib/sl"
)

// SubmitRequest files a PENDING ask for license capacity. The requester's
// name and email are denormalized onto the request so the review list does
// not need account joins.
func (c *Core) SubmitRequest(ctx context.Context, actor *entity.Identity, quantity int) (*entity.LicenseRequest, error) {
	name := actor.Email
	if acc, err := c.db.GetAccount(ctx, actor.AccountId); err == nil && acc != nil {
		name = acc.Name
	}
	request := entity.NewLicenseRequest(actor, name, quantity, c.now().UTC())
	if err := c.db.InsertRequest(ctx, request); err != nil {
		return nil, fault.Internal("insert request: %v", err)
	}
	c.log.With(
		slog.String("request_id", request.Id),
		slog.String("requester", request.UserId),
		slog.Int("quantity", request.Quantity),
	).Info("license request submitted")
	return request, nil
}

func (c *Core) PendingRequests(ctx context.Context) ([]*entity.LicenseRequest, error) {
	requests, err := c.db.PendingRequests(ctx)
	if err != nil {
		return nil, fault.Internal("list requests: %v", err)
	}
	return requests, nil
}

// ApproveRequest materializes a PENDING request: the license batch is
// inserted first, then the request is flipped PENDING->APPROVED with a
// conditional update. A retry after a crash between the two steps sees the
// request still PENDING and may insert again; the ordering follows the
// store's lack of multi-document transactions and favors a visible retry
// over a request marked APPROVED with no licenses behind it.
func (c *Core) ApproveRequest(ctx context.Context, id string) (*entity.LicenseRequest, []*entity.License, error) {
	request, err := c.request(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if request.Resolved() {
		return nil, nil, fault.Conflict("request already handled")
	}

	batch := request.Licenses(c.now().UTC())
	if err = c.db.InsertLicenses(ctx, batch); err != nil {
		return nil, nil, fault.Internal("insert license batch: %v", err)
	}
	ok, err := c.db.ResolveRequest(ctx, id, entity.RequestApproved, "")
	if err != nil {
		return nil, nil, fault.Internal("resolve request: %v", err)
	}
	if !ok {
		// lost the race to another approver after the batch insert
		c.log.With(slog.String("request_id", id)).Warn("approval race lost after batch insert")
		return nil, nil, fault.Conflict("request already handled")
	}

	request.Status = entity.RequestApproved
	c.log.With(
		slog.String("request_id", id),
		slog.String("requester", request.UserId),
		slog.Int("licenses", len(batch)),
	).Info("license request approved")
	return request, batch, nil
}

// RejectRequest flips a PENDING request to REJECTED. The reason, when
// given, is persisted on the request document.
func (c *Core) RejectRequest(ctx context.Context, id, reason string) (*entity.LicenseRequest, error) {
	request, err := c.request(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Resolved() {
		return nil, fault.Conflict("request already handled")
	}

	ok, err := c.db.ResolveRequest(ctx, id, entity.RequestRejected, reason)
	if err != nil {
		return nil, fault.Internal("resolve request: %v", err)
	}
	if !ok {
		return nil, fault.Conflict("request already handled")
	}

	request.Status = entity.RequestRejected
	request.Reason = reason
	c.log.With(
		slog.String("request_id", id),
		slog.String("requester", request.UserId),
	).Info("license request rejected")
	return request, nil
}

func (c *Core) request(ctx context.Context, id string) (*entity.LicenseRequest, error) {
	request, err := c.db.GetRequest(ctx, id)
	if err != nil {
		c.log.With(sl.Err(err)).Error("request lookup")
		return nil, fault.Internal("request lookup: %v", err)
	}
	if request == nil {
		return nil, fault.NotFound("request not found")
	}
	return request, nil
}
