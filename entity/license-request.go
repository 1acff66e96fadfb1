package entity

import (
	"net/http"
	"time"

	"matcore/lib/validate"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestApproved RequestStatus = "APPROVED"
	RequestRejected RequestStatus = "REJECTED"
)

const (
	// DefaultRequestQuantity applies when a request names no quantity.
	DefaultRequestQuantity = 5
	// RequestLicenseSeats is the seat count on licenses minted by approval.
	RequestLicenseSeats = 10
)

// LicenseRequest is a pending ask for license capacity. Requester name and
// email are denormalized at creation time. Status moves exactly once,
// PENDING -> APPROVED or PENDING -> REJECTED; both are terminal.
type LicenseRequest struct {
	Id        string        `json:"id" bson:"_id"`
	UserId    string        `json:"user_id" bson:"user_id"`
	UserName  string        `json:"user_name" bson:"user_name"`
	UserEmail string        `json:"user_email" bson:"user_email"`
	Quantity  int           `json:"quantity" bson:"quantity"`
	Status    RequestStatus `json:"status" bson:"status"`
	Reason    string        `json:"reason,omitempty" bson:"reason,omitempty"`
	CreatedAt time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" bson:"updated_at"`
}

func NewLicenseRequest(requester *Identity, name string, quantity int, now time.Time) *LicenseRequest {
	if quantity <= 0 {
		quantity = DefaultRequestQuantity
	}
	return &LicenseRequest{
		Id:        uuid.New().String(),
		UserId:    requester.AccountId,
		UserName:  name,
		UserEmail: requester.Email,
		Quantity:  quantity,
		Status:    RequestPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r *LicenseRequest) Resolved() bool {
	return r.Status != RequestPending
}

// Licenses materializes the approval batch: one keyed ten-seat license per
// requested unit, all owned by the requester, price zero. Key collisions
// across batches are an accepted risk of the random segment.
func (r *LicenseRequest) Licenses(now time.Time) []*License {
	batch := make([]*License, 0, r.Quantity)
	for seq := 1; seq <= r.Quantity; seq++ {
		batch = append(batch, &License{
			Id:        uuid.New().String(),
			OwnedBy:   r.UserId,
			Key:       LicenseKey(now.Year(), seq),
			Status:    LicenseAvailable,
			MaxUsers:  RequestLicenseSeats,
			Learners:  []LearnerRef{},
			CreatedAt: now,
		})
	}
	return batch
}

// RequestDraft is the request body for submitting a capacity ask.
type RequestDraft struct {
	Quantity int `json:"quantity" validate:"omitempty,gte=1,lte=100"`
}

func (d *RequestDraft) Bind(_ *http.Request) error {
	return validate.Struct(d)
}

// RequestResolution is the optional body of a reject call.
type RequestResolution struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

func (d *RequestResolution) Bind(_ *http.Request) error {
	return validate.Struct(d)
}
