package entity

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"matcore/lib/validate"

	"github.com/google/uuid"
)

type LicenseStatus string

const (
	LicenseAvailable     LicenseStatus = "AVAILABLE"
	LicensePartiallyUsed LicenseStatus = "PARTIALLY_USED"
	LicenseUsed          LicenseStatus = "USED"
	LicenseExpired       LicenseStatus = "EXPIRED"
)

// LearnerRef records one learner consuming a seat on a license.
// A relation, not ownership: deleting the learner prunes the reference,
// never the license.
type LearnerRef struct {
	UserId  string    `json:"user_id" bson:"user_id"`
	AddedAt time.Time `json:"added_at" bson:"added_at"`
}

// License is one unit of distributable access capacity, owned by exactly
// one account. UsageCount always equals len(Learners) and never exceeds
// MaxUsers; Status is derived from the counters except for the sticky
// EXPIRED override set by an administrative or time-based process.
type License struct {
	Id         string        `json:"id" bson:"_id"`
	OwnedBy    string        `json:"owned_by" bson:"owned_by"`
	Key        string        `json:"key,omitempty" bson:"key,omitempty"`
	Status     LicenseStatus `json:"status" bson:"status"`
	MaxUsers   int           `json:"max_users" bson:"max_users"`
	UsageCount int           `json:"usage_count" bson:"usage_count"`
	Learners   []LearnerRef  `json:"learners" bson:"learners"`
	Price      float64       `json:"price" bson:"price"`
	CreatedAt  time.Time     `json:"created_at" bson:"created_at"`
}

// NewLicense is direct provisioning by a reseller: a single-seat
// AVAILABLE license without a key.
func NewLicense(owner string, price float64, now time.Time) *License {
	return &License{
		Id:        uuid.New().String(),
		OwnedBy:   owner,
		Status:    LicenseAvailable,
		MaxUsers:  1,
		Learners:  []LearnerRef{},
		Price:     price,
		CreatedAt: now,
	}
}

// ComputeStatus derives the status from the usage counters.
// EXPIRED is sticky and overrides the derived value.
func (l *License) ComputeStatus() LicenseStatus {
	if l.Status == LicenseExpired {
		return LicenseExpired
	}
	switch {
	case l.UsageCount <= 0:
		return LicenseAvailable
	case l.UsageCount < l.MaxUsers:
		return LicensePartiallyUsed
	default:
		return LicenseUsed
	}
}

// Refresh recomputes the stored status; call after every counter mutation.
func (l *License) Refresh() {
	l.Status = l.ComputeStatus()
}

func (l *License) HasCapacity() bool {
	return l.Status != LicenseExpired && l.UsageCount < l.MaxUsers
}

// Attach adds a learner seat, keeping UsageCount and Learners in step.
func (l *License) Attach(userId string, at time.Time) error {
	if !l.HasCapacity() {
		return fmt.Errorf("license %s has no free seats", l.Id)
	}
	l.Learners = append(l.Learners, LearnerRef{UserId: userId, AddedAt: at})
	l.UsageCount = len(l.Learners)
	l.Refresh()
	return nil
}

// Detach removes every seat held by the learner and reverts the status
// toward AVAILABLE. Returns false if the learner held no seat.
func (l *License) Detach(userId string) bool {
	kept := l.Learners[:0]
	for _, ref := range l.Learners {
		if ref.UserId != userId {
			kept = append(kept, ref)
		}
	}
	if len(kept) == len(l.Learners) {
		return false
	}
	l.Learners = kept
	l.UsageCount = len(l.Learners)
	l.Refresh()
	return true
}

// LicenseKey formats a key for a request-approval batch:
// MATC-<year>-WELCOME-<6 uppercase alphanumeric>-<sequence within batch>.
// The random segment is not checked for collisions; see the request workflow.
func LicenseKey(year, seq int) string {
	return fmt.Sprintf("MATC-%d-WELCOME-%s-%d", year, keySegment(), seq)
}

func keySegment() string {
	s := strings.ReplaceAll(uuid.New().String(), "-", "")
	return strings.ToUpper(s[:6])
}

// LicenseStats are the per-status counts shown next to an owner's list.
type LicenseStats struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Used      int `json:"used"`
	Expired   int `json:"expired"`
}

// LicenseList is the listing projection: licenses newest-first plus counts.
type LicenseList struct {
	Licenses []*License   `json:"licenses"`
	Stats    LicenseStats `json:"stats"`
}

func CountStatuses(licenses []*License) LicenseStats {
	stats := LicenseStats{Total: len(licenses)}
	for _, l := range licenses {
		switch l.Status {
		case LicenseAvailable:
			stats.Available++
		case LicenseUsed:
			stats.Used++
		case LicenseExpired:
			stats.Expired++
		}
	}
	return stats
}

// LicenseDraft is the request body for direct provisioning.
type LicenseDraft struct {
	Price float64 `json:"price" validate:"gte=0"`
}

func (d *LicenseDraft) Bind(_ *http.Request) error {
	return validate.Struct(d)
}

// LearnerAttach is the request body for attaching a learner to a license.
type LearnerAttach struct {
	UserId string `json:"user_id" validate:"required"`
}

func (a *LearnerAttach) Bind(_ *http.Request) error {
	return validate.Struct(a)
}
