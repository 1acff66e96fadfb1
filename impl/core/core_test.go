package core

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matcore/entity"
	"matcore/lib/api/fault"
)

// memStore is an in-memory Store used to exercise the core without a
// running MongoDB. Conditional mutations mirror the store contract:
// lookups return (nil, nil) when absent, CAS mutations report found-ness.
type memStore struct {
	accounts map[string]*entity.Account
	licenses map[string]*entity.License
	requests map[string]*entity.LicenseRequest
}

func newMemStore() *memStore {
	return &memStore{
		accounts: map[string]*entity.Account{},
		licenses: map[string]*entity.License{},
		requests: map[string]*entity.LicenseRequest{},
	}
}

func (s *memStore) GetAccount(_ context.Context, id string) (*entity.Account, error) {
	return s.accounts[id], nil
}

func (s *memStore) Downline(_ context.Context, masterId string) ([]*entity.Account, error) {
	var accounts []*entity.Account
	for _, a := range s.accounts {
		if a.MasterId == masterId && a.IsActive {
			accounts = append(accounts, a)
		}
	}
	return accounts, nil
}

func (s *memStore) RenewAccount(_ context.Context, id string, expiry time.Time) error {
	a := s.accounts[id]
	if a == nil {
		return fault.NotFound("account %s not found", id)
	}
	a.ExpiryDate = &expiry
	a.IsActive = true
	return nil
}

func (s *memStore) DeleteAccount(_ context.Context, id string) error {
	delete(s.accounts, id)
	return nil
}

func (s *memStore) InsertLicense(_ context.Context, license *entity.License) error {
	s.licenses[license.Id] = license
	return nil
}

func (s *memStore) InsertLicenses(_ context.Context, batch []*entity.License) error {
	for _, license := range batch {
		s.licenses[license.Id] = license
	}
	return nil
}

func (s *memStore) GetLicense(_ context.Context, id string) (*entity.License, error) {
	return s.licenses[id], nil
}

func (s *memStore) LicensesByOwner(_ context.Context, owner string) ([]*entity.License, error) {
	var licenses []*entity.License
	for _, l := range s.licenses {
		if l.OwnedBy == owner {
			licenses = append(licenses, l)
		}
	}
	sort.Slice(licenses, func(i, j int) bool {
		return licenses[i].CreatedAt.After(licenses[j].CreatedAt)
	})
	return licenses, nil
}

func (s *memStore) AttachLearner(_ context.Context, licenseId string, ref entity.LearnerRef) (bool, error) {
	l := s.licenses[licenseId]
	if l == nil || !l.HasCapacity() {
		return false, nil
	}
	for _, seat := range l.Learners {
		if seat.UserId == ref.UserId {
			return false, nil
		}
	}
	return true, l.Attach(ref.UserId, ref.AddedAt)
}

func (s *memStore) DetachLearner(_ context.Context, userId string) (int64, error) {
	var pruned int64
	for _, l := range s.licenses {
		if l.Detach(userId) {
			pruned++
		}
	}
	return pruned, nil
}

func (s *memStore) InsertRequest(_ context.Context, request *entity.LicenseRequest) error {
	s.requests[request.Id] = request
	return nil
}

func (s *memStore) GetRequest(_ context.Context, id string) (*entity.LicenseRequest, error) {
	if r, ok := s.requests[id]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, nil
}

func (s *memStore) PendingRequests(_ context.Context) ([]*entity.LicenseRequest, error) {
	var requests []*entity.LicenseRequest
	for _, r := range s.requests {
		if r.Status == entity.RequestPending {
			requests = append(requests, r)
		}
	}
	return requests, nil
}

func (s *memStore) ResolveRequest(_ context.Context, id string, to entity.RequestStatus, reason string) (bool, error) {
	r := s.requests[id]
	if r == nil || r.Resolved() {
		return false, nil
	}
	r.Status = to
	if reason != "" {
		r.Reason = reason
	}
	r.UpdatedAt = time.Now().UTC()
	return true, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCore(t *testing.T) (*Core, *memStore) {
	t.Helper()
	store := newMemStore()
	return New(store, nil, testLogger()), store
}

func seedAccount(s *memStore, id string, role entity.Role, masterId string) *entity.Account {
	a := &entity.Account{
		Id:       id,
		Name:     id,
		Email:    id + "@example.com",
		Role:     role,
		MasterId: masterId,
		IsActive: true,
	}
	s.accounts[id] = a
	return a
}

func identity(a *entity.Account) *entity.Identity {
	return &entity.Identity{AccountId: a.Id, Email: a.Email, Role: a.Role}
}

// --- ledger ---

func TestCreateLicenseDefaults(t *testing.T) {
	c, store := newTestCore(t)
	seller := seedAccount(store, "partner-1", entity.RolePartner, "master-1")

	created, err := c.CreateLicense(context.Background(), identity(seller), 75)
	require.NoError(t, err)
	assert.Equal(t, "partner-1", created.OwnedBy)
	assert.Equal(t, entity.LicenseAvailable, created.Status)
	assert.Equal(t, 1, created.MaxUsers)
	assert.Equal(t, 0, created.UsageCount)
	assert.Empty(t, created.Key)
	assert.Equal(t, 75.0, created.Price)
	assert.Contains(t, store.licenses, created.Id)
}

func TestLicensesListWithStats(t *testing.T) {
	c, store := newTestCore(t)
	seller := seedAccount(store, "partner-1", entity.RolePartner, "master-1")
	now := time.Now().UTC()

	for i, status := range []entity.LicenseStatus{
		entity.LicenseAvailable, entity.LicenseUsed, entity.LicenseExpired,
	} {
		l := entity.NewLicense(seller.Id, 0, now.Add(time.Duration(i)*time.Minute))
		l.Status = status
		store.licenses[l.Id] = l
	}
	other := entity.NewLicense("someone-else", 0, now)
	store.licenses[other.Id] = other

	list, err := c.Licenses(context.Background(), identity(seller))
	require.NoError(t, err)
	assert.Equal(t, 3, list.Stats.Total)
	assert.Equal(t, 1, list.Stats.Available)
	assert.Equal(t, 1, list.Stats.Used)
	assert.Equal(t, 1, list.Stats.Expired)
	require.Len(t, list.Licenses, 3)
	assert.True(t, list.Licenses[0].CreatedAt.After(list.Licenses[2].CreatedAt), "newest first")
}

func TestAttachLearner(t *testing.T) {
	c, store := newTestCore(t)
	seller := seedAccount(store, "partner-1", entity.RolePartner, "master-1")
	student := seedAccount(store, "student-1", entity.RoleStudent, "partner-1")

	license, err := c.CreateLicense(context.Background(), identity(seller), 0)
	require.NoError(t, err)

	updated, err := c.AttachLearner(context.Background(), identity(seller), license.Id, student.Id)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.UsageCount)
	assert.Len(t, updated.Learners, 1)
	assert.Equal(t, entity.LicenseUsed, updated.Status)
}

func TestAttachLearnerFull(t *testing.T) {
	c, store := newTestCore(t)
	seller := seedAccount(store, "partner-1", entity.RolePartner, "master-1")
	seedAccount(store, "student-1", entity.RoleStudent, "partner-1")
	seedAccount(store, "student-2", entity.RoleStudent, "partner-1")

	license, err := c.CreateLicense(context.Background(), identity(seller), 0)
	require.NoError(t, err)

	_, err = c.AttachLearner(context.Background(), identity(seller), license.Id, "student-1")
	require.NoError(t, err)

	_, err = c.AttachLearner(context.Background(), identity(seller), license.Id, "student-2")
	require.Error(t, err)
	assert.Equal(t, 409, fault.StatusOf(err))
}

func TestAttachLearnerDuplicateSeat(t *testing.T) {
	c, store := newTestCore(t)
	seller := seedAccount(store, "partner-1", entity.RolePartner, "master-1")
	student := seedAccount(store, "student-1", entity.RoleStudent, "partner-1")
	now := time.Now().UTC()

	license := entity.NewLicense(seller.Id, 0, now)
	license.MaxUsers = 2
	require.NoError(t, license.Attach(student.Id, now))
	store.licenses[license.Id] = license

	// the core's read catches the duplicate up front
	_, err := c.AttachLearner(context.Background(), identity(seller), license.Id, student.Id)
	assert.Equal(t, 409, fault.StatusOf(err))

	// the seat grab itself refuses a second seat for the same learner,
	// so a duplicate slipping past the read still cannot take effect
	ok, err := store.AttachLearner(context.Background(), license.Id, entity.LearnerRef{
		UserId:  student.Id,
		AddedAt: now,
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, license.UsageCount)
	assert.Len(t, license.Learners, license.UsageCount)
}

func TestAttachLearnerGuards(t *testing.T) {
	c, store := newTestCore(t)
	seller := seedAccount(store, "partner-1", entity.RolePartner, "master-1")
	stranger := seedAccount(store, "partner-2", entity.RolePartner, "master-1")
	seedAccount(store, "student-1", entity.RoleStudent, "partner-1")

	license, err := c.CreateLicense(context.Background(), identity(seller), 0)
	require.NoError(t, err)

	_, err = c.AttachLearner(context.Background(), identity(stranger), license.Id, "student-1")
	assert.Equal(t, 403, fault.StatusOf(err), "not the owner")

	_, err = c.AttachLearner(context.Background(), identity(seller), license.Id, "partner-2")
	assert.Equal(t, 400, fault.StatusOf(err), "target is not a learner")

	_, err = c.AttachLearner(context.Background(), identity(seller), "missing", "student-1")
	assert.Equal(t, 404, fault.StatusOf(err))
}

func TestDeleteStudentPrunesSeats(t *testing.T) {
	c, store := newTestCore(t)
	seller := seedAccount(store, "partner-1", entity.RolePartner, "master-1")
	student := seedAccount(store, "student-1", entity.RoleStudent, "partner-1")
	other := seedAccount(store, "student-2", entity.RoleStudent, "partner-1")
	now := time.Now().UTC()

	solo := entity.NewLicense(seller.Id, 0, now)
	require.NoError(t, solo.Attach(student.Id, now))
	store.licenses[solo.Id] = solo

	shared := entity.NewLicense(seller.Id, 0, now)
	shared.MaxUsers = 2
	require.NoError(t, shared.Attach(student.Id, now))
	require.NoError(t, shared.Attach(other.Id, now))
	store.licenses[shared.Id] = shared

	require.NoError(t, c.DeleteStudent(context.Background(), identity(seller), student.Id))

	assert.NotContains(t, store.accounts, student.Id)
	assert.Equal(t, 0, solo.UsageCount)
	assert.Equal(t, entity.LicenseAvailable, solo.Status)
	assert.Equal(t, 1, shared.UsageCount)
	assert.Equal(t, entity.LicensePartiallyUsed, shared.Status)
	assert.Len(t, shared.Learners, 1)
	assert.Equal(t, other.Id, shared.Learners[0].UserId)
}

func TestDeleteStudentGuards(t *testing.T) {
	c, store := newTestCore(t)
	seedAccount(store, "partner-1", entity.RolePartner, "master-1")
	stranger := seedAccount(store, "partner-2", entity.RolePartner, "master-1")
	student := seedAccount(store, "student-1", entity.RoleStudent, "partner-1")

	err := c.DeleteStudent(context.Background(), identity(stranger), student.Id)
	assert.Equal(t, 403, fault.StatusOf(err))
	assert.Contains(t, store.accounts, student.Id)

	err = c.DeleteStudent(context.Background(), identity(stranger), "partner-1")
	assert.Equal(t, 400, fault.StatusOf(err), "target is not a learner")

	err = c.DeleteStudent(context.Background(), identity(stranger), "missing")
	assert.Equal(t, 404, fault.StatusOf(err))
}

// --- request workflow ---

func TestApproveRequest(t *testing.T) {
	c, store := newTestCore(t)
	partner := seedAccount(store, "partner-1", entity.RolePartner, "master-1")

	submitted, err := c.SubmitRequest(context.Background(), identity(partner), 0)
	require.NoError(t, err)
	assert.Equal(t, entity.DefaultRequestQuantity, submitted.Quantity)

	approved, batch, err := c.ApproveRequest(context.Background(), submitted.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.RequestApproved, approved.Status)
	require.Len(t, batch, 5)

	keys := map[string]bool{}
	for _, l := range batch {
		assert.Equal(t, partner.Id, l.OwnedBy)
		assert.Equal(t, entity.RequestLicenseSeats, l.MaxUsers)
		assert.Equal(t, 0, l.UsageCount)
		assert.Equal(t, entity.LicenseAvailable, l.Status)
		keys[l.Key] = true
	}
	assert.Len(t, keys, 5)
	assert.Len(t, store.licenses, 5)

	// re-approving a resolved request changes nothing
	_, _, err = c.ApproveRequest(context.Background(), submitted.Id)
	assert.Equal(t, 409, fault.StatusOf(err))
	assert.Len(t, store.licenses, 5)
}

func TestRejectRequest(t *testing.T) {
	c, store := newTestCore(t)
	partner := seedAccount(store, "partner-1", entity.RolePartner, "master-1")

	submitted, err := c.SubmitRequest(context.Background(), identity(partner), 3)
	require.NoError(t, err)

	rejected, err := c.RejectRequest(context.Background(), submitted.Id, "out of stock")
	require.NoError(t, err)
	assert.Equal(t, entity.RequestRejected, rejected.Status)
	assert.Equal(t, "out of stock", rejected.Reason)
	assert.Empty(t, store.licenses, "rejection creates no licenses")
	assert.Equal(t, "out of stock", store.requests[submitted.Id].Reason)

	_, err = c.RejectRequest(context.Background(), submitted.Id, "again")
	assert.Equal(t, 409, fault.StatusOf(err))

	_, _, err = c.ApproveRequest(context.Background(), submitted.Id)
	assert.Equal(t, 409, fault.StatusOf(err), "rejected request cannot be approved")
}

func TestRequestNotFound(t *testing.T) {
	c, _ := newTestCore(t)

	_, _, err := c.ApproveRequest(context.Background(), "missing")
	assert.Equal(t, 404, fault.StatusOf(err))

	_, err = c.RejectRequest(context.Background(), "missing", "")
	assert.Equal(t, 404, fault.StatusOf(err))
}

// --- subscription/expiry engine ---

func TestRenewStudentFreshStart(t *testing.T) {
	c, store := newTestCore(t)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	partner := seedAccount(store, "partner-1", entity.RolePartner, "master-1")
	student := seedAccount(store, "student-1", entity.RoleStudent, "partner-1")
	student.IsActive = false

	renewed, err := c.RenewStudent(context.Background(), identity(partner), student.Id)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, 90), renewed.ExpiryDate)
	assert.True(t, store.accounts[student.Id].IsActive, "renewal reactivates")
}

func TestRenewStudentExtendsFutureExpiry(t *testing.T) {
	c, store := newTestCore(t)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	partner := seedAccount(store, "partner-1", entity.RolePartner, "master-1")
	student := seedAccount(store, "student-1", entity.RoleStudent, "partner-1")
	future := now.AddDate(0, 0, 30)
	student.ExpiryDate = &future

	renewed, err := c.RenewStudent(context.Background(), identity(partner), student.Id)
	require.NoError(t, err)
	assert.Equal(t, future.AddDate(0, 0, 90), renewed.ExpiryDate, "no lost time on early renewal")
}

func TestRenewStudentLapsed(t *testing.T) {
	c, store := newTestCore(t)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	partner := seedAccount(store, "partner-1", entity.RolePartner, "master-1")
	student := seedAccount(store, "student-1", entity.RoleStudent, "partner-1")
	past := now.AddDate(0, 0, -10)
	student.ExpiryDate = &past

	renewed, err := c.RenewStudent(context.Background(), identity(partner), student.Id)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, 90), renewed.ExpiryDate, "lapsed accounts start fresh")
}

func TestRenewPartnerExtension(t *testing.T) {
	c, store := newTestCore(t)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	master := seedAccount(store, "master-1", entity.RoleMaster, "")
	partner := seedAccount(store, "partner-1", entity.RolePartner, "master-1")

	renewed, err := c.RenewPartner(context.Background(), identity(master), partner.Id)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, 360), renewed.ExpiryDate)
}

func TestRenewPartnerForbidden(t *testing.T) {
	c, store := newTestCore(t)
	seedAccount(store, "master-1", entity.RoleMaster, "")
	intruder := seedAccount(store, "master-2", entity.RoleMaster, "")
	partner := seedAccount(store, "partner-1", entity.RolePartner, "master-1")

	_, err := c.RenewPartner(context.Background(), identity(intruder), partner.Id)
	require.Error(t, err)
	assert.Equal(t, 403, fault.StatusOf(err))
	assert.Nil(t, partner.ExpiryDate)
}

func TestRenewPartnerAdminBypass(t *testing.T) {
	c, store := newTestCore(t)
	admin := seedAccount(store, "admin-1", entity.RoleAdmin, "")
	partner := seedAccount(store, "partner-1", entity.RolePartner, "master-1")

	_, err := c.RenewPartner(context.Background(), identity(admin), partner.Id)
	require.NoError(t, err)
	assert.NotNil(t, store.accounts[partner.Id].ExpiryDate)
}

func TestRenewWrongTargetRole(t *testing.T) {
	c, store := newTestCore(t)
	master := seedAccount(store, "master-1", entity.RoleMaster, "")
	seedAccount(store, "partner-1", entity.RolePartner, "master-1")

	_, err := c.RenewStudent(context.Background(), identity(master), "partner-1")
	assert.Equal(t, 400, fault.StatusOf(err), "partner is not a student")

	_, err = c.RenewPartner(context.Background(), identity(master), "master-1")
	assert.Equal(t, 400, fault.StatusOf(err), "master is not a partner")
}

func TestHierarchyListsActiveDownline(t *testing.T) {
	c, store := newTestCore(t)
	master := seedAccount(store, "master-1", entity.RoleMaster, "")
	seedAccount(store, "partner-1", entity.RolePartner, "master-1")
	inactive := seedAccount(store, "partner-2", entity.RolePartner, "master-1")
	inactive.IsActive = false
	seedAccount(store, "partner-3", entity.RolePartner, "master-9")

	accounts, err := c.Hierarchy(context.Background(), identity(master))
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "partner-1", accounts[0].Id)
}
