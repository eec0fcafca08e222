package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	partnerModel "balkly_rewards/internal/domain/partner/model"
	"balkly_rewards/internal/domain/voucher/model"
	"balkly_rewards/internal/domain/voucher/repository"
	"balkly_rewards/internal/pkg/lock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// MockVoucherRepository is a mock of VoucherRepository
type MockVoucherRepository struct {
	mock.Mock
}

func (m *MockVoucherRepository) Create(ctx context.Context, voucher *model.Voucher) error {
	args := m.Called(ctx, voucher)
	return args.Error(0)
}

func (m *MockVoucherRepository) GetByCode(ctx context.Context, code string) (*model.Voucher, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Voucher), args.Error(1)
}

func (m *MockVoucherRepository) FindActive(ctx context.Context, userID, partnerID string, offerID *string) (*model.Voucher, error) {
	args := m.Called(ctx, userID, partnerID, offerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Voucher), args.Error(1)
}

func (m *MockVoucherRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockVoucherRepository) MarkRedeemed(ctx context.Context, code, redeemedBy string, at time.Time) (bool, error) {
	args := m.Called(ctx, code, redeemedBy, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockVoucherRepository) MarkExpired(ctx context.Context, code string, now time.Time) (bool, error) {
	args := m.Called(ctx, code, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockVoucherRepository) ExpireStale(ctx context.Context, now time.Time, limit int) (int64, error) {
	args := m.Called(ctx, now, limit)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockVoucherRepository) ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.Voucher, int64, error) {
	args := m.Called(ctx, userID, offset, limit)
	return args.Get(0).([]model.Voucher), args.Get(1).(int64), args.Error(2)
}

// MockCatalog is a mock of Catalog
type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) GetByID(ctx context.Context, id string) (*partnerModel.Partner, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*partnerModel.Partner), args.Error(1)
}

func (m *MockCatalog) GetOffer(ctx context.Context, id string) (*partnerModel.Offer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*partnerModel.Offer), args.Error(1)
}

type fakeNotifier struct {
	sent []string
}

func (f *fakeNotifier) NotifyRedeemed(userID, code, partnerName string) {
	f.sent = append(f.sent, userID+"|"+code+"|"+partnerName)
}

type failingLocker struct{}

func (failingLocker) Acquire(context.Context, string) (func(), error) {
	return nil, lock.ErrLockTimeout
}

const (
	partnerID = "11111111-1111-1111-1111-111111111111"
	offerID   = "22222222-2222-2222-2222-222222222222"
	userID    = "user-1"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func fixedCodes(codes ...string) CodeGenerator {
	i := 0
	return func() (string, error) {
		code := codes[i%len(codes)]
		i++
		return code, nil
	}
}

func testPartner(active bool) *partnerModel.Partner {
	p := &partnerModel.Partner{CompanyName: "Cafe Sarajevo", TrackingCode: "CAFE01", Active: active}
	p.ID = partnerID
	return p
}

func testOffer(owner string, active bool) *partnerModel.Offer {
	o := &partnerModel.Offer{PartnerID: owner, Title: "Coffee", BenefitType: partnerModel.BenefitFreeItem, Active: active}
	o.ID = offerID
	return o
}

func issuedVoucher(code string, issuedAt time.Time) *model.Voucher {
	return &model.Voucher{
		Code:      code,
		UserID:    userID,
		PartnerID: partnerID,
		Status:    model.StatusIssued,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(24 * time.Hour),
	}
}

func newTestService(repo *MockVoucherRepository, catalog *MockCatalog, c *clock, codes CodeGenerator) VoucherService {
	return NewVoucherService(repo, catalog, Options{
		Window:          24 * time.Hour,
		MaxCodeAttempts: 3,
		Codes:           codes,
		Now:             c.Now,
	})
}

func TestIssueVoucher(t *testing.T) {
	ctx := context.Background()

	t.Run("Creates voucher when none active", func(t *testing.T) {
		repo := new(MockVoucherRepository)
		catalog := new(MockCatalog)
		svc := newTestService(repo, catalog, &clock{now: t0}, fixedCodes("ABCDEFGH12345678"))

		catalog.On("GetByID", ctx, partnerID).Return(testPartner(true), nil)
		repo.On("FindActive", ctx, userID, partnerID, (*string)(nil)).Return(nil, gorm.ErrRecordNotFound)
		repo.On("CodeExists", ctx, "ABCDEFGH12345678").Return(false, nil)
		repo.On("Create", ctx, mock.AnythingOfType("*model.Voucher")).Return(nil)

		v, created, err := svc.IssueVoucher(ctx, userID, partnerID, nil)

		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "ABCDEFGH12345678", v.Code)
		assert.Equal(t, model.StatusIssued, v.Status)
		assert.Equal(t, t0, v.IssuedAt)
		assert.Equal(t, t0.Add(24*time.Hour), v.ExpiresAt)
		assert.Nil(t, v.OfferID)
		repo.AssertExpectations(t)
	})

	t.Run("Reuses unexpired voucher across the window", func(t *testing.T) {
		repo := new(MockVoucherRepository)
		catalog := new(MockCatalog)
		c := &clock{now: t0.Add(time.Hour)}
		svc := newTestService(repo, catalog, c, fixedCodes("NEWCODE000000000"))

		existing := issuedVoucher("FIRSTCODE0000000", t0)
		catalog.On("GetByID", ctx, partnerID).Return(testPartner(true), nil)
		repo.On("FindActive", ctx, userID, partnerID, (*string)(nil)).Return(existing, nil)

		v, created, err := svc.IssueVoucher(ctx, userID, partnerID, nil)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "FIRSTCODE0000000", v.Code)

		// 恰好到期时刻仍有效
		c.now = t0.Add(24 * time.Hour)
		v, created, err = svc.IssueVoucher(ctx, userID, partnerID, nil)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "FIRSTCODE0000000", v.Code)

		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "MarkExpired", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Stale voucher is expired before a new one is issued", func(t *testing.T) {
		repo := new(MockVoucherRepository)
		catalog := new(MockCatalog)
		now := t0.Add(25 * time.Hour)
		svc := newTestService(repo, catalog, &clock{now: now}, fixedCodes("SECONDCODE000000"))

		catalog.On("GetByID", ctx, partnerID).Return(testPartner(true), nil)
		repo.On("FindActive", ctx, userID, partnerID, (*string)(nil)).Return(issuedVoucher("FIRSTCODE0000000", t0), nil)
		repo.On("MarkExpired", ctx, "FIRSTCODE0000000", now).Return(true, nil)
		repo.On("CodeExists", ctx, "SECONDCODE000000").Return(false, nil)
		repo.On("Create", ctx, mock.AnythingOfType("*model.Voucher")).Return(nil)

		v, created, err := svc.IssueVoucher(ctx, userID, partnerID, nil)

		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "SECONDCODE000000", v.Code)
		assert.Equal(t, now.Add(24*time.Hour), v.ExpiresAt)
		repo.AssertExpectations(t)
	})

	t.Run("Offer scoped voucher", func(t *testing.T) {
		repo := new(MockVoucherRepository)
		catalog := new(MockCatalog)
		svc := newTestService(repo, catalog, &clock{now: t0}, fixedCodes("OFFERCODE0000000"))
		oid := offerID

		catalog.On("GetByID", ctx, partnerID).Return(testPartner(true), nil)
		catalog.On("GetOffer", ctx, offerID).Return(testOffer(partnerID, true), nil)
		repo.On("FindActive", ctx, userID, partnerID, &oid).Return(nil, gorm.ErrRecordNotFound)
		repo.On("CodeExists", ctx, "OFFERCODE0000000").Return(false, nil)
		repo.On("Create", ctx, mock.MatchedBy(func(v *model.Voucher) bool {
			return v.OfferID != nil && *v.OfferID == offerID
		})).Return(nil)

		v, created, err := svc.IssueVoucher(ctx, userID, partnerID, &oid)

		require.NoError(t, err)
		assert.True(t, created)
		require.NotNil(t, v.OfferID)
		assert.Equal(t, offerID, *v.OfferID)
	})

	t.Run("Rejected inputs write nothing", func(t *testing.T) {
		oid := offerID
		cases := []struct {
			name    string
			userID  string
			partner *partnerModel.Partner
			perr    error
			offer   *partnerModel.Offer
			oerr    error
			offerID *string
			want    error
		}{
			{name: "unauthenticated", userID: "", want: ErrUnauthenticated},
			{name: "unknown partner", userID: userID, perr: gorm.ErrRecordNotFound, want: ErrPartnerNotFound},
			{name: "inactive partner", userID: userID, partner: testPartner(false), want: ErrPartnerNotFound},
			{name: "unknown offer", userID: userID, partner: testPartner(true), oerr: gorm.ErrRecordNotFound, offerID: &oid, want: ErrOfferNotFound},
			{name: "inactive offer", userID: userID, partner: testPartner(true), offer: testOffer(partnerID, false), offerID: &oid, want: ErrInvalidOffer},
			{name: "offer of another partner", userID: userID, partner: testPartner(true), offer: testOffer("other", true), offerID: &oid, want: ErrInvalidOffer},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				repo := new(MockVoucherRepository)
				catalog := new(MockCatalog)
				svc := newTestService(repo, catalog, &clock{now: t0}, fixedCodes("X"))

				if tc.partner != nil || tc.perr != nil {
					catalog.On("GetByID", ctx, partnerID).Return(tc.partner, tc.perr)
				}
				if tc.offer != nil || tc.oerr != nil {
					catalog.On("GetOffer", ctx, offerID).Return(tc.offer, tc.oerr)
				}

				v, created, err := svc.IssueVoucher(ctx, tc.userID, partnerID, tc.offerID)

				assert.ErrorIs(t, err, tc.want)
				assert.Nil(t, v)
				assert.False(t, created)
				repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("Malformed ids are not found", func(t *testing.T) {
		repo := new(MockVoucherRepository)
		catalog := new(MockCatalog)
		svc := newTestService(repo, catalog, &clock{now: t0}, fixedCodes("X"))

		_, _, err := svc.IssueVoucher(ctx, userID, "not-a-uuid", nil)
		assert.ErrorIs(t, err, ErrPartnerNotFound)
		catalog.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)

		catalog.On("GetByID", ctx, partnerID).Return(testPartner(true), nil)
		bad := "offer-1"
		_, _, err = svc.IssueVoucher(ctx, userID, partnerID, &bad)
		assert.ErrorIs(t, err, ErrOfferNotFound)
		catalog.AssertNotCalled(t, "GetOffer", mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Code collision regenerates", func(t *testing.T) {
		repo := new(MockVoucherRepository)
		catalog := new(MockCatalog)
		svc := newTestService(repo, catalog, &clock{now: t0}, fixedCodes("TAKEN00000000000", "RACED00000000000", "FRESH00000000000"))

		catalog.On("GetByID", ctx, partnerID).Return(testPartner(true), nil)
		repo.On("FindActive", ctx, userID, partnerID, (*string)(nil)).Return(nil, gorm.ErrRecordNotFound)
		repo.On("CodeExists", ctx, "TAKEN00000000000").Return(true, nil)
		repo.On("CodeExists", ctx, "RACED00000000000").Return(false, nil)
		repo.On("CodeExists", ctx, "FRESH00000000000").Return(false, nil)
		repo.On("Create", ctx, mock.MatchedBy(func(v *model.Voucher) bool { return v.Code == "RACED00000000000" })).
			Return(repository.ErrDuplicateCode)
		repo.On("Create", ctx, mock.MatchedBy(func(v *model.Voucher) bool { return v.Code == "FRESH00000000000" })).
			Return(nil)

		v, created, err := svc.IssueVoucher(ctx, userID, partnerID, nil)

		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "FRESH00000000000", v.Code)
	})

	t.Run("Exhausted code attempts fail", func(t *testing.T) {
		repo := new(MockVoucherRepository)
		catalog := new(MockCatalog)
		svc := newTestService(repo, catalog, &clock{now: t0}, fixedCodes("TAKEN00000000000"))

		catalog.On("GetByID", ctx, partnerID).Return(testPartner(true), nil)
		repo.On("FindActive", ctx, userID, partnerID, (*string)(nil)).Return(nil, gorm.ErrRecordNotFound)
		repo.On("CodeExists", ctx, "TAKEN00000000000").Return(true, nil)

		v, _, err := svc.IssueVoucher(ctx, userID, partnerID, nil)

		assert.ErrorIs(t, err, ErrIssuanceFailed)
		assert.Nil(t, v)
		repo.AssertNumberOfCalls(t, "CodeExists", 3)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Lost insert race returns the winner", func(t *testing.T) {
		repo := new(MockVoucherRepository)
		catalog := new(MockCatalog)
		svc := newTestService(repo, catalog, &clock{now: t0}, fixedCodes("LOSER00000000000"))

		winner := issuedVoucher("WINNER0000000000", t0)
		catalog.On("GetByID", ctx, partnerID).Return(testPartner(true), nil)
		repo.On("FindActive", ctx, userID, partnerID, (*string)(nil)).Return(nil, gorm.ErrRecordNotFound).Once()
		repo.On("CodeExists", ctx, "LOSER00000000000").Return(false, nil)
		repo.On("Create", ctx, mock.AnythingOfType("*model.Voucher")).Return(repository.ErrDuplicateActive)
		repo.On("FindActive", ctx, userID, partnerID, (*string)(nil)).Return(winner, nil).Once()

		v, created, err := svc.IssueVoucher(ctx, userID, partnerID, nil)

		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "WINNER0000000000", v.Code)
	})

	t.Run("Lock outage falls back to unique index", func(t *testing.T) {
		repo := new(MockVoucherRepository)
		catalog := new(MockCatalog)
		svc := NewVoucherService(repo, catalog, Options{
			Codes:  fixedCodes("NOLOCK0000000000"),
			Locker: failingLocker{},
			Now:    (&clock{now: t0}).Now,
		})

		catalog.On("GetByID", ctx, partnerID).Return(testPartner(true), nil)
		repo.On("FindActive", ctx, userID, partnerID, (*string)(nil)).Return(nil, gorm.ErrRecordNotFound)
		repo.On("CodeExists", ctx, "NOLOCK0000000000").Return(false, nil)
		repo.On("Create", ctx, mock.AnythingOfType("*model.Voucher")).Return(nil)

		v, created, err := svc.IssueVoucher(ctx, userID, partnerID, nil)

		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "NOLOCK0000000000", v.Code)
	})
}

func TestGetVoucher(t *testing.T) {
	ctx := context.Background()

	t.Run("Unknown code", func(t *testing.T) {
		repo := new(MockVoucherRepository)
		svc := newTestService(repo, new(MockCatalog), &clock{now: t0}, nil)
		repo.On("GetByCode", ctx, "ZZZZ0000ZZZZ0000").Return(nil, gorm.ErrRecordNotFound)

		view, err := svc.GetVoucher(ctx, "ZZZZ0000ZZZZ0000")

		assert.ErrorIs(t, err, ErrVoucherNotFound)
		assert.Nil(t, view)
	})

	t.Run("Effective status without writes", func(t *testing.T) {
		repo := new(MockVoucherRepository)
		catalog := new(MockCatalog)
		c := &clock{now: t0.Add(2 * time.Hour)}
		svc := newTestService(repo, catalog, c, nil)

		oid := offerID
		v := issuedVoucher("K7M2Q9XW4HN3B8TD", t0)
		v.OfferID = &oid
		repo.On("GetByCode", ctx, v.Code).Return(v, nil)
		catalog.On("GetByID", ctx, partnerID).Return(testPartner(true), nil)
		catalog.On("GetOffer", ctx, offerID).Return(testOffer(partnerID, true), nil)

		view, err := svc.GetVoucher(ctx, v.Code)
		require.NoError(t, err)
		assert.Equal(t, model.StatusIssued, view.Status)
		assert.Equal(t, "Cafe Sarajevo", view.Partner.CompanyName)
		require.NotNil(t, view.Offer)
		assert.Equal(t, "free item", view.Offer.Summary)

		c.now = t0.Add(25 * time.Hour)
		view, err = svc.GetVoucher(ctx, v.Code)
		require.NoError(t, err)
		assert.Equal(t, model.StatusExpired, view.Status)
		repo.AssertNotCalled(t, "MarkExpired", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Delisted partner still shows voucher", func(t *testing.T) {
		repo := new(MockVoucherRepository)
		catalog := new(MockCatalog)
		svc := newTestService(repo, catalog, &clock{now: t0}, nil)

		v := issuedVoucher("K7M2Q9XW4HN3B8TD", t0)
		repo.On("GetByCode", ctx, v.Code).Return(v, nil)
		catalog.On("GetByID", ctx, partnerID).Return(nil, gorm.ErrRecordNotFound)

		view, err := svc.GetVoucher(ctx, v.Code)

		require.NoError(t, err)
		assert.Equal(t, partnerID, view.Partner.ID)
		assert.Nil(t, view.Offer)
	})
}

func TestRedeem(t *testing.T) {
	ctx := context.Background()

	t.Run("Redeems issued voucher and notifies owner", func(t *testing.T) {
		repo := new(MockVoucherRepository)
		catalog := new(MockCatalog)
		now := t0.Add(2 * time.Hour)
		notifier := &fakeNotifier{}
		svc := NewVoucherService(repo, catalog, Options{Now: (&clock{now: now}).Now, Notifier: notifier})

		v := issuedVoucher("K7M2Q9XW4HN3B8TD", t0)
		repo.On("GetByCode", ctx, v.Code).Return(v, nil)
		repo.On("MarkRedeemed", ctx, v.Code, "staff-1", now).Return(true, nil)
		catalog.On("GetByID", ctx, partnerID).Return(testPartner(true), nil)

		view, err := svc.Redeem(ctx, v.Code, "staff-1")

		require.NoError(t, err)
		assert.Equal(t, model.StatusRedeemed, view.Status)
		require.NotNil(t, view.RedeemedAt)
		assert.Equal(t, now, *view.RedeemedAt)

		assert.Equal(t, []string{userID + "|" + v.Code + "|Cafe Sarajevo"}, notifier.sent)
	})

	t.Run("Second redemption is rejected with original time", func(t *testing.T) {
		repo := new(MockVoucherRepository)
		catalog := new(MockCatalog)
		svc := newTestService(repo, catalog, &clock{now: t0.Add(3 * time.Hour)}, nil)

		redeemedAt := t0.Add(2 * time.Hour)
		v := issuedVoucher("K7M2Q9XW4HN3B8TD", t0)
		v.Status = model.StatusRedeemed
		v.RedeemedAt = &redeemedAt
		repo.On("GetByCode", ctx, v.Code).Return(v, nil)
		catalog.On("GetByID", ctx, partnerID).Return(testPartner(true), nil)

		view, err := svc.Redeem(ctx, v.Code, "staff-2")

		assert.ErrorIs(t, err, ErrAlreadyRedeemed)
		require.NotNil(t, view)
		assert.Equal(t, redeemedAt, *view.RedeemedAt)
		repo.AssertNotCalled(t, "MarkRedeemed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Expired voucher is persisted as expired", func(t *testing.T) {
		repo := new(MockVoucherRepository)
		catalog := new(MockCatalog)
		now := t0.Add(25 * time.Hour)
		svc := newTestService(repo, catalog, &clock{now: now}, nil)

		v := issuedVoucher("K7M2Q9XW4HN3B8TD", t0)
		repo.On("GetByCode", ctx, v.Code).Return(v, nil)
		repo.On("MarkExpired", ctx, v.Code, now).Return(true, nil)
		catalog.On("GetByID", ctx, partnerID).Return(testPartner(true), nil)

		view, err := svc.Redeem(ctx, v.Code, "staff-1")

		assert.ErrorIs(t, err, ErrExpired)
		assert.Equal(t, model.StatusExpired, view.Status)
		repo.AssertNotCalled(t, "MarkRedeemed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Unknown code", func(t *testing.T) {
		repo := new(MockVoucherRepository)
		svc := newTestService(repo, new(MockCatalog), &clock{now: t0}, nil)
		repo.On("GetByCode", ctx, "ZZZZ0000ZZZZ0000").Return(nil, gorm.ErrRecordNotFound)

		_, err := svc.Redeem(ctx, "ZZZZ0000ZZZZ0000", "staff-1")

		assert.ErrorIs(t, err, ErrVoucherNotFound)
	})

	t.Run("Losing a concurrent redemption maps to already redeemed", func(t *testing.T) {
		repo := new(MockVoucherRepository)
		catalog := new(MockCatalog)
		now := t0.Add(time.Hour)
		svc := newTestService(repo, catalog, &clock{now: now}, nil)

		stale := issuedVoucher("K7M2Q9XW4HN3B8TD", t0)
		winnerAt := now.Add(-time.Millisecond)
		fresh := issuedVoucher("K7M2Q9XW4HN3B8TD", t0)
		fresh.Status = model.StatusRedeemed
		fresh.RedeemedAt = &winnerAt

		repo.On("GetByCode", ctx, stale.Code).Return(stale, nil).Once()
		repo.On("MarkRedeemed", ctx, stale.Code, "staff-2", now).Return(false, nil)
		repo.On("GetByCode", ctx, stale.Code).Return(fresh, nil).Once()
		catalog.On("GetByID", ctx, partnerID).Return(testPartner(true), nil)

		view, err := svc.Redeem(ctx, stale.Code, "staff-2")

		assert.ErrorIs(t, err, ErrAlreadyRedeemed)
		assert.Equal(t, winnerAt, *view.RedeemedAt)
		repo.AssertNumberOfCalls(t, "MarkRedeemed", 1)
	})

	t.Run("Unresolvable miss is a conflict", func(t *testing.T) {
		repo := new(MockVoucherRepository)
		svc := newTestService(repo, new(MockCatalog), &clock{now: t0}, nil)

		v := issuedVoucher("K7M2Q9XW4HN3B8TD", t0)
		repo.On("GetByCode", ctx, v.Code).Return(v, nil)
		repo.On("MarkRedeemed", ctx, v.Code, "staff-1", t0).Return(false, nil)

		view, err := svc.Redeem(ctx, v.Code, "staff-1")

		assert.ErrorIs(t, err, ErrConflict)
		assert.Nil(t, view)
	})

	t.Run("Repository failure is wrapped", func(t *testing.T) {
		repo := new(MockVoucherRepository)
		svc := newTestService(repo, new(MockCatalog), &clock{now: t0}, nil)

		v := issuedVoucher("K7M2Q9XW4HN3B8TD", t0)
		dbErr := errors.New("connection reset")
		repo.On("GetByCode", ctx, v.Code).Return(v, nil)
		repo.On("MarkRedeemed", ctx, v.Code, "staff-1", t0).Return(false, dbErr)

		_, err := svc.Redeem(ctx, v.Code, "staff-1")

		assert.ErrorIs(t, err, dbErr)
	})
}

func TestListMine(t *testing.T) {
	ctx := context.Background()

	t.Run("Reports effective status", func(t *testing.T) {
		repo := new(MockVoucherRepository)
		svc := newTestService(repo, new(MockCatalog), &clock{now: t0.Add(25 * time.Hour)}, nil)

		stale := issuedVoucher("OLD0000000000000", t0)
		current := issuedVoucher("NEW0000000000000", t0.Add(24*time.Hour))
		repo.On("ListByUser", ctx, userID, 0, 10).Return([]model.Voucher{*current, *stale}, int64(2), nil)

		list, total, err := svc.ListMine(ctx, userID, 0, 10)

		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Equal(t, model.StatusIssued, list[0].Status)
		assert.Equal(t, model.StatusExpired, list[1].Status)
		repo.AssertNotCalled(t, "MarkExpired", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Requires user", func(t *testing.T) {
		svc := newTestService(new(MockVoucherRepository), new(MockCatalog), &clock{now: t0}, nil)

		_, _, err := svc.ListMine(ctx, "", 0, 10)

		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestCodeGenerator(t *testing.T) {
	gen := NewCodeGenerator(16)
	seen := make(map[string]struct{})

	for i := 0; i < 1000; i++ {
		code, err := gen()
		require.NoError(t, err)
		assert.Len(t, code, 16)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, r), "unexpected rune %q", r)
		}
		seen[code] = struct{}{}
	}
	assert.Len(t, seen, 1000)
}

func TestDefaultClockIsMicrosecondPrecision(t *testing.T) {
	svc := NewVoucherService(new(MockVoucherRepository), new(MockCatalog), Options{}).(*voucherService)

	now := svc.opts.Now()

	assert.Equal(t, time.UTC, now.Location())
	assert.Equal(t, now, now.Truncate(time.Microsecond))
}

func TestNormalizeCode(t *testing.T) {
	cases := map[string]string{
		"K7M2Q9XW4HN3B8TD":      "K7M2Q9XW4HN3B8TD",
		"k7m2q9xw4hn3b8td":      "K7M2Q9XW4HN3B8TD",
		" k7m2-q9xw-4hn3-b8td ": "K7M2Q9XW4HN3B8TD",
		"ABCDEFGHiJKLMNOP":      "ABCDEFGH1JK1MN0P",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeCode(in), in)
	}
}

func TestLookupNormalizesTypedCode(t *testing.T) {
	ctx := context.Background()
	now := t0.Add(time.Hour)

	repo := new(MockVoucherRepository)
	catalog := new(MockCatalog)
	svc := newTestService(repo, catalog, &clock{now: now}, nil)

	v := issuedVoucher("K7M2Q9XW4HN3B8T0", t0)
	repo.On("GetByCode", ctx, v.Code).Return(v, nil)
	repo.On("MarkRedeemed", ctx, v.Code, "staff-1", now).Return(true, nil)
	catalog.On("GetByID", ctx, partnerID).Return(testPartner(true), nil)

	view, err := svc.GetVoucher(ctx, "k7m2-q9xw-4hn3-b8to")
	require.NoError(t, err)
	assert.Equal(t, v.Code, view.Code)

	view, err = svc.Redeem(ctx, "k7m2 q9xw 4hn3 b8to", "staff-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRedeemed, view.Status)
	repo.AssertExpectations(t)
}
