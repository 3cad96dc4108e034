package service

import (
	"errors"
	"testing"
	"time"

	"github.com/dujiao-next/backoffice/internal/constants"
	"github.com/dujiao-next/backoffice/internal/models"
	"github.com/dujiao-next/backoffice/internal/repository"
)

func validCouponInput(code string) CouponInput {
	now := time.Now()
	return CouponInput{
		Code:          code,
		DiscountType:  constants.CouponTypePercentage,
		DiscountValue: models.MustMoney("15"),
		MinAmount:     models.MustMoney("100"),
		ValidFrom:     now.Add(-time.Hour),
		ValidTo:       now.Add(72 * time.Hour),
		UsageLimit:    10,
	}
}

func TestCouponAdminServiceCreateNormalizesAndRejectsDuplicates(t *testing.T) {
	f := newServiceFixture(t)
	svc := NewCouponAdminService(repository.NewCouponRepository(f.db))

	coupon, err := svc.Create(validCouponInput(" spring15 "), AdminActor(1))
	if err != nil {
		t.Fatalf("create coupon failed: %v", err)
	}
	if coupon.Code != "SPRING15" || !coupon.IsActive || coupon.UsedCount != 0 {
		t.Fatalf("unexpected coupon: %+v", coupon)
	}
	if _, err := svc.Create(validCouponInput("Spring15"), AdminActor(1)); !errors.Is(err, ErrCouponCodeExists) {
		t.Fatalf("expected duplicate code error, got %v", err)
	}
	if _, err := svc.Create(validCouponInput("OTHER"), ""); !errors.Is(err, ErrActorRequired) {
		t.Fatalf("expected actor required, got %v", err)
	}
}

func TestCouponAdminServiceCreateInactive(t *testing.T) {
	f := newServiceFixture(t)
	svc := NewCouponAdminService(repository.NewCouponRepository(f.db))
	input := validCouponInput("DORMANT")
	inactive := false
	input.IsActive = &inactive

	coupon, err := svc.Create(input, AdminActor(1))
	if err != nil {
		t.Fatalf("create coupon failed: %v", err)
	}
	var reloaded models.Coupon
	if err := f.db.First(&reloaded, coupon.ID).Error; err != nil {
		t.Fatalf("reload coupon failed: %v", err)
	}
	if reloaded.IsActive {
		t.Fatalf("coupon should be stored inactive")
	}
}

func TestCouponAdminServiceRejectsInvalidRules(t *testing.T) {
	f := newServiceFixture(t)
	svc := NewCouponAdminService(repository.NewCouponRepository(f.db))

	cases := map[string]func(*CouponInput){
		"window reversed":  func(in *CouponInput) { in.ValidFrom, in.ValidTo = in.ValidTo, in.ValidFrom },
		"window empty":     func(in *CouponInput) { in.ValidTo = in.ValidFrom },
		"percentage over":  func(in *CouponInput) { in.DiscountValue = models.MustMoney("100.01") },
		"zero value":       func(in *CouponInput) { in.DiscountValue = models.MustMoney("0") },
		"unknown type":     func(in *CouponInput) { in.DiscountType = "bogo" },
		"negative minimum": func(in *CouponInput) { in.MinAmount = models.MustMoney("-1") },
		"negative limit":   func(in *CouponInput) { in.UsageLimit = -1 },
		"empty code":       func(in *CouponInput) { in.Code = "  " },
	}
	for name, mutate := range cases {
		input := validCouponInput("BAD")
		mutate(&input)
		if _, err := svc.Create(input, AdminActor(1)); !errors.Is(err, ErrCouponInvalid) {
			t.Fatalf("%s: expected invalid coupon, got %v", name, err)
		}
	}
}

func TestCouponAdminServiceUpdateAndDeactivate(t *testing.T) {
	f := newServiceFixture(t)
	svc := NewCouponAdminService(repository.NewCouponRepository(f.db))
	coupon, err := svc.Create(validCouponInput("EDIT"), AdminActor(1))
	if err != nil {
		t.Fatalf("create coupon failed: %v", err)
	}

	input := validCouponInput("IGNORED")
	input.DiscountType = constants.CouponTypeFixedAmount
	input.DiscountValue = models.MustMoney("25")
	updated, err := svc.Update(coupon.ID, input, AdminActor(2))
	if err != nil {
		t.Fatalf("update coupon failed: %v", err)
	}
	if updated.Code != "EDIT" || updated.DiscountType != constants.CouponTypeFixedAmount {
		t.Fatalf("code must stay immutable and type must change: %+v", updated)
	}
	if _, err := svc.Update(9999, input, AdminActor(2)); !errors.Is(err, ErrCouponNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	deactivated, err := svc.Deactivate(coupon.ID, AdminActor(2))
	if err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	if deactivated.IsActive {
		t.Fatalf("coupon should be inactive")
	}

	inactive := false
	list, total, err := svc.List(repository.CouponListFilter{IsActive: &inactive, Page: 1, PageSize: 20})
	if err != nil {
		t.Fatalf("list coupons failed: %v", err)
	}
	if total != 1 || len(list) != 1 || list[0].ID != coupon.ID {
		t.Fatalf("unexpected inactive list: total=%d list=%+v", total, list)
	}
}

func TestCouponAdminServiceUpdateRejectsLimitBelowUsage(t *testing.T) {
	f := newServiceFixture(t)
	svc := NewCouponAdminService(repository.NewCouponRepository(f.db))
	coupon, err := svc.Create(validCouponInput("USED"), AdminActor(1))
	if err != nil {
		t.Fatalf("create coupon failed: %v", err)
	}
	if err := f.db.Model(coupon).Update("used_count", 5).Error; err != nil {
		t.Fatalf("set used count failed: %v", err)
	}
	input := validCouponInput("USED")
	input.UsageLimit = 3
	if _, err := svc.Update(coupon.ID, input, AdminActor(1)); !errors.Is(err, ErrCouponInvalid) {
		t.Fatalf("expected invalid coupon, got %v", err)
	}
}

// staleCouponRepo 返回创建时的快照，模拟读取之后才落地的核销
type staleCouponRepo struct {
	repository.CouponRepository
	snapshot models.Coupon
}

func (r staleCouponRepo) GetByID(id uint) (*models.Coupon, error) {
	copied := r.snapshot
	return &copied, nil
}

func TestCouponAdminServiceUpdateGuardsConcurrentRedeem(t *testing.T) {
	f := newServiceFixture(t)
	repo := repository.NewCouponRepository(f.db)
	coupon, err := NewCouponAdminService(repo).Create(validCouponInput("RACE"), AdminActor(1))
	if err != nil {
		t.Fatalf("create coupon failed: %v", err)
	}
	svc := NewCouponAdminService(staleCouponRepo{CouponRepository: repo, snapshot: *coupon})
	if err := f.db.Model(&models.Coupon{}).Where("id = ?", coupon.ID).Update("used_count", 4).Error; err != nil {
		t.Fatalf("set used count failed: %v", err)
	}

	input := validCouponInput("RACE")
	input.UsageLimit = 2
	if _, err := svc.Update(coupon.ID, input, AdminActor(1)); !errors.Is(err, ErrCouponInvalid) {
		t.Fatalf("expected invalid coupon, got %v", err)
	}
	var reloaded models.Coupon
	if err := f.db.First(&reloaded, coupon.ID).Error; err != nil {
		t.Fatalf("reload coupon failed: %v", err)
	}
	if reloaded.UsageLimit != 10 || reloaded.UsedCount != 4 {
		t.Fatalf("limit should stay 10 with used 4, got limit=%d used=%d", reloaded.UsageLimit, reloaded.UsedCount)
	}

	input.UsageLimit = 4
	updated, err := svc.Update(coupon.ID, input, AdminActor(1))
	if err != nil {
		t.Fatalf("update to used count failed: %v", err)
	}
	if updated.UsageLimit != 4 {
		t.Fatalf("unexpected limit: %d", updated.UsageLimit)
	}
}

func TestCouponAdminServiceCreateConflictsWithDeletedCode(t *testing.T) {
	f := newServiceFixture(t)
	svc := NewCouponAdminService(repository.NewCouponRepository(f.db))
	coupon, err := svc.Create(validCouponInput("GHOST"), AdminActor(1))
	if err != nil {
		t.Fatalf("create coupon failed: %v", err)
	}
	if err := f.db.Delete(coupon).Error; err != nil {
		t.Fatalf("soft delete failed: %v", err)
	}
	if _, err := svc.Create(validCouponInput("ghost"), AdminActor(1)); !errors.Is(err, ErrCouponCodeExists) {
		t.Fatalf("expected code exists, got %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("constraint failed: UNIQUE constraint failed: coupons.code (2067)"), true},
		{errors.New(`ERROR: duplicate key value violates unique constraint "idx_coupons_code" (SQLSTATE 23505)`), true},
		{errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		if got := isUniqueViolation(tc.err); got != tc.want {
			t.Fatalf("isUniqueViolation(%v) want %v got %v", tc.err, tc.want, got)
		}
	}
}
