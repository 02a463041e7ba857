package referral

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kareemadel/mustaqill_be/internal/models"
)

func setupTestDB(t *testing.T, name string) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Affiliate{}, &models.Referral{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string, role models.Role) models.User {
	u := models.User{FullName: "Test " + email, Email: email, Password: "hash", Role: role}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestEnsureAffiliateIssuesCodeAndFlipsRole(t *testing.T) {
	db := setupTestDB(t, t.Name())
	svc := NewReferralService(db)
	u := seedUser(t, db, "amira@example.com", models.RoleClient)

	aff, err := svc.EnsureAffiliate(u.ID)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if len(aff.ReferralCode) != 11 || aff.ReferralCode[:3] != "AFF" {
		t.Fatalf("unexpected referral code %q", aff.ReferralCode)
	}
	if !aff.IsActive {
		t.Fatal("new affiliate should be active")
	}

	var reloaded models.User
	if err := db.First(&reloaded, "id = ?", u.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if reloaded.Role != models.RoleAffiliate {
		t.Fatalf("role = %s, want affiliate", reloaded.Role)
	}
}

func TestEnsureAffiliateIsIdempotent(t *testing.T) {
	db := setupTestDB(t, t.Name())
	svc := NewReferralService(db)
	u := seedUser(t, db, "amira@example.com", models.RoleClient)

	first, err := svc.EnsureAffiliate(u.ID)
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	second, err := svc.EnsureAffiliate(u.ID)
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if first.ID != second.ID || first.ReferralCode != second.ReferralCode {
		t.Fatal("opting in twice must return the same affiliate record")
	}

	var count int64
	db.Model(&models.Affiliate{}).Where("user_id = ?", u.ID).Count(&count)
	if count != 1 {
		t.Fatalf("affiliate rows = %d, want 1", count)
	}
}

func TestAttributeCreatesPendingReferral(t *testing.T) {
	db := setupTestDB(t, t.Name())
	svc := NewReferralService(db)
	owner := seedUser(t, db, "owner@example.com", models.RoleClient)
	signup := seedUser(t, db, "new@example.com", models.RoleClient)

	aff, err := svc.EnsureAffiliate(owner.ID)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	ref, err := svc.Attribute(aff.ReferralCode, signup.ID)
	if err != nil {
		t.Fatalf("attribute: %v", err)
	}
	if ref == nil {
		t.Fatal("expected a referral row")
	}
	if ref.Status != models.ReferralStatusPending {
		t.Fatalf("status = %s, want pending", ref.Status)
	}
	if ref.AffiliateID != aff.ID || ref.ReferredUserID != signup.ID {
		t.Fatal("referral links the wrong parties")
	}
}

func TestAttributeIsIdempotentPerPair(t *testing.T) {
	db := setupTestDB(t, t.Name())
	svc := NewReferralService(db)
	owner := seedUser(t, db, "owner@example.com", models.RoleClient)
	signup := seedUser(t, db, "new@example.com", models.RoleClient)

	aff, _ := svc.EnsureAffiliate(owner.ID)

	first, err := svc.Attribute(aff.ReferralCode, signup.ID)
	if err != nil {
		t.Fatalf("first attribute: %v", err)
	}
	second, err := svc.Attribute(aff.ReferralCode, signup.ID)
	if err != nil {
		t.Fatalf("second attribute: %v", err)
	}
	if first.ID != second.ID {
		t.Fatal("repeated attribution must return the existing row")
	}

	var count int64
	db.Model(&models.Referral{}).Count(&count)
	if count != 1 {
		t.Fatalf("referral rows = %d, want 1", count)
	}
}

func TestAttributeUnknownCodeIsNoop(t *testing.T) {
	db := setupTestDB(t, t.Name())
	svc := NewReferralService(db)
	signup := seedUser(t, db, "new@example.com", models.RoleClient)

	ref, err := svc.Attribute("AFFNOSUCH01", signup.ID)
	if err != nil {
		t.Fatalf("attribute: %v", err)
	}
	if ref != nil {
		t.Fatal("unknown code must not create a referral")
	}

	ref, err = svc.Attribute("", signup.ID)
	if err != nil || ref != nil {
		t.Fatal("empty code must be a silent noop")
	}
}

func TestAttributeInactiveCodeIsNoop(t *testing.T) {
	db := setupTestDB(t, t.Name())
	svc := NewReferralService(db)
	owner := seedUser(t, db, "owner@example.com", models.RoleClient)
	signup := seedUser(t, db, "new@example.com", models.RoleClient)

	aff, _ := svc.EnsureAffiliate(owner.ID)
	db.Model(&models.Affiliate{}).Where("id = ?", aff.ID).Update("is_active", false)

	ref, err := svc.Attribute(aff.ReferralCode, signup.ID)
	if err != nil {
		t.Fatalf("attribute: %v", err)
	}
	if ref != nil {
		t.Fatal("inactive code must not create a referral")
	}
}

func TestAttributeSkipsSelfReferral(t *testing.T) {
	db := setupTestDB(t, t.Name())
	svc := NewReferralService(db)
	owner := seedUser(t, db, "owner@example.com", models.RoleClient)

	aff, _ := svc.EnsureAffiliate(owner.ID)

	ref, err := svc.Attribute(aff.ReferralCode, owner.ID)
	if err != nil {
		t.Fatalf("attribute: %v", err)
	}
	if ref != nil {
		t.Fatal("self-referral must not create a referral")
	}
}
