package sqldb

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/fineahban/marketplace/internal/apperror"
	"github.com/fineahban/marketplace/internal/model"
)

// =========================================================================
// RESOLVE TESTS
// =========================================================================

func TestResolveSocial_NewUser(t *testing.T) {
	db := newTestDB(t)

	u, err := db.Users().ResolveSocial(context.Background(), &model.SocialProfile{
		Email:     "a@x.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Avatar:    "https://example.com/ada.png",
		SocialID:  "G1",
		Provider:  model.ProviderGoogle,
		City:      strPtr("London"),
	})
	if err != nil {
		t.Fatalf("ResolveSocial() error = %v", err)
	}

	if u.ID == 0 {
		t.Error("ResolveSocial() did not set ID")
	}
	if u.GoogleUID == nil || *u.GoogleUID != "G1" {
		t.Errorf("GoogleUID = %v, want G1", u.GoogleUID)
	}
	if u.FacebookUID != nil {
		t.Errorf("FacebookUID = %v, want nil", *u.FacebookUID)
	}
	if u.City == nil || *u.City != "London" {
		t.Errorf("City = %v, want London", u.City)
	}
	if u.Country != nil {
		t.Errorf("Country = %v, want nil", *u.Country)
	}
	if u.TotalPosts != 0 || u.IsAdmin || u.IsBanned {
		t.Errorf("new user should start with zero counters and no flags, got %+v", u)
	}
	if u.CreatedAt.IsZero() || u.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestResolveSocial_RepeatLoginUpdatesSameRow(t *testing.T) {
	db := newTestDB(t)
	first := createTestUser(t, db, "a@x.com", "F1")

	second, err := db.Users().ResolveSocial(context.Background(), &model.SocialProfile{
		Email:     "a@x.com",
		FirstName: "Renamed",
		LastName:  "Person",
		Avatar:    "https://example.com/new.png",
		SocialID:  "F1",
		Provider:  model.ProviderFacebook,
	})
	if err != nil {
		t.Fatalf("ResolveSocial() error = %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("ID = %d, want %d (same row)", second.ID, first.ID)
	}
	if second.FirstName != "Renamed" || second.Avatar != "https://example.com/new.png" {
		t.Errorf("profile not updated: %+v", second)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed from %v to %v", first.CreatedAt, second.CreatedAt)
	}
}

// Facebook then Google with the same email ends up as ONE row holding both ids.
func TestResolveSocial_LinksSecondProviderByEmail(t *testing.T) {
	db := newTestDB(t)
	fb := createTestUser(t, db, "a@x.com", "F1")

	g, err := db.Users().ResolveSocial(context.Background(), &model.SocialProfile{
		Email:    "a@x.com",
		SocialID: "G1",
		Provider: model.ProviderGoogle,
	})
	if err != nil {
		t.Fatalf("ResolveSocial() error = %v", err)
	}

	if g.ID != fb.ID {
		t.Fatalf("second provider created a new row: %d != %d", g.ID, fb.ID)
	}
	if g.SocialID(model.ProviderFacebook) != "F1" || g.SocialID(model.ProviderGoogle) != "G1" {
		t.Errorf("slots = (%q, %q), want (F1, G1)",
			g.SocialID(model.ProviderFacebook), g.SocialID(model.ProviderGoogle))
	}

	var count int
	if err := db.x.GetContext(context.Background(), &count, `SELECT COUNT(*) FROM users`); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("users count = %d, want 1", count)
	}
}

func TestResolveSocial_EmailChangedAtProvider(t *testing.T) {
	db := newTestDB(t)
	orig := createTestUser(t, db, "old@x.com", "F1")

	u, err := db.Users().ResolveSocial(context.Background(), &model.SocialProfile{
		Email:    "new@x.com",
		SocialID: "F1",
		Provider: model.ProviderFacebook,
	})
	if err != nil {
		t.Fatalf("ResolveSocial() error = %v", err)
	}
	if u.ID != orig.ID {
		t.Errorf("ID = %d, want %d", u.ID, orig.ID)
	}
	if u.Email != "new@x.com" {
		t.Errorf("Email = %q, want new@x.com", u.Email)
	}
}

func TestResolveSocial_DifferentIDForSameSlotConflicts(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "a@x.com", "F1")

	_, err := db.Users().ResolveSocial(context.Background(), &model.SocialProfile{
		Email:    "a@x.com",
		SocialID: "F2",
		Provider: model.ProviderFacebook,
	})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}
}

func TestResolveSocial_ExternalIDOwnedByAnotherEmailConflicts(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "a@x.com", "F1")
	createTestUser(t, db, "b@x.com", "F2")

	// b@x.com's row would take F1, which already belongs to a@x.com.
	_, err := db.Users().ResolveSocial(context.Background(), &model.SocialProfile{
		Email:    "b@x.com",
		SocialID: "F1",
		Provider: model.ProviderFacebook,
	})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}
}

func TestResolveSocial_AbsentAddressKeepsStoredValue(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.Users().ResolveSocial(ctx, &model.SocialProfile{
		Email: "a@x.com", SocialID: "F1", Provider: model.ProviderFacebook,
		City: strPtr("Dhaka"), Zip: strPtr("1207"),
	})
	if err != nil {
		t.Fatal(err)
	}

	u, err := db.Users().ResolveSocial(ctx, &model.SocialProfile{
		Email: "a@x.com", SocialID: "F1", Provider: model.ProviderFacebook,
		City: strPtr("Sylhet"),
	})
	if err != nil {
		t.Fatal(err)
	}

	if u.City == nil || *u.City != "Sylhet" {
		t.Errorf("City = %v, want Sylhet", u.City)
	}
	if u.Zip == nil || *u.Zip != "1207" {
		t.Errorf("Zip = %v, want stored 1207", u.Zip)
	}
}

func TestResolveSocial_InvalidProvider(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Users().ResolveSocial(context.Background(), &model.SocialProfile{
		Email: "a@x.com", SocialID: "X", Provider: "twitter",
	})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

// =========================================================================
// LOOKUP TESTS
// =========================================================================

func TestGetBySocialID(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "a@x.com", "F1")

	got, err := db.Users().GetBySocialID(context.Background(), model.ProviderFacebook, "F1")
	if err != nil {
		t.Fatalf("GetBySocialID() error = %v", err)
	}
	if got.ID != created.ID || got.Email != "a@x.com" {
		t.Errorf("got %+v, want user %d", got, created.ID)
	}
}

func TestGetBySocialID_WrongProviderSlot(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "a@x.com", "F1")

	_, err := db.Users().GetBySocialID(context.Background(), model.ProviderGoogle, "F1")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestGetByID(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "a@x.com", "F1")

	got, err := db.Users().GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Email != created.Email {
		t.Errorf("Email = %q, want %q", got.Email, created.Email)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Users().GetByID(context.Background(), 999)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Message != "user not found with id "+strconv.Itoa(999) {
		t.Errorf("message = %q", appErr.Message)
	}
}
