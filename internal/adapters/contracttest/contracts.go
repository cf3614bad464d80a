package contracttest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Overland-East-Bay/address-book-api/internal/domain"
	addressrepoport "github.com/Overland-East-Bay/address-book-api/internal/ports/out/addressrepo"
	clockport "github.com/Overland-East-Bay/address-book-api/internal/ports/out/clock"
	idempotencyport "github.com/Overland-East-Bay/address-book-api/internal/ports/out/idempotency"
	revocationport "github.com/Overland-East-Bay/address-book-api/internal/ports/out/revocation"
	userrepoport "github.com/Overland-East-Bay/address-book-api/internal/ports/out/userrepo"
)

type CleanupFunc = func()

type UserRepoFactory func(t *testing.T) (userrepoport.Repository, CleanupFunc)

// AddressRepoFactory returns an address repo together with the user repo that
// owns its owner rows (postgres enforces the foreign key).
type AddressRepoFactory func(t *testing.T) (userrepoport.Repository, addressrepoport.Repository, CleanupFunc)
type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)
type RevocationStoreFactory func(t *testing.T) (revocationport.Store, CleanupFunc)

var errVeto = errors.New("vetoed by callback")

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	fp := idempotencyport.Fingerprint{
		Key:      idempotencyport.Key(uuid.NewString()),
		Subject:  domain.UserID(1),
		Method:   "POST",
		Route:    "/address",
		BodyHash: "body-1",
	}
	if _, ok, err := store.Get(ctx, fp); err != nil || ok {
		t.Fatalf("Get before Put: ok=%v err=%v", ok, err)
	}

	rec := idempotencyport.Record{
		StatusCode:  201,
		ContentType: "application/json",
		Body:        []byte(`{"id":1}`),
		CreatedAt:   time.Unix(123, 0).UTC(),
	}
	if err := store.Put(ctx, fp, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if string(got.Body) != `{"id":1}` || got.ContentType != "application/json" || got.StatusCode != 201 {
		t.Fatalf("unexpected record: %+v", got)
	}

	// A different subject or body never matches.
	other := fp
	other.Subject = 2
	if _, ok, _ := store.Get(ctx, other); ok {
		t.Fatalf("record leaked across subjects")
	}
	other = fp
	other.BodyHash = "body-2"
	if _, ok, _ := store.Get(ctx, other); ok {
		t.Fatalf("record matched a different body")
	}

	// Overwrite semantics.
	rec2 := rec
	rec2.Body = []byte(`{"id":2}`)
	if err := store.Put(ctx, fp, rec2); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, fp)
	if err != nil || !ok || string(got.Body) != `{"id":2}` {
		t.Fatalf("expected overwritten record, got ok=%v err=%v body=%q", ok, err, string(got.Body))
	}
}

func RunRevocationStore(t *testing.T, clk clockport.Clock, newStore RevocationStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	jti := uuid.NewString()
	if ok, err := store.IsRevoked(ctx, jti); err != nil || ok {
		t.Fatalf("IsRevoked before Revoke: ok=%v err=%v", ok, err)
	}
	if err := store.Revoke(ctx, jti, clk.Now().Add(10*time.Minute)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if ok, err := store.IsRevoked(ctx, jti); err != nil || !ok {
		t.Fatalf("IsRevoked after Revoke: ok=%v err=%v", ok, err)
	}
	// Revoking twice is harmless.
	if err := store.Revoke(ctx, jti, clk.Now().Add(10*time.Minute)); err != nil {
		t.Fatalf("Revoke again: %v", err)
	}

	stale := uuid.NewString()
	if err := store.Revoke(ctx, stale, clk.Now().Add(-time.Second)); err != nil {
		t.Fatalf("Revoke stale: %v", err)
	}
	if ok, err := store.IsRevoked(ctx, stale); err != nil || ok {
		t.Fatalf("already-expired token should not be listed: ok=%v err=%v", ok, err)
	}
}

func RunUserRepo(t *testing.T, newRepo UserRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(1000, 0).UTC()
	ann, err := repo.Create(ctx, userrepoport.NewUser{
		Email:        "ann@test.com",
		Name:         "Ann Lee",
		PasswordHash: "hash-ann",
		CreatedAt:    now,
	})
	if err != nil {
		t.Fatalf("Create ann: %v", err)
	}
	if ann.ID <= 0 {
		t.Fatalf("expected a storage-assigned id, got %d", ann.ID)
	}
	if !ann.CreatedAt.Equal(now) || !ann.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected timestamps: %+v", ann)
	}

	got, err := repo.GetByID(ctx, ann.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Email != "ann@test.com" || got.Name != "Ann Lee" || got.PasswordHash != "hash-ann" {
		t.Fatalf("GetByID=%+v", got)
	}
	if got, err := repo.GetByEmail(ctx, "ann@test.com"); err != nil || got.ID != ann.ID {
		t.Fatalf("GetByEmail: got=%+v err=%v", got, err)
	}
	if _, err := repo.GetByEmail(ctx, "nobody@test.com"); !errors.Is(err, userrepoport.ErrNotFound) {
		t.Fatalf("GetByEmail missing: err=%v want ErrNotFound", err)
	}
	if _, err := repo.GetByID(ctx, ann.ID+1000); !errors.Is(err, userrepoport.ErrNotFound) {
		t.Fatalf("GetByID missing: err=%v want ErrNotFound", err)
	}

	// Email uniqueness.
	if _, err := repo.Create(ctx, userrepoport.NewUser{
		Email:        "ann@test.com",
		Name:         "Ann Again",
		PasswordHash: "hash-2",
		CreatedAt:    now,
	}); !errors.Is(err, userrepoport.ErrEmailTaken) {
		t.Fatalf("duplicate Create: err=%v want ErrEmailTaken", err)
	}

	bob, err := repo.Create(ctx, userrepoport.NewUser{
		Email:        "bob@test.com",
		Name:         "Bob Stone",
		PasswordHash: "hash-bob",
		CreatedAt:    now,
	})
	if err != nil {
		t.Fatalf("Create bob: %v", err)
	}
	if bob.ID == ann.ID {
		t.Fatalf("ids must differ")
	}

	// Name-only update leaves the email alone.
	later := now.Add(time.Minute)
	newName := "Ann Marie Lee"
	updated, err := repo.UpdateProfile(ctx, ann.ID, userrepoport.ProfileChange{Name: &newName}, later)
	if err != nil {
		t.Fatalf("UpdateProfile name: %v", err)
	}
	if updated.Name != newName || updated.Email != "ann@test.com" || !updated.UpdatedAt.Equal(later) {
		t.Fatalf("UpdateProfile name result=%+v", updated)
	}

	// Email-only update leaves the name alone and moves the email index.
	newEmail := "ann.lee@test.com"
	updated, err = repo.UpdateProfile(ctx, ann.ID, userrepoport.ProfileChange{Email: &newEmail}, later)
	if err != nil {
		t.Fatalf("UpdateProfile email: %v", err)
	}
	if updated.Name != newName || updated.Email != newEmail {
		t.Fatalf("UpdateProfile email result=%+v", updated)
	}
	if _, err := repo.GetByEmail(ctx, "ann@test.com"); !errors.Is(err, userrepoport.ErrNotFound) {
		t.Fatalf("old email should be free: err=%v", err)
	}

	// Taking someone else's email.
	taken := "bob@test.com"
	if _, err := repo.UpdateProfile(ctx, ann.ID, userrepoport.ProfileChange{Email: &taken}, later); !errors.Is(err, userrepoport.ErrEmailTaken) {
		t.Fatalf("UpdateProfile to taken email: err=%v want ErrEmailTaken", err)
	}
	if got, _ := repo.GetByID(ctx, ann.ID); got.Email != newEmail {
		t.Fatalf("failed update must not change the row: %+v", got)
	}

	// Unchanged email is not a conflict with itself.
	if _, err := repo.UpdateProfile(ctx, ann.ID, userrepoport.ProfileChange{Email: &newEmail}, later); err != nil {
		t.Fatalf("UpdateProfile same email: %v", err)
	}

	if _, err := repo.UpdateProfile(ctx, ann.ID+1000, userrepoport.ProfileChange{Name: &newName}, later); !errors.Is(err, userrepoport.ErrNotFound) {
		t.Fatalf("UpdateProfile missing: err=%v want ErrNotFound", err)
	}
}

func RunAddressRepo(t *testing.T, newRepos AddressRepoFactory) {
	t.Helper()
	ctx := context.Background()

	users, addrs, cleanup := newRepos(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	base := time.Unix(2000, 0).UTC()
	ann, err := users.Create(ctx, userrepoport.NewUser{Email: "ann@addr.test", Name: "Ann Lee", PasswordHash: "h", CreatedAt: base})
	if err != nil {
		t.Fatalf("seed ann: %v", err)
	}
	bob, err := users.Create(ctx, userrepoport.NewUser{Email: "bob@addr.test", Name: "Bob Stone", PasswordHash: "h", CreatedAt: base})
	if err != nil {
		t.Fatalf("seed bob: %v", err)
	}

	home, err := addrs.Create(ctx, addressrepoport.NewAddress{
		OwnerID: ann.ID,
		Fields: addressrepoport.Fields{
			Title:       "Home",
			Country:     "Netherlands",
			FullAddress: "Keizersgracht 1, Amsterdam",
			PostalCode:  "1015 CJ",
		},
		CreatedAt: base,
	})
	if err != nil {
		t.Fatalf("Create home: %v", err)
	}
	if home.ID <= 0 || home.OwnerID != ann.ID {
		t.Fatalf("unexpected created row: %+v", home)
	}
	office, err := addrs.Create(ctx, addressrepoport.NewAddress{
		OwnerID: bob.ID,
		Fields: addressrepoport.Fields{
			Title:       "Office",
			Country:     "Germany",
			FullAddress: "Unter den Linden 5, Berlin",
			PostalCode:  "10117",
		},
		CreatedAt: base.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("Create office: %v", err)
	}

	v, err := addrs.Get(ctx, home.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v.Title != "Home" || v.OwnerID != ann.ID || v.OwnerName != "Ann Lee" {
		t.Fatalf("Get view=%+v", v)
	}
	if _, err := addrs.Get(ctx, office.ID+1000); !errors.Is(err, addressrepoport.ErrNotFound) {
		t.Fatalf("Get missing: err=%v want ErrNotFound", err)
	}

	// Newest first.
	all, err := addrs.List(ctx, addressrepoport.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 || all[0].ID != office.ID || all[1].ID != home.ID {
		t.Fatalf("List order=%+v", all)
	}
	if all[0].OwnerName != "Bob Stone" {
		t.Fatalf("List owner name=%q", all[0].OwnerName)
	}

	// Search is a case-insensitive substring across the text columns.
	for q, want := range map[string]domain.AddressID{
		"amsterdam": home.ID,
		"GERMANY":   office.ID,
		"10117":     office.ID,
		"offi":      office.ID,
	} {
		res, err := addrs.List(ctx, addressrepoport.Filter{Search: q})
		if err != nil {
			t.Fatalf("List(%q): %v", q, err)
		}
		if len(res) != 1 || res[0].ID != want {
			t.Fatalf("List(%q)=%+v want id %d", q, res, want)
		}
	}
	if res, err := addrs.List(ctx, addressrepoport.Filter{Search: "%"}); err != nil || len(res) != 0 {
		t.Fatalf("List(%%) should match literally: res=%+v err=%v", res, err)
	}

	// Update: callback sees the current row; its error aborts the write.
	later := base.Add(time.Hour)
	_, err = addrs.Update(ctx, home.ID, later, func(cur domain.Address) (addressrepoport.Fields, error) {
		if cur.OwnerID != ann.ID {
			t.Errorf("callback saw owner %d", cur.OwnerID)
		}
		return addressrepoport.Fields{}, errVeto
	})
	if !errors.Is(err, errVeto) {
		t.Fatalf("Update veto: err=%v", err)
	}
	if v, _ := addrs.Get(ctx, home.ID); v.Title != "Home" {
		t.Fatalf("vetoed update changed row: %+v", v)
	}

	updated, err := addrs.Update(ctx, home.ID, later, func(cur domain.Address) (addressrepoport.Fields, error) {
		return addressrepoport.Fields{
			Title:       "Home (new)",
			Country:     cur.Country,
			FullAddress: cur.FullAddress,
			PostalCode:  "1015 CK",
		}, nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != "Home (new)" || updated.PostalCode != "1015 CK" || updated.OwnerID != ann.ID || !updated.UpdatedAt.Equal(later) {
		t.Fatalf("Update result=%+v", updated)
	}
	if !updated.CreatedAt.Equal(base) {
		t.Fatalf("Update must keep CreatedAt, got %v", updated.CreatedAt)
	}

	called := false
	_, err = addrs.Update(ctx, office.ID+1000, later, func(domain.Address) (addressrepoport.Fields, error) {
		called = true
		return addressrepoport.Fields{}, nil
	})
	if !errors.Is(err, addressrepoport.ErrNotFound) || called {
		t.Fatalf("Update missing: err=%v called=%v", err, called)
	}

	// Delete: vetoed, then allowed.
	if err := addrs.Delete(ctx, office.ID, func(domain.Address) error { return errVeto }); !errors.Is(err, errVeto) {
		t.Fatalf("Delete veto: err=%v", err)
	}
	if _, err := addrs.Get(ctx, office.ID); err != nil {
		t.Fatalf("vetoed delete removed row: %v", err)
	}
	if err := addrs.Delete(ctx, office.ID, func(cur domain.Address) error {
		if cur.OwnerID != bob.ID {
			return errVeto
		}
		return nil
	}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := addrs.Get(ctx, office.ID); !errors.Is(err, addressrepoport.ErrNotFound) {
		t.Fatalf("Get after delete: err=%v", err)
	}
	if err := addrs.Delete(ctx, office.ID, func(domain.Address) error { return nil }); !errors.Is(err, addressrepoport.ErrNotFound) {
		t.Fatalf("Delete twice: err=%v", err)
	}
}
