package accounts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	memclock "github.com/Overland-East-Bay/address-book-api/internal/adapters/memory/clock"
	memrevocation "github.com/Overland-East-Bay/address-book-api/internal/adapters/memory/revocation"
	memuserrepo "github.com/Overland-East-Bay/address-book-api/internal/adapters/memory/userrepo"
	"github.com/Overland-East-Bay/address-book-api/internal/app/apperr"
	"github.com/Overland-East-Bay/address-book-api/internal/domain"
	"github.com/Overland-East-Bay/address-book-api/internal/platform/auth/bcrypthasher"
	"github.com/Overland-East-Bay/address-book-api/internal/platform/auth/token"
	"github.com/Overland-East-Bay/address-book-api/internal/ports/out/userrepo"
)

type fixture struct {
	svc    *Service
	users  *memuserrepo.Repo
	tokens *token.Manager
	clk    *memclock.ManualClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	clk := memclock.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	users := memuserrepo.NewRepo()
	hasher, err := bcrypthasher.New(bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := token.New(token.Config{Secret: []byte("test-secret"), TTL: time.Hour}, clk)
	require.NoError(t, err)
	return fixture{
		svc:    NewService(users, hasher, tokens, clk),
		users:  users,
		tokens: tokens,
		clk:    clk,
	}
}

func (f fixture) register(t *testing.T, name, email, pw string) domain.PublicUser {
	t.Helper()
	res, err := f.svc.Register(context.Background(), RegisterInput{Name: name, Email: email, Password: pw})
	require.NoError(t, err)
	return res.User
}

func requireKind(t *testing.T, err error, want apperr.Kind) *apperr.Error {
	t.Helper()
	require.Error(t, err)
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae), "err=%v (%T)", err, err)
	require.Equal(t, want, ae.Kind, "err=%v", err)
	return ae
}

func TestRegister_NormalizesAndLogsIn(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	res, err := f.svc.Register(context.Background(), RegisterInput{Name: "Ann Lee", Email: "Ann@Test.com", Password: "abc12345"})
	require.NoError(t, err)
	assert.Equal(t, "ann@test.com", res.User.Email)
	assert.Equal(t, "Email ann@test.com was registered successfully.", res.Message)

	stored, err := f.users.GetByEmail(context.Background(), "ann@test.com")
	require.NoError(t, err)
	assert.NotEqual(t, "abc12345", stored.PasswordHash)

	login, err := f.svc.Login(context.Background(), LoginInput{Email: "ANN@TEST.COM", Password: "abc12345"})
	require.NoError(t, err)
	assert.Equal(t, res.User, login.User)
	assert.Equal(t, f.clk.Now().Add(time.Hour), login.ExpiresAt)

	claims, err := f.tokens.Parse(login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.SubjectID)
	assert.Equal(t, "ann@test.com", claims.Email)
	assert.Equal(t, "Ann Lee", claims.Name)
}

func TestRegister_TrimsFields(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	u := f.register(t, "  Ann   Lee ", "  ann@test.com ", " abc12345 ")
	assert.Equal(t, "Ann Lee", u.Name)

	_, err := f.svc.Login(context.Background(), LoginInput{Email: "ann@test.com", Password: "abc12345"})
	assert.NoError(t, err)
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	cases := []struct {
		name  string
		in    RegisterInput
		field string
	}{
		{"short name", RegisterInput{Name: "Al", Email: "al@test.com", Password: "abc12345"}, "name"},
		{"bad charset", RegisterInput{Name: "Al_Bundy", Email: "al@test.com", Password: "abc12345"}, "name"},
		{"bad email", RegisterInput{Name: "Al Bundy", Email: "al-at-test", Password: "abc12345"}, "email"},
		{"no digit", RegisterInput{Name: "Al Bundy", Email: "al@test.com", Password: "abcdefgh"}, "password"},
		{"no letter", RegisterInput{Name: "Al Bundy", Email: "al@test.com", Password: "12345678"}, "password"},
		{"short password", RegisterInput{Name: "Al Bundy", Email: "al@test.com", Password: "ab1"}, "password"},
		{"missing all", RegisterInput{}, "email"},
	}
	for _, tc := range cases {
		_, err := f.svc.Register(context.Background(), tc.in)
		ae := requireKind(t, err, apperr.KindValidation)
		assert.Contains(t, ae.Details, tc.field, tc.name)
	}
}

func TestRegister_DuplicateEmailIsConflict(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.register(t, "Ann Lee", "ann@test.com", "abc12345")
	_, err := f.svc.Register(context.Background(), RegisterInput{Name: "Other Ann", Email: "ANN@test.com", Password: "xyz98765"})
	ae := requireKind(t, err, apperr.KindConflict)
	assert.Equal(t, "Email already exists.", ae.Message)
}

func TestRegister_ConcurrentSameEmailCreatesOne(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Register(context.Background(), RegisterInput{Name: "Racer", Email: "race@test.com", Password: "abc12345"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if apperr.KindOf(err) == apperr.KindConflict {
				conflicts++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)
}

func TestLogin_DoesNotRevealWhichPartFailed(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.register(t, "Ann Lee", "ann@test.com", "abc12345")

	_, errUnknown := f.svc.Login(context.Background(), LoginInput{Email: "nobody@test.com", Password: "abc12345"})
	_, errWrong := f.svc.Login(context.Background(), LoginInput{Email: "ann@test.com", Password: "abc99999"})

	a := requireKind(t, errUnknown, apperr.KindInvalidCredentials)
	b := requireKind(t, errWrong, apperr.KindInvalidCredentials)
	assert.Equal(t, a.Code, b.Code)
	assert.Equal(t, a.Message, b.Message)
	assert.Equal(t, a.Details, b.Details)
}

func TestLogin_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.Login(context.Background(), LoginInput{Email: "", Password: ""})
	ae := requireKind(t, err, apperr.KindValidation)
	assert.Contains(t, ae.Details, "email")
	assert.Contains(t, ae.Details, "password")
}

func TestUpdateProfile_FieldsAreIndependent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	u := f.register(t, "Ann Lee", "ann@test.com", "abc12345")

	got, err := f.svc.UpdateProfile(context.Background(), u.ID, ProfilePatch{Name: Some("Ann Marie")})
	require.NoError(t, err)
	assert.Equal(t, "Ann Marie", got.Name)
	assert.Equal(t, "ann@test.com", got.Email)

	got, err = f.svc.UpdateProfile(context.Background(), u.ID, ProfilePatch{Email: Some(" Ann.Marie@Test.com ")})
	require.NoError(t, err)
	assert.Equal(t, "Ann Marie", got.Name)
	assert.Equal(t, "ann.marie@test.com", got.Email)

	// Login follows the new email.
	_, err = f.svc.Login(context.Background(), LoginInput{Email: "ann.marie@test.com", Password: "abc12345"})
	assert.NoError(t, err)
}

func TestUpdateProfile_EmptyPatchIsNoop(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	u := f.register(t, "Ann Lee", "ann@test.com", "abc12345")

	got, err := f.svc.UpdateProfile(context.Background(), u.ID, ProfilePatch{})
	require.NoError(t, err)
	assert.Equal(t, u, got)
}

func TestUpdateProfile_Errors(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ann := f.register(t, "Ann Lee", "ann@test.com", "abc12345")
	f.register(t, "Bob Stone", "bob@test.com", "abc12345")

	_, err := f.svc.UpdateProfile(context.Background(), 0, ProfilePatch{Name: Some("Nobody")})
	requireKind(t, err, apperr.KindUnauthorized)

	_, err = f.svc.UpdateProfile(context.Background(), ann.ID, ProfilePatch{Email: Null[string]()})
	ae := requireKind(t, err, apperr.KindValidation)
	assert.Equal(t, "email cannot be null", ae.Details["email"])

	_, err = f.svc.UpdateProfile(context.Background(), ann.ID, ProfilePatch{Name: Some("A")})
	requireKind(t, err, apperr.KindValidation)

	_, err = f.svc.UpdateProfile(context.Background(), ann.ID, ProfilePatch{Email: Some("not-an-email")})
	requireKind(t, err, apperr.KindValidation)

	_, err = f.svc.UpdateProfile(context.Background(), ann.ID, ProfilePatch{Email: Some("BOB@test.com")})
	requireKind(t, err, apperr.KindConflict)

	f.users.Delete(ann.ID)
	_, err = f.svc.UpdateProfile(context.Background(), ann.ID, ProfilePatch{Name: Some("Ghost")})
	requireKind(t, err, apperr.KindNotFound)
	_, err = f.svc.Me(context.Background(), ann.ID)
	requireKind(t, err, apperr.KindNotFound)
}

type failingUsers struct {
	userrepo.Repository
}

func (failingUsers) GetByEmail(context.Context, string) (domain.User, error) {
	return domain.User{}, errors.New("connection refused")
}

func TestRegister_StorageFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	svc := NewService(failingUsers{Repository: f.users}, f.svc.hasher, f.tokens, f.clk)

	_, err := svc.Register(context.Background(), RegisterInput{Name: "Ann Lee", Email: "ann@test.com", Password: "abc12345"})
	ae := requireKind(t, err, apperr.KindStorage)
	assert.NotContains(t, ae.Message, "connection refused")

	_, err = svc.Login(context.Background(), LoginInput{Email: "ann@test.com", Password: "abc12345"})
	requireKind(t, err, apperr.KindStorage)
}

func TestLogout(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.register(t, "Ann Lee", "ann@test.com", "abc12345")
	login, err := f.svc.Login(context.Background(), LoginInput{Email: "ann@test.com", Password: "abc12345"})
	require.NoError(t, err)
	claims, err := f.tokens.Parse(login.AccessToken)
	require.NoError(t, err)

	// Disabled: no-op.
	require.NoError(t, f.svc.Logout(context.Background(), claims))
	assert.False(t, f.svc.RevocationEnabled())

	store := memrevocation.NewStore(0, time.Hour, f.clk)
	f.svc.WithRevocation(store)
	require.NoError(t, f.svc.Logout(context.Background(), claims))
	revoked, err := store.IsRevoked(context.Background(), claims.TokenID)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestLogout_FullRevocationListFails(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.register(t, "Ann Lee", "ann@test.com", "abc12345")

	store := memrevocation.NewStore(1, time.Hour, f.clk)
	f.svc.WithRevocation(store)

	var claims []token.SessionClaims
	for range 2 {
		login, err := f.svc.Login(context.Background(), LoginInput{Email: "ann@test.com", Password: "abc12345"})
		require.NoError(t, err)
		c, err := f.tokens.Parse(login.AccessToken)
		require.NoError(t, err)
		claims = append(claims, c)
	}

	require.NoError(t, f.svc.Logout(context.Background(), claims[0]))
	err := f.svc.Logout(context.Background(), claims[1])
	requireKind(t, err, apperr.KindStorage)
	assert.ErrorIs(t, err, memrevocation.ErrFull)

	revoked, err := store.IsRevoked(context.Background(), claims[0].TokenID)
	require.NoError(t, err)
	assert.True(t, revoked)
}
