package auth_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-authflow"
)

func newSQLiteStore(t *testing.T) auth.AccountStore {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := auth.OpenDatabase(auth.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)

	repo := auth.NewRepositoryManager(db)
	require.NoError(t, repo.Validate())
	t.Cleanup(func() { _ = repo.Close() })

	require.NoError(t, auth.Migrate(context.Background(), db))

	return repo.Accounts()
}

func newMemoryStore(t *testing.T) auth.AccountStore {
	return auth.NewMemoryAccountStore()
}

func newAccount(username, email string) *auth.Account {
	return &auth.Account{
		Username:     username,
		Email:        email,
		PasswordHash: "$2a$04$digest",
	}
}

func TestAccountStores(t *testing.T) {
	stores := map[string]func(*testing.T) auth.AccountStore{
		"memory": newMemoryStore,
		"sqlite": newSQLiteStore,
	}

	for name, factory := range stores {
		t.Run(name, func(t *testing.T) {
			t.Run("create and find", func(t *testing.T) { testStoreCreateFind(t, factory(t)) })
			t.Run("uniqueness", func(t *testing.T) { testStoreUniqueness(t, factory(t)) })
			t.Run("concurrent create", func(t *testing.T) { testStoreConcurrentCreate(t, factory(t)) })
			t.Run("verification token expiry", func(t *testing.T) { testStoreVerificationToken(t, factory(t)) })
			t.Run("reset token and update", func(t *testing.T) { testStoreResetToken(t, factory(t)) })
			t.Run("update missing", func(t *testing.T) { testStoreUpdateMissing(t, factory(t)) })
			t.Run("update clears codes", func(t *testing.T) { testStoreUpdateClearsCodes(t, factory(t)) })
		})
	}
}

func testStoreCreateFind(t *testing.T, store auth.AccountStore) {
	ctx := context.Background()

	created, err := store.Create(ctx, newAccount(" alice ", "Alice@X.io"))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "alice", created.Username)
	assert.Equal(t, "alice@x.io", created.Email)
	assert.False(t, created.CreatedAt.IsZero())

	byEmail, err := store.FindByEmail(ctx, "ALICE@x.io")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	byName, err := store.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	byID, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "$2a$04$digest", byID.PasswordHash)

	_, err = store.FindByUsername(ctx, "Alice")
	assert.True(t, auth.IsNotFound(err), "usernames are case sensitive")

	_, err = store.FindByEmail(ctx, "nobody@x.io")
	assert.True(t, auth.IsNotFound(err))

	_, err = store.FindByID(ctx, uuid.New())
	assert.True(t, auth.IsNotFound(err))
}

func testStoreUniqueness(t *testing.T, store auth.AccountStore) {
	ctx := context.Background()

	original, err := store.Create(ctx, newAccount("alice", "alice@x.io"))
	require.NoError(t, err)

	_, err = store.Create(ctx, newAccount("alice2", "alice@x.io"))
	require.Error(t, err)
	assert.Equal(t, auth.FieldEmail, auth.ConflictField(err))

	_, err = store.Create(ctx, newAccount("alice", "other@x.io"))
	require.Error(t, err)
	assert.Equal(t, auth.FieldUsername, auth.ConflictField(err))

	// both collide: email wins
	_, err = store.Create(ctx, newAccount("alice", "alice@x.io"))
	require.Error(t, err)
	assert.Equal(t, auth.FieldEmail, auth.ConflictField(err))

	found, err := store.FindByEmail(ctx, "alice@x.io")
	require.NoError(t, err)
	assert.Equal(t, original.ID, found.ID)
	assert.Equal(t, "alice", found.Username)
}

func testStoreConcurrentCreate(t *testing.T, store auth.AccountStore) {
	ctx := context.Background()

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Create(ctx, newAccount(fmt.Sprintf("racer%d", i), "race@x.io"))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if auth.ConflictField(err) == auth.FieldEmail {
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, conflicts)
}

func testStoreVerificationToken(t *testing.T, store auth.AccountStore) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	account := newAccount("bob", "bob@x.io")
	account.SetVerificationToken("123456", now.Add(24*time.Hour))
	_, err := store.Create(ctx, account)
	require.NoError(t, err)

	found, err := store.FindByVerificationToken(ctx, "123456", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "bob", found.Username)

	_, err = store.FindByVerificationToken(ctx, "123456", now.Add(25*time.Hour))
	assert.True(t, auth.IsNotFound(err), "expired codes do not match")

	_, err = store.FindByVerificationToken(ctx, "000000", now)
	assert.True(t, auth.IsNotFound(err))
}

func testStoreResetToken(t *testing.T, store auth.AccountStore) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	created, err := store.Create(ctx, newAccount("carol", "carol@x.io"))
	require.NoError(t, err)

	created.SetResetToken("654321", now.Add(time.Hour))
	created.IsVerified = true
	_, err = store.Update(ctx, created)
	require.NoError(t, err)

	found, err := store.FindByResetToken(ctx, "654321")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.True(t, found.IsVerified)
	require.NotNil(t, found.ResetPasswordTokenExpiresAt)
	assert.True(t, found.ResetPasswordTokenExpiresAt.Equal(now.Add(time.Hour)))

	found.ClearResetToken()
	_, err = store.Update(ctx, found)
	require.NoError(t, err)

	_, err = store.FindByResetToken(ctx, "654321")
	assert.True(t, auth.IsNotFound(err))
}

func testStoreUpdateClearsCodes(t *testing.T, store auth.AccountStore) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	account := newAccount("dave", "dave@x.io")
	account.SetVerificationToken("111111", now.Add(24*time.Hour))
	account.SetResetToken("222222", now.Add(time.Hour))
	created, err := store.Create(ctx, account)
	require.NoError(t, err)

	created.IsVerified = true
	created.ClearVerificationToken()
	created.ClearResetToken()
	updated, err := store.Update(ctx, created)
	require.NoError(t, err)
	assert.Nil(t, updated.VerificationToken)

	reloaded, err := store.FindByEmail(ctx, "dave@x.io")
	require.NoError(t, err)
	assert.True(t, reloaded.IsVerified)
	assert.Nil(t, reloaded.VerificationToken)
	assert.Nil(t, reloaded.VerificationTokenExpiresAt)
	assert.Nil(t, reloaded.ResetPasswordToken)
	assert.Nil(t, reloaded.ResetPasswordTokenExpiresAt)

	_, err = store.FindByVerificationToken(ctx, "111111", now)
	assert.True(t, auth.IsNotFound(err), "cleared verification code no longer matches")

	_, err = store.FindByResetToken(ctx, "222222")
	assert.True(t, auth.IsNotFound(err), "cleared reset code no longer matches")
}

func testStoreUpdateMissing(t *testing.T, store auth.AccountStore) {
	missing := newAccount("ghost", "ghost@x.io")
	missing.ID = uuid.New()

	_, err := store.Update(context.Background(), missing)
	assert.True(t, auth.IsNotFound(err))
}

func TestSQLiteStore_PendingCodesAreUnique(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	expires := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)

	first := newAccount("erin", "erin@x.io")
	first.SetVerificationToken("111111", expires)
	_, err := store.Create(ctx, first)
	require.NoError(t, err)

	second := newAccount("frank", "frank@x.io")
	second.SetVerificationToken("111111", expires)
	_, err = store.Create(ctx, second)
	require.Error(t, err)

	// cleared codes are NULL and never collide
	for _, name := range []string{"gina", "hank"} {
		_, err = store.Create(ctx, newAccount(name, name+"@x.io"))
		require.NoError(t, err)
	}
}
