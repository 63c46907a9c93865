package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/schoolhub/backend/internal/types"
)

func newUser(email, role string) *types.User {
	return &types.User{
		ID:        uuid.New(),
		Email:     email,
		Password:  "hashed",
		FirstName: "Test",
		LastName:  "User",
		Role:      role,
	}
}

func TestUserRepoEmailExists(t *testing.T) {
	repo := NewUserRepo(testDB(t), testRepoLogger(t))
	ctx := context.Background()

	if _, err := repo.Create(ctx, nil, []*types.User{newUser("ada@example.com", types.RoleStudent)}); err != nil {
		t.Fatalf("create: %v", err)
	}

	exists, err := repo.EmailExists(ctx, nil, "ada@example.com")
	if err != nil {
		t.Fatalf("email exists: %v", err)
	}
	if !exists {
		t.Fatalf("want existing email to be found")
	}

	exists, err = repo.EmailExists(ctx, nil, "nobody@example.com")
	if err != nil {
		t.Fatalf("email exists: %v", err)
	}
	if exists {
		t.Fatalf("unknown email must not be reported as existing")
	}
}

func TestUserRepoUpdateFieldsChangesRoleOnly(t *testing.T) {
	repo := NewUserRepo(testDB(t), testRepoLogger(t))
	ctx := context.Background()

	user := newUser("grace@example.com", types.RoleStudent)
	if _, err := repo.Create(ctx, nil, []*types.User{user}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.UpdateFields(ctx, nil, user.ID, map[string]interface{}{"role": types.RoleTeacher}); err != nil {
		t.Fatalf("update fields: %v", err)
	}

	got, err := repo.GetByIDs(ctx, nil, []uuid.UUID{user.ID})
	if err != nil || len(got) != 1 {
		t.Fatalf("get by ids: err=%v count=%d", err, len(got))
	}
	if got[0].Role != types.RoleTeacher {
		t.Fatalf("role: want=%s got=%s", types.RoleTeacher, got[0].Role)
	}
	if got[0].Email != "grace@example.com" {
		t.Fatalf("email must be untouched: got=%s", got[0].Email)
	}
}

func TestUserTokenRepoRevocationLookups(t *testing.T) {
	db := testDB(t)
	userRepo := NewUserRepo(db, testRepoLogger(t))
	tokenRepo := NewUserTokenRepo(db, testRepoLogger(t))
	ctx := context.Background()

	user := newUser("alan@example.com", types.RoleStudent)
	if _, err := userRepo.Create(ctx, nil, []*types.User{user}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	token := &types.UserToken{
		ID:           uuid.New(),
		UserID:       user.ID,
		AccessToken:  "access-abc",
		RefreshToken: "refresh-xyz",
	}
	if _, err := tokenRepo.Create(ctx, nil, []*types.UserToken{token}); err != nil {
		t.Fatalf("create token: %v", err)
	}

	byAccess, err := tokenRepo.GetByAccessToken(ctx, nil, "access-abc")
	if err != nil || byAccess == nil {
		t.Fatalf("get by access token: err=%v got=%v", err, byAccess)
	}
	byRefresh, err := tokenRepo.GetByRefreshToken(ctx, nil, "refresh-xyz")
	if err != nil || byRefresh == nil {
		t.Fatalf("get by refresh token: err=%v got=%v", err, byRefresh)
	}

	if err := tokenRepo.FullDeleteByUserIDs(ctx, nil, []uuid.UUID{user.ID}); err != nil {
		t.Fatalf("full delete by user: %v", err)
	}
	byAccess, err = tokenRepo.GetByAccessToken(ctx, nil, "access-abc")
	if err != nil {
		t.Fatalf("get by access token: %v", err)
	}
	if byAccess != nil {
		t.Fatalf("revoked token should not resolve")
	}
}
