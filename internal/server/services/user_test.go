package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/config"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	usersrepo "github.com/dmitrijs2005/filevault/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newUserService(t *testing.T, rm repomanager.RepositoryManager) *UserService {
	t.Helper()
	cfg := &config.Config{
		SecretKey:                   "k",
		AccessTokenValidityDuration: time.Hour,
	}
	s := NewUserService(nil, rm, cfg, logging.Nop{})
	s.bcryptCost = bcrypt.MinCost
	return s
}

type fakeUsersRepo struct {
	getErr error
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	return u, nil
}

func (f *fakeUsersRepo) GetUserByLogin(ctx context.Context, userName string) (*models.User, error) {
	return nil, f.getErr
}

type fakeUsersManager struct {
	repomanager.RepositoryManager
	users usersrepo.Repository
}

func (m *fakeUsersManager) Users(dbx.DBTX) usersrepo.Repository { return m.users }

func TestRegisterAndLogin(t *testing.T) {
	svc := newUserService(t, repomanager.NewMemoryRepositoryManager(nil))
	ctx := context.Background()

	u, err := svc.Register(ctx, "  alice ", "pw")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.UserName)
	assert.NotEqual(t, []byte("pw"), u.PasswordHash)

	token, err := svc.Login(ctx, "alice", "pw")
	require.NoError(t, err)

	uid, err := svc.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, uid)
}

func TestRegister_Validation(t *testing.T) {
	svc := newUserService(t, repomanager.NewMemoryRepositoryManager(nil))
	ctx := context.Background()

	_, err := svc.Register(ctx, "", "pw")
	assert.ErrorIs(t, err, common.ErrValidation)
	_, err = svc.Register(ctx, "bob", "")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = svc.Register(ctx, "bob", "pw")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "bob", "other")
	assert.ErrorIs(t, err, common.ErrValidation)

	long := make([]byte, 80)
	for i := range long {
		long[i] = 'x'
	}
	_, err = svc.Register(ctx, "carol", string(long))
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestLogin_Failures(t *testing.T) {
	svc := newUserService(t, repomanager.NewMemoryRepositoryManager(nil))
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "pw")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	_, err = svc.Login(ctx, "ghost", "pw")
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestLogin_StorageErrorPropagates(t *testing.T) {
	storageErr := errors.Join(common.ErrStorage, errBoom)
	rm := &fakeUsersManager{users: &fakeUsersRepo{getErr: storageErr}}
	svc := newUserService(t, rm)

	_, err := svc.Login(context.Background(), "alice", "pw")
	assert.ErrorIs(t, err, common.ErrStorage)
	assert.NotErrorIs(t, err, common.ErrUnauthorized)
}

func TestAuthenticate_Invalid(t *testing.T) {
	svc := newUserService(t, repomanager.NewMemoryRepositoryManager(nil))
	_, err := svc.Authenticate("garbage")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}
