package service

import (
	"context"
	"testing"

	"ecommerce-platform/internal/models"
	"ecommerce-platform/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newUserService() (*UserService, *recordingPublisher) {
	pub := &recordingPublisher{}
	svc := NewUserService(memory.New(), NewEmitter(pub, nil))
	svc.hashCost = bcrypt.MinCost
	return svc, pub
}

func TestRegisterUser(t *testing.T) {
	svc, pub := newUserService()
	ctx := context.Background()

	res, err := svc.Register(ctx, &RegisterRequest{Name: "Ada", Email: "Ada@Example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", res.User.Email)
	assert.Equal(t, models.UserRoleUser, res.User.Role)
	assert.NotEqual(t, "secret1", res.User.PasswordHash)

	ev, ok := pub.last().(models.UserRegistered)
	require.True(t, ok)
	assert.Equal(t, res.User.ID, ev.UserID)
	assert.Equal(t, []string{models.TopicUserEvents}, pub.topics)

	_, err = svc.Register(ctx, &RegisterRequest{Name: "Other", Email: "ada@example.com", Password: "secret2"})
	assert.ErrorIs(t, err, models.ErrEmailTaken)
	assert.Len(t, pub.kinds(), 1)
}

func TestRegisterValidation(t *testing.T) {
	svc, pub := newUserService()
	ctx := context.Background()

	cases := []RegisterRequest{
		{Name: "", Email: "a@b.co", Password: "secret1"},
		{Name: "A", Email: "not-an-email", Password: "secret1"},
		{Name: "A", Email: "a@b.co", Password: "123"},
		{Name: "A", Email: "a@b.co", Password: "secret1", Role: "root"},
	}
	for _, req := range cases {
		req := req
		_, err := svc.Register(ctx, &req)
		var ve *models.ValidationError
		assert.ErrorAs(t, err, &ve, "request %+v", req)
	}
	assert.Empty(t, pub.kinds())
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newUserService()
	ctx := context.Background()

	_, err := svc.Register(ctx, &RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)

	u, err := svc.Authenticate(ctx, "ADA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.Name)

	_, err = svc.Authenticate(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestUpdateProfile(t *testing.T) {
	svc, pub := newUserService()
	ctx := context.Background()

	a, err := svc.Register(ctx, &RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, &RegisterRequest{Name: "Bob", Email: "bob@example.com", Password: "secret1"})
	require.NoError(t, err)
	pub.reset()

	res, err := svc.UpdateProfile(ctx, a.User.ID, &UpdateProfileRequest{Name: ptr("Ada L.")})
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", res.User.Name)

	ev, ok := pub.last().(models.UserProfileUpdated)
	require.True(t, ok)
	assert.Equal(t, "Ada L.", ev.Name)

	_, err = svc.UpdateProfile(ctx, a.User.ID, &UpdateProfileRequest{Email: ptr("bob@example.com")})
	assert.ErrorIs(t, err, models.ErrEmailTaken)

	_, err = svc.UpdateProfile(ctx, "missing", &UpdateProfileRequest{Name: ptr("X")})
	assert.ErrorIs(t, err, models.ErrUserNotFound)
	assert.Len(t, pub.kinds(), 1)
}
