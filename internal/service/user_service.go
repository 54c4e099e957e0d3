package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"ecommerce-platform/internal/models"
	"ecommerce-platform/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// UserService manages accounts
type UserService struct {
	store    UserStore
	emitter  *Emitter
	logger   *zap.Logger
	hashCost int
}

func NewUserService(store UserStore, emitter *Emitter) *UserService {
	return &UserService{
		store:    store,
		emitter:  emitter,
		logger:   util.GetLogger(),
		hashCost: bcrypt.DefaultCost,
	}
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type UpdateProfileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// UserResult is a user after a write plus what happened to its event
type UserResult struct {
	User     *models.User
	Delivery Delivery
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return models.NewValidationError("email", "is not a valid address")
	}
	return nil
}

// Register creates an account and emits USER_REGISTERED
func (s *UserService) Register(ctx context.Context, req *RegisterRequest) (*UserResult, error) {
	ctx, span := util.StartSpan(ctx, "UserService.Register")
	defer span.End()

	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" {
		return nil, models.NewValidationError("name", "is required")
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if len(req.Password) < minPasswordLength {
		return nil, models.NewValidationError("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	role := models.UserRole(req.Role)
	if role == "" {
		role = models.UserRoleUser
	}
	if role != models.UserRoleUser && role != models.UserRoleAdmin {
		return nil, models.NewValidationError("role", "must be user or admin")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &models.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	util.LoggerWithTrace(ctx, s.logger).Info("User registered",
		zap.String("user_id", u.ID),
		zap.String("role", string(u.Role)))

	d := s.emitter.Emit(ctx, models.UserRegistered{
		UserID:    u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	})
	return &UserResult{User: u, Delivery: d}, nil
}

// Authenticate checks credentials. Unknown emails and wrong passwords both
// return ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, models.ErrUserNotFound) {
		return nil, models.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, models.ErrInvalidCredentials
	}
	return u, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.store.GetUser(ctx, id)
}

// ListUsers returns every account, newest first
func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.store.ListUsers(ctx)
}

// UpdateProfile changes name and/or email and emits USER_PROFILE_UPDATED
func (s *UserService) UpdateProfile(ctx context.Context, id string, req *UpdateProfileRequest) (*UserResult, error) {
	ctx, span := util.StartSpan(ctx, "UserService.UpdateProfile")
	defer span.End()

	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		u.Name = strings.TrimSpace(*req.Name)
		if u.Name == "" {
			return nil, models.NewValidationError("name", "must not be empty")
		}
	}
	if req.Email != nil {
		u.Email = strings.ToLower(strings.TrimSpace(*req.Email))
		if err := validateEmail(u.Email); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, err
	}

	util.LoggerWithTrace(ctx, s.logger).Info("User profile updated", zap.String("user_id", u.ID))

	d := s.emitter.Emit(ctx, models.UserProfileUpdated{
		UserID:    u.ID,
		Name:      u.Name,
		Email:     u.Email,
		UpdatedAt: u.UpdatedAt,
	})
	return &UserResult{User: u, Delivery: d}, nil
}

// HandleOrderPlaced records purchase activity for the ordering user
func (s *UserService) HandleOrderPlaced(ctx context.Context, ev models.OrderPlaced) error {
	util.LoggerWithTrace(ctx, s.logger).Info("Order placed by user",
		zap.String("user_id", ev.UserID),
		zap.String("order_id", ev.OrderID),
		zap.Float64("total_amount", ev.TotalAmount))
	return nil
}

// HandleProductCreated records catalog additions
func (s *UserService) HandleProductCreated(ctx context.Context, ev models.ProductCreated) error {
	util.LoggerWithTrace(ctx, s.logger).Info("New product in catalog",
		zap.String("product_id", ev.ProductID),
		zap.String("name", ev.Name))
	return nil
}
