package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/parisxmas/OxiDB/OxiPlan/internal/auth"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/errs"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/models"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/repository"
	"github.com/parisxmas/OxiDB/OxiPlan/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
)

type AuthService struct {
	users     *repository.UserRepo
	jwtSecret string
}

func NewAuthService(s store.Store, jwtSecret string) *AuthService {
	return &AuthService{users: repository.NewUserRepo(s), jwtSecret: jwtSecret}
}

type AuthResult struct {
	Token string              `json:"token"`
	User  models.UserResponse `json:"user"`
}

// RegisterInput is a sign-up request. Role is teacher or coordonator.
type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return nil, errs.Validation("", "email and password are required")
	}
	role := models.ParseRole(in.Role)
	if role != models.RoleTeacher && role != models.RoleCoordinator {
		return nil, errs.Validation("role", "role must be teacher or coordonator, got %q", in.Role)
	}

	existing, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil && existing != nil:
		return nil, ErrEmailTaken
	case err != nil && !errors.Is(err, errs.ErrNotFound):
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         string(role),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(user)
}

func (s *AuthService) Me(ctx context.Context, userID string) (*models.UserResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := user.ToResponse()
	return &resp, nil
}

// UpdateProfile changes the display name of userID. Blank names are
// refused since the review queue shows them.
func (s *AuthService) UpdateProfile(ctx context.Context, userID, firstName, lastName string) (*models.UserResponse, error) {
	firstName, lastName = strings.TrimSpace(firstName), strings.TrimSpace(lastName)
	if firstName == "" && lastName == "" {
		return nil, errs.Validation("", "first or last name is required")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.FirstName = firstName
	user.LastName = lastName
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	resp := user.ToResponse()
	return &resp, nil
}

// Role implements auth.RoleLookup.
func (s *AuthService) Role(ctx context.Context, userID string) (models.Role, error) {
	return s.users.Role(ctx, userID)
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := auth.GenerateToken(s.jwtSecret, user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user.ToResponse()}, nil
}
