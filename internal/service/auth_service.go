package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	contracts "propel/contracts/mq"
	"propel/internal/apperr"
	"propel/internal/model"
	"propel/internal/repository"
	"propel/internal/util"
	"propel/pkg/logger"
	"propel/pkg/rbac"
	"propel/pkg/trace"
)

const aggregateUser = "user"

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type AuthService struct {
	tx        repository.Transactor
	users     UserStore
	passwords util.PasswordHasher
	jwtSecret string
	tokenTTL  time.Duration
	logger    *zap.Logger
}

func NewAuthService(tx repository.Transactor, users UserStore, passwords util.PasswordHasher, jwtSecret string, tokenTTL time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		tx:        tx,
		users:     users,
		passwords: passwords,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a donor or creator account and returns a session token.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	role := in.Role
	if role == "" {
		role = rbac.RoleDonor
	}

	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, apperr.Validation("email is invalid")
	}
	if len(in.Password) < 6 {
		return nil, apperr.Validation("password must be at least 6 characters")
	}
	if len(in.Password) > util.MaxPasswordBytes {
		return nil, apperr.Validation("password must be at most 72 bytes")
	}
	if !rbac.IsSelfAssignable(role) {
		return nil, apperr.Validation("role must be donor or creator")
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}

	err = s.tx.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.InsertUser(ctx, u); err != nil {
			return err
		}
		return tx.Enqueue(ctx, aggregateUser, u.ID, contracts.RoutingKeyUserRegistered, contracts.UserRegisteredPayload{
			UserID:     u.ID,
			Email:      u.Email,
			Name:       u.Name,
			Role:       u.Role,
			TraceID:    trace.FromContext(ctx),
			OccurredAt: time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	token, err := util.GenerateJWT(u.ID, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	logger.WithTrace(ctx, s.logger).Info("User registered", zap.Int64("user_id", u.ID), zap.String("role", u.Role))
	return &AuthResult{Token: token, User: u}, nil
}

// Login checks credentials. Unknown email and wrong password fail the same way.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validation("email and password are required")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Authentication("invalid email or password")
		}
		return nil, err
	}
	if !s.passwords.Verify(password, u.PasswordHash) {
		return nil, apperr.Authentication("invalid email or password")
	}

	token, err := util.GenerateJWT(u.ID, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: u}, nil
}

// Authenticate resolves a bearer token to its user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, apperr.Authentication("authentication required")
	}
	userID, err := util.ParseJWT(token, s.jwtSecret)
	if err != nil {
		if errors.Is(err, util.ErrInvalidToken) {
			return nil, apperr.Authentication("invalid or expired token")
		}
		return nil, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Authentication("user no longer exists")
		}
		return nil, err
	}
	return u, nil
}
