package services

import (
	"context"
	"time"

	"courier/config"
	"courier/internal/domain/user"
	"courier/internal/repository"
	courier_errors "courier/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	users     repository.UserRepository
	jwtSecret []byte
	accessTTL time.Duration
}

func NewAuthService(users repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		users:     users,
		jwtSecret: []byte(cfg.JWTSecret),
		accessTTL: time.Duration(cfg.JWTExpiryMin) * time.Minute,
	}
}

type AccessClaims struct {
	UserID string `json:"sub"`
	jwt.RegisteredClaims
}

type AuthResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        user.User `json:"user"`
}

func (s *AuthService) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return AuthResponse{}, courier_errors.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return AuthResponse{}, courier_errors.ErrUnauthorized
	}

	token, err := s.IssueAccessToken(u.ID)
	if err != nil {
		return AuthResponse{}, err
	}

	return AuthResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.accessTTL.Seconds()),
		User:        u,
	}, nil
}

func (s *AuthService) IssueAccessToken(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

func (s *AuthService) ParseAccessToken(token string) (*AccessClaims, error) {
	if token == "" {
		return nil, courier_errors.ErrUnauthorized
	}

	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, courier_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, courier_errors.ErrUnauthorized
	}
	return claims, nil
}
