package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/oficina-assistant-go/internal/domain"
	"github.com/boddenberg/oficina-assistant-go/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var authTracer = otel.Tracer("service/auth")

const (
	bcryptCost     = 12
	minPasswordLen = 6
	tokenIssuer    = "oficina-api"
)

// AuthService orchestrates authentication flows.
type AuthService struct {
	users     port.UserStore
	jwtSecret []byte
	accessTTL time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuthService creates a new auth service.
func NewAuthService(users port.UserStore, jwtSecret string, accessTTL time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:     users,
		jwtSecret: []byte(jwtSecret),
		accessTTL: accessTTL,
		logger:    logger,
		now:       time.Now,
	}
}

// JWTClaims are the claims of an access token. Sub is the user id.
type JWTClaims struct {
	Sub     string `json:"sub"`
	Usuario string `json:"usuario"`
	Type    string `json:"type"`
	jwt.RegisteredClaims
}

// ============================================================
// Login: POST /auth/login
// ============================================================

func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Login")
	defer span.End()

	usuario := strings.TrimSpace(req.Usuario)
	if usuario == "" || req.Senha == "" {
		return nil, &domain.ErrValidation{
			Message: "Campos obrigatórios",
			Detail:  "Os campos 'usuario' e 'senha' são obrigatórios",
		}
	}
	span.SetAttributes(attribute.String("usuario", usuario))

	user, err := s.users.GetUserByUsername(ctx, usuario)
	if err != nil {
		return nil, fmt.Errorf("get usuario: %w", err)
	}
	if user == nil {
		s.logger.Warn("login: unknown user", zap.String("usuario", usuario))
		return nil, &domain.ErrUnauthorized{Message: "Credenciais inválidas"}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.SenhaHash), []byte(req.Senha)); err != nil {
		s.logger.Warn("login: wrong password", zap.String("usuario", usuario))
		return nil, &domain.ErrUnauthorized{Message: "Credenciais inválidas"}
	}

	accessToken, err := s.signAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	s.logger.Info("user logged in", zap.Int64("user_id", user.ID))

	return &domain.LoginResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.accessTTL.Seconds()),
		Usuario:     domain.UserInfo{ID: user.ID, Usuario: user.Usuario, Nome: user.Nome},
	}, nil
}

// ============================================================
// Provisioning: oficina usuario criar
// ============================================================

func (s *AuthService) CreateUser(ctx context.Context, req *domain.CreateUserRequest) (*domain.UserInfo, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.CreateUser")
	defer span.End()

	usuario := strings.TrimSpace(req.Usuario)
	if usuario == "" {
		return nil, &domain.ErrValidation{Field: "usuario", Message: "Campo obrigatório: usuario"}
	}
	if len(req.Senha) < minPasswordLen {
		return nil, &domain.ErrValidation{
			Field:   "senha",
			Message: fmt.Sprintf("Senha deve ter ao menos %d caracteres", minPasswordLen),
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Senha), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	nome := strings.TrimSpace(req.Nome)
	if nome == "" {
		nome = usuario
	}
	user := &domain.User{Usuario: usuario, Nome: nome, SenhaHash: string(hash)}
	id, err := s.users.CreateUser(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user created", zap.Int64("user_id", id), zap.String("usuario", usuario))
	return &domain.UserInfo{ID: id, Usuario: usuario, Nome: nome}, nil
}

// ============================================================
// Tokens
// ============================================================

func (s *AuthService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido ou expirado"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido"}
	}
	if claims.Type != "access" {
		return nil, &domain.ErrUnauthorized{Message: "Tipo de token inválido"}
	}
	return claims, nil
}

func (s *AuthService) signAccessToken(u *domain.User) (string, error) {
	now := s.now()
	claims := JWTClaims{
		Sub:     strconv.FormatInt(u.ID, 10),
		Usuario: u.Usuario,
		Type:    "access",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			Issuer:    tokenIssuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
