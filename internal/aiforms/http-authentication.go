// Аутентификация администраторов форм: вход по email и паролю и проверка JWT токена доступа.
//
// Основные возможности:
//   - Вход по email и паролю (pbkdf2) с выдачей токена доступа.
//   - Проверка токена из заголовка Authorization: Bearer.
//   - Загрузка пользователя из токена и проверка, что он активен.
package aiforms

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/apierrors"
	"github.com/aisa-it/aiforms/aiforms.go/internal/aiforms/dao"
	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

const TokenExpiresPeriod = 24 * time.Hour

type Token struct {
	JWT          *jwt.Token
	SignedString string
	Type         string
}

type AuthContext struct {
	echo.Context
	User        *dao.User
	AccessToken *Token
}

type AuthConfig struct {
	Secret  []byte
	DB      *gorm.DB
	Skipper middleware.Skipper
}

type Authentication struct {
	db     *gorm.DB
	secret []byte
}

func AddAuthenticationServices(g *echo.Group, db *gorm.DB, secret []byte) {
	a := &Authentication{db: db, secret: secret}
	g.POST("auth/sign-in/", a.emailLogin)
}

func AuthMiddleware(config AuthConfig) echo.MiddlewareFunc {
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return config.Secret, nil
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusOK)
			}

			if config.Skipper != nil && config.Skipper(c) {
				return next(c)
			}

			schema, tokenString, ok := strings.Cut(c.Request().Header.Get(echo.HeaderAuthorization), " ")
			if !ok || strings.TrimSpace(schema) != "Bearer" {
				return EErrorDefined(c, apierrors.ErrAccessTokenRequired)
			}

			accessToken := &Token{SignedString: strings.TrimSpace(tokenString), Type: "access"}
			var err error
			accessToken.JWT, err = jwt.Parse(accessToken.SignedString, keyFunc)
			if errors.Is(err, jwt.ErrTokenExpired) {
				return EErrorDefined(c, apierrors.ErrTokenExpired)
			} else if err != nil || !accessToken.JWT.Valid {
				return EErrorDefined(c, apierrors.ErrTokenInvalid)
			}

			claims, ok := accessToken.JWT.Claims.(jwt.MapClaims)
			if !ok {
				return EErrorDefined(c, apierrors.ErrTokenInvalid)
			}
			if tokenType, _ := claims["token_type"].(string); tokenType != "access" {
				return EErrorDefined(c, apierrors.ErrTokenInvalid)
			}
			rawUserId, _ := claims["user_id"].(string)
			userId, err := uuid.FromString(rawUserId)
			if err != nil {
				return EErrorDefined(c, apierrors.ErrTokenInvalid)
			}

			// Fetch user
			var user dao.User
			if err := config.DB.Where("id = ?", userId).First(&user).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return EErrorDefined(c, apierrors.ErrUserNotFound)
				}
				return EError(c, err)
			}
			if !user.IsActive {
				return EErrorDefined(c, apierrors.ErrUserInactive)
			}

			return next(AuthContext{c, &user, accessToken})
		}
	}
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
}

// emailLogin godoc
// @id emailLogin
// @Summary Аутентификация: вход по email и паролю
// @Tags Auth
// @Accept json
// @Produce json
// @Param data body LoginRequest true "Email и пароль"
// @Success 200 {object} LoginResponse "Токен доступа"
// @Failure 401 {object} apierrors.DefinedError "Неправильный email или пароль"
// @Failure 403 {object} apierrors.DefinedError "Пользователь деактивирован"
// @Router /api/v3/auth/sign-in/ [post]
func (a *Authentication) emailLogin(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrLoginCredentialsRequired)
	}
	if err := c.Validate(req); err != nil {
		return EErrorDefined(c, apierrors.ErrLoginCredentialsRequired)
	}

	var user dao.User
	if err := a.db.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return EErrorDefined(c, apierrors.ErrFailedLogin)
		}
		return EError(c, err)
	}

	if !dao.CheckPassword(req.Password, user.Password) {
		slog.Warn("Failed login", "email", user.Email)
		return EErrorDefined(c, apierrors.ErrFailedLogin)
	}
	if !user.IsActive {
		return EErrorDefined(c, apierrors.ErrUserInactive)
	}

	token, err := GenJwtToken(a.secret, "access", user.ID.String())
	if err != nil {
		return EError(c, err)
	}

	now := time.Now()
	if err := a.db.Model(&user).UpdateColumn("last_active", now).Error; err != nil {
		slog.Error("Update user last activity", "userId", user.ID.String(), "err", err)
	}

	return c.JSON(http.StatusOK, LoginResponse{AccessToken: token.SignedString})
}

// GenJwtToken подписывает токен пользователя userid ключом secret
func GenJwtToken(secret []byte, tokenType string, userid string) (*Token, error) {
	u, _ := uuid.NewV4()
	claims := jwt.MapClaims{
		"exp":        jwt.NewNumericDate(time.Now().Add(TokenExpiresPeriod)),
		"iat":        jwt.NewNumericDate(time.Now()),
		"jti":        fmt.Sprintf("%x", u),
		"token_type": tokenType,
		"user_id":    userid,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedString, err := token.SignedString(secret)
	if err != nil {
		return nil, err
	}

	return &Token{
		JWT:          token,
		SignedString: signedString,
		Type:         tokenType,
	}, nil
}
