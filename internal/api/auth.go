package api

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Freeeeeet/coach_scheduler/internal/apperrors"
)

const (
	contextClaimsKey = "currentUser"
	tokenIssuer      = "coach_scheduler"
)

// Claims полезная нагрузка access token. Subject содержит id пользователя
type Claims struct {
	IsCoach bool `json:"is_coach"`
	jwt.RegisteredClaims
}

// UserID id пользователя из Subject
func (c *Claims) UserID() int64 {
	id, _ := strconv.ParseInt(c.Subject, 10, 64)
	return id
}

// Auth выпускает и проверяет HS256 токены
type Auth struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuth(secret string, ttl time.Duration) *Auth {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Auth{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// IssueToken выпускает токен для пользователя
func (a *Auth) IssueToken(userID int64, isCoach bool) (string, time.Time, error) {
	issuedAt := a.now()
	expiresAt := issuedAt.Add(a.ttl)
	claims := &Claims{
		IsCoach: isCoach,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateToken разбирает токен и проверяет подпись и срок
func (a *Auth) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return nil, apperrors.Unauthorized("invalid or expired token")
	}
	if claims.UserID() <= 0 {
		return nil, apperrors.Unauthorized("token has no user")
	}
	return claims, nil
}

// JWT пропускает только запросы с действительным Bearer токеном
func JWT(auth *Auth) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			Error(c, apperrors.ErrUnauthorized)
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			Error(c, apperrors.Unauthorized("invalid authorization header"))
			return
		}

		claims, err := auth.ValidateToken(parts[1])
		if err != nil {
			Error(c, err)
			return
		}

		c.Set(contextClaimsKey, claims)
		c.Next()
	}
}

// RequireCoach пропускает только коучей
func RequireCoach() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := claimsFromContext(c)
		if claims == nil || !claims.IsCoach {
			Error(c, apperrors.Forbidden("coach access required"))
			return
		}
		c.Next()
	}
}

func claimsFromContext(c *gin.Context) *Claims {
	value, exists := c.Get(contextClaimsKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// actorID id пользователя из токена; 0 если маршрут без JWT
func actorID(c *gin.Context) int64 {
	if claims := claimsFromContext(c); claims != nil {
		return claims.UserID()
	}
	return 0
}
