// auth.go — JWT middleware для API загрузок.
// Проверяет подпись RS256 по JWKS провайдера идентификации и помещает
// claims в контекст запроса. Включается, если задан UC_JWKS_URL.
package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/coursehub-uploads/internal/api/errors"
)

// Параметры клиента JWKS.
const (
	jwksClientTimeout   = 10 * time.Second
	jwksRefreshInterval = 15 * time.Minute
	jwtLeeway           = 30 * time.Second
)

type contextKey string

// ContextKeyClaims — claims аутентифицированного пользователя в контексте.
const ContextKeyClaims contextKey = "jwt_claims"

// AuthClaims — claims, доступные обработчикам.
type AuthClaims struct {
	Subject           string
	PreferredUsername string
	Email             string
}

// tokenClaims — claims JWT для парсинга.
type tokenClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
}

// JWTAuth — middleware JWT-аутентификации через JWKS.
type JWTAuth struct {
	jwks   keyfunc.Keyfunc
	logger *slog.Logger
}

// NewJWTAuth создаёт middleware с JWKS по URL.
// caCertPath — опциональный CA-сертификат для TLS к провайдеру.
func NewJWTAuth(jwksURL, caCertPath string, logger *slog.Logger) (*JWTAuth, error) {
	httpClient := &http.Client{Timeout: jwksClientTimeout}
	if caCertPath != "" {
		var err error
		httpClient, err = httpClientWithCA(caCertPath, jwksClientTimeout)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата %s: %w", caCertPath, err)
		}
		logger.Info("CA-сертификат для JWKS добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	// NoErrorReturnFirstHTTPReq — стартуем, даже если провайдер ещё недоступен
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           jwksRefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}
	return NewJWTAuthWithKeyfunc(k, logger), nil
}

// NewJWTAuthWithKeyfunc создаёт middleware с готовой keyfunc (для тестов).
func NewJWTAuthWithKeyfunc(kf keyfunc.Keyfunc, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		jwks:   kf,
		logger: logger.With(slog.String("component", "jwt_auth")),
	}
}

func httpClientWithCA(caCertPath string, timeout time.Duration) (*http.Client, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, err
	}

	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	pool.AppendCertsFromPEM(caCert)

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs:    pool,
				MinVersion: tls.VersionTLS12,
			},
		},
	}, nil
}

// Middleware проверяет Bearer token и помещает AuthClaims в контекст.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			scheme, tokenString, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			raw := &tokenClaims{}
			token, err := jwt.ParseWithClaims(tokenString, raw, j.jwks.KeyfuncCtx(r.Context()),
				jwt.WithValidMethods([]string{"RS256"}),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(jwtLeeway),
			)
			if err != nil || !token.Valid {
				if err != nil {
					j.logger.Debug("JWT валидация не пройдена",
						slog.String("error", err.Error()),
						slog.String("remote_addr", r.RemoteAddr),
					)
				}
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			if raw.Subject == "" {
				apierrors.Unauthorized(w, "Отсутствует sub в токене")
				return
			}

			claims := &AuthClaims{
				Subject:           raw.Subject,
				PreferredUsername: raw.PreferredUsername,
				Email:             raw.Email,
			}
			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext извлекает AuthClaims из контекста (nil — нет).
func ClaimsFromContext(ctx context.Context) *AuthClaims {
	claims, _ := ctx.Value(ContextKeyClaims).(*AuthClaims)
	return claims
}

// SubjectFromContext возвращает sub или пустую строку.
func SubjectFromContext(ctx context.Context) string {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return claims.Subject
	}
	return ""
}
