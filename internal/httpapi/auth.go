package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"collate/internal/auth"
	"collate/internal/db"
	"collate/internal/globaltime"
)

type authPrincipal struct {
	UserID    int64
	UserUUID  string
	Username  string
	TokenHash string
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) requireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, found := s.sessionTokenFromCookie(c)
			if !found {
				return unauthorizedResponse(c)
			}

			tokenHash := auth.HashSessionToken(token)
			user, err := s.pool.GetSessionUser(c.Request().Context(), tokenHash, globaltime.UTC())
			if err != nil {
				if errors.Is(err, db.ErrNoRows) {
					s.clearSessionCookie(c)
					return unauthorizedResponse(c)
				}
				s.logger.Error().Err(err).Msg("session lookup failed")
				return internalError(c, "Failed to authorize request")
			}

			c.Set("auth.principal", authPrincipal{
				UserID:    user.UserID,
				UserUUID:  user.UserUUID,
				Username:  user.Username,
				TokenHash: tokenHash,
			})
			return next(c)
		}
	}
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	username := auth.NormalizeUsername(req.Username)
	password := strings.TrimSpace(req.Password)
	if username == "" || password == "" {
		return failValidation(c, map[string]string{
			"username": "is required",
			"password": "is required",
		})
	}

	user, err := s.pool.GetUserByUsername(c.Request().Context(), username)
	if err != nil {
		if errors.Is(err, db.ErrNoRows) {
			return fail(c, http.StatusUnauthorized, "Invalid username or password", nil)
		}
		s.logger.Error().Err(err).Str("username", username).Msg("login lookup failed")
		return internalError(c, "Failed to process login")
	}

	if !auth.VerifyPassword(password, user.PasswordHash) {
		return fail(c, http.StatusUnauthorized, "Invalid username or password", nil)
	}

	token, tokenHash, err := auth.NewSessionToken()
	if err != nil {
		s.logger.Error().Err(err).Msg("generate session token failed")
		return internalError(c, "Failed to process login")
	}

	expiresAt := globaltime.UTC().Add(s.opts.SessionTTL)
	if err := s.pool.CreateSession(c.Request().Context(), user.UserID, tokenHash, expiresAt); err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.UserID).Msg("create session failed")
		return internalError(c, "Failed to process login")
	}

	s.setSessionCookie(c, token, expiresAt)
	return success(c, map[string]any{
		"user": map[string]any{
			"user_uuid": user.UserUUID,
			"username":  user.Username,
		},
		"session": map[string]any{
			"expires_at": expiresAt,
		},
	})
}

func (s *Server) handleLogout(c echo.Context) error {
	if token, found := s.sessionTokenFromCookie(c); found {
		if err := s.pool.DeleteSession(c.Request().Context(), auth.HashSessionToken(token)); err != nil {
			s.logger.Error().Err(err).Msg("delete session failed")
		}
	}
	s.clearSessionCookie(c)
	return success(c, map[string]any{"logged_out": true})
}

func (s *Server) handleMe(c echo.Context) error {
	principal, ok := principalFromContext(c)
	if !ok {
		return unauthorizedResponse(c)
	}
	return success(c, map[string]any{
		"user": map[string]any{
			"user_uuid": principal.UserUUID,
			"username":  principal.Username,
		},
	})
}

func unauthorizedResponse(c echo.Context) error {
	return fail(c, http.StatusUnauthorized, "Authentication required", nil)
}

func principalFromContext(c echo.Context) (authPrincipal, bool) {
	principal, ok := c.Get("auth.principal").(authPrincipal)
	return principal, ok
}

func (s *Server) sessionTokenFromCookie(c echo.Context) (string, bool) {
	cookie, err := c.Cookie(s.opts.SessionCookie)
	if err != nil || cookie == nil {
		return "", false
	}
	token := strings.TrimSpace(cookie.Value)
	if token == "" {
		return "", false
	}
	return token, true
}

func (s *Server) setSessionCookie(c echo.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}

	c.SetCookie(&http.Cookie{
		Name:     s.opts.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.SessionSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expiresAt.UTC(),
		MaxAge:   maxAge,
	})
}

func (s *Server) clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     s.opts.SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.SessionSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  globaltime.UTC().Add(-1 * time.Hour),
	})
}

// EnsureDefaultAdmin creates the bootstrap user when the user table is empty,
// so a fresh deployment is immediately usable.
func EnsureDefaultAdmin(ctx context.Context, pool *db.Pool, logger zerolog.Logger, username, password string) error {
	username = auth.NormalizeUsername(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		logger.Warn().Msg("default admin credentials not configured, skipping bootstrap")
		return nil
	}

	count, err := pool.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	user, err := pool.CreateUser(ctx, username, hash)
	if err != nil {
		return err
	}
	logger.Info().Str("username", user.Username).Msg("default admin user created")
	return nil
}
