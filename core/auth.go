package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"slices"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/marcmoiagese/SpartaClaims/db"
)

const (
	RoleAdmin   = "admin"
	RoleHandler = "handler"
	RoleViewer  = "viewer"

	sessionCookie = "sparta_session"
)

// AllRoles és la llista tancada de rols admesos.
var AllRoles = []string{RoleAdmin, RoleHandler, RoleViewer}

type ctxKey int

const userCtxKey ctxKey = iota

func withUser(ctx context.Context, u *db.User) context.Context {
	return context.WithValue(ctx, userCtxKey, u)
}

// currentUser retorna l'usuari autenticat de la petició, o nil.
func currentUser(r *http.Request) *db.User {
	u, _ := r.Context().Value(userCtxKey).(*db.User)
	return u
}

func hasRole(u *db.User, role string) bool {
	return u != nil && slices.Contains(u.Roles, role)
}

func hasAnyRole(u *db.User, roles ...string) bool {
	for _, r := range roles {
		if hasRole(u, r) {
			return true
		}
	}
	return false
}

func hashPassword(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func newSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func sessionToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// Authenticate valida credencials i obre una sessió nova.
func (a *App) Authenticate(ctx context.Context, username, password string) (*db.User, string, time.Time, error) {
	h := a.DB.Handle()
	u, err := db.GetUserByUsername(ctx, h, strings.TrimSpace(username))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, "", time.Time{}, ErrUnauthorized
		}
		return nil, "", time.Time{}, err
	}
	if !u.IsActive || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, "", time.Time{}, ErrUnauthorized
	}
	token, err := newSessionToken()
	if err != nil {
		return nil, "", time.Time{}, err
	}
	expires := a.now().Add(a.Config.SessionTTL)
	if err := db.SaveSession(ctx, h, token, u.ID, expires); err != nil {
		return nil, "", time.Time{}, err
	}
	return u, token, expires, nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login obre sessió: retorna el testimoni i el posa en una cookie.
func (a *App) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	u, token, expires, err := a.Authenticate(r.Context(), in.Username, in.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   a.Config.Env != "development",
		SameSite: http.SameSiteLaxMode,
	})
	Log().Info().Str("user", u.Username).Msg("sessió iniciada")
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "expiresAt": expires, "user": u})
}

func (a *App) Logout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		if err := db.DeleteSession(r.Context(), a.DB.Handle(), token); err != nil {
			writeError(w, r, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}

// requireAuth resol la sessió i rebutja les peticions anònimes.
func (a *App) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			writeError(w, r, ErrUnauthorized)
			return
		}
		u, err := db.GetSessionUser(r.Context(), a.DB.Handle(), token)
		if err != nil {
			if db.IsNotFound(err) {
				err = ErrUnauthorized
			}
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), u)))
	})
}

// requireRole deixa passar només els usuaris amb algun dels rols.
func requireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !hasAnyRole(currentUser(r), roles...) {
				writeError(w, r, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// canWrite exclou els usuaris només de lectura dels mètodes que modifiquen dades.
func canWrite(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
		default:
			if !hasAnyRole(currentUser(r), RoleAdmin, RoleHandler) {
				writeError(w, r, ErrForbidden)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
