package db

import (
	"context"
	"errors"
	"sort"
	"time"
)

// UserRoles retorna els rols d'un usuari ordenats.
func UserRoles(ctx context.Context, h Handle, userID string) ([]string, error) {
	rows, err := h.Query(ctx, "SELECT role FROM user_roles WHERE user_id = ?", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	roles := []string{}
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles, rows.Err()
}

// SetUserRoles substitueix els rols d'un usuari.
func SetUserRoles(ctx context.Context, h Handle, userID string, roles []string) error {
	if _, err := h.Exec(ctx, "DELETE FROM user_roles WHERE user_id = ?", userID); err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, r := range roles {
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		if _, err := h.Exec(ctx, "INSERT INTO user_roles (user_id, role) VALUES (?, ?)", userID, r); err != nil {
			return err
		}
	}
	return nil
}

// GetUserByUsername busca un usuari pel nom o pel correu.
func GetUserByUsername(ctx context.Context, h Handle, usernameOrEmail string) (*User, error) {
	users, err := Users.Find(ctx, h, Eq("username", usernameOrEmail))
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		users, err = Users.Find(ctx, h, Eq("email", usernameOrEmail))
		if err != nil {
			return nil, err
		}
	}
	if len(users) == 0 {
		return nil, ErrNotFound
	}
	u := users[0]
	if u.Roles, err = UserRoles(ctx, h, u.ID); err != nil {
		return nil, err
	}
	return &u, nil
}

// SaveSession desa un testimoni de sessió.
func SaveSession(ctx context.Context, h Handle, token, userID string, expires time.Time) error {
	_, err := h.Exec(ctx, "INSERT INTO sessions (token, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)",
		token, userID, expires.UTC(), now())
	return err
}

// GetSessionUser retorna l'usuari actiu d'una sessió no caducada.
func GetSessionUser(ctx context.Context, h Handle, token string) (*User, error) {
	var userID string
	var expires time.Time
	err := h.QueryRow(ctx, "SELECT user_id, expires_at FROM sessions WHERE token = ?", token).Scan(&userID, &expires)
	if err != nil {
		return nil, classify(err)
	}
	if !expires.After(now()) {
		_ = DeleteSession(ctx, h, token)
		return nil, ErrNotFound
	}
	u, err := Users.Get(ctx, h, userID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrNotFound
	}
	if u.Roles, err = UserRoles(ctx, h, u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

func DeleteSession(ctx context.Context, h Handle, token string) error {
	_, err := h.Exec(ctx, "DELETE FROM sessions WHERE token = ?", token)
	return err
}

// DeleteExpiredSessions neteja les sessions caducades.
func DeleteExpiredSessions(ctx context.Context, h Handle) (int64, error) {
	res, err := h.Exec(ctx, "DELETE FROM sessions WHERE expires_at < ?", now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// IsNotFound és una drecera per errors.Is(err, ErrNotFound).
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict és una drecera per errors.Is(err, ErrConflict).
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
