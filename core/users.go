package core

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/marcmoiagese/SpartaClaims/db"
)

// UserInput és el cos d'alta i modificació d'usuaris. Password buit no canvia la contrasenya.
type UserInput struct {
	Username         string   `json:"username"`
	Email            string   `json:"email"`
	DisplayName      string   `json:"displayName"`
	Password         string   `json:"password"`
	DefaultHandlerID *string  `json:"defaultHandlerId"`
	IsActive         *bool    `json:"isActive"`
	Roles            []string `json:"roles"`
}

func validateRoles(roles []string) error {
	for _, r := range roles {
		if !slices.Contains(AllRoles, r) {
			return &fieldError{Fields: map[string]string{"roles": "unknown role " + r}}
		}
	}
	return nil
}

// CreateUser dona d'alta un usuari amb els seus rols. També el fa servir la CLI.
func (a *App) CreateUser(ctx context.Context, in UserInput) (*db.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	fields := map[string]string{}
	if in.Username == "" {
		fields["username"] = "required"
	}
	if !strings.Contains(in.Email, "@") {
		fields["email"] = "invalid email address"
	}
	if len(in.Password) < 8 {
		fields["password"] = "must have at least 8 characters"
	}
	if len(fields) > 0 {
		return nil, &fieldError{Fields: fields}
	}
	if err := validateRoles(in.Roles); err != nil {
		return nil, err
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	now := a.now()
	u := db.User{
		ID:               uuid.NewString(),
		Username:         in.Username,
		Email:            in.Email,
		DisplayName:      strings.TrimSpace(in.DisplayName),
		PasswordHash:     hash,
		DefaultHandlerID: in.DefaultHandlerID,
		IsActive:         in.IsActive == nil || *in.IsActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err = a.DB.InTx(ctx, func(h db.Handle) error {
		if err := checkDefaultHandler(ctx, h, u.DefaultHandlerID); err != nil {
			return err
		}
		if err := db.Users.Insert(ctx, h, &u); err != nil {
			return fromDB(err, "user")
		}
		return db.SetUserRoles(ctx, h, u.ID, in.Roles)
	})
	if err != nil {
		return nil, err
	}
	u.Roles, err = db.UserRoles(ctx, a.DB.Handle(), u.ID)
	if err != nil {
		return nil, err
	}
	Log().Info().Str("user", u.Username).Strs("roles", u.Roles).Msg("usuari creat")
	return &u, nil
}

func checkDefaultHandler(ctx context.Context, h db.Handle, id *string) error {
	if id == nil || *id == "" {
		return nil
	}
	if _, err := db.CaseHandlers.Get(ctx, h, *id); err != nil {
		if db.IsNotFound(err) {
			return validationf("unknown defaultHandlerId %s", *id)
		}
		return err
	}
	return nil
}

func (a *App) ListUsers(w http.ResponseWriter, r *http.Request) {
	lq, err := listQuery(r, map[string]string{"username": "username", "email": "email", "createdAt": "created_at"})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if v := strings.TrimSpace(r.URL.Query().Get("q")); v != "" {
		lq.Where = append(lq.Where, db.Cond{Column: "username", Op: "LIKE", Value: "%" + v + "%"})
	}
	ctx := r.Context()
	h := a.DB.Handle()
	users, total, err := db.Users.List(ctx, h, lq)
	if err != nil {
		writeError(w, r, err)
		return
	}
	for i := range users {
		if users[i].Roles, err = db.UserRoles(ctx, h, users[i].ID); err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeList(w, users, total)
}

func (a *App) loadUser(ctx context.Context, h db.Handle, id string) (*db.User, error) {
	u, err := db.Users.Get(ctx, h, id)
	if err != nil {
		return nil, fromDB(err, "user")
	}
	if u.Roles, err = db.UserRoles(ctx, h, id); err != nil {
		return nil, err
	}
	return u, nil
}

func (a *App) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := routeID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	u, err := a.loadUser(r.Context(), a.DB.Handle(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *App) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var in UserInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := a.CreateUser(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (a *App) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := routeID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in UserInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if in.Roles != nil {
		if err := validateRoles(in.Roles); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if in.Password != "" && len(in.Password) < 8 {
		writeError(w, r, &fieldError{Fields: map[string]string{"password": "must have at least 8 characters"}})
		return
	}
	ctx := r.Context()
	err = a.DB.InTx(ctx, func(h db.Handle) error {
		u, err := db.Users.Get(ctx, h, id)
		if err != nil {
			return fromDB(err, "user")
		}
		if v := strings.TrimSpace(in.Username); v != "" {
			u.Username = v
		}
		if v := strings.TrimSpace(in.Email); v != "" {
			if !strings.Contains(v, "@") {
				return &fieldError{Fields: map[string]string{"email": "invalid email address"}}
			}
			u.Email = v
		}
		if in.DisplayName != "" {
			u.DisplayName = strings.TrimSpace(in.DisplayName)
		}
		if in.DefaultHandlerID != nil {
			if err := checkDefaultHandler(ctx, h, in.DefaultHandlerID); err != nil {
				return err
			}
			u.DefaultHandlerID = in.DefaultHandlerID
			if *in.DefaultHandlerID == "" {
				u.DefaultHandlerID = nil
			}
		}
		if in.IsActive != nil {
			u.IsActive = *in.IsActive
		}
		if in.Password != "" {
			if u.PasswordHash, err = hashPassword(in.Password); err != nil {
				return err
			}
		}
		u.UpdatedAt = a.now()
		if err := db.Users.Update(ctx, h, u); err != nil {
			return fromDB(err, "user")
		}
		if in.Roles != nil {
			return db.SetUserRoles(ctx, h, id, in.Roles)
		}
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	u, err := a.loadUser(ctx, a.DB.Handle(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// DeleteUser esborra l'usuari, les seves sessions, rols i absències.
func (a *App) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := routeID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if me := currentUser(r); me != nil && me.ID == id {
		writeError(w, r, conflictf("cannot delete the current user"))
		return
	}
	ctx := r.Context()
	err = a.DB.InTx(ctx, func(h db.Handle) error {
		if _, err := db.Users.Get(ctx, h, id); err != nil {
			return fromDB(err, "user")
		}
		if _, err := h.Exec(ctx, "UPDATE case_handlers SET user_id = NULL WHERE user_id = ?", id); err != nil {
			return err
		}
		for _, q := range []string{"DELETE FROM sessions WHERE user_id = ?", "DELETE FROM user_roles WHERE user_id = ?",
			"DELETE FROM leave_requests WHERE user_id = ?"} {
			if _, err := h.Exec(ctx, q, id); err != nil {
				return err
			}
		}
		return db.Users.Delete(ctx, h, id)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) ListRoles(w http.ResponseWriter, r *http.Request) {
	writeList(w, AllRoles, len(AllRoles))
}

const (
	LeavePending  = "pending"
	LeaveApproved = "approved"
	LeaveRejected = "rejected"
)

func validateLeave(l *db.LeaveRequest) error {
	fields := map[string]string{}
	if l.StartDate.IsZero() {
		fields["startDate"] = "required"
	}
	if l.EndDate.IsZero() {
		fields["endDate"] = "required"
	}
	if !l.StartDate.IsZero() && !l.EndDate.IsZero() && l.EndDate.Before(l.StartDate) {
		fields["endDate"] = "must not be before startDate"
	}
	if len(fields) > 0 {
		return &fieldError{Fields: fields}
	}
	l.StartDate, l.EndDate = l.StartDate.UTC(), l.EndDate.UTC()
	if strings.TrimSpace(l.Kind) == "" {
		l.Kind = "vacation"
	}
	return nil
}

var leaveRequestResource = &resource[db.LeaveRequest]{
	what: "leave request", table: db.LeaveRequests,
	idOf:     func(l *db.LeaveRequest) *string { return &l.ID },
	stamp:    func(l *db.LeaveRequest, c, u time.Time) { l.CreatedAt, l.UpdatedAt = c, u },
	sortable: map[string]string{"startDate": "start_date", "endDate": "end_date", "createdAt": "created_at"},
	filters:  map[string]string{"userId": "user_id", "status": "status", "kind": "kind"},
	validate: func(ctx context.Context, h db.Handle, l *db.LeaveRequest) error {
		if err := validateLeave(l); err != nil {
			return err
		}
		if _, err := db.Users.Get(ctx, h, l.UserID); err != nil {
			if db.IsNotFound(err) {
				return validationf("unknown userId %s", l.UserID)
			}
			return err
		}
		switch l.Status {
		case LeavePending, LeaveApproved, LeaveRejected:
		default:
			l.Status = LeavePending
		}
		return nil
	},
}

// CreateLeaveRequest crea una sol·licitud pendent. Per defecte és de l'usuari actual.
func (a *App) CreateLeaveRequest(w http.ResponseWriter, r *http.Request) {
	var l db.LeaveRequest
	if err := decodeJSON(w, r, &l); err != nil {
		writeError(w, r, err)
		return
	}
	me := currentUser(r)
	if l.UserID == "" && me != nil {
		l.UserID = me.ID
	}
	if me != nil && l.UserID != me.ID && !hasRole(me, RoleAdmin) {
		writeError(w, r, ErrForbidden)
		return
	}
	ctx := r.Context()
	h := a.DB.Handle()
	if err := leaveRequestResource.validate(ctx, h, &l); err != nil {
		writeError(w, r, err)
		return
	}
	l.ID = uuid.NewString()
	l.Status = LeavePending
	now := a.now()
	l.CreatedAt, l.UpdatedAt = now, now
	if err := db.LeaveRequests.Insert(ctx, h, &l); err != nil {
		writeError(w, r, fromDB(err, "leave request"))
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

// decideLeave aprova o rebutja una sol·licitud pendent.
func (a *App) decideLeave(status string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := routeID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := r.Context()
		h := a.DB.Handle()
		l, err := db.LeaveRequests.Get(ctx, h, id)
		if err != nil {
			writeError(w, r, fromDB(err, "leave request"))
			return
		}
		if l.Status != LeavePending {
			writeError(w, r, conflictf("leave request is already %s", l.Status))
			return
		}
		l.Status = status
		l.UpdatedAt = a.now()
		if err := db.LeaveRequests.Update(ctx, h, l); err != nil {
			writeError(w, r, fromDB(err, "leave request"))
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

// ListVacations retorna les absències aprovades que se solapen amb la finestra from/to.
func (a *App) ListVacations(w http.ResponseWriter, r *http.Request) {
	lq, err := listQuery(r, map[string]string{"startDate": "start_date"})
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	lq.Where = append(lq.Where, db.Eq("status", LeaveApproved))
	if v := q.Get("from"); v != "" {
		t, err := parseDateParam("from", v)
		if err != nil {
			writeError(w, r, err)
			return
		}
		lq.Where = append(lq.Where, db.Cond{Column: "end_date", Op: ">=", Value: t})
	}
	if v := q.Get("to"); v != "" {
		t, err := parseDateParam("to", v)
		if err != nil {
			writeError(w, r, err)
			return
		}
		lq.Where = append(lq.Where, db.Cond{Column: "start_date", Op: "<", Value: t.AddDate(0, 0, 1)})
	}
	if v := strings.TrimSpace(q.Get("userId")); v != "" {
		lq.Where = append(lq.Where, db.Eq("user_id", v))
	}
	items, total, err := db.LeaveRequests.List(r.Context(), a.DB.Handle(), lq)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, items, total)
}

func (a *App) mountUsers(r *mux.Router, admin func(http.Handler) http.Handler) {
	users := r.PathPrefix("/users").Subrouter()
	users.Use(admin)
	users.HandleFunc("", a.ListUsers).Methods(http.MethodGet)
	users.HandleFunc("", a.CreateUserHandler).Methods(http.MethodPost)
	users.HandleFunc("/{id}", a.GetUser).Methods(http.MethodGet)
	users.HandleFunc("/{id}", a.UpdateUser).Methods(http.MethodPut)
	users.HandleFunc("/{id}", a.DeleteUser).Methods(http.MethodDelete)
	r.HandleFunc("/roles", a.ListRoles).Methods(http.MethodGet)

	r.HandleFunc("/leave-requests", leaveRequestResource.list(a)).Methods(http.MethodGet)
	r.HandleFunc("/leave-requests", a.CreateLeaveRequest).Methods(http.MethodPost)
	r.HandleFunc("/leave-requests/{id}", leaveRequestResource.get(a)).Methods(http.MethodGet)
	r.Handle("/leave-requests/{id}", admin(leaveRequestResource.update(a))).Methods(http.MethodPut)
	r.HandleFunc("/leave-requests/{id}", leaveRequestResource.remove(a)).Methods(http.MethodDelete)
	r.Handle("/leave-requests/{id}/approve", admin(a.decideLeave(LeaveApproved))).Methods(http.MethodPost)
	r.Handle("/leave-requests/{id}/reject", admin(a.decideLeave(LeaveRejected))).Methods(http.MethodPost)
	r.HandleFunc("/vacations", a.ListVacations).Methods(http.MethodGet)
}
