package core

import (
	"errors"
	"fmt"

	"github.com/marcmoiagese/SpartaClaims/db"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
	// ErrUnauthorized indica sessió absent, caducada o credencials incorrectes.
	ErrUnauthorized = errors.New("unauthorized")
)

// fieldError és un error de validació amb el mapa camp -> missatge.
type fieldError struct {
	Fields map[string]string
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("%d invalid fields", len(e.Fields))
}

func (e *fieldError) Unwrap() error { return ErrValidation }

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// fromDB tradueix els sentinels del paquet db als del domini.
func fromDB(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case db.IsNotFound(err):
		return notFoundf("%s", what)
	case db.IsConflict(err):
		return conflictf("%s already exists", what)
	default:
		return err
	}
}
