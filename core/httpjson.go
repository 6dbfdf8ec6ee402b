package core

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

const maxJSONBody = 8 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Errorf("error codificant resposta JSON: %v", err)
	}
}

// writeError tradueix l'error a un codi HTTP i a un cos {"error": "..."}.
// Els errors inesperats es registren sencers i es responen amb un missatge genèric.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := map[string]any{}
	status := http.StatusInternalServerError

	var fe *fieldError
	switch {
	case errors.As(err, &fe):
		status = http.StatusBadRequest
		body["error"] = "validation failed"
		body["fields"] = fe.Fields
	case errors.Is(err, ErrValidation):
		status = http.StatusBadRequest
		body["error"] = publicMessage(err, ErrValidation)
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
		body["error"] = publicMessage(err, ErrNotFound) + " not found"
	case errors.Is(err, ErrConflict):
		status = http.StatusConflict
		body["error"] = publicMessage(err, ErrConflict)
	case errors.Is(err, ErrUnauthorized):
		status = http.StatusUnauthorized
		body["error"] = "unauthorized"
	case errors.Is(err, ErrForbidden):
		status = http.StatusForbidden
		body["error"] = "forbidden"
	default:
		body["error"] = "internal server error"
	}

	ev := Log().Error()
	if status < http.StatusInternalServerError {
		ev = Log().Debug()
	}
	if r != nil {
		ev = ev.Str("method", r.Method).Str("path", r.URL.Path)
	}
	ev.Err(err).Int("status", status).Msg("petició fallida")

	writeJSON(w, status, body)
}

// publicMessage retorna el text de l'error sense duplicar el prefix del sentinel.
func publicMessage(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return msg
}

// decodeJSON llegeix el cos amb un límit de mida. Els camps desconeguts s'ignoren.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return validationf("request body is empty")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return validationf("request body too large")
		}
		return validationf("invalid JSON: %v", err)
	}
	if dec.More() {
		return validationf("invalid JSON: trailing data")
	}
	return nil
}
