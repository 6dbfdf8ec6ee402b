package db

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// MaxSpartaSequence retorna el número de seqüència més alt amb el prefix donat
// (p. ex. "SPARTA/2025/"), o 0 si encara no n'hi ha cap.
func MaxSpartaSequence(ctx context.Context, h Handle, prefix string) (int, error) {
	rows, err := h.Query(ctx, "SELECT sparta_number FROM claims WHERE sparta_number LIKE ?", prefix+"%")
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	max := 0
	for rows.Next() {
		var num string
		if err := rows.Scan(&num); err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(strings.TrimPrefix(num, prefix))
		if err != nil {
			logErrorf("número Sparta mal format ignorat: %s", num)
			continue
		}
		if n > max {
			max = n
		}
	}
	return max, rows.Err()
}

// CountReferences compta les files de table on column = id.
func CountReferences(ctx context.Context, h Handle, table, column, id string) (int, error) {
	return h.Count(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", table, column), id)
}

// SetEmailClientClaims substitueix els vincles d'un correu amb reclamacions de client.
func SetEmailClientClaims(ctx context.Context, h Handle, emailID string, clientClaimIDs []string) error {
	if _, err := h.Exec(ctx, "DELETE FROM email_client_claims WHERE email_id = ?", emailID); err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, id := range clientClaimIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if _, err := h.Exec(ctx, "INSERT INTO email_client_claims (email_id, client_claim_id) VALUES (?, ?)", emailID, id); err != nil {
			return err
		}
	}
	return nil
}

// EmailClientClaimIDs retorna, per cada correu, els ids de reclamacions de client vinculades.
func EmailClientClaimIDs(ctx context.Context, h Handle, emailIDs []string) (map[string][]string, error) {
	out := map[string][]string{}
	if len(emailIDs) == 0 {
		return out, nil
	}
	in, args := InArgs(emailIDs)
	rows, err := h.Query(ctx, "SELECT email_id, client_claim_id FROM email_client_claims WHERE email_id IN "+in+" ORDER BY client_claim_id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var eid, cid string
		if err := rows.Scan(&eid, &cid); err != nil {
			return nil, err
		}
		out[eid] = append(out[eid], cid)
	}
	return out, rows.Err()
}

// StatusCount és un recompte agrupat per estat.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// ClaimsByStatus agrupa els sinistres no esborranys per estat.
func ClaimsByStatus(ctx context.Context, h Handle) ([]StatusCount, error) {
	rows, err := h.Query(ctx, "SELECT status, COUNT(*) FROM claims WHERE is_draft = ? GROUP BY status ORDER BY status", false)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []StatusCount{}
	for rows.Next() {
		var sc StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}
