package core

import (
	"context"
	"encoding/json"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ł i Ł no es descomponen amb NFD
var strokeReplacer = strings.NewReplacer("ł", "l", "Ł", "L", "đ", "d", "Đ", "D", "ø", "o", "Ø", "O")

// normalizeSearch passa a minúscules i treu diacrítics, perquè "Łódź" trobi "lodz".
func normalizeSearch(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strokeReplacer.Replace(s))
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

// buildSearchBlob serialitza el sinistre complet i en deriva el text cercable.
func buildSearchBlob(d *ClaimDetail) (blob string, text string, err error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return "", "", err
	}

	parts := []string{d.ClaimNumber, d.Status, d.HandlerName, d.ClientName, d.PolicyNumber,
		d.InsurerName, d.InsurerClaimNumber, d.VehicleRegistration, d.EventLocation, d.Description}
	if d.SpartaNumber != nil {
		parts = append(parts, *d.SpartaNumber)
	}
	for _, p := range d.Participants {
		parts = append(parts, p.Name, p.VehicleRegistration, p.InsuranceCompany, p.PolicyNumber, p.Email, p.Phone)
		for _, dr := range p.Drivers {
			parts = append(parts, dr.FirstName, dr.LastName, dr.LicenseNumber)
		}
	}
	for _, cc := range d.ClientClaims {
		parts = append(parts, cc.ClaimNumber)
	}
	for _, r := range d.Recourses {
		parts = append(parts, r.InsuranceCompany)
	}
	for _, n := range d.Notes {
		parts = append(parts, n.Title)
	}

	nonEmpty := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return string(raw), normalizeSearch(strings.Join(nonEmpty, " ")), nil
}

// refreshSearch recalcula el blob de cerca. És best effort: els errors només es registren.
func (a *App) refreshSearch(ctx context.Context, claimID string) {
	h := a.DB.Handle()
	d, err := a.loadClaimDetail(ctx, h, claimID)
	if err != nil {
		Log().Error().Err(err).Str("claim_id", claimID).Str("op", "search-refresh").Msg("no s'ha pogut carregar el sinistre")
		return
	}
	blob, text, err := buildSearchBlob(d)
	if err != nil {
		Log().Error().Err(err).Str("claim_id", claimID).Str("op", "search-refresh").Msg("error serialitzant el sinistre")
		return
	}
	if _, err := h.Exec(ctx, "UPDATE claims SET search_blob = ?, search_text = ? WHERE id = ?", blob, text, claimID); err != nil {
		Log().Error().Err(err).Str("claim_id", claimID).Str("op", "search-refresh").Msg("error desant el blob de cerca")
	}
}
