package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcmoiagese/SpartaClaims/db"
)

func TestNormalizeSearch(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Łódź", "lodz"},
		{"  Zażółć   GĘŚLĄ ", "zazolc gesla"},
		{"Kraków ul. Długa 5", "krakow ul. dluga 5"},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, normalizeSearch(c.in), c.in)
	}
}

func TestBuildSearchBlobSkipsEmptyParts(t *testing.T) {
	num := "SPARTA/2025/0007"
	d := &ClaimDetail{
		Claim: db.Claim{SpartaNumber: &num, ClaimNumber: "KL-7", VehicleRegistration: "WX 12345"},
		Participants: []db.Participant{{
			Name:    "Żaneta Nowak",
			Drivers: []db.Driver{{FirstName: "Żaneta", LastName: "Nowak"}},
		}},
		Notes: []db.Note{{Title: "Oględziny"}},
	}
	blob, text, err := buildSearchBlob(d)
	require.NoError(t, err)
	assert.Contains(t, blob, `"claimNumber":"KL-7"`)
	assert.Equal(t, "kl-7 wx 12345 sparta/2025/0007 zaneta nowak zaneta nowak ogledziny", text)
}

func TestClaimSearchFindsNormalisedText(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)
	env.claim(t, admin, ClaimPayload{ClaimDetail: ClaimDetail{Claim: db.Claim{EventLocation: "Łódź, Piotrkowska"}}})
	env.claim(t, admin, ClaimPayload{ClaimDetail: ClaimDetail{Claim: db.Claim{EventLocation: "Gdańsk"}}})
	token := env.login(t, admin)

	rec := env.do(t, token, "GET", "/api/claims?q=LODZ", nil)
	require.Equal(t, 200, rec.Code, rec.Body.String())
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))
}
