package core

import (
	"bytes"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/marcmoiagese/SpartaClaims/db"
)

func TestParseExportRequest(t *testing.T) {
	q, _ := url.ParseQuery("entity=claims&fields=spartaNumber,status&status=Open&from=2025-01-01&to=2025-01-31")
	req, ex, err := parseExportRequest(q)
	require.NoError(t, err)
	require.NotNil(t, ex)
	assert.Equal(t, []string{"spartaNumber", "status"}, req.Fields)
	require.Len(t, req.Where, 3)
	assert.Equal(t, "created_at", req.Where[0].Column)
	assert.Equal(t, ">=", req.Where[0].Op)
	assert.Equal(t, "<", req.Where[1].Op)
	assert.Equal(t, db.Eq("status", "Open"), req.Where[2])

	_, _, err = parseExportRequest(url.Values{"entity": {"appeals"}})
	assert.NoError(t, err)
}

func TestParseExportRequestRejectsUnknown(t *testing.T) {
	cases := []string{
		"entity=wallets",
		"entity=claims&fields=password",
		"entity=claims&bogus=1",
		"entity=claims&from=yesterday",
	}
	for _, raw := range cases {
		q, _ := url.ParseQuery(raw)
		_, _, err := parseExportRequest(q)
		assert.ErrorIs(t, err, ErrValidation, raw)
	}
}

func TestExportRegistryColumnsExist(t *testing.T) {
	tables := map[string][]string{
		"claims":      db.Claims.Columns,
		"appeals":     db.Appeals.Columns,
		"recourses":   db.Recourses.Columns,
		"settlements": db.Settlements.Columns,
		"decisions":   db.Decisions.Columns,
	}
	require.Len(t, exportRegistry, len(tables))
	for entity, ex := range exportRegistry {
		cols, ok := tables[entity]
		require.True(t, ok, entity)
		assert.Contains(t, cols, ex.dateCol(), entity)
		for _, f := range ex.fieldNames() {
			col, _ := ex.column(f)
			assert.Contains(t, cols, col, "%s.%s", entity, f)
		}
	}
}

func TestBuildExportWritesHeaderAndRows(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)
	env.claim(t, admin, ClaimPayload{ClaimDetail: ClaimDetail{Claim: db.Claim{ClaimNumber: "A-1", Status: "Open"}}})
	env.claim(t, admin, ClaimPayload{ClaimDetail: ClaimDetail{Claim: db.Claim{ClaimNumber: "A-2", Status: "Closed"}}})

	q, _ := url.ParseQuery("entity=claims&fields=claimNumber,status&status=Open")
	req, ex, err := parseExportRequest(q)
	require.NoError(t, err)
	f, err := buildExport(env.ctx(), env.app.DB.Handle(), req, ex)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("claims")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"claimNumber", "status"}, {"A-1", "Open"}}, rows)
}

func TestExportEndpoint(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)
	token := env.login(t, admin)

	rec := env.do(t, token, http.MethodGet, "/api/reports/export?entity=decisions", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "decisions-20250610.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("decisions")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, exportRegistry["decisions"].fieldNames(), rows[0])

	rec = env.do(t, token, http.MethodGet, "/api/reports/export?entity=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummaryCounts(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "anna", RoleAdmin)
	_, err := env.app.InitializeClaim(env.ctx(), admin)
	require.NoError(t, err)
	env.claim(t, admin, ClaimPayload{ClaimDetail: ClaimDetail{
		Appeals: []db.Appeal{{Reason: "r", SubmissionDate: datePtr(2025, 6, 1)}},
	}})

	s, err := env.app.BuildSummary(env.ctx())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Drafts)
	assert.Equal(t, 1, s.PendingAppeals)
	assert.Equal(t, 1, s.Unassigned)
	assert.Zero(t, s.OpenRecourses)
}
