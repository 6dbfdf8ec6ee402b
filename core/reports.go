package core

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/marcmoiagese/SpartaClaims/db"
)

// exportField és una columna exportable amb l'accés tipat al valor.
type exportField[T any] struct {
	name   string
	column string
	get    func(*T) any
}

// exportSpec descriu una entitat exportable.
type exportSpec[T any] struct {
	table db.Table[T]
	// dateColumn és la columna que filtren from/to
	dateColumn string
	fields     []exportField[T]
}

// exporter és la vista no genèrica d'una exportSpec per poder-les registrar juntes.
type exporter interface {
	fieldNames() []string
	column(field string) (string, bool)
	dateCol() string
	rows(ctx context.Context, h db.Handle, fields []string, where []db.Cond) ([][]any, error)
}

func (s exportSpec[T]) fieldNames() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.name
	}
	return out
}

func (s exportSpec[T]) field(name string) (exportField[T], bool) {
	for _, f := range s.fields {
		if f.name == name {
			return f, true
		}
	}
	return exportField[T]{}, false
}

func (s exportSpec[T]) column(name string) (string, bool) {
	f, ok := s.field(name)
	return f.column, ok
}

func (s exportSpec[T]) dateCol() string { return s.dateColumn }

func (s exportSpec[T]) rows(ctx context.Context, h db.Handle, fields []string, where []db.Cond) ([][]any, error) {
	items, err := s.table.Find(ctx, h, where...)
	if err != nil {
		return nil, err
	}
	out := make([][]any, 0, len(items))
	for i := range items {
		row := make([]any, len(fields))
		for j, name := range fields {
			f, _ := s.field(name)
			row[j] = f.get(&items[i])
		}
		out = append(out, row)
	}
	return out, nil
}

// cellTime converteix dates opcionals en un valor de cel·la.
func cellTime(t *time.Time) any {
	if t == nil {
		return ""
	}
	return *t
}

func cellString(s *string) any {
	if s == nil {
		return ""
	}
	return *s
}

// exportRegistry és el conjunt tancat d'entitats i camps exportables.
var exportRegistry = map[string]exporter{
	"claims": exportSpec[db.Claim]{
		table: db.Claims, dateColumn: "created_at",
		fields: []exportField[db.Claim]{
			{"id", "id", func(c *db.Claim) any { return c.ID }},
			{"spartaNumber", "sparta_number", func(c *db.Claim) any { return cellString(c.SpartaNumber) }},
			{"claimNumber", "claim_number", func(c *db.Claim) any { return c.ClaimNumber }},
			{"status", "status", func(c *db.Claim) any { return c.Status }},
			{"handlerId", "handler_id", func(c *db.Claim) any { return cellString(c.HandlerID) }},
			{"handlerName", "handler_name", func(c *db.Claim) any { return c.HandlerName }},
			{"clientId", "client_id", func(c *db.Claim) any { return cellString(c.ClientID) }},
			{"clientName", "client_name", func(c *db.Claim) any { return c.ClientName }},
			{"eventDate", "event_date", func(c *db.Claim) any { return cellTime(c.EventDate) }},
			{"reportDate", "report_date", func(c *db.Claim) any { return cellTime(c.ReportDate) }},
			{"eventLocation", "event_location", func(c *db.Claim) any { return c.EventLocation }},
			{"policyNumber", "policy_number", func(c *db.Claim) any { return c.PolicyNumber }},
			{"insurerName", "insurer_name", func(c *db.Claim) any { return c.InsurerName }},
			{"vehicleRegistration", "vehicle_registration", func(c *db.Claim) any { return c.VehicleRegistration }},
			{"totalClaimed", "total_claimed", func(c *db.Claim) any { return c.TotalClaimed }},
			{"totalPaid", "total_paid", func(c *db.Claim) any { return c.TotalPaid }},
			{"reserve", "reserve", func(c *db.Claim) any { return c.Reserve }},
			{"currency", "currency", func(c *db.Claim) any { return c.Currency }},
			{"createdAt", "created_at", func(c *db.Claim) any { return c.CreatedAt }},
		},
	},
	"appeals": exportSpec[db.Appeal]{
		table: db.Appeals, dateColumn: "submission_date",
		fields: []exportField[db.Appeal]{
			{"id", "id", func(a *db.Appeal) any { return a.ID }},
			{"claimId", "claim_id", func(a *db.Appeal) any { return a.ClaimID }},
			{"submissionDate", "submission_date", func(a *db.Appeal) any { return cellTime(a.SubmissionDate) }},
			{"decisionDate", "decision_date", func(a *db.Appeal) any { return cellTime(a.DecisionDate) }},
			{"status", "status", func(a *db.Appeal) any { return a.Status }},
			{"reason", "reason", func(a *db.Appeal) any { return a.Reason }},
			{"amount", "amount", func(a *db.Appeal) any { return a.Amount }},
		},
	},
	"recourses": exportSpec[db.Recourse]{
		table: db.Recourses, dateColumn: "filing_date",
		fields: []exportField[db.Recourse]{
			{"id", "id", func(r *db.Recourse) any { return r.ID }},
			{"claimId", "claim_id", func(r *db.Recourse) any { return r.ClaimID }},
			{"filingDate", "filing_date", func(r *db.Recourse) any { return cellTime(r.FilingDate) }},
			{"insuranceCompany", "insurance_company", func(r *db.Recourse) any { return r.InsuranceCompany }},
			{"amount", "amount", func(r *db.Recourse) any { return r.Amount }},
			{"status", "status", func(r *db.Recourse) any { return r.Status }},
			{"obtainedAmount", "obtained_amount", func(r *db.Recourse) any { return r.ObtainedAmount }},
			{"obtainedDate", "obtained_date", func(r *db.Recourse) any { return cellTime(r.ObtainedDate) }},
		},
	},
	"settlements": exportSpec[db.Settlement]{
		table: db.Settlements, dateColumn: "settlement_date",
		fields: []exportField[db.Settlement]{
			{"id", "id", func(s *db.Settlement) any { return s.ID }},
			{"claimId", "claim_id", func(s *db.Settlement) any { return s.ClaimID }},
			{"settlementDate", "settlement_date", func(s *db.Settlement) any { return cellTime(s.SettlementDate) }},
			{"amount", "amount", func(s *db.Settlement) any { return s.Amount }},
			{"currency", "currency", func(s *db.Settlement) any { return s.Currency }},
			{"status", "status", func(s *db.Settlement) any { return s.Status }},
		},
	},
	"decisions": exportSpec[db.Decision]{
		table: db.Decisions, dateColumn: "decision_date",
		fields: []exportField[db.Decision]{
			{"id", "id", func(d *db.Decision) any { return d.ID }},
			{"claimId", "claim_id", func(d *db.Decision) any { return d.ClaimID }},
			{"decisionDate", "decision_date", func(d *db.Decision) any { return cellTime(d.DecisionDate) }},
			{"status", "status", func(d *db.Decision) any { return d.Status }},
			{"amount", "amount", func(d *db.Decision) any { return d.Amount }},
			{"currency", "currency", func(d *db.Decision) any { return d.Currency }},
		},
	},
}

// ExportRequest és una exportació ja validada.
type ExportRequest struct {
	Entity string
	Fields []string
	Where  []db.Cond
}

var exportReserved = []string{"entity", "fields", "from", "to"}

// parseExportRequest valida entitat, camps i filtres contra el registre.
func parseExportRequest(q map[string][]string) (ExportRequest, exporter, error) {
	get := func(k string) string {
		if v := q[k]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}
	req := ExportRequest{Entity: get("entity")}
	ex, ok := exportRegistry[req.Entity]
	if !ok {
		return req, nil, validationf("unknown export entity %q", req.Entity)
	}

	if raw := get("fields"); raw != "" {
		for _, f := range strings.Split(raw, ",") {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			if _, ok := ex.column(f); !ok {
				return req, nil, validationf("unknown field %q for %s", f, req.Entity)
			}
			req.Fields = append(req.Fields, f)
		}
	}
	if len(req.Fields) == 0 {
		req.Fields = ex.fieldNames()
	}

	if v := get("from"); v != "" {
		t, err := parseDateParam("from", v)
		if err != nil {
			return req, nil, err
		}
		req.Where = append(req.Where, db.Cond{Column: ex.dateCol(), Op: ">=", Value: t})
	}
	if v := get("to"); v != "" {
		t, err := parseDateParam("to", v)
		if err != nil {
			return req, nil, err
		}
		req.Where = append(req.Where, db.Cond{Column: ex.dateCol(), Op: "<", Value: t.AddDate(0, 0, 1)})
	}

	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if slices.Contains(exportReserved, k) {
			continue
		}
		col, ok := ex.column(k)
		if !ok {
			return req, nil, validationf("unknown filter %q for %s", k, req.Entity)
		}
		req.Where = append(req.Where, db.Eq(col, get(k)))
	}
	return req, ex, nil
}

// buildExport genera el llibre amb una fila de capçalera i una fila per registre.
func buildExport(ctx context.Context, h db.Handle, req ExportRequest, ex exporter) (*excelize.File, error) {
	rows, err := ex.rows(ctx, h, req.Fields, req.Where)
	if err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	sheet := req.Entity
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	header := make([]any, len(req.Fields))
	for i, name := range req.Fields {
		header[i] = excelize.Cell{StyleID: bold, Value: name}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return nil, err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return nil, err
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, err
	}
	return f, nil
}

func (a *App) ExportReport(w http.ResponseWriter, r *http.Request) {
	req, ex, err := parseExportRequest(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := buildExport(r.Context(), a.DB.Handle(), req, ex)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()
	name := fmt.Sprintf("%s-%s.xlsx", req.Entity, a.now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := f.Write(w); err != nil {
		Log().Error().Err(err).Str("entity", req.Entity).Msg("error escrivint l'exportació")
	}
}

// Summary són els recomptes del tauler.
type Summary struct {
	ClaimsByStatus []db.StatusCount `json:"claimsByStatus"`
	Drafts         int              `json:"drafts"`
	PendingAppeals int              `json:"pendingAppeals"`
	OpenRecourses  int              `json:"openRecourses"`
	Unassigned     int              `json:"unassigned"`
}

func (a *App) BuildSummary(ctx context.Context) (Summary, error) {
	h := a.DB.Handle()
	var s Summary
	var err error
	if s.ClaimsByStatus, err = db.ClaimsByStatus(ctx, h); err != nil {
		return s, err
	}
	counts := []struct {
		dst  *int
		q    string
		args []any
	}{
		{&s.Drafts, "SELECT COUNT(*) FROM claims WHERE is_draft = ?", []any{true}},
		{&s.PendingAppeals, "SELECT COUNT(*) FROM appeals WHERE decision_date IS NULL", nil},
		{&s.OpenRecourses, "SELECT COUNT(*) FROM recourses WHERE obtained_date IS NULL", nil},
		{&s.Unassigned, "SELECT COUNT(*) FROM claims WHERE is_draft = ? AND handler_id IS NULL", []any{false}},
	}
	for _, c := range counts {
		if *c.dst, err = h.Count(ctx, c.q, c.args...); err != nil {
			return s, err
		}
	}
	return s, nil
}

func (a *App) ReportSummary(w http.ResponseWriter, r *http.Request) {
	s, err := a.BuildSummary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
