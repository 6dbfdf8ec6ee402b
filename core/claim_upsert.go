package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marcmoiagese/SpartaClaims/db"
)

const (
	StatusNew      = "New"
	StatusToAssign = "ToAssign"
)

// ClaimDetail és el graf complet d'un sinistre tal com el retorna l'API.
type ClaimDetail struct {
	db.Claim
	Participants []db.Participant `json:"participants"`
	Damages      []db.Damage      `json:"damages"`
	Decisions    []db.Decision    `json:"decisions"`
	Appeals      []db.Appeal      `json:"appeals"`
	ClientClaims []db.ClientClaim `json:"clientClaims"`
	Recourses    []db.Recourse    `json:"recourses"`
	Settlements  []db.Settlement  `json:"settlements"`
	Notes        []db.Note        `json:"notes"`
	Emails       []db.Email       `json:"emails"`
	Documents    []db.Document    `json:"documents,omitempty"`
}

// ClaimPayload és el cos d'un upsert. Una col·lecció nul·la no es toca;
// una llista buida esborra tots els elements persistits.
type ClaimPayload struct {
	ClaimDetail
	DeletedAppealIDs []string `json:"deletedAppealIds"`
}

var (
	participantsColl = childCollection[db.Participant]{
		what: "participant", table: db.Participants, parent: "claim_id",
		idOf: func(p *db.Participant) *string { return &p.ID },
		bind: func(p *db.Participant, claimID string, c, u time.Time) { p.ClaimID, p.CreatedAt, p.UpdatedAt = claimID, c, u },
	}
	damagesColl = childCollection[db.Damage]{
		what: "damage", table: db.Damages, parent: "claim_id",
		idOf: func(d *db.Damage) *string { return &d.ID },
		bind: func(d *db.Damage, claimID string, c, u time.Time) { d.ClaimID, d.CreatedAt, d.UpdatedAt = claimID, c, u },
	}
	decisionsColl = childCollection[db.Decision]{
		what: "decision", table: db.Decisions, parent: "claim_id",
		idOf: func(d *db.Decision) *string { return &d.ID },
		bind: func(d *db.Decision, claimID string, c, u time.Time) { d.ClaimID, d.CreatedAt, d.UpdatedAt = claimID, c, u },
	}
	appealsColl = childCollection[db.Appeal]{
		what: "appeal", table: db.Appeals, parent: "claim_id",
		idOf: func(a *db.Appeal) *string { return &a.ID },
		bind: func(a *db.Appeal, claimID string, c, u time.Time) { a.ClaimID, a.CreatedAt, a.UpdatedAt = claimID, c, u },
	}
	clientClaimsColl = childCollection[db.ClientClaim]{
		what: "client claim", table: db.ClientClaims, parent: "claim_id",
		idOf: func(cc *db.ClientClaim) *string { return &cc.ID },
		bind: func(cc *db.ClientClaim, claimID string, c, u time.Time) { cc.ClaimID, cc.CreatedAt, cc.UpdatedAt = claimID, c, u },
	}
	recoursesColl = childCollection[db.Recourse]{
		what: "recourse", table: db.Recourses, parent: "claim_id",
		idOf: func(r *db.Recourse) *string { return &r.ID },
		bind: func(r *db.Recourse, claimID string, c, u time.Time) { r.ClaimID, r.CreatedAt, r.UpdatedAt = claimID, c, u },
	}
	settlementsColl = childCollection[db.Settlement]{
		what: "settlement", table: db.Settlements, parent: "claim_id",
		idOf: func(s *db.Settlement) *string { return &s.ID },
		bind: func(s *db.Settlement, claimID string, c, u time.Time) { s.ClaimID, s.CreatedAt, s.UpdatedAt = claimID, c, u },
	}
	notesColl = childCollection[db.Note]{
		what: "note", table: db.Notes, parent: "claim_id",
		idOf: func(n *db.Note) *string { return &n.ID },
		bind: func(n *db.Note, claimID string, c, u time.Time) { n.ClaimID, n.CreatedAt, n.UpdatedAt = claimID, c, u },
	}
)

// syncClaimDrivers reconcilia els conductors de tot el sinistre alhora: un id persistit que
// apareix sota un altre participant s'actualitza i canvia de participant. Els participants
// amb Drivers nul conserven els seus conductors.
func syncClaimDrivers(ctx context.Context, h db.Handle, claimID string, participants []db.Participant, now time.Time) error {
	touched := map[string]bool{}
	var incoming []db.Driver
	for i := range participants {
		p := &participants[i]
		if p.Drivers == nil {
			continue
		}
		touched[p.ID] = true
		for _, d := range p.Drivers {
			d.ParticipantID = p.ID
			incoming = append(incoming, d)
		}
	}
	if len(touched) == 0 {
		return nil
	}

	existing, err := db.Drivers.Find(ctx, h, db.Eq("claim_id", claimID))
	if err != nil {
		return err
	}
	ids := make([]string, len(existing))
	owner := make(map[string]string, len(existing))
	for i, d := range existing {
		ids[i] = d.ID
		owner[d.ID] = d.ParticipantID
	}
	plan, err := diffByID(incoming, ids, func(d *db.Driver) *string { return &d.ID })
	if err != nil {
		return err
	}

	for _, id := range plan.Delete {
		if !touched[owner[id]] {
			continue
		}
		if err := db.Drivers.Delete(ctx, h, id); err != nil && !db.IsNotFound(err) {
			return err
		}
	}
	for _, d := range plan.Update {
		d.ClaimID, d.CreatedAt, d.UpdatedAt = claimID, now, now
		if err := db.Drivers.Update(ctx, h, d); err != nil {
			return fromDB(err, "driver")
		}
	}
	for _, d := range plan.Create {
		d.ClaimID, d.CreatedAt, d.UpdatedAt = claimID, now, now
		if err := db.Drivers.Insert(ctx, h, d); err != nil {
			return fromDB(err, "driver")
		}
	}
	return nil
}

// validateRecourse comprova els dos camps obligatoris d'un regrés.
func validateRecourse(r *db.Recourse, prefix string, fields map[string]string) {
	if r.FilingDate == nil || r.FilingDate.IsZero() {
		fields[prefix+"filingDate"] = "required"
	}
	if strings.TrimSpace(r.InsuranceCompany) == "" {
		fields[prefix+"insuranceCompany"] = "required"
	}
}

// validatePayload fa les comprovacions que no depenen de l'estat persistit.
func validatePayload(in *ClaimPayload) error {
	fields := map[string]string{}
	for i := range in.Recourses {
		validateRecourse(&in.Recourses[i], fmt.Sprintf("recourses[%d].", i), fields)
	}
	if len(fields) > 0 {
		return &fieldError{Fields: fields}
	}
	if strings.TrimSpace(in.ID) != "" {
		id, err := canonicalID(in.ID)
		if err != nil {
			return err
		}
		in.ID = id
	}
	for _, ref := range []**string{&in.HandlerID, &in.ClientID, &in.RiskTypeID, &in.DamageTypeID, &in.ClaimStatusID} {
		if *ref == nil {
			continue
		}
		if strings.TrimSpace(**ref) == "" {
			*ref = nil
			continue
		}
		id, err := canonicalID(**ref)
		if err != nil {
			return err
		}
		*ref = &id
	}
	return nil
}

// upsertResult guarda l'estat abans i després per decidir els efectes posteriors.
type upsertResult struct {
	before   *db.Claim
	after    db.Claim
	creating bool
}

// UpsertClaim fa que el graf persistit coincideixi amb el payload en una única transacció.
// Els efectes secundaris (correus, push, cerca) s'executen després del COMMIT i mai fan fallar la petició.
func (a *App) UpsertClaim(ctx context.Context, actor *db.User, in *ClaimPayload) (*ClaimDetail, error) {
	if err := validatePayload(in); err != nil {
		return nil, err
	}
	now := a.now()
	var res upsertResult

	var err error
	for attempt := 1; ; attempt++ {
		err = a.DB.InTx(ctx, func(h db.Handle) error {
			var err error
			res, err = a.upsertInTx(ctx, h, actor, in, now)
			return err
		})
		if attempt < spartaNumberAttempts && errors.Is(err, errSpartaNumberTaken) {
			Log().Warn().Str("claim_id", in.ID).Msg("número Sparta ocupat per una alta concurrent, es torna a provar")
			continue
		}
		break
	}
	if err != nil {
		return nil, err
	}

	a.refreshSearch(ctx, res.after.ID)
	detail, err := a.loadClaimDetail(ctx, a.DB.Handle(), res.after.ID)
	if err != nil {
		return nil, err
	}
	a.afterClaimUpsert(ctx, actor, res, &detail.Claim)
	return detail, nil
}

func (a *App) upsertInTx(ctx context.Context, h db.Handle, actor *db.User, in *ClaimPayload, now time.Time) (upsertResult, error) {
	var res upsertResult

	if in.ID != "" {
		existing, err := db.Claims.Get(ctx, h, in.ID)
		switch {
		case err == nil:
			res.before = existing
		case db.IsNotFound(err):
		default:
			return res, err
		}
	} else {
		in.ID = uuid.NewString()
	}
	res.creating = res.before == nil || res.before.IsDraft

	row := in.Claim
	row.IsDraft = false
	row.UpdatedAt = now
	if res.before != nil {
		row.SpartaNumber = res.before.SpartaNumber
		row.CreatedAt = res.before.CreatedAt
		row.CreatedBy = res.before.CreatedBy
		row.SearchBlob = res.before.SearchBlob
		row.SearchText = res.before.SearchText
		if strings.TrimSpace(row.Status) == "" {
			row.Status = res.before.Status
		}
	} else {
		row.SpartaNumber = nil
		row.CreatedAt = now
		row.SearchBlob, row.SearchText = "", ""
		row.CreatedBy = nil
		if actor != nil {
			row.CreatedBy = &actor.ID
		}
	}

	actorIsHandler := hasRole(actor, RoleHandler)
	if row.HandlerID == nil && res.creating && actorIsHandler {
		ch, err := a.resolveActorHandler(ctx, h, actor)
		if err != nil {
			return res, err
		}
		if ch != nil {
			row.HandlerID = &ch.ID
		}
	}
	if err := a.fillClaimReferences(ctx, h, &row); err != nil {
		return res, err
	}

	freshNumber := row.SpartaNumber == nil || *row.SpartaNumber == ""
	if freshNumber {
		num, err := a.nextNumber(ctx, h, now)
		if err != nil {
			return res, err
		}
		row.SpartaNumber = &num
	}
	if strings.TrimSpace(row.Status) == "" {
		if row.HandlerID != nil || actorIsHandler {
			row.Status = StatusNew
		} else {
			row.Status = StatusToAssign
		}
	}

	var err error
	if res.before == nil {
		err = db.Claims.Insert(ctx, h, &row)
	} else {
		err = db.Claims.Update(ctx, h, &row)
	}
	if err != nil {
		if freshNumber && db.IsConflict(err) {
			return res, fmt.Errorf("%w: %w", errSpartaNumberTaken, fromDB(err, "claim"))
		}
		return res, fromDB(err, "claim")
	}
	res.after = row

	if err := a.syncClaimCollections(ctx, h, row.ID, in, now); err != nil {
		return res, err
	}
	return res, nil
}

func (a *App) syncClaimCollections(ctx context.Context, h db.Handle, claimID string, in *ClaimPayload, now time.Time) error {
	if in.Participants != nil {
		plan, err := participantsColl.sync(ctx, h, claimID, in.Participants, now)
		if err != nil {
			return err
		}
		if _, err := db.Drivers.DeleteWhere(ctx, h, db.Cond{Column: "participant_id", Op: "IN", Value: plan.Delete}); err != nil {
			return err
		}
		if err := syncClaimDrivers(ctx, h, claimID, in.Participants, now); err != nil {
			return err
		}
	}
	if in.Damages != nil {
		if _, err := damagesColl.sync(ctx, h, claimID, in.Damages, now); err != nil {
			return err
		}
	}
	if in.Decisions != nil {
		if _, err := decisionsColl.sync(ctx, h, claimID, in.Decisions, now); err != nil {
			return err
		}
	}
	if in.Appeals != nil {
		if _, err := appealsColl.sync(ctx, h, claimID, in.Appeals, now); err != nil {
			return err
		}
	}
	for _, raw := range in.DeletedAppealIDs {
		id, err := canonicalID(raw)
		if err != nil {
			return err
		}
		if _, err := db.Appeals.DeleteWhere(ctx, h, db.Eq("id", id), db.Eq("claim_id", claimID)); err != nil {
			return err
		}
	}
	if in.ClientClaims != nil {
		if _, err := clientClaimsColl.sync(ctx, h, claimID, in.ClientClaims, now); err != nil {
			return err
		}
	}
	if in.Recourses != nil {
		if _, err := recoursesColl.sync(ctx, h, claimID, in.Recourses, now); err != nil {
			return err
		}
	}
	if in.Settlements != nil {
		if _, err := settlementsColl.sync(ctx, h, claimID, in.Settlements, now); err != nil {
			return err
		}
	}
	if in.Notes != nil {
		if _, err := notesColl.sync(ctx, h, claimID, in.Notes, now); err != nil {
			return err
		}
	}
	if in.Emails != nil {
		if err := replaceClaimEmails(ctx, h, claimID, in.Emails, now); err != nil {
			return err
		}
	}
	return nil
}

// replaceClaimEmails esborra tots els correus del sinistre i torna a crear la llista rebuda.
func replaceClaimEmails(ctx context.Context, h db.Handle, claimID string, emails []db.Email, now time.Time) error {
	old, err := db.Emails.IDs(ctx, h, db.Eq("claim_id", claimID))
	if err != nil {
		return err
	}
	if len(old) > 0 {
		in, args := db.InArgs(old)
		if _, err := h.Exec(ctx, "DELETE FROM email_client_claims WHERE email_id IN "+in, args...); err != nil {
			return err
		}
		if _, err := db.Emails.DeleteWhere(ctx, h, db.Eq("claim_id", claimID)); err != nil {
			return err
		}
	}
	for i := range emails {
		e := &emails[i]
		if strings.TrimSpace(e.ID) == "" {
			e.ID = uuid.NewString()
		} else {
			id, err := canonicalID(e.ID)
			if err != nil {
				return err
			}
			e.ID = id
		}
		e.ClaimID = &claimID
		normalizeEmail(e)
		e.CreatedAt, e.UpdatedAt = now, now
		if err := db.Emails.Insert(ctx, h, e); err != nil {
			return fromDB(err, "email")
		}
		if err := db.SetEmailClientClaims(ctx, h, e.ID, e.ClientClaimIDs); err != nil {
			return err
		}
	}
	return nil
}

// fillClaimReferences valida les claus foranes i copia les dades desnormalitzades del gestor i del client.
func (a *App) fillClaimReferences(ctx context.Context, h db.Handle, c *db.Claim) error {
	if c.HandlerID != nil {
		ch, err := db.CaseHandlers.Get(ctx, h, *c.HandlerID)
		if err != nil {
			if db.IsNotFound(err) {
				return validationf("unknown handlerId %s", *c.HandlerID)
			}
			return err
		}
		c.HandlerName, c.HandlerEmail, c.HandlerPhone = ch.Name, ch.Email, ch.Phone
	} else {
		c.HandlerName, c.HandlerEmail, c.HandlerPhone = "", "", ""
	}
	if c.ClientID != nil {
		cl, err := db.Clients.Get(ctx, h, *c.ClientID)
		if err != nil {
			if db.IsNotFound(err) {
				return validationf("unknown clientId %s", *c.ClientID)
			}
			return err
		}
		c.ClientName = cl.Name
	}
	dict := []struct {
		id   *string
		kind string
		name string
	}{
		{c.RiskTypeID, KindRiskTypes, "riskTypeId"},
		{c.DamageTypeID, KindDamageTypes, "damageTypeId"},
		{c.ClaimStatusID, KindClaimStatuses, "claimStatusId"},
	}
	for _, d := range dict {
		if d.id == nil {
			continue
		}
		item, err := db.DictionaryItems.Get(ctx, h, *d.id)
		if err != nil || item.Kind != d.kind {
			if err == nil || db.IsNotFound(err) {
				return validationf("unknown %s %s", d.name, *d.id)
			}
			return err
		}
	}
	return nil
}

// resolveActorHandler troba el gestor vinculat a l'usuari o, si no n'hi ha, el seu gestor per defecte.
func (a *App) resolveActorHandler(ctx context.Context, h db.Handle, actor *db.User) (*db.CaseHandler, error) {
	linked, err := db.CaseHandlers.Find(ctx, h, db.Eq("user_id", actor.ID), db.Eq("is_active", true))
	if err != nil {
		return nil, err
	}
	if len(linked) > 0 {
		return &linked[0], nil
	}
	if actor.DefaultHandlerID == nil {
		return nil, nil
	}
	ch, err := db.CaseHandlers.Get(ctx, h, *actor.DefaultHandlerID)
	if db.IsNotFound(err) {
		Log().Debug().Str("user", actor.Username).Msg("gestor per defecte inexistent")
		return nil, nil
	}
	return ch, err
}

// afterClaimUpsert executa els efectes secundaris un cop confirmada la transacció.
func (a *App) afterClaimUpsert(ctx context.Context, actor *db.User, res upsertResult, claim *db.Claim) {
	wasUnassigned := res.before == nil || res.before.HandlerID == nil
	if wasUnassigned && claim.HandlerID != nil {
		bestEffort("handler-assignment-email", claim.ID, func() { a.sendAssignmentEmail(claim) })
	}

	if res.creating {
		if !hasRole(actor, RoleHandler) {
			bestEffort("claim-created-fanout", claim.ID, func() { a.announceNewClaim(ctx, actor, claim) })
		}
		return
	}

	bestEffort("claim-updated-notify", claim.ID, func() {
		a.Notifier.Notify(claim, actor, EventClaimUpdated)
		if res.before != nil && res.before.Status != claim.Status {
			a.Notifier.Notify(claim, actor, EventStatusChanged)
		}
	})
}

func (a *App) claimLink(claimID string) string {
	return fmt.Sprintf("%s/claims/%s", strings.TrimRight(a.Config.BaseURL, "/"), claimID)
}

func (a *App) sendAssignmentEmail(c *db.Claim) {
	if c.HandlerEmail == "" {
		return
	}
	subject := fmt.Sprintf("Przydzielono szkodę %s", claimDisplayNumber(c))
	body := fmt.Sprintf("Została Ci przydzielona szkoda %s.\nLink: %s\n", claimDisplayNumber(c), a.claimLink(c.ID))
	if err := a.Mail.Send(c.HandlerEmail, subject, body); err != nil {
		Log().Error().Err(err).Str("claim_id", c.ID).Str("to", c.HandlerEmail).Msg("error enviant correu d'assignació")
	}
}

// announceNewClaim publica al feed, envia push i notifica ClaimCreated.
func (a *App) announceNewClaim(ctx context.Context, actor *db.User, c *db.Claim) {
	title := "Nowa szkoda"
	body := claimDisplayNumber(c)
	if c.ClientName != "" {
		body += " – " + c.ClientName
	}
	a.Feed.Add(FeedEntry{ClaimID: c.ID, Title: title, Body: body})
	a.Push.Broadcast(ctx, PushMessage{Title: title, Body: body, URL: a.claimLink(c.ID)})
	a.Notifier.Notify(c, actor, EventClaimCreated)
}

// bestEffort aïlla un efecte secundari: un pànic o error no arriba a la petició.
func bestEffort(op, claimID string, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			Log().Error().Str("op", op).Str("claim_id", claimID).Interface("panic", p).Msg("efecte secundari fallit")
		}
	}()
	fn()
}

// InitializeClaim crea un esborrany buit i en retorna l'id.
func (a *App) InitializeClaim(ctx context.Context, actor *db.User) (string, error) {
	now := a.now()
	c := db.Claim{ID: uuid.NewString(), IsDraft: true, CreatedAt: now, UpdatedAt: now}
	if actor != nil {
		c.CreatedBy = &actor.ID
	}
	if err := db.Claims.Insert(ctx, a.DB.Handle(), &c); err != nil {
		return "", err
	}
	return c.ID, nil
}

// loadClaimDetail carrega el sinistre amb totes les col·leccions.
func (a *App) loadClaimDetail(ctx context.Context, h db.Handle, id string) (*ClaimDetail, error) {
	c, err := db.Claims.Get(ctx, h, id)
	if err != nil {
		return nil, fromDB(err, "claim")
	}
	d := &ClaimDetail{Claim: *c}
	byClaim := db.Eq("claim_id", id)

	if d.Participants, err = db.Participants.Find(ctx, h, byClaim); err != nil {
		return nil, err
	}
	drivers, err := db.Drivers.Find(ctx, h, byClaim)
	if err != nil {
		return nil, err
	}
	byParticipant := map[string][]db.Driver{}
	for _, dr := range drivers {
		byParticipant[dr.ParticipantID] = append(byParticipant[dr.ParticipantID], dr)
	}
	for i := range d.Participants {
		d.Participants[i].Drivers = byParticipant[d.Participants[i].ID]
		if d.Participants[i].Drivers == nil {
			d.Participants[i].Drivers = []db.Driver{}
		}
	}

	if d.Damages, err = db.Damages.Find(ctx, h, byClaim); err != nil {
		return nil, err
	}
	if d.Decisions, err = db.Decisions.Find(ctx, h, byClaim); err != nil {
		return nil, err
	}
	if d.Appeals, err = db.Appeals.Find(ctx, h, byClaim); err != nil {
		return nil, err
	}
	if d.ClientClaims, err = db.ClientClaims.Find(ctx, h, byClaim); err != nil {
		return nil, err
	}
	if d.Recourses, err = db.Recourses.Find(ctx, h, byClaim); err != nil {
		return nil, err
	}
	if d.Settlements, err = db.Settlements.Find(ctx, h, byClaim); err != nil {
		return nil, err
	}
	if d.Notes, err = db.Notes.Find(ctx, h, byClaim); err != nil {
		return nil, err
	}
	if d.Emails, err = db.Emails.Find(ctx, h, byClaim); err != nil {
		return nil, err
	}
	if err := attachEmailLinks(ctx, h, d.Emails); err != nil {
		return nil, err
	}
	if d.Documents, err = db.Documents.Find(ctx, h, byClaim, db.Eq("is_deleted", false)); err != nil {
		return nil, err
	}
	return d, nil
}

// DeleteClaim esborra el sinistre i tot el que en depèn. Els documents es marquen com a esborrats
// i els fitxers s'eliminen de l'emmagatzematge un cop confirmada la transacció.
func (a *App) DeleteClaim(ctx context.Context, id string) error {
	var docs []db.Document
	var rules []string
	err := a.DB.InTx(ctx, func(h db.Handle) error {
		if _, err := db.Claims.Get(ctx, h, id); err != nil {
			return fromDB(err, "claim")
		}
		var err error
		if docs, err = db.Documents.Find(ctx, h, db.Eq("claim_id", id), db.Eq("is_deleted", false)); err != nil {
			return err
		}
		if rules, err = db.EventRules.IDs(ctx, h, db.Eq("claim_id", id)); err != nil {
			return err
		}
		if _, err := db.EventRuleHistories.DeleteWhere(ctx, h, db.Cond{Column: "rule_id", Op: "IN", Value: rules}); err != nil {
			return err
		}
		emailIDs, err := db.Emails.IDs(ctx, h, db.Eq("claim_id", id))
		if err != nil {
			return err
		}
		if len(emailIDs) > 0 {
			in, args := db.InArgs(emailIDs)
			if _, err := h.Exec(ctx, "DELETE FROM email_client_claims WHERE email_id IN "+in, args...); err != nil {
				return err
			}
		}
		if _, err := h.Exec(ctx, "DELETE FROM email_client_claims WHERE client_claim_id IN (SELECT id FROM client_claims WHERE claim_id = ?)", id); err != nil {
			return err
		}
		for _, table := range []string{"event_rules", "emails", "drivers", "participants", "damages", "decisions",
			"appeals", "client_claims", "recourses", "settlements", "notes"} {
			if _, err := h.Exec(ctx, "DELETE FROM "+table+" WHERE claim_id = ?", id); err != nil {
				return err
			}
		}
		if _, err := h.Exec(ctx, "UPDATE documents SET is_deleted = ?, updated_at = ? WHERE claim_id = ?", true, a.now(), id); err != nil {
			return err
		}
		return db.Claims.Delete(ctx, h, id)
	})
	if err != nil {
		return err
	}

	for _, ruleID := range rules {
		a.Scheduler.Disarm(ruleID)
	}
	for _, d := range docs {
		if err := a.Storage.Delete(ctx, d.StoragePath); err != nil {
			Log().Error().Err(err).Str("claim_id", id).Str("document_id", d.ID).Msg("no s'ha pogut esborrar el fitxer")
		}
	}
	Log().Info().Str("claim_id", id).Str("op", "delete").Msg("sinistre esborrat")
	return nil
}
