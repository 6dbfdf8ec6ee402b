package db

import "time"

// Claim és l'agregat central ("Event").
type Claim struct {
	ID                  string     `json:"id"`
	ClaimNumber         string     `json:"claimNumber"`
	SpartaNumber        *string    `json:"spartaNumber"`
	Status              string     `json:"status"`
	ClaimStatusID       *string    `json:"claimStatusId"`
	IsDraft             bool       `json:"isDraft"`
	HandlerID           *string    `json:"handlerId"`
	HandlerName         string     `json:"handlerName"`
	HandlerEmail        string     `json:"handlerEmail"`
	HandlerPhone        string     `json:"handlerPhone"`
	ClientID            *string    `json:"clientId"`
	ClientName          string     `json:"clientName"`
	RiskTypeID          *string    `json:"riskTypeId"`
	DamageTypeID        *string    `json:"damageTypeId"`
	EventDate           *time.Time `json:"eventDate"`
	ReportDate          *time.Time `json:"reportDate"`
	EventLocation       string     `json:"eventLocation"`
	Description         string     `json:"description"`
	PolicyNumber        string     `json:"policyNumber"`
	InsurerName         string     `json:"insurerName"`
	InsurerClaimNumber  string     `json:"insurerClaimNumber"`
	VehicleRegistration string     `json:"vehicleRegistration"`
	TotalClaimed        float64    `json:"totalClaimed"`
	TotalPaid           float64    `json:"totalPaid"`
	Reserve             float64    `json:"reserve"`
	Currency            string     `json:"currency"`
	SearchBlob          string     `json:"-"`
	SearchText          string     `json:"-"`
	CreatedBy           *string    `json:"createdBy"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

var Claims = Table[Claim]{
	Name: "claims",
	Columns: []string{"id", "claim_number", "sparta_number", "status", "claim_status_id", "is_draft",
		"handler_id", "handler_name", "handler_email", "handler_phone", "client_id", "client_name",
		"risk_type_id", "damage_type_id", "event_date", "report_date", "event_location", "description",
		"policy_number", "insurer_name", "insurer_claim_number", "vehicle_registration",
		"total_claimed", "total_paid", "reserve", "currency", "search_blob", "search_text",
		"created_by", "created_at", "updated_at"},
	Fields: func(c *Claim) []any {
		return []any{&c.ID, &c.ClaimNumber, &c.SpartaNumber, &c.Status, &c.ClaimStatusID, &c.IsDraft,
			&c.HandlerID, &c.HandlerName, &c.HandlerEmail, &c.HandlerPhone, &c.ClientID, &c.ClientName,
			&c.RiskTypeID, &c.DamageTypeID, &c.EventDate, &c.ReportDate, &c.EventLocation, &c.Description,
			&c.PolicyNumber, &c.InsurerName, &c.InsurerClaimNumber, &c.VehicleRegistration,
			&c.TotalClaimed, &c.TotalPaid, &c.Reserve, &c.Currency, &c.SearchBlob, &c.SearchText,
			&c.CreatedBy, &c.CreatedAt, &c.UpdatedAt}
	},
	OrderBy: "created_at DESC",
}

type Participant struct {
	ID                  string    `json:"id"`
	ClaimID             string    `json:"claimId"`
	Role                string    `json:"role"`
	Name                string    `json:"name"`
	Phone               string    `json:"phone"`
	Email               string    `json:"email"`
	Address             string    `json:"address"`
	VehicleRegistration string    `json:"vehicleRegistration"`
	VehicleMake         string    `json:"vehicleMake"`
	VehicleModel        string    `json:"vehicleModel"`
	InsuranceCompany    string    `json:"insuranceCompany"`
	PolicyNumber        string    `json:"policyNumber"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
	Drivers             []Driver  `json:"drivers"`
}

var Participants = Table[Participant]{
	Name: "participants",
	Columns: []string{"id", "claim_id", "role", "name", "phone", "email", "address",
		"vehicle_registration", "vehicle_make", "vehicle_model", "insurance_company", "policy_number",
		"created_at", "updated_at"},
	Fields: func(p *Participant) []any {
		return []any{&p.ID, &p.ClaimID, &p.Role, &p.Name, &p.Phone, &p.Email, &p.Address,
			&p.VehicleRegistration, &p.VehicleMake, &p.VehicleModel, &p.InsuranceCompany, &p.PolicyNumber,
			&p.CreatedAt, &p.UpdatedAt}
	},
	OrderBy: "created_at",
}

type Driver struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participantId"`
	ClaimID       string    `json:"claimId"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	LicenseNumber string    `json:"licenseNumber"`
	Phone         string    `json:"phone"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

var Drivers = Table[Driver]{
	Name: "drivers",
	Columns: []string{"id", "participant_id", "claim_id", "first_name", "last_name", "license_number",
		"phone", "created_at", "updated_at"},
	Fields: func(d *Driver) []any {
		return []any{&d.ID, &d.ParticipantID, &d.ClaimID, &d.FirstName, &d.LastName, &d.LicenseNumber,
			&d.Phone, &d.CreatedAt, &d.UpdatedAt}
	},
	OrderBy: "created_at",
}

type Damage struct {
	ID            string    `json:"id"`
	ClaimID       string    `json:"claimId"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	EstimatedCost float64   `json:"estimatedCost"`
	RepairShop    string    `json:"repairShop"`
	DocumentID    *string   `json:"documentId"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

var Damages = Table[Damage]{
	Name: "damages",
	Columns: []string{"id", "claim_id", "description", "category", "estimated_cost", "repair_shop",
		"document_id", "created_at", "updated_at"},
	Fields: func(d *Damage) []any {
		return []any{&d.ID, &d.ClaimID, &d.Description, &d.Category, &d.EstimatedCost, &d.RepairShop,
			&d.DocumentID, &d.CreatedAt, &d.UpdatedAt}
	},
	OrderBy: "created_at",
}

type Decision struct {
	ID           string     `json:"id"`
	ClaimID      string     `json:"claimId"`
	DecisionDate *time.Time `json:"decisionDate"`
	Status       string     `json:"status"`
	Amount       float64    `json:"amount"`
	Currency     string     `json:"currency"`
	Description  string     `json:"description"`
	DocumentID   *string    `json:"documentId"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

var Decisions = Table[Decision]{
	Name: "decisions",
	Columns: []string{"id", "claim_id", "decision_date", "status", "amount", "currency", "description",
		"document_id", "created_at", "updated_at"},
	Fields: func(d *Decision) []any {
		return []any{&d.ID, &d.ClaimID, &d.DecisionDate, &d.Status, &d.Amount, &d.Currency, &d.Description,
			&d.DocumentID, &d.CreatedAt, &d.UpdatedAt}
	},
	OrderBy: "created_at",
}

type Appeal struct {
	ID             string     `json:"id"`
	ClaimID        string     `json:"claimId"`
	SubmissionDate *time.Time `json:"submissionDate"`
	DecisionDate   *time.Time `json:"decisionDate"`
	Status         string     `json:"status"`
	Reason         string     `json:"reason"`
	Amount         float64    `json:"amount"`
	DocumentID     *string    `json:"documentId"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

var Appeals = Table[Appeal]{
	Name: "appeals",
	Columns: []string{"id", "claim_id", "submission_date", "decision_date", "status", "reason", "amount",
		"document_id", "created_at", "updated_at"},
	Fields: func(a *Appeal) []any {
		return []any{&a.ID, &a.ClaimID, &a.SubmissionDate, &a.DecisionDate, &a.Status, &a.Reason, &a.Amount,
			&a.DocumentID, &a.CreatedAt, &a.UpdatedAt}
	},
	OrderBy: "created_at",
}

type ClientClaim struct {
	ID          string     `json:"id"`
	ClaimID     string     `json:"claimId"`
	ClaimNumber string     `json:"claimNumber"`
	ClaimDate   *time.Time `json:"claimDate"`
	Amount      float64    `json:"amount"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	Description string     `json:"description"`
	DocumentID  *string    `json:"documentId"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

var ClientClaims = Table[ClientClaim]{
	Name: "client_claims",
	Columns: []string{"id", "claim_id", "claim_number", "claim_date", "amount", "currency", "status",
		"description", "document_id", "created_at", "updated_at"},
	Fields: func(c *ClientClaim) []any {
		return []any{&c.ID, &c.ClaimID, &c.ClaimNumber, &c.ClaimDate, &c.Amount, &c.Currency, &c.Status,
			&c.Description, &c.DocumentID, &c.CreatedAt, &c.UpdatedAt}
	},
	OrderBy: "created_at",
}

type Recourse struct {
	ID               string     `json:"id"`
	ClaimID          string     `json:"claimId"`
	FilingDate       *time.Time `json:"filingDate"`
	InsuranceCompany string     `json:"insuranceCompany"`
	Amount           float64    `json:"amount"`
	Status           string     `json:"status"`
	ObtainedAmount   float64    `json:"obtainedAmount"`
	ObtainedDate     *time.Time `json:"obtainedDate"`
	Notes            string     `json:"notes"`
	DocumentID       *string    `json:"documentId"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

var Recourses = Table[Recourse]{
	Name: "recourses",
	Columns: []string{"id", "claim_id", "filing_date", "insurance_company", "amount", "status",
		"obtained_amount", "obtained_date", "notes", "document_id", "created_at", "updated_at"},
	Fields: func(r *Recourse) []any {
		return []any{&r.ID, &r.ClaimID, &r.FilingDate, &r.InsuranceCompany, &r.Amount, &r.Status,
			&r.ObtainedAmount, &r.ObtainedDate, &r.Notes, &r.DocumentID, &r.CreatedAt, &r.UpdatedAt}
	},
	OrderBy: "created_at",
}

type Settlement struct {
	ID             string     `json:"id"`
	ClaimID        string     `json:"claimId"`
	SettlementDate *time.Time `json:"settlementDate"`
	Amount         float64    `json:"amount"`
	Currency       string     `json:"currency"`
	Status         string     `json:"status"`
	Description    string     `json:"description"`
	DocumentID     *string    `json:"documentId"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

var Settlements = Table[Settlement]{
	Name: "settlements",
	Columns: []string{"id", "claim_id", "settlement_date", "amount", "currency", "status", "description",
		"document_id", "created_at", "updated_at"},
	Fields: func(s *Settlement) []any {
		return []any{&s.ID, &s.ClaimID, &s.SettlementDate, &s.Amount, &s.Currency, &s.Status, &s.Description,
			&s.DocumentID, &s.CreatedAt, &s.UpdatedAt}
	},
	OrderBy: "created_at",
}

type Note struct {
	ID        string    `json:"id"`
	ClaimID   string    `json:"claimId"`
	Category  string    `json:"category"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var Notes = Table[Note]{
	Name:    "notes",
	Columns: []string{"id", "claim_id", "category", "title", "content", "created_by", "created_at", "updated_at"},
	Fields: func(n *Note) []any {
		return []any{&n.ID, &n.ClaimID, &n.Category, &n.Title, &n.Content, &n.CreatedBy, &n.CreatedAt, &n.UpdatedAt}
	},
	OrderBy: "created_at",
}

type Email struct {
	ID             string     `json:"id"`
	ClaimID        *string    `json:"claimId"`
	MessageID      string     `json:"messageId"`
	Direction      string     `json:"direction"`
	Status         string     `json:"status"`
	From           string     `json:"from"`
	To             string     `json:"to"`
	Cc             string     `json:"cc"`
	Subject        string     `json:"subject"`
	Body           string     `json:"body"`
	SentAt         *time.Time `json:"sentAt"`
	ReceivedAt     *time.Time `json:"receivedAt"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	ClientClaimIDs []string   `json:"clientClaimIds"`
}

var Emails = Table[Email]{
	Name: "emails",
	Columns: []string{"id", "claim_id", "message_id", "direction", "status", "from_address", "to_address",
		"cc_address", "subject", "body", "sent_at", "received_at", "created_at", "updated_at"},
	Fields: func(e *Email) []any {
		return []any{&e.ID, &e.ClaimID, &e.MessageID, &e.Direction, &e.Status, &e.From, &e.To,
			&e.Cc, &e.Subject, &e.Body, &e.SentAt, &e.ReceivedAt, &e.CreatedAt, &e.UpdatedAt}
	},
	OrderBy: "created_at DESC",
}

type Document struct {
	ID                string    `json:"id"`
	ClaimID           *string   `json:"claimId"`
	RelatedEntityID   *string   `json:"relatedEntityId"`
	RelatedEntityType string    `json:"relatedEntityType"`
	Category          string    `json:"category"`
	FileName          string    `json:"fileName"`
	OriginalName      string    `json:"originalName"`
	ContentType       string    `json:"contentType"`
	Size              int64     `json:"size"`
	StoragePath       string    `json:"storagePath"`
	Checksum          string    `json:"checksum"`
	IsDeleted         bool      `json:"isDeleted"`
	UploadedBy        string    `json:"uploadedBy"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

var Documents = Table[Document]{
	Name: "documents",
	Columns: []string{"id", "claim_id", "related_entity_id", "related_entity_type", "category", "file_name",
		"original_name", "content_type", "size_bytes", "storage_path", "checksum", "is_deleted", "uploaded_by",
		"created_at", "updated_at"},
	Fields: func(d *Document) []any {
		return []any{&d.ID, &d.ClaimID, &d.RelatedEntityID, &d.RelatedEntityType, &d.Category, &d.FileName,
			&d.OriginalName, &d.ContentType, &d.Size, &d.StoragePath, &d.Checksum, &d.IsDeleted, &d.UploadedBy,
			&d.CreatedAt, &d.UpdatedAt}
	},
	OrderBy: "created_at DESC",
}

// DictionaryItem és una entrada dels diccionaris (tipus de risc, de dany, estats).
type DictionaryItem struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

var DictionaryItems = Table[DictionaryItem]{
	Name:    "dictionary_items",
	Columns: []string{"id", "kind", "code", "name", "description", "is_active", "created_at", "updated_at"},
	Fields: func(d *DictionaryItem) []any {
		return []any{&d.ID, &d.Kind, &d.Code, &d.Name, &d.Description, &d.IsActive, &d.CreatedAt, &d.UpdatedAt}
	},
	OrderBy: "name",
}

type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TaxID     string    `json:"taxId"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var Clients = Table[Client]{
	Name:    "clients",
	Columns: []string{"id", "name", "tax_id", "email", "phone", "address", "created_at", "updated_at"},
	Fields: func(c *Client) []any {
		return []any{&c.ID, &c.Name, &c.TaxID, &c.Email, &c.Phone, &c.Address, &c.CreatedAt, &c.UpdatedAt}
	},
	OrderBy: "name",
}

type CaseHandler struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	UserID    *string   `json:"userId"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var CaseHandlers = Table[CaseHandler]{
	Name:    "case_handlers",
	Columns: []string{"id", "name", "email", "phone", "user_id", "is_active", "created_at", "updated_at"},
	Fields: func(c *CaseHandler) []any {
		return []any{&c.ID, &c.Name, &c.Email, &c.Phone, &c.UserID, &c.IsActive, &c.CreatedAt, &c.UpdatedAt}
	},
	OrderBy: "name",
}

type User struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	DisplayName      string    `json:"displayName"`
	PasswordHash     string    `json:"-"`
	DefaultHandlerID *string   `json:"defaultHandlerId"`
	IsActive         bool      `json:"isActive"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
	Roles            []string  `json:"roles"`
}

var Users = Table[User]{
	Name: "users",
	Columns: []string{"id", "username", "email", "display_name", "password_hash", "default_handler_id",
		"is_active", "created_at", "updated_at"},
	Fields: func(u *User) []any {
		return []any{&u.ID, &u.Username, &u.Email, &u.DisplayName, &u.PasswordHash, &u.DefaultHandlerID,
			&u.IsActive, &u.CreatedAt, &u.UpdatedAt}
	},
	OrderBy: "username",
}

type LeaveRequest struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var LeaveRequests = Table[LeaveRequest]{
	Name: "leave_requests",
	Columns: []string{"id", "user_id", "start_date", "end_date", "kind", "status", "comment",
		"created_at", "updated_at"},
	Fields: func(l *LeaveRequest) []any {
		return []any{&l.ID, &l.UserID, &l.StartDate, &l.EndDate, &l.Kind, &l.Status, &l.Comment,
			&l.CreatedAt, &l.UpdatedAt}
	},
	OrderBy: "start_date DESC",
}

// EventRule lliga una expressió cron amb un sinistre i un tipus d'esdeveniment.
type EventRule struct {
	ID        string    `json:"id"`
	ClaimID   string    `json:"claimId"`
	Cron      string    `json:"cron"`
	Event     string    `json:"event"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var EventRules = Table[EventRule]{
	Name:    "event_rules",
	Columns: []string{"id", "claim_id", "cron", "event_type", "is_active", "created_at", "updated_at"},
	Fields: func(r *EventRule) []any {
		return []any{&r.ID, &r.ClaimID, &r.Cron, &r.Event, &r.IsActive, &r.CreatedAt, &r.UpdatedAt}
	},
	OrderBy: "created_at",
}

type EventRuleHistory struct {
	ID           string    `json:"id"`
	RuleID       string    `json:"ruleId"`
	JobID        string    `json:"jobId"`
	ScheduledFor time.Time `json:"scheduledFor"`
	CreatedAt    time.Time `json:"createdAt"`
}

var EventRuleHistories = Table[EventRuleHistory]{
	Name:    "event_rule_history",
	Columns: []string{"id", "rule_id", "job_id", "scheduled_for", "created_at"},
	Fields: func(h *EventRuleHistory) []any {
		return []any{&h.ID, &h.RuleID, &h.JobID, &h.ScheduledFor, &h.CreatedAt}
	},
	OrderBy: "scheduled_for DESC",
}
