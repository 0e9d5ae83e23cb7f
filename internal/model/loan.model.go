package model

import (
	"time"
)

type LeadStatus string

const (
	LeadNew       LeadStatus = "NEW"
	LeadContacted LeadStatus = "CONTACTED"
	LeadQualified LeadStatus = "QUALIFIED"
	LeadConverted LeadStatus = "CONVERTED"
	LeadLost      LeadStatus = "LOST"
)

type Lead struct {
	Model
	TenantRef
	Name         string     `json:"name"           gorm:"column:name;size:250;not null"     validate:"required,max=250"`
	Email        string     `json:"email"          gorm:"column:email;size:254"             validate:"omitempty,email"`
	Phone        string     `json:"phone"          gorm:"column:phone;size:20"              validate:"omitempty,phone"`
	Company      string     `json:"company"        gorm:"column:company;size:250"`
	Source       string     `json:"source"         gorm:"column:source;size:100"`
	Status       LeadStatus `json:"status"         gorm:"column:status;size:20;not null"    validate:"omitempty,oneof=NEW CONTACTED QUALIFIED CONVERTED LOST"`
	AssignedToID *int64     `json:"assigned_to_id" gorm:"column:assigned_to_id"`
}

func (Lead) TableName() string { return "leads" }

type KYCStatus string

const (
	KYCPending  KYCStatus = "PENDING"
	KYCVerified KYCStatus = "VERIFIED"
	KYCRejected KYCStatus = "REJECTED"
)

type Customer struct {
	Model
	TenantRef
	LeadID    *int64    `json:"lead_id"    gorm:"column:lead_id;uniqueIndex"`
	Name      string    `json:"name"       gorm:"column:name;size:250;not null"  validate:"required,max=250"`
	Email     string    `json:"email"      gorm:"column:email;size:254"          validate:"omitempty,email"`
	Phone     string    `json:"phone"      gorm:"column:phone;size:20"           validate:"omitempty,phone"`
	Company   string    `json:"company"    gorm:"column:company;size:250"`
	KYCStatus KYCStatus `json:"kyc_status" gorm:"column:kyc_status;size:20;not null" validate:"omitempty,oneof=PENDING VERIFIED REJECTED"`
}

func (Customer) TableName() string { return "customers" }

type LeadActivity struct {
	ID        int64     `json:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	LeadID    int64     `json:"lead_id"    gorm:"column:lead_id;not null;index"`
	UserID    *int64    `json:"user_id"    gorm:"column:user_id"`
	Action    string    `json:"action"     gorm:"column:action;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (LeadActivity) TableName() string { return "lead_activities" }

type ApplicationStatus string

const (
	AppNew         ApplicationStatus = "NEW"
	AppSubmitted   ApplicationStatus = "SUBMITTED"
	AppUnderReview ApplicationStatus = "UNDER_REVIEW"
	AppApproved    ApplicationStatus = "APPROVED"
	AppRejected    ApplicationStatus = "REJECTED"
	AppDisbursed   ApplicationStatus = "DISBURSED"
	AppClosed      ApplicationStatus = "CLOSED"
)

var ApplicationStatuses = []ApplicationStatus{AppNew, AppSubmitted, AppUnderReview, AppApproved, AppRejected, AppDisbursed, AppClosed}

func (s ApplicationStatus) Valid() bool {
	for _, v := range ApplicationStatuses {
		if v == s {
			return true
		}
	}
	return false
}

type LoanApplication struct {
	Model
	TenantRef
	ApplicationID string            `json:"application_id"  gorm:"column:application_id;size:36;uniqueIndex;not null"`
	BranchID      *int64            `json:"branch_id"       gorm:"column:branch_id;index"`
	CustomerID    int64             `json:"customer_id"     gorm:"column:customer_id;not null;index" validate:"required"`
	LoanProductID *int64            `json:"loan_product_id" gorm:"column:loan_product_id"`
	Amount        float64           `json:"amount"          gorm:"column:amount;not null"             validate:"gt=0"`
	TenureMonths  int               `json:"tenure_months"   gorm:"column:tenure_months;not null"      validate:"gt=0"`
	InterestRate  *float64          `json:"interest_rate"   gorm:"column:interest_rate"               validate:"omitempty,gte=0,lte=100"`
	Status        ApplicationStatus `json:"status"          gorm:"column:status;size:30;not null;index" validate:"omitempty,oneof=NEW SUBMITTED UNDER_REVIEW APPROVED REJECTED DISBURSED CLOSED"`
	CreatedByID   *int64            `json:"created_by_id"   gorm:"column:created_by_id"`
}

func (LoanApplication) TableName() string { return "loan_applications" }

type ChangeStatusRequest struct {
	Status string `json:"status"`
}

type KYCDetail struct {
	Model
	LoanApplicationID int64     `json:"loan_application_id" gorm:"column:loan_application_id;not null;index" validate:"required"`
	KYCType           string    `json:"kyc_type"            gorm:"column:kyc_type;size:20;not null"          validate:"required,oneof=AADHAAR PAN VOTER_ID PASSPORT"`
	DocumentNumber    string    `json:"document_number"     gorm:"column:document_number;size:200;not null"  validate:"required,max=200"`
	Status            KYCStatus `json:"status"              gorm:"column:status;size:20;not null"            validate:"omitempty,oneof=PENDING VERIFIED REJECTED"`
}

func (KYCDetail) TableName() string { return "kyc_details" }

type AssessmentStatus string

const (
	AssessmentUnderReview AssessmentStatus = "UNDER_REVIEW"
	AssessmentApproved    AssessmentStatus = "APPROVED"
	AssessmentRejected    AssessmentStatus = "REJECTED"
)

type CreditAssessment struct {
	Model
	LoanApplicationID int64            `json:"loan_application_id" gorm:"column:loan_application_id;not null;uniqueIndex" validate:"required"`
	Score             *int             `json:"score"               gorm:"column:score"                                   validate:"omitempty,gte=0,lte=900"`
	Remarks           string           `json:"remarks"             gorm:"column:remarks"`
	Status            AssessmentStatus `json:"status"              gorm:"column:status;size:20;not null"                 validate:"omitempty,oneof=UNDER_REVIEW APPROVED REJECTED"`
	ApprovedLimit     float64          `json:"approved_limit"      gorm:"column:approved_limit;not null;default:0"       validate:"gte=0"`
}

func (CreditAssessment) TableName() string { return "credit_assessments" }

type UpdateScoreRequest struct {
	Score         *int              `json:"score"`
	Remarks       *string           `json:"remarks"`
	ApprovedLimit *float64          `json:"approved_limit"`
	Status        *AssessmentStatus `json:"status"`
}

type LoanAccount struct {
	Model
	AccountID            string     `json:"account_id"            gorm:"column:account_id;size:36;uniqueIndex;not null"`
	LoanApplicationID    int64      `json:"loan_application_id"   gorm:"column:loan_application_id;not null;uniqueIndex" validate:"required"`
	OutstandingPrincipal float64    `json:"outstanding_principal" gorm:"column:outstanding_principal;not null;default:0" validate:"gte=0"`
	EMIAmount            *float64   `json:"emi_amount"            gorm:"column:emi_amount"                              validate:"omitempty,gte=0"`
	TenorMonths          *int       `json:"tenor_months"          gorm:"column:tenor_months"                            validate:"omitempty,gt=0"`
	InterestRate         *float64   `json:"interest_rate"         gorm:"column:interest_rate"                           validate:"omitempty,gte=0,lte=100"`
	DisbursedAt          *time.Time `json:"disbursed_at"          gorm:"column:disbursed_at"`
}

func (LoanAccount) TableName() string { return "loan_accounts" }

func (a *LoanAccount) Disbursed() bool { return a.DisbursedAt != nil }

type DisburseRequest struct {
	DisbursedAt          *time.Time `json:"disbursed_at"`
	OutstandingPrincipal *float64   `json:"outstanding_principal" validate:"omitempty,gte=0"`
}

type Repayment struct {
	Model
	LoanAccountID        int64     `json:"loan_account_id"       gorm:"column:loan_account_id;not null;index" validate:"required"`
	Amount               float64   `json:"amount"                gorm:"column:amount;not null"                validate:"gt=0"`
	PaidAt               time.Time `json:"paid_at"               gorm:"column:paid_at;not null"`
	TransactionReference string    `json:"transaction_reference" gorm:"column:transaction_reference;size:200"`
}

func (Repayment) TableName() string { return "repayments" }

type Collection struct {
	Model
	LoanAccountID int64     `json:"loan_account_id" gorm:"column:loan_account_id;not null;index" validate:"required"`
	CollectorID   *int64    `json:"collector_id"    gorm:"column:collector_id"`
	Amount        float64   `json:"amount"          gorm:"column:amount;not null"                validate:"gt=0"`
	CollectedAt   time.Time `json:"collected_at"    gorm:"column:collected_at;not null"`
	Remarks       string    `json:"remarks"         gorm:"column:remarks"`
}

func (Collection) TableName() string { return "collections" }
