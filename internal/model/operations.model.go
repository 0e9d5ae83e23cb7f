package model

import (
	"time"

	"gorm.io/datatypes"
)

type Document struct {
	Model
	TenantRef
	CustomerID   int64  `json:"customer_id"    gorm:"column:customer_id;not null;index"   validate:"required"`
	DocumentType string `json:"document_type"  gorm:"column:document_type;size:30;not null" validate:"required,oneof=PAN AADHAAR BANK_STATEMENT SALARY_SLIP GST_RETURN OTHERS"`
	UploadedByID *int64 `json:"uploaded_by_id" gorm:"column:uploaded_by_id"`
	FileKey      string `json:"file_key"       gorm:"column:file_key;size:512"`
	FileName     string `json:"file_name"      gorm:"column:file_name;size:255"`
	ContentType  string `json:"content_type"   gorm:"column:content_type;size:100"`
	Size         int64  `json:"size"           gorm:"column:size;not null;default:0"`
	Purpose      string `json:"purpose"        gorm:"column:purpose;size:255"`
}

func (Document) TableName() string { return "documents" }

type DownloadLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Channel string

const (
	ChannelSMS      Channel = "SMS"
	ChannelEmail    Channel = "EMAIL"
	ChannelWhatsApp Channel = "WHATSAPP"
)

type CommunicationStatus string

const (
	CommPending CommunicationStatus = "PENDING"
	CommSent    CommunicationStatus = "SENT"
	CommFailed  CommunicationStatus = "FAILED"
)

type Communication struct {
	Model
	TenantRef
	CustomerID        *int64              `json:"customer_id"         gorm:"column:customer_id;index"`
	To                string              `json:"to"                  gorm:"column:recipient;size:254;not null"  validate:"required"`
	Channel           Channel             `json:"channel"             gorm:"column:channel;size:20;not null"     validate:"required,oneof=SMS EMAIL WHATSAPP"`
	Subject           string              `json:"subject"             gorm:"column:subject;size:300"`
	Message           string              `json:"message"             gorm:"column:message;not null"             validate:"required"`
	Status            CommunicationStatus `json:"status"              gorm:"column:status;size:20;not null;index"`
	ProviderMessageID string              `json:"provider_message_id" gorm:"column:provider_message_id;size:100;index"`
	Error             string              `json:"error"               gorm:"column:error"`
	SentAt            *time.Time          `json:"sent_at"             gorm:"column:sent_at"`
}

func (Communication) TableName() string { return "communications" }

type ComplianceCheck struct {
	Model
	TenantRef
	CheckID     string `json:"check_id"    gorm:"column:check_id;size:36;uniqueIndex;not null"`
	CheckType   string `json:"check_type"  gorm:"column:check_type;size:20;not null" validate:"required,oneof=KYC AML CREDIT RISK"`
	Description string `json:"description" gorm:"column:description"`
	Status      string `json:"status"      gorm:"column:status;size:20;not null"     validate:"omitempty,oneof=PENDING PASSED FAILED"`
}

func (ComplianceCheck) TableName() string { return "compliance_checks" }

type RiskFlag struct {
	Model
	TenantRef
	FlagID         string `json:"flag_id"          gorm:"column:flag_id;size:36;uniqueIndex;not null"`
	Title          string `json:"title"            gorm:"column:title;size:255;not null"    validate:"required,max=255"`
	Details        string `json:"details"          gorm:"column:details"`
	Severity       string `json:"severity"         gorm:"column:severity;size:10;not null"  validate:"required,oneof=LOW MEDIUM HIGH"`
	RelatedCheckID *int64 `json:"related_check_id" gorm:"column:related_check_id"`
}

func (RiskFlag) TableName() string { return "risk_flags" }

type APIIntegration struct {
	Model
	TenantRef
	Name     string            `json:"name"      gorm:"column:name;size:200;not null"     validate:"required,max=200"`
	Provider string            `json:"provider"  gorm:"column:provider;size:100;not null" validate:"required,max=100"`
	Config   datatypes.JSONMap `json:"config"    gorm:"column:config"`
	IsActive bool              `json:"is_active" gorm:"column:is_active;not null"`
}

func (APIIntegration) TableName() string { return "api_integrations" }

func (a *APIIntegration) ApplyDefaults() { a.IsActive = true }

type WebhookLog struct {
	ID            int64          `json:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	TenantID      *int64         `json:"tenant_id"      gorm:"column:tenant_id;index"`
	IntegrationID *int64         `json:"integration_id" gorm:"column:integration_id"`
	Event         string         `json:"event"          gorm:"column:event;size:100"`
	Payload       datatypes.JSON `json:"payload"        gorm:"column:payload"`
	CreatedAt     time.Time      `json:"created_at"     gorm:"column:created_at;autoCreateTime"`
}

func (WebhookLog) TableName() string { return "webhook_logs" }

// DeliveryEvent is the part of a provider callback that updates a communication.
type DeliveryEvent struct {
	Event     string `json:"event"`
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Error     string `json:"error"`
}

type Client struct {
	Model
	TenantID  *int64 `json:"tenant_id"  gorm:"column:tenant_id;index"`
	FullName  string `json:"full_name"  gorm:"column:full_name;size:255;not null" validate:"required,max=255"`
	Email     string `json:"email"      gorm:"column:email;size:254"              validate:"omitempty,email"`
	Mobile    string `json:"mobile"     gorm:"column:mobile;size:20"              validate:"omitempty,phone"`
	KYCStatus string `json:"kyc_status" gorm:"column:kyc_status;size:20;not null;default:Pending"`
}

func (Client) TableName() string { return "clients" }
