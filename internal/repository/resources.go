package repository

import (
	"gorm.io/gorm"
)

// Store options of the flat resources, grouped by API module.

func TenantOptions() StoreOptions {
	return StoreOptions{
		SearchColumns: []string{"name", "email", "city"},
		Filters:       map[string]string{"tenant_type": "tenant_type", "is_active": "is_active", "city": "city"},
		Order:         "tenants.created_at DESC, tenants.id DESC",
		TenantScope: func(db *gorm.DB, tenantID int64) *gorm.DB {
			return db.Where("tenants.id = ?", tenantID)
		},
	}
}

func BranchOptions() StoreOptions {
	return StoreOptions{
		SearchColumns: []string{"name", "branch_code"},
		Filters:       map[string]string{"is_active": "is_active", "tenant_id": "tenant_id"},
		Order:         "branches.name ASC",
	}
}

func FinancialYearOptions() StoreOptions {
	return StoreOptions{
		SearchColumns: []string{"name"},
		Filters:       map[string]string{"is_active": "is_active"},
		Order:         "financial_years.start_date DESC",
	}
}

func ReportingPeriodOptions() StoreOptions {
	return StoreOptions{
		SearchColumns: []string{"name"},
		Order:         "reporting_periods.start_date DESC",
	}
}

func HolidayOptions() StoreOptions {
	return StoreOptions{
		SearchColumns: []string{"name"},
		Filters:       map[string]string{"is_recurring": "is_recurring"},
		Order:         "holidays.date ASC",
	}
}

func CategoryOptions() StoreOptions {
	return StoreOptions{
		SearchColumns: []string{"name", "description"},
		Filters:       map[string]string{"category_type": "category_type", "is_active": "is_active"},
		Order:         "categories.name ASC",
	}
}

func RuleConfigOptions() StoreOptions {
	return StoreOptions{}
}

func LeadOptions() StoreOptions {
	return StoreOptions{
		SearchColumns: []string{"name", "email", "phone", "company"},
		Filters:       map[string]string{"status": "status", "source": "source", "assigned_to": "assigned_to_id"},
		Order:         "leads.created_at DESC, leads.id DESC",
	}
}

func CustomerOptions() StoreOptions {
	return StoreOptions{
		SearchColumns: []string{"name", "email", "phone", "company"},
		Filters:       map[string]string{"kyc_status": "kyc_status"},
	}
}

func LeadActivityOptions() StoreOptions {
	return StoreOptions{
		SearchColumns: []string{"action"},
		Filters:       map[string]string{"lead": "lead_id"},
		Order:         "lead_activities.created_at DESC, lead_activities.id DESC",
		TenantScope: func(db *gorm.DB, tenantID int64) *gorm.DB {
			return db.Where("lead_id IN (SELECT id FROM leads WHERE tenant_id = ?)", tenantID)
		},
	}
}

func LoanApplicationOptions() StoreOptions {
	return StoreOptions{
		SearchColumns: []string{"application_id"},
		Filters: map[string]string{
			"status": "status", "branch": "branch_id", "customer": "customer_id", "loan_product": "loan_product_id",
		},
		Order: "loan_applications.created_at DESC, loan_applications.id DESC",
	}
}

func KYCDetailOptions() StoreOptions {
	return StoreOptions{
		SearchColumns: []string{"document_number"},
		Filters:       map[string]string{"status": "status", "kyc_type": "kyc_type", "loan_application": "loan_application_id"},
		TenantScope:   ScopeByApplication,
	}
}

func CreditAssessmentOptions() StoreOptions {
	return StoreOptions{
		Filters:     map[string]string{"status": "status", "loan_application": "loan_application_id"},
		TenantScope: ScopeByApplication,
	}
}

func LoanAccountOptions() StoreOptions {
	return StoreOptions{
		SearchColumns: []string{"account_id"},
		Filters:       map[string]string{"loan_application": "loan_application_id"},
		TenantScope:   ScopeByApplication,
	}
}

func RepaymentOptions() StoreOptions {
	return StoreOptions{
		SearchColumns: []string{"transaction_reference"},
		Filters:       map[string]string{"loan_account": "loan_account_id"},
		Order:         "repayments.paid_at DESC, repayments.id DESC",
		TenantScope:   ScopeByAccount,
	}
}

func CollectionOptions() StoreOptions {
	return StoreOptions{
		SearchColumns: []string{"remarks"},
		Filters:       map[string]string{"loan_account": "loan_account_id", "collector": "collector_id"},
		Order:         "collections.collected_at DESC, collections.id DESC",
		TenantScope:   ScopeByAccount,
	}
}

func DocumentOptions() StoreOptions {
	return StoreOptions{
		SearchColumns: []string{"file_name", "purpose"},
		Filters:       map[string]string{"document_type": "document_type", "customer": "customer_id"},
	}
}

func CommunicationOptions() StoreOptions {
	return StoreOptions{
		SearchColumns: []string{"recipient", "subject"},
		Filters:       map[string]string{"channel": "channel", "status": "status", "customer": "customer_id"},
	}
}

func ComplianceCheckOptions() StoreOptions {
	return StoreOptions{
		SearchColumns: []string{"description"},
		Filters:       map[string]string{"check_type": "check_type", "status": "status"},
	}
}

func RiskFlagOptions() StoreOptions {
	return StoreOptions{
		SearchColumns: []string{"title", "details"},
		Filters:       map[string]string{"severity": "severity", "related_check": "related_check_id"},
	}
}

func APIIntegrationOptions() StoreOptions {
	return StoreOptions{
		SearchColumns: []string{"name", "provider"},
		Filters:       map[string]string{"provider": "provider", "is_active": "is_active"},
	}
}

func WebhookLogOptions() StoreOptions {
	return StoreOptions{
		SearchColumns: []string{"event"},
		Filters:       map[string]string{"event": "event", "integration": "integration_id"},
		Order:         "webhook_logs.created_at DESC, webhook_logs.id DESC",
	}
}

func ClientOptions() StoreOptions {
	return StoreOptions{
		SearchColumns: []string{"full_name", "email", "mobile"},
		Filters:       map[string]string{"kyc_status": "kyc_status"},
	}
}

func AdminLeadOptions() StoreOptions {
	return StoreOptions{
		SearchColumns: []string{"name", "email", "mobile"},
		Filters:       map[string]string{"status": "status", "source": "source"},
	}
}

func ChargeOptions() StoreOptions {
	return StoreOptions{
		SearchColumns: []string{"name", "description"},
		Filters:       map[string]string{"charge_type": "charge_type"},
	}
}

func DocumentTypeOptions() StoreOptions {
	return StoreOptions{
		SearchColumns: []string{"name", "code"},
		Filters:       map[string]string{"category": "category", "is_required": "is_required"},
	}
}

func LoanProductOptions() StoreOptions {
	return StoreOptions{
		SearchColumns: []string{"name", "description"},
		Filters:       map[string]string{"loan_type": "loan_type", "is_active": "is_active"},
		Preload:       []string{"Charges", "RequiredDocuments"},
	}
}

func NotificationTemplateOptions() StoreOptions {
	return StoreOptions{
		SearchColumns: []string{"name", "subject"},
		Filters:       map[string]string{"template_type": "template_type", "is_active": "is_active"},
	}
}

func RoleOptions() StoreOptions {
	return StoreOptions{
		SearchColumns: []string{"name", "description"},
		Order:         "role_masters.name ASC",
	}
}

func catalogOptions(search ...string) StoreOptions {
	return StoreOptions{
		SearchColumns: search,
		LookupColumn:  "uuid",
		SoftDelete:    true,
	}
}

func SubscriptionOptions() StoreOptions {
	opts := catalogOptions("subscription_name")
	opts.Filters = map[string]string{"type_of": "type_of", "status": "status"}
	return opts
}

func CouponOptions() StoreOptions {
	opts := catalogOptions("coupon_code")
	opts.Preload = []string{"Subscriptions"}
	return opts
}

func SubscriberOptions() StoreOptions {
	opts := catalogOptions("name", "email", "phone")
	opts.Filters = map[string]string{"subscription": "subscription_id"}
	return opts
}

func EmploymentTypeOptions() StoreOptions {
	return catalogOptions("emp_name")
}

func OccupationTypeOptions() StoreOptions {
	return catalogOptions("occ_name")
}

func SavedReportOptions() StoreOptions {
	return StoreOptions{
		SearchColumns: []string{"name"},
		Filters:       map[string]string{"report_type": "report_type"},
	}
}

func AnalyticsOptions() StoreOptions {
	return StoreOptions{
		SearchColumns: []string{"metric"},
		Filters:       map[string]string{"metric": "metric"},
		Order:         "analytics.as_of_date DESC, analytics.id DESC",
	}
}
