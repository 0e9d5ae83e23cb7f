package model

import (
	"gorm.io/datatypes"
)

type Report struct {
	Model
	TenantRef
	Name        string            `json:"name"          gorm:"column:name;size:200;not null"        validate:"required,max=200"`
	ReportType  string            `json:"report_type"   gorm:"column:report_type;size:30;not null"  validate:"required,oneof=RISK PORTFOLIO COLLECTION BORROWER"`
	Filters     datatypes.JSONMap `json:"filters"       gorm:"column:filters"`
	CreatedByID *int64            `json:"created_by_id" gorm:"column:created_by_id"`
}

func (Report) TableName() string { return "reports" }

type Analytics struct {
	Model
	TenantRef
	Metric   string  `json:"metric"     gorm:"column:metric;size:200;not null" validate:"required,max=200"`
	Value    float64 `json:"value"      gorm:"column:value;not null"`
	AsOfDate Date    `json:"as_of_date" gorm:"column:as_of_date;not null"      validate:"required"`
}

func (Analytics) TableName() string { return "analytics" }

type LabelCount struct {
	Label string `json:"label"`
	Users int64  `json:"users"`
}

type ActivityFeedItem struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Time     string `json:"time"`
}

type Alert struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Time    string `json:"time"`
}

type DashboardStats struct {
	KPIs struct {
		TotalTenants    int64   `json:"totalTenants"`
		TotalBranches   int64   `json:"totalBranches"`
		ActiveUsers     int64   `json:"activeUsers"`
		TotalLoans      int64   `json:"totalLoans"`
		DisbursedAmount string  `json:"disbursedAmount"`
		DisbursedTotal  float64 `json:"disbursedTotal"`
		APIStatus       string  `json:"apiStatus"`
	} `json:"kpis"`
	Charts struct {
		MonthlyDisbursement    []MonthAmount      `json:"monthlyDisbursement"`
		LoanStatusDistribution []StatusCount      `json:"loanStatusDistribution"`
		RecentActivity         []ActivityFeedItem `json:"recentActivity"`
		UsersPerBranch         []LabelCount       `json:"usersPerBranch"`
	} `json:"charts"`
	Alerts []Alert `json:"alerts"`
}

type DisbursementFilter struct {
	TenantID  *int64
	StartDate *Date
	EndDate   *Date
	BranchID  *int64
}

type DailyDisbursementRow struct {
	Date   string  `json:"date"`
	Branch string  `json:"branch"`
	Count  int64   `json:"count"`
	Amount float64 `json:"amount"`
}

type BranchPerformanceRow struct {
	Branch      string  `json:"branch"`
	Loans       int64   `json:"loans"`
	Disbursed   float64 `json:"disbursed"`
	Collections float64 `json:"collections"`
	NPA         float64 `json:"npa"`
	Rating      string  `json:"rating"`
}

type ReasonCount struct {
	Reason     string `json:"reason"`
	Count      int64  `json:"count"`
	Percentage string `json:"percentage"`
}

type ApprovalBranchRow struct {
	Branch   string `json:"branch"`
	Total    int64  `json:"total"`
	Approved int64  `json:"approved"`
	Rejected int64  `json:"rejected"`
	Pending  int64  `json:"pending"`
}

type LoanApprovalReport struct {
	Total            int64               `json:"total"`
	Approved         int64               `json:"approved"`
	Rejected         int64               `json:"rejected"`
	Pending          int64               `json:"pending"`
	ApprovalRate     string              `json:"approval_rate"`
	RejectionRate    string              `json:"rejection_rate"`
	RejectionReasons []ReasonCount       `json:"rejection_reasons"`
	Branches         []ApprovalBranchRow `json:"branches"`
}

type NPABucket struct {
	Name   string  `json:"name"`
	Count  int64   `json:"count"`
	Amount float64 `json:"amount"`
}

type NPAReport struct {
	Count      int64       `json:"count"`
	Amount     float64     `json:"amount"`
	ByBranch   []NPABucket `json:"by_branch"`
	ByCategory []NPABucket `json:"by_category"`
}

type RevenueReport struct {
	Total   float64       `json:"total"`
	Monthly []MonthAmount `json:"monthly"`
}

type UserActivityRow struct {
	User                string  `json:"user"`
	Email               string  `json:"email"`
	Role                Role    `json:"role"`
	ApplicationsCreated int64   `json:"applications_created"`
	LastLogin           *string `json:"last_login"`
}

type UserActivityReport struct {
	Users []UserActivityRow `json:"users"`
	KPIs  struct {
		TotalUsers        int64 `json:"total_users"`
		ActiveUsers       int64 `json:"active_users"`
		TotalApplications int64 `json:"total_applications"`
	} `json:"kpis"`
}
