package model

import (
	"time"

	"gorm.io/datatypes"
)

type DashboardKPIs struct {
	TotalTenants    int64  `json:"totalTenants"`
	TenantsTrend    string `json:"tenantsTrend"`
	ActiveUsers     int64  `json:"activeUsers"`
	UsersTrend      string `json:"usersTrend"`
	TotalLoans      int64  `json:"totalLoans"`
	LoansTrend      string `json:"loansTrend"`
	DisbursedAmount string `json:"disbursedAmount"`
	AmountTrend     string `json:"amountTrend"`
}

type MonthAmount struct {
	Month  string  `json:"month"`
	Amount float64 `json:"amount"`
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

type ActivityItem struct {
	User   string    `json:"user"`
	Action string    `json:"action"`
	Time   time.Time `json:"time"`
}

type DashboardCharts struct {
	MonthlyDisbursement    []MonthAmount  `json:"monthlyDisbursement"`
	LoanStatusDistribution []StatusCount  `json:"loanStatusDistribution"`
	RecentActivity         []ActivityItem `json:"recentActivity"`
}

const DashboardSnapshotID = 1

// DashboardSnapshot is the single precomputed row behind /adminpanel/dashboard.
type DashboardSnapshot struct {
	ID          int64                              `json:"-"            gorm:"primaryKey;column:id"`
	KPIs        datatypes.JSONType[DashboardKPIs]   `json:"kpis"         gorm:"column:kpis;not null"`
	Charts      datatypes.JSONType[DashboardCharts] `json:"charts"       gorm:"column:charts;not null"`
	RefreshedAt *time.Time                         `json:"refreshed_at" gorm:"column:refreshed_at"`
}

func (DashboardSnapshot) TableName() string { return "dashboard_snapshots" }

func EmptyDashboardSnapshot() *DashboardSnapshot {
	return &DashboardSnapshot{
		ID: DashboardSnapshotID,
		KPIs: datatypes.NewJSONType(DashboardKPIs{
			TenantsTrend:    "+0%",
			UsersTrend:      "+0%",
			LoansTrend:      "+0%",
			DisbursedAmount: "₹0",
			AmountTrend:     "+0%",
		}),
		Charts: datatypes.NewJSONType(DashboardCharts{
			MonthlyDisbursement:    []MonthAmount{},
			LoanStatusDistribution: []StatusCount{},
			RecentActivity:         []ActivityItem{},
		}),
	}
}
