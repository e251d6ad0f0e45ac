package models

import "time"

// TasksSummary counts tasks created in a date range by status bucket.
type TasksSummary struct {
	NewTasks   int64 `json:"newTasks"`
	Ongoing    int64 `json:"ongoing"`
	Unassigned int64 `json:"unassigned"`
	Assigned   int64 `json:"assigned"`
	Completed  int64 `json:"completed"`
}

type ProfitExpenses struct {
	TotalProfit   float64 `json:"totalProfit"`
	TotalExpenses float64 `json:"totalExpenses"`
}

// DepartmentTotal keeps the `_id` key produced by the grouping stage.
type DepartmentTotal struct {
	Department string  `bson:"_id" json:"_id"`
	Total      float64 `bson:"total" json:"total"`
}

type SalesRanking struct {
	ByDepartment []DepartmentTotal `json:"byDepartment"`
}

// Dashboard bundles the three report summaries for one range.
type Dashboard struct {
	Start          time.Time      `json:"start"`
	End            time.Time      `json:"end"`
	TasksSummary   TasksSummary   `json:"tasksSummary"`
	ProfitExpenses ProfitExpenses `json:"profitExpenses"`
	SalesRanking   SalesRanking   `json:"salesRanking"`
}

// Presence is a user seen through the heartbeat endpoint.
type Presence struct {
	UserID   string    `json:"userId"`
	Name     string    `json:"name"`
	Role     Role      `json:"role"`
	LastSeen time.Time `json:"lastSeen"`
}
