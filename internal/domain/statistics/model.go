package statistics

import (
	"strings"
	"time"

	"github.com/medivision/medivision/internal/platform/apperr"
)

const dayLayout = "2006-01-02"

// DailyStat is the stored rollup of one calendar day. Day is the civil date
// at midnight UTC.
type DailyStat struct {
	Day          time.Time
	TotalRevenue float64
	TotalProfit  float64
}

// Totals is revenue and profit over some set of line items.
type Totals struct {
	Revenue float64
	Profit  float64
}

type GroupBy string

const (
	GroupNone    GroupBy = "none"
	GroupDaily   GroupBy = "daily"
	GroupMonthly GroupBy = "monthly"
	GroupYearly  GroupBy = "yearly"
)

// ParseGroupBy is case-insensitive; empty means GroupNone.
func ParseGroupBy(s string) (GroupBy, error) {
	switch g := GroupBy(strings.ToLower(strings.TrimSpace(s))); g {
	case "":
		return GroupNone, nil
	case GroupNone, GroupDaily, GroupMonthly, GroupYearly:
		return g, nil
	}
	return "", apperr.Validation("groupBy must be one of none, daily, monthly, yearly")
}

// Point is one entry of a statistics series. Period is YYYY-MM-DD, YYYY-MM
// or YYYY depending on the grouping.
type Point struct {
	Period       string  `json:"period" csv:"period"`
	TotalRevenue float64 `json:"totalRevenue" csv:"total_revenue"`
	TotalProfit  float64 `json:"totalProfit" csv:"total_profit"`
}

// Query selects a series. Nil bounds fall back to a window that depends on
// GroupBy.
type Query struct {
	Start   *time.Time
	End     *time.Time
	GroupBy GroupBy
}

type Summary struct {
	Start              string  `json:"startDate"`
	End                string  `json:"endDate"`
	Days               int     `json:"days"`
	TotalRevenue       float64 `json:"totalRevenue"`
	TotalProfit        float64 `json:"totalProfit"`
	MeanDailyRevenue   float64 `json:"meanDailyRevenue"`
	MedianDailyRevenue float64 `json:"medianDailyRevenue"`
	BestDay            *Point  `json:"bestDay"`
}
