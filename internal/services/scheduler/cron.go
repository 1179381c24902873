package scheduler

import (
	"github.com/robfig/cron/v3"
)

// parseCronExpr tries 6-field (with seconds) then 5-field (standard) parsing.
// If timezone is non-empty and non-UTC, it is applied via the CRON_TZ= prefix.
func parseCronExpr(expr string, timezone string) (cron.Schedule, error) {
	if timezone != "" && timezone != "UTC" {
		expr = "CRON_TZ=" + timezone + " " + expr
	}
	parser6 := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser6.Parse(expr)
	if err == nil {
		return sched, nil
	}
	parser5 := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser5.Parse(expr)
}
