package cron

import "strings"

// Normalize converts a 5-field "minute hour day month weekday" cron
// expression to the 6-field second-precision form robfig/cron/v3's
// default parser expects, by prepending "0" for seconds (spec §4.12).
// A 6-field expression (or a descriptor like "@hourly") is returned
// unchanged.
func Normalize(expr string) string {
	expr = strings.TrimSpace(expr)
	if strings.HasPrefix(expr, "@") {
		return expr
	}
	fields := strings.Fields(expr)
	if len(fields) == 5 {
		return "0 " + expr
	}
	return expr
}
