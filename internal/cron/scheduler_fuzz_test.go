package cron

import "testing"

func FuzzParseSchedule(f *testing.F) {
	f.Add("0 * * * *")
	f.Add("*/15 * * * *")
	f.Add("0 3 * * 0")
	f.Add("invalid")
	f.Add("")
	f.Add("60 * * * *")
	f.Add("0 25 * * *")

	f.Fuzz(func(_ *testing.T, expr string) {
		// Must not panic; errors are expected.
		_ = ParseSchedule(expr)
	})
}
