package nudge

import "time"

// IsQuietHours reports whether the current moment, evaluated in
// cfg.Timezone, falls within the configured quiet-hours window. The
// window wraps past midnight when Start > End, exactly as
// pi-nudge-engine.py's is_quiet_hours computes it with zoneinfo.
func IsQuietHours(cfg Config, now time.Time) bool {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Warn("unknown timezone, defaulting to UTC for quiet-hours check", "timezone", cfg.Timezone, "error", err)
		loc = time.UTC
	}
	hour := now.In(loc).Hour()

	if cfg.QuietHours.Start > cfg.QuietHours.End {
		return hour >= cfg.QuietHours.Start || hour < cfg.QuietHours.End
	}
	return hour >= cfg.QuietHours.Start && hour < cfg.QuietHours.End
}
