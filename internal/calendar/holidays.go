package calendar

// defaultHolidays is the fallback exception set used when no calendar file
// is configured. It covers the 2024-2025 CN exchange holidays; deployments
// should maintain config/calendar.yaml instead of relying on this list.
var defaultHolidays = []string{
	// 2024
	"2024-01-01",
	"2024-02-09", "2024-02-12", "2024-02-13", "2024-02-14",
	"2024-02-15", "2024-02-16",
	"2024-04-04", "2024-04-05",
	"2024-05-01", "2024-05-02", "2024-05-03",
	"2024-06-10",
	"2024-09-16", "2024-09-17",
	"2024-10-01", "2024-10-02", "2024-10-03", "2024-10-04",
	"2024-10-07",
	// 2025
	"2025-01-01",
	"2025-01-28", "2025-01-29", "2025-01-30", "2025-01-31",
	"2025-02-03", "2025-02-04",
	"2025-04-04",
	"2025-05-01", "2025-05-02",
	"2025-06-02",
	"2025-10-01", "2025-10-02", "2025-10-03",
	"2025-10-06", "2025-10-07",
}
