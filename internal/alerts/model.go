package alerts

// Alert is the daily summary row. AlertOn is the calendar date
// ("YYYY-MM-DD"); at most one alert exists per date.
type Alert struct {
	AlertID     int64
	AlertOn     string
	Name        string
	Description string
	Seen        bool
}
