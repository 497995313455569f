package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Processed message dedup set pruning, daily at 03:00
	CronSchedulePruneProcessed string `env:"CRON_SCHEDULE_PRUNE_PROCESSED" envDefault:"0 0 3 * * *"`
}
