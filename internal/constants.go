package internal

const (
	DotEnvPath        = "./.env"
	MigrationsDir     = "migrations"
	DBTimestampLayout = "2006-01-02 15:04:05"
	BuildDirLayout    = "20060102_150405000"
)
