package config

// Default paths for databases
const (
	// DefaultSourceDSN is the default DSN for the transactional orders database
	DefaultSourceDSN = "./orders.db"

	// DefaultAnalyticsDSN is the default DSN for the destination analytics database
	DefaultAnalyticsDSN = "./analytics.db"
)
