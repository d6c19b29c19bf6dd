package config

// Defaults for local development.
const (
	// DefaultDatabaseHost is the Postgres host used when none is configured
	DefaultDatabaseHost = "localhost"

	// DefaultDatabaseName is the Postgres database holding the catalog
	DefaultDatabaseName = "catalog"

	// DefaultTasksDBPath is the SQLite file backing the durable task queue
	DefaultTasksDBPath = "./data/catalog-tasks.db"

	// ConfigFileEnv names an optional YAML/TOML/JSON file with the same keys
	// as the environment variables, in lower case.
	ConfigFileEnv = "CATALOG_CONFIG_FILE"
)
