package config

type StoreConfig struct {
	// SqliteEnabled controls whether stores write through to SQLite.
	// When false, everything stays in process memory.
	SqliteEnabled bool `env:"SQLITE_ENABLED"`

	// SqlitePath is the database file path. ":memory:" is valid.
	SqlitePath string `env:"SQLITE_PATH"`
}

func NewStoreConfig() *StoreConfig {
	conf := &StoreConfig{
		SqliteEnabled: true,
		SqlitePath:    ":memory:",
	}
	resolveConfig(conf)
	return conf
}
