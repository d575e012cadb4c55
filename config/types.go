package config

import "time"

type MonitorConfig struct {
	LimitSchools        int
	LimitPagesPerSchool int
	MaxPagesPerRun      int
	Schedule            string
	Fetch               FetchConfig
	Mongo               MongoConfig
	DB                  PostgresConfig
	Redis               RedisConfig
	Extractor           ExtractorConfig
	API                 APIConfig
}

type FetchConfig struct {
	PerDomainDelay   time.Duration
	InterSchoolDelay time.Duration
	RequestTimeout   time.Duration
	ProxyBaseURL     string
	UserAgent        string
}

type ExtractorConfig struct {
	BaseURL  string
	APIKey   string
	Model    string
	CacheTTL time.Duration
}

type APIConfig struct {
	HTTPAddr string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

type MongoConfig struct {
	URI          string
	DBName       string
	SnapshotColl string
	AnnounceColl string
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSL      bool
}
