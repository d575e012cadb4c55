package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

func LoadMonitorConfig(filename string) (*MonitorConfig, error) {
	viper.SetConfigName(filename)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	var config MonitorConfig
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("cannot read the file %w", err)
	}
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error reading the config file %w", err)
	}
	return &config, nil
}

func GetDefaultConfig() *MonitorConfig {
	return &MonitorConfig{
		LimitSchools:        20,
		LimitPagesPerSchool: 3,
		MaxPagesPerRun:      150,
		Schedule:            "@every 6h",
		Fetch: FetchConfig{
			PerDomainDelay:   800 * time.Millisecond,
			InterSchoolDelay: 100 * time.Millisecond,
			RequestTimeout:   20 * time.Second,
			ProxyBaseURL:     "https://r.jina.ai/",
			UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36",
		},
		Mongo: MongoConfig{
			URI:          "mongodb://localhost:27017",
			DBName:       "schoolwatch",
			SnapshotColl: "page_snapshots",
			AnnounceColl: "announcements",
		},
		DB: PostgresConfig{
			Host:     "localhost",
			Port:     5433,
			User:     "admin",
			Password: "secret",
			DBName:   "schoolwatch_db",
			SSL:      false,
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Enabled: false,
		},
		Extractor: ExtractorConfig{
			CacheTTL: 7 * 24 * time.Hour,
		},
		API: APIConfig{
			HTTPAddr: ":8080",
		},
	}
}
