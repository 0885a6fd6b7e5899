package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env        string           `yaml:"env"`        // Env is the current environment: local, development, production.
	Postgres   PostgresConfig   `yaml:"postgres"`   // Postgres holds the ledger database configuration.
	Payroll    PayrollConfig    `yaml:"payroll"`    // Payroll holds the ledger identities and asset codes.
	Feed       FeedConfig       `yaml:"feed"`       // Feed holds the exchange-rate feed configuration.
	Settlement SettlementConfig `yaml:"settlement"` // Settlement holds the asset transfer bridge configuration.
}

// PostgresConfig struct holds the configuration details for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string `yaml:"host"`     // Host is the database server address.
	Port     string `yaml:"port"`     // Port is the database server port.
	User     string `yaml:"user"`     // User is the database user.
	Password string `yaml:"password"` // Password is the database user's password.
	Dbname   string `yaml:"db_name"`  // Dbname is the name of the database.
}

// PayrollConfig holds the fixed identities and asset codes of the ledger.
type PayrollConfig struct {
	Admin       string `yaml:"admin"`        // Admin is the administrator account.
	Oracle      string `yaml:"oracle"`       // Oracle is the account the rate feed pushes updates as.
	NativeAsset string `yaml:"native_asset"` // NativeAsset is the asset code native deposits are tracked under.
}

// FeedConfig holds the configuration of the market page the rate feed polls.
type FeedConfig struct {
	URL      string        `yaml:"url"`      // URL is the market data page with asset/rate rows.
	Interval time.Duration `yaml:"interval"` // Interval is the time between feed runs.
}

// SettlementConfig holds the configuration of the external transfer mechanism.
type SettlementConfig struct {
	BaseURL string `yaml:"url"` // BaseURL is the address of the settlement gateway.
}

// MustLoad loads the configuration from a YAML file and returns a Config struct.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		panic("config path is empty")
	}

	// check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}

	viper.SetConfigFile(configPath)
	// CONFIG_PATH may point at a file without a .yaml extension.
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		panic("config error: " + err.Error())
	}

	defFeedIntervalMinutes := 15

	viper.SetDefault("postgres.port", "5432")
	viper.SetDefault("payroll.oracle", "oracle")
	viper.SetDefault("payroll.native_asset", "ETH")
	viper.SetDefault("feed.interval", time.Duration(defFeedIntervalMinutes)*time.Minute)

	return &Config{
		Env: viper.GetString("env"),
		Postgres: PostgresConfig{
			Host:     viper.GetString("postgres.host"),
			Port:     viper.GetString("postgres.port"),
			User:     viper.GetString("postgres.user"),
			Password: viper.GetString("postgres.password"),
			Dbname:   viper.GetString("postgres.db_name"),
		},
		Payroll: PayrollConfig{
			Admin:       viper.GetString("payroll.admin"),
			Oracle:      viper.GetString("payroll.oracle"),
			NativeAsset: viper.GetString("payroll.native_asset"),
		},
		Feed: FeedConfig{
			URL:      viper.GetString("feed.url"),
			Interval: viper.GetDuration("feed.interval"),
		},
		Settlement: SettlementConfig{
			BaseURL: viper.GetString("settlement.url"),
		},
	}
}
