package config

import "time"

type Config struct {
	SQL        SQLConfig        `json:"sql"`
	Import     ImportConfig     `json:"import"`
	Categorize CategorizeConfig `json:"categorize"`
	Schedule   ScheduleConfig   `json:"schedule"`
	Influx     InfluxConfig     `json:"influx"`
	Ynab       YnabConfig       `json:"ynab"`
}

type Secrets struct {
	Ynab   YnabSecrets   `json:"ynab"`
	Influx InfluxSecrets `json:"influx"`
	SQL    SqlSecrets    `json:"sql"`

	// Alternative to the SQL secrets, used as is when set
	DatabaseURL string `json:"databaseUrl" env:"DATABASE_URL"`
}

///////////////////////////////////////////////////////////////////////////////////////
// Storage
///////////////////////////////////////////////////////////////////////////////////////

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type SQLConfig struct {
	// Driver is sqlite or postgres
	Driver     string `json:"driver"`
	Database   string `json:"database"`
	SQLitePath string `json:"sqlitePath"`
	// ConnectTimeout bounds the retries while waiting for the database
	ConnectTimeout Duration `json:"connectTimeout"`
}

///////////////////////////////////////////////////////////////////////////////////////
// Import
///////////////////////////////////////////////////////////////////////////////////////

type ImportConfig struct {
	DefaultCurrency string `json:"defaultCurrency"`
	SampleLimit     int    `json:"sampleLimit"`
	// InboxDir holds one directory per account id with CSV files to import
	InboxDir string `json:"inboxDir"`
}

type CategorizeConfig struct {
	RulesFile string `json:"rulesFile"`
}

type ScheduleConfig struct {
	UpdateFrequency string `json:"updateFrequency"`
}

///////////////////////////////////////////////////////////////////////////////////////
// Metrics
///////////////////////////////////////////////////////////////////////////////////////

type InfluxConfig struct {
	Enabled     bool   `json:"enabled"`
	Database    string `json:"database"`
	Measurement string `json:"measurement"`
}

type InfluxSecrets struct {
	InfluxEndpoint string `json:"influxEndpoint" env:"INFLUX_ENDPOINT"`
	InfluxUsername string `json:"influxUsername" env:"INFLUX_USERNAME"`
	InfluxPassword string `json:"influxPassword" env:"INFLUX_PASSWORD"`
}

///////////////////////////////////////////////////////////////////////////////////////
// YNAB
///////////////////////////////////////////////////////////////////////////////////////

type YnabConfig struct {
	Budgets []YnabBudget `json:"budgets"`
}

type YnabBudget struct {
	Name string `json:"name"`
	ID   string `json:"id"`
	// AccountID the budget's transactions are stored under, derived from Name
	// when empty
	AccountID string `json:"accountId"`
	Currency  string `json:"currency"`
	// Date to import transactions after
	ImportAfterDate string `json:"importAfterDate"`
}

type YnabSecrets struct {
	YnabAccessToken string `json:"ynabAccessToken" env:"YNAB_ACCESS_TOKEN"`
}

type SqlSecrets struct {
	SqlHost     string `json:"sqlHost" env:"SQL_HOST"`
	SqlUsername string `json:"sqlUsername" env:"SQL_USERNAME"`
	SqlPassword string `json:"sqlPassword" env:"SQL_PASSWORD"`
}

// Duration reads Go duration strings ("30s") from yaml and json.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		return nil
	}

	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}

	d.Duration = parsed
	return nil
}
