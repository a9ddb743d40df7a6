package config

import (
	"fmt"
	"time"
)

type Configs struct {
	Env      string
	LogLevel string

	Database         DatabaseConfigs
	ApiServer        ServerConfigs
	PrometheusServer ServerConfigs
	Redis            RedisConfigs
	Cache            CacheConfigs
	Lottery          LotteryConfigs
	Networks         map[string]NetworkConfigs `toml:"networks"`
}

type DatabaseConfigs struct {
	Driver   string
	Host     string
	Port     string
	Database string
	User     string
	Password string

	// File is only used by the sqlite driver.
	File string
}

func (d *DatabaseConfigs) ConnectionString() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			d.Host,
			d.Port,
			d.User,
			d.Password,
			d.Database,
		)
	case "sqlite":
		return d.File
	default:
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			d.User,
			d.Password,
			d.Host,
			d.Port,
			d.Database,
		)
	}
}

type ServerConfigs struct {
	Host string
	Port string

	AllowedOrigins []string
}

func (s ServerConfigs) Address() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

type RedisConfigs struct {
	Addr string
}

type CacheConfigs struct {
	// Backend is either memory or redis.
	Backend  string
	TTL      Duration
	Capacity int
}

type LotteryConfigs struct {
	TicketsPerRound    int
	DefaultTicketPrice string
	DefaultFee         string
	DefaultRound       int64
	HistoryLimit       int
	RoundDuration      Duration

	FinalityTimeout     Duration
	ReceiptPollInterval Duration
	Confirmations       uint64
	ReservationGrace    Duration
	SweepInterval       Duration

	// MaxProcessingPerBuyer bounds the reservations a buyer may hold in a
	// round while the ledger cannot settle them.
	MaxProcessingPerBuyer int
}

type NetworkConfigs struct {
	ChainID         int64    `toml:"chain_id"`
	Rpcs            []string `toml:"rpcs"`
	ContractAddress string   `toml:"contract_address"`

	// FromBlock bounds event log lookups.
	FromBlock uint64 `toml:"from_block"`

	RefreshConnectionFrequency Duration `toml:"refresh_connection_frequency"`
}

// Duration decodes values like "30s" from toml and environment variables.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}

	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
