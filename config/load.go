package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const ScaiNetwork = "scai"

func Default() Configs {
	return Configs{
		Env:      "local",
		LogLevel: "INFO",
		Database: DatabaseConfigs{
			Driver:   "mysql",
			Host:     "localhost",
			Port:     "3306",
			Database: "lottery",
			User:     "root",
			File:     "lottery.db",
		},
		ApiServer:        ServerConfigs{Port: "8080", AllowedOrigins: []string{"*"}},
		PrometheusServer: ServerConfigs{Port: "9090"},
		Redis:            RedisConfigs{Addr: "localhost:6379"},
		Cache: CacheConfigs{
			Backend:  "memory",
			TTL:      Duration{30 * time.Second},
			Capacity: 1024,
		},
		Lottery: LotteryConfigs{
			TicketsPerRound:     50,
			DefaultTicketPrice:  "0.01",
			DefaultFee:          "0.002",
			DefaultRound:        1,
			HistoryLimit:        20,
			RoundDuration:       Duration{24 * time.Hour},
			FinalityTimeout:     Duration{2 * time.Minute},
			ReceiptPollInterval: Duration{3 * time.Second},
			Confirmations:       1,
			ReservationGrace:    Duration{10 * time.Minute},
			SweepInterval:       Duration{time.Minute},

			MaxProcessingPerBuyer: 3,
		},
		Networks: map[string]NetworkConfigs{
			ScaiNetwork: {
				ChainID:                    34,
				Rpcs:                       []string{"https://mainnet-rpc.scai.network/"},
				ContractAddress:            "0xb4bd238b2F649579e756b426946ca8C279c8d2D2",
				RefreshConnectionFrequency: Duration{time.Minute},
			},
		},
	}
}

// Load builds the configs from defaults, an optional toml file and finally the
// environment (a .env file in the working directory is honored).
func Load(path string) (Configs, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Configs{}, err
	}

	cfg := Default()
	if path != "" {
		// Networks declared in the file replace the builtin ones.
		cfg.Networks = nil
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Configs{}, err
		}
	}

	if err := overrideFromEnv(&cfg); err != nil {
		return Configs{}, err
	}

	return cfg, nil
}

func overrideFromEnv(cfg *Configs) error {
	setString(&cfg.Env, "ENV")
	setString(&cfg.LogLevel, "LOG_LEVEL")

	setString(&cfg.Database.Driver, "DB_DRIVER")
	setString(&cfg.Database.Host, "DB_HOST")
	setString(&cfg.Database.Port, "DB_PORT")
	setString(&cfg.Database.Database, "DB_NAME")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.File, "DB_FILE")

	setString(&cfg.ApiServer.Host, "API_HOST")
	setString(&cfg.ApiServer.Port, "API_PORT")
	if origins := os.Getenv("API_ALLOWED_ORIGINS"); origins != "" {
		cfg.ApiServer.AllowedOrigins = strings.Split(origins, ",")
	}
	setString(&cfg.PrometheusServer.Host, "PROMETHEUS_HOST")
	setString(&cfg.PrometheusServer.Port, "PROMETHEUS_PORT")

	setString(&cfg.Redis.Addr, "REDIS_ADDRESS")
	setString(&cfg.Cache.Backend, "CACHE_BACKEND")

	if err := setDuration(&cfg.Cache.TTL, "CACHE_TTL"); err != nil {
		return err
	}
	if err := setInt(&cfg.Cache.Capacity, "CACHE_CAPACITY"); err != nil {
		return err
	}

	setString(&cfg.Lottery.DefaultTicketPrice, "LOTTERY_TICKET_PRICE")
	setString(&cfg.Lottery.DefaultFee, "LOTTERY_DEFAULT_FEE")
	if err := setDuration(&cfg.Lottery.FinalityTimeout, "LOTTERY_FINALITY_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Lottery.ReservationGrace, "LOTTERY_RESERVATION_GRACE"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Lottery.SweepInterval, "LOTTERY_SWEEP_INTERVAL"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Lottery.RoundDuration, "LOTTERY_ROUND_DURATION"); err != nil {
		return err
	}
	if err := setInt(&cfg.Lottery.MaxProcessingPerBuyer, "LOTTERY_MAX_PROCESSING_PER_BUYER"); err != nil {
		return err
	}

	if rpc := os.Getenv("SCAI_RPC_URL"); rpc != "" {
		network := cfg.Networks[ScaiNetwork]
		network.Rpcs = strings.Split(rpc, ",")
		if cfg.Networks == nil {
			cfg.Networks = map[string]NetworkConfigs{}
		}
		cfg.Networks[ScaiNetwork] = network
	}

	if address := os.Getenv("SCAI_CONTRACT_ADDRESS"); address != "" {
		network := cfg.Networks[ScaiNetwork]
		network.ContractAddress = address
		if cfg.Networks == nil {
			cfg.Networks = map[string]NetworkConfigs{}
		}
		cfg.Networks[ScaiNetwork] = network
	}

	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}

	*dst = n
	return nil
}

func setDuration(dst *Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}

	return dst.UnmarshalText([]byte(v))
}
