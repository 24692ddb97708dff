package config

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/enchantedlib/lending-service/pkg/kafka"
	"github.com/enchantedlib/lending-service/pkg/logger"
	"github.com/enchantedlib/lending-service/pkg/postgres"
)

// Sweep controls the overdue scanner.
type Sweep struct {
	Interval     time.Duration `yaml:"interval" envconfig:"SWEEP_INTERVAL" default:"1h"`
	EventsPerSec float64       `yaml:"eventsPerSec" envconfig:"SWEEP_EVENTS_PER_SEC" default:"10"`
}

type Config struct {
	Log      logger.Log   `yaml:"log"`
	Database postgres.DB  `yaml:"db"`
	Kafka    kafka.Config `yaml:"kafka"`
	Sweep    Sweep        `yaml:"sweep"`

	// UsePostgres selects the Postgres catalog over the in-memory one.
	UsePostgres bool `yaml:"usePostgres" envconfig:"USE_POSTGRES" default:"false"`
	// KafkaEnabled attaches the Kafka event sink.
	KafkaEnabled bool `yaml:"kafkaEnabled" envconfig:"KAFKA_ENABLED" default:"false"`
}

type Option func(*Config)

func WithDatabase(db postgres.DB) Option {
	return func(c *Config) { c.Database = db }
}

func WithKafka(k kafka.Config) Option {
	return func(c *Config) {
		c.Kafka = k
		c.KafkaEnabled = true
	}
}

var (
	once sync.Once
	cfg  *Config
)

// NewConfig reads config from environment.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		var config Config
		for _, op := range ops {
			op(&config)
		}
		err := envconfig.Process("", &config)
		if err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = &config
		printConfig(cfg)
	})

	return cfg
}

func printConfig(cfg *Config) {
	jscfg, _ := json.MarshalIndent(cfg, "", "	") //nolint:errcheck
	fmt.Println(string(jscfg))
}
