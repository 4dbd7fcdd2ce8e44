// Package config — конфигурация моста: YAML-файл (секции как у
// деплоймент-конфигов коллектора) + переопределения из окружения.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Kafka struct {
	Brokers []string `yaml:"brokers" envconfig:"BROKERS"`
	// ZookeeperServer и UseNativeClient принимаются для совместимости со
	// старыми конфигами: координация группы идёт через брокеры.
	ZookeeperServer string `yaml:"zookeeper_server" envconfig:"ZOOKEEPER_SERVER"`
	Topic           string `yaml:"topic" envconfig:"TOPIC"`
	ConsumerGroup   string `yaml:"consumer_group" envconfig:"CONSUMER_GROUP"`
	UseNativeClient bool   `yaml:"use_native_client" envconfig:"USE_NATIVE_CLIENT"`
	StartOffset     string `yaml:"start_offset" envconfig:"START_OFFSET"` // first|last
}

type HEC struct {
	Host       string        `yaml:"host" envconfig:"HOST"`
	Port       int           `yaml:"port" envconfig:"PORT"`
	Scheme     string        `yaml:"scheme" envconfig:"SCHEME"` // http|https
	Channel    string        `yaml:"channel" envconfig:"CHANNEL"`
	Token      string        `yaml:"token" envconfig:"TOKEN"`
	SourceType string        `yaml:"sourcetype" envconfig:"SOURCETYPE"`
	Source     string        `yaml:"source" envconfig:"SOURCE"`
	Timeout    time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
}

type General struct {
	BatchSize int `yaml:"batch_size" envconfig:"BATCH_SIZE"`
	Workers   int `yaml:"workers" envconfig:"WORKERS"`
}

type Network struct {
	RetryAttempts int           `yaml:"retry_attempts" envconfig:"RETRY_ATTEMPTS"`
	SleepTime     time.Duration `yaml:"sleeptime" envconfig:"SLEEPTIME"`
	MaxSleepTime  time.Duration `yaml:"max_sleeptime" envconfig:"MAX_SLEEPTIME"`
	SleepScale    float64       `yaml:"sleepscale" envconfig:"SLEEPSCALE"`
	Jitter        time.Duration `yaml:"jitter" envconfig:"JITTER"`
}

type Logging struct {
	Level string `yaml:"loglevel" envconfig:"LOGLEVEL"`
	Dev   bool   `yaml:"dev" envconfig:"DEV"`
}

type Metrics struct {
	Addr string `yaml:"addr" envconfig:"ADDR"` // пусто — ops-сервер выключен
}

type Tracing struct {
	Enabled     bool    `yaml:"enabled" envconfig:"ENABLED"`
	ServiceName string  `yaml:"service_name" envconfig:"SERVICE_NAME"`
	Endpoint    string  `yaml:"endpoint" envconfig:"ENDPOINT"`
	SampleRatio float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO"`
}

type Config struct {
	Kafka   Kafka   `yaml:"kafka"`
	HEC     HEC     `yaml:"hec"`
	General General `yaml:"general"`
	Network Network `yaml:"network"`
	Logging Logging `yaml:"logging"`
	Metrics Metrics `yaml:"metrics"`
	Tracing Tracing `yaml:"tracing"`
}

// defaults — значения исходных деплоймент-конфигов коллектора.
func defaults() Config {
	return Config{
		Kafka: Kafka{
			StartOffset: "last",
		},
		HEC: HEC{
			Port:    8088,
			Scheme:  "https",
			Timeout: 30 * time.Second,
		},
		General: General{
			BatchSize: 1024,
			Workers:   1,
		},
		Network: Network{
			RetryAttempts: 5,
			SleepTime:     60 * time.Second,
			MaxSleepTime:  300 * time.Second,
			SleepScale:    1.5,
			Jitter:        time.Second,
		},
		Logging: Logging{
			Level: "warn",
		},
		Metrics: Metrics{
			Addr: ":2112",
		},
		Tracing: Tracing{
			ServiceName: "kafka2hec",
			SampleRatio: 1,
		},
	}
}

// Load — YAML-файл, затем переопределения KAFKA2HEC_* из окружения,
// затем валидация. Любая ошибка фатальна до запуска воркеров.
func Load(path string) (Config, error) {
	c := defaults()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := envconfig.Process("KAFKA2HEC", &c); err != nil {
		return Config{}, fmt.Errorf("env overrides: %w", err)
	}

	// Канал HEC — UUID на приложение; без явного значения генерируем свой.
	if c.HEC.Channel == "" {
		c.HEC.Channel = uuid.NewString()
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate проверяет обязательные поля и числовые инварианты.
func (c Config) Validate() error {
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must not be empty")
	}
	if c.Kafka.Topic == "" {
		return fmt.Errorf("config: kafka.topic is required")
	}
	if c.Kafka.ConsumerGroup == "" {
		return fmt.Errorf("config: kafka.consumer_group is required")
	}
	if c.HEC.Host == "" {
		return fmt.Errorf("config: hec.host is required")
	}
	if c.HEC.Port < 1 || c.HEC.Port > 65535 {
		return fmt.Errorf("config: hec.port %d out of range", c.HEC.Port)
	}
	if c.HEC.Scheme != "http" && c.HEC.Scheme != "https" {
		return fmt.Errorf("config: hec.scheme must be http or https, got %q", c.HEC.Scheme)
	}
	if c.HEC.Token == "" {
		return fmt.Errorf("config: hec.token is required")
	}
	if _, err := uuid.Parse(c.HEC.Channel); err != nil {
		return fmt.Errorf("config: hec.channel must be a UUID: %w", err)
	}
	if c.General.BatchSize < 1 {
		return fmt.Errorf("config: general.batch_size must be >= 1, got %d", c.General.BatchSize)
	}
	if c.General.Workers < 1 {
		return fmt.Errorf("config: general.workers must be >= 1, got %d", c.General.Workers)
	}
	if c.Network.RetryAttempts < 1 {
		return fmt.Errorf("config: network.retry_attempts must be >= 1, got %d", c.Network.RetryAttempts)
	}
	if c.Network.SleepTime < 0 {
		return fmt.Errorf("config: network.sleeptime must be >= 0, got %s", c.Network.SleepTime)
	}
	if c.Network.MaxSleepTime < c.Network.SleepTime {
		return fmt.Errorf("config: network.max_sleeptime %s must be >= sleeptime %s",
			c.Network.MaxSleepTime, c.Network.SleepTime)
	}
	if c.Network.SleepScale < 1 {
		return fmt.Errorf("config: network.sleepscale must be >= 1, got %g", c.Network.SleepScale)
	}
	if c.Network.Jitter < 0 {
		return fmt.Errorf("config: network.jitter must be >= 0, got %s", c.Network.Jitter)
	}
	return nil
}
