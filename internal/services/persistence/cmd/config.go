package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/LeonardoBeccarini/cropwater/internal/services/persistence"
)

type Config struct {
	Port string

	MQTTHost     string
	MQTTPort     int
	MQTTUser     string
	MQTTPassword string
	MQTTClientID string
	Topic        string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	// empty MySQLDSN disables run history
	MySQLDSN string
}

func env(k, d string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return d
}

func envInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func loadConfig() Config {
	return Config{
		Port: env("PORT", "8080"),

		MQTTHost:     env("RABBITMQ_HOST", "localhost"),
		MQTTPort:     envInt("RABBITMQ_PORT", 1883),
		MQTTUser:     env("RABBITMQ_USER", "guest"),
		MQTTPassword: env("RABBITMQ_PASSWORD", "guest"),
		MQTTClientID: env("MQTT_CLIENT_ID", "persistence-service"),
		Topic:        env("RESULT_SUB_TOPIC", persistence.DefaultTopic),

		InfluxURL:    env("INFLUX_URL", "http://localhost:8086"),
		InfluxToken:  os.Getenv("INFLUX_TOKEN"),
		InfluxOrg:    env("INFLUX_ORG", "cropwater"),
		InfluxBucket: env("INFLUX_BUCKET", "simulations"),

		MySQLDSN: mysqlDSN(),
	}
}

// mysqlDSN prefers MYSQL_DSN and falls back to MYSQL_HOST/USER/PASSWORD/DB.
func mysqlDSN() string {
	if dsn := env("MYSQL_DSN", ""); dsn != "" {
		return dsn
	}
	host := env("MYSQL_HOST", "")
	if host == "" {
		return ""
	}
	return persistence.MySQLConfig{
		User:     env("MYSQL_USER", "root"),
		Password: env("MYSQL_PASSWORD", "root"),
		Host:     host,
		DBName:   env("MYSQL_DB", "cropwater"),
	}.DSN()
}
