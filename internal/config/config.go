// config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zonas horarias embebidas para imágenes sin /usr/share/zoneinfo

	"github.com/joho/godotenv"
)

const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"
)

type Config struct {
	MongoURI    string
	MongoDBName string
	AuthURL     string
	RabbitURL   string // vacío deshabilita la mensajería
	Port        string
	Storage     string
	// zona horaria de las fechas estimadas de entrega
	DisplayLocation *time.Location

	SimulatorEnabled       bool
	SimulationInterval     time.Duration
	StaleAfter             time.Duration
	DeliveryProbability    float64
	TrackingRandomAttempts int
}

// Load lee un .env opcional y luego las variables de entorno.
func Load() (*Config, error) {
	// Si no hay .env se usan solo las variables del proceso.
	_ = godotenv.Load()
	return fromEnv()
}

func fromEnv() (*Config, error) {
	cfg := &Config{
		MongoURI:    getEnv("MONGO_URI", "mongodb://host.docker.internal:27017"),
		MongoDBName: getEnv("MONGO_DB_NAME", "order_tracking_db"),
		AuthURL:     getEnv("AUTH_URL", "http://host.docker.internal:3000"),
		RabbitURL:   getEnv("RABBIT_URL", ""),
		Port:        getEnv("PORT", "8080"),
		Storage:     strings.ToLower(getEnv("STORAGE", StorageMongo)),
	}

	var err error
	if cfg.SimulatorEnabled, err = strconv.ParseBool(getEnv("SIMULATOR_ENABLED", "true")); err != nil {
		return nil, fmt.Errorf("SIMULATOR_ENABLED: %w", err)
	}
	if cfg.SimulationInterval, err = positiveDuration("SIMULATION_INTERVAL", "10m"); err != nil {
		return nil, err
	}
	if cfg.StaleAfter, err = positiveDuration("STALE_AFTER", "72h"); err != nil {
		return nil, err
	}

	cfg.DeliveryProbability, err = strconv.ParseFloat(getEnv("DELIVERY_PROBABILITY", "0.7"), 64)
	if err != nil || cfg.DeliveryProbability < 0 || cfg.DeliveryProbability > 1 {
		return nil, fmt.Errorf("DELIVERY_PROBABILITY debe ser un número entre 0 y 1")
	}

	cfg.TrackingRandomAttempts, err = strconv.Atoi(getEnv("TRACKING_RANDOM_ATTEMPTS", "8"))
	if err != nil || cfg.TrackingRandomAttempts <= 0 {
		return nil, fmt.Errorf("TRACKING_RANDOM_ATTEMPTS debe ser un entero positivo")
	}

	tz := getEnv("DISPLAY_TIMEZONE", "America/Bogota")
	if cfg.DisplayLocation, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("DISPLAY_TIMEZONE %q: %w", tz, err)
	}

	if cfg.Storage != StorageMongo && cfg.Storage != StorageMemory {
		return nil, fmt.Errorf("STORAGE debe ser %q o %q", StorageMongo, StorageMemory)
	}
	return cfg, nil
}

func positiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s debe ser una duración positiva (ej. 10m)", key)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
