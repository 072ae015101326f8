package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"saferide/go-backend/internal/detector"
	"saferide/go-backend/internal/models"
)

// Common holds the settings every binary reads.
type Common struct {
	MQTTBroker  string
	LogLevel    string
	Environment string
}

func (c *Common) IsDev() bool {
	return c.Environment == "dev"
}

type Server struct {
	Common

	GRPCPort         string
	HTTPPort         string
	CORSOrigins      string
	MaxMessageSizeMB int
	ClientID         string

	// Store selects the persistence backend: "memory" or "postgres".
	Store string

	DBName     string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
}

func (p *Server) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.DBHost, p.DBPort, p.DBUser, p.DBPassword, p.DBName, p.DBSSLMode)
}

// DSNForLog hides the password.
func (p *Server) DSNForLog() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=*** dbname=%s sslmode=%s",
		p.DBHost, p.DBPort, p.DBUser, p.DBName, p.DBSSLMode)
}

type Agent struct {
	Common

	VehicleID        string
	ClientID         string
	GRPCPort         string
	HTTPPort         string
	MaxMessageSizeMB int
	QueueDepth       int
	PublishInterval  time.Duration
	Location         models.Location
	Thresholds       detector.Thresholds

	explicitClientID bool
}

// SetVehicle applies a vehicle ID chosen after loading, e.g. from a flag.
// The MQTT client ID follows it unless MQTT_CLIENT_ID was set.
func (a *Agent) SetVehicle(id string) {
	a.VehicleID = id
	if !a.explicitClientID {
		a.ClientID = "saferide-agent-" + id
	}
}

type Node struct {
	Common

	VehicleID          string
	ClientID           string
	HeartRateThreshold int
	PollInterval       time.Duration
	PublishInterval    time.Duration
	RestartDelay       time.Duration
	MailboxDepth       int
	Location           models.Location

	explicitClientID bool
}

// SetVehicle is the node counterpart of Agent.SetVehicle.
func (n *Node) SetVehicle(id string) {
	n.VehicleID = id
	if !n.explicitClientID {
		n.ClientID = "saferide-node-" + id
	}
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using system environment variables")
	}
}

func loadCommon() Common {
	return Common{
		MQTTBroker:  getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		LogLevel:    getEnv("LOG_LEVEL", "INFO"),
		Environment: getEnv("ENVIRONMENT", "production"),
	}
}

func loadLocation() models.Location {
	return models.Location{
		Lat:  getEnvFloat("LOCATION_LAT", 28.7041),
		Long: getEnvFloat("LOCATION_LONG", 77.1025),
	}
}

func LoadServer() *Server {
	loadDotEnv()

	cfg := &Server{
		Common:           loadCommon(),
		GRPCPort:         getEnv("GRPC_PORT", "50051"),
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		CORSOrigins:      getEnv("CORS_ORIGINS", "*"),
		MaxMessageSizeMB: getEnvInt("MAX_MESSAGE_SIZE_MB", 1),
		ClientID:         getEnv("MQTT_CLIENT_ID", "saferide-backend"),
		Store:            strings.ToLower(getEnv("STORE", "memory")),
		DBHost:           getEnv("DB_HOST", "localhost"),
		DBPort:           getEnv("DB_PORT", "5432"),
		DBUser:           getEnv("DB_USER", "postgres"),
		DBPassword:       getEnv("DB_PASSWORD", ""),
		DBName:           getEnv("DB_NAME", "saferide"),
		DBSSLMode:        getEnv("DB_SSLMODE", "disable"),
	}

	if cfg.Store == "postgres" && cfg.DBPassword == "" {
		log.Warn().Msg("DB_PASSWORD is not set")
	}
	return cfg
}

func LoadAgent() *Agent {
	loadDotEnv()

	cfg := &Agent{
		Common:           loadCommon(),
		ClientID:         os.Getenv("MQTT_CLIENT_ID"),
		GRPCPort:         getEnv("GRPC_PORT", "50052"),
		HTTPPort:         getEnv("HTTP_PORT", "8090"),
		MaxMessageSizeMB: getEnvInt("MAX_MESSAGE_SIZE_MB", 1),
		QueueDepth:       getEnvInt("PUBLISH_QUEUE_DEPTH", 1),
		PublishInterval:  getEnvDuration("PUBLISH_INTERVAL", 500*time.Millisecond),
		Location:         loadLocation(),
		Thresholds:       loadThresholds(),
	}
	cfg.explicitClientID = cfg.ClientID != ""
	cfg.SetVehicle(getEnv("VEHICLE_ID", "v-101"))
	return cfg
}

// loadThresholds reads the detector tuning. A combination the counters
// cannot work with is replaced wholesale by the defaults.
func loadThresholds() detector.Thresholds {
	d := detector.DefaultThresholds
	t := detector.Thresholds{
		EyeClosed:        getEnvFloat("EAR_THRESHOLD", d.EyeClosed),
		MouthOpen:        getEnvFloat("MAR_THRESHOLD", d.MouthOpen),
		HeadLow:          getEnvFloat("HEAD_LOW_BOUND", d.HeadLow),
		HeadHigh:         getEnvFloat("HEAD_HIGH_BOUND", d.HeadHigh),
		DrowsyFrames:     getEnvUint("EAR_DROWSY_FRAMES", d.DrowsyFrames),
		FatigueFrames:    getEnvUint("EAR_FATIGUE_FRAMES", d.FatigueFrames),
		SneezeWindow:     getEnvUint("SNEEZE_WINDOW_FRAMES", d.SneezeWindow),
		DistractedFrames: getEnvUint("DISTRACTION_FRAMES", d.DistractedFrames),
	}
	if err := t.Validate(); err != nil {
		log.Warn().Err(err).Interface("thresholds", t).Msg("invalid detector thresholds, using defaults")
		return d
	}
	return t
}

func LoadNode() *Node {
	loadDotEnv()

	cfg := &Node{
		Common:             loadCommon(),
		ClientID:           os.Getenv("MQTT_CLIENT_ID"),
		HeartRateThreshold: getEnvInt("HEART_RATE_THRESHOLD", 100),
		PollInterval:       getEnvDuration("POLL_INTERVAL", 50*time.Millisecond),
		PublishInterval:    getEnvDuration("PUBLISH_INTERVAL", 500*time.Millisecond),
		RestartDelay:       getEnvDuration("RESTART_DELAY", 2*time.Second),
		MailboxDepth:       getEnvInt("MAILBOX_DEPTH", 16),
		Location:           loadLocation(),
	}
	cfg.explicitClientID = cfg.ClientID != ""
	cfg.SetVehicle(getEnv("VEHICLE_ID", "v-101"))
	return cfg
}

func getEnv(key string, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if intVal, err := strconv.Atoi(v); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvUint(key string, defaultVal uint) uint {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 0); err == nil {
			return uint(n)
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// getEnvDuration accepts Go durations ("500ms") or bare seconds ("0.5").
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultVal
}
