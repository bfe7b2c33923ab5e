package globals

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type contextKey string

const ActorKey contextKey = "actor"

var JwtSecret = []byte("dev_secret_change_me")

type Config struct {
	Port           string
	MongoURI       string
	MongoDB        string
	RedisURL       string
	RedisPassword  string
	IndexURL       string
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPass       string
	SMTPFrom       string
	UploadDir      string
	RateLimitRPS   float64
	RateLimitBurst int
	AdminEmail     string
	AdminPassword  string
	Workers        int
}

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	if s := os.Getenv("JWT_SECRET"); s != "" {
		JwtSecret = []byte(s)
	} else {
		log.Println("JWT_SECRET not set, using development secret")
	}

	return Config{
		Port:           getenv("PORT", "4000"),
		MongoURI:       getenv("MONGO_URI", "mongodb://127.0.0.1:27017"),
		MongoDB:        getenv("MONGO_DB", "campusevents"),
		RedisURL:       os.Getenv("REDIS_URL"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		IndexURL:       os.Getenv("INDEX_URL"),
		SMTPHost:       os.Getenv("SMTP_HOST"),
		SMTPPort:       getint("SMTP_PORT", 587),
		SMTPUser:       os.Getenv("SMTP_USER"),
		SMTPPass:       os.Getenv("SMTP_PASS"),
		SMTPFrom:       getenv("SMTP_FROM", "no-reply@campusevents.local"),
		UploadDir:      getenv("UPLOAD_DIR", "static"),
		RateLimitRPS:   getfloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getint("RATE_LIMIT_BURST", 10),
		AdminEmail:     os.Getenv("ADMIN_EMAIL"),
		AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
		Workers:        getint("NOTIFY_WORKERS", 4),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getfloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("Invalid %s=%q, using %v", key, v, def)
		return def
	}
	return f
}
