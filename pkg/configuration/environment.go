package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/iota-uz/utils/fs"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/unicorn-warehouse/pkg/logging"
)

const Production = "production"

var defaultEnvFiles = []string{".env", ".env.local"}

var singleton = sync.OnceValue(func() *Configuration {
	c, err := Load(defaultEnvFiles)
	if err != nil {
		panic(err)
	}
	return c
})

// LoadEnv loads the env files that exist, looking in the working directory
// first and then in the nearest parent holding a go.mod.
func LoadEnv(envFiles []string) (int, error) {
	root := moduleRoot()

	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if fs.FileExists(file) {
			existing = append(existing, file)
			continue
		}
		if root == "" || filepath.IsAbs(file) {
			continue
		}
		if candidate := filepath.Join(root, file); fs.FileExists(candidate) {
			existing = append(existing, candidate)
		}
	}

	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

func moduleRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if fs.FileExists(filepath.Join(dir, "go.mod")) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"unicorn_db"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`

	ConnectTimeout    time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"10s"`
	ConnectMaxElapsed time.Duration `env:"DB_CONNECT_MAX_ELAPSED" envDefault:"2m"`
	MaxConns          int32         `env:"DB_MAX_CONNS" envDefault:"4"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable connect_timeout=%d",
		d.Host, d.Port, d.User, d.Name, d.Password, int(d.ConnectTimeout.Seconds()),
	)
}

type SourceOptions struct {
	Path string `env:"SOURCE_PATH" envDefault:"Unicorn_Companies.csv"`
	// Sheet selects the worksheet of an .xlsx source; empty means the first one.
	Sheet string `env:"SOURCE_SHEET"`
}

type ScheduleOptions struct {
	MinInterval  time.Duration `env:"SCHEDULE_MIN_INTERVAL" envDefault:"24h"`
	MaxInterval  time.Duration `env:"SCHEDULE_MAX_INTERVAL" envDefault:"48h"`
	LoadTimezone string        `env:"LOAD_TIMEZONE" envDefault:"UTC"`
	SingleActive bool          `env:"ETL_SINGLE_ACTIVE" envDefault:"false"`

	location *time.Location
}

// Location is the zone the load date is taken in.
func (s *ScheduleOptions) Location() *time.Location {
	if s.location == nil {
		return time.UTC
	}
	return s.location
}

func (s *ScheduleOptions) Validate() error {
	if s.MinInterval <= 0 {
		return fmt.Errorf("SCHEDULE_MIN_INTERVAL must be positive, got %s", s.MinInterval)
	}
	if s.MaxInterval < s.MinInterval {
		return fmt.Errorf("SCHEDULE_MAX_INTERVAL (%s) must not be less than SCHEDULE_MIN_INTERVAL (%s)", s.MaxInterval, s.MinInterval)
	}
	loc, err := time.LoadLocation(strings.TrimSpace(s.LoadTimezone))
	if err != nil {
		return fmt.Errorf("invalid LOAD_TIMEZONE=%q: %w", s.LoadTimezone, err)
	}
	s.location = loc
	return nil
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
	Addr    string `env:"METRICS_ADDR" envDefault:":9102"`
}

// OpsGuardOptions protect the metrics endpoint; they are enforced in
// production only.
type OpsGuardOptions struct {
	Enabled       bool   `env:"OPS_GUARD_ENABLED" envDefault:"true"`
	CIDRs         string `env:"OPS_GUARD_CIDRS" envDefault:""`
	Token         string `env:"OPS_GUARD_TOKEN" envDefault:""`
	BasicAuthUser string `env:"OPS_GUARD_BASIC_AUTH_USER" envDefault:""`
	BasicAuthPass string `env:"OPS_GUARD_BASIC_AUTH_PASS" envDefault:""`
	RealIPHeader  string `env:"REAL_IP_HEADER" envDefault:"X-Real-IP"`
}

type Configuration struct {
	Database   DatabaseOptions
	Source     SourceOptions
	Schedule   ScheduleOptions
	Prometheus PrometheusOptions
	OpsGuard   OpsGuardOptions

	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	// LogPath mirrors the log to a file when set.
	LogPath string `env:"LOG_PATH"`

	logFile *os.File
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func Use() *Configuration {
	return singleton()
}

// Load builds a Configuration from the environment after applying envFiles.
func Load(envFiles []string) (*Configuration, error) {
	c := &Configuration{}
	if err := c.load(envFiles); err != nil {
		c.Unload()
		return nil, err
	}
	return c, nil
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	if err := c.Schedule.Validate(); err != nil {
		return fmt.Errorf("schedule configuration error: %w", err)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be at least 1, got %d", c.Database.MaxConns)
	}
	if strings.TrimSpace(c.Source.Path) == "" {
		return fmt.Errorf("SOURCE_PATH must not be empty")
	}

	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	if c.LogPath != "" {
		f, logger, err := logging.FileLogger(level, c.LogPath)
		if err != nil {
			return err
		}
		c.logFile = f
		c.logger = logger
	} else {
		c.logger = logging.ConsoleLogger(level)
	}

	c.Database.Opts = c.Database.ConnectionString()
	return nil
}

// Unload releases the log file, if any.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
		c.logFile = nil
	}
}
