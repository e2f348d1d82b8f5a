package denso

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/iwtcode/densoAdapter/robot"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config хранит модель конфигурации приложения
type Config struct {
	IP                string `mapstructure:"ip"`
	Port              int    `mapstructure:"port"`
	TimeoutMs         int    `mapstructure:"timeout"`
	Controller        string `mapstructure:"controller"`
	SessionName       string `mapstructure:"session_name"`
	ServiceOption     string `mapstructure:"service_option"`
	Speed             int    `mapstructure:"speed"`
	ArchiveDir        string `mapstructure:"archive_dir"`
	LogLevel          string `mapstructure:"log_level"`
	LogDir            string `mapstructure:"log_dir"`
	MonitorAddr       string `mapstructure:"monitor_addr"`
	MonitorIntervalMs int    `mapstructure:"monitor_interval_ms"`
}

// ключ viper -> переменная окружения
var envKeys = map[string]string{
	"ip":                  "DENSO_IP",
	"port":                "DENSO_PORT",
	"timeout":             "DENSO_TIMEOUT",
	"controller":          "DENSO_CONTROLLER",
	"session_name":        "DENSO_SESSION_NAME",
	"service_option":      "DENSO_SERVICE_OPTION",
	"speed":               "DENSO_SPEED",
	"archive_dir":         "DENSO_ARCHIVE_DIR",
	"log_level":           "LOG_LEVEL",
	"log_dir":             "LOG_DIR",
	"monitor_addr":        "MONITOR_ADDR",
	"monitor_interval_ms": "MONITOR_INTERVAL_MS",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ip", "192.168.0.1")
	v.SetDefault("port", 5007)
	v.SetDefault("timeout", 2000)
	v.SetDefault("controller", string(robot.RC8))
	v.SetDefault("session_name", "_")
	v.SetDefault("service_option", "")
	v.SetDefault("speed", 75)
	v.SetDefault("archive_dir", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_dir", "")
	v.SetDefault("monitor_addr", ":8080")
	v.SetDefault("monitor_interval_ms", 500)
}

// Load загружает конфигурацию: сначала .env-файлы (если есть), затем переменные окружения.
// Файл, указанный в DENSO_CONFIG, читается как слой между значениями по умолчанию и окружением.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(errors.Cause(err)) {
			return nil, errors.Wrapf(err, "load %s", f)
		}
	}

	v := viper.New()
	setDefaults(v)
	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, errors.Wrapf(err, "bind %s", env)
		}
	}

	if path := os.Getenv("DENSO_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	cfg.Controller = strings.ToUpper(strings.TrimSpace(cfg.Controller))
	return &cfg, nil
}

// Validate проверяет значения, без которых сессия не сможет подключиться.
func (c *Config) Validate() error {
	if _, err := c.Variant().Provider(); err != nil {
		return err
	}
	if strings.TrimSpace(c.IP) == "" {
		return errors.Wrap(robot.ErrInvalidAddress, "empty DENSO_IP")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Wrapf(robot.ErrInvalidAddress, "port %d", c.Port)
	}
	if c.TimeoutMs <= 0 {
		return errors.Errorf("timeout must be positive, got %d ms", c.TimeoutMs)
	}
	if c.Speed <= 0 || c.Speed > 100 {
		return errors.Errorf("speed must be in 1..100, got %d", c.Speed)
	}
	return nil
}

// Address возвращает "ip:port" для Session.Connect.
func (c *Config) Address() string {
	return net.JoinHostPort(c.IP, strconv.Itoa(c.Port))
}

// Variant приводит имя контроллера к верхнему регистру, откуда бы оно ни пришло (окружение, файл, флаг).
func (c *Config) Variant() robot.ControllerVariant {
	return robot.ControllerVariant(strings.ToUpper(strings.TrimSpace(c.Controller)))
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

func (c *Config) MonitorInterval() time.Duration {
	if c.MonitorIntervalMs <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.MonitorIntervalMs) * time.Millisecond
}
