package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// DefaultFileName - имя файла журнала внутри LogsDir.
const DefaultFileName = "Robot.log"

type Config struct {
	Level    string // debug, info, warn, error, off
	LogsDir  string // если пусто - только stdout
	FileName string
}

// NewLogger создаёт logrus-логгер. При заданном LogsDir каталог создаётся,
// а вывод дублируется в файл. Ошибка открытия файла не фатальна: остаётся stdout.
func NewLogger(cfg *Config) *logrus.Logger {
	logger := logrus.New()

	level := strings.ToLower(cfg.Level)
	if level == "off" || level == "none" {
		logger.SetOutput(io.Discard)
		return logger
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	var output io.Writer = os.Stdout
	if cfg.LogsDir != "" {
		name := cfg.FileName
		if name == "" {
			name = DefaultFileName
		}
		if err := os.MkdirAll(cfg.LogsDir, 0o755); err == nil {
			path := filepath.Join(cfg.LogsDir, name)
			if file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
				output = io.MultiWriter(os.Stdout, file)
			} else {
				logger.Warnf("could not open log file %s: %v", path, err)
			}
		} else {
			logger.Warnf("could not create log directory %s: %v", cfg.LogsDir, err)
		}
	}
	logger.SetOutput(output)

	return logger
}
