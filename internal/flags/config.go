package flags

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/steward-ai/stewardd/internal/files"
)

const (
	// Env vars
	EnvVarConfigFile = "STEWARDD_CONFIG_FILE"
	EnvVarLogPath    = "STEWARDD_LOG_PATH"
	EnvVarLogLevel   = "STEWARDD_LOG_LEVEL"

	// Defaults
	DefaultConfigFileName = "config.toml"
	DefaultLogPath        = ""
	DefaultLogLevel       = "info"

	// Flag names
	FlagNameConfigFile = "config-file"
	FlagNameLogPath    = "log-path"
	FlagNameLogLevel   = "log-level"
)

var (
	ConfigFile string
	LogPath    string
	LogLevel   string
)

func InitFlags(fs *pflag.FlagSet) {
	initConfigFile(fs)
	initLogger(fs)
}

func initConfigFile(fs *pflag.FlagSet) {
	if ConfigFile == "" {
		if env := strings.TrimSpace(os.Getenv(EnvVarConfigFile)); env != "" {
			ConfigFile = env
		} else {
			ConfigFile = defaultConfigFile()
		}
	}
	fs.StringVar(&ConfigFile, FlagNameConfigFile, ConfigFile, "path to config file")
}

// defaultConfigFile resolves the XDG config location, falling back to a file
// in the working directory when the home directory cannot be determined.
func defaultConfigFile() string {
	dir, err := files.UserSpecificConfigDir()
	if err != nil {
		return "." + files.AppDirName() + ".toml"
	}
	return filepath.Join(dir, DefaultConfigFileName)
}

func initLogger(fs *pflag.FlagSet) {
	if LogPath == "" {
		if env := strings.TrimSpace(os.Getenv(EnvVarLogPath)); env != "" {
			LogPath = env
		} else {
			LogPath = DefaultLogPath
		}
	}
	fs.StringVar(&LogPath, FlagNameLogPath, LogPath, "path to generated log file")

	if LogLevel == "" {
		if env := strings.TrimSpace(os.Getenv(EnvVarLogLevel)); env != "" {
			LogLevel = strings.ToLower(env)
		} else {
			LogLevel = DefaultLogLevel
		}
	}
	fs.StringVar(&LogLevel, FlagNameLogLevel, LogLevel, "log level for stewardd logs")
}
