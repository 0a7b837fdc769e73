package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fxfilter/pkg/config"
)

// LogLevelFromString converts string to LogLevel
func LogLevelFromString(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "fatal":
		return FATAL
	default:
		return INFO
	}
}

// InitializeFromConfig initializes the global logger from configuration
func InitializeFromConfig(nodeID string, logConfig config.LoggingConfig) (*Logger, error) {
	// Ensure log directory exists
	if logConfig.LogDir != "" {
		if err := os.MkdirAll(logConfig.LogDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %v", err)
		}
	}

	// Set log file path if not specified
	logFile := logConfig.LogFile
	if logFile == "" && logConfig.EnableFile {
		if logConfig.LogDir != "" {
			logFile = filepath.Join(logConfig.LogDir, fmt.Sprintf("%s.log", nodeID))
		} else {
			logFile = fmt.Sprintf("%s.log", nodeID)
		}
	}

	cfg := Config{
		Level:         LogLevelFromString(logConfig.Level),
		NodeID:        nodeID,
		LogFile:       logFile,
		EnableConsole: logConfig.EnableConsole,
		EnableFile:    logConfig.EnableFile,
		BufferSize:    logConfig.BufferSize,
	}

	logger := NewLogger(cfg)
	SetGlobalLogger(logger)

	return logger, nil
}

// ComponentNames for structured logging
const (
	ComponentBrokenSessions  = "broken_sessions"
	ComponentExecutiveReport = "executive_report"
	ComponentPersistence     = "persistence"
	ComponentConfig          = "config"
	ComponentMain            = "main"
	ComponentCLI             = "cli"
)

// ActionNames for structured logging
const (
	ActionStart      = "start"
	ActionStop       = "stop"
	ActionAdd        = "add"
	ActionQuery      = "query"
	ActionDelete     = "delete"
	ActionReport     = "report"
	ActionPersist    = "persist"
	ActionRestore    = "restore"
	ActionSnapshot   = "snapshot"
	ActionValidation = "validation"
	ActionCleanup    = "cleanup"
)
