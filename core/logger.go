package core

import (
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Initialized by initLogger, either explicitly from the configuration or lazily
// with the default configuration on first use
var ilogger *zap.SugaredLogger
var loggerOnce sync.Once

const defaultLogConfig = `{
	"level": "info",
	"development": false,
	"encoding": "console",
	"outputPaths": ["stdout"],
	"errorOutputPaths": ["stderr"],
	"disableCaller": false,
	"disableStackTrace": true,
	"encoderConfig": {
		"messageKey": "message",
		"levelKey": "level",
		"levelEncoder": "lowercase",
		"callerKey": "caller",
		"callerEncoder": "",
		"timeKey": "ts",
		"timeEncoder": "ISO8601"
		}
	}`

// https://pkg.go.dev/go.uber.org/zap
// Builds the logger from a zap JSON configuration document
func buildLogger(jConfig []byte) *zap.SugaredLogger {

	var cfg zap.Config
	if err := json.Unmarshal(jConfig, &cfg); err != nil {
		panic(err)
	}

	logger, logError := cfg.Build()
	if logError != nil {
		panic(logError)
	}

	return logger.Sugar()
}

// Reads the log configuration resource and builds the global logger.
// Falls back to the default configuration if the resource is missing
func initLogger(cm *ConfigurationManager) {

	jConfig, err := cm.GetRawBytesConfigObject("log.json")
	if err != nil {
		fmt.Println("using default logging configuration")
		jConfig = []byte(defaultLogConfig)
	}

	ilogger = buildLogger(jConfig)
}

// Used globally to get access to the logger
func GetLogger() *zap.SugaredLogger {
	loggerOnce.Do(func() {
		if ilogger == nil {
			ilogger = buildLogger([]byte(defaultLogConfig))
		}
	})
	return ilogger
}
