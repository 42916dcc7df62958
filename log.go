package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
	"github.com/lnurld/lnurld/build"
	"github.com/lnurld/lnurld/lnauth"
	"github.com/lnurld/lnurld/lnnode"
	"github.com/lnurld/lnurld/lnurl"
	"github.com/lnurld/lnurld/secrets"
	"github.com/lnurld/lnurld/signal"
	"github.com/lnurld/lnurld/subproto"
)

// Loggers per subsystem. A single backend logger is created and all
// subsystem loggers created from it will write to the backend. When adding
// new subsystems, add the subsystem logger variable here and to the
// subsystemLoggers map.
//
// Loggers can not be used before the log rotator has been initialized with a
// log file. This must be performed early during application startup by
// calling initLogRotator.
var (
	logWriter = &build.LogWriter{}

	// backendLog is the logging backend used to create all subsystem
	// loggers.
	backendLog = btclog.NewBackend(logWriter)

	// logRotator is one of the logging outputs. It should be closed on
	// application shutdown.
	logRotator *rotator.Rotator

	lurdLog = build.NewSubLogger("LURD", backendLog.Logger)
	authLog = build.NewSubLogger(lnauth.Subsystem, backendLog.Logger)
	sprtLog = build.NewSubLogger(subproto.Subsystem, backendLog.Logger)
	scrtLog = build.NewSubLogger(secrets.Subsystem, backendLog.Logger)
	lnndLog = build.NewSubLogger(lnnode.Subsystem, backendLog.Logger)
	lurlLog = build.NewSubLogger(lnurl.Subsystem, backendLog.Logger)
	sgnlLog = build.NewSubLogger(signal.Subsystem, backendLog.Logger)
)

// Initialize package-global logger variables.
func init() {
	lnauth.UseLogger(authLog)
	subproto.UseLogger(sprtLog)
	secrets.UseLogger(scrtLog)
	lnnode.UseLogger(lnndLog)
	lnurl.UseLogger(lurlLog)
	signal.UseLogger(sgnlLog)
}

// subsystemLoggers maps each subsystem identifier to its associated logger.
var subsystemLoggers = map[string]btclog.Logger{
	"LURD":             lurdLog,
	lnauth.Subsystem:   authLog,
	subproto.Subsystem: sprtLog,
	secrets.Subsystem:  scrtLog,
	lnnode.Subsystem:   lnndLog,
	lnurl.Subsystem:    lurlLog,
	signal.Subsystem:   sgnlLog,
}

// initLogRotator initializes the logging rotator to write logs to logFile
// and create roll files in the same directory. It must be called before the
// package-global log rotator variables are used.
func initLogRotator(logFile string, maxLogFileSize, maxLogFiles int) {
	logDir, _ := filepath.Split(logFile)
	err := os.MkdirAll(logDir, 0700)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory: %v\n", err)
		os.Exit(1)
	}
	r, err := rotator.New(
		logFile, int64(maxLogFileSize*1024), false, maxLogFiles,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create file rotator: %v\n", err)
		os.Exit(1)
	}

	pr, pw := io.Pipe()
	go r.Run(pr)

	logWriter.RotatorPipe = pw
	logRotator = r
}

// setLogLevel sets the logging level for provided subsystem. Invalid
// subsystems are ignored.
func setLogLevel(subsystemID string, logLevel string) {
	// Ignore invalid subsystems.
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}

	// Defaults to info if the log level is invalid.
	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// setLogLevels sets the log level for all subsystem loggers to the passed
// level.
func setLogLevels(logLevel string) {
	// Configure all sub-systems with the new logging level.
	for subsystemID := range subsystemLoggers {
		setLogLevel(subsystemID, logLevel)
	}
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace", "debug", "info", "warn", "error", "critical":
		return true
	}
	return false
}

// parseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly. An appropriate error is returned if anything is
// invalid.
func parseAndSetDebugLevels(debugLevel string) error {
	// When the specified string doesn't have any delimiters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") &&
		!strings.Contains(debugLevel, "=") {

		// Validate debug log level.
		if !validLogLevel(debugLevel) {
			return fmt.Errorf("the specified debug level [%v] "+
				"is invalid", debugLevel)
		}

		// Change the logging level for all subsystems.
		setLogLevels(debugLevel)

		return nil
	}

	// Split the specified string into subsystem/level pairs while
	// detecting issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return fmt.Errorf("the specified debug level "+
				"contains an invalid subsystem/level pair "+
				"[%v]", logLevelPair)
		}

		// Extract the specified subsystem and log level.
		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[len(fields)-1]

		// Validate subsystem.
		if _, exists := subsystemLoggers[subsysID]; !exists {
			return fmt.Errorf("the specified subsystem [%v] is "+
				"invalid", subsysID)
		}

		// Validate log level.
		if !validLogLevel(logLevel) {
			return fmt.Errorf("the specified debug level [%v] "+
				"is invalid", logLevel)
		}

		setLogLevel(subsysID, logLevel)
	}

	return nil
}
