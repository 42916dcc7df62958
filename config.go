package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	flags "github.com/jessevdk/go-flags"
	"github.com/lnurld/lnurld/lnauth"
	"github.com/lnurld/lnurld/lnnode"
)

const (
	defaultConfigFilename  = "lnurld.conf"
	defaultDataDirname     = "data"
	defaultLogDirname      = "logs"
	defaultLogFilename     = "lnurld.log"
	defaultSecretsFilename = "secrets.db"

	defaultListen            = "localhost:3000"
	defaultEndpoint          = "/lnurl"
	defaultDebugLevel        = "info"
	defaultMaxLogFiles       = 3
	defaultMaxLogFileSize    = 10
	defaultAuthTimeThreshold = 5 * time.Minute
)

var (
	defaultLnurldDir  = btcutil.AppDataDir("lnurld", false)
	defaultConfigFile = filepath.Join(defaultLnurldDir, defaultConfigFilename)
)

// Config defines the configuration options for lnurld.
//
// See loadConfig for further details regarding the configuration loading
// and parsing process.
type Config struct {
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	LnurldDir   string `long:"lnurlddir" description:"The base directory that contains lnurld's data, logs and configuration file"`
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir     string `short:"b" long:"datadir" description:"The directory to store lnurld's data within"`

	LogDir         string `long:"logdir" description:"Directory to log output"`
	MaxLogFiles    int    `long:"maxlogfiles" description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int    `long:"maxlogfilesize" description:"Maximum logfile size in MB"`
	DebugLevel     string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems"`

	Listen      string `long:"listen" description:"Interface/port to listen on for wallet requests"`
	Endpoint    string `long:"endpoint" description:"URL path of the LNURL endpoint"`
	URL         string `long:"url" description:"Externally visible URL of the LNURL endpoint, used as the callback in responses (e.g. https://example.com/lnurl)"`
	TLSCertPath string `long:"tlscertpath" description:"Path to a TLS certificate; when set together with tlskeypath, the endpoint is served over TLS"`
	TLSKeyPath  string `long:"tlskeypath" description:"Path to the TLS private key"`

	APIKeys           []string      `long:"apikey" description:"API key authorized to sign creation requests, in id:hexkey form. May be specified multiple times"`
	AuthTimeThreshold time.Duration `long:"authtimethreshold" description:"Maximum allowed skew between a signed request's timestamp and the server clock"`

	Network string `long:"network" description:"The bitcoin network the node runs on" choice:"mainnet" choice:"testnet" choice:"regtest" choice:"simnet"`

	Store string `long:"store" description:"Secret store implementation to use" choice:"memory" choice:"bolt"`

	Backend    string                   `long:"backend" description:"Lightning node implementation to drive" choice:"lnd" choice:"clightning" choice:"eclair"`
	Lnd        *lnnode.LndConfig        `group:"lnd" namespace:"lnd"`
	Clightning *lnnode.ClightningConfig `group:"clightning" namespace:"clightning"`
	Eclair     *lnnode.EclairConfig     `group:"eclair" namespace:"eclair"`

	// apiKeys holds the parsed form of APIKeys after validation.
	apiKeys []*lnauth.APIKey

	// netParams holds the chain parameters matching Network.
	netParams *chaincfg.Params
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LnurldDir:         defaultLnurldDir,
		ConfigFile:        defaultConfigFile,
		DataDir:           filepath.Join(defaultLnurldDir, defaultDataDirname),
		LogDir:            filepath.Join(defaultLnurldDir, defaultLogDirname),
		MaxLogFiles:       defaultMaxLogFiles,
		MaxLogFileSize:    defaultMaxLogFileSize,
		DebugLevel:        defaultDebugLevel,
		Listen:            defaultListen,
		Endpoint:          defaultEndpoint,
		AuthTimeThreshold: defaultAuthTimeThreshold,
		Network:           "mainnet",
		Store:             "memory",
		Backend:           "lnd",
		Lnd: &lnnode.LndConfig{
			Host: "localhost:10009",
		},
		Clightning: &lnnode.ClightningConfig{},
		Eclair: &lnnode.EclairConfig{
			Host: "localhost:8080",
		},
	}
}

// loadConfig initializes and parses the config using a config file and
// command line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings.
//  2. Pre-parse the command line to check for an alternative config file.
//  3. Load configuration file overwriting defaults with any specified
//     options.
//  4. Parse CLI options and overwrite/add any specified options.
func loadConfig() (*Config, error) {
	preCfg := DefaultConfig()
	if _, err := flags.Parse(preCfg); err != nil {
		return nil, err
	}

	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version)
		os.Exit(0)
	}

	// If the provided lnurld directory is not the default, we'll modify
	// the path to all of the files and directories that will live within
	// it.
	cfg := preCfg
	if cfg.LnurldDir != defaultLnurldDir {
		cfg.DataDir = filepath.Join(cfg.LnurldDir, defaultDataDirname)
		cfg.LogDir = filepath.Join(cfg.LnurldDir, defaultLogDirname)
		if cfg.ConfigFile == defaultConfigFile {
			cfg.ConfigFile = filepath.Join(
				cfg.LnurldDir, defaultConfigFilename,
			)
		}
	}

	// Next, load any additional configuration options from the file, then
	// parse the command line again so flags take precedence.
	if err := flags.IniParse(cfg.ConfigFile, cfg); err != nil {
		// The config file is optional; only a parse failure of an
		// existing file is fatal.
		if _, ok := err.(*os.PathError); !ok {
			return nil, err
		}
	}
	if _, err := flags.Parse(cfg); err != nil {
		return nil, err
	}

	// Create the lnurld directory if it doesn't already exist.
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("unable to create data dir: %w", err)
	}

	switch cfg.Network {
	case "mainnet":
		cfg.netParams = &chaincfg.MainNetParams
	case "testnet":
		cfg.netParams = &chaincfg.TestNet3Params
	case "regtest":
		cfg.netParams = &chaincfg.RegressionNetParams
	case "simnet":
		cfg.netParams = &chaincfg.SimNetParams
	}

	// Parse the configured API keys. If none were configured, generate an
	// ephemeral one so signed requests remain usable, and print it once.
	for _, rawKey := range cfg.APIKeys {
		apiKey, err := lnauth.ParseAPIKey(rawKey)
		if err != nil {
			return nil, err
		}
		cfg.apiKeys = append(cfg.apiKeys, apiKey)
	}
	if len(cfg.apiKeys) == 0 {
		apiKey, err := lnauth.GenerateAPIKey()
		if err != nil {
			return nil, err
		}
		cfg.apiKeys = append(cfg.apiKeys, apiKey)
		fmt.Printf("No API keys configured, generated ephemeral "+
			"key: %v\n", apiKey)
	}

	if cfg.AuthTimeThreshold <= 0 {
		return nil, fmt.Errorf("authtimethreshold must be positive")
	}

	// Derive the externally visible URL from the listen address when not
	// set explicitly.
	if cfg.URL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" && cfg.TLSKeyPath != "" {
			scheme = "https"
		}
		cfg.URL = fmt.Sprintf("%s://%s%s", scheme, cfg.Listen,
			cfg.Endpoint)
	}

	return cfg, nil
}
