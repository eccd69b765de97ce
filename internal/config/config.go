package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

var errIncompleteShareOutput = errors.New("must specify both shareoutputip and shareoutputport")

// Config holds all application configuration
type Config struct {
	// Downstream decoder connection
	ReadsbHost string
	ReadsbPort int

	// Peer location sharing
	ShareInputPort  int      // 0 disables the receiver
	ShareBindIP     string   // receiver bind address
	ShareOutputIP   string   // empty disables the sender
	ShareOutputPort int
	ShareAllow      []string // source allow-list, empty accepts all

	// File paths
	ICAOMapFile string
	TrackerFile string

	// Tracker registry
	TrackerMax int

	// Status server
	HTTPListen string

	// Identity and behavior
	Department   string
	TestMode     bool
	TickInterval time.Duration
	TestInterval time.Duration
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		ReadsbHost:   "127.0.0.1",
		ReadsbPort:   30001,
		ShareBindIP:  "0.0.0.0",
		ICAOMapFile:  "icao_map.ini",
		TrackerFile:  "trackers.json",
		TrackerMax:   100,
		HTTPListen:   "127.0.0.1:9091",
		Department:   "AIRPORT",
		TestMode:     false,
		TickInterval: time.Second,
		TestInterval: 10 * time.Second,
	}
}

// LoadFromFile loads configuration from INI file
func (c *Config) LoadFromFile(filename string) error {
	cfg, err := ini.LoadSources(ini.LoadOptions{Insensitive: true}, filename)
	if err != nil {
		log.Printf("Skipping config file %s: %s", filename, err)
		return err
	}

	section := cfg.Section("")
	c.ReadsbHost = section.Key("readsbhost").MustString(c.ReadsbHost)
	c.ReadsbPort = section.Key("readsbport").MustInt(c.ReadsbPort)
	c.ShareInputPort = section.Key("shareinputport").MustInt(c.ShareInputPort)
	c.ShareBindIP = section.Key("sharebindip").MustString(c.ShareBindIP)
	c.ShareOutputIP = section.Key("shareoutputip").MustString(c.ShareOutputIP)
	c.ShareOutputPort = section.Key("shareoutputport").MustInt(c.ShareOutputPort)
	if v := section.Key("shareallow").String(); v != "" {
		c.ShareAllow = splitList(v)
	}
	c.ICAOMapFile = section.Key("icaomapfile").MustString(c.ICAOMapFile)
	c.TrackerFile = section.Key("trackerfile").MustString(c.TrackerFile)
	c.TrackerMax = section.Key("trackermax").MustInt(c.TrackerMax)
	c.HTTPListen = section.Key("httplisten").MustString(c.HTTPListen)
	c.Department = section.Key("department").MustString(c.Department)
	c.TestMode = section.Key("testmode").MustBool(c.TestMode)
	c.TickInterval = section.Key("tickinterval").MustDuration(c.TickInterval)
	c.TestInterval = section.Key("testinterval").MustDuration(c.TestInterval)

	return nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("READSBHOST"); v != "" {
		c.ReadsbHost = v
	}
	if v := os.Getenv("READSBPORT"); v != "" {
		c.ReadsbPort, _ = strconv.Atoi(v)
	}
	if v := os.Getenv("SHAREINPUTPORT"); v != "" {
		c.ShareInputPort, _ = strconv.Atoi(v)
	}
	if v := os.Getenv("SHAREBINDIP"); v != "" {
		c.ShareBindIP = v
	}
	if v := os.Getenv("SHAREOUTPUTIP"); v != "" {
		c.ShareOutputIP = v
	}
	if v := os.Getenv("SHAREOUTPUTPORT"); v != "" {
		c.ShareOutputPort, _ = strconv.Atoi(v)
	}
	if v := os.Getenv("SHAREALLOW"); v != "" {
		c.ShareAllow = splitList(v)
	}
	if v := os.Getenv("ICAOMAPFILE"); v != "" {
		c.ICAOMapFile = v
	}
	if v := os.Getenv("TRACKERFILE"); v != "" {
		c.TrackerFile = v
	}
	if v := os.Getenv("TRACKERMAX"); v != "" {
		c.TrackerMax, _ = strconv.Atoi(v)
	}
	if v := os.Getenv("HTTPLISTEN"); v != "" {
		c.HTTPListen = v
	}
	if v := os.Getenv("DEPARTMENT"); v != "" {
		c.Department = v
	}
	if v := os.Getenv("TESTMODE"); v != "" {
		c.TestMode, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("TICKINTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.TickInterval = d
		}
	}
	if v := os.Getenv("TESTINTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.TestInterval = d
		}
	}
}

// Validate reports configuration combinations that cannot work
func (c *Config) Validate() error {
	if (c.ShareOutputIP == "") != (c.ShareOutputPort == 0) {
		return errIncompleteShareOutput
	}
	return nil
}

// New creates a new configuration instance
func New(configFile string) (*Config, error) {
	cfg := DefaultConfig()

	// Load from file first
	cfg.LoadFromFile(configFile)

	// Override with environment variables
	cfg.LoadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
