package config

import (
	"crypto/ecdsa"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/chaincraft/chaincraft/src/common"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// private key
	DefaultKeyfile = "priv_key"

	// DefaultBadgerFile is the default name of the folder containing the
	// Badger database
	DefaultBadgerFile = "badger_db"

	// DefaultPeersFile is the default name of the file containing the
	// bootstrap peer addresses
	DefaultPeersFile = "peers.json"

	// DefaultStakesFile is the default name of the file mapping stakeholder
	// public keys to their stake, used by the stake strategy
	DefaultStakesFile = "stakes.json"
)

// Default configuration values.
const (
	DefaultLogLevel         = "debug"
	DefaultBindAddr         = "127.0.0.1:1337"
	DefaultServiceAddr      = "127.0.0.1:8000"
	DefaultHeartbeatTimeout = 1000 * time.Millisecond
	DefaultTCPTimeout       = 1000 * time.Millisecond
	DefaultHandshakeTimeout = 10000 * time.Millisecond
	DefaultPeerTimeout      = 30 * time.Second
	DefaultBackoffBase      = 1 * time.Second
	DefaultMaxPool          = 2
	DefaultMaxPeers         = 50
	DefaultDedupCapacity    = 10000
	DefaultDedupTTL         = 5 * time.Minute
	DefaultPendingRetries   = 3
	DefaultPendingCapacity  = 1000
	DefaultPendingTTL       = 1 * time.Minute
	DefaultQueueSize        = 256
	DefaultCacheSize        = 10000
	DefaultStore            = false
	DefaultStrategy         = "append"
	DefaultMinStake         = uint64(1)
)

// Config contains all the configuration properties of a chaincraft node.
type Config struct {
	// DataDir is the top-level directory containing chaincraft configuration
	// and data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, duplicates the log output to a file.
	LogFile string `mapstructure:"log-file"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	// BindAddr is the local address:port where this node gossips with other
	// nodes. In some cases, there may be a routable address that cannot be
	// bound. Use AdvertiseAddr to advertise a different address to support
	// this.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is used to change the address that we advertise to other
	// nodes.
	AdvertiseAddr string `mapstructure:"advertise"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// HeartbeatTimeout is the frequency of the gossip timer which drives peer
	// discovery, ping/pong liveness, and capacity enforcement.
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat"`

	// TCPTimeout is the timeout of gossip RPC connections.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// HandshakeTimeout is the timeout of Handshake requests.
	HandshakeTimeout time.Duration `mapstructure:"handshake-timeout"`

	// PeerTimeout is how long a connected peer may stay silent before it is
	// considered dead and disconnected. Disconnected records older than ten
	// times this value are removed from the table.
	PeerTimeout time.Duration `mapstructure:"peer-timeout"`

	// BackoffBase is the first reconnection delay after a connection failure.
	// The delay doubles with every consecutive failure.
	BackoffBase time.Duration `mapstructure:"backoff-base"`

	// MaxPool controls how many connections are pooled per target in the
	// gossip routines.
	MaxPool int `mapstructure:"max-pool"`

	// MaxPeers is the fan-out ceiling: the maximum number of simultaneously
	// connected peers.
	MaxPeers int `mapstructure:"max-peers"`

	// DedupCapacity is the max number of digests in the dedup cache.
	DedupCapacity int `mapstructure:"dedup-capacity"`

	// DedupTTL is the max age of a dedup cache entry.
	DedupTTL time.Duration `mapstructure:"dedup-ttl"`

	// PendingRetries is the retry budget of an object deferred on a missing
	// dependency.
	PendingRetries int `mapstructure:"pending-retries"`

	// PendingCapacity is the max number of objects parked on a missing
	// dependency. Overflow evicts the oldest parked objects.
	PendingCapacity int `mapstructure:"pending-capacity"`

	// PendingTTL is how long an object may stay parked on a missing
	// dependency before it is dropped.
	PendingTTL time.Duration `mapstructure:"pending-ttl"`

	// QueueSize is the capacity of each peer's outbound send queue. When a
	// queue is full, further sends to that peer are dropped.
	QueueSize int `mapstructure:"queue-size"`

	// CacheSize is the max number of items in the store's read-through cache.
	CacheSize int `mapstructure:"cache-size"`

	// Store activates persistent storage.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// Strategy selects the consensus validator: "append" or "stake".
	Strategy string `mapstructure:"strategy"`

	// MinStake is the stake threshold of the stake strategy. An object is
	// only accepted when its signer holds at least this much stake.
	MinStake uint64 `mapstructure:"min-stake"`

	// Key is the private key of the node.
	Key *ecdsa.PrivateKey

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:          DefaultDataDir(),
		LogLevel:         DefaultLogLevel,
		BindAddr:         DefaultBindAddr,
		ServiceAddr:      DefaultServiceAddr,
		HeartbeatTimeout: DefaultHeartbeatTimeout,
		TCPTimeout:       DefaultTCPTimeout,
		HandshakeTimeout: DefaultHandshakeTimeout,
		PeerTimeout:      DefaultPeerTimeout,
		BackoffBase:      DefaultBackoffBase,
		MaxPool:          DefaultMaxPool,
		MaxPeers:         DefaultMaxPeers,
		DedupCapacity:    DefaultDedupCapacity,
		DedupTTL:         DefaultDedupTTL,
		PendingRetries:   DefaultPendingRetries,
		PendingCapacity:  DefaultPendingCapacity,
		PendingTTL:       DefaultPendingTTL,
		QueueSize:        DefaultQueueSize,
		CacheSize:        DefaultCacheSize,
		Store:            DefaultStore,
		DatabaseDir:      DefaultDatabaseDir(),
		Strategy:         DefaultStrategy,
		MinStake:         DefaultMinStake,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t)
	return config
}

// SetDataDir sets the top-level chaincraft directory, and updates the
// database directory if it is currently set to the default value. If the
// database directory is not currently the default, it means the user has
// explicitly set it to something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// Logger returns a formatted logrus Entry, with prefix set to "chaincraft".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			c.logger.Hooks.Add(lfshook.NewHook(
				lfshook.PathMap{
					logrus.InfoLevel:  c.LogFile,
					logrus.WarnLevel:  c.LogFile,
					logrus.ErrorLevel: c.LogFile,
					logrus.DebugLevel: c.LogFile,
				},
				&logrus.TextFormatter{},
			))
		}
	}
	return c.logger.WithField("prefix", "chaincraft")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir returns the default directory name for top-level chaincraft
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Chaincraft")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Chaincraft")
		} else {
			return filepath.Join(home, ".chaincraft")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
