package commands

import (
	"github.com/chaincraft/chaincraft/src/chaincraft"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts a chaincraft node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runChaincraft,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runChaincraft(cmd *cobra.Command, args []string) error {
	engine := chaincraft.NewChaincraft(_config)

	if err := engine.Init(); err != nil {
		_config.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	engine.Run()

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.LogFile, "Optional file to duplicate log output to")
	cmd.Flags().String("moniker", _config.Moniker, "Optional name")

	// Network
	cmd.Flags().StringP("listen", "l", _config.BindAddr, "Listen IP:Port for chaincraft node")
	cmd.Flags().StringP("advertise", "a", _config.AdvertiseAddr, "Advertise IP:Port for chaincraft node")
	cmd.Flags().DurationP("timeout", "t", _config.TCPTimeout, "TCP Timeout")
	cmd.Flags().Duration("handshake-timeout", _config.HandshakeTimeout, "Handshake Timeout")
	cmd.Flags().Int("max-pool", _config.MaxPool, "Connection pool size max")
	cmd.Flags().Int("max-peers", _config.MaxPeers, "Max number of connected peers")
	cmd.Flags().Duration("peer-timeout", _config.PeerTimeout, "Silence before a connected peer is considered dead")
	cmd.Flags().Duration("backoff-base", _config.BackoffBase, "First reconnection delay, doubled on every failure")

	// Service
	cmd.Flags().Bool("no-service", _config.NoService, "Disable the HTTP service")
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP service")

	// Store
	cmd.Flags().Bool("store", _config.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", _config.DatabaseDir, "Database directory")
	cmd.Flags().Int("cache-size", _config.CacheSize, "Number of items in the store's read-through cache")

	// Node configuration
	cmd.Flags().Duration("heartbeat", _config.HeartbeatTimeout, "Time between maintenance cycles")
	cmd.Flags().Int("dedup-capacity", _config.DedupCapacity, "Max number of digests in the dedup cache")
	cmd.Flags().Duration("dedup-ttl", _config.DedupTTL, "Max age of a dedup cache entry")
	cmd.Flags().Int("pending-retries", _config.PendingRetries, "Retry budget of an object deferred on a missing dependency")
	cmd.Flags().Int("pending-capacity", _config.PendingCapacity, "Max number of objects parked on a missing dependency")
	cmd.Flags().Duration("pending-ttl", _config.PendingTTL, "Max age of an object parked on a missing dependency")
	cmd.Flags().Int("queue-size", _config.QueueSize, "Capacity of each peer's outbound send queue")
	cmd.Flags().String("strategy", _config.Strategy, "Consensus strategy: append or stake")
	cmd.Flags().Uint64("min-stake", _config.MinStake, "Stake threshold of the stake strategy")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.SetDataDir(_config.DataDir)

	logFields := logrus.Fields{
		"DataDir":          _config.DataDir,
		"BindAddr":         _config.BindAddr,
		"AdvertiseAddr":    _config.AdvertiseAddr,
		"ServiceAddr":      _config.ServiceAddr,
		"NoService":        _config.NoService,
		"MaxPool":          _config.MaxPool,
		"MaxPeers":         _config.MaxPeers,
		"Store":            _config.Store,
		"LogLevel":         _config.LogLevel,
		"Moniker":          _config.Moniker,
		"HeartbeatTimeout": _config.HeartbeatTimeout,
		"TCPTimeout":       _config.TCPTimeout,
		"HandshakeTimeout": _config.HandshakeTimeout,
		"PeerTimeout":      _config.PeerTimeout,
		"BackoffBase":      _config.BackoffBase,
		"DedupCapacity":    _config.DedupCapacity,
		"DedupTTL":         _config.DedupTTL,
		"PendingRetries":   _config.PendingRetries,
		"PendingCapacity":  _config.PendingCapacity,
		"PendingTTL":       _config.PendingTTL,
		"QueueSize":        _config.QueueSize,
		"CacheSize":        _config.CacheSize,
		"Strategy":         _config.Strategy,
	}

	if _config.Store {
		logFields["DatabaseDir"] = _config.DatabaseDir
	}

	if _config.Strategy == "stake" {
		logFields["MinStake"] = _config.MinStake
	}

	_config.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/chaincraft.toml (.json, .yaml also work)
	viper.SetConfigName("chaincraft")    // name of config file (without extension)
	viper.AddConfigPath(_config.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
