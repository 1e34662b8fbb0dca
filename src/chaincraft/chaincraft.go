// Package chaincraft wires a node together from configuration: keys, peer
// set, store, transport, consensus strategy, and the HTTP service.
package chaincraft

import (
	"fmt"
	"os"

	"github.com/chaincraft/chaincraft/src/config"
	"github.com/chaincraft/chaincraft/src/consensus"
	"github.com/chaincraft/chaincraft/src/crypto"
	"github.com/chaincraft/chaincraft/src/crypto/keys"
	"github.com/chaincraft/chaincraft/src/net"
	"github.com/chaincraft/chaincraft/src/node"
	"github.com/chaincraft/chaincraft/src/peers"
	"github.com/chaincraft/chaincraft/src/service"
	"github.com/chaincraft/chaincraft/src/store"
)

// Chaincraft is a struct containing the key parts of a chaincraft node.
type Chaincraft struct {
	Config    *config.Config
	Node      *node.Node
	Transport net.Transport
	Store     store.Store
	Peers     []*peers.Peer
	Service   *service.Service
}

// NewChaincraft is a factory method to produce a Chaincraft instance.
func NewChaincraft(config *config.Config) *Chaincraft {
	engine := &Chaincraft{
		Config: config,
	}

	return engine
}

func (c *Chaincraft) initPeers() error {
	peerStore := peers.NewJSONPeerSet(c.Config.DataDir)

	participants, err := peerStore.PeerSet()
	if err != nil {
		if os.IsNotExist(err) {
			// A node without bootstrap peers starts alone and waits for
			// inbound handshakes.
			c.Config.Logger().Debug("No peers.json, starting with an empty peer set")
			return nil
		}
		return err
	}

	c.Peers = participants

	return nil
}

func (c *Chaincraft) initStore() error {
	if !c.Config.Store {
		c.Store = store.NewInmemStore()

		c.Config.Logger().Debug("Created new in-mem store")
	} else {
		var err error

		c.Config.Logger().WithField("path", c.Config.DatabaseDir).Debug("Opening badger store")

		c.Store, err = store.NewBadgerStore(c.Config.CacheSize, c.Config.DatabaseDir)
		if err != nil {
			return err
		}
	}

	return nil
}

func (c *Chaincraft) initTransport() error {
	transport, err := net.NewTCPTransport(
		c.Config.BindAddr,
		c.Config.AdvertiseAddr,
		c.Config.MaxPool,
		c.Config.TCPTimeout,
		c.Config.HandshakeTimeout,
		c.Config.Logger(),
	)

	if err != nil {
		return err
	}

	c.Transport = transport

	return nil
}

func (c *Chaincraft) initKey() error {
	if c.Config.Key == nil {
		simpleKeyfile := keys.NewSimpleKeyfile(c.Config.Keyfile())

		privKey, err := simpleKeyfile.ReadKey()
		if err != nil {
			c.Config.Logger().Warn("Cannot read private key from file", err)

			privKey, err = Keygen(c.Config.Keyfile())
			if err != nil {
				c.Config.Logger().Error("Cannot generate a new private key", err)

				return err
			}

			c.Config.Logger().Info("Created a new key: ", keys.PublicKeyHex(&privKey.PublicKey))
		}

		c.Config.Key = privKey
	}
	return nil
}

func (c *Chaincraft) initStrategy() (consensus.Validator, error) {
	switch c.Config.Strategy {
	case "", "append":
		return consensus.NewAppendValidator(), nil
	case "stake":
		stakes, err := ReadStakes(c.Config.DataDir)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %s", config.DefaultStakesFile, err)
		}
		return consensus.NewStakeValidator(crypto.Provider{}, stakes, c.Config.MinStake), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", c.Config.Strategy)
	}
}

func (c *Chaincraft) initNode() error {
	strategy, err := c.initStrategy()
	if err != nil {
		return err
	}

	identity := node.NewIdentity(c.Config.Key, c.Config.Moniker)

	c.Node = node.NewNode(
		c.Config,
		identity,
		c.Peers,
		c.Store,
		c.Transport,
		strategy,
	)

	if err := c.Node.Init(); err != nil {
		return fmt.Errorf("failed to initialize node: %s", err)
	}

	return nil
}

func (c *Chaincraft) initService() error {
	if !c.Config.NoService {
		c.Service = service.NewService(c.Config.ServiceAddr, c.Node, c.Config.Logger())
	}
	return nil
}

// Init initialises the node based on its configuration.
func (c *Chaincraft) Init() error {
	if err := c.initPeers(); err != nil {
		return err
	}

	if err := c.initStore(); err != nil {
		return err
	}

	if err := c.initTransport(); err != nil {
		return err
	}

	if err := c.initKey(); err != nil {
		return err
	}

	if err := c.initNode(); err != nil {
		return err
	}

	if err := c.initService(); err != nil {
		return err
	}

	return nil
}

// Run starts the service and the node. This is a blocking call.
func (c *Chaincraft) Run() {
	if c.Service != nil {
		go c.Service.Serve()
	}

	c.Node.Run(true)
}
