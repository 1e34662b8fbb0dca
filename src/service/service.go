package service

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"sync"

	"github.com/chaincraft/chaincraft/src/node"
	"github.com/chaincraft/chaincraft/src/object"
	"github.com/chaincraft/chaincraft/src/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Service is the HTTP API of a chaincraft node.
type Service struct {
	sync.Mutex

	bindAddress string
	node        *node.Node
	logger      *logrus.Entry
}

// NewService instantiates a Service.
func NewService(bindAddress string, n *node.Node, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

// registerHandlers registers the API handlers with the DefaultServerMux of the
// http package. It is possible that another server in the same process is
// simultaneously using the DefaultServerMux. In which case, the handlers will
// be accessible from both servers. This is useful when chaincraft is used
// in-memory and expected to use the same endpoint (address:port) as the
// application's API.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering chaincraft API handlers")
	http.HandleFunc("/stats", s.makeHandler(s.GetStats))
	http.HandleFunc("/object/", s.makeHandler(s.GetObject))
	http.HandleFunc("/submit", s.makeHandler(s.Submit))
	http.HandleFunc("/peers", s.makeHandler(s.GetPeers))
	http.Handle("/metrics", promhttp.HandlerFor(
		s.node.Registry(),
		promhttp.HandlerOpts{},
	))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Serve calls ListenAndServe. This is a blocking call. It is not necessary to
// call Serve when chaincraft is used in-memory and another server has already
// been started with the DefaultServerMux and the same address:port
// combination. Indeed, the API handlers have already been registered when the
// service was instantiated.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving chaincraft API")

	// Use the DefaultServerMux
	err := http.ListenAndServe(s.bindAddress, nil)
	if err != nil {
		s.logger.Error(err)
	}
}

// GetStats returns the node's runtime statistics.
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.node.GetStats()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}

// GetObject returns a committed object by digest.
func (s *Service) GetObject(w http.ResponseWriter, r *http.Request) {
	digest := r.URL.Path[len("/object/"):]

	if digest == "" {
		http.Error(w, "missing digest", http.StatusBadRequest)

		return
	}

	obj, err := s.node.GetObject(digest)

	if err != nil {
		s.logger.WithError(err).Debugf("Retrieving object %s", digest)

		if store.IsKeyNotFound(err) {
			http.Error(w, err.Error(), http.StatusNotFound)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}

		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(obj)
}

// Submit ingests the request body as a transaction payload and returns the
// resulting digest.
func (s *Service) Submit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "expected POST", http.StatusMethodNotAllowed)

		return
	}

	payload, err := ioutil.ReadAll(r.Body)

	if err != nil || len(payload) == 0 {
		http.Error(w, "empty payload", http.StatusBadRequest)

		return
	}

	digest, err := s.node.SubmitLocal(object.Transaction, payload)

	if err != nil {
		s.logger.WithError(err).Error("Submitting payload")

		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(map[string]string{"digest": digest})
}

// GetPeers returns a snapshot of the peer table.
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(s.node.GetPeers())
}
