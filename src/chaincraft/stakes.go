package chaincraft

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"path/filepath"

	"github.com/chaincraft/chaincraft/src/config"
)

// ReadStakes parses the stakes.json file in the data directory. It maps
// stakeholder public keys, hex-encoded, to their stake, and feeds the stake
// strategy.
func ReadStakes(base string) (map[string]uint64, error) {
	buf, err := ioutil.ReadFile(filepath.Join(base, config.DefaultStakesFile))
	if err != nil {
		return nil, err
	}

	stakes := map[string]uint64{}
	dec := json.NewDecoder(bytes.NewReader(buf))
	if err := dec.Decode(&stakes); err != nil {
		return nil, err
	}

	return stakes, nil
}
