package validation

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ChallengePack is a batch of official challenges, usually kept as a YAML file
// next to the challenge assets.
//
//	hidden: true
//	challenges:
//	  - title: Baby RSA
//	    category: crypto
//	    ...
type ChallengePack struct {
	Hidden     bool              `json:"hidden" yaml:"hidden"`
	Challenges []ChallengeFields `json:"challenges" yaml:"challenges"`
}

// ErrEmptyPack is returned for a pack with no challenges.
var ErrEmptyPack = errors.New("challenge pack is empty")

// ParseChallengePack decodes a pack from YAML. JSON input parses as well.
// A bare list of challenges is accepted as a pack that is not hidden.
func ParseChallengePack(data []byte) (ChallengePack, error) {
	var pack ChallengePack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		var list []ChallengeFields
		if listErr := yaml.Unmarshal(data, &list); listErr != nil {
			return ChallengePack{}, fmt.Errorf("parse challenge pack: %w", err)
		}
		pack = ChallengePack{Challenges: list}
	}
	if len(pack.Challenges) == 0 {
		return ChallengePack{}, ErrEmptyPack
	}
	return pack, nil
}
