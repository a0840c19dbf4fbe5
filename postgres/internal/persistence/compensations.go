package persistence

import (
	"encoding/gob"
	"errors"

	corep "github.com/okarhu/unwind/internal/persistence"
	"github.com/okarhu/unwind/pkg/api"
)

// pgStoredCompensation is the persisted shape of a CompensationResult; errors
// flatten to strings across the storage boundary.
type pgStoredCompensation struct {
	Step    string
	Skipped bool
	Error   string
}

func init() {
	gob.Register([]pgStoredCompensation{})
}

func encodeCompensations(comps []api.CompensationResult) ([]byte, error) {
	if len(comps) == 0 {
		return nil, nil
	}
	stored := make([]pgStoredCompensation, len(comps))
	for i, c := range comps {
		stored[i] = pgStoredCompensation{Step: c.Step, Skipped: c.Skipped}
		if c.Err != nil {
			stored[i].Error = c.Err.Error()
		}
	}
	return corep.EncodeValue(stored)
}

func decodeCompensations(data []byte) ([]api.CompensationResult, error) {
	if len(data) == 0 {
		return nil, nil
	}
	stored, err := corep.DecodeValue[[]pgStoredCompensation](data)
	if err != nil {
		return nil, err
	}
	comps := make([]api.CompensationResult, len(stored))
	for i, c := range stored {
		comps[i] = api.CompensationResult{Step: c.Step, Skipped: c.Skipped}
		if c.Error != "" {
			comps[i].Err = errors.New(c.Error)
		}
	}
	return comps, nil
}
