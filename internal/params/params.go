package params

import (
	"errors"
	"fmt"
)

const (
	keySQL = "sql"
	keyRun = "run"
)

var ErrInvalidSQLType = errors.New("params: sql must be a string")

// Params is the step configuration after migration.
type Params struct {
	SQL string `json:"sql"`
}

// FromMap decodes a migrated configuration map. A missing sql key decodes to
// the empty query.
func FromMap(raw map[string]any) (Params, error) {
	value, ok := raw[keySQL]
	if !ok || value == nil {
		return Params{}, nil
	}
	sqlText, ok := value.(string)
	if !ok {
		return Params{}, fmt.Errorf("%w: got %T", ErrInvalidSQLType, value)
	}
	return Params{SQL: sqlText}, nil
}

// Version reports the configuration shape: 0 carried a button-generated run
// field, 1 does not.
func Version(raw map[string]any) int {
	if _, ok := raw[keyRun]; ok {
		return 0
	}
	return 1
}

// Migrate upgrades raw to the current shape. Already-current maps are returned
// unchanged.
func Migrate(raw map[string]any) map[string]any {
	if Version(raw) == 0 {
		return migrateV0ToV1(raw)
	}
	return raw
}

func migrateV0ToV1(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for key, value := range raw {
		if key == keyRun {
			continue
		}
		out[key] = value
	}
	return out
}

// Decode migrates raw and decodes the result.
func Decode(raw map[string]any) (Params, error) {
	return FromMap(Migrate(raw))
}
