package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"slices"
	"strings"
)

const (
	RoleRender        = "render"
	RoleHistoryReader = "history_reader"
)

type Identity struct {
	ClientID string
	Roles    []string
}

func (i Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

type staticKey struct {
	key      string
	identity Identity
}

// StaticAPIKeyValidator checks keys from a "key:client:role|role,..." list.
type StaticAPIKeyValidator struct {
	keys []staticKey
}

func NewStaticAPIKeyValidator(keyList string) (*StaticAPIKeyValidator, error) {
	validator := &StaticAPIKeyValidator{}
	keyList = strings.TrimSpace(keyList)
	if keyList == "" {
		return validator, nil
	}

	for _, entry := range strings.Split(keyList, ",") {
		key, client, roleList, ok := splitEntry(entry)
		if !ok {
			return nil, fmt.Errorf("invalid static key entry %q: expected key:client:role|role", entry)
		}
		roles := make([]string, 0, 2)
		for _, role := range strings.Split(roleList, "|") {
			if role = strings.TrimSpace(role); role != "" {
				roles = append(roles, role)
			}
		}
		if len(roles) == 0 {
			return nil, fmt.Errorf("invalid static key entry %q: at least one role is required", entry)
		}
		slices.Sort(roles)
		validator.keys = append(validator.keys, staticKey{key: key, identity: Identity{ClientID: client, Roles: roles}})
	}
	return validator, nil
}

func splitEntry(entry string) (key, client, roles string, ok bool) {
	parts := strings.Split(strings.TrimSpace(entry), ":")
	if len(parts) != 3 {
		return "", "", "", false
	}
	key, client = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if key == "" || client == "" {
		return "", "", "", false
	}
	return key, client, parts[2], true
}

func (v *StaticAPIKeyValidator) Validate(_ context.Context, apiKey string) (Identity, bool) {
	for _, candidate := range v.keys {
		if subtle.ConstantTimeCompare([]byte(candidate.key), []byte(apiKey)) == 1 {
			return candidate.identity, true
		}
	}
	return Identity{}, false
}
