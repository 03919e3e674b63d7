package storage

import (
	"encoding/json"
	"fmt"

	"github.com/louisbranch/tresorgate/internal/services/bridge/identity"
)

// EncodeMembers serializes a member set for a text column.
func EncodeMembers(members []string) (string, error) {
	if members == nil {
		members = []string{}
	}
	data, err := json.Marshal(members)
	if err != nil {
		return "", fmt.Errorf("encode members: %w", err)
	}
	return string(data), nil
}

// DecodeMembers parses a member set stored by EncodeMembers.
func DecodeMembers(value string) ([]string, error) {
	if value == "" {
		return []string{}, nil
	}
	var members []string
	if err := json.Unmarshal([]byte(value), &members); err != nil {
		return nil, fmt.Errorf("decode members: %w", err)
	}
	if members == nil {
		members = []string{}
	}
	return members, nil
}

// EncodeRegistration serializes registration data; nil encodes as an empty
// string so the column can be stored as NULL.
func EncodeRegistration(reg *identity.RegistrationData) (string, error) {
	if reg == nil {
		return "", nil
	}
	data, err := json.Marshal(reg)
	if err != nil {
		return "", fmt.Errorf("encode registration: %w", err)
	}
	return string(data), nil
}

// DecodeRegistration parses registration data stored by EncodeRegistration.
func DecodeRegistration(value string) (*identity.RegistrationData, error) {
	if value == "" {
		return nil, nil
	}
	var reg identity.RegistrationData
	if err := json.Unmarshal([]byte(value), &reg); err != nil {
		return nil, fmt.Errorf("decode registration: %w", err)
	}
	return &reg, nil
}
