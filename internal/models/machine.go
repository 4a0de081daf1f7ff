package models

import (
	"time"

	"github.com/google/uuid"
)

// Machine represents a registered target system in the fleet.
type Machine struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Hostname    string     `json:"hostname,omitempty"`
	IPAddress   string     `json:"ip_address"`
	MACAddress  string     `json:"mac_address,omitempty"`
	HAEntityID  string     `json:"ha_entity_id,omitempty"`
	Description string     `json:"description,omitempty"`
	IsActive    bool       `json:"is_active"`
	OSName      string     `json:"os_name,omitempty"`
	OSVersion   string     `json:"os_version,omitempty"`
	LastSeen    *time.Time `json:"last_seen,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewMachine creates a new Machine with the given name and IP address.
func NewMachine(name, ipAddress string) *Machine {
	now := time.Now().UTC()
	return &Machine{
		ID:        uuid.New(),
		Name:      name,
		IPAddress: ipAddress,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkSeen advances the machine's last seen time to seenAt unless an
// already recorded snapshot carries a later timestamp.
func (m *Machine) MarkSeen(seenAt time.Time) {
	seenAt = seenAt.UTC()
	if m.LastSeen == nil || seenAt.After(*m.LastSeen) {
		m.LastSeen = &seenAt
	}
}

// SetIdentity fills hostname and OS identity fields that have not been
// populated yet. Fields already set are never overwritten.
func (m *Machine) SetIdentity(hostname, osName, osVersion string) {
	if m.Hostname == "" {
		m.Hostname = hostname
	}
	if m.OSName == "" {
		m.OSName = osName
	}
	if m.OSVersion == "" {
		m.OSVersion = osVersion
	}
}
