package types

import (
	"encoding/json"
	"strings"
)

// Document keys of the snapshot feed.
const (
	KeyLobby           = "settings/lobby"
	KeyAuction         = "auction/current"
	PrefixTeams        = "teams/"
	PrefixPlayers      = "players/"
	PrefixParticipants = "participants/"
)

func TeamKey(id string) string        { return PrefixTeams + id }
func PlayerKey(id string) string      { return PrefixPlayers + id }
func ParticipantKey(id string) string { return PrefixParticipants + id }

// Document is one versioned entry of the snapshot feed. Version is the global
// version of the command that last wrote it; Deleted marks a tombstone.
type Document struct {
	Key     string          `json:"key"`
	Version uint64          `json:"version"`
	Deleted bool            `json:"deleted,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func NewDocument(key string, version uint64, v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Document{}, err
	}
	return Document{Key: key, Version: version, Data: raw}, nil
}

func Tombstone(key string, version uint64) Document {
	return Document{Key: key, Version: version, Deleted: true}
}

func (d Document) Decode(v any) error {
	return json.Unmarshal(d.Data, v)
}

// HasPrefix reports whether the document belongs to a collection such as "teams/".
func (d Document) HasPrefix(prefix string) bool {
	return strings.HasPrefix(d.Key, prefix)
}
