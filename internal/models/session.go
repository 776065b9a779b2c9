package models

import "time"

// FlowSnapshot is a read-only copy of one upload-and-analyze flow.
type FlowSnapshot struct {
	ID         string        `json:"id" msgpack:"id"`
	Locale     string        `json:"locale" msgpack:"locale"`
	DarkMode   bool          `json:"darkMode" msgpack:"darkMode"`
	Files      []StagedFile  `json:"files" msgpack:"files"`
	State      AnalysisState `json:"state" msgpack:"state"`
	Error      string        `json:"error,omitempty" msgpack:"error,omitempty"`
	Notice     string        `json:"notice,omitempty" msgpack:"notice,omitempty"`
	CanSubmit  bool          `json:"canSubmit" msgpack:"canSubmit"`
	CanReset   bool          `json:"canReset" msgpack:"canReset"`
	Version    uint64        `json:"version" msgpack:"version"`
	CreatedAt  time.Time     `json:"createdAt" msgpack:"createdAt"`
	LastAccess time.Time     `json:"lastAccess" msgpack:"lastAccess"`
}
