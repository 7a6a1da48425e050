package domain

import "time"

// InstallReceipt records a completed install so that later runs can skip it.
type InstallReceipt struct {
	Name         string              `json:"name"`
	Version      string              `json:"version,omitzero"`
	Checksum     string              `json:"sha256"`
	Prefix       string              `json:"prefix"`
	Fingerprint  string              `json:"fingerprint"`
	Dependencies []ReceiptDependency `json:"dependencies,omitempty"`
	InstalledAt  time.Time           `json:"installed_at,omitzero"`
}

// ReceiptDependency is the persisted form of a DependencySpec.
type ReceiptDependency struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}
