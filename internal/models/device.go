package models

import "time"

// DeviceRecord is one entry DeviceStore.Recent returns for a subject:
// a previously observed IP/user-agent/fingerprint combination.
type DeviceRecord struct {
	IP          string
	UserAgent   string
	Fingerprint string
	LastSeen    time.Time
}
