package ftp

import "sync/atomic"

// Stats carries the server's advisory counters. All fields except the active
// gauge are monotonic for the lifetime of the process. Each field is an
// atomic counter on its own; a snapshot loads them one by one, so it is not
// a consistent cut across fields.
type Stats struct {
	clientsActive       atomic.Int32
	clientsConnected    atomic.Uint32
	clientsDisconnected atomic.Uint32
	filesSentOK         atomic.Uint32
	filesSentFail       atomic.Uint32
	filesReceivedOK     atomic.Uint32
	filesReceivedFail   atomic.Uint32
}

// StatsSnapshot is a point-in-time copy of Stats, shaped for the status API.
type StatsSnapshot struct {
	ClientsActive       int32  `json:"clients_active"`
	ClientsMax          int    `json:"clients_max"`
	ClientsConnected    uint32 `json:"clients_connected"`
	ClientsDisconnected uint32 `json:"clients_disconnected"`
	FilesSentOK         uint32 `json:"files_sent_ok"`
	FilesSentFail       uint32 `json:"files_sent_fail"`
	FilesReceivedOK     uint32 `json:"files_received_ok"`
	FilesReceivedFail   uint32 `json:"files_received_fail"`
}

func (s *Stats) snapshot(maxClients int) StatsSnapshot {
	return StatsSnapshot{
		ClientsActive:       s.clientsActive.Load(),
		ClientsMax:          maxClients,
		ClientsConnected:    s.clientsConnected.Load(),
		ClientsDisconnected: s.clientsDisconnected.Load(),
		FilesSentOK:         s.filesSentOK.Load(),
		FilesSentFail:       s.filesSentFail.Load(),
		FilesReceivedOK:     s.filesReceivedOK.Load(),
		FilesReceivedFail:   s.filesReceivedFail.Load(),
	}
}
