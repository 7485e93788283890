package ftp

import (
	"fmt"
	"time"
)

// Wire-level constants of the protocol engine.
const (
	// Version is the build tag advertised in the welcome banner.
	Version = "2020-08-20"

	// maxFileName is the longest file name the filesystem contract carries.
	maxFileName = 255

	// maxParam bounds command arguments and the paths built from them.
	maxParam = maxFileName + 8

	// tcpMSS is the segment-sized chunk RETR reads from files. Streaming in
	// MSS-sized pieces keeps each data-socket write inside one TCP segment.
	tcpMSS = 1460

	// portIncrementOffset is the width of the passive-port window one slot
	// rotates through, sidestepping TIME_WAIT on the previous session's port.
	portIncrementOffset = 25

	// drainTimeout bounds the wait for busy workers during shutdown.
	drainTimeout = 6 * time.Second

	// slotRetryDelay is how long the supervisor sleeps after refusing a
	// connection because every slot is occupied.
	slotRetryDelay = 500 * time.Millisecond
)

// Config holds the FTP server configuration.
//
// Zero values are replaced by defaults matching the embedded reference
// deployment: control port 21, passive base port 55600, a single client slot,
// one-second control reads with a 60-lap inactivity budget and a 32 KiB
// transfer buffer.
type Config struct {
	// Port is the control-channel listen port.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// DataPort is the base of the passive-mode port window. Each slot owns
	// a 25-port span above it.
	DataPort int `mapstructure:"data_port" validate:"min=0,max=65535"`

	// MaxClients is the size of the worker pool: the number of sessions
	// served concurrently. Further connections get a 421 and are closed.
	MaxClients int `mapstructure:"max_clients" validate:"min=0,max=64"`

	// ReadTimeout is the deadline of one control-read lap. The session
	// checks stop flags and link state between laps.
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"min=0"`

	// WriteTimeout bounds a control-channel write before the session gives
	// up on the peer.
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0"`

	// InactiveCount is the number of read laps before an idle client is
	// disconnected: idle budget = InactiveCount x ReadTimeout.
	InactiveCount int `mapstructure:"inactive_count" validate:"min=0"`

	// StorReceiveTimeout is the data-socket receive deadline during STOR.
	StorReceiveTimeout time.Duration `mapstructure:"stor_receive_timeout" validate:"min=0"`

	// Passive configures PASV-mode listeners.
	Passive PassiveConfig `mapstructure:"passive"`

	// TransferBuffer is the per-session buffer size in bytes. Must be a
	// multiple of 1024 so STOR's flushes stay sector-aligned.
	TransferBuffer int `mapstructure:"transfer_buffer" validate:"min=0"`
}

// PassiveConfig groups PASV-mode settings.
type PassiveConfig struct {
	// Enabled controls PASV support. When false, PASV replies 421 and only
	// active (PORT) transfers are possible. nil means enabled.
	Enabled *bool `mapstructure:"enabled"`

	// AcceptTimeout bounds the wait for the client's data connection.
	AcceptTimeout time.Duration `mapstructure:"accept_timeout" validate:"min=0"`

	// ListenTimeout is the receive timeout put on a fresh data listener.
	ListenTimeout time.Duration `mapstructure:"listen_timeout" validate:"min=0"`
}

func (c *PassiveConfig) enabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// applyDefaults fills in zero values with the reference defaults.
func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 21
	}
	if c.DataPort == 0 {
		c.DataPort = 55600
	}
	if c.MaxClients == 0 {
		c.MaxClients = 1
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 3 * time.Second
	}
	if c.InactiveCount == 0 {
		c.InactiveCount = 60
	}
	if c.StorReceiveTimeout == 0 {
		c.StorReceiveTimeout = 5 * time.Second
	}
	if c.Passive.AcceptTimeout == 0 {
		c.Passive.AcceptTimeout = 500 * time.Millisecond
	}
	if c.Passive.ListenTimeout == 0 {
		c.Passive.ListenTimeout = 5 * time.Second
	}
	if c.TransferBuffer == 0 {
		c.TransferBuffer = 32 * 1024
	}
}

// validate rejects configurations the engine cannot serve.
func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.DataPort < 1 || c.DataPort > 65535 {
		return fmt.Errorf("invalid data_port %d: must be 1-65535", c.DataPort)
	}
	if c.MaxClients < 1 {
		return fmt.Errorf("invalid max_clients %d: must be >= 1", c.MaxClients)
	}
	if c.TransferBuffer < 1024 || c.TransferBuffer%1024 != 0 {
		return fmt.Errorf("invalid transfer_buffer %d: must be a positive multiple of 1024", c.TransferBuffer)
	}
	if c.InactiveCount < 1 {
		return fmt.Errorf("invalid inactive_count %d: must be >= 1", c.InactiveCount)
	}
	return nil
}
