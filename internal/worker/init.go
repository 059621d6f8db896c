package worker

import "sync/atomic"

// Role identifies which of the four cooperating workers a process is
// playing.
type Role string

const (
	RoleCPU Role = "cpu"
	RoleGPU Role = "gpu"
	RoleIO  Role = "io"
	RoleNet Role = "net"
)

// SharedRegion names one shared-memory region handle carried in the init
// message. A browser host would pass these as SharedArrayBuffer handles;
// here they are represented as opaque references (e.g. a shared-memory
// file descriptor or mapped-region pointer) since Go has no
// SharedArrayBuffer equivalent. The handle's concrete type is owned by the
// host runtime that constructs InitMessage.
type SharedRegion struct {
	Handle any
	Offset uint64
	Size   uint64
}

// InitMessage is the structured record the host runtime uses to create and
// initialize a worker (§6 "Worker init message").
type InitMessage struct {
	Role Role

	Control     SharedRegion
	GuestMemory SharedRegion
	IOIPC       SharedRegion

	SharedFramebuffer SharedRegion
	VGAFramebuffer    SharedRegion
	ScanoutState      SharedRegion
	CursorState       SharedRegion
	VRAM              SharedRegion

	// VMRuntimeModule is the optional handle to the VM runtime module (the
	// external "VM runtime" collaborator); VMRuntimeVariant names which
	// export form it exposes ("free_function" or "builder").
	VMRuntimeModule  any
	VMRuntimeVariant string
}

// Config carries the subset of site configuration workers need at runtime
// (§6 "Config update"). internal/config.Load fills it from the on-disk YAML
// site config, using ApplyDefaults for fields the file leaves zero.
type Config struct {
	GuestMemoryMiB  uint64 `yaml:"guest_memory_mib"`
	EnableWorkers   bool   `yaml:"enable_workers"`
	ProxyURL        string `yaml:"proxy_url"`
	ActiveDiskImage string `yaml:"active_disk_image"`
	LogLevel        string `yaml:"log_level"`
}

// DefaultConfig returns the baseline configuration applied before any
// coordinator-supplied overrides.
func DefaultConfig() Config {
	return Config{
		GuestMemoryMiB: 512,
		EnableWorkers:  true,
		LogLevel:       "info",
	}
}

// ApplyDefaults fills zero-valued fields of cfg from defaults, leaving any
// field the caller already set untouched.
func ApplyDefaults(cfg Config, defaults Config) Config {
	if cfg.GuestMemoryMiB == 0 {
		cfg.GuestMemoryMiB = defaults.GuestMemoryMiB
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	if cfg.ProxyURL == "" {
		cfg.ProxyURL = defaults.ProxyURL
	}
	if cfg.ActiveDiskImage == "" {
		cfg.ActiveDiskImage = defaults.ActiveDiskImage
	}
	return cfg
}

// ConfigUpdate is the {kind: "config.update", version, config} message.
type ConfigUpdate struct {
	Kind    string `json:"kind"`
	Version uint32 `json:"version"`
	Config  Config `json:"config"`
}

// ConfigAck is the {kind: "config.ack", version} reply.
type ConfigAck struct {
	Kind    string `json:"kind"`
	Version uint32 `json:"version"`
}

const configUpdateKind = "config.update"
const configAckKind = "config.ack"

// NewConfigUpdate builds a well-formed config.update message.
func NewConfigUpdate(version uint32, cfg Config) ConfigUpdate {
	return ConfigUpdate{Kind: configUpdateKind, Version: version, Config: cfg}
}

// AckConfigUpdate builds the config.ack reply for a received update.
func AckConfigUpdate(update ConfigUpdate) ConfigAck {
	return ConfigAck{Kind: configAckKind, Version: update.Version}
}

// StatusFlags models the control-region status word array: a StopRequested
// flag plus per-role Ready flags, all sequentially-consistent atomics per
// §5 "Control-region status words use sequentially-consistent atomics for
// flags."
type StatusFlags struct {
	stopRequested atomic.Bool
	ready         map[Role]*atomic.Bool
}

// NewStatusFlags creates a status-flags block with a Ready flag slot for
// each of the four roles.
func NewStatusFlags() *StatusFlags {
	s := &StatusFlags{ready: make(map[Role]*atomic.Bool, 4)}
	for _, r := range []Role{RoleCPU, RoleGPU, RoleIO, RoleNet} {
		s.ready[r] = &atomic.Bool{}
	}
	return s
}

// SetStopRequested sets the StopRequested flag; a worker observes this
// within one wake cycle and exits (§6, §4.5).
func (s *StatusFlags) SetStopRequested() {
	s.stopRequested.Store(true)
}

// StopRequested reports whether shutdown has been requested.
func (s *StatusFlags) StopRequested() bool {
	return s.stopRequested.Load()
}

// SetReady sets the Ready flag for a role.
func (s *StatusFlags) SetReady(r Role) {
	if flag, ok := s.ready[r]; ok {
		flag.Store(true)
	}
}

// ClearReady clears the Ready flag for a role (used on fatal init failure,
// §7 "clear ready flag, post ERROR, close worker").
func (s *StatusFlags) ClearReady(r Role) {
	if flag, ok := s.ready[r]; ok {
		flag.Store(false)
	}
}

// Ready reports whether a role's Ready flag is set.
func (s *StatusFlags) Ready(r Role) bool {
	flag, ok := s.ready[r]
	return ok && flag.Load()
}
