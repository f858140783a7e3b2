// Package fallback wires the remote relational mirror and the local file
// stores into single ledgers. The remote path is preferred while it works;
// the first remote failure of any kind flips the ledger to local-only for
// the rest of the process lifetime. Fail open, degrade once: the local path
// guarantees availability at the cost of remote consistency until restart.
package fallback

// Mode is the backend mode of a dual-backend ledger. The only transition is
// ModeRemote -> ModeLocalOnly; it never reverts and nothing probes the remote
// store to come back.
type Mode int

const (
	// ModeRemote routes reads and writes to the remote mirror first.
	ModeRemote Mode = iota

	// ModeLocalOnly routes everything to the local durable store.
	ModeLocalOnly
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeRemote:
		return "remote"
	case ModeLocalOnly:
		return "local-only"
	default:
		return "unknown"
	}
}
