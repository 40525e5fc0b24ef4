package node

import "bytes"

// ScanBackend names a branch-finder implementation for scan nodes.
type ScanBackend uint8

const (
	// ScanAccelerated locates a branch octet via bytes.IndexByte, which
	// the runtime vectorizes on platforms with the relevant SIMD
	// instructions.
	ScanAccelerated ScanBackend = iota
	// ScanGeneric is the portable linear scan. It stays selectable at
	// runtime so tests can cover both paths.
	ScanGeneric
)

// findBranchOctet is the branch finder in effect, chosen once at
// initialization and swapped only through SetScanBackend.
var findBranchOctet = acceleratedFindOctet

// SetScanBackend selects the branch finder used by FindBranch. The
// generic fallback is the runtime off-switch for platforms or tests
// that want to avoid the accelerated path.
func SetScanBackend(sb ScanBackend) {
	if sb == ScanGeneric {
		findBranchOctet = genericFindOctet
	} else {
		findBranchOctet = acceleratedFindOctet
	}
}

func acceleratedFindOctet(branches []byte, b byte) int {
	return bytes.IndexByte(branches, b)
}

func genericFindOctet(branches []byte, b byte) int {
	for i, x := range branches {
		if x == b {
			return i
		}
		if x > b {
			break
		}
	}
	return -1
}
