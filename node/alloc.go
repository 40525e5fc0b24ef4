package node

// Allocator is the interface the scan-node and mask-node operations use
// to obtain and release nodes, so that this package never has to import
// the concrete arena package (which in turn imports this one to know
// the concrete node types it pools). The arena package's Arena[V]
// implements this interface.
type Allocator[V any] interface {
	AllocScan(k Kind) ScanAccessor[V]
	FreeScan(s ScanAccessor[V])
	AllocMask() *MaskNode[V]
	FreeMask(m *MaskNode[V])
	// NextRegion returns a fresh synthetic region tag for a newly
	// allocated node (see Node.region).
	NextRegion() uint64
}
