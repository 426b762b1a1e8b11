// Package common contains definitions of fundamental types shared by the block
// layer and the FAT engine.
package common

import "math"

// LogicalBlock is the index of a block (sector) on a block device, starting
// from 0.
type LogicalBlock uint32

// ClusterID is the index of a cluster in the data region. Clusters 0 and 1 are
// reserved; the first usable cluster is [FirstValidCluster].
type ClusterID uint32

// InvalidLogicalBlock marks the absence of a block, e.g. an empty cache slot.
const InvalidLogicalBlock = LogicalBlock(math.MaxUint32)

const FirstValidCluster = ClusterID(2)
