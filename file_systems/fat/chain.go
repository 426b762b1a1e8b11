package fat

import (
	"fmt"

	"github.com/boljen/go-bitmap"
	"github.com/dargueta/fatstream/errors"
	c "github.com/dargueta/fatstream/file_systems/common"
	log "github.com/sirupsen/logrus"
)

// CreateChain allocates `count` free clusters, links them together in the
// order they were found, and marks the final one as [Last]. It returns the
// first cluster of the new chain.
//
// If the volume runs out of space partway through, the clusters allocated so
// far are released again before the error is returned.
func (table *Table) CreateChain(count uint) (c.ClusterID, error) {
	if count == 0 {
		return 0, errors.NewWithMessage(
			errors.BadCount, "a cluster chain must have at least one cluster")
	}

	first, err := table.FindFree(c.FirstValidCluster)
	if err != nil {
		return 0, err
	}
	err = table.Set(first, Last)
	if err != nil {
		return 0, err
	}

	previous := first
	for i := uint(1); i < count; i++ {
		next, err := table.FindFree(previous + 1)
		if err == nil {
			err = table.Set(next, Last)
		}
		if err == nil {
			err = table.Set(previous, Next(next))
		}
		if err != nil {
			table.releasePartialChain(first, i)
			return 0, err
		}
		previous = next
	}

	log.Debugf("fat: created chain of %d clusters from %d to %d", count, first, previous)
	return first, nil
}

func (table *Table) releasePartialChain(first c.ClusterID, allocated uint) {
	err := table.DeleteChain(first)
	if err != nil {
		log.Warnf(
			"fat: leaked %d clusters of a partial chain at %d: %s",
			allocated,
			first,
			err.Error(),
		)
	}
}

// ExtendChain allocates `count` new clusters and appends them to the chain
// whose last cluster is `cluster`. It returns the first of the new clusters.
func (table *Table) ExtendChain(cluster c.ClusterID, count uint) (c.ClusterID, error) {
	value, err := table.Get(cluster)
	if err != nil {
		return 0, err
	}
	if value.Kind != KindLast {
		return 0, errors.NewWithMessage(
			errors.FatTableError,
			fmt.Sprintf("can't extend from cluster %d: entry is %s, not Last", cluster, value),
		)
	}

	newFirst, err := table.CreateChain(count)
	if err != nil {
		return 0, err
	}

	err = table.Set(cluster, Next(newFirst))
	if err != nil {
		table.releasePartialChain(newFirst, count)
		return 0, err
	}

	log.Debugf("fat: extended chain at %d by %d clusters starting at %d", cluster, count, newFirst)
	return newFirst, nil
}

// DeleteChain frees every cluster from `cluster` through the end of its chain.
//
// Running into a free or bad entry before reaching [Last] means the table is
// corrupted; the clusters freed up to that point stay freed.
func (table *Table) DeleteChain(cluster c.ClusterID) error {
	if !table.isDataCluster(cluster) {
		return errors.NewWithMessage(
			errors.OutOfRange,
			fmt.Sprintf(
				"invalid cluster 0x%x cannot start a cluster chain",
				cluster,
			),
		)
	}

	current := cluster
	freed := 0
	for {
		value, err := table.Get(current)
		if err != nil {
			return err
		}

		if value.Kind == KindFree || value.Kind == KindBad {
			log.Warnf("fat: chain from %d runs into %s entry at %d", cluster, value, current)
			return errors.NewWithMessage(
				errors.FatTableError,
				fmt.Sprintf(
					"cluster %d of chain from %d is %s; expected Next or Last",
					current,
					cluster,
					value,
				),
			)
		}

		err = table.Set(current, Free)
		if err != nil {
			return err
		}
		freed++

		if value.Kind == KindLast {
			log.Debugf("fat: freed chain of %d clusters from %d", freed, cluster)
			return nil
		}

		if !table.isDataCluster(value.Cluster) {
			return errors.NewWithMessage(
				errors.FatTableError,
				fmt.Sprintf(
					"cluster %d followed by invalid cluster 0x%x in chain from %d",
					current,
					value.Cluster,
					cluster,
				),
			)
		}
		current = value.Cluster
	}
}

// SkipChain follows `count` links starting at `cluster` and returns the cluster
// it lands on. Zero returns `cluster` itself.
func (table *Table) SkipChain(cluster c.ClusterID, count uint) (c.ClusterID, error) {
	currentCluster := cluster

	for i := uint(0); i < count; i++ {
		value, err := table.Get(currentCluster)
		if err != nil {
			return 0, err
		}

		switch value.Kind {
		case KindLast:
			return 0, errors.NewWithMessage(
				errors.FatTableError,
				fmt.Sprintf(
					"cluster index %d out of bounds -- chain from %d has %d clusters",
					count,
					cluster,
					i+1,
				),
			)
		case KindFree, KindBad:
			return 0, errors.NewWithMessage(
				errors.FatTableError,
				fmt.Sprintf(
					"cluster %d at index %d in chain from %d is %s",
					currentCluster,
					i,
					cluster,
					value,
				),
			)
		}

		if !table.isDataCluster(value.Cluster) {
			// Hit an invalid cluster. This is not the same as EOF, and usually indicates
			// corruption of some sort.
			return 0, errors.NewWithMessage(
				errors.FatTableError,
				fmt.Sprintf(
					"cluster %d followed by invalid cluster 0x%x at index %d in chain from %d",
					currentCluster,
					value.Cluster,
					i,
					cluster,
				),
			)
		}
		currentCluster = value.Cluster
	}

	return currentCluster, nil
}

// walkChain calls `visit` for each cluster of the chain starting at `cluster`,
// in order. A chain that loops back on itself is reported as corruption.
func (table *Table) walkChain(cluster c.ClusterID, visit func(c.ClusterID)) error {
	if !table.isDataCluster(cluster) {
		return errors.NewWithMessage(
			errors.OutOfRange,
			fmt.Sprintf("invalid cluster 0x%x cannot start a cluster chain", cluster),
		)
	}

	visited := bitmap.New(int(table.geometry.TotalClusters))
	currentCluster := cluster
	for i := 0; ; i++ {
		if visited.Get(int(currentCluster)) {
			log.Warnf("fat: chain from %d loops back to %d", cluster, currentCluster)
			return errors.NewWithMessage(
				errors.FatTableError,
				fmt.Sprintf(
					"chain from %d loops back to cluster %d at index %d",
					cluster,
					currentCluster,
					i,
				),
			)
		}
		visited.Set(int(currentCluster), true)
		visit(currentCluster)

		value, err := table.Get(currentCluster)
		if err != nil {
			return err
		}

		switch value.Kind {
		case KindLast:
			return nil
		case KindFree, KindBad:
			return errors.NewWithMessage(
				errors.FatTableError,
				fmt.Sprintf(
					"cluster %d at index %d in chain from %d is %s",
					currentCluster,
					i,
					cluster,
					value,
				),
			)
		}

		if !table.isDataCluster(value.Cluster) {
			return errors.NewWithMessage(
				errors.FatTableError,
				fmt.Sprintf(
					"cluster %d followed by invalid cluster 0x%x at index %d in chain from %d",
					currentCluster,
					value.Cluster,
					i,
					cluster,
				),
			)
		}
		currentCluster = value.Cluster
	}
}

// ListChain returns every cluster of the chain beginning at `cluster`, in
// order. The first element is always `cluster`.
func (table *Table) ListChain(cluster c.ClusterID) ([]c.ClusterID, error) {
	chain := []c.ClusterID{}
	err := table.walkChain(cluster, func(current c.ClusterID) {
		chain = append(chain, current)
	})
	if err != nil {
		return nil, err
	}
	return chain, nil
}

// ChainLength returns the number of clusters in the chain beginning at
// `cluster`.
func (table *Table) ChainLength(cluster c.ClusterID) (uint, error) {
	length := uint(0)
	err := table.walkChain(cluster, func(c.ClusterID) {
		length++
	})
	if err != nil {
		return 0, err
	}
	return length, nil
}

// SetChainLength grows or shrinks the chain beginning at `cluster` so that it
// has exactly `count` clusters. Growing appends newly allocated clusters to the
// end; shrinking frees clusters from the end. The first cluster never changes.
func (table *Table) SetChainLength(cluster c.ClusterID, count uint) error {
	if count == 0 {
		return errors.NewWithMessage(
			errors.BadCount,
			"a chain can't be shrunk to zero clusters; delete it instead",
		)
	}

	length, err := table.ChainLength(cluster)
	if err != nil {
		return err
	}

	switch {
	case count == length:
		return nil

	case count > length:
		last, err := table.SkipChain(cluster, length-1)
		if err != nil {
			return err
		}
		_, err = table.ExtendChain(last, count-length)
		return err

	default:
		newLast, err := table.SkipChain(cluster, count-1)
		if err != nil {
			return err
		}
		value, err := table.Get(newLast)
		if err != nil {
			return err
		}
		err = table.Set(newLast, Last)
		if err != nil {
			return err
		}

		log.Debugf("fat: truncating chain from %d to %d clusters", cluster, count)
		return table.DeleteChain(value.Cluster)
	}
}
