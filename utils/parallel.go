package utils

import (
	"context"
	"runtime"
	"sync"

	"go.viam.com/utils"
)

// ParallelFactor is the number of groups GroupWorkParallel splits work into. Tests may lower it.
var ParallelFactor = defaultParallelFactor()

// defaultParallelFactor uses every proc on small machines and a quarter of them on machines
// with more than 32.
func defaultParallelFactor() int {
	procs := runtime.GOMAXPROCS(0)
	if procs > 32 {
		return procs / 4
	}
	return max(procs, 1)
}

type (
	// MemberWorkFunc runs for each work item (member) of a group.
	MemberWorkFunc func(memberNum, workNum int)
	// GroupWorkDoneFunc runs when a single group's work is done; helpful for merge stages.
	GroupWorkDoneFunc func()
	// GroupWorkFunc runs to determine what work members should do, if any.
	GroupWorkFunc func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc)
)

// groupBounds returns the half open range of items owned by group g out of n groups. The
// first total%n groups take one extra item.
func groupBounds(total, n, g int) (int, int) {
	size, extra := total/n, total%n
	from := g*size + min(g, extra)
	to := from + size
	if g < extra {
		to++
	}
	return from, to
}

// GroupWorkParallel splits totalSize work items into contiguous groups, one per worker, and
// waits for all of them. Items are never shared between groups so members may write to
// their own slot of a preallocated result without locking. Once ctx ends, members stop
// picking up items and the context's error is returned.
func GroupWorkParallel(ctx context.Context, totalSize int, groupWork GroupWorkFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	numGroups := min(ParallelFactor, totalSize)
	if numGroups <= 0 {
		return nil
	}

	var wg sync.WaitGroup
	wg.Add(numGroups)
	for g := 0; g < numGroups; g++ {
		from, to := groupBounds(totalSize, numGroups, g)
		utils.PanicCapturingGo(func() {
			defer wg.Done()
			memberWork, done := groupWork(g, to-from, from, to)
			if memberWork != nil {
				for workNum := from; workNum < to && ctx.Err() == nil; workNum++ {
					memberWork(workNum-from, workNum)
				}
			}
			if done != nil {
				done()
			}
		})
	}
	wg.Wait()
	return ctx.Err()
}
