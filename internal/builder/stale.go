package builder

import (
	"os"
	"sync"
)

// objectKey identifies one (source, object) pair. The verdict depends on
// both paths: the same source can back several objects (Go sources share
// their component's final artifact as the object).
type objectKey struct {
	src string
	obj string
}

// Oracle decides whether an object file is stale relative to its source,
// memoizing verdicts per (source, object) pair so components sharing
// source trees don't stat the same files twice in one session. The
// verdict is a pure function of the two mtimes and object existence, so
// sharing the memo across components never changes a result.
type Oracle struct {
	mu      sync.Mutex
	verdict map[objectKey]bool
}

func NewOracle() *Oracle {
	return &Oracle{verdict: make(map[objectKey]bool)}
}

// IsStale reports whether obj must be (re)compiled from src.
//
// Policy, in priority order: a missing source is never stale by this rule
// (discovery only yields existing files, this is a guard); a memoized
// verdict wins without statting the object again; a missing object is
// always stale; otherwise stale iff the source mtime is strictly newer
// than the object mtime. Equal mtimes favor reuse on coarse filesystem
// timestamp resolution.
func (o *Oracle) IsStale(src, obj string) bool {
	srcStat, err := os.Stat(src)
	if err != nil {
		return false
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	key := objectKey{src: src, obj: obj}
	if stale, ok := o.verdict[key]; ok {
		return stale
	}

	objStat, err := os.Stat(obj)
	if err != nil {
		o.verdict[key] = true
		return true
	}

	stale := srcStat.ModTime().After(objStat.ModTime())
	o.verdict[key] = stale
	return stale
}

// Forget drops all memoized verdicts. Used between a clean and a
// subsequent rebuild in the same process.
func (o *Oracle) Forget() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.verdict = make(map[objectKey]bool)
}
