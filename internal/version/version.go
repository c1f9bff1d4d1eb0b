// Package version carries the tool version and recipe version requirements.
package version

import (
	"fmt"
	"regexp"
	"strconv"
)

const (
	Major  = 3
	Minor  = 0
	Patch  = 0
	Suffix = "pre"
)

// Num packs the version into the integer form emitted as a preprocessor
// define during compilation.
func Num() int {
	return Major<<16 | Minor<<8 | Patch
}

func String() string {
	return fmt.Sprintf("%d.%d.%d%s", Major, Minor, Patch, Suffix)
}

var reqrRegex = regexp.MustCompile(`^(<|<=|=|==|>=|>)?(\d+)\.(\d+)(?:\.(\d+))?(\+)?$`)

type Comparator int

const (
	Lower Comparator = iota - 2
	LowerEqual
	Equal
	GreaterEqual
	Greater
)

// Reqr is a version requirement from a recipe's `requires` key,
// e.g. ">=3.0", "=3.1.2" or "3.0+".
type Reqr struct {
	Cmp      Comparator
	Major    int
	Minor    int
	Patch    int
	HasPatch bool
}

// ParseReqr parses a requirement string. The trailing `+` form is shorthand
// for >= and may not be combined with a comparator prefix.
func ParseReqr(raw string) (Reqr, error) {
	m := reqrRegex.FindStringSubmatch(raw)
	if m == nil {
		return Reqr{}, fmt.Errorf("malformed version requirement %q", raw)
	}

	var cmp Comparator
	hasCmp := false
	switch m[1] {
	case "<":
		cmp, hasCmp = Lower, true
	case "<=":
		cmp, hasCmp = LowerEqual, true
	case "=", "==":
		cmp, hasCmp = Equal, true
	case ">=":
		cmp, hasCmp = GreaterEqual, true
	case ">":
		cmp, hasCmp = Greater, true
	}

	if m[5] == "+" {
		if hasCmp {
			return Reqr{}, fmt.Errorf("malformed version requirement %q: both comparator and `+`", raw)
		}
		cmp, hasCmp = GreaterEqual, true
	}
	if !hasCmp {
		cmp = Equal
	}

	reqr := Reqr{Cmp: cmp}
	reqr.Major, _ = strconv.Atoi(m[2])
	reqr.Minor, _ = strconv.Atoi(m[3])
	if m[4] != "" {
		reqr.Patch, _ = strconv.Atoi(m[4])
		reqr.HasPatch = true
	}
	return reqr, nil
}

// compare orders the tool version against the requirement. A requirement
// without a patch component matches any patch level for ordering purposes.
func (r Reqr) compare() int {
	ours := [3]int{Major, Minor, Patch}
	theirs := [3]int{r.Major, r.Minor, r.Patch}
	n := 3
	if !r.HasPatch {
		n = 2
	}
	for i := 0; i < n; i++ {
		if ours[i] != theirs[i] {
			if ours[i] < theirs[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Satisfied reports whether the running tool version meets the requirement.
func (r Reqr) Satisfied() bool {
	c := r.compare()
	switch r.Cmp {
	case Lower:
		return c < 0
	case LowerEqual:
		return c <= 0
	case Equal:
		return c == 0
	case GreaterEqual:
		return c >= 0
	case Greater:
		return c > 0
	}
	return false
}
