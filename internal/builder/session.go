package builder

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bip-build/bip/internal/msg"
	"github.com/bip-build/bip/internal/plat"
)

// ErrBuildFailed wraps the first component failure that aborts a build
// action.
var ErrBuildFailed = errors.New("build failed")

// Session owns the ordered component list of one invocation and drives
// each component through its lifecycle exactly once.
type Session struct {
	Recipe     *Recipe
	Info       RunInfo
	Paths      Paths
	Components []Component
}

// NewSession resolves a parsed recipe into runnable components. Components
// restricted to another platform are excluded entirely. The staleness
// memo is shared by every component in the session.
func NewSession(rcp *Recipe, info RunInfo) (*Session, error) {
	paths := NewPaths(rcp.Root, rcp.Build, info.Release)
	oracle := NewOracle()

	s := &Session{
		Recipe: rcp,
		Info:   info,
		Paths:  paths,
	}

	for _, entry := range rcp.Components {
		if entry.Spec.Platform != "" {
			restriction, _ := plat.Find(strings.ToLower(entry.Spec.Platform))
			if restriction != info.Platform {
				if info.Verbose {
					msg.Info("skipping %s (%s only)", entry.Name, restriction)
				}
				continue
			}
		}

		cmpnt, err := newComponent(entry, rcp, paths, info, oracle)
		if err != nil {
			return nil, err
		}
		s.Components = append(s.Components, cmpnt)
	}

	return s, nil
}

// Build runs every component in recipe declaration order, aborting on the
// first failure.
func (s *Session) Build() error {
	start := time.Now()

	if err := os.MkdirAll(s.Paths.Obj, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrBuildFailed, err)
	}
	if err := os.MkdirAll(s.Paths.Out, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrBuildFailed, err)
	}

	for _, cmpnt := range s.Components {
		want, err := cmpnt.WantRun()
		if err != nil {
			msg.Error("%v", err)
			return fmt.Errorf("%w: component %s", ErrBuildFailed, cmpnt.Name())
		}
		if !want {
			if s.Info.Verbose {
				msg.Info("%s is up to date", cmpnt.Name())
			}
			continue
		}
		if err := cmpnt.Run(s.Info); err != nil {
			msg.Error("%v", err)
			return fmt.Errorf("%w: component %s", ErrBuildFailed, cmpnt.Name())
		}
	}

	if s.Info.Verbose {
		msg.Info("built all in %s", time.Since(start).Round(time.Millisecond))
	}
	return nil
}

// Clean removes the artifacts of every component. Unlike Build, a failing
// component does not stop the remaining ones.
func (s *Session) Clean() error {
	var firstErr error
	for _, cmpnt := range s.Components {
		if err := cmpnt.Clean(); err != nil {
			msg.Error("%v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
