package core

import (
	"errors"
	"sync"
)

// ErrNoSelection is returned when the detail view is requested without a cached selection
var ErrNoSelection = errors.New("no analysed target selected")

// ViewController selects between the dashboard and the detail view of one cached result.
// It never holds a reference to a target that has left the cache.
type ViewController struct {
	cache *ResultCache

	mu           sync.Mutex
	mode         ViewMode
	lastSelected string
	listeners    []func(ViewSelection)
}

// NewViewController creates a controller in the dashboard state bound to cache
func NewViewController(cache *ResultCache) *ViewController {
	v := &ViewController{
		cache: cache,
		mode:  ViewDashboard,
	}
	cache.Subscribe(v.onCacheEvent)
	return v
}

// Subscribe registers fn to be called with the new selection after every transition
func (v *ViewController) Subscribe(fn func(ViewSelection)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.listeners = append(v.listeners, fn)
}

// Current returns the active selection
func (v *ViewController) Current() ViewSelection {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selectionLocked()
}

// DetailAvailable reports whether the detail tab can be entered
func (v *ViewController) DetailAvailable() bool {
	v.mu.Lock()
	target := v.lastSelected
	v.mu.Unlock()
	return target != "" && v.cache.Contains(target)
}

// ShowDashboard switches to the aggregate view, keeping the last selection
func (v *ViewController) ShowDashboard() {
	v.transition(func() bool {
		v.mode = ViewDashboard
		return true
	})
}

// ShowDetail re-enters the detail view for the last selected target
func (v *ViewController) ShowDetail() error {
	err := ErrNoSelection
	v.transition(func() bool {
		if v.lastSelected == "" || !v.cache.Contains(v.lastSelected) {
			return false
		}
		err = nil
		v.mode = ViewDetail
		return true
	})
	return err
}

// Open switches to the detail view of target if it is cached
func (v *ViewController) Open(target string) error {
	err := ErrNoSelection
	v.transition(func() bool {
		if !v.cache.Contains(target) {
			return false
		}
		err = nil
		v.mode = ViewDetail
		v.lastSelected = target
		return true
	})
	return err
}

// Reset returns to the dashboard and forgets the selection
func (v *ViewController) Reset() {
	v.transition(func() bool {
		v.mode = ViewDashboard
		v.lastSelected = ""
		return true
	})
}

func (v *ViewController) onCacheEvent(ev CacheEvent) {
	switch ev.Kind {
	case CacheEvicted:
		v.transition(func() bool {
			if v.lastSelected != ev.Target {
				return false
			}
			v.lastSelected = ""
			if v.mode == ViewDetail {
				v.mode = ViewDashboard
				return true
			}
			return false
		})
	case CacheCleared:
		v.transition(func() bool {
			changed := v.mode != ViewDashboard
			v.mode = ViewDashboard
			v.lastSelected = ""
			return changed
		})
	}
}

// transition applies fn under the lock and notifies listeners when fn reports a change.
// fn may read the cache; the cache never calls back into the controller while locked.
func (v *ViewController) transition(fn func() bool) {
	v.mu.Lock()
	if !fn() {
		v.mu.Unlock()
		return
	}
	sel := v.selectionLocked()
	listeners := v.listeners
	v.mu.Unlock()

	for _, l := range listeners {
		l(sel)
	}
}

func (v *ViewController) selectionLocked() ViewSelection {
	if v.mode == ViewDetail {
		return ViewSelection{Mode: ViewDetail, Target: v.lastSelected}
	}
	return ViewSelection{Mode: ViewDashboard}
}
