package fphal

import (
	"sort"
	"sync"

	"github.com/go-fprint/fphal/pkg/options"
)

// Driver opens device handles. Implementations register themselves under
// a name, typically from an init function, and the framework opens them
// by that name; this fills the role of the platform's module loader.
type Driver interface {
	Open(opts ...options.Option) (Device, error)
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// Register makes a driver available under the given name. It panics on a
// duplicate or nil registration, like any registry of this kind.
func Register(name string, d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()

	if d == nil {
		panic("fphal: Register driver is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("fphal: Register called twice for driver " + name)
	}
	drivers[name] = d
}

// Drivers returns the names of the registered drivers, sorted.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens a device through the named driver.
func Open(name string, opts ...options.Option) (Device, error) {
	driversMu.RLock()
	d, ok := drivers[name]
	driversMu.RUnlock()

	if !ok {
		return nil, NewErrorMessage(ErrUnknownDriver, name)
	}
	return d.Open(opts...)
}
