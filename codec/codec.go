// Package codec encodes the manifest section of index files.
//
// The writer records the codec name in the file header and the reader
// resolves it with ByName, so a file always decodes with the codec that
// wrote it.
package codec

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// MaxNameLen is the longest codec name an index header can hold.
const MaxNameLen = 16

// ErrInvalidName is returned by Register for empty, overlong or taken names.
var ErrInvalidName = errors.New("codec: invalid name")

// Codec marshals manifest values. Implementations must be safe for
// concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default encodes newly written manifests.
var Default Codec = GoJSON{}

var (
	mu       sync.RWMutex
	registry = map[string]Codec{}
)

func init() {
	for _, c := range []Codec{JSON{}, GoJSON{}, MsgPack{}} {
		if err := Register(c); err != nil {
			panic(err)
		}
	}
}

// Register makes c resolvable by its name.
func Register(c Codec) error {
	name := c.Name()
	if name == "" || len(name) > MaxNameLen {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	mu.Lock()
	defer mu.Unlock()
	if _, ok := registry[name]; ok {
		return fmt.Errorf("%w: %q already registered", ErrInvalidName, name)
	}
	registry[name] = c
	return nil
}

// ByName returns the registered codec called name.
func ByName(name string) (Codec, bool) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := registry[name]
	return c, ok
}

// Names returns the registered codec names in ascending order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
