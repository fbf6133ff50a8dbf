package tohost

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

var errNoSuchHandler = fmt.Errorf("%w: no such handler", ErrHandler)

// ReadHandler returns the current value of a read handler.
type ReadHandler func() (string, error)

// WriteHandler consumes a value written to a write handler. dev is the device that triggered the
// write when invoked as an up/down call, and nil otherwise.
type WriteHandler func(value string, dev *Device) error

// NewHandlerTable returns a HandlerTable holding only the built in "log" write handler.
func NewHandlerTable(logger *slog.Logger) *HandlerTable {
	if logger == nil {
		logger = slog.Default()
	}

	t := &HandlerTable{
		read:  map[string]ReadHandler{},
		write: map[string]WriteHandler{},
	}

	logger = logger.With("component", "handlers")

	t.AddWrite("log", func(value string, dev *Device) error {
		if dev != nil {
			logger.Info(value, "device", dev.Name)
		} else {
			logger.Info(value)
		}

		return nil
	})

	return t
}

// HandlerTable maps handler names to read and write handlers. Stage handlers are named
// "<stage>.<handler>".
type HandlerTable struct {
	mu    sync.RWMutex
	read  map[string]ReadHandler
	write map[string]WriteHandler
}

// AddRead registers (or replaces) the read handler name.
func (t *HandlerTable) AddRead(name string, h ReadHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.read[name] = h
}

// AddWrite registers (or replaces) the write handler name.
func (t *HandlerTable) AddWrite(name string, h WriteHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.write[name] = h
}

// RemovePrefix removes every handler whose name starts with prefix.
func (t *HandlerTable) RemovePrefix(prefix string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for name := range t.read {
		if strings.HasPrefix(name, prefix) {
			delete(t.read, name)
		}
	}

	for name := range t.write {
		if strings.HasPrefix(name, prefix) {
			delete(t.write, name)
		}
	}
}

// Read calls the read handler name.
func (t *HandlerTable) Read(name string) (string, error) {
	t.mu.RLock()
	h, ok := t.read[name]
	t.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%w: read %q", errNoSuchHandler, name)
	}

	return h()
}

// Write calls the write handler name with value.
func (t *HandlerTable) Write(name, value string) error {
	h, err := t.lookupWrite(name)
	if err != nil {
		return err
	}

	return h(value, nil)
}

// Names returns every handler name, read handlers suffixed with " r", write handlers with " w",
// sorted.
func (t *HandlerTable) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, 0, len(t.read)+len(t.write))

	for name := range t.read {
		out = append(out, name+" r")
	}

	for name := range t.write {
		out = append(out, name+" w")
	}

	sort.Strings(out)

	return out
}

func (t *HandlerTable) lookupWrite(name string) (WriteHandler, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	h, ok := t.write[name]
	if !ok {
		return nil, fmt.Errorf("%w: write %q", errNoSuchHandler, name)
	}

	return h, nil
}

// ResolveCall resolves a handler reference of the form "<handler> [value]" into a LinkCallback. The
// handler is looked up now, not when the callback fires, so a bad reference is a configuration
// error. An empty ref resolves to a nil callback.
func (t *HandlerTable) ResolveCall(ref string) (LinkCallback, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}

	name, value, _ := strings.Cut(ref, " ")
	value = strings.TrimSpace(value)

	h, err := t.lookupWrite(name)
	if err != nil {
		return nil, fmt.Errorf("%w: bad handler reference %q: %w", ErrConfig, ref, err)
	}

	return func(d *Device) error {
		return h(value, d)
	}, nil
}
