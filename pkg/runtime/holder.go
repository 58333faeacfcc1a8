package runtime

import (
	goSync "sync"

	"github.com/sidkik/scratchpad/pkg/errors"
)

// Holder is the single shared reference to the current runtime instance.
// The orchestrator swaps the instance, and every other component reads it
// at the start of each operation.
type Holder struct {
	lock goSync.RWMutex
	inst Instance
}

// NewHolder returns a Holder without an instance.
func NewHolder() *Holder {
	return &Holder{}
}

// Set replaces the current instance. A nil instance marks the runtime as
// unavailable.
func (h *Holder) Set(inst Instance) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.inst = inst
}

// Current returns the current instance, or errors.ErrRuntimeUnavailable if
// there isn't one.
func (h *Holder) Current() (Instance, error) {
	h.lock.RLock()
	defer h.lock.RUnlock()

	if h.inst == nil {
		return nil, errors.ErrRuntimeUnavailable
	}
	return h.inst, nil
}

// FS returns the filesystem of the current instance.
func (h *Holder) FS() (FS, error) {
	inst, err := h.Current()
	if err != nil {
		return nil, err
	}
	return inst.FS(), nil
}
