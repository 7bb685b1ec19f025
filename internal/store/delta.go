package store

import (
	"github.com/compactchain/compactd/types"
)

// StateDelta buffers writes on top of a snapshot until they are committed.
// Reads see the buffered writes first. A StateDelta is not safe for
// concurrent use.
type StateDelta struct {
	base   *Snapshot
	writes map[string][]byte // nil value is a deletion

	compactBlock *types.CompactBlock
}

var _ StateWrite = (*StateDelta)(nil)

// NewStateDelta returns an empty delta over base.
func NewStateDelta(base *Snapshot) *StateDelta {
	return &StateDelta{
		base:   base,
		writes: make(map[string][]byte),
	}
}

// Base returns the snapshot the delta was built on.
func (d *StateDelta) Base() *Snapshot { return d.base }

// Get implements StateRead.
func (d *StateDelta) Get(key string) ([]byte, error) {
	if v, ok := d.writes[key]; ok {
		return v, nil
	}
	return d.base.Get(key)
}

// Put implements StateWrite. value must not be nil.
func (d *StateDelta) Put(key string, value []byte) {
	if value == nil {
		value = []byte{}
	}
	d.writes[key] = value
}

// Delete implements StateWrite.
func (d *StateDelta) Delete(key string) {
	d.writes[key] = nil
}

// PutCompactBlock stages the compact block of the height being committed.
func (d *StateDelta) PutCompactBlock(cb *types.CompactBlock) {
	d.compactBlock = cb
}

// Len returns the number of buffered writes.
func (d *StateDelta) Len() int { return len(d.writes) }

// Layer buffers writes on top of another StateWrite. Apply copies them into
// the parent; dropping the Layer discards them. A Layer is not safe for
// concurrent use.
type Layer struct {
	parent StateWrite
	writes map[string][]byte // nil value is a deletion
	order  []string
}

var _ StateWrite = (*Layer)(nil)

// NewLayer returns an empty layer over parent.
func NewLayer(parent StateWrite) *Layer {
	return &Layer{
		parent: parent,
		writes: make(map[string][]byte),
	}
}

// Get implements StateRead.
func (l *Layer) Get(key string) ([]byte, error) {
	if v, ok := l.writes[key]; ok {
		return v, nil
	}
	return l.parent.Get(key)
}

// Put implements StateWrite. value must not be nil.
func (l *Layer) Put(key string, value []byte) {
	if value == nil {
		value = []byte{}
	}
	l.set(key, value)
}

// Delete implements StateWrite.
func (l *Layer) Delete(key string) {
	l.set(key, nil)
}

func (l *Layer) set(key string, value []byte) {
	if _, ok := l.writes[key]; !ok {
		l.order = append(l.order, key)
	}
	l.writes[key] = value
}

// Apply writes the buffered changes into the parent in the order they were
// first made.
func (l *Layer) Apply() {
	for _, key := range l.order {
		if v := l.writes[key]; v == nil {
			l.parent.Delete(key)
		} else {
			l.parent.Put(key, v)
		}
	}
	l.writes = make(map[string][]byte)
	l.order = nil
}
