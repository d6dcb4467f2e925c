package dictionary

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidIndex is returned when an insertion index does not belong to the dictionary.
var ErrInvalidIndex = errors.New("invalid dictionary index")

// Optimized is a dictionary whose entries are ordered by descending benefit. Earlier slots get
// shorter references.
type Optimized struct {
	Identifier string
	Entries    []Entry // in slot order
	slots      []int   // insertion index to slot
}

// Optimize orders the entries of d by the benefit of referencing them through identifier. Ties
// keep insertion order.
func Optimize(identifier string, d *Dictionary) *Optimized {
	n := d.Len()
	benefits := make([]int, n)
	order := make([]int, n)
	for i, e := range d.Entries {
		benefits[i] = e.Benefit(identifier)
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return benefits[order[i]] > benefits[order[j]]
	})

	o := &Optimized{
		Identifier: identifier,
		Entries:    make([]Entry, n),
		slots:      make([]int, n),
	}
	for slot, index := range order {
		o.Entries[slot] = d.Entries[index]
		o.slots[index] = slot
	}
	return o
}

// Len returns the number of entries.
func (o *Optimized) Len() int {
	return len(o.Entries)
}

// Slot returns the final slot of the entry with the given insertion index.
func (o *Optimized) Slot(index int) (int, error) {
	if index < 0 || len(o.slots) <= index {
		return 0, fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	return o.slots[index], nil
}

// Reference returns the reference expression for the entry with the given insertion index,
// such as D[3].
func (o *Optimized) Reference(index int) (string, error) {
	slot, err := o.Slot(index)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s[%d]", o.Identifier, slot), nil
}
