package models

import (
	"fmt"
	"strconv"
)

// Slot describes one declared rectangular region on the page eligible to
// host a creative. Slots are parsed once from placeholder data attributes at
// orchestration start, are immutable, and are discarded when their pipeline
// reaches a terminal state.
type Slot struct {
	ID     int
	Width  int
	Height int
}

// ParseSlot builds a Slot from the raw data-attribute strings of a declared
// placeholder. Missing or non-positive values are a misconfiguration; such
// slots never enter the pipeline and never cause a network call.
func ParseSlot(id, width, height string) (Slot, error) {
	slotID, err := strconv.Atoi(id)
	if err != nil || slotID <= 0 {
		return Slot{}, fmt.Errorf("%w: bad slot id %q", ErrSlotMisconfigured, id)
	}
	w, err := strconv.Atoi(width)
	if err != nil || w <= 0 {
		return Slot{}, fmt.Errorf("%w: bad width %q for slot %d", ErrSlotMisconfigured, width, slotID)
	}
	h, err := strconv.Atoi(height)
	if err != nil || h <= 0 {
		return Slot{}, fmt.Errorf("%w: bad height %q for slot %d", ErrSlotMisconfigured, height, slotID)
	}
	return Slot{ID: slotID, Width: w, Height: h}, nil
}
