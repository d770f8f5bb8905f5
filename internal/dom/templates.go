package dom

import "fmt"

// Placeholder states rendered while a slot is loading or after it fails.
// Both keep the declared box dimensions so a failed slot never destabilizes
// the page layout.

const placeholderStyle = "display:flex;align-items:center;justify-content:center;" +
	"background:#f4f4f4;color:#9a9a9a;font:12px sans-serif;" +
	"width:%dpx;height:%dpx;overflow:hidden;"

// LoadingPlaceholder builds the neutral box shown while a slot's pipeline is
// in flight.
func LoadingPlaceholder(width, height int) *Element {
	el := NewElement("div").
		SetAttr("class", "slot-loading").
		SetAttr("style", fmt.Sprintf(placeholderStyle, width, height))
	el.SetText("Loading ad…")
	return el
}

// ErrorPlaceholder builds the non-interactive box shown for a slot that
// reached a failure state. The message names the failure class without
// exposing internals.
func ErrorPlaceholder(width, height int, message string) *Element {
	if message == "" {
		message = "Ad unavailable"
	}
	el := NewElement("div").
		SetAttr("class", "slot-error").
		SetAttr("style", fmt.Sprintf(placeholderStyle, width, height))
	el.SetText(message)
	return el
}
