package domain

import (
	"fmt"
	"strings"
)

// EphemeralScheme is the source prefix of in-memory, session-local image
// resources created by the reader with URL.createObjectURL.
const EphemeralScheme = "blob:"

// CapturedPage holds one archived page image.
// The JSON field names match the records written by the browser userscript,
// so stores written by either tool are interchangeable.
type CapturedPage struct {
	EncodedImage string `json:"dataUrl"` // data URL, e.g. data:image/jpeg;base64,...
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

// ImageElement is a host-independent view of an observed <img> element.
type ImageElement struct {
	ID  string `json:"id"`  // handle assigned by the host adapter (data-archiver-id)
	Src string `json:"src"` // current element source
}

// IsEphemeral reports whether the element's source is an in-memory blob resource.
func (e ImageElement) IsEphemeral() bool {
	return strings.HasPrefix(e.Src, EphemeralScheme)
}

// StatusResponse is the status readout for the current store.
type StatusResponse struct {
	PagesSaved int    `json:"pages_saved"`
	Status     string `json:"status"`
}

// NewStatus builds the status readout for n stored pages.
func NewStatus(n int) StatusResponse {
	return StatusResponse{PagesSaved: n, Status: StatusText(n)}
}

// StatusText is the text shown in the page status readout.
func StatusText(n int) string {
	return fmt.Sprintf("Pages saved: %d", n)
}

// ControlAction is a user action triggered from the in-page controls.
type ControlAction string

const (
	ActionExport ControlAction = "export"
	ActionClear  ControlAction = "clear"
	// ActionStatus asks for the current count, sent by freshly inserted controls.
	ActionStatus ControlAction = "status"
)
