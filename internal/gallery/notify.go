package gallery

import "github.com/weedbot/console/internal/models"

// NotifyLevel classifies a user-visible notification.
type NotifyLevel string

const (
	NotifyInfo    NotifyLevel = "info"
	NotifySuccess NotifyLevel = "success"
	NotifyWarning NotifyLevel = "warning"
	NotifyError   NotifyLevel = "error"
)

// RenderPort is the rendering surface the controller drives. Binding it
// to concrete UI elements is the view layer's concern; the gallery
// logic never touches the view directly.
type RenderPort interface {
	// RenderList is called with the visible subset after every
	// completed state transition. It never observes a half-updated
	// mirror.
	RenderList(visible []models.ImageRecord)

	// RenderSelectionBar reflects the current selection count and its
	// total size in bytes.
	RenderSelectionBar(count int, totalBytes int64)

	// Notify shows exactly one toast per completed user action.
	Notify(level NotifyLevel, message string)

	// ConnectionLost toggles the persistent degraded-connection
	// indicator. Background refresh failures flip it on after repeated
	// failures instead of toasting every tick.
	ConnectionLost(lost bool)
}

// NopRenderPort discards all rendering calls. Useful for headless use
// and tests that only care about state.
type NopRenderPort struct{}

func (NopRenderPort) RenderList([]models.ImageRecord) {}
func (NopRenderPort) RenderSelectionBar(int, int64)   {}
func (NopRenderPort) Notify(NotifyLevel, string)      {}
func (NopRenderPort) ConnectionLost(bool)             {}
