package platform

// AppName is reported to the notification service as the sending
// application.
const AppName = "Pagemark"

// Options configures how a notification is displayed on the host platform.
type Options struct {
	// IconPath, when non-empty, points to an image file shown with the
	// notification where supported.
	IconPath string
	// Timeout is the display time in milliseconds; zero lets the platform
	// decide.
	Timeout int32
}
