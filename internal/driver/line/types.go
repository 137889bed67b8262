package line

import "wedding-bot/pkg/chat"

const (
	// DriverType is the configuration token for this driver.
	DriverType = "line"
	// DriverPlatform is the neutral platform of events produced by this driver.
	DriverPlatform = chat.PlatformLINE
)
