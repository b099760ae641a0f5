package types

import (
	"github.com/robfig/cron/v3"
)

// Environment bundles cross-cutting runtime collaborators handed to services.
type Environment struct {
	Cron      *cron.Cron
	DeviceKey DeviceKeyProvider
}

func NewEnvironment(deviceKey DeviceKeyProvider) *Environment {
	cr := cron.New()
	return &Environment{
		Cron:      cr,
		DeviceKey: deviceKey,
	}
}
