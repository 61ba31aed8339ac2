// Package constants holds small fixed values shared across packages that
// would otherwise need to import each other just for a string literal.
package constants

// internalChannels are synthetic channel names used for system-to-system
// routing — never a real chat surface, so messages addressed to them are
// never forwarded to a user. Cron-fired messages use "cron:{job_id}",
// which is not in this set.
var internalChannels = map[string]bool{
	"system": true,
	"cli":    true,
}

// IsInternalChannel reports whether channel is a synthetic routing channel
// rather than a real chat platform.
func IsInternalChannel(channel string) bool {
	return internalChannels[channel]
}
