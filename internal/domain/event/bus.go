package event

// Bus fans events out to whoever is watching a channel key. Delivery is
// best-effort for currently connected viewers; stored state stays the
// source of truth.
type Bus interface {
	Publish(channelKey string, ev *Event)
}
