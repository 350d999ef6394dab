package memcache_fx

import (
	"go.uber.org/fx"

	mem "timelens/pkg/memcache"
)

var Module = fx.Provide(
	mem.NewSeenEvents,
	provideSeenEventStore)

func provideSeenEventStore(seen *mem.SeenEvents) mem.SeenEventStore {
	return seen
}
