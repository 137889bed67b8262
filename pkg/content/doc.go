// Package content provides the remote-backed caches behind the bot's lookup
// features: a TTL snapshot cache over any slow "fetch all records" source, a
// photo catalog cache with a forced reload, a per-consumer fair distributor
// that shows every catalog item once per cycle, exact-match directory lookup
// and an ordered fallback chain across heterogeneous photo tiers.
//
// All state is in memory and owned by explicitly constructed values.
package content
