// Package api exposes the engine facade that the daemon HTTP layer and the
// CLI share. It wraps the mapping store, the configured directory adapters,
// and the detection pipeline behind one type, and converts internal results
// into the stable response shapes both frontends serialize.
//
// Engine methods come in two flavors. Read paths (EnumerateUsers,
// DetectMappings, GetProfile, ListMappings) never mutate mappings except
// where a refresh is requested explicitly. Write paths (CreateMapping,
// CreateMappingsFromSuggestions, UpdateMapping, SyncProfile, the deletes)
// funnel every mutation through the store so its state machine guards hold
// no matter which frontend issued the call.
package api
