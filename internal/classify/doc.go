// Package classify maps drop-off filenames to session keys.
//
// A session key has the shape <date>_<track>_<tag> and is derived from the
// filename alone, so the same name always classifies to the same key. Three
// pattern tiers are tried in order (standard export names, the simulator's
// alternative stint naming, then a generic underscore fallback); names without
// exploitable structure collapse into the shared untagged_session key so stray
// drops never explode into one-file sessions.
package classify
