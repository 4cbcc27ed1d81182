// Package topology builds fan-in reduction trees over a fixed producer set.
//
// Given N producers and a fan-in limit F, Build groups producers into
// ceil(N/F) layer-1 nodes, then groups those nodes the same way, repeating
// until a single root remains. Node identities are deterministic
// (merger-l<layer>-<index>) so the same inputs always produce the same tree,
// and subjects follow the mergestream.updates.<producer> /
// mergestream.merged.<node> convention.
//
// Under the full-history policy the builder assigns delta scope to every
// intermediate layer and cumulative scope to the root: each layer publishes
// only what accumulated since its last publish, so the layer above never
// double-counts a contribution, while the root exposes the complete merge.
// The moving-window policy recomputes from retained updates and does not
// compose across layers, so it is accepted only when all producers fit a
// single node.
package topology
