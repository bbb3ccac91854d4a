// Package conflict implements the Conflict Resolver: a
// policy-based decision over a target's local-changes manifest, plus the
// revert instruction applied to the losing side.
//
// Grounded on original_source/src/ConflictResolver.cpp: isConflict treats
// "modified" as an unconditional conflict and "removed" as conditional on
// the incoming command not itself being a delete (a local delete plus a
// remote delete is not a conflict).
package conflict

import "github.com/marmos91/syncmld/internal/dsync/model"

// RevertPolicy selects how a losing local change is rolled back.
type RevertPolicy int

const (
	RemoveLocal RevertPolicy = iota // CR_REMOVE_LOCAL
	ModifyToAdd                      // CR_MODIFY_TO_ADD
)

// Resolver is the stateless policy evaluator consumed by the Storage
// Handler's commit phases.
type Resolver struct{}

// New returns a Resolver.
func New() *Resolver {
	return &Resolver{}
}

// IsConflict reports whether localKey collides with a pending local
// change: unconditionally for "modified", and for "removed" only when the
// incoming command is not itself a delete.
func (r *Resolver) IsConflict(changes *model.LocalChanges, localKey string, isDelete bool) bool {
	if changes == nil {
		return false
	}
	if _, ok := changes.Modified[model.SyncItemKey(localKey)]; ok {
		return true
	}
	if _, ok := changes.Removed[model.SyncItemKey(localKey)]; ok && !isDelete {
		return true
	}
	return false
}

// LocalSideWins reports whether policy favors the local side.
func (r *Resolver) LocalSideWins(policy model.ConflictPolicy) bool {
	return policy == model.PreferLocal
}

// RevertLocalChange mutates changes per policy, applied to the manifest
// of the side that lost the conflict.
func (r *Resolver) RevertLocalChange(changes *model.LocalChanges, key string, policy RevertPolicy) {
	if changes == nil {
		return
	}
	k := model.SyncItemKey(key)
	switch policy {
	case RemoveLocal:
		delete(changes.Added, k)
		delete(changes.Modified, k)
		delete(changes.Removed, k)
	case ModifyToAdd:
		if _, ok := changes.Modified[k]; ok {
			delete(changes.Modified, k)
			changes.Added[k] = struct{}{}
		}
	}
}
