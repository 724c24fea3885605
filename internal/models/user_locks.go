package models

import (
	"sync"
)

// UserLocks serializes order processing per user without a global lock.
// The row locks taken inside the settlement transaction remain the
// correctness backstop; this keeps a single user's orders from piling up on
// the database.
type UserLocks struct {
	userLocks map[int]*sync.Mutex // Map of user_id → mutex
	mapMutex  sync.RWMutex        // Protects the map itself
}

// NewUserLocks creates the lock table.
func NewUserLocks() *UserLocks {
	return &UserLocks{
		userLocks: make(map[int]*sync.Mutex),
	}
}

// LockUser locks order processing for a specific user.
func (ul *UserLocks) LockUser(userID int) {
	// First, get or create mutex for this user
	ul.mapMutex.Lock()

	if ul.userLocks[userID] == nil {
		ul.userLocks[userID] = &sync.Mutex{}
	}

	userMutex := ul.userLocks[userID]
	ul.mapMutex.Unlock()

	// Now lock that user's mutex
	userMutex.Lock()
}

// UnlockUser unlocks order processing for a specific user.
func (ul *UserLocks) UnlockUser(userID int) {
	ul.mapMutex.RLock()
	userMutex := ul.userLocks[userID]
	ul.mapMutex.RUnlock()

	if userMutex != nil {
		userMutex.Unlock()
	}
}
