package bot

import "sync"

const lockStripes = 64

// userLocks serializes updates of the same user. Users hash onto a fixed set
// of mutexes, so memory stays constant however many users write.
type userLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *userLocks) lock(userID int64) func() {
	m := &l.stripes[uint64(userID)%lockStripes]
	m.Lock()
	return m.Unlock
}
