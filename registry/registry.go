// Package registry tracks the live sessions of a server and which one of
// them holds admin rights.
package registry

import (
	"errors"
	"io"
	"log"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
)

var (
	ErrFull           = errors.New("server is full")
	ErrUnknownSession = errors.New("unknown session")
)

// Member is the registry's handle on a live session.
type Member interface {
	io.Closer
	// NotifyAdmin tells the session it has been promoted to admin.
	NotifyAdmin()
}

// Session is a point-in-time view of one registered session.
type Session struct {
	ID    uint64
	Name  string
	Addr  string
	Admin bool
}

type entry struct {
	id     uint64
	name   string
	addr   string
	member Member
}

// Registry is the single shared table of live sessions. While it holds any
// session, exactly one of them is the admin.
type Registry struct {
	mutex    sync.RWMutex
	sessions map[uint64]*entry
	capacity int
	nextID   uint64
	adminID  uint64
	hasAdmin bool
	logger   *log.Logger
}

func New(capacity int, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Registry{
		sessions: make(map[uint64]*entry),
		capacity: capacity,
		logger:   logger,
	}
}

// Add admits a session. Ids are only consumed by admitted sessions. The
// first session in an empty registry becomes the admin.
func (r *Registry) Add(addr string, member Member) (id uint64, admin bool, err error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if len(r.sessions) >= r.capacity {
		return 0, false, ErrFull
	}

	id = r.nextID
	r.nextID++
	r.sessions[id] = &entry{id: id, addr: addr, member: member}

	if !r.hasAdmin {
		r.adminID = id
		r.hasAdmin = true
		admin = true
	}
	return id, admin, nil
}

func (r *Registry) SetName(id uint64, name string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return ErrUnknownSession
	}
	e.name = name
	return nil
}

// IsAdmin reports whether id currently holds admin rights.
func (r *Registry) IsAdmin(id uint64) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.hasAdmin && r.adminID == id
}

// Admin returns the current admin, if any.
func (r *Registry) Admin() (Session, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if !r.hasAdmin {
		return Session{}, false
	}
	return r.view(r.sessions[r.adminID]), true
}

// Remove drops a session. If it was the admin, the remaining session with
// the lowest id is promoted and notified after the table is unlocked.
func (r *Registry) Remove(id uint64) (promoted Session, ok bool) {
	r.mutex.Lock()
	if _, exists := r.sessions[id]; !exists {
		r.mutex.Unlock()
		return Session{}, false
	}
	delete(r.sessions, id)

	if !r.hasAdmin || r.adminID != id {
		r.mutex.Unlock()
		return Session{}, false
	}

	r.hasAdmin = false
	var next *entry
	for _, e := range r.sessions {
		if next == nil || e.id < next.id {
			next = e
		}
	}
	if next == nil {
		r.mutex.Unlock()
		return Session{}, false
	}
	r.adminID = next.id
	r.hasAdmin = true
	promoted = r.view(next)
	member := next.member
	r.mutex.Unlock()

	r.logger.Printf("[ADMIN] Admin rights transferred to id %d (%s)", promoted.ID, promoted.Name)
	if member != nil {
		member.NotifyAdmin()
	}
	return promoted, true
}

// Sessions returns every live session ordered by id.
func (r *Registry) Sessions() []Session {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	list := make([]Session, 0, len(r.sessions))
	for _, e := range r.sessions {
		list = append(list, r.view(e))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.sessions)
}

func (r *Registry) Capacity() int {
	return r.capacity
}

// CloseAll closes every live session. Sessions remove themselves as their
// loops exit.
func (r *Registry) CloseAll() error {
	r.mutex.RLock()
	members := make([]Member, 0, len(r.sessions))
	for _, e := range r.sessions {
		if e.member != nil {
			members = append(members, e.member)
		}
	}
	r.mutex.RUnlock()

	var result *multierror.Error
	for _, m := range members {
		if err := m.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// view must be called with the mutex held.
func (r *Registry) view(e *entry) Session {
	return Session{
		ID:    e.id,
		Name:  e.name,
		Addr:  e.addr,
		Admin: r.hasAdmin && r.adminID == e.id,
	}
}
