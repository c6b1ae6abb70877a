package dispatch

import (
	"fmt"

	"github.com/chazu/hybridge/meta"
	"github.com/chazu/hybridge/registry"
	"github.com/chazu/hybridge/value"
)

// SignalHandler receives emitted signals. A handler must itself be a host
// object the runtime can reference weakly; the bridge does not keep it
// alive.
type SignalHandler interface {
	HandleSignal(sender any, index int, args []value.Value)
}

type connection struct {
	sender  *registry.Ref
	index   int
	handler *registry.Ref
}

func (c connection) alive() bool {
	return c.sender.Alive() && c.handler.Alive()
}

// Connect subscribes handler to the signal at method index on sender.
// Connecting the same handler to the same signal twice is a no-op. Both
// sender and handler are entered in the identity registry, so repeated
// connections reuse one entry per object.
func (b *Bridge) Connect(sender any, index int, handler SignalHandler) error {
	mo, err := b.MetaObjectOf(sender)
	if err != nil {
		return err
	}
	if err := checkSignal(mo, index); err != nil {
		return err
	}
	senderRef, err := b.reg.Register(sender)
	if err != nil {
		return err
	}
	handlerRef, err := b.reg.Register(handler)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.conns {
		if c.sender == senderRef && c.index == index && c.handler == handlerRef {
			return nil
		}
	}
	b.conns = append(b.conns, connection{sender: senderRef, index: index, handler: handlerRef})
	log.Debugf("connected %s signal %d to %s", senderRef, index, handlerRef)
	return nil
}

// Disconnect removes the connection made by Connect. Sender and handler
// leave the identity registry once they have no connections left and are
// not published.
func (b *Bridge) Disconnect(sender any, index int, handler SignalHandler) bool {
	senderRef, ok := b.reg.Find(sender)
	if !ok {
		return false
	}
	handlerRef, ok := b.reg.Find(handler)
	if !ok {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	removed := false
	kept := b.conns[:0]
	for _, c := range b.conns {
		if c.sender == senderRef && c.index == index && c.handler == handlerRef {
			removed = true
			continue
		}
		kept = append(kept, c)
	}
	clear(b.conns[len(kept):])
	b.conns = kept
	if removed {
		log.Debugf("disconnected %s signal %d from %s", senderRef, index, handlerRef)
		b.releaseLocked(handlerRef)
		b.releaseLocked(senderRef)
	}
	return removed
}

// Connections returns the number of live connections from sender.
func (b *Bridge) Connections(sender any) int {
	ref, ok := b.reg.Find(sender)
	if !ok {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.conns {
		if c.sender == ref && c.alive() {
			n++
		}
	}
	return n
}

// Emit delivers the signal at method index on sender to every connected
// handler and returns how many handlers were called.
func (b *Bridge) Emit(sender any, index int, args ...value.Value) (int, error) {
	mo, err := b.MetaObjectOf(sender)
	if err != nil {
		return 0, err
	}
	if err := checkSignal(mo, index); err != nil {
		return 0, err
	}
	return b.emit(sender, mo, index, args)
}

func (b *Bridge) emit(sender any, mo *meta.MetaObject, index int, args []value.Value) (int, error) {
	senderRef, ok := b.reg.Find(sender)
	if !ok {
		return 0, nil
	}

	var handlers []SignalHandler
	b.mu.Lock()
	kept := b.conns[:0]
	for _, c := range b.conns {
		if !c.alive() {
			continue
		}
		kept = append(kept, c)
		if c.sender != senderRef || c.index != index {
			continue
		}
		if h, ok := c.handler.Object(); ok {
			handlers = append(handlers, h.(SignalHandler))
		}
	}
	clear(b.conns[len(kept):])
	b.conns = kept
	b.mu.Unlock()

	name := mo.ClassName()
	if mm, ok := mo.Method(index); ok {
		name = mm.Name
	}
	var firstErr error
	for _, h := range handlers {
		_, err := b.guard("emit", mo.ClassName(), name, func() (any, error) {
			h.HandleSignal(sender, index, args)
			return nil, nil
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	log.Debugf("emitted %s.%s to %d handlers", mo.ClassName(), name, len(handlers))
	return len(handlers), firstErr
}

// Destroy announces that obj is going away: it emits the destroyed signal,
// drops every connection obj takes part in, and removes obj from the
// identity registry and the published objects. Peers left without
// connections are released as well.
func (b *Bridge) Destroy(obj any) error {
	mo, err := b.MetaObjectOf(obj)
	if err != nil {
		return err
	}
	_, emitErr := b.emit(obj, mo, 0, nil)

	ref, ok := b.reg.Find(obj)
	if !ok {
		return emitErr
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	var peers []*registry.Ref
	kept := b.conns[:0]
	for _, c := range b.conns {
		switch {
		case c.sender == ref:
			peers = append(peers, c.handler)
		case c.handler == ref:
			peers = append(peers, c.sender)
		default:
			kept = append(kept, c)
		}
	}
	clear(b.conns[len(kept):])
	b.conns = kept
	for _, p := range peers {
		if p != ref {
			b.releaseLocked(p)
		}
	}
	for name, r := range b.objects {
		if r == ref {
			delete(b.objects, name)
		}
	}
	b.reg.Deregister(obj)
	log.Debugf("destroyed %s", ref)
	return emitErr
}

// releaseLocked deregisters ref's object once nothing in the bridge uses it.
func (b *Bridge) releaseLocked(ref *registry.Ref) {
	if b.connectedLocked(ref) || b.publishedLocked(ref) {
		return
	}
	if obj, ok := ref.Object(); ok {
		b.reg.Deregister(obj)
	}
}

func (b *Bridge) connectedLocked(ref *registry.Ref) bool {
	for _, c := range b.conns {
		if c.sender == ref || c.handler == ref {
			return true
		}
	}
	return false
}

func checkSignal(mo *meta.MetaObject, index int) error {
	mm, ok := mo.Method(index)
	if !ok {
		return fmt.Errorf("%s: method index %d: %w", mo.ClassName(), index, ErrUnknownMethod)
	}
	if !mm.IsSignal() {
		return fmt.Errorf("%s.%s: %w", mo.ClassName(), mm.Name, ErrNotSignal)
	}
	return nil
}
