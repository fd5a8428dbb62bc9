package authz

import (
	"context"
	"sync"

	"github.com/vyrodovalexey/funcauthz/internal/auth"
)

// UserItemKey is the item bag key holding the caller identity.
const UserItemKey = "User"

// Items is a request-scoped key/value bag.
type Items struct {
	mu     sync.RWMutex
	values map[string]interface{}
}

// NewItems creates an empty bag.
func NewItems() *Items {
	return &Items{values: make(map[string]interface{})}
}

// Get returns the value for key.
func (i *Items) Get(key string) (interface{}, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	v, ok := i.values[key]
	return v, ok
}

// Set stores value under key.
func (i *Items) Set(key string, value interface{}) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.values[key] = value
}

// Delete removes key.
func (i *Items) Delete(key string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.values, key)
}

// User returns the identity stored under UserItemKey. It is nil when the
// stored identity is nil or absent.
func (i *Items) User() *auth.Identity {
	if i == nil {
		return nil
	}
	v, _ := i.Get(UserItemKey)
	identity, _ := v.(*auth.Identity)
	return identity
}

type itemsKey struct{}

// ContextWithItems attaches items to ctx.
func ContextWithItems(ctx context.Context, items *Items) context.Context {
	return context.WithValue(ctx, itemsKey{}, items)
}

// ItemsFromContext returns the item bag attached to ctx.
func ItemsFromContext(ctx context.Context) (*Items, bool) {
	items, ok := ctx.Value(itemsKey{}).(*Items)
	return items, ok && items != nil
}

// UserFromContext returns the identity stored in the item bag of ctx.
func UserFromContext(ctx context.Context) *auth.Identity {
	items, ok := ItemsFromContext(ctx)
	if !ok {
		return nil
	}
	return items.User()
}
