// Package cart keeps the signed-in user's reward cart in memory and mirrors
// it to device storage under a per-user key.
package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/petra184/mobile-app-sub002/internal/kv"
	"github.com/petra184/mobile-app-sub002/internal/lifecycle"
	"github.com/petra184/mobile-app-sub002/internal/model"
)

// KeyPrefix is prepended to the user id to form the storage key.
const KeyPrefix = "cart_items_"

// DefaultDebounce is the quiet period before a debounced write runs.
const DefaultDebounce = 500 * time.Millisecond

// WritePolicy selects how a change reaches storage.
type WritePolicy int

const (
	// Debounced coalesces writes until DefaultDebounce (or the configured
	// delay) passes without another change.
	Debounced WritePolicy = iota
	// Immediate cancels any pending write and writes now.
	Immediate
)

func (p WritePolicy) String() string {
	if p == Immediate {
		return "immediate"
	}
	return "debounced"
}

// Key returns the storage key for userID, or "" when there is no user.
func Key(userID string) string {
	if userID == "" {
		return ""
	}
	return KeyPrefix + userID
}

// State is a point-in-time copy of the cart.
type State struct {
	UserID      string            `json:"user_id"`
	Items       []model.CartEntry `json:"items"`
	TotalItems  int               `json:"total_items"`
	TotalPoints int               `json:"total_points"`
	Version     uint64            `json:"version"`
	Loading     bool              `json:"loading"`
}

type stopper interface {
	Stop() bool
}

type pendingWrite struct {
	key   string
	timer stopper
	seq   uint64
}

// Cache is the cart for at most one user at a time.
type Cache struct {
	mu          sync.Mutex
	storage     kv.Storage
	logger      *slog.Logger
	guard       lifecycle.Guard
	debounce    time.Duration
	userID      string
	items       []model.CartEntry
	initialized bool
	loading     bool
	version     uint64
	pending     *pendingWrite
	writeSeq    uint64
	listeners   []func(State)

	// changes made while loading, replayed on top of the stored items
	deferred     []func([]model.CartEntry) []model.CartEntry
	deferredPlan WritePolicy

	afterFunc func(time.Duration, func()) stopper
}

func New(storage kv.Storage, debounce time.Duration, logger *slog.Logger) *Cache {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Cache{
		storage:  storage,
		logger:   logger,
		debounce: debounce,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
}

// OnChange registers fn to receive the cart state after every change.
func (c *Cache) OnChange(fn func(State)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

func (c *Cache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Cache) Items() []model.CartEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneItems(c.items)
}

func (c *Cache) TotalItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return totalItems(c.items)
}

func (c *Cache) TotalPoints() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return totalPoints(c.items)
}

// Version increases on every change to the cart contents or loading flag.
func (c *Cache) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

func (c *Cache) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *Cache) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Cache) stateLocked() State {
	return State{
		UserID:      c.userID,
		Items:       cloneItems(c.items),
		TotalItems:  totalItems(c.items),
		TotalPoints: totalPoints(c.items),
		Version:     c.version,
		Loading:     c.loading,
	}
}

// changedLocked bumps the version and releases the lock, then notifies.
func (c *Cache) changedLocked() {
	c.version++
	st := c.stateLocked()
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(st)
	}
}

// Load makes the cart reflect userID. Loading the user that is already
// loaded is a no-op until Refresh. An empty userID empties the cart without
// touching storage. A pending write for the previous user is flushed under
// the previous user's key first.
func (c *Cache) Load(ctx context.Context, userID string) {
	c.load(ctx, userID, false)
}

// Refresh reloads the current user's cart from storage, flushing any pending
// write first.
func (c *Cache) Refresh(ctx context.Context) {
	c.load(ctx, c.UserID(), true)
}

func (c *Cache) load(ctx context.Context, userID string, force bool) {
	c.mu.Lock()
	if !force && userID == c.userID && (c.initialized || c.loading) {
		c.mu.Unlock()
		return
	}
	flush := c.takePendingLocked()
	var flushData []byte
	if flush != nil {
		flushData = c.marshalLocked()
	}

	tok := c.guard.Invalidate()
	c.userID = userID
	c.items = nil
	c.initialized = false
	c.loading = userID != ""
	c.deferred = nil
	c.deferredPlan = Debounced
	c.changedLocked()

	if flush != nil {
		c.write(ctx, flush.key, flushData)
	}
	if userID == "" {
		return
	}

	items := c.read(ctx, Key(userID))

	c.mu.Lock()
	if !c.guard.Valid(tok) {
		c.mu.Unlock()
		c.logger.Debug("discarding stale cart load", "user_id", userID)
		return
	}
	for _, fn := range c.deferred {
		items = fn(items)
	}
	replayed, policy := len(c.deferred) > 0, c.deferredPlan
	c.deferred = nil
	c.items = items
	c.initialized = true
	c.loading = false
	c.changedLocked()

	if replayed {
		c.persist(ctx, policy)
	}
}

// read returns the stored items for key. Missing or malformed data yields an
// empty cart.
func (c *Cache) read(ctx context.Context, key string) []model.CartEntry {
	raw, ok, err := c.storage.Get(ctx, key)
	if err != nil {
		c.logger.Error("failed to load cart", "key", key, "error", err)
		return []model.CartEntry{}
	}
	if !ok || raw == "" {
		return []model.CartEntry{}
	}

	var items []model.CartEntry
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		c.logger.Warn("discarding malformed cart", "key", key, "error", err)
		return []model.CartEntry{}
	}

	valid := items[:0]
	for _, it := range items {
		if it.ID == "" || it.Quantity < 1 {
			continue
		}
		valid = append(valid, it)
	}
	return valid
}

// AddToCart adds one of item, or increments its quantity if present.
func (c *Cache) AddToCart(item model.RewardItem) {
	c.mutate(func(items []model.CartEntry) []model.CartEntry {
		if i := indexOf(items, item.ID); i >= 0 {
			items[i].Quantity++
			return items
		}
		return append(items, model.CartEntry{
			ID:             item.ID,
			Name:           item.Name,
			Description:    item.Description,
			PointsRequired: item.PointsRequired,
			ImageURL:       item.ImageURL,
			Quantity:       1,
		})
	})
}

func (c *Cache) RemoveFromCart(itemID string) {
	c.mutate(func(items []model.CartEntry) []model.CartEntry {
		if i := indexOf(items, itemID); i >= 0 {
			return append(items[:i], items[i+1:]...)
		}
		return items
	})
}

// RemoveOneFromCart decrements the item's quantity and removes the entry
// when it would reach zero.
func (c *Cache) RemoveOneFromCart(itemID string) {
	c.mutate(func(items []model.CartEntry) []model.CartEntry {
		i := indexOf(items, itemID)
		if i < 0 {
			return items
		}
		if items[i].Quantity <= 1 {
			return append(items[:i], items[i+1:]...)
		}
		items[i].Quantity--
		return items
	})
}

// UpdateQuantity sets the item's quantity. A quantity <= 0 removes it.
func (c *Cache) UpdateQuantity(itemID string, quantity int) {
	if quantity <= 0 {
		c.RemoveFromCart(itemID)
		return
	}
	c.mutate(func(items []model.CartEntry) []model.CartEntry {
		if i := indexOf(items, itemID); i >= 0 {
			items[i].Quantity = quantity
		}
		return items
	})
}

// ClearCart empties the cart and writes the empty cart before returning.
// During a load the empty cart is written under the loading user's key and
// the clear is replayed once the stored items arrive.
func (c *Cache) ClearCart(ctx context.Context) {
	c.mu.Lock()
	if c.userID == "" {
		c.mu.Unlock()
		return
	}
	c.items = []model.CartEntry{}
	if c.loading {
		c.deferred = []func([]model.CartEntry) []model.CartEntry{clearItems}
		c.deferredPlan = Immediate
		key := Key(c.userID)
		data := c.marshalLocked()
		c.changedLocked()
		c.write(ctx, key, data)
		return
	}
	c.changedLocked()
	c.persist(ctx, Immediate)
}

// mutate applies fn to a copy of the items. Without a user the cart stays
// empty and fn is not applied. While the user's stored items are loading fn
// is applied now and again on top of what the load returns.
func (c *Cache) mutate(fn func([]model.CartEntry) []model.CartEntry) {
	c.mu.Lock()
	if c.userID == "" {
		c.mu.Unlock()
		c.logger.Debug("cart change ignored without a session")
		return
	}
	c.items = fn(cloneItems(c.items))
	if c.loading {
		c.deferred = append(c.deferred, fn)
		c.changedLocked()
		return
	}
	c.changedLocked()
	c.persist(context.Background(), Debounced)
}

// persist schedules or performs the write of the current items. Nothing is
// written while there is no user or while stored items are being restored.
func (c *Cache) persist(ctx context.Context, policy WritePolicy) {
	c.mu.Lock()
	if c.userID == "" || c.loading {
		c.mu.Unlock()
		return
	}
	key := Key(c.userID)
	c.takePendingLocked()

	if policy == Immediate {
		data := c.marshalLocked()
		c.mu.Unlock()
		c.write(ctx, key, data)
		return
	}

	c.writeSeq++
	seq := c.writeSeq
	p := &pendingWrite{key: key, seq: seq}
	p.timer = c.afterFunc(c.debounce, func() { c.fire(seq) })
	c.pending = p
	c.mu.Unlock()
}

// fire runs a debounced write if it is still the latest one scheduled.
func (c *Cache) fire(seq uint64) {
	c.mu.Lock()
	if c.pending == nil || c.pending.seq != seq {
		c.mu.Unlock()
		return
	}
	key := c.pending.key
	c.pending = nil
	data := c.marshalLocked()
	c.mu.Unlock()

	c.write(context.Background(), key, data)
}

// Flush writes any pending debounced change now.
func (c *Cache) Flush(ctx context.Context) {
	c.mu.Lock()
	p := c.takePendingLocked()
	if p == nil {
		c.mu.Unlock()
		return
	}
	data := c.marshalLocked()
	c.mu.Unlock()
	c.write(ctx, p.key, data)
}

// Close flushes a pending write and drops any load still in flight.
func (c *Cache) Close(ctx context.Context) {
	c.guard.Invalidate()
	c.Flush(ctx)
}

func (c *Cache) takePendingLocked() *pendingWrite {
	p := c.pending
	if p != nil {
		p.timer.Stop()
		c.pending = nil
	}
	return p
}

func (c *Cache) marshalLocked() []byte {
	items := c.items
	if items == nil {
		items = []model.CartEntry{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		c.logger.Error("failed to encode cart", "error", err)
		return []byte("[]")
	}
	return data
}

func (c *Cache) write(ctx context.Context, key string, data []byte) {
	if err := c.storage.Set(ctx, key, string(data)); err != nil {
		c.logger.Error("failed to save cart", "key", key, "error", fmt.Errorf("set %s: %w", key, err))
	}
}

func indexOf(items []model.CartEntry, id string) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func clearItems([]model.CartEntry) []model.CartEntry {
	return []model.CartEntry{}
}

func cloneItems(items []model.CartEntry) []model.CartEntry {
	out := make([]model.CartEntry, len(items))
	copy(out, items)
	return out
}

func totalItems(items []model.CartEntry) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

func totalPoints(items []model.CartEntry) int {
	n := 0
	for _, it := range items {
		n += it.Quantity * it.PointsRequired
	}
	return n
}
