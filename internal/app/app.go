// Package app wires the session, the optimistic store, the cart, realtime
// and notifications into one owned unit and reacts to identity changes.
package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/petra184/mobile-app-sub002/internal/cart"
	"github.com/petra184/mobile-app-sub002/internal/config"
	"github.com/petra184/mobile-app-sub002/internal/database"
	"github.com/petra184/mobile-app-sub002/internal/dataservice"
	"github.com/petra184/mobile-app-sub002/internal/kv"
	"github.com/petra184/mobile-app-sub002/internal/model"
	"github.com/petra184/mobile-app-sub002/internal/notify"
	"github.com/petra184/mobile-app-sub002/internal/realtime"
	"github.com/petra184/mobile-app-sub002/internal/session"
	"github.com/petra184/mobile-app-sub002/internal/userstate"
)

// TokenIssuer exchanges an email address for an access token.
type TokenIssuer interface {
	IssueToken(ctx context.Context, email string) (string, error)
}

// Deps are the collaborators an App is built from.
type Deps struct {
	Session   *session.Manager
	Storage   kv.Storage
	Service   dataservice.Service
	Issuer    TokenIssuer
	Transport realtime.Transport
	Logger    *slog.Logger

	CartDebounce time.Duration
	ToastLimit   int
	ToastTTL     time.Duration
}

// App owns every piece of client state. All of it belongs to at most one
// user at a time.
type App struct {
	logger  *slog.Logger
	issuer  TokenIssuer
	closers []func() error

	Session  *session.Manager
	Store    *userstate.Store
	Cart     *cart.Cache
	Realtime *realtime.Multiplexer
	Toasts   *notify.Toasts
	Inbox    *notify.Inbox
	registry *realtime.Registry
}

func New(d Deps) *App {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		logger:   logger.With("component", "app"),
		issuer:   d.Issuer,
		Session:  d.Session,
		Store:    userstate.New(d.Service, logger.With("component", "userstate")),
		Cart:     cart.New(d.Storage, d.CartDebounce, logger.With("component", "cart")),
		Realtime: realtime.New(d.Transport, logger.With("component", "realtime")),
		Toasts:   notify.NewToasts(d.ToastLimit, d.ToastTTL, logger.With("component", "toasts")),
		Inbox:    notify.NewInbox(),
	}
	a.registry = a.defaultRegistry()
	a.Session.OnChange(a.onSessionChange)
	return a
}

// Open builds an App from configuration: device storage, the HTTP data
// service client and the websocket realtime transport.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	var (
		db      *sql.DB
		closers []func() error
		err     error
	)
	if cfg.Storage.Driver == kv.DriverSQLite || cfg.Storage.Driver == "" {
		db, err = database.Open(cfg.DeviceDBPath, database.SchemaDevice)
		if err != nil {
			return nil, fmt.Errorf("open device database: %w", err)
		}
		closers = append(closers, db.Close)
	}

	storage, err := kv.Open(ctx, cfg.Storage, db)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, fmt.Errorf("open device storage: %w", err)
	}

	sess := session.NewManager(storage, logger.With("component", "session"))
	client := dataservice.NewClient(cfg.APIURL, sess.Token)
	transport := realtime.NewWebsocketTransport(cfg.RealtimeURL, sess.Token, logger.With("component", "transport"))
	closers = append([]func() error{transport.Close}, closers...)

	a := New(Deps{
		Session:      sess,
		Storage:      storage,
		Service:      client,
		Issuer:       client,
		Transport:    transport,
		Logger:       logger,
		CartDebounce: cfg.CartDebounce,
		ToastLimit:   cfg.ToastLimit,
		ToastTTL:     cfg.ToastTTL,
	})
	a.closers = closers
	return a, nil
}

// Start restores a persisted session, which activates that user's state.
func (a *App) Start(ctx context.Context) error {
	if _, err := a.Session.Restore(ctx); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	return nil
}

// Login signs in as email. Dependent state is ready when it returns.
func (a *App) Login(ctx context.Context, email string) (*model.Session, error) {
	if a.issuer == nil {
		return nil, errors.New("login: no token issuer configured")
	}
	token, err := a.issuer.IssueToken(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return a.Session.Login(ctx, token)
}

func (a *App) Logout(ctx context.Context) error {
	return a.Session.Logout(ctx)
}

// Close releases realtime channels, flushes the cart and closes storage.
func (a *App) Close(ctx context.Context) error {
	a.Realtime.Cleanup()
	a.Cart.Close(ctx)

	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// onSessionChange resets everything owned by the previous identity before
// any of it is rebuilt for the next one.
func (a *App) onSessionChange(s *model.Session) {
	ctx := context.Background()

	a.Realtime.Cleanup()
	a.Store.Reset()
	a.Toasts.Clear()
	a.Inbox.ClearAll()

	if s == nil {
		a.Cart.Load(ctx, "")
		a.logger.Info("session cleared")
		return
	}

	a.logger.Info("activating user", "user_id", s.UserID)
	a.Cart.Load(ctx, s.UserID)
	if err := a.Store.InitializeUser(ctx, s.UserID); err != nil {
		a.logger.Warn("initialize user", "user_id", s.UserID, "error", err)
		a.Toasts.Error("Couldn't load your account", "Some of your data may be out of date.")
	}
	a.Realtime.Setup(a.registry, s.UserID)
}

// EarnPoints credits points and reports the outcome as a toast.
func (a *App) EarnPoints(ctx context.Context, points int, description string) bool {
	if a.Store.AddPoints(ctx, points, description) {
		a.Toasts.Success("Points added", fmt.Sprintf("+%d points", points))
		return true
	}
	a.Toasts.Error("Couldn't add points", "Your balance was not changed.")
	return false
}

func (a *App) RedeemPoints(ctx context.Context, points int) bool {
	if points > a.Store.Balance() {
		a.Toasts.Warning("Not enough points", fmt.Sprintf("You have %d points.", a.Store.Balance()))
		return false
	}
	if a.Store.RedeemPoints(ctx, points) {
		a.Toasts.Success("Points redeemed", fmt.Sprintf("-%d points", points))
		return true
	}
	a.Toasts.Error("Couldn't redeem points", "Your balance was restored.")
	return false
}

// Checkout redeems the cart's total and empties the cart on success.
func (a *App) Checkout(ctx context.Context) bool {
	total := a.Cart.TotalPoints()
	if total == 0 {
		a.Toasts.Info("Your cart is empty", "")
		return false
	}
	if !a.RedeemPoints(ctx, total) {
		return false
	}
	a.Cart.ClearCart(ctx)
	return true
}

func (a *App) ToggleFavoriteTeam(ctx context.Context, teamID string) bool {
	if a.Store.ToggleFavoriteTeam(ctx, teamID) {
		return true
	}
	a.Toasts.Error("Couldn't update favorite teams", "")
	return false
}

func (a *App) SetNotificationsEnabled(ctx context.Context, enabled bool) bool {
	if a.Store.SetNotificationsEnabled(ctx, enabled) {
		return true
	}
	a.Toasts.Error("Couldn't update notifications", "")
	return false
}

// Subscribe adds h for domain d alongside the built-in handlers. It takes
// effect on the next realtime setup.
func (a *App) Subscribe(d realtime.Domain, h realtime.Handler) error {
	prev, ok := a.registry.Handler(d)
	if !ok {
		return a.registry.Register(d, h)
	}
	return a.registry.Register(d, func(e realtime.Event) {
		prev(e)
		h(e)
	})
}

// Resubscribe tears down and reopens realtime channels for the current user.
func (a *App) Resubscribe() {
	a.Realtime.Setup(a.registry, a.Session.UserID())
}

func (a *App) defaultRegistry() *realtime.Registry {
	reg := realtime.NewRegistry()
	for _, d := range realtime.Domains {
		var h realtime.Handler
		switch d {
		case realtime.DomainPoints:
			h = a.onPointsEvent
		case realtime.DomainPromotions, realtime.DomainSpecialOffers:
			h = a.onOfferEvent
		default:
			h = a.onContentEvent
		}
		reg.Register(d, h)
	}
	return reg
}

func (a *App) onPointsEvent(e realtime.Event) {
	before := a.Store.Balance()
	if err := a.Store.RefreshUserData(context.Background()); err != nil {
		a.logger.Warn("refresh after points event", "error", err)
		return
	}
	if after := a.Store.Balance(); after != before {
		a.Toasts.Success("Points updated", fmt.Sprintf("Your balance is now %d.", after))
	}
}

type offerPayload struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

func (a *App) onOfferEvent(e realtime.Event) {
	if e.Kind != realtime.Created {
		a.logger.Debug("offer change", "domain", e.Domain, "kind", e.Kind)
		return
	}
	var p offerPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		a.logger.Warn("malformed offer payload", "domain", e.Domain, "error", err)
		return
	}

	title := p.Title
	if title == "" {
		title = "New promotion"
		if e.Domain == realtime.DomainSpecialOffers {
			title = "New special offer"
		}
	}
	msg := p.Description
	if msg == "" {
		msg = p.Message
	}

	n := model.InboxNotification{Type: model.ToastInfo, Title: title, Message: msg}
	if p.ID != "" {
		n.Action = &model.Action{Label: "View", Route: "/" + string(e.Domain) + "/" + p.ID}
	}
	a.Inbox.Add(n)
}

func (a *App) onContentEvent(e realtime.Event) {
	a.logger.Debug("content change", "domain", e.Domain, "kind", e.Kind, "bytes", len(e.Payload))
}
