// Package session is the shopper's explicitly owned state: the local store,
// the cart, the API client and the signed-in user. Views go through it
// instead of touching storage directly.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"storefront/internal/models"
	"storefront/internal/order"
	"storefront/internal/storefront/api"
	"storefront/internal/storefront/cart"
	"storefront/internal/storefront/checkout"
	"storefront/internal/storefront/kv"
)

var (
	ErrNotLoggedIn = errors.New("not logged in")
	ErrNotAllowed  = errors.New("not allowed for this role")
)

type Session struct {
	store  kv.Store
	client *api.Client
	cart   *cart.Engine
	logger *zap.Logger

	user *models.User
}

func New(store kv.Store, client *api.Client, logger *zap.Logger) *Session {
	return &Session{
		store:  store,
		client: client,
		cart:   cart.New(store),
		logger: logger,
	}
}

// Open restores the cart and the saved token. It does not touch the network.
func (s *Session) Open(ctx context.Context) error {
	if err := s.cart.Load(ctx); err != nil {
		return err
	}
	token, err := s.store.Get(ctx, kv.TokenKey)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		s.client.SetToken("")
	case err != nil:
		return fmt.Errorf("load token: %w", err)
	default:
		s.client.SetToken(string(token))
	}
	return nil
}

func (s *Session) Cart() *cart.Engine {
	return s.cart
}

func (s *Session) Client() *api.Client {
	return s.client
}

func (s *Session) LoggedIn() bool {
	return s.client.Token() != ""
}

// User returns the signed-in account, fetching it once per session.
func (s *Session) User(ctx context.Context) (*models.User, error) {
	if s.user != nil {
		return s.user, nil
	}
	if !s.LoggedIn() {
		return nil, ErrNotLoggedIn
	}
	u, err := s.client.Me(ctx)
	if err != nil {
		return nil, s.check(ctx, err)
	}
	s.user = u
	return u, nil
}

// Role is shopper for anonymous visitors.
func (s *Session) Role(ctx context.Context) models.Role {
	u, err := s.User(ctx)
	if err != nil {
		return models.RoleShopper
	}
	return u.Role
}

func (s *Session) Can(ctx context.Context, p models.Permission) bool {
	return s.Role(ctx).Can(p)
}

func (s *Session) require(ctx context.Context, p models.Permission) error {
	u, err := s.User(ctx)
	if err != nil {
		return err
	}
	if !u.Role.Can(p) {
		return fmt.Errorf("%w: %s cannot %s", ErrNotAllowed, u.Role, p)
	}
	return nil
}

func (s *Session) Login(ctx context.Context, email, password string) (*models.User, error) {
	resp, err := s.client.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.signIn(ctx, resp)
}

func (s *Session) Register(ctx context.Context, email, password string, role models.Role) (*models.User, error) {
	resp, err := s.client.Register(ctx, email, password, role)
	if err != nil {
		return nil, err
	}
	return s.signIn(ctx, resp)
}

func (s *Session) signIn(ctx context.Context, resp *models.AuthResponse) (*models.User, error) {
	if err := s.store.Set(ctx, kv.TokenKey, []byte(resp.Token)); err != nil {
		return nil, fmt.Errorf("save token: %w", err)
	}
	s.client.SetToken(resp.Token)
	user := resp.User
	s.user = &user
	return s.user, nil
}

// Logout forgets the token. The cart is kept.
func (s *Session) Logout(ctx context.Context) error {
	s.client.SetToken("")
	s.user = nil
	if err := s.store.Delete(ctx, kv.TokenKey); err != nil {
		return fmt.Errorf("forget token: %w", err)
	}
	return nil
}

// check clears the session on authentication failures and passes err on.
func (s *Session) check(ctx context.Context, err error) error {
	if errors.Is(err, api.ErrAuth) && s.LoggedIn() {
		s.logger.Warn("Session expired, signing out", zap.Error(err))
		if logoutErr := s.Logout(ctx); logoutErr != nil {
			s.logger.Warn("Failed to clear token", zap.Error(logoutErr))
		}
	}
	return err
}

func (s *Session) Products(ctx context.Context) ([]models.Product, error) {
	products, err := s.client.ListProducts(ctx)
	return products, s.check(ctx, err)
}

func (s *Session) Product(ctx context.Context, id string) (*models.Product, error) {
	p, err := s.client.GetProduct(ctx, id)
	if err != nil {
		return nil, s.check(ctx, err)
	}
	return p, nil
}

// AddToCart refreshes the product before adding so the stock check uses
// current numbers.
func (s *Session) AddToCart(ctx context.Context, productID string, qty int) (*models.Product, error) {
	p, err := s.Product(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := s.cart.Add(ctx, *p, qty); err != nil {
		return p, err
	}
	return p, nil
}

func (s *Session) Checkout(ctx context.Context, customer models.CustomerInfo) (*models.Order, error) {
	submitter := &checkout.Submitter{Cart: s.cart, Orders: s.client}
	o, err := submitter.Submit(ctx, customer)
	if err != nil {
		return o, s.check(ctx, err)
	}
	return o, nil
}

func (s *Session) Orders(ctx context.Context) ([]models.Order, error) {
	if err := s.require(ctx, models.PermOrdersView); err != nil {
		return nil, err
	}
	orders, err := s.client.ListOrders(ctx)
	return orders, s.check(ctx, err)
}

// OrderActions lists what the signed-in user may do with o right now.
func (s *Session) OrderActions(ctx context.Context, o models.Order) []order.Action {
	if !s.Can(ctx, models.PermOrdersStatus) {
		return nil
	}
	return order.Actions(o.Status)
}

// Act applies action to the order after checking it is valid from the
// order's current status.
func (s *Session) Act(ctx context.Context, o models.Order, action order.Action) (*models.Order, error) {
	if err := s.require(ctx, models.PermOrdersStatus); err != nil {
		return nil, err
	}
	target, ok := action.Target()
	if !ok {
		return nil, fmt.Errorf("unknown action %q", action)
	}
	if _, err := order.Transition(o.Status, target); err != nil {
		return nil, err
	}
	updated, err := s.client.UpdateOrderStatus(ctx, o.ID, target)
	if err != nil {
		return nil, s.check(ctx, err)
	}
	return updated, nil
}

func (s *Session) FindOrder(ctx context.Context, id string) (*models.Order, error) {
	orders, err := s.Orders(ctx)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if orders[i].ID == id {
			return &orders[i], nil
		}
	}
	return nil, &api.Error{Status: http.StatusNotFound, Kind: api.ErrNotFound, Message: "Order " + id + " not found"}
}

func (s *Session) UpdateStock(ctx context.Context, productID string, stock int) (*models.Product, error) {
	if stock < 0 {
		return nil, fmt.Errorf("%w: stock cannot be negative", api.ErrValidation)
	}
	return s.updateProduct(ctx, productID, models.ProductUpdate{Stock: &stock})
}

func (s *Session) SetAvailability(ctx context.Context, productID string, available bool) (*models.Product, error) {
	return s.updateProduct(ctx, productID, models.ProductUpdate{Available: &available})
}

func (s *Session) updateProduct(ctx context.Context, productID string, update models.ProductUpdate) (*models.Product, error) {
	if err := s.require(ctx, models.PermProductsEdit); err != nil {
		return nil, err
	}
	p, err := s.client.UpdateProduct(ctx, productID, update)
	if err != nil {
		return nil, s.check(ctx, err)
	}
	return p, nil
}

func (s *Session) CreateProduct(ctx context.Context, form api.ProductForm) (*models.Product, error) {
	if err := s.require(ctx, models.PermProductsCreate); err != nil {
		return nil, err
	}
	var missing []string
	if form.Name == "" {
		missing = append(missing, "name")
	}
	if form.Description == "" {
		missing = append(missing, "description")
	}
	if form.Image == nil {
		missing = append(missing, "image")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %v", api.ErrValidation, missing)
	}
	if form.Price.IsNegative() || form.Stock < 0 {
		return nil, fmt.Errorf("%w: price and stock cannot be negative", api.ErrValidation)
	}
	p, err := s.client.CreateProduct(ctx, form)
	if err != nil {
		return nil, s.check(ctx, err)
	}
	return p, nil
}

// DeleteProduct is irreversible; callers confirm first.
func (s *Session) DeleteProduct(ctx context.Context, productID string) error {
	if err := s.require(ctx, models.PermProductsDelete); err != nil {
		return err
	}
	return s.check(ctx, s.client.DeleteProduct(ctx, productID))
}
