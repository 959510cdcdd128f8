package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"storefront/internal/models"
	"storefront/internal/order"
	"storefront/internal/storefront/api"
	"storefront/internal/storefront/cart"
	"storefront/internal/storefront/checkout"
	"storefront/internal/storefront/session"
)

var errUsage = errors.New("usage")

func usageError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

func usage(w io.Writer) {
	fmt.Fprint(w, `usage: shop <command> [args]

catalog
  products                         list products
  show <product-id>                product details

cart
  add <product-id> [qty]           add to cart (default 1)
  set <product-id> <qty>           set quantity (0 removes)
  inc <product-id> | dec <product-id>
  remove <product-id>
  cart                             show cart and total
  checkout --name --email --phone --address

account
  login <email> <password>
  register <email> <password> [--role shopper|merchant]
  logout
  me

merchant
  orders                           list orders, newest first
  accept|refuse|complete <order-id>
  stock <product-id> <n>
  availability <product-id> on|off

admin
  create-product --name --description --price --stock --image <path>
  delete-product <product-id> [--yes]

settings: SHOP_API_URL, SHOP_STATE, SHOP_REDIS_ADDR, SHOP_SESSION
`)
}

type app struct {
	sess *session.Session
	out  io.Writer
	in   io.Reader
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "products":
		return a.products(ctx)
	case "show":
		return a.show(ctx, args)
	case "add":
		return a.add(ctx, args)
	case "set":
		return a.set(ctx, args)
	case "inc", "dec":
		return a.step(ctx, cmd, args)
	case "remove":
		return a.remove(ctx, args)
	case "cart":
		return a.cart()
	case "checkout":
		return a.checkout(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "register":
		return a.register(ctx, args)
	case "logout":
		if err := a.sess.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Logged out")
		return nil
	case "me":
		return a.me(ctx)
	case "orders":
		return a.orders(ctx)
	case string(order.ActionAccept), string(order.ActionRefuse), string(order.ActionComplete):
		return a.act(ctx, order.Action(cmd), args)
	case "stock":
		return a.stock(ctx, args)
	case "availability":
		return a.availability(ctx, args)
	case "create-product":
		return a.createProduct(ctx, args)
	case "delete-product":
		return a.deleteProduct(ctx, args)
	case "help", "-h", "--help":
		usage(a.out)
		return nil
	}
	return usageError("unknown command %q (try: shop help)", cmd)
}

func (a *app) products(ctx context.Context) error {
	products, err := a.sess.Products(ctx)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		fmt.Fprintln(a.out, "No products yet")
		return nil
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tSTOCK\tSTATUS")
	for _, p := range products {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", p.ID, p.Name, money(p.Price), p.Stock, availability(p))
	}
	return w.Flush()
}

func (a *app) show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("show <product-id>")
	}
	p, err := a.sess.Product(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s\n%s\n\nPrice: %s\nStock: %d\nStatus: %s\n", p.Name, p.Description, money(p.Price), p.Stock, availability(*p))
	if p.ImageURL != "" {
		fmt.Fprintf(a.out, "Image: %s\n", imageURL(a.sess.Client().BaseURL(), p.ImageURL))
	}
	if item, ok := a.sess.Cart().Item(p.ID); ok {
		fmt.Fprintf(a.out, "In cart: %d\n", item.Quantity)
	}
	return nil
}

func (a *app) add(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return usageError("add <product-id> [qty]")
	}
	qty := 1
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return usageError("quantity must be a number")
		}
		qty = n
	}
	p, err := a.sess.AddToCart(ctx, args[0], qty)
	if err != nil {
		return cartError(err)
	}
	fmt.Fprintf(a.out, "Added %d x %s (cart: %d items)\n", qty, p.Name, a.sess.Cart().Count())
	return nil
}

func (a *app) set(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usageError("set <product-id> <qty>")
	}
	qty, err := strconv.Atoi(args[1])
	if err != nil {
		return usageError("quantity must be a number")
	}
	if err := a.sess.Cart().SetQuantity(ctx, args[0], qty); err != nil {
		return cartError(err)
	}
	return a.cart()
}

func (a *app) step(ctx context.Context, cmd string, args []string) error {
	if len(args) != 1 {
		return usageError("%s <product-id>", cmd)
	}
	var err error
	if cmd == "inc" {
		err = a.sess.Cart().Increment(ctx, args[0])
	} else {
		err = a.sess.Cart().Decrement(ctx, args[0])
	}
	if err != nil {
		return cartError(err)
	}
	return a.cart()
}

func (a *app) remove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("remove <product-id>")
	}
	if err := a.sess.Cart().Remove(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Removed from cart")
	return nil
}

func (a *app) cart() error {
	c := a.sess.Cart()
	if c.IsEmpty() {
		fmt.Fprintln(a.out, "Your cart is empty")
		return nil
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tQTY\tSUBTOTAL")
	for _, item := range c.Items() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", item.ID, item.Name, money(item.Price), item.Quantity, item.Subtotal().StringFixed(2))
	}
	fmt.Fprintf(w, "\t\t\t%d\t%s\n", c.Count(), c.Total().StringFixed(2))
	return w.Flush()
}

func (a *app) checkout(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var form models.CustomerInfo
	fs.StringVar(&form.Name, "name", "", "full name")
	fs.StringVar(&form.Email, "email", "", "email")
	fs.StringVar(&form.Phone, "phone", "", "phone")
	fs.StringVar(&form.Address, "address", "", "delivery address")
	if err := fs.Parse(args); err != nil {
		return usageError("checkout --name --email --phone --address")
	}

	o, err := a.sess.Checkout(ctx, form)
	if errors.Is(err, checkout.ErrEmptyCart) {
		return a.cart()
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Order placed: %s\nTotal: %s (pay on delivery)\nWe will contact you at %s.\n",
		o.ID, money(o.Total), o.Customer.Email)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usageError("login <email> <password>")
	}
	u, err := a.sess.Login(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s (%s)\n", u.Email, u.Role)
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	role := fs.String("role", "", "shopper or merchant")
	positional, flags := splitArgs(args)
	if err := fs.Parse(flags); err != nil || len(positional) != 2 {
		return usageError("register <email> <password> [--role shopper|merchant]")
	}
	var r models.Role
	if *role != "" {
		parsed, err := models.ParseRole(*role)
		if err != nil {
			return usageError("%v", err)
		}
		r = parsed
	}
	u, err := a.sess.Register(ctx, positional[0], positional[1], r)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Account created: %s (%s)\n", u.Email, u.Role)
	return nil
}

func (a *app) me(ctx context.Context) error {
	u, err := a.sess.User(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s\nrole: %s\n", u.Email, u.Role)
	return nil
}

func (a *app) orders(ctx context.Context) error {
	orders, err := a.sess.Orders(ctx)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		fmt.Fprintln(a.out, "No orders yet")
		return nil
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tCUSTOMER\tITEMS\tTOTAL\tSTATUS\tACTIONS")
	for _, o := range orders {
		var lines []string
		for _, item := range o.Items {
			lines = append(lines, fmt.Sprintf("%dx %s", item.Quantity, item.ProductName))
		}
		var actions []string
		for _, act := range a.sess.OrderActions(ctx, o) {
			actions = append(actions, string(act))
		}
		fmt.Fprintf(w, "%s\t%s\t%s <%s>\t%s\t%s\t%s\t%s\n",
			o.ID, o.CreatedAt.Local().Format("2006-01-02 15:04"), o.Customer.Name, o.Customer.Email,
			strings.Join(lines, ", "), money(o.Total), o.Status, strings.Join(actions, "|"))
	}
	return w.Flush()
}

func (a *app) act(ctx context.Context, action order.Action, args []string) error {
	if len(args) != 1 {
		return usageError("%s <order-id>", action)
	}
	o, err := a.sess.FindOrder(ctx, args[0])
	if err != nil {
		return err
	}
	updated, err := a.sess.Act(ctx, *o, action)
	if errors.Is(err, order.ErrInvalidTransition) {
		return fmt.Errorf("order %s is %s: cannot %s", o.ID, o.Status, action)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Order %s is now %s\n", updated.ID, updated.Status)
	return nil
}

func (a *app) stock(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usageError("stock <product-id> <n>")
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return usageError("stock must be a whole number")
	}
	p, err := a.sess.UpdateStock(ctx, args[0], n)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: stock %d\n", p.Name, p.Stock)
	return nil
}

func (a *app) availability(ctx context.Context, args []string) error {
	if len(args) != 2 || (args[1] != "on" && args[1] != "off") {
		return usageError("availability <product-id> on|off")
	}
	p, err := a.sess.SetAvailability(ctx, args[0], args[1] == "on")
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: %s\n", p.Name, availability(*p))
	return nil
}

func (a *app) createProduct(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create-product", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	name := fs.String("name", "", "")
	description := fs.String("description", "", "")
	price := fs.String("price", "", "")
	stock := fs.Int("stock", -1, "")
	image := fs.String("image", "", "")
	if err := fs.Parse(args); err != nil || *price == "" || *stock < 0 || *image == "" {
		return usageError("create-product --name --description --price --stock --image <path>")
	}
	p, err := decimal.NewFromString(*price)
	if err != nil {
		return usageError("price must be a number")
	}

	f, err := os.Open(*image)
	if err != nil {
		return err
	}
	defer f.Close()

	created, err := a.sess.CreateProduct(ctx, api.ProductForm{
		Name:        *name,
		Description: *description,
		Price:       p,
		Stock:       *stock,
		ImageName:   filepath.Base(*image),
		Image:       f,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created %s (%s)\n", created.Name, created.ID)
	return nil
}

func (a *app) deleteProduct(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete-product", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	yes := fs.Bool("yes", false, "skip confirmation")
	positional, flags := splitArgs(args)
	if err := fs.Parse(flags); err != nil || len(positional) != 1 {
		return usageError("delete-product <product-id> [--yes]")
	}
	id := positional[0]
	if !*yes && !a.confirm(fmt.Sprintf("Delete product %s? This cannot be undone [y/N] ", id)) {
		fmt.Fprintln(a.out, "Cancelled")
		return nil
	}
	if err := a.sess.DeleteProduct(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Product deleted")
	return nil
}

func (a *app) confirm(prompt string) bool {
	fmt.Fprint(a.out, prompt)
	line, _ := bufio.NewReader(a.in).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// cartError phrases cart failures the way the storefront's toasts did.
func cartError(err error) error {
	var stockErr *cart.StockError
	switch {
	case errors.As(err, &stockErr):
		return fmt.Errorf("not enough stock for %s: %d available", stockErr.Name, stockErr.Stock)
	case errors.Is(err, cart.ErrUnavailable):
		return errors.New("this product is not available")
	case errors.Is(err, cart.ErrInvalidQuantity):
		return usageError("%v", err)
	case errors.Is(err, cart.ErrNotInCart):
		return errors.New("that product is not in your cart")
	}
	return err
}

// splitArgs separates positional arguments from flags so flags may follow
// them.
func splitArgs(args []string) (positional, flags []string) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "-") {
			flags = append(flags, arg)
			if !strings.Contains(arg, "=") && i+1 < len(args) && arg != "--yes" && arg != "-yes" {
				flags = append(flags, args[i+1])
				i++
			}
			continue
		}
		positional = append(positional, arg)
	}
	return positional, flags
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func availability(p models.Product) string {
	switch {
	case p.InStock():
		return "available"
	case !p.Available:
		return "unavailable"
	}
	return "out of stock"
}

func imageURL(base, u string) string {
	if strings.HasPrefix(u, "/") {
		return base + u
	}
	return u
}

func joinFields(fields []string) string {
	return strings.Join(fields, ", ")
}
