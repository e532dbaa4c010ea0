package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	cartapp "github.com/fieldsales/vendorsync/internal/application/cart"
	"github.com/fieldsales/vendorsync/internal/application/checkout"
	"github.com/fieldsales/vendorsync/internal/application/identity"
	syncapp "github.com/fieldsales/vendorsync/internal/application/sync"
	"github.com/fieldsales/vendorsync/internal/domain/catalog"
	"github.com/fieldsales/vendorsync/internal/domain/shared"
	"github.com/fieldsales/vendorsync/internal/infrastructure/migration"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"login":    loginCmd,
	"logout":   logoutCmd,
	"sync":     syncCmd,
	"status":   statusCmd,
	"watch":    watchCmd,
	"migrate":  migrateCmd,
	"products": productsCmd,
	"cart":     cartCmd,
	"reset":    resetCmd,
}

var errUsage = errors.New("invalid arguments, run vendorsync -h for usage")

func loginCmd(ctx context.Context, a *app, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	res, err := a.identity.Login(ctx, identity.LoginInput{Username: args[0], Password: args[1]})
	if err != nil {
		return err
	}
	mode := "en línea"
	if res.Offline {
		mode = "sin conexión"
	}
	fmt.Printf("Bienvenido, %s (%s)\n", res.User.DisplayName(), mode)
	return nil
}

func logoutCmd(ctx context.Context, a *app, _ []string) error {
	if err := a.identity.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Sesión cerrada")
	return nil
}

func syncCmd(ctx context.Context, a *app, args []string) error {
	kind := "full"
	if len(args) > 0 {
		kind = args[0]
	}
	runs := map[string]func(context.Context) *syncapp.Result{
		"full":    a.orch.FullSync,
		"catalog": a.orch.SyncCatalog,
		"orders":  a.orch.SyncPendingOrders,
		"clients": a.orch.SyncClients,
		"history": a.orch.SyncOrderHistory,
	}
	run, ok := runs[kind]
	if !ok {
		return errUsage
	}

	r := run(syncapp.WithTrigger(ctx, syncapp.TriggerManual))
	printResult(r)
	if !r.Success {
		return errors.New(r.Message)
	}
	return nil
}

func printResult(r *syncapp.Result) {
	fmt.Println(r.Message)
	for _, p := range r.Phases {
		mark := "ok"
		if !p.Success {
			mark = "ERROR"
		}
		fmt.Printf("  %-8s %-5s %4d  %s  %s\n", p.Phase, mark, p.Count, p.Duration.Round(time.Millisecond), p.Message)
	}
	if r.ImagesFailed > 0 {
		fmt.Printf("  %d imágenes no se pudieron descargar\n", r.ImagesFailed)
	}
}

func statusCmd(ctx context.Context, a *app, _ []string) error {
	user, ok, err := a.identity.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if ok {
		fmt.Printf("Usuario:           %s\n", user.DisplayName())
	} else {
		fmt.Println("Usuario:           (sin sesión)")
	}

	st, err := a.orch.Status(ctx)
	if err != nil {
		return err
	}
	conn := "sin conexión"
	if st.Connected {
		conn = "conectado"
	}
	lastSync := st.LastSync
	if lastSync == "" {
		lastSync = "nunca"
	}
	fmt.Printf("Conexión:          %s\n", conn)
	fmt.Printf("Última sincr.:     %s\n", lastSync)
	fmt.Printf("Productos:         %d\n", st.Products)
	fmt.Printf("Clientes:          %d\n", st.Clients)
	fmt.Printf("Pedidos pendientes: %d\n", st.PendingOrders)
	fmt.Printf("Historial:         %d\n", st.History)
	if st.Server != nil {
		fmt.Printf("Servidor:          %d productos, %d pedidos pendientes, catálogo %s\n",
			st.Server.TotalProducts, st.Server.PendingOrders, st.Server.LastUpdate)
	}
	if st.ServerError != "" {
		fmt.Printf("Servidor:          %s\n", st.ServerError)
	}

	stats, err := a.images.Size(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Imágenes:          %d (%d KB)\n", stats.Files, stats.Bytes/1024)
	return nil
}

// watchCmd probes connectivity and runs a full sync on every reconnect
// until interrupted
func watchCmd(ctx context.Context, a *app, _ []string) error {
	auto := syncapp.NewAutoSync(a.orch, a.prober, func(r *syncapp.Result) {
		printResult(r)
	}, a.log.Named("autosync"))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return auto.Run(ctx)
	})
	g.Go(func() error {
		// subscribe before the first probe so the initial transition is seen
		select {
		case <-auto.Ready():
		case <-ctx.Done():
			return nil
		}
		return a.prober.Run(ctx)
	})

	a.log.Info("Watching connectivity", zap.String("probe", a.cfg.ProbeTarget()))
	fmt.Println("Esperando cambios de conexión (Ctrl+C para salir)...")
	err := g.Wait()
	fmt.Printf("Sincronizaciones automáticas: %d\n", auto.Runs())
	return err
}

func migrateCmd(ctx context.Context, a *app, args []string) error {
	sub := "up"
	if len(args) > 0 {
		sub = args[0]
	}
	m, err := migration.New(a.store.DB, a.log.Named("migration"))
	if err != nil {
		return err
	}
	defer m.Close()

	switch sub {
	case "up":
		applied, err := m.Up(ctx)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Println("El esquema está al día")
			return nil
		}
		fmt.Printf("Versiones aplicadas: %v\n", applied)
	case "version":
		version, err := m.Version(ctx)
		if err != nil {
			return err
		}
		pending, err := m.Pending(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Versión del esquema: %d (incluida: %d, pendientes: %d)\n", version, migration.CurrentVersion, len(pending))
	default:
		return errUsage
	}
	return nil
}

func productsCmd(ctx context.Context, a *app, args []string) error {
	filter := catalog.ProductFilter{Filter: shared.DefaultFilter(), ActiveOnly: true}
	filter.PageSize = 100
	if len(args) > 0 {
		filter.Search = strings.Join(args, " ")
	}
	products, err := a.store.Products.FindAll(ctx, filter)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		fmt.Println("No hay productos")
		return nil
	}
	for _, p := range products {
		fmt.Printf("%-8s %-12s %-40s %10s  stock %d\n", p.ID, p.SKU, p.Name, p.Price.String(), p.Stock)
	}
	return nil
}

func cartCmd(ctx context.Context, a *app, args []string) error {
	sub := "show"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	var (
		view *cartapp.CartResponse
		err  error
	)
	switch sub {
	case "show":
		view, err = a.cart.View(ctx)
	case "add":
		if len(args) < 2 {
			return errUsage
		}
		qty, perr := strconv.Atoi(args[1])
		if perr != nil {
			return errUsage
		}
		input := cartapp.AddItemInput{ProductID: args[0], Quantity: qty}
		if len(args) > 2 {
			input.ClientID = args[2]
		}
		view, err = a.cart.AddToCart(ctx, input)
	case "set":
		if len(args) != 2 {
			return errUsage
		}
		qty, perr := strconv.Atoi(args[1])
		if perr != nil {
			return errUsage
		}
		view, err = a.cart.SetQuantity(ctx, args[0], qty)
	case "remove":
		if len(args) != 1 {
			return errUsage
		}
		view, err = a.cart.Remove(ctx, args[0])
	case "clear":
		if err := a.cart.Clear(ctx); err != nil {
			return err
		}
		fmt.Println("Carrito vacío")
		return nil
	case "checkout":
		return checkoutCmd(ctx, a, args)
	default:
		return errUsage
	}
	if err != nil {
		return err
	}

	if len(view.Items) == 0 {
		fmt.Println("Carrito vacío")
		return nil
	}
	for _, item := range view.Items {
		fmt.Printf("%-8s %-40s %4d x %10s = %10s\n", item.ProductID, item.Name, item.Quantity, item.UnitPrice.String(), item.LineTotal.String())
	}
	fmt.Printf("Artículos: %d  Subtotal: %s  Impuesto: %s  Total: %s\n",
		view.ItemCount, view.Subtotal.String(), view.Tax.String(), view.Total.String())
	return nil
}

func checkoutCmd(ctx context.Context, a *app, args []string) error {
	var req checkout.CheckoutRequest
	if len(args) > 0 {
		req.ClientID = args[0]
	}
	if len(args) > 1 {
		req.CustomerNote = strings.Join(args[1:], " ")
	}
	res, err := a.checkout.Checkout(ctx, req)
	if res != nil {
		fmt.Printf("Pedido %s guardado (%d artículos, total %s). Se enviará en la próxima sincronización.\n",
			res.OrderID, res.ItemCount, res.Total.String())
	}
	if errors.Is(err, checkout.ErrCartNotCleared) {
		a.log.Warn("Order saved but cart was not cleared", zap.Error(err))
		return nil
	}
	return err
}

func resetCmd(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 || (args[0] != "-confirm" && args[0] != "--confirm") {
		return errors.New("this deletes every local row including unsynced orders; run 'vendorsync reset -confirm'")
	}
	pending, err := a.store.PendingOrders.CountUnsynced(ctx)
	if err != nil {
		return err
	}
	if pending > 0 {
		a.log.Warn("Discarding unsynced orders", zap.Int64("count", pending))
	}
	if err := a.store.Reset(ctx); err != nil {
		return err
	}
	if err := a.images.Clear(ctx); err != nil {
		return err
	}
	fmt.Println("Datos locales eliminados")
	return nil
}
