package main

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/toko-storefront/internal/app"
	"github.com/noah-isme/toko-storefront/internal/audit"
	"github.com/noah-isme/toko-storefront/internal/auth"
	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/checkout"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/events"
	"github.com/noah-isme/toko-storefront/internal/health"
	"github.com/noah-isme/toko-storefront/internal/lock"
	"github.com/noah-isme/toko-storefront/internal/notify"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/order"
	"github.com/noah-isme/toko-storefront/internal/ratelimit"
	"github.com/noah-isme/toko-storefront/internal/security"
	"github.com/noah-isme/toko-storefront/internal/user"
)

func newRouter(ctx context.Context, deps *app.Dependencies, tracingEnabled bool) (http.Handler, error) {
	cfg := deps.Config
	logger := deps.Logger
	queries := deps.Queries

	productCache := catalog.NewCache(deps.Redis, cfg.ProductCacheTTL)
	lookup := catalog.NewLookup(queries, productCache, logger)
	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Queries:      queries,
		Cache:        productCache,
		DefaultLimit: cfg.CatalogDefaultLimit,
		MaxLimit:     cfg.CatalogMaxLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("catalog service: %w", err)
	}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogService})

	auditService := &audit.Service{Store: queries, Enabled: cfg.AuditEnabled, SamplingRate: cfg.AuditSamplingRate}
	auditRecorder := audit.HTTPRecorder{Service: auditService, Logger: logger}
	catalogAdmin := &catalog.AdminHandler{
		Service: &catalog.AdminService{Queries: queries, Lookup: lookup, Cache: productCache},
		Audit:   auditService,
	}

	cartStore, err := deps.CartStore(ctx)
	if err != nil {
		return nil, err
	}
	cartService := &cart.Service{
		Store:             cartStore,
		Products:          lookup,
		MaxQuantity:       cfg.CartMaxLineQty,
		LookupConcurrency: cfg.LookupConcurrency,
		Logger:            &logger,
	}
	cartCookie := cart.CookieConfig{
		Name:     cfg.CartCookieName,
		TTL:      cfg.CartCookieTTL,
		Domain:   cfg.CookieDomain,
		Secure:   cfg.CookieSecure,
		SameSite: cfg.CookieSameSite,
	}
	cartMiddleware := cart.Middleware{Service: cartService, Cookie: cartCookie, Logger: &logger}
	cartHandler := cart.NewHandler(cart.HandlerConfig{Service: cartService})

	bus := &events.Bus{
		Store: queries,
		Notifiers: []events.Notifier{
			notify.TaskNotifier{Client: deps.Tasks, Queue: "notifications", MaxRetry: 8},
		},
	}
	locker := lock.Locker{R: deps.Redis, RetryBackoff: cfg.LockRetryBackoff, MaxWait: cfg.CheckoutLockTTL}
	orderService := order.NewService(queries, lookup, bus, &logger)
	orderService.LookupConcurrency = cfg.LookupConcurrency
	checkoutHandler := &checkout.Handler{
		Svc: &checkout.Service{
			Carts:             cartStore,
			Products:          lookup,
			Orders:            checkout.PGOrderWriter{Pool: deps.DB},
			Lock:              locker,
			LockTTL:           cfg.CheckoutLockTTL,
			Events:            bus,
			Users:             queries,
			LookupConcurrency: cfg.LookupConcurrency,
			Logger:            &logger,
		},
		Orders: orderService,
	}
	orderHandler := &order.Handler{Service: orderService}
	orderAdmin := &order.AdminHandler{Service: orderService}

	authService, err := auth.NewService(auth.Config{
		Queries:        queries,
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}
	shopperAuth := &auth.Handler{
		Service:          authService,
		AccessCookieName: cfg.UserCookieName,
		CookieDomain:     cfg.CookieDomain,
		CookieSecure:     cfg.CookieSecure,
		CookieSameSite:   cfg.CookieSameSite,
		Carts:            cartService,
		CartCookie:       cartCookie,
		Logger:           &logger,
	}
	adminAuth := &auth.Handler{
		Service:          authService,
		AccessCookieName: cfg.AdminCookieName,
		CookieDomain:     cfg.CookieDomain,
		CookieSecure:     cfg.CookieSecure,
		CookieSameSite:   cfg.CookieSameSite,
		RequiredRole:     auth.RoleAdmin,
	}
	shopperMW := auth.Middleware{Service: authService, AccessCookie: cfg.UserCookieName}
	adminMW := auth.Middleware{Service: authService, AccessCookie: cfg.AdminCookieName}
	profileHandler := &user.Handler{Service: user.NewService(queries)}
	accountAdmin := &auth.AccountHandler{
		Accounts: &auth.AccountService{Queries: queries},
		Audit:    auditService,
	}

	cartLimiter, err := ratelimit.NewFixedWindow(deps.Redis, "rl:cart", cfg.RateLimitCart)
	if err != nil {
		return nil, err
	}
	onLimiterError := func(err error) { logger.Warn().Err(err).Msg("rate_limiter_unavailable") }
	cartLimit := ratelimit.Handler{Limiter: cartLimiter, Key: ratelimit.ByCartOrIP("cart"), OnError: onLimiterError}
	loginLimit := ratelimit.Handler{
		Limiter: ratelimit.SlidingWindow{Client: deps.Redis, Prefix: "rl:login", Window: cfg.RateLimitLoginWindow, Max: cfg.RateLimitLoginMax},
		Key:     ratelimit.ByClientIP("login"),
		OnError: onLimiterError,
	}

	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL, Scope: shopperScope}
	csrf := security.CSRF{Enabled: cfg.CSRFEnabled}
	healthHandler := health.Handler{Probes: deps.Probes()}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	r.Use(obs.HTTPObs{Metrics: obs.NewHTTPMetrics(cfg.MetricsNamespace, nil, nil)}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger, CartCookie: cfg.CartCookieName}.Middleware)
	r.Use(security.CORS(strings.Join(cfg.CORSAllowedOrigins, ",")))
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.CookieSecure, HSTSMaxAge: 31536000}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	r.Handle("/metrics", promhttp.Handler())
	if cfg.PprofEnabled {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.PprofUser, cfg.PprofPass))
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/home", catalogHandler.Home)
		v.Get("/categories", catalogHandler.Categories)
		v.Get("/products", catalogHandler.Products)
		v.Get("/products/{slug}", catalogHandler.ProductDetail)

		// Storefront: optional shopper identity, cart cookie bootstrap, CSRF on mutations.
		v.Group(func(s chi.Router) {
			s.Use(shopperMW.Authenticate)
			s.Use(cartMiddleware.Handler)
			s.Use(csrf.Middleware)

			s.Route("/cart", func(c chi.Router) {
				c.Use(security.NoStore)
				c.Get("/", cartHandler.View)
				c.Get("/count", cartHandler.Count)
				c.Group(func(m chi.Router) {
					m.Use(cartLimit.Middleware)
					m.Post("/items", cartHandler.AddItem)
					m.Patch("/items/{productId}", cartHandler.UpdateItem)
					m.Delete("/items/{productId}", cartHandler.RemoveItem)
				})
			})

			s.Route("/checkout", func(c chi.Router) {
				c.Use(security.NoStore)
				c.Get("/", checkoutHandler.Preview)
				c.With(idem.Middleware).Post("/", checkoutHandler.Checkout)
				c.Get("/success/{orderId}", checkoutHandler.Success)
			})

			s.Route("/auth", func(a chi.Router) {
				a.Post("/register", shopperAuth.Register)
				a.With(loginLimit.Middleware).Post("/login", shopperAuth.Login)
				a.Post("/logout", shopperAuth.Logout)
				a.With(shopperMW.RequireAuth).Get("/me", shopperAuth.Me)
			})

			s.Group(func(acct chi.Router) {
				acct.Use(shopperMW.RequireAuth)
				acct.Get("/users/me", profileHandler.Get)
				acct.Patch("/users/me", profileHandler.Update)
				acct.Get("/account/orders", orderHandler.List)
				acct.Get("/account/orders/{orderId}", orderHandler.Get)
				acct.Post("/account/orders/{orderId}/cancel", orderHandler.Cancel)
			})
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(csrf.Middleware)
			admin.With(loginLimit.Middleware).Post("/auth/login", adminAuth.Login)
			admin.Post("/auth/logout", adminAuth.Logout)

			admin.Group(func(g chi.Router) {
				g.Use(adminMW.RequireRole(auth.RoleAdmin))
				g.Use(security.NoStore)
				g.Get("/auth/me", adminAuth.Me)

				g.Get("/products", catalogAdmin.List)
				g.Post("/products", catalogAdmin.Create)
				g.Get("/products/trash", catalogAdmin.Trash)
				g.Patch("/products/change-multi", catalogAdmin.ChangeMulti)
				g.Get("/products/{id}", catalogAdmin.Detail)
				g.Put("/products/{id}", catalogAdmin.Update)
				g.Patch("/products/{id}/status/{status}", catalogAdmin.ChangeStatus)
				g.Delete("/products/{id}", catalogAdmin.Delete)
				g.Patch("/products/{id}/restore", catalogAdmin.Restore)
				g.Get("/categories", catalogAdmin.Categories)
				g.Post("/categories", catalogAdmin.CreateCategory)

				g.Get("/orders", orderAdmin.List)
				g.Get("/orders/{id}", orderAdmin.Get)
				g.With(auditRecorder.Middleware(audit.HTTPConfig{
					Action:          "order.status",
					ResourceType:    "order",
					ResourceIDParam: "id",
				})).Patch("/orders/{id}/status", orderAdmin.PatchStatus)

				g.Get("/accounts", accountAdmin.List)
				g.Post("/accounts", accountAdmin.Create)
				g.Get("/accounts/roles", accountAdmin.Roles)
				g.Get("/accounts/{id}", accountAdmin.Get)
				g.Patch("/accounts/{id}", accountAdmin.Update)
				g.Patch("/accounts/{id}/status", accountAdmin.ChangeStatus)

				g.Get("/audit-logs", audit.Handler{Store: queries}.List)
			})
		})
	})

	return otelhttp.NewHandler(r, "toko-api"), nil
}

// shopperScope partitions idempotency keys by account, or by cart for guests.
func shopperScope(r *http.Request) string {
	if id, ok := common.UserID(r.Context()); ok {
		return "user:" + id
	}
	if id, ok := common.CartID(r.Context()); ok {
		return "cart:" + id
	}
	return "ip:" + common.ClientIP(r)
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
