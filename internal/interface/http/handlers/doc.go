// Package handlers contains HTTP handler interfaces, implementations, and middleware.
//
// This package provides:
//   - Health check interfaces and implementations
//   - Bearer token verification for user routes
//   - Admin key verification for maintenance routes
//   - Reusable middleware components
//
// # Health Checks
//
// The HealthChecker interface allows registering multiple named health checks
// that are executed in parallel:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("database", handlers.NewDatabaseCheck(db))
//	checker.AddCheck("cache", handlers.NewCacheCheck(cache))
//
//	status := checker.Check(ctx)
//	if !status.Healthy {
//	    log.Printf("Health check failed: %s", status.Message)
//	}
//
// The aggregated HealthStatus carries a top-level "status" string because
// sync agents decide online/offline by probing it.
//
// # Authentication
//
// User routes are authenticated with HS256 Bearer tokens minted by the
// agent from a shared secret. The verifier only checks signature, expiry
// and the presence of a subject; matching the subject against the URL is
// the server's job because it owns the routing:
//
//	verifier := handlers.NewTokenVerifier(secret)
//	claims, err := verifier.Verify(rawToken)
//
// Maintenance routes use a single admin key, stored server-side only as
// a bcrypt hash:
//
//	admin := handlers.NewAdminKeyAuth(hash)
//	err := admin.Verify(r.Header.Get(handlers.AdminKeyHeader))
//
// # Middleware
//
// The package provides reusable middleware components:
//
//	// Security headers
//	secure := handlers.SecurityHeadersMiddleware(myHandler)
//
//	// Chain multiple middleware
//	handler := handlers.ChainHandler(
//	    myHandler,
//	    handlers.SecurityHeadersMiddleware,
//	    handlers.RequestSizeLimitMiddleware(1<<20),
//	)
//
// # Best Practices
//
// When implementing health checks:
//   - Use timeouts to prevent slow checks from blocking the response
//   - Include critical dependencies like database and cache
//   - Keep checks fast (< 1 second ideally)
//   - Return detailed information for debugging
//
// When using middleware:
//   - Apply security middleware early in the chain
//   - Apply authentication before authorization
//   - Use request size limits to prevent DoS attacks
package handlers
