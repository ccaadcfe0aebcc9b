package api

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/erazemk/knjiznica/internal/lending"
	"github.com/erazemk/knjiznica/internal/model"
)

// NewRouter creates the API router with all endpoints registered.
// /metrics is served only when exposeMetrics is set.
func NewRouter(db *sql.DB, jwtSecret string, svc *lending.Service, exposeMetrics bool) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret, Lending: svc}
	usersHandler := &UsersHandler{DB: db}
	membersHandler := &MembersHandler{DB: db, Lending: svc}
	authorsHandler := &AuthorsHandler{DB: db}
	categoriesHandler := &CategoriesHandler{DB: db}
	booksHandler := &BooksHandler{DB: db}
	loansHandler := &LoansHandler{Lending: svc}
	finesHandler := &FinesHandler{Lending: svc}
	notificationsHandler := &NotificationsHandler{Lending: svc}
	reportsHandler := &ReportsHandler{DB: db}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireMember := RequireRole(model.RoleMember)

	// authed wraps h for any signed-in user, admin for admins only.
	authed := func(h http.HandlerFunc) http.Handler { return authMW(requireMember(h)) }
	admin := func(h http.HandlerFunc) http.Handler { return authMW(requireAdmin(h)) }

	// Public.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)

	// Own account.
	mux.Handle("POST /api/auth/logout", authed(authHandler.Logout))
	mux.Handle("GET /api/auth/me", authed(authHandler.Me))
	mux.Handle("PUT /api/auth/me", authed(authHandler.UpdateMe))
	mux.Handle("PUT /api/auth/password", authed(authHandler.ChangePassword))

	// Users (admin only).
	mux.Handle("GET /api/users", admin(usersHandler.List))
	mux.Handle("POST /api/users", admin(usersHandler.Create))
	mux.Handle("GET /api/users/{id}", admin(usersHandler.Get))
	mux.Handle("PUT /api/users/{id}", admin(usersHandler.Update))
	mux.Handle("PUT /api/users/{id}/password", admin(usersHandler.ResetPassword))
	mux.Handle("DELETE /api/users/{id}", admin(usersHandler.Delete))

	// Members: own profile for members, management for admins.
	mux.Handle("GET /api/members/me", authed(membersHandler.Me))
	mux.Handle("PUT /api/members/me", authed(membersHandler.UpdateMe))
	mux.Handle("GET /api/members/me/stats", authed(membersHandler.MyStats))
	mux.Handle("GET /api/members/me/preferences", authed(membersHandler.Preferences))
	mux.Handle("PUT /api/members/me/preferences", authed(membersHandler.UpdatePreferences))
	mux.Handle("GET /api/members", admin(membersHandler.List))
	mux.Handle("POST /api/members", admin(membersHandler.Create))
	mux.Handle("GET /api/members/{id}", admin(membersHandler.Get))
	mux.Handle("PUT /api/members/{id}", admin(membersHandler.Update))
	mux.Handle("DELETE /api/members/{id}", admin(membersHandler.Delete))
	mux.Handle("GET /api/members/{id}/stats", admin(membersHandler.Stats))

	// Catalog: read (all), write (admin).
	mux.Handle("GET /api/authors", authed(authorsHandler.List))
	mux.Handle("POST /api/authors", admin(authorsHandler.Create))
	mux.Handle("GET /api/authors/{id}", authed(authorsHandler.Get))
	mux.Handle("PUT /api/authors/{id}", admin(authorsHandler.Update))
	mux.Handle("DELETE /api/authors/{id}", admin(authorsHandler.Delete))

	mux.Handle("GET /api/categories", authed(categoriesHandler.List))
	mux.Handle("POST /api/categories", admin(categoriesHandler.Create))
	mux.Handle("GET /api/categories/{id}", authed(categoriesHandler.Get))
	mux.Handle("PUT /api/categories/{id}", admin(categoriesHandler.Update))
	mux.Handle("DELETE /api/categories/{id}", admin(categoriesHandler.Delete))

	mux.Handle("GET /api/books", authed(booksHandler.List))
	mux.Handle("POST /api/books", admin(booksHandler.Create))
	mux.Handle("GET /api/books/{id}", authed(booksHandler.Get))
	mux.Handle("PUT /api/books/{id}", admin(booksHandler.Update))
	mux.Handle("DELETE /api/books/{id}", admin(booksHandler.Delete))
	mux.Handle("PUT /api/books/{id}/cover", admin(booksHandler.UploadCover))
	mux.Handle("GET /api/books/{id}/cover", authed(booksHandler.GetCover))

	// Loans. The engine enforces ownership and admin-only transitions.
	mux.Handle("GET /api/loans", authed(loansHandler.List))
	mux.Handle("POST /api/loans", admin(loansHandler.Grant))
	mux.Handle("POST /api/loans/request", authed(loansHandler.Request))
	mux.Handle("GET /api/loans/{id}", authed(loansHandler.Get))
	mux.Handle("DELETE /api/loans/{id}", admin(loansHandler.Delete))
	mux.Handle("POST /api/loans/{id}/approve", admin(loansHandler.Approve))
	mux.Handle("POST /api/loans/{id}/reject", admin(loansHandler.Reject))
	mux.Handle("POST /api/loans/{id}/return", authed(loansHandler.Return))
	mux.Handle("POST /api/loans/{id}/extend", admin(loansHandler.Extend))
	mux.Handle("GET /api/loans/{id}/fine", authed(loansHandler.CalculateFine))

	// Fines.
	mux.Handle("GET /api/fines", authed(finesHandler.List))
	mux.Handle("POST /api/fines", admin(finesHandler.Create))
	mux.Handle("GET /api/fines/unpaid", authed(finesHandler.Unpaid))
	mux.Handle("GET /api/fines/{id}", authed(finesHandler.Get))
	mux.Handle("PUT /api/fines/{id}", admin(finesHandler.Update))
	mux.Handle("DELETE /api/fines/{id}", admin(finesHandler.Delete))
	mux.Handle("POST /api/fines/{id}/pay", admin(finesHandler.Pay))

	// Notifications.
	mux.Handle("GET /api/notifications/near-due", authed(notificationsHandler.NearDue))
	mux.Handle("GET /api/notifications/overdue", authed(notificationsHandler.Overdue))
	mux.Handle("GET /api/notifications/summary", authed(notificationsHandler.Summary))
	mux.Handle("GET /api/notifications/near-due/members", admin(notificationsHandler.NearDueByMember))
	mux.Handle("GET /api/notifications/overdue/members", admin(notificationsHandler.OverdueByMember))

	// Reports (admin only).
	mux.Handle("GET /api/reports/loans", admin(reportsHandler.LoanStatistics))
	mux.Handle("GET /api/reports/most-borrowed", admin(reportsHandler.MostBorrowed))
	mux.Handle("GET /api/reports/most-active", admin(reportsHandler.MostActive))
	mux.Handle("GET /api/reports/fines", admin(reportsHandler.Fines))
	mux.Handle("GET /api/reports/inventory", admin(reportsHandler.Inventory))

	if exposeMetrics {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return chi.Chain(
		middleware.RequestID,
		middleware.RealIP,
		LoggingMiddleware,
		middleware.Recoverer,
	).Handler(mux)
}
