// Package httpserver exposes the billing engine over HTTP for the
// back-office frontend.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/caribevillas/billing/pkg/billing"
)

// Server is the HTTP façade over the billing service.
type Server struct {
	service *billing.Service
	logger  *zap.Logger
	cfg     Config
}

// New wires a Server.
func New(service *billing.Service, logger *zap.Logger, cfg Config) *Server {
	return &Server{service: service, logger: logger, cfg: cfg}
}

// Router builds the gin engine with auth and CORS applied.
func (server *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if len(server.cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     server.cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(bearerAuth([]byte(server.cfg.TokenSigningKey), server.cfg.TokenIssuer))

	api.POST("/reservations", server.handleCreateReservation)
	api.PATCH("/reservations/:id", server.handleUpdateReservation)
	api.DELETE("/reservations/:id", server.handleDeleteReservation)
	api.POST("/reservations/:id/abonos", server.handleAddReservationAbono)
	api.DELETE("/reservations/:id/abonos/:abonoID", server.handleDeleteReservationAbono)
	api.POST("/expenses/:id/abonos", server.handleAddExpenseAbono)
	api.DELETE("/expenses/:id/abonos/:abonoID", server.handleDeleteExpenseAbono)
	api.GET("/invoice-numbers/next", server.handleAllocateInvoiceNumber)
	api.GET("/invoice-numbers/:number/available", server.handleInvoiceNumberAvailable)

	return router
}

// Run serves until the context is cancelled.
func (server *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    server.cfg.ListenAddr,
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		server.logger.Info("billing api listening", zap.String("addr", server.cfg.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		timeout := server.cfg.ShutdownTimeout
		if timeout == 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			server.logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type serviceLinePayload struct {
	ServiceID    string          `json:"service_id"`
	ServiceName  string          `json:"service_name"`
	SupplierName string          `json:"supplier_name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	SupplierCost decimal.Decimal `json:"supplier_cost"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

type reservationRequest struct {
	ManualInvoiceNumber string               `json:"invoice_number"`
	CustomerID          string               `json:"customer_id"`
	CustomerName        string               `json:"customer_name"`
	VillaID             string               `json:"villa_id"`
	ReservationDate     int64                `json:"reservation_date"`
	Guests              int                  `json:"guests"`
	ExtraHours          decimal.Decimal      `json:"extra_hours"`
	ExtraPeople         int                  `json:"extra_people"`
	BasePrice           decimal.Decimal      `json:"base_price"`
	OwnerPrice          decimal.Decimal      `json:"owner_price"`
	ExtraHoursCost      decimal.Decimal      `json:"extra_hours_cost"`
	ExtraPeopleCost     decimal.Decimal      `json:"extra_people_cost"`
	ExtraServices       []serviceLinePayload `json:"extra_services"`
	Subtotal            decimal.Decimal      `json:"subtotal"`
	Discount            decimal.Decimal      `json:"discount"`
	IncludeITBIS        bool                 `json:"include_itbis"`
	ITBISAmount         decimal.Decimal      `json:"itbis_amount"`
	TotalAmount         decimal.Decimal      `json:"total_amount"`
	Deposit             decimal.Decimal      `json:"deposit"`
	AmountPaid          decimal.Decimal      `json:"amount_paid"`
	Currency            string               `json:"currency"`
	Status              string               `json:"status"`
	Notes               string               `json:"notes"`
}

type reservationPatchRequest struct {
	ReservationDate *int64                `json:"reservation_date"`
	OwnerPrice      *decimal.Decimal      `json:"owner_price"`
	ExtraServices   *[]serviceLinePayload `json:"extra_services"`
	Subtotal        *decimal.Decimal      `json:"subtotal"`
	Discount        *decimal.Decimal      `json:"discount"`
	ITBISAmount     *decimal.Decimal      `json:"itbis_amount"`
	TotalAmount     *decimal.Decimal      `json:"total_amount"`
	Deposit         *decimal.Decimal      `json:"deposit"`
	DepositReturned *bool                 `json:"deposit_returned"`
	AmountPaid      *decimal.Decimal      `json:"amount_paid"`
	Status          *string               `json:"status"`
	Notes           *string               `json:"notes"`
}

type abonoRequest struct {
	Amount              decimal.Decimal `json:"amount"`
	Currency            string          `json:"currency"`
	PaymentMethod       string          `json:"payment_method"`
	PaymentDate         int64           `json:"payment_date"`
	Notes               string          `json:"notes"`
	ManualInvoiceNumber string          `json:"invoice_number"`
}

func (server *Server) handleCreateReservation(ctx *gin.Context) {
	identity, ok := getIdentity(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing identity"))
		return
	}
	var request reservationRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}

	reservation, err := server.service.CreateReservation(ctx.Request.Context(), billing.ReservationInput{
		ManualInvoiceNumber: request.ManualInvoiceNumber,
		CustomerID:          request.CustomerID,
		CustomerName:        request.CustomerName,
		VillaID:             request.VillaID,
		ReservationDate:     request.ReservationDate,
		Guests:              request.Guests,
		ExtraHours:          request.ExtraHours,
		ExtraPeople:         request.ExtraPeople,
		BasePrice:           request.BasePrice,
		OwnerPrice:          request.OwnerPrice,
		ExtraHoursCost:      request.ExtraHoursCost,
		ExtraPeopleCost:     request.ExtraPeopleCost,
		ExtraServices:       toServiceLines(request.ExtraServices),
		Subtotal:            request.Subtotal,
		Discount:            request.Discount,
		IncludeITBIS:        request.IncludeITBIS,
		ITBISAmount:         request.ITBISAmount,
		TotalAmount:         request.TotalAmount,
		Deposit:             request.Deposit,
		AmountPaid:          request.AmountPaid,
		Currency:            request.Currency,
		Status:              request.Status,
		Notes:               request.Notes,
	}, identity)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, reservationPayload(reservation))
}

func (server *Server) handleUpdateReservation(ctx *gin.Context) {
	identity, ok := getIdentity(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing identity"))
		return
	}
	var request reservationPatchRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}

	patch := billing.ReservationPatch{
		ReservationDate: request.ReservationDate,
		OwnerPrice:      request.OwnerPrice,
		Subtotal:        request.Subtotal,
		Discount:        request.Discount,
		ITBISAmount:     request.ITBISAmount,
		TotalAmount:     request.TotalAmount,
		Deposit:         request.Deposit,
		DepositReturned: request.DepositReturned,
		AmountPaid:      request.AmountPaid,
		Status:          request.Status,
		Notes:           request.Notes,
	}
	if request.ExtraServices != nil {
		lines := toServiceLines(*request.ExtraServices)
		patch.ExtraServices = &lines
	}

	reservation, err := server.service.UpdateReservation(ctx.Request.Context(), ctx.Param("id"), patch, identity)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, reservationPayload(reservation))
}

func (server *Server) handleDeleteReservation(ctx *gin.Context) {
	if err := server.service.DeleteReservation(ctx.Request.Context(), ctx.Param("id")); err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (server *Server) handleAddReservationAbono(ctx *gin.Context) {
	server.handleAddAbono(ctx, billing.TargetReservation)
}

func (server *Server) handleAddExpenseAbono(ctx *gin.Context) {
	server.handleAddAbono(ctx, billing.TargetExpense)
}

func (server *Server) handleAddAbono(ctx *gin.Context, target billing.AbonoTarget) {
	identity, ok := getIdentity(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing identity"))
		return
	}
	var request abonoRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}

	abono, err := server.service.AddAbono(ctx.Request.Context(), target, ctx.Param("id"), billing.AbonoInput{
		Amount:              request.Amount,
		Currency:            request.Currency,
		PaymentMethod:       request.PaymentMethod,
		PaymentDate:         request.PaymentDate,
		Notes:               request.Notes,
		ManualInvoiceNumber: request.ManualInvoiceNumber,
	}, identity)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, abonoPayload(abono))
}

func (server *Server) handleDeleteReservationAbono(ctx *gin.Context) {
	server.handleDeleteAbono(ctx, billing.TargetReservation)
}

func (server *Server) handleDeleteExpenseAbono(ctx *gin.Context) {
	server.handleDeleteAbono(ctx, billing.TargetExpense)
}

func (server *Server) handleDeleteAbono(ctx *gin.Context, target billing.AbonoTarget) {
	err := server.service.DeleteAbono(ctx.Request.Context(), target, ctx.Param("id"), ctx.Param("abonoID"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (server *Server) handleAllocateInvoiceNumber(ctx *gin.Context) {
	identity, ok := getIdentity(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing identity"))
		return
	}
	number, err := server.service.AllocateInvoiceNumber(ctx.Request.Context(), ctx.Query("manual"), identity)
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"invoice_number": number})
}

func (server *Server) handleInvoiceNumberAvailable(ctx *gin.Context) {
	available, err := server.service.IsInvoiceNumberAvailable(ctx.Request.Context(), ctx.Param("number"))
	if err != nil {
		server.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"invoice_number": ctx.Param("number"), "available": available})
}

// respondError maps domain errors onto HTTP statuses.
func (server *Server) respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, billing.ErrReservationNotFound),
		errors.Is(err, billing.ErrExpenseNotFound),
		errors.Is(err, billing.ErrAbonoNotFound),
		errors.Is(err, billing.ErrVillaNotFound):
		ctx.JSON(http.StatusNotFound, errorResponse("not_found", err.Error()))
	case errors.Is(err, billing.ErrInvoiceNumberTaken):
		ctx.JSON(http.StatusConflict, errorResponse("invoice_number_taken", err.Error()))
	case errors.Is(err, billing.ErrManualNumberForbidden):
		ctx.JSON(http.StatusForbidden, errorResponse("forbidden", err.Error()))
	case errors.Is(err, billing.ErrInvalidInvoiceNumber),
		errors.Is(err, billing.ErrInvalidAmount),
		errors.Is(err, billing.ErrInvalidCurrency),
		errors.Is(err, billing.ErrInvalidReservation),
		errors.Is(err, billing.ErrInvalidReservationStatus),
		errors.Is(err, billing.ErrInvalidCategory),
		errors.Is(err, billing.ErrInvalidTarget):
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_request", err.Error()))
	default:
		server.logger.Error("billing request failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal_error", "operation failed"))
	}
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

func toServiceLines(payloads []serviceLinePayload) []billing.ServiceLine {
	if payloads == nil {
		return nil
	}
	lines := make([]billing.ServiceLine, 0, len(payloads))
	for _, payload := range payloads {
		lines = append(lines, billing.ServiceLine(payload))
	}
	return lines
}

func fromServiceLines(lines []billing.ServiceLine) []serviceLinePayload {
	payloads := make([]serviceLinePayload, 0, len(lines))
	for _, line := range lines {
		payloads = append(payloads, serviceLinePayload(line))
	}
	return payloads
}

func reservationPayload(reservation billing.Reservation) gin.H {
	return gin.H{
		"id":               reservation.ID,
		"invoice_number":   reservation.InvoiceNumber,
		"customer_id":      reservation.CustomerID,
		"customer_name":    reservation.CustomerName,
		"villa_id":         reservation.VillaID,
		"reservation_date": reservation.ReservationDate,
		"guests":           reservation.Guests,
		"extra_services":   fromServiceLines(reservation.ExtraServices),
		"owner_price":      reservation.OwnerPrice,
		"subtotal":         reservation.Subtotal,
		"discount":         reservation.Discount,
		"include_itbis":    reservation.IncludeITBIS,
		"itbis_amount":     reservation.ITBISAmount,
		"total_amount":     reservation.TotalAmount,
		"deposit":          reservation.Deposit,
		"deposit_returned": reservation.DepositReturned,
		"amount_paid":      reservation.AmountPaid,
		"balance_due":      reservation.BalanceDue,
		"currency":         reservation.Currency.String(),
		"status":           reservation.Status.String(),
		"notes":            reservation.Notes,
	}
}

func abonoPayload(abono billing.Abono) gin.H {
	payload := gin.H{
		"id":             abono.ID,
		"invoice_number": abono.InvoiceNumber,
		"amount":         abono.Amount,
		"currency":       abono.Currency.String(),
		"payment_method": abono.PaymentMethod,
		"payment_date":   abono.PaymentDate,
		"notes":          abono.Notes,
	}
	if abono.ReservationID != "" {
		payload["reservation_id"] = abono.ReservationID
	}
	if abono.ExpenseID != "" {
		payload["expense_id"] = abono.ExpenseID
	}
	return payload
}
