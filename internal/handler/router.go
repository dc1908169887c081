package handler

import "github.com/gin-gonic/gin"

// Handlers groups every API handler. Reports may be nil when report
// generation is disabled.
type Handlers struct {
	Students *StudentHandler
	Payments *PaymentHandler
	Receipts *ReceiptHandler
	Summary  *SummaryHandler
	Reports  *ReportHandler
	Imports  *ImportHandler
	Backups  *BackupHandler
}

// Register mounts the API routes on api.
func (h Handlers) Register(api *gin.RouterGroup) {
	students := api.Group("/students")
	students.GET("", h.Students.List)
	students.POST("", h.Students.Create)
	students.POST("/import", h.Imports.Students)
	students.GET("/:id", h.Students.Get)
	students.PUT("/:id", h.Students.Update)
	students.DELETE("/:id", h.Students.Delete)
	students.GET("/:id/fees", h.Students.Fees)
	students.GET("/:id/payments", h.Students.Payments)
	students.POST("/:id/receipts/latest", h.Receipts.Latest)

	payments := api.Group("/payments")
	payments.POST("", h.Payments.Create)
	payments.GET("/recent", h.Payments.Recent)
	payments.GET("/history", h.Payments.History)
	payments.GET("/:id", h.Payments.Get)
	payments.DELETE("/:id", h.Payments.Delete)
	payments.POST("/:id/receipt", h.Receipts.ForPayment)

	api.GET("/receipts/download/:token", h.Receipts.Download)

	api.GET("/summary", h.Summary.Totals)
	api.GET("/summary/outstanding", h.Summary.Outstanding)

	if h.Reports != nil {
		reports := api.Group("/reports")
		reports.POST("/generate", h.Reports.GenerateReport)
		reports.GET("/status/:id", h.Reports.ReportStatus)
		reports.GET("/download/:token", h.Reports.DownloadReport)
	}

	api.POST("/backups", h.Backups.Create)
}
