package reports

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/retailcore/retailpos-backend/pkg/database"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

type ReportRequest struct {
	StartDate string `form:"start_date"` // Format: 2024-01-01
	EndDate   string `form:"end_date"`   // Format: 2024-01-31
	BranchID  string `form:"branch_id"`  // Optional branch filter
}

type DailySales struct {
	Date  string          `json:"date"`
	Sales decimal.Decimal `json:"sales"`
	Count int             `json:"count"`
}

type SalesReport struct {
	StartDate      string          `json:"start_date"`
	EndDate        string          `json:"end_date"`
	TotalSales     decimal.Decimal `json:"total_sales"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	GrossProfit    decimal.Decimal `json:"gross_profit"`
	TotalTax       decimal.Decimal `json:"total_tax"`
	TotalSaleCount int             `json:"total_sale_count"`
	TotalItemsSold int             `json:"total_items_sold"`
	AveragePerSale decimal.Decimal `json:"average_per_sale"`
	DailySales     []DailySales    `json:"daily_sales"`
}

// dateRange parses the requested window, defaulting to the current month.
func dateRange(req ReportRequest) (time.Time, time.Time) {
	now := time.Now()
	startDate := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	endDate := time.Date(now.Year(), now.Month()+1, 0, 23, 59, 59, 0, now.Location())

	if req.StartDate != "" {
		if parsed, err := time.Parse("2006-01-02", req.StartDate); err == nil {
			startDate = parsed
		}
	}
	if req.EndDate != "" {
		if parsed, err := time.Parse("2006-01-02", req.EndDate); err == nil {
			endDate = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 23, 59, 59, 0, parsed.Location())
		}
	}
	return startDate, endDate
}

func (h *Handler) buildSalesReport(req ReportRequest) SalesReport {
	startDate, endDate := dateRange(req)

	var report SalesReport
	report.StartDate = startDate.Format("2006-01-02")
	report.EndDate = endDate.Format("2006-01-02")

	var totals struct {
		Sales decimal.Decimal
		Tax   decimal.Decimal
		Count int64
	}
	totalsQuery := h.db.Model(&database.Sale{}).
		Select("COALESCE(SUM(total_amount), 0) as sales, COALESCE(SUM(tax_amount), 0) as tax, COUNT(*) as count").
		Where("created_at >= ? AND created_at <= ? AND status = ?", startDate, endDate, database.SaleStatusCompleted)
	if req.BranchID != "" {
		totalsQuery = totalsQuery.Where("branch_id = ?", req.BranchID)
	}
	totalsQuery.Scan(&totals)

	report.TotalSales = totals.Sales
	report.TotalTax = totals.Tax
	report.TotalSaleCount = int(totals.Count)
	if report.TotalSaleCount > 0 {
		report.AveragePerSale = report.TotalSales.Div(decimal.NewFromInt(totals.Count)).Round(2)
	}

	var itemTotals struct {
		Qty  int64
		Cost decimal.Decimal
	}
	itemsQuery := h.db.Model(&database.SaleItem{}).
		Select("COALESCE(SUM(sale_items.quantity), 0) as qty, COALESCE(SUM(products.cost * sale_items.quantity), 0) as cost").
		Joins("JOIN sales ON sale_items.sale_id = sales.id").
		Joins("JOIN products ON sale_items.product_id = products.id").
		Where("sales.created_at >= ? AND sales.created_at <= ? AND sales.status = ?", startDate, endDate, database.SaleStatusCompleted)
	if req.BranchID != "" {
		itemsQuery = itemsQuery.Where("sales.branch_id = ?", req.BranchID)
	}
	itemsQuery.Scan(&itemTotals)

	report.TotalItemsSold = int(itemTotals.Qty)
	report.TotalCost = itemTotals.Cost
	report.GrossProfit = report.TotalSales.Sub(report.TotalCost)

	dailyQuery := h.db.Model(&database.Sale{}).
		Select("DATE(created_at) as date, COALESCE(SUM(total_amount), 0) as sales, COUNT(*) as count").
		Where("created_at >= ? AND created_at <= ? AND status = ?", startDate, endDate, database.SaleStatusCompleted)
	if req.BranchID != "" {
		dailyQuery = dailyQuery.Where("branch_id = ?", req.BranchID)
	}

	rows, _ := dailyQuery.Group("DATE(created_at)").Order("date ASC").Rows()
	if rows != nil {
		defer rows.Close()
		for rows.Next() {
			var daily DailySales
			rows.Scan(&daily.Date, &daily.Sales, &daily.Count)
			report.DailySales = append(report.DailySales, daily)
		}
	}

	return report
}

// GetSalesReport returns sales totals and a daily breakdown for a date range.
func (h *Handler) GetSalesReport(c *gin.Context) {
	var req ReportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": h.buildSalesReport(req)})
}

type ProductSalesReport struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	SKU         string          `json:"sku"`
	TotalQty    int             `json:"total_qty"`
	TotalSales  decimal.Decimal `json:"total_sales"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	Profit      decimal.Decimal `json:"profit"`
}

func (h *Handler) buildProductReport(req ReportRequest) []ProductSalesReport {
	startDate, endDate := dateRange(req)

	type productRow struct {
		ProductID   string
		ProductName string
		SKU         string
		TotalQty    int
		TotalSales  decimal.Decimal
		Cost        decimal.Decimal
	}

	var items []productRow
	productQuery := h.db.Model(&database.SaleItem{}).
		Select(`
			sale_items.product_id,
			sale_items.product_name,
			sale_items.product_sku as sku,
			SUM(sale_items.quantity) as total_qty,
			SUM(sale_items.subtotal) as total_sales,
			products.cost
		`).
		Joins("JOIN sales ON sale_items.sale_id = sales.id").
		Joins("JOIN products ON sale_items.product_id = products.id").
		Where("sales.created_at >= ? AND sales.created_at <= ? AND sales.status = ?", startDate, endDate, database.SaleStatusCompleted)
	if req.BranchID != "" {
		productQuery = productQuery.Where("sales.branch_id = ?", req.BranchID)
	}
	productQuery.Group("sale_items.product_id, sale_items.product_name, sale_items.product_sku, products.cost").
		Order("total_sales DESC").
		Scan(&items)

	products := make([]ProductSalesReport, 0, len(items))
	for _, item := range items {
		totalCost := item.Cost.Mul(decimal.NewFromInt(int64(item.TotalQty)))
		products = append(products, ProductSalesReport{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			SKU:         item.SKU,
			TotalQty:    item.TotalQty,
			TotalSales:  item.TotalSales,
			TotalCost:   totalCost,
			Profit:      item.TotalSales.Sub(totalCost),
		})
	}
	return products
}

// GetProductSalesReport returns sales grouped by product.
func (h *Handler) GetProductSalesReport(c *gin.Context) {
	var req ReportRequest
	c.ShouldBindQuery(&req)

	c.JSON(http.StatusOK, gin.H{"data": h.buildProductReport(req)})
}

// ExportSalesReport writes the sales and product reports as an .xlsx download.
func (h *Handler) ExportSalesReport(c *gin.Context) {
	var req ReportRequest
	c.ShouldBindQuery(&req)

	report := h.buildSalesReport(req)
	products := h.buildProductReport(req)

	f := excelize.NewFile()
	defer f.Close()

	setRow := func(sheet string, row int, values ...interface{}) {
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheet, cell, value)
		}
	}

	summary := "Summary"
	f.SetSheetName("Sheet1", summary)
	setRow(summary, 1, "Sales Report", report.StartDate+" to "+report.EndDate)
	setRow(summary, 3, "Total Sales", report.TotalSales.InexactFloat64())
	setRow(summary, 4, "Total Cost", report.TotalCost.InexactFloat64())
	setRow(summary, 5, "Gross Profit", report.GrossProfit.InexactFloat64())
	setRow(summary, 6, "Total Tax", report.TotalTax.InexactFloat64())
	setRow(summary, 7, "Sale Count", report.TotalSaleCount)
	setRow(summary, 8, "Items Sold", report.TotalItemsSold)
	setRow(summary, 9, "Average per Sale", report.AveragePerSale.InexactFloat64())

	setRow(summary, 11, "Date", "Sales", "Count")
	for i, daily := range report.DailySales {
		setRow(summary, 12+i, daily.Date, daily.Sales.InexactFloat64(), daily.Count)
	}
	f.SetColWidth(summary, "A", "A", 20)
	f.SetColWidth(summary, "B", "C", 14)

	bySheet := "By Product"
	f.NewSheet(bySheet)
	setRow(bySheet, 1, "Product", "SKU", "Qty", "Sales", "Cost", "Profit")
	for i, p := range products {
		setRow(bySheet, 2+i, p.ProductName, p.SKU,
			p.TotalQty, p.TotalSales.InexactFloat64(), p.TotalCost.InexactFloat64(), p.Profit.InexactFloat64())
	}
	f.SetColWidth(bySheet, "A", "A", 28)
	f.SetColWidth(bySheet, "B", "F", 14)

	filename := fmt.Sprintf("sales_report_%s_%s.xlsx", report.StartDate, report.EndDate)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+filename)

	if err := f.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate report"})
		return
	}
}
