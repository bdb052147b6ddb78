package inventory

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/retailcore/retailpos-backend/pkg/database"
)

type ImportHandler struct {
	db *gorm.DB
}

func NewImportHandler(db *gorm.DB) *ImportHandler {
	return &ImportHandler{db: db}
}

type ImportResult struct {
	TotalRows    int      `json:"total_rows"`
	SuccessCount int      `json:"success_count"`
	FailedCount  int      `json:"failed_count"`
	Errors       []string `json:"errors"`
}

type ImportRow struct {
	ProductName  string
	SKU          string
	Quantity     int
	MinimumStock int
	Price        decimal.Decimal
	Cost         decimal.Decimal
}

// ImportFile handles an .xlsx or .csv upload that seeds or updates stock for
// a branch. Unknown products are created, known ones get their stock level
// set to the imported quantity.
func (h *ImportHandler) ImportFile(c *gin.Context) {
	branchID, err := uuid.Parse(c.PostForm("branch_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "branch_id is required"})
		return
	}

	var branch database.Branch
	if err := h.db.First(&branch, "id = ?", branchID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "branch not found"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file uploaded"})
		return
	}
	defer file.Close()

	var rows []ImportRow
	fileName := strings.ToLower(header.Filename)
	switch {
	case strings.HasSuffix(fileName, ".xlsx"):
		rows, err = parseExcel(file)
	case strings.HasSuffix(fileName, ".csv"):
		rows, err = parseCSV(file)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file format, upload .xlsx or .csv"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to parse file: %v", err)})
		return
	}

	result := ImportResult{
		TotalRows: len(rows),
		Errors:    []string{},
	}

	for i, row := range rows {
		if err := h.applyRow(branchID, row); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d (%s): %v", i+2, row.ProductName, err))
			result.FailedCount++
			continue
		}
		result.SuccessCount++
	}

	c.JSON(http.StatusOK, gin.H{
		"data":    result,
		"message": fmt.Sprintf("import completed: %d success, %d failed", result.SuccessCount, result.FailedCount),
	})
}

// applyRow upserts the product (matched by SKU first, then name) and sets the
// branch inventory record to the imported quantity.
func (h *ImportHandler) applyRow(branchID uuid.UUID, row ImportRow) error {
	if row.ProductName == "" {
		return fmt.Errorf("product name is required")
	}
	if row.Quantity < 0 {
		return fmt.Errorf("quantity cannot be negative")
	}

	return h.db.Transaction(func(tx *gorm.DB) error {
		var product database.Product
		found := false

		if row.SKU != "" {
			if err := tx.Where("sku = ?", row.SKU).First(&product).Error; err == nil {
				found = true
			}
		}
		if !found {
			if err := tx.Where("name = ?", row.ProductName).First(&product).Error; err == nil {
				found = true
			}
		}

		if found {
			updates := map[string]interface{}{}
			if row.Price.IsPositive() {
				updates["price"] = row.Price
			}
			if row.Cost.IsPositive() {
				updates["cost"] = row.Cost
			}
			if len(updates) > 0 {
				if err := tx.Model(&product).Updates(updates).Error; err != nil {
					return err
				}
			}
		} else {
			product = database.Product{
				Name:     row.ProductName,
				SKU:      row.SKU,
				Price:    row.Price,
				Cost:     row.Cost,
				IsActive: true,
			}
			if err := tx.Create(&product).Error; err != nil {
				return err
			}
		}

		var inv database.Inventory
		err := tx.Where("product_id = ? AND branch_id = ?", product.ID, branchID).First(&inv).Error
		switch {
		case err == gorm.ErrRecordNotFound:
			inv = database.Inventory{
				ProductID:    product.ID,
				BranchID:     branchID,
				CurrentStock: row.Quantity,
				MinimumStock: row.MinimumStock,
			}
			return tx.Create(&inv).Error
		case err != nil:
			return err
		}

		updates := map[string]interface{}{"current_stock": row.Quantity}
		if row.MinimumStock > 0 {
			updates["minimum_stock"] = row.MinimumStock
		}
		return tx.Model(&inv).Updates(updates).Error
	})
}

// rowFromCells maps one data row onto an ImportRow using the header map.
// Several common column spellings are accepted.
func rowFromCells(colMap map[string]int, row []string) ImportRow {
	cell := func(names ...string) string {
		for _, name := range names {
			if idx, ok := colMap[name]; ok && idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
		}
		return ""
	}

	out := ImportRow{
		ProductName: cell("product name", "product", "name"),
		SKU:         cell("sku", "code", "product code"),
	}
	if v, err := strconv.Atoi(cell("quantity", "qty", "stock", "current stock")); err == nil {
		out.Quantity = v
	}
	if v, err := strconv.Atoi(cell("minimum stock", "min stock", "reorder level")); err == nil {
		out.MinimumStock = v
	}
	if v, err := decimal.NewFromString(cell("price", "unit price", "selling price")); err == nil {
		out.Price = v
	}
	if v, err := decimal.NewFromString(cell("cost", "unit cost", "cogs")); err == nil {
		out.Cost = v
	}
	return out
}

func headerMap(header []string) map[string]int {
	colMap := make(map[string]int, len(header))
	for i, cell := range header {
		colMap[strings.ToLower(strings.TrimSpace(cell))] = i
	}
	return colMap
}

func parseExcel(file io.Reader) ([]ImportRow, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in file")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("file must have a header row and at least one data row")
	}

	colMap := headerMap(rows[0])
	var result []ImportRow
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		if parsed := rowFromCells(colMap, row); parsed.ProductName != "" {
			result = append(result, parsed)
		}
	}
	return result, nil
}

func parseCSV(file io.Reader) ([]ImportRow, error) {
	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("file must have a header row and at least one data row")
	}

	colMap := headerMap(records[0])
	var result []ImportRow
	for _, row := range records[1:] {
		if len(row) == 0 {
			continue
		}
		if parsed := rowFromCells(colMap, row); parsed.ProductName != "" {
			result = append(result, parsed)
		}
	}
	return result, nil
}

// DownloadTemplate generates a sample spreadsheet for bulk import.
func (h *ImportHandler) DownloadTemplate(c *gin.Context) {
	f := excelize.NewFile()
	defer f.Close()

	headers := []string{"Product Name", "SKU", "Quantity", "Minimum Stock", "Price", "Cost"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue("Sheet1", cell, header)
	}

	sampleData := [][]interface{}{
		{"Espresso Beans 1kg", "EB-001", 40, 10, 18.50, 11.00},
		{"Paper Cups 12oz (50pk)", "PC-012", 120, 30, 6.25, 3.40},
		{"Cold Brew Concentrate", "CB-001", 25, 8, 9.90, 5.10},
	}
	for rowIdx, row := range sampleData {
		for colIdx, value := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue("Sheet1", cell, value)
		}
	}

	f.SetColWidth("Sheet1", "A", "A", 24)
	f.SetColWidth("Sheet1", "B", "B", 14)
	f.SetColWidth("Sheet1", "C", "F", 14)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=inventory_import_template.xlsx")

	if err := f.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate template"})
		return
	}
}
