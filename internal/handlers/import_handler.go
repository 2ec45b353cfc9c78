package handlers

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"stock-service/internal/middleware"
	"stock-service/internal/models"
	"stock-service/internal/services"
)

// ImportFormat represents the file format for import
type ImportFormat string

const (
	ImportFormatCSV  ImportFormat = "csv"
	ImportFormatXLSX ImportFormat = "xlsx"
)

// ImportTemplateColumn defines a column in the import template
type ImportTemplateColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Type        string `json:"type"`
	Example     string `json:"example"`
}

// ImportTemplate defines the structure of an import template
type ImportTemplate struct {
	Entity     string                 `json:"entity"`
	Version    string                 `json:"version"`
	Columns    []ImportTemplateColumn `json:"columns"`
	SampleData []map[string]string    `json:"sampleData,omitempty"`
}

// ImportRowError represents an error for a specific row
type ImportRowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ImportResult represents the result of an import operation
type ImportResult struct {
	Success      bool             `json:"success"`
	TotalRows    int              `json:"totalRows"`
	SuccessCount int              `json:"successCount"`
	FailedCount  int              `json:"failedCount"`
	SkippedCount int              `json:"skippedCount"`
	Errors       []ImportRowError `json:"errors,omitempty"`
	CreatedIDs   []string         `json:"createdIds,omitempty"`
}

type ImportHandler struct {
	stock *services.StockService
}

func NewImportHandler(stock *services.StockService) *ImportHandler {
	return &ImportHandler{stock: stock}
}

// ProductImportTemplate returns the template for vendor products.
// Opening stock recorded through the import lands in the ledger like any
// other stock-in, so imported products replay correctly.
func ProductImportTemplate() ImportTemplate {
	return ImportTemplate{
		Entity:  "products",
		Version: "1.0",
		Columns: []ImportTemplateColumn{
			{Name: "sku", Description: "Unique product SKU", Required: true, Type: "string", Example: "SKU-001"},
			{Name: "name", Description: "Product name", Required: true, Type: "string", Example: "Organic Honey 500g"},
			{Name: "vendorId", Description: "Owning vendor ID", Required: true, Type: "string", Example: "vendor-123"},
			{Name: "price", Description: "Selling price", Required: false, Type: "number", Example: "12.50"},
			{Name: "costPrice", Description: "Cost price used for valuation", Required: false, Type: "number", Example: "8.00"},
			{Name: "batchTracking", Description: "Track stock in batches (true/false)", Required: false, Type: "boolean", Example: "true"},
			{Name: "initialStock", Description: "Opening stock quantity", Required: false, Type: "number", Example: "100"},
			{Name: "batchNumber", Description: "Batch number for the opening stock", Required: false, Type: "string", Example: "LOT-2026-01"},
			{Name: "expiryDate", Description: "Batch expiry date (YYYY-MM-DD)", Required: false, Type: "date", Example: "2027-01-31"},
			{Name: "status", Description: "Status (ACTIVE, INACTIVE, ARCHIVED)", Required: false, Type: "string", Example: "ACTIVE"},
			{Name: "notes", Description: "Additional notes", Required: false, Type: "string", Example: "Seasonal item"},
		},
		SampleData: []map[string]string{
			{
				"sku":           "SKU-HONEY-500",
				"name":          "Organic Honey 500g",
				"vendorId":      "vendor-123",
				"price":         "12.50",
				"costPrice":     "8.00",
				"batchTracking": "true",
				"initialStock":  "100",
				"batchNumber":   "LOT-2026-01",
				"expiryDate":    "2027-01-31",
				"status":        "ACTIVE",
				"notes":         "",
			},
			{
				"sku":           "SKU-MUG-CLASSIC",
				"name":          "Classic Ceramic Mug",
				"vendorId":      "vendor-123",
				"price":         "9.99",
				"costPrice":     "4.20",
				"batchTracking": "false",
				"initialStock":  "40",
				"batchNumber":   "",
				"expiryDate":    "",
				"status":        "ACTIVE",
				"notes":         "No expiry",
			},
		},
	}
}

// GetProductImportTemplate returns the product import template
// GET /api/v1/products/import/template
func (h *ImportHandler) GetProductImportTemplate(c *gin.Context) {
	format := c.DefaultQuery("format", "json")
	template := ProductImportTemplate()

	switch format {
	case "csv":
		h.generateCSVTemplate(c, template, "products")
	case "xlsx":
		h.generateXLSXTemplate(c, template, "Products")
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "template": template})
	}
}

func (h *ImportHandler) generateCSVTemplate(c *gin.Context, template ImportTemplate, entity string) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s_import_template.csv", entity))

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	headers := make([]string, len(template.Columns))
	for i, col := range template.Columns {
		headers[i] = col.Name
	}
	writer.Write(headers)

	for _, sample := range template.SampleData {
		row := make([]string, len(template.Columns))
		for i, col := range template.Columns {
			row[i] = sample[col.Name]
		}
		writer.Write(row)
	}
}

func (h *ImportHandler) generateXLSXTemplate(c *gin.Context, template ImportTemplate, sheetName string) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})

	requiredStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
	})

	for i, col := range template.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		headerText := col.Name
		if col.Required {
			headerText = col.Name + " *"
		}
		f.SetCellValue(sheetName, cell, headerText)

		if col.Required {
			f.SetCellStyle(sheetName, cell, cell, requiredStyle)
		} else {
			f.SetCellStyle(sheetName, cell, cell, headerStyle)
		}

		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 18)
	}

	for rowIdx, sample := range template.SampleData {
		for colIdx, col := range template.Columns {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheetName, cell, sample[col.Name])
		}
	}

	sheetIdx, _ := f.GetSheetIndex(sheetName)
	f.SetActiveSheet(sheetIdx)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s_import_template.xlsx", strings.ToLower(sheetName)))

	f.Write(c.Writer)
}

// ImportProducts imports vendor products from CSV or Excel file
// POST /api/v1/products/import
func (h *ImportHandler) ImportProducts(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	userID := c.GetString("user_id")

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "FILE_REQUIRED", Message: "Please upload a CSV or Excel file"},
		})
		return
	}
	defer file.Close()

	validateOnly := c.DefaultPostForm("validateOnly", "false") == "true"

	rows, parseErr := h.parseFile(file, header.Filename)
	if parseErr != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "PARSE_ERROR", Message: parseErr.Error()},
		})
		return
	}

	if len(rows) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "EMPTY_FILE", Message: "The file contains no data rows"},
		})
		return
	}

	result := h.processProductRows(c, tenantID, userID, rows, validateOnly)
	c.JSON(http.StatusOK, result)
}

func (h *ImportHandler) parseFile(file io.Reader, filename string) ([]map[string]string, error) {
	if strings.HasSuffix(strings.ToLower(filename), ".csv") {
		return h.parseCSV(file)
	} else if strings.HasSuffix(strings.ToLower(filename), ".xlsx") {
		return h.parseXLSX(file)
	}
	return nil, fmt.Errorf("only CSV and XLSX files are supported")
}

func (h *ImportHandler) parseCSV(file io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(file)

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	for i := range headers {
		headers[i] = strings.TrimSpace(strings.ToLower(headers[i]))
		headers[i] = strings.TrimSuffix(headers[i], " *")
	}

	var rows []map[string]string
	lineNum := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading line %d: %w", lineNum+1, err)
		}

		row := make(map[string]string)
		for i, value := range record {
			if i < len(headers) {
				row[headers[i]] = strings.TrimSpace(value)
			}
		}
		row["_row"] = strconv.Itoa(lineNum + 1)
		rows = append(rows, row)
		lineNum++
	}

	return rows, nil
}

func (h *ImportHandler) parseXLSX(file io.Reader) ([]map[string]string, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in Excel file")
	}

	sheetName := sheets[0]
	excelRows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}

	if len(excelRows) < 2 {
		return nil, fmt.Errorf("file must have a header row and at least one data row")
	}

	headers := excelRows[0]
	for i := range headers {
		headers[i] = strings.TrimSpace(strings.ToLower(headers[i]))
		headers[i] = strings.TrimSuffix(headers[i], " *")
	}

	var rows []map[string]string
	for rowIdx, excelRow := range excelRows[1:] {
		row := make(map[string]string)
		for i, value := range excelRow {
			if i < len(headers) {
				row[headers[i]] = strings.TrimSpace(value)
			}
		}
		row["_row"] = strconv.Itoa(rowIdx + 2)
		rows = append(rows, row)
	}

	return rows, nil
}

func (h *ImportHandler) processProductRows(c *gin.Context, tenantID, userID string, rows []map[string]string, validateOnly bool) *ImportResult {
	result := &ImportResult{
		TotalRows:  len(rows),
		Errors:     make([]ImportRowError, 0),
		CreatedIDs: make([]string, 0),
	}

	template := ProductImportTemplate()
	requiredCols := make(map[string]bool)
	for _, col := range template.Columns {
		if col.Required {
			requiredCols[strings.ToLower(col.Name)] = true
		}
	}

	importReason := "Imported opening stock"

	for _, row := range rows {
		rowNum, _ := strconv.Atoi(row["_row"])

		rowValid := true
		for colName := range requiredCols {
			if row[colName] == "" {
				result.Errors = append(result.Errors, ImportRowError{
					Row:     rowNum,
					Column:  colName,
					Code:    "REQUIRED_FIELD",
					Message: fmt.Sprintf("Required field '%s' is empty", colName),
				})
				rowValid = false
			}
		}

		initialStock := 0
		if row["initialstock"] != "" {
			qty, err := strconv.Atoi(row["initialstock"])
			if err != nil || qty < 0 {
				result.Errors = append(result.Errors, ImportRowError{
					Row:     rowNum,
					Column:  "initialStock",
					Code:    "INVALID_NUMBER",
					Message: "initialStock must be a non-negative integer",
				})
				rowValid = false
			} else {
				initialStock = qty
			}
		}

		var expiryDate *time.Time
		if row["expirydate"] != "" {
			parsed, err := time.Parse("2006-01-02", row["expirydate"])
			if err != nil {
				result.Errors = append(result.Errors, ImportRowError{
					Row:     rowNum,
					Column:  "expiryDate",
					Code:    "INVALID_DATE",
					Message: "expiryDate must be YYYY-MM-DD",
				})
				rowValid = false
			} else {
				expiryDate = &parsed
			}
		}

		if !rowValid {
			result.FailedCount++
			continue
		}

		req := &models.CreateProductRequest{
			SKU:      row["sku"],
			Name:     row["name"],
			VendorID: row["vendorid"],
		}
		if row["price"] != "" {
			if price, err := strconv.ParseFloat(row["price"], 64); err == nil {
				req.Price = price
			}
		}
		if row["costprice"] != "" {
			if cost, err := strconv.ParseFloat(row["costprice"], 64); err == nil {
				req.CostPrice = cost
			}
		}
		if row["batchtracking"] != "" {
			tracking := strings.ToLower(row["batchtracking"]) == "true"
			req.BatchTracking = &tracking
		}
		if row["status"] != "" {
			status := models.ProductStatus(strings.ToUpper(row["status"]))
			req.Status = &status
		}
		if row["notes"] != "" {
			notes := row["notes"]
			req.Notes = &notes
		}

		if validateOnly {
			result.SuccessCount++
			continue
		}

		var actor *string
		if userID != "" {
			actor = &userID
		}

		product, err := h.stock.CreateProduct(c.Request.Context(), tenantID, req, actor)
		if err != nil {
			result.Errors = append(result.Errors, ImportRowError{
				Row:     rowNum,
				Code:    "CREATE_FAILED",
				Message: err.Error(),
			})
			result.FailedCount++
			continue
		}

		if initialStock > 0 {
			meta := services.MovementMeta{
				Type:    models.MovementTypeAdjustment,
				Reason:  &importReason,
				ActorID: actor,
			}
			if row["batchnumber"] != "" {
				meta.Batch = &models.BatchInput{
					BatchNumber: row["batchnumber"],
					ExpiryDate:  expiryDate,
				}
			}
			if _, err := h.stock.RecordStockIn(c.Request.Context(), tenantID, product.ID, initialStock, meta); err != nil {
				result.Errors = append(result.Errors, ImportRowError{
					Row:     rowNum,
					Column:  "initialStock",
					Code:    "STOCK_IN_FAILED",
					Message: err.Error(),
				})
			}
		}

		result.CreatedIDs = append(result.CreatedIDs, product.ID.String())
		result.SuccessCount++
	}

	result.Success = result.SuccessCount > 0 && result.FailedCount == 0
	return result
}
