// Package catalog разбирает CSV-файлы для массовой загрузки товаров.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/pharmacy-backoffice/internal/model"
)

// ErrInvalidData возвращается, если файл или одна из строк не проходит проверку.
var ErrInvalidData = errors.New("invalid data")

const (
	colName         = "name"
	colDescription  = "description"
	colCostPrice    = "cost_price"
	colProfitMargin = "profit_margin"
	colQuantity     = "quantity"
)

var requiredColumns = []string{colName, colCostPrice, colQuantity}

// Ограничения совпадают с колонками products: name VARCHAR(255), profit_margin NUMERIC(8, 4).
const (
	maxNameLen     = 255
	maxMarginScale = 4
)

var maxMargin = decimal.NewFromInt(10000)

// ParseProducts читает товары из CSV с заголовком. Порядок колонок произвольный;
// обязательны name, cost_price и quantity.
func ParseProducts(r io.Reader) ([]model.Product, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrInvalidData)
		}
		return nil, fmt.Errorf("%w: read header: %v", ErrInvalidData, err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrInvalidData, col)
		}
	}

	var products []model.Product
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidData, line, err)
		}

		p, err := parseRecord(record, index)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidData, line, err)
		}
		products = append(products, p)
	}

	if len(products) == 0 {
		return nil, fmt.Errorf("%w: no products in file", ErrInvalidData)
	}

	return products, nil
}

func parseRecord(record []string, index map[string]int) (model.Product, error) {
	field := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	p := model.Product{
		Name:        field(colName),
		Description: field(colDescription),
	}
	if p.Name == "" {
		return p, errors.New("name is required")
	}
	if utf8.RuneCountInString(p.Name) > maxNameLen {
		return p, fmt.Errorf("name is longer than %d characters", maxNameLen)
	}

	cost, err := model.ParseMoney(field(colCostPrice))
	if err != nil {
		return p, fmt.Errorf("cost_price: %w", err)
	}
	if cost <= 0 {
		return p, errors.New("cost_price must be positive")
	}
	p.CostPrice = cost

	if raw := field(colProfitMargin); raw != "" {
		margin, err := decimal.NewFromString(raw)
		if err != nil {
			return p, fmt.Errorf("profit_margin: invalid value %q", raw)
		}
		if margin.IsNegative() {
			return p, errors.New("profit_margin must not be negative")
		}
		if !margin.Equal(margin.Truncate(maxMarginScale)) {
			return p, fmt.Errorf("profit_margin must have at most %d decimal places", maxMarginScale)
		}
		if !margin.LessThan(maxMargin) {
			return p, fmt.Errorf("profit_margin must be less than %s", maxMargin)
		}
		p.ProfitMargin = margin
	}

	if _, err := p.SalePrice(); err != nil {
		return p, errors.New("sale price is out of range")
	}

	quantity, err := strconv.ParseInt(field(colQuantity), 10, 64)
	if err != nil {
		return p, fmt.Errorf("quantity: invalid value %q", field(colQuantity))
	}
	if quantity < 0 {
		return p, errors.New("quantity must not be negative")
	}
	p.Quantity = quantity

	return p, nil
}
