package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Tipos de fila del CSV de catálogo.
const (
	kindWarehouse = "warehouse"
	kindItem      = "item"
)

type catalogRow struct {
	Kind string
	ID   string
	Name string
}

// readCatalog lee filas kind,id,name. Una primera fila con encabezado "kind" se ignora.
// Con latin1 el archivo se decodifica desde ISO-8859-1 (exportaciones de hojas de cálculo).
func readCatalog(r io.Reader, latin1 bool) ([]catalogRow, error) {
	if latin1 {
		r = transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true

	var rows []catalogRow
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("línea %d: %w", line, err)
		}
		kind := strings.ToLower(strings.TrimSpace(rec[0]))
		if line == 1 && kind == "kind" {
			continue
		}
		row := catalogRow{Kind: kind, ID: strings.TrimSpace(rec[1]), Name: strings.TrimSpace(rec[2])}
		if row.Kind != kindWarehouse && row.Kind != kindItem {
			return nil, fmt.Errorf("línea %d: tipo %q no soportado", line, rec[0])
		}
		if row.ID == "" {
			return nil, fmt.Errorf("línea %d: id vacío", line)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
