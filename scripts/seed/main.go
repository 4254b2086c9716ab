// Command seed writes sample employee upload files for local testing.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var header = []string{"EMPLOYEE_ID", "FIRST_NAME", "LAST_NAME", "PHONE_NUMBER", "COMPANY_NAME", "SALARY", "MANAGER_ID", "DEPARTMENT_ID"}

var (
	firstNames = []string{"Ada", "Alan", "Grace", "Edsger", "Barbara", "Donald", "Frances", "Ken"}
	lastNames  = []string{"Lovelace", "Turing", "Hopper", "Dijkstra", "Liskov", "Knuth", "Allen", "Thompson"}
	companies  = []string{"Acme Corp", "Globex", "Initech"}
)

func main() {
	rows := flag.Int("rows", 50, "number of employees to generate")
	start := flag.Int("start", 1, "first employee id")
	out := flag.String("out", ".", "output directory")
	flag.Parse()

	if *rows < 0 || *start < 0 {
		log.Fatal("rows and start must not be negative")
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		log.Fatalf("create output dir: %v", err)
	}

	records := generate(*start, *rows)

	csvPath := filepath.Join(*out, "employees.csv")
	fmt.Println("→ Writing", csvPath)
	if err := writeCSV(csvPath, records); err != nil {
		log.Fatalf("write csv: %v", err)
	}

	xlsxPath := filepath.Join(*out, "employees.xlsx")
	fmt.Println("→ Writing", xlsxPath)
	if err := writeXLSX(xlsxPath, records); err != nil {
		log.Fatalf("write xlsx: %v", err)
	}

	fmt.Printf("✅ Seed files written (%d rows)\n", len(records))
}

func generate(start, n int) [][]string {
	records := make([][]string, 0, n)
	base := decimal.NewFromInt(3500)
	for i := 0; i < n; i++ {
		id := start + i
		manager := 0
		if i > 0 {
			manager = start
		}
		salary := base.Add(decimal.NewFromInt(int64(i * 125))).Add(decimal.New(int64(i%4)*25, -2))
		records = append(records, []string{
			strconv.Itoa(id),
			firstNames[i%len(firstNames)],
			lastNames[(i/len(firstNames))%len(lastNames)],
			fmt.Sprintf("555-%04d", id%10000),
			companies[i%len(companies)],
			salary.StringFixed(2),
			strconv.Itoa(manager),
			strconv.Itoa(10 + i%5),
		})
	}
	return records
}

func writeCSV(path string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(records); err != nil {
		return err
	}
	return f.Close()
}

func writeXLSX(path string, records [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := writeRow(f, sheet, 1, header); err != nil {
		return err
	}
	for i, rec := range records {
		if err := writeRow(f, sheet, i+2, rec); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

func writeRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return f.SetSheetRow(sheet, cell, &cells)
}
