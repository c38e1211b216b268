package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"readingroom/collection"
	"readingroom/config"
	"readingroom/domain"
	"readingroom/library"
)

// Expected header, in order.
var columns = []string{"student_id", "first_name", "last_name", "phone", "email"}

func main() {
	cfgPath := flag.String("config", "", "path to readingroom.yaml")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: import_students [-config readingroom.yaml] students.csv")
		os.Exit(2)
	}
	csvPath := flag.Arg(0)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()
	manager, err := library.Open(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening session: %v\n", err)
		os.Exit(1)
	}
	defer manager.Close()

	if !manager.Guard().Authenticated() {
		fmt.Fprintln(os.Stderr, "Not logged in. Run `readingroom login` first.")
		os.Exit(1)
	}

	f, err := os.Open(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", csvPath, err)
		os.Exit(1)
	}
	defer f.Close()

	drafts, err := readDrafts(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing %s: %v\n", csvPath, err)
		os.Exit(1)
	}
	fmt.Printf("Importing %d students from %s...\n", len(drafts), csvPath)

	successCount, errorCount := 0, 0
	for _, d := range drafts {
		fmt.Printf("Importing: %s %s (%s)... ", d.FirstName, d.LastName, d.StudentID)
		if _, err := manager.Students.Create(ctx, d); err != nil {
			fmt.Printf("ERROR - %v\n", message(err))
			errorCount++
			continue
		}
		fmt.Println("SUCCESS")
		successCount++
	}

	fmt.Printf("\nImport complete!\n")
	fmt.Printf("Successfully imported: %d students\n", successCount)
	fmt.Printf("Errors: %d\n", errorCount)

	if successCount > 0 {
		fmt.Println("\nStudents:")
		fmt.Printf("%-12s %-30s %-30s\n", "ID", "Name", "Email")
		fmt.Println(strings.Repeat("-", 74))
		for _, s := range manager.Students.Items() {
			fmt.Printf("%-12s %-30s %-30s\n", s.StudentID, truncateString(s.FullName(), 30), truncateString(s.Email, 30))
		}
	}
	if errorCount > 0 {
		os.Exit(1)
	}
}

// readDrafts parses the CSV. The header row is required; extra columns are ignored.
func readDrafts(r io.Reader) ([]domain.StudentDraft, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range columns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}
	get := func(rec []string, col string) string {
		if i := idx[col]; i < len(rec) {
			return rec[i]
		}
		return ""
	}

	var out []domain.StudentDraft
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, domain.StudentDraft{
			StudentID: get(rec, "student_id"),
			FirstName: get(rec, "first_name"),
			LastName:  get(rec, "last_name"),
			Phone:     get(rec, "phone"),
			Email:     get(rec, "email"),
		})
	}
}

func message(err error) string {
	var f *collection.Failure
	if errors.As(err, &f) {
		return f.Message
	}
	return err.Error()
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
