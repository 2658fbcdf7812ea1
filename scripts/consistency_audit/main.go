package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/noah-isme/course-enrollment-api/internal/dto"
	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/repository"
	"github.com/noah-isme/course-enrollment-api/internal/service"
	"github.com/noah-isme/course-enrollment-api/pkg/config"
	"github.com/noah-isme/course-enrollment-api/pkg/database"
	"github.com/noah-isme/course-enrollment-api/pkg/logger"
)

func main() {
	var (
		asJSON  bool
		strict  bool
		timeout time.Duration
	)

	flag.BoolVar(&asJSON, "json", false, "Print the report as JSON")
	flag.BoolVar(&strict, "strict", true, "Exit with status 1 when violations are found")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Audit timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect postgres: %v", err)
	}
	defer db.Close()

	audit := service.NewConsistencyService(repository.NewConsistencyRepository(db), service.NewMetricsService(), logr)
	report, err := audit.Report(ctx)
	if err != nil {
		log.Fatalf("consistency audit failed: %v", err)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			log.Fatalf("encode report: %v", err)
		}
	} else {
		printReport(os.Stdout, report)
	}

	if strict && !report.Healthy {
		os.Exit(1)
	}
}

func printReport(w io.Writer, report *dto.ConsistencyReport) {
	fmt.Fprintf(w, "Consistency Audit (%s)\n", report.CheckedAt.Format(time.RFC3339))
	if report.Healthy {
		color.New(color.FgGreen, color.Bold).Fprintln(w, "OK: no violations")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Kind", "Class", "Student", "Detail"})
	table.SetAutoWrapText(false)
	for _, v := range report.Violations {
		table.Append(violationRow(v))
	}
	table.Render()

	color.New(color.FgRed, color.Bold).Fprintf(w, "FAIL: %d violation(s)\n", len(report.Violations))
}

func violationRow(v models.ConsistencyViolation) []string {
	student := v.StudentID
	if student == "" {
		student = "-"
	}
	return []string{string(v.Kind), v.ClassID, student, v.Detail}
}
