package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/mail"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/cmeonline/enrollments/core"
	"github.com/cmeonline/enrollments/core/enrollment"
)

func (cli *commandLine) enrollFromFile(programKey, courseKey, path string, notify []mail.Address) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening CSV file")
	}
	defer func() { _ = f.Close() }()
	return cli.enroll(programKey, courseKey, f, notify)
}

// enroll reads `student_key,status[,curriculum_uuid]` rows and submits them in batches of enrollment.MaxBatchSize.
// The per-key report is printed and, when notify is not empty, emailed.
func (cli *commandLine) enroll(programKey, courseKey string, r io.Reader, notify []mail.Address) error {
	ctx := context.Background()
	program, err := cli.catalogSvc.GetProgram(ctx, programKey)
	if err != nil {
		return err
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return errors.Wrap(err, "reading CSV file")
	}
	if len(rows) > 0 && isHeader(rows[0]) {
		rows = rows[1:]
	}
	for i, row := range rows {
		if len(row) < 2 {
			return errors.Errorf("line %d: expected at least 2 columns, got %d", i+1, len(row))
		}
	}

	// keys repeated anywhere in the file are duplicated, even when they land in different batches
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row[0]]++
	}
	total := enrollment.BatchResult{Requested: len(rows), Statuses: make(map[string]enrollment.Status, len(rows))}
	unique := make([][]string, 0, len(rows))
	for _, row := range rows {
		if counts[row[0]] > 1 {
			total.Statuses[row[0]] = enrollment.StatusDuplicated
			continue
		}
		unique = append(unique, row)
	}

	for start := 0; start < len(unique); start += enrollment.MaxBatchSize {
		end := start + enrollment.MaxBatchSize
		if end > len(unique) {
			end = len(unique)
		}
		chunk := unique[start:end]

		var res enrollment.BatchResult
		if courseKey == "" {
			reqs := make([]enrollment.NewProgramEnrollment, len(chunk))
			for i, row := range chunk {
				reqs[i] = enrollment.NewProgramEnrollment{ExternalUserKey: row[0], Status: enrollment.Status(row[1])}
				if len(row) > 2 {
					reqs[i].CurriculumUUID = row[2]
				}
			}
			res, err = cli.enrollSvc.EnrollInProgram(ctx, program, reqs)
		} else {
			reqs := make([]enrollment.NewCourseEnrollment, len(chunk))
			for i, row := range chunk {
				reqs[i] = enrollment.NewCourseEnrollment{StudentKey: row[0], Status: enrollment.Status(row[1])}
			}
			res, err = cli.enrollSvc.EnrollInProgramCourse(ctx, program, courseKey, reqs)
		}
		if err != nil {
			return errors.Wrapf(err, "enrolling batch %d", start/enrollment.MaxBatchSize+1)
		}

		total.Applied += res.Applied
		for key, status := range res.Statuses {
			total.Statuses[key] = status
		}
	}

	keys := make([]string, 0, len(total.Statuses))
	for key := range total.Statuses {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	report := new(strings.Builder)
	for _, key := range keys {
		fmt.Fprintf(report, "%s\t%s\n", key, total.Statuses[key])
	}
	fmt.Fprintf(report, "%d of %d record(s) applied (%s)\n", total.Applied, total.Requested, total.Outcome())
	fmt.Fprint(cli.out, report.String())

	if len(notify) == 0 {
		return nil
	}
	subject := "enrollment import: " + program.Title
	if courseKey != "" {
		subject += " / " + courseKey
	}
	err = cli.mailer.SendMessages(&core.EmailMessage{To: notify, Subject: subject, Body: report.String()})
	return errors.Wrap(err, "emailing import report")
}

func isHeader(row []string) bool {
	if len(row) == 0 {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(row[0])) {
	case "student_key", "external_user_key":
		return true
	}
	return false
}

func (cli *commandLine) linkAccounts(programKey string) error {
	ctx := context.Background()
	program, err := cli.catalogSvc.GetProgram(ctx, programKey)
	if err != nil {
		return err
	}
	res, err := cli.enrollSvc.LinkAccounts(ctx, program)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d enrollment(s) linked, %d course registration(s) completed\n", res.Accounts, res.Registrations)
	return nil
}

func (cli *commandLine) purge(programKey string) error {
	ctx := context.Background()
	program, err := cli.catalogSvc.GetProgram(ctx, programKey)
	if err != nil {
		return err
	}
	n, err := cli.enrollSvc.DeleteProgramEnrollments(ctx, program)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d enrollment(s) deleted\n", n)
	return nil
}
