// Command deadletter lists terminally failed notification jobs.
// Dead-lettered jobs get no automatic retry; this is the operator's
// window into them.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"post-lab/domain"
	"post-lab/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

func main() {
	dbPath := flag.String("db", "", "Path to the badger DB (same as BADGER_FILEPATH)")
	showDone := flag.Bool("done", false, "List archived successful jobs instead")
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("missing -db flag")
	}

	// Read-only so we can inspect while the server holds the lock-free path.
	db, err := badger.Open(badger.DefaultOptions(*dbPath).WithReadOnly(true).WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	repo := repositories.NewJobRepository(db, slog.Default(), repositories.DefaultQueueOptions())

	jobs, err := repo.DeadLetters(context.Background())
	if *showDone {
		jobs, err = repo.DoneJobs(context.Background())
	}
	if err != nil {
		log.Fatal("Error while scanning jobs: ", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Type", "Status", "Attempts", "Enqueued At", "Last Error"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	table.AppendBulk(lo.Map(jobs, func(job domain.Job, _ int) []string {
		return []string{
			job.ID.String(),
			job.Type,
			string(job.Status),
			fmt.Sprintf("%d/%d", job.Attempts, job.MaxAttempts),
			job.EnqueuedAt.Format("2006-01-02 15:04:05"),
			job.LastError,
		}
	}))

	if len(jobs) == 0 {
		fmt.Println("No jobs found.")
		return
	}
	table.Render()
}
