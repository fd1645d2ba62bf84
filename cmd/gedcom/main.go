// Command gedcom imports, exports and checks GEDCOM files against a FamTree
// database without running the server.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"

	cli "github.com/jawher/mow.cli"

	"famtree/internal/codec"
	"famtree/internal/config"
	"famtree/internal/gedcom"
	"famtree/internal/repository/sqlite"
	"famtree/internal/service"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, _, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	app := cli.App("gedcom", "Import, export and check GEDCOM 5.5.1 files")
	dbPath := app.String(cli.StringOpt{
		Name:   "db",
		Value:  cfg.Database.Path,
		Desc:   "SQLite database path",
		EnvVar: config.EnvDatabasePath,
	})

	app.Command("export", "Write the tree as a GEDCOM file (- for stdout)", func(cmd *cli.Cmd) {
		cmd.Spec = "[--living] [--no-sources] [--submitter] FILE"
		living := cmd.BoolOpt("living", cfg.Export.IncludeLiving, "Include people flagged as living")
		noSources := cmd.BoolOpt("no-sources", false, "Omit source citations and records")
		submitter := cmd.StringOpt("submitter", cfg.ExportOptions().SubmitterName, "Submitter name for the SUBM record")
		file := cmd.StringArg("FILE", "", "Output file")

		cmd.Action = func() {
			opts := cfg.ExportOptions()
			opts.IncludeLiving = *living
			opts.IncludeSources = opts.IncludeSources && !*noSources
			opts.SubmitterName = *submitter
			exitOnError(runExport(*dbPath, *file, opts))
		}
	})

	app.Command("import", "Import a GEDCOM file into the tree", func(cmd *cli.Cmd) {
		file := cmd.StringArg("FILE", "", "GEDCOM file to import")

		cmd.Action = func() {
			exitOnError(runImport(*dbPath, *file, os.Stdout))
		}
	})

	app.Command("check", "Parse a GEDCOM file and report what was found", func(cmd *cli.Cmd) {
		file := cmd.StringArg("FILE", "", "GEDCOM file to check")

		cmd.Action = func() {
			ok, err := runCheck(*file, os.Stdout)
			exitOnError(err)
			if !ok {
				cli.Exit(1)
			}
		}
	})

	app.Run(os.Args)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cli.Exit(1)
	}
}

func openService(dbPath string) (*service.TreeService, func(), error) {
	repo, err := sqlite.New(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return service.NewTreeService(repo, service.NewEventBus()), func() { repo.Close() }, nil
}

func runExport(dbPath, file string, opts gedcom.ExportOptions) error {
	svc, closeRepo, err := openService(dbPath)
	if err != nil {
		return err
	}
	defer closeRepo()

	if file == "-" {
		return svc.ExportGEDCOM(context.Background(), opts, os.Stdout)
	}

	f, err := os.Create(file)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", file, err)
	}
	w := bufio.NewWriter(f)
	if err := svc.ExportGEDCOM(context.Background(), opts, w); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", file, err)
	}
	return f.Close()
}

func runImport(dbPath, file string, out io.Writer) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}

	svc, closeRepo, err := openService(dbPath)
	if err != nil {
		return err
	}
	defer closeRepo()

	result, err := svc.ImportGEDCOM(context.Background(), data)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Imported %d people and %d families from %s\n",
		result.PeopleImported, result.FamiliesImported, file)
	for _, e := range result.Errors {
		fmt.Fprintf(out, "error: %s\n", e)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	return nil
}

// runCheck reports ok=false when the file has errors
func runCheck(file string, out io.Writer) (bool, error) {
	f, err := os.Open(file)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	parsed, err := gedcom.ParseReader(f)
	if err != nil {
		return false, err
	}
	conv := codec.Convert(parsed, codec.XrefID)

	fmt.Fprintf(out, "%s: %d individuals, %d families\n", file, len(parsed.People), len(parsed.Families))
	for _, d := range parsed.Errors {
		fmt.Fprintf(out, "error: %s\n", d)
	}
	for _, d := range conv.Warnings {
		fmt.Fprintf(out, "warning: %s\n", d)
	}
	fmt.Fprintf(out, "%d errors, %d warnings\n", len(parsed.Errors), len(conv.Warnings))

	return len(parsed.Errors) == 0, nil
}
