package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/internal/app"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/importer"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/locks"
	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/models"
)

type importOptions struct {
	mode             string
	municipalityID   string
	municipalityName string
	actorID          string
	actorName        string
}

func newImportCmd(root *rootOptions) *cobra.Command {
	opts := &importOptions{}
	cmd := &cobra.Command{
		Use:   "import <file> [file...]",
		Short: "Import fixture files (.json or .jsonl) and print the batch statistics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := readFixtureFiles(args)
			if err != nil {
				return err
			}

			records, err := importer.ParseFixtures(files)
			if err != nil {
				return err
			}

			fileNames := make([]string, len(files))
			for i, f := range files {
				fileNames[i] = f.Name
			}

			return withApp(cmd.Context(), root, app.Options{Migrate: true, WithEvents: true}, func(a *app.App) error {
				req := importer.ImportRequest{
					Records:          records,
					FileNames:        fileNames,
					Mode:             models.ParseImportMode(opts.mode),
					MunicipalityID:   opts.municipalityID,
					MunicipalityName: opts.municipalityName,
					ImportedByID:     opts.actorID,
					ImportedByName:   opts.actorName,
				}

				lock, err := a.Locker().Acquire(cmd.Context(), locks.ImportKey(req.LockSubject()))
				if err != nil {
					return fmt.Errorf("failed to acquire import lock: %w", err)
				}
				defer func() { _ = lock.Release(cmd.Context()) }()

				stats, err := a.ImportService().Import(cmd.Context(), req)
				if stats != nil {
					if printErr := printResult(cmd.OutOrStdout(), root.output, stats); printErr != nil {
						return errors.Join(err, printErr)
					}
				}
				return err
			})
		},
	}

	cmd.Flags().StringVar(&opts.mode, "mode", string(models.ImportModeUpdate), "import mode: new, update or replace")
	cmd.Flags().StringVar(&opts.municipalityID, "municipality-id", "", "target municipality id")
	cmd.Flags().StringVar(&opts.municipalityName, "municipality-name", "", "target municipality name, defaults to the first record's municipality")
	cmd.Flags().StringVar(&opts.actorID, "actor-id", "", "id recorded as the importing user")
	cmd.Flags().StringVar(&opts.actorName, "actor-name", "", "name recorded as the importing user")
	return cmd
}

func newCheckCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Report whether the file's municipality already has associations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := readFixtureFiles(args)
			if err != nil {
				return err
			}

			records, err := importer.ParseFixture(files[0].Name, files[0].Content)
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), root, app.Options{}, func(a *app.App) error {
				result, err := a.ImportService().Check(cmd.Context(), records)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), root.output, result)
			})
		},
	}
}

func newMigrateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), root, app.Options{Migrate: true}, func(a *app.App) error {
				a.Logger.Info("Migrations applied")
				return nil
			})
		},
	}
}

func readFixtureFiles(paths []string) ([]importer.FixtureFile, error) {
	files := make([]importer.FixtureFile, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		files = append(files, importer.FixtureFile{Name: filepath.Base(path), Content: content})
	}
	return files, nil
}
