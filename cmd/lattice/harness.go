package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jchristn/lattice/core"
	"github.com/jchristn/lattice/core/persistence"
	"github.com/jchristn/lattice/core/query"
)

var sqliteCmd = &cobra.Command{
	Use:   "sqlite <file>",
	Short: "Run the self-test battery against a SQLite file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHarness(cmd.Context(), "sqlite", args[0])
	},
}

var postgresqlCmd = &cobra.Command{
	Use:   "postgresql <host> <port> <user> <password> <database>",
	Short: "Run the self-test battery against a PostgreSQL server",
	Args:  cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			args[2], args[3], args[0], args[1], args[4])
		return runHarness(cmd.Context(), "postgresql", dsn)
	},
}

var mysqlCmd = &cobra.Command{
	Use:   "mysql <host> <port> <user> <password> <database>",
	Short: "Run the self-test battery against a MySQL server",
	Args:  cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
			args[2], args[3], args[0], args[1], args[4])
		return runHarness(cmd.Context(), "mysql", dsn)
	},
}

var sqlserverCmd = &cobra.Command{
	Use:   "sqlserver <host> <port> <user> <password> <database>",
	Short: "Run the self-test battery against a SQL Server instance",
	Args:  cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn := fmt.Sprintf("sqlserver://%s:%s@%s:%s?database=%s",
			args[2], args[3], args[0], args[1], args[4])
		return runHarness(cmd.Context(), "sqlserver", dsn)
	},
}

func init() {
	rootCmd.AddCommand(sqliteCmd, postgresqlCmd, mysqlCmd, sqlserverCmd)
}

type scenario struct {
	name string
	run  func(ctx context.Context, p *persistence.Persistence) error
}

var scenarios = []scenario{
	{"schema reuse across shapes", scenarioSchemaReuse},
	{"nested field search", scenarioNestedSearch},
	{"array membership search", scenarioArrayMembership},
	{"strict mode rejects extras", scenarioStrictRejectsExtras},
	{"selective indexing", scenarioSelectiveIndexing},
	{"rebuild reconciliation", scenarioRebuildReconciliation},
	{"pagination arithmetic", scenarioPagination},
}

// runHarness runs the end-to-end battery against a live backend. The data
// dir is a throwaway temp directory; collections created by the battery
// are deleted on completion so the target database stays reusable.
func runHarness(ctx context.Context, backend, dsn string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	adapter, err := openAdapter(backend, dsn, logger)
	if err != nil {
		return err
	}
	defer adapter.Close()

	dataDir, err := os.MkdirTemp("", "lattice-harness-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dataDir)

	p, err := openPersistence(ctx, adapter, dataDir, logger)
	if err != nil {
		return err
	}

	failed := 0
	for _, s := range scenarios {
		if err := s.run(ctx, p); err != nil {
			failed++
			fmt.Printf("FAIL  %-32s %v\n", s.name, err)
			continue
		}
		fmt.Printf("PASS  %s\n", s.name)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(scenarios))
	}
	fmt.Printf("All %d scenarios passed on %s.\n", len(scenarios), backend)
	return nil
}

func withCollection(ctx context.Context, p *persistence.Persistence, opts core.CreateCollectionOptions, fn func(col *core.Collection) error) error {
	col, err := p.CreateCollection(ctx, &opts)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	defer func() {
		_ = p.DeleteCollection(ctx, col.ID)
	}()
	return fn(col)
}

func searchEquals(ctx context.Context, p *persistence.Persistence, collectionID, field, value string) (*query.SearchResult, error) {
	return p.Search(ctx, &query.SearchQuery{
		CollectionID: collectionID,
		Filters:      []query.SearchFilter{{Field: field, Condition: query.ConditionEquals, Value: value}},
	})
}

func scenarioSchemaReuse(ctx context.Context, p *persistence.Persistence) error {
	return withCollection(ctx, p, core.CreateCollectionOptions{Name: "harness-schema-reuse"}, func(col *core.Collection) error {
		d1, err := p.Ingest(ctx, col.ID, []byte(`{"Name":"A"}`), core.IngestOptions{})
		if err != nil {
			return err
		}
		d2, err := p.Ingest(ctx, col.ID, []byte(`{"Name":"B"}`), core.IngestOptions{})
		if err != nil {
			return err
		}
		d3, err := p.Ingest(ctx, col.ID, []byte(`{"Age":30}`), core.IngestOptions{})
		if err != nil {
			return err
		}
		if d1.SchemaID != d2.SchemaID {
			return fmt.Errorf("identical shapes got schemas %s and %s", d1.SchemaID, d2.SchemaID)
		}
		if d1.SchemaID == d3.SchemaID {
			return fmt.Errorf("different shapes shared schema %s", d1.SchemaID)
		}
		return nil
	})
}

func scenarioNestedSearch(ctx context.Context, p *persistence.Persistence) error {
	return withCollection(ctx, p, core.CreateCollectionOptions{Name: "harness-nested"}, func(col *core.Collection) error {
		doc, err := p.Ingest(ctx, col.ID, []byte(`{"Person":{"Name":{"First":"Joel"}}}`), core.IngestOptions{})
		if err != nil {
			return err
		}
		res, err := searchEquals(ctx, p, col.ID, "Person.Name.First", "Joel")
		if err != nil {
			return err
		}
		if len(res.Documents) != 1 || res.Documents[0].ID != doc.ID {
			return fmt.Errorf("expected exactly the ingested document, got %d results", len(res.Documents))
		}
		return nil
	})
}

func scenarioArrayMembership(ctx context.Context, p *persistence.Persistence) error {
	return withCollection(ctx, p, core.CreateCollectionOptions{Name: "harness-arrays"}, func(col *core.Collection) error {
		if _, err := p.Ingest(ctx, col.ID, []byte(`{"Tags":["red","green","blue"]}`), core.IngestOptions{}); err != nil {
			return err
		}
		hit, err := searchEquals(ctx, p, col.ID, "Tags", "green")
		if err != nil {
			return err
		}
		if len(hit.Documents) != 1 {
			return fmt.Errorf("member search returned %d documents, want 1", len(hit.Documents))
		}
		miss, err := searchEquals(ctx, p, col.ID, "Tags", "yellow")
		if err != nil {
			return err
		}
		if len(miss.Documents) != 0 {
			return fmt.Errorf("non-member search returned %d documents, want 0", len(miss.Documents))
		}
		return nil
	})
}

func scenarioStrictRejectsExtras(ctx context.Context, p *persistence.Persistence) error {
	dataType := core.DataTypeString
	opts := core.CreateCollectionOptions{
		Name:                  "harness-strict",
		SchemaEnforcementMode: core.EnforcementStrict,
		FieldConstraints: []core.FieldConstraint{
			{FieldPath: "Name", DataType: &dataType, Required: true},
		},
	}
	return withCollection(ctx, p, opts, func(col *core.Collection) error {
		_, err := p.Ingest(ctx, col.ID, []byte(`{"Name":"Joel","Extra":"x"}`), core.IngestOptions{})
		var verr *core.ValidationError
		if !errors.As(err, &verr) {
			return fmt.Errorf("expected a validation error, got %v", err)
		}
		for _, failure := range verr.Errors {
			if failure.ErrorCode == core.CodeUnexpectedField {
				return nil
			}
		}
		return fmt.Errorf("validation error lacks UNEXPECTED_FIELD: %v", verr)
	})
}

func scenarioSelectiveIndexing(ctx context.Context, p *persistence.Persistence) error {
	opts := core.CreateCollectionOptions{
		Name:          "harness-selective",
		IndexingMode:  core.IndexingSelective,
		IndexedFields: []string{"Name"},
	}
	return withCollection(ctx, p, opts, func(col *core.Collection) error {
		if _, err := p.Ingest(ctx, col.ID, []byte(`{"Name":"Joel","Age":30}`), core.IngestOptions{}); err != nil {
			return err
		}
		byName, err := searchEquals(ctx, p, col.ID, "Name", "Joel")
		if err != nil {
			return err
		}
		if len(byName.Documents) != 1 {
			return fmt.Errorf("indexed field search returned %d documents, want 1", len(byName.Documents))
		}
		byAge, err := searchEquals(ctx, p, col.ID, "Age", "30")
		if err != nil {
			return err
		}
		if len(byAge.Documents) != 0 {
			return fmt.Errorf("unindexed field search returned %d documents, want 0", len(byAge.Documents))
		}
		return nil
	})
}

func scenarioRebuildReconciliation(ctx context.Context, p *persistence.Persistence) error {
	return withCollection(ctx, p, core.CreateCollectionOptions{Name: "harness-rebuild"}, func(col *core.Collection) error {
		for i := 0; i < 10; i++ {
			if _, err := p.Ingest(ctx, col.ID, []byte(`{"Name":"Joel","Age":30}`), core.IngestOptions{}); err != nil {
				return err
			}
		}
		if _, err := p.UpdateIndexing(ctx, col.ID, core.IndexingSelective, []string{"Name"}, false); err != nil {
			return err
		}
		result, err := p.RebuildIndexes(ctx, col.ID, true)
		if err != nil {
			return err
		}
		if !result.Success {
			return fmt.Errorf("rebuild reported failure: %v", result.Errors)
		}
		byName, err := searchEquals(ctx, p, col.ID, "Name", "Joel")
		if err != nil {
			return err
		}
		if byName.TotalRecords != 10 {
			return fmt.Errorf("name search found %d documents after rebuild, want 10", byName.TotalRecords)
		}
		byAge, err := searchEquals(ctx, p, col.ID, "Age", "30")
		if err != nil {
			return err
		}
		if byAge.TotalRecords != 0 {
			return fmt.Errorf("age search found %d documents after rebuild, want 0", byAge.TotalRecords)
		}
		return nil
	})
}

func scenarioPagination(ctx context.Context, p *persistence.Persistence) error {
	return withCollection(ctx, p, core.CreateCollectionOptions{Name: "harness-paging"}, func(col *core.Collection) error {
		for i := 0; i < 5; i++ {
			if _, err := p.Ingest(ctx, col.ID, []byte(`{"Name":"x"}`), core.IngestOptions{}); err != nil {
				return err
			}
		}
		res, err := p.Search(ctx, &query.SearchQuery{
			CollectionID: col.ID,
			Filters:      []query.SearchFilter{{Field: "Name", Condition: query.ConditionEquals, Value: "x"}},
			Skip:         1,
			MaxResults:   2,
		})
		if err != nil {
			return err
		}
		if res.TotalRecords != 5 || len(res.Documents) != 2 || res.RecordsRemaining != 2 || res.EndOfResults {
			return fmt.Errorf("pagination mismatch: total=%d page=%d remaining=%d end=%t",
				res.TotalRecords, len(res.Documents), res.RecordsRemaining, res.EndOfResults)
		}
		return nil
	})
}
