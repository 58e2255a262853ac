package persistence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jchristn/lattice/blob"
	"github.com/jchristn/lattice/core"
	"github.com/jchristn/lattice/core/query"
	"github.com/jchristn/lattice/sqlite"
)

func newTestPersistence(t *testing.T, opts Options) *Persistence {
	t.Helper()
	adapter, err := sqlite.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })

	blobs, err := blob.NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	p, err := New(context.Background(), adapter, blobs, nil, opts)
	require.NoError(t, err)
	return p
}

func createCollection(t *testing.T, p *Persistence, opts *core.CreateCollectionOptions) *core.Collection {
	t.Helper()
	col, err := p.CreateCollection(context.Background(), opts)
	require.NoError(t, err)
	return col
}

func ingest(t *testing.T, p *Persistence, collectionID, body string) *core.Document {
	t.Helper()
	doc, err := p.Ingest(context.Background(), collectionID, []byte(body), core.IngestOptions{})
	require.NoError(t, err)
	return doc
}

func search(t *testing.T, p *Persistence, collectionID, field string, condition query.SearchCondition, value string) *query.SearchResult {
	t.Helper()
	res, err := p.Search(context.Background(), &query.SearchQuery{
		CollectionID: collectionID,
		Filters:      []query.SearchFilter{{Field: field, Condition: condition, Value: value}},
	})
	require.NoError(t, err)
	return res
}

func typePtr(d core.DataType) *core.DataType { return &d }

func TestSchemaReuseAcrossShapes(t *testing.T) {
	p := newTestPersistence(t, Options{})
	ctx := context.Background()
	col := createCollection(t, p, &core.CreateCollectionOptions{Name: "people"})

	d1 := ingest(t, p, col.ID, `{"Name":"A"}`)
	d2 := ingest(t, p, col.ID, `{"Name":"B"}`)
	d3 := ingest(t, p, col.ID, `{"Age":30}`)

	assert.Equal(t, d1.SchemaID, d2.SchemaID, "identical shapes share a schema")
	assert.NotEqual(t, d1.SchemaID, d3.SchemaID, "different shapes get distinct schemas")

	schemas, err := p.ListSchemas(ctx)
	require.NoError(t, err)
	assert.Len(t, schemas, 2)
}

func TestNestedFieldSearch(t *testing.T) {
	p := newTestPersistence(t, Options{})
	col := createCollection(t, p, &core.CreateCollectionOptions{Name: "people"})

	doc := ingest(t, p, col.ID, `{"Person":{"Name":{"First":"Joel"}}}`)

	res := search(t, p, col.ID, "Person.Name.First", query.ConditionEquals, "Joel")
	require.Len(t, res.Documents, 1)
	assert.Equal(t, doc.ID, res.Documents[0].ID)
	assert.Equal(t, 1, res.TotalRecords)
	assert.True(t, res.EndOfResults)
}

func TestArrayMembershipSearch(t *testing.T) {
	p := newTestPersistence(t, Options{})
	col := createCollection(t, p, &core.CreateCollectionOptions{Name: "tagged"})

	doc := ingest(t, p, col.ID, `{"Tags":["red","green","blue"]}`)

	res := search(t, p, col.ID, "Tags", query.ConditionEquals, "green")
	require.Len(t, res.Documents, 1)
	assert.Equal(t, doc.ID, res.Documents[0].ID)

	res = search(t, p, col.ID, "Tags", query.ConditionEquals, "yellow")
	assert.Empty(t, res.Documents)
	assert.Zero(t, res.TotalRecords)
}

func TestLongValueEqualsSearch(t *testing.T) {
	p := newTestPersistence(t, Options{})
	col := createCollection(t, p, &core.CreateCollectionOptions{Name: "long-values"})

	// SQLite indexes values without a key cap, so an exact match must hit
	// however long the value is.
	long := strings.Repeat("a", 500)
	doc := ingest(t, p, col.ID, `{"Name":"`+long+`"}`)

	res := search(t, p, col.ID, "Name", query.ConditionEquals, long)
	require.Equal(t, 1, res.TotalRecords)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, doc.ID, res.Documents[0].ID)

	miss := search(t, p, col.ID, "Name", query.ConditionEquals, long[:499])
	assert.Zero(t, miss.TotalRecords)
}

func TestStrictModeRejectsExtras(t *testing.T) {
	p := newTestPersistence(t, Options{})
	col := createCollection(t, p, &core.CreateCollectionOptions{
		Name:                  "strict",
		SchemaEnforcementMode: core.EnforcementStrict,
		FieldConstraints: []core.FieldConstraint{
			{FieldPath: "Name", DataType: typePtr(core.DataTypeString), Required: true},
		},
	})

	_, err := p.Ingest(context.Background(), col.ID, []byte(`{"Name":"Joel","Extra":"x"}`), core.IngestOptions{})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Errors, 1)
	assert.Equal(t, core.CodeUnexpectedField, verr.Errors[0].ErrorCode)

	// The rejected document left nothing behind.
	res, err := p.Enumerate(context.Background(), &query.EnumerationQuery{CollectionID: col.ID})
	require.NoError(t, err)
	assert.Zero(t, res.TotalRecords)
}

func TestSelectiveIndexing(t *testing.T) {
	p := newTestPersistence(t, Options{})
	col := createCollection(t, p, &core.CreateCollectionOptions{
		Name:          "selective",
		IndexingMode:  core.IndexingSelective,
		IndexedFields: []string{"Name"},
	})

	ingest(t, p, col.ID, `{"Name":"Joel","Age":30}`)

	res := search(t, p, col.ID, "Name", query.ConditionEquals, "Joel")
	assert.Len(t, res.Documents, 1)

	res = search(t, p, col.ID, "Age", query.ConditionEquals, "30")
	assert.Empty(t, res.Documents)
}

func TestRebuildReconciliation(t *testing.T) {
	p := newTestPersistence(t, Options{})
	ctx := context.Background()
	col := createCollection(t, p, &core.CreateCollectionOptions{Name: "rebuild"})

	for i := 0; i < 10; i++ {
		ingest(t, p, col.ID, `{"Name":"Joel","Age":30}`)
	}
	res := search(t, p, col.ID, "Age", query.ConditionEquals, "30")
	assert.Equal(t, 10, res.TotalRecords)

	_, err := p.UpdateIndexing(ctx, col.ID, core.IndexingSelective, []string{"Name"}, false)
	require.NoError(t, err)

	result, err := p.RebuildIndexes(ctx, col.ID, true)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 10, result.DocumentsProcessed)
	assert.Empty(t, result.Errors)

	// Name still searchable; Age rows are gone.
	res = search(t, p, col.ID, "Name", query.ConditionEquals, "Joel")
	assert.Equal(t, 10, res.TotalRecords)
	res = search(t, p, col.ID, "Age", query.ConditionEquals, "30")
	assert.Zero(t, res.TotalRecords)
}

func TestRebuildIdempotence(t *testing.T) {
	p := newTestPersistence(t, Options{})
	ctx := context.Background()
	col := createCollection(t, p, &core.CreateCollectionOptions{Name: "idempotent"})

	ingest(t, p, col.ID, `{"Name":"A","Age":1}`)
	ingest(t, p, col.ID, `{"Name":"B","Age":2}`)

	first, err := p.RebuildIndexes(ctx, col.ID, false)
	require.NoError(t, err)
	second, err := p.RebuildIndexes(ctx, col.ID, false)
	require.NoError(t, err)
	assert.Equal(t, first.ValuesInserted, second.ValuesInserted)

	res := search(t, p, col.ID, "Name", query.ConditionEquals, "A")
	assert.Equal(t, 1, res.TotalRecords)
}

func TestDocumentLifecycle(t *testing.T) {
	p := newTestPersistence(t, Options{})
	ctx := context.Background()
	col := createCollection(t, p, &core.CreateCollectionOptions{Name: "docs"})

	body := `{"Name":"Joel","Score":9.5}`
	doc, err := p.Ingest(ctx, col.ID, []byte(body), core.IngestOptions{
		Name:   "joel",
		Labels: []string{"alpha"},
		Tags:   map[string]string{"env": "test"},
	})
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(body))
	assert.Equal(t, hex.EncodeToString(sum[:]), doc.SHA256Hash)
	assert.Equal(t, int64(len(body)), doc.ContentLength)

	got, err := p.GetDocument(ctx, col.ID, doc.ID, ReadOptions{
		IncludeContent: true, IncludeLabels: true, IncludeTags: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, got.Labels)
	assert.Equal(t, map[string]string{"env": "test"}, got.Tags)
	assert.JSONEq(t, body, string(got.Content))

	exists, err := p.DocumentExists(ctx, col.ID, doc.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, p.DeleteDocument(ctx, col.ID, doc.ID))

	_, err = p.GetDocument(ctx, col.ID, doc.ID, ReadOptions{})
	assert.ErrorIs(t, err, core.ErrNotFound)

	res := search(t, p, col.ID, "Name", query.ConditionEquals, "Joel")
	assert.Zero(t, res.TotalRecords)
}

func TestLabelAndTagSearch(t *testing.T) {
	p := newTestPersistence(t, Options{})
	ctx := context.Background()
	col := createCollection(t, p, &core.CreateCollectionOptions{Name: "labeled"})

	d1, err := p.Ingest(ctx, col.ID, []byte(`{"N":1}`), core.IngestOptions{
		Labels: []string{"alpha", "beta"}, Tags: map[string]string{"env": "prod"},
	})
	require.NoError(t, err)
	_, err = p.Ingest(ctx, col.ID, []byte(`{"N":2}`), core.IngestOptions{
		Labels: []string{"alpha"},
	})
	require.NoError(t, err)

	res, err := p.Search(ctx, &query.SearchQuery{
		CollectionID: col.ID,
		Labels:       []string{"alpha", "beta"},
	})
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, d1.ID, res.Documents[0].ID)

	res, err = p.Search(ctx, &query.SearchQuery{
		CollectionID: col.ID,
		Tags:         map[string]string{"env": "prod"},
	})
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, d1.ID, res.Documents[0].ID)
}

func TestCollectionDeleteCascades(t *testing.T) {
	p := newTestPersistence(t, Options{})
	ctx := context.Background()
	col := createCollection(t, p, &core.CreateCollectionOptions{Name: "doomed"})

	for i := 0; i < 3; i++ {
		_, err := p.Ingest(ctx, col.ID, []byte(`{"Name":"x"}`), core.IngestOptions{
			Labels: []string{"l"}, Tags: map[string]string{"k": "v"},
		})
		require.NoError(t, err)
	}

	require.NoError(t, p.DeleteCollection(ctx, col.ID))

	_, err := p.GetCollection(ctx, col.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	res, err := p.Enumerate(ctx, &query.EnumerationQuery{})
	require.NoError(t, err)
	assert.Zero(t, res.TotalRecords)
}

func TestEmptyObjectIngest(t *testing.T) {
	p := newTestPersistence(t, Options{})
	ctx := context.Background()
	col := createCollection(t, p, &core.CreateCollectionOptions{Name: "empty"})

	doc := ingest(t, p, col.ID, `{}`)
	assert.NotEmpty(t, doc.SchemaID)

	elements, err := p.GetSchemaElements(ctx, doc.SchemaID)
	require.NoError(t, err)
	assert.Empty(t, elements)
}

func TestInvalidJSONIngest(t *testing.T) {
	p := newTestPersistence(t, Options{})
	col := createCollection(t, p, &core.CreateCollectionOptions{Name: "bad"})

	_, err := p.Ingest(context.Background(), col.ID, []byte(`{"Name":`), core.IngestOptions{})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, core.CodeInvalidJSON, verr.Errors[0].ErrorCode)
}

func TestSearchSQL(t *testing.T) {
	p := newTestPersistence(t, Options{})
	ctx := context.Background()
	col := createCollection(t, p, &core.CreateCollectionOptions{Name: "sql"})

	ingest(t, p, col.ID, `{"Name":"Joel","Age":40}`)
	ingest(t, p, col.ID, `{"Name":"Maria","Age":25}`)

	res, err := p.SearchSQL(ctx, col.ID, "SELECT * FROM documents WHERE Name = 'Joel'")
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)

	res, err = p.SearchSQL(ctx, col.ID, "SELECT * FROM documents WHERE Age > 30")
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)

	_, err = p.SearchSQL(ctx, col.ID, "DROP TABLE documents")
	var unsupported *core.UnsupportedOperationError
	require.ErrorAs(t, err, &unsupported)
}

func TestIsNullSemantics(t *testing.T) {
	p := newTestPersistence(t, Options{})
	col := createCollection(t, p, &core.CreateCollectionOptions{Name: "nullable"})

	withNull := ingest(t, p, col.ID, `{"A":null,"B":1}`)
	ingest(t, p, col.ID, `{"A":"set","B":2}`)
	ingest(t, p, col.ID, `{"B":3}`)

	// A JSON null leaf is a present row with a SQL NULL value; an absent
	// field has no row at all and matches neither condition.
	res := search(t, p, col.ID, "A", query.ConditionIsNull, "")
	require.Len(t, res.Documents, 1)
	assert.Equal(t, withNull.ID, res.Documents[0].ID)

	res = search(t, p, col.ID, "A", query.ConditionIsNotNull, "")
	require.Len(t, res.Documents, 1)
	assert.NotEqual(t, withNull.ID, res.Documents[0].ID)
}

func TestEnumerationPaging(t *testing.T) {
	p := newTestPersistence(t, Options{})
	ctx := context.Background()
	col := createCollection(t, p, &core.CreateCollectionOptions{Name: "paged"})

	for i := 0; i < 5; i++ {
		ingest(t, p, col.ID, `{"N":1}`)
	}

	res, err := p.Enumerate(ctx, &query.EnumerationQuery{CollectionID: col.ID, MaxResults: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, res.TotalRecords)
	assert.Len(t, res.Objects, 2)
	assert.Equal(t, 3, res.RecordsRemaining)
	assert.False(t, res.EndOfResults)

	res, err = p.Enumerate(ctx, &query.EnumerationQuery{CollectionID: col.ID, Skip: 4, MaxResults: 2})
	require.NoError(t, err)
	assert.Len(t, res.Objects, 1)
	assert.Zero(t, res.RecordsRemaining)
	assert.True(t, res.EndOfResults)
}

func TestIngestEventsEmitted(t *testing.T) {
	p := newTestPersistence(t, Options{EnableObjectLocking: true})
	col := createCollection(t, p, &core.CreateCollectionOptions{Name: "events"})

	received := make(chan PersistenceEvent, 1)
	id := p.RegisterSubscription(RegisterSubscriptionOptions{
		Event: DocumentIngestSuccess,
		Callback: func(ctx context.Context, event PersistenceEvent) error {
			select {
			case received <- event:
			default:
			}
			return nil
		},
	})
	defer p.UnregisterSubscription(id)
	require.Len(t, p.Subscriptions(), 1)

	doc := ingest(t, p, col.ID, `{"Name":"x"}`)

	event := <-received
	assert.Equal(t, DocumentIngestSuccess, event.Type)
	require.NotNil(t, event.DocumentID)
	assert.Equal(t, doc.ID, *event.DocumentID)
}
