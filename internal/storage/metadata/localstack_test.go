package metadata

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"
)

// localstackEndpoint — адрес LocalStack (переопределяется LOCALSTACK_ENDPOINT).
func localstackEndpoint() string {
	if v := os.Getenv("LOCALSTACK_ENDPOINT"); v != "" {
		return v
	}
	return "http://localhost:4566"
}

// setupLocalstackTable создаёт таблицу uploaded_files с GSI по предмету.
func setupLocalstackTable(t *testing.T, name string) *dynamodb.Client {
	t.Helper()
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion("us-east-1"))
	require.NoError(t, err)

	db := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(localstackEndpoint())
	})

	_, err = db.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(name),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("subject"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("upload_date"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String("subject-upload_date-index"),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("subject"), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String("upload_date"), KeyType: types.KeyTypeRange},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	var exists *types.ResourceInUseException
	if err != nil && !errors.As(err, &exists) {
		require.NoError(t, err)
	}
	t.Cleanup(func() {
		_, _ = db.DeleteTable(context.Background(), &dynamodb.DeleteTableInput{TableName: aws.String(name)})
	})
	return db
}

func TestDynamoTable_Localstack(t *testing.T) {
	db := setupLocalstackTable(t, "uploaded_files_test")
	ctx := context.Background()
	table := NewDynamoTable(db, "uploaded_files_test", "subject-upload_date-index")

	require.NoError(t, table.Ping(ctx))

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, table.Insert(ctx, remoteRecord("file_1", "chemistry", base)))
	require.NoError(t, table.Insert(ctx, remoteRecord("file_2", "chemistry", base.Add(time.Second))))
	require.NoError(t, table.Insert(ctx, remoteRecord("file_3", "", base.Add(2*time.Second))))
	require.ErrorIs(t, table.Insert(ctx, remoteRecord("file_1", "chemistry", base)), ErrConflict)

	chem, err := table.Query(ctx, Filter{Subject: "chemistry"})
	require.NoError(t, err)
	require.Len(t, chem, 2)
	require.Equal(t, "file_2", chem[0].ID)

	all, err := table.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "file_3", all[0].ID)

	require.NoError(t, table.DeleteByID(ctx, "file_3"))
	_, err = table.Get(ctx, "file_3")
	require.ErrorIs(t, err, ErrNotFound)
}
