package metadata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/bigkaa/coursehub-uploads/internal/domain/model"
)

// dynamoTimeLayout — формат upload_date с фиксированной точностью,
// чтобы строковая сортировка в индексе совпадала с хронологической.
const dynamoTimeLayout = "2006-01-02T15:04:05.000Z"

// DynamoAPI — подмножество клиента DynamoDB, используемое таблицей.
// Совместимо с dynamodb.QueryAPIClient и dynamodb.ScanAPIClient.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// dynamoItem — элемент таблицы DynamoDB.
// subject опускается при пустом значении, чтобы не попадать в GSI.
type dynamoItem struct {
	ID         string `dynamodbav:"id"`
	Name       string `dynamodbav:"name"`
	Type       string `dynamodbav:"type"`
	Size       int64  `dynamodbav:"size"`
	UploadDate string `dynamodbav:"upload_date"`
	FilePath   string `dynamodbav:"file_path"`
	FileURL    string `dynamodbav:"file_url"`
	Subject    string `dynamodbav:"subject,omitempty"`
}

func itemFromRow(r Row) dynamoItem {
	return dynamoItem{
		ID:         r.ID,
		Name:       r.Name,
		Type:       r.Type,
		Size:       r.Size,
		UploadDate: r.UploadDate.UTC().Format(dynamoTimeLayout),
		FilePath:   r.FilePath,
		FileURL:    r.FileURL,
		Subject:    r.Subject,
	}
}

func (it dynamoItem) row() (Row, error) {
	ts, err := time.Parse(dynamoTimeLayout, it.UploadDate)
	if err != nil {
		return Row{}, fmt.Errorf("некорректный upload_date %q у %s: %w", it.UploadDate, it.ID, err)
	}
	return Row{
		ID:         it.ID,
		Name:       it.Name,
		Type:       it.Type,
		Size:       it.Size,
		UploadDate: ts,
		FilePath:   it.FilePath,
		FileURL:    it.FileURL,
		Subject:    it.Subject,
	}, nil
}

// DynamoTable — Table поверх DynamoDB.
// Ключ таблицы — id; GSI subjectIndex: subject (HASH) + upload_date (RANGE).
type DynamoTable struct {
	client       DynamoAPI
	tableName    string
	subjectIndex string
}

// NewDynamoTable создаёт таблицу.
func NewDynamoTable(client DynamoAPI, tableName, subjectIndex string) *DynamoTable {
	return &DynamoTable{client: client, tableName: tableName, subjectIndex: subjectIndex}
}

// Insert — условная запись: существующий id даёт ErrConflict.
func (t *DynamoTable) Insert(ctx context.Context, rec *model.UploadRecord) error {
	row, err := RowFromRecord(rec)
	if err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(itemFromRow(row))
	if err != nil {
		return fmt.Errorf("ошибка сериализации элемента: %w", err)
	}

	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(t.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("%w: файл %s уже зарегистрирован", ErrConflict, row.ID)
		}
		return fmt.Errorf("ошибка записи в DynamoDB: %w", err)
	}
	return nil
}

// Query: с предметом — запрос к GSI в обратном порядке, без предмета — полный Scan
// с сортировкой в памяти.
func (t *DynamoTable) Query(ctx context.Context, f Filter) ([]*model.UploadRecord, error) {
	var items []dynamoItem
	var err error
	if f.Subject != "" {
		items, err = t.querySubject(ctx, f)
	} else {
		items, err = t.scanAll(ctx)
	}
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(items))
	for _, it := range items {
		r, err := it.row()
		if err != nil {
			return nil, err
		}
		rows = append(rows, r)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].UploadDate.Equal(rows[j].UploadDate) {
			return rows[i].ID > rows[j].ID
		}
		return rows[i].UploadDate.After(rows[j].UploadDate)
	})
	if f.Limit > 0 && len(rows) > f.Limit {
		rows = rows[:f.Limit]
	}

	result := make([]*model.UploadRecord, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.Record())
	}
	return result, nil
}

func (t *DynamoTable) querySubject(ctx context.Context, f Filter) ([]dynamoItem, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(t.tableName),
		IndexName:              aws.String(t.subjectIndex),
		KeyConditionExpression: aws.String("subject = :s"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s": &types.AttributeValueMemberS{Value: f.Subject},
		},
		ScanIndexForward: aws.Bool(false),
	}

	var items []dynamoItem
	paginator := dynamodb.NewQueryPaginator(t.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("ошибка запроса к DynamoDB: %w", err)
		}
		var batch []dynamoItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("ошибка десериализации элементов: %w", err)
		}
		items = append(items, batch...)
		if f.Limit > 0 && len(items) >= f.Limit {
			break
		}
	}
	return items, nil
}

func (t *DynamoTable) scanAll(ctx context.Context) ([]dynamoItem, error) {
	var items []dynamoItem
	paginator := dynamodb.NewScanPaginator(t.client, &dynamodb.ScanInput{
		TableName: aws.String(t.tableName),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования DynamoDB: %w", err)
		}
		var batch []dynamoItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("ошибка десериализации элементов: %w", err)
		}
		items = append(items, batch...)
	}
	return items, nil
}

func (t *DynamoTable) Get(ctx context.Context, id string) (*model.UploadRecord, error) {
	out, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(t.tableName),
		Key:       idKey(id),
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из DynamoDB: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var it dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("ошибка десериализации элемента: %w", err)
	}
	r, err := it.row()
	if err != nil {
		return nil, err
	}
	return r.Record(), nil
}

// DeleteByID удаляет элемент; отсутствие элемента определяется по ALL_OLD.
func (t *DynamoTable) DeleteByID(ctx context.Context, id string) error {
	out, err := t.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(t.tableName),
		Key:          idKey(id),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления из DynamoDB: %w", err)
	}
	if len(out.Attributes) == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *DynamoTable) Ping(ctx context.Context) error {
	_, err := t.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(t.tableName)})
	if err != nil {
		return fmt.Errorf("таблица %s недоступна: %w", t.tableName, err)
	}
	return nil
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}
