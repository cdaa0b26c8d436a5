package s3

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DDBClient is the subset of the DynamoDB API the commit store uses.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// ErrConcurrentCommit is returned when another writer committed a dump for
// the same index between this writer's read and its commit.
var ErrConcurrentCommit = errors.New("concurrent dump commit detected")

// CommitStore tracks which dump blob is current for an index, using DynamoDB
// conditional writes for the compare-and-swap semantics S3 lacks. Writers
// upload a dump to the S3 store under a fresh name, then publish it here;
// readers resolve the current name before loading.
//
// Table schema:
//   - Partition key: index_uri (string) - the S3 bucket/prefix of the index
//   - Sort key: version (number) - monotonically increasing commit version
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name anngo-commits \
//	  --attribute-definitions AttributeName=index_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=index_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type CommitStore struct {
	client    DDBClient
	tableName string
	indexURI  string
}

// NewCommitStore creates a commit store for the index identified by indexURI
// (conventionally "s3://bucket/prefix").
func NewCommitStore(client DDBClient, tableName, indexURI string) *CommitStore {
	return &CommitStore{
		client:    client,
		tableName: tableName,
		indexURI:  indexURI,
	}
}

// Current returns the name of the current dump blob and its commit version.
// A zero version means no dump has been committed yet.
func (s *CommitStore) Current(ctx context.Context) (string, uint64, error) {
	resp, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("index_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.indexURI},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return "", 0, fmt.Errorf("query commit table: %w", err)
	}

	if len(resp.Items) == 0 {
		return "", 0, nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return "", 0, errors.New("invalid version attribute in commit table")
	}
	nameAttr, ok := item["dump_name"].(*types.AttributeValueMemberS)
	if !ok {
		return "", 0, errors.New("invalid dump_name attribute in commit table")
	}

	var version uint64
	if _, err := fmt.Sscanf(versionAttr.Value, "%d", &version); err != nil {
		return "", 0, fmt.Errorf("parse commit version: %w", err)
	}

	return nameAttr.Value, version, nil
}

// Commit atomically publishes dumpName as the current dump. It fails with
// ErrConcurrentCommit if another writer published a version in the meantime.
func (s *CommitStore) Commit(ctx context.Context, dumpName string) (uint64, error) {
	_, currentVersion, err := s.Current(ctx)
	if err != nil {
		return 0, err
	}

	newVersion := currentVersion + 1

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"index_uri": &types.AttributeValueMemberS{Value: s.indexURI},
			"version":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", newVersion)},
			"dump_name": &types.AttributeValueMemberS{Value: dumpName},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return 0, ErrConcurrentCommit
		}
		return 0, fmt.Errorf("commit dump version: %w", err)
	}

	return newVersion, nil
}
