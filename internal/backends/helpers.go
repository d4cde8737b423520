package backends

import (
	"bedrock/internal/backends/ddb"
	"bedrock/internal/ports"
	"bedrock/internal/resource"
	"bedrock/internal/types"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	log "github.com/sirupsen/logrus"

	redisbackend "bedrock/internal/backends/redis"
)

const (
	ConfigBackendEnvKey = "CONFIG_BACKEND"
	BackendFile         = "file"
	BackendRedis        = "redis"
	BackendDDB          = "ddb"

	DDBEndpointKey = "DDB_ENDPOINT"
	DDBTableKey    = "DDB_TABLE"

	RedisHost  = "REDIS_HOST"
	RedisPort  = "REDIS_PORT"
	RedisUser  = "REDIS_USER"
	RedisPass  = "REDIS_PASS"
	RedisTLS   = "REDIS_SSL"
	RedisDBNum = "REDIS_DB_NUM"

	SQLDriver          = "SQL_DRIVER"
	SQLURL             = "SQL_URL"
	SQLUser            = "SQL_USER"
	SQLPass            = "SQL_PASS"
	SQLMapperRoots     = "SQL_MAPPER_ROOTS"
	SQLMapperLocations = "SQL_MAPPER_LOCATIONS"

	MapperDir      = "BEDROCK_MAPPER_DIR"
	MapperS3Bucket = "BEDROCK_MAPPER_S3_BUCKET"
	S3Endpoint     = "S3_ENDPOINT"
)

// KVSpecFromEnv reads the single key-value client described by the REDIS_*
// variables.
func KVSpecFromEnv() (types.KVClientSpec, error) {
	port, err := strconv.Atoi(getenv(RedisPort, "6379"))
	if err != nil {
		return types.KVClientSpec{}, fmt.Errorf("invalid Redis port: %w", err)
	}
	dbNum, err := strconv.Atoi(getenv(RedisDBNum, "0"))
	if err != nil {
		return types.KVClientSpec{}, fmt.Errorf("invalid Redis DB number: %w", err)
	}
	return types.KVClientSpec{
		Host:     getenv(RedisHost, "localhost"),
		Port:     port,
		Username: os.Getenv(RedisUser),
		Password: os.Getenv(RedisPass),
		TLS:      parseBoolean(getenv(RedisTLS, "false")),
		Database: dbNum,
	}, nil
}

// SQLSpecFromEnv reads the single relational client described by the SQL_*
// variables. It reports false when SQL_URL is unset.
func SQLSpecFromEnv() (types.SQLClientSpec, bool) {
	url := os.Getenv(SQLURL)
	if url == "" {
		return types.SQLClientSpec{}, false
	}
	return types.SQLClientSpec{
		Driver:          getenv(SQLDriver, "pgx"),
		URL:             url,
		Username:        os.Getenv(SQLUser),
		Password:        os.Getenv(SQLPass),
		MapperScanRoots: splitList(os.Getenv(SQLMapperRoots)),
		MapperLocations: splitList(os.Getenv(SQLMapperLocations)),
	}, true
}

// ConfigStoreFromEnv returns the shared client definitions store selected by
// CONFIG_BACKEND: "redis" (connection from the REDIS_* variables), "ddb"
// (table DDB_TABLE), or nil for "file". A non-nil Redis client must be closed
// by the caller.
func ConfigStoreFromEnv(ctx context.Context) (ports.ConfigStore, *redisbackend.Client, error) {
	switch backend := getenv(ConfigBackendEnvKey, BackendFile); backend {
	case BackendRedis:
		spec, err := KVSpecFromEnv()
		if err != nil {
			return nil, nil, err
		}
		cfg, err := spec.Build()
		if err != nil {
			return nil, nil, err
		}
		cli, err := redisbackend.NewClient(ctx, "config-store", cfg)
		if err != nil {
			return nil, nil, err
		}
		return redisbackend.NewConfigStore(cli.Redis()), cli, nil
	case BackendDDB:
		cli, err := ddbClientFromEnv(ctx)
		if err != nil {
			return nil, nil, err
		}
		store, err := ddb.NewConfigStore(ctx, getenv(DDBTableKey, "bedrock_clients"), cli)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case BackendFile:
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown config backend %q", backend)
	}
}

// ResourceSourceFromEnv picks where mapping resources are read from: an S3
// bucket when BEDROCK_MAPPER_S3_BUCKET is set, otherwise the directory named
// by BEDROCK_MAPPER_DIR (default ".").
func ResourceSourceFromEnv(ctx context.Context) (ports.ResourceSource, error) {
	bucket := os.Getenv(MapperS3Bucket)
	if bucket == "" {
		dir := getenv(MapperDir, ".")
		log.WithField("dir", dir).Info("reading mapping resources from directory")
		return resource.NewDirSource(dir), nil
	}
	client, err := s3ClientFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	log.WithField("bucket", bucket).Info("reading mapping resources from S3")
	return resource.NewS3Source(client, bucket), nil
}

// ddbClientFromEnv creates a DynamoDB client from environment variables, if any.
func ddbClientFromEnv(ctx context.Context) (*dynamodb.Client, error) {
	var ddbEndpoint *string
	if de := os.Getenv(DDBEndpointKey); de != "" {
		ddbEndpoint = aws.String(de)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if ddbEndpoint != nil {
			// This is used for testing only locally
			o.BaseEndpoint = ddbEndpoint
			if o.Region == "" {
				o.Region = "us-east-1"
			}
			o.Credentials = credentials.NewStaticCredentialsProvider("test", "test", "")
		}
	}), nil
}

// s3ClientFromEnv creates an S3 client from environment variables, if any.
func s3ClientFromEnv(ctx context.Context) (*s3.Client, error) {
	var endpoint *string
	if e := os.Getenv(S3Endpoint); e != "" {
		endpoint = aws.String(e)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != nil {
			// This is used for testing only locally
			o.BaseEndpoint = endpoint
			o.UsePathStyle = true
			o.Region = getenv("AWS_REGION", "us-east-1")
			o.Credentials = credentials.NewStaticCredentialsProvider(
				getenv("AWS_ACCESS_KEY_ID", "x"),
				getenv("AWS_SECRET_ACCESS_KEY", "x"),
				"",
			)
		}
	}), nil
}

// getenv retrieves the value of the environment variable named by the key.
func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func parseBoolean(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return b
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
