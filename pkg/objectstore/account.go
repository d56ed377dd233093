package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	defaultProtocol = "https"
	defaultRegion   = "us-east-1"
	defaultSuffix   = "amazonaws.com"
)

// Account is a parsed connection string describing one storage account.
type Account struct {
	Protocol        string
	Endpoint        string
	Region          string
	EndpointSuffix  string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// ParseAccount parses a connection string made of semicolon separated
// Key=Value pairs, for example:
//
//	DefaultEndpointsProtocol=https;BlobEndpoint=https://svc.example/acct;AccessKeyId=AK;SecretAccessKey=SK
//
// Keys are case-insensitive. Unknown keys are rejected.
func ParseAccount(conn string) (Account, error) {
	conn = strings.TrimSpace(conn)
	if conn == "" {
		return Account{}, errors.New("empty connection string")
	}
	acct := Account{
		Protocol:       defaultProtocol,
		Region:         defaultRegion,
		EndpointSuffix: defaultSuffix,
	}
	for _, segment := range strings.Split(conn, ";") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		key, value, ok := strings.Cut(segment, "=")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if !ok || key == "" {
			return Account{}, fmt.Errorf("malformed connection string segment %q", segment)
		}
		switch strings.ToLower(key) {
		case "defaultendpointsprotocol":
			acct.Protocol = strings.ToLower(value)
		case "blobendpoint":
			acct.Endpoint = value
		case "region":
			acct.Region = value
		case "endpointsuffix":
			acct.EndpointSuffix = value
		case "accesskeyid", "accountname":
			acct.AccessKeyID = value
		case "secretaccesskey", "accountkey":
			acct.SecretAccessKey = value
		case "sessiontoken":
			acct.SessionToken = value
		default:
			return Account{}, fmt.Errorf("unknown connection string key %q", key)
		}
	}
	if err := acct.validate(); err != nil {
		return Account{}, err
	}
	return acct, nil
}

func (a Account) validate() error {
	if a.Protocol != "http" && a.Protocol != "https" {
		return fmt.Errorf("unsupported protocol %q", a.Protocol)
	}
	if (a.AccessKeyID == "") != (a.SecretAccessKey == "") {
		return errors.New("access key id and secret access key must be set together")
	}
	if a.Endpoint != "" {
		u, err := url.Parse(a.Endpoint)
		if err != nil {
			return fmt.Errorf("parse blob endpoint: %w", err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("blob endpoint %q is not an absolute http(s) url", a.Endpoint)
		}
		return nil
	}
	if a.Region == "" || a.EndpointSuffix == "" {
		return errors.New("connection string names neither a blob endpoint nor a region")
	}
	return nil
}

// BlobEndpoint returns the slash-terminated endpoint of the account, falling
// back to the regional S3 endpoint when none was configured.
func (a Account) BlobEndpoint() string {
	endpoint := a.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s://s3.%s.%s", a.Protocol, a.Region, a.EndpointSuffix)
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return endpoint
}

// Dial builds an S3 client for the account. Requests are anonymous unless the
// account carries static credentials.
func Dial(ctx context.Context, acct Account) (*S3Store, error) {
	region := acct.Region
	if region == "" {
		region = defaultRegion
	}
	loaders := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if acct.AccessKeyID != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(acct.AccessKeyID, acct.SecretAccessKey, acct.SessionToken)))
	} else {
		loaders = append(loaders, config.WithCredentialsProvider(aws.AnonymousCredentials{}))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	endpoint := acct.BlobEndpoint()
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
	return NewS3Store(client, endpoint), nil
}
