package opensearch

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	requestsigner "github.com/opensearch-project/opensearch-go/v2/signer/awsv2"
	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

type Config struct {
	// Addresses is a comma separated list of node URLs.
	Addresses          string
	Username           string
	Password           string
	InsecureSkipVerify bool
	Timeout            time.Duration
	// AWSRegion enables SigV4 signing for AWS managed domains. Credentials
	// come from the default AWS chain, Username and Password are ignored.
	AWSRegion string
	// AWSService is "es" for managed domains and "aoss" for serverless.
	AWSService string
}

type Client struct {
	os     *opensearch.Client
	logger *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Addresses) == "" {
		return nil, errors.New("opensearch address is empty")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	var addresses []string
	for _, a := range strings.Split(cfg.Addresses, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addresses = append(addresses, a)
		}
	}

	osConfig := opensearch.Config{
		Addresses: addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			MaxIdleConnsPerHost:   10,
			ResponseHeaderTimeout: cfg.Timeout,
			TLSClientConfig:       &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
		},
	}
	if cfg.AWSRegion != "" {
		service := cfg.AWSService
		if service == "" {
			service = "es"
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		signer, err := requestsigner.NewSignerWithService(awsCfg, service)
		if err != nil {
			return nil, fmt.Errorf("new aws request signer: %w", err)
		}
		osConfig.Username, osConfig.Password = "", ""
		osConfig.Signer = signer
	}

	osClient, err := opensearch.NewClient(osConfig)
	if err != nil {
		return nil, fmt.Errorf("new opensearch client: %w", err)
	}

	return &Client{
		os:     osClient,
		logger: logger.Named("opensearch"),
	}, nil
}

// ResponseError is a non 2xx answer from the cluster.
type ResponseError struct {
	StatusCode int
	Type       string
	Reason     string
	Body       string
}

func (e *ResponseError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("opensearch returned %d: %s: %s", e.StatusCode, e.Type, e.Reason)
	}
	return fmt.Sprintf("opensearch returned %d: %s", e.StatusCode, e.Body)
}

func (e *ResponseError) AlreadyExists() bool {
	return e.Type == "resource_already_exists_exception"
}

func IsAlreadyExists(err error) bool {
	var re *ResponseError
	return errors.As(err, &re) && re.AlreadyExists()
}

func IsNotFound(err error) bool {
	var re *ResponseError
	if errors.As(err, &re) {
		return re.StatusCode == http.StatusNotFound
	}
	return false
}

func responseError(res *opensearchapi.Response) error {
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read error response: %w", err)
	}

	re := &ResponseError{
		StatusCode: res.StatusCode,
		Body:       string(b),
	}
	var body struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(b, &body) == nil && len(body.Error) > 0 {
		var cause struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		}
		if json.Unmarshal(body.Error, &cause) == nil {
			re.Type = cause.Type
			re.Reason = cause.Reason
		} else {
			var reason string
			if json.Unmarshal(body.Error, &reason) == nil {
				re.Reason = reason
			}
		}
	}
	return re
}

type acknowledgedResponse struct {
	Acknowledged bool `json:"acknowledged"`
}

func decodeAcknowledged(res *opensearchapi.Response) (bool, error) {
	var ack acknowledgedResponse
	if err := json.NewDecoder(res.Body).Decode(&ack); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return ack.Acknowledged, nil
}
