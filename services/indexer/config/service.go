package config

import "github.com/kaytu-io/kaytu-util/pkg/koanf"

type ElasticSearch struct {
	Address            string `json:"address,omitempty" koanf:"address"`
	Username           string `json:"username,omitempty" koanf:"username"`
	Password           string `json:"password,omitempty" koanf:"password"`
	InsecureSkipVerify bool   `json:"insecure_skip_verify,omitempty" koanf:"insecure_skip_verify"`
	// IndexResolver selects the mapping set, "default" or "ngram".
	IndexResolver string `json:"index_resolver,omitempty" koanf:"index_resolver"`
	// TimeoutSeconds bounds every call to the cluster.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" koanf:"timeout_seconds"`
	// AwsRegion switches to SigV4 signed requests against an AWS domain.
	AwsRegion  string `json:"aws_region,omitempty" koanf:"aws_region"`
	AwsService string `json:"aws_service,omitempty" koanf:"aws_service"`
}

type Tracing struct {
	JaegerAgentHost string `json:"jaeger_agent_host,omitempty" koanf:"jaeger_agent_host"`
	ServiceName     string `json:"service_name,omitempty" koanf:"service_name"`
}

type SearchIndexConfig struct {
	Postgres      koanf.Postgres   `json:"postgres,omitempty" koanf:"postgres"`
	ElasticSearch ElasticSearch    `json:"elasticsearch,omitempty" koanf:"elasticsearch"`
	Http          koanf.HttpServer `json:"http,omitempty" koanf:"http"`
	Tracing       Tracing          `json:"tracing,omitempty" koanf:"tracing"`

	PrometheusPushAddress string `json:"prometheus_push_address,omitempty" koanf:"prometheus_push_address"`
	WaitForHealthy        bool   `json:"wait_for_healthy,omitempty" koanf:"wait_for_healthy"`
}
