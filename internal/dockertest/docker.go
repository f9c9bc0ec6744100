package dockertest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/kaytu-io/kaytu-util/pkg/koanf"
	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func getEnv(key, fallback string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		value = fallback
	}
	return value
}

func GetDockerHost() string {
	return getEnv("DOCKERTEST_HOST", "localhost")
}

// newPool connects to docker or skips the test when no daemon is reachable.
func newPool(t *testing.T) *dockertest.Pool {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker is not available: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker is not available: %v", err)
	}
	return pool
}

type PostgresServer struct {
	Config koanf.Postgres
	ORM    *gorm.DB
}

func StartupPostgreSQL(t *testing.T) PostgresServer {
	t.Helper()

	require := require.New(t)
	pool := newPool(t)

	resource, err := pool.Run("postgres", "14.2-alpine", []string{"POSTGRES_PASSWORD=postgres"})
	require.NoError(err, "status postgres")

	t.Cleanup(func() {
		err := pool.Purge(resource)
		require.NoError(err, "purge resource %s", resource)
	})

	cfg := koanf.Postgres{
		Host:     GetDockerHost(),
		Port:     resource.GetPort("5432/tcp"),
		Username: "postgres",
		Password: "postgres",
		DB:       "postgres",
		SSLMode:  "disable",
	}

	var orm *gorm.DB
	// exponential backoff-retry, because the application in the container might not be ready to accept connections yet
	err = pool.Retry(func() error {
		orm, err = gorm.Open(postgres.Open(fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.DB)), &gorm.Config{})
		if err != nil {
			return err
		}

		d, err := orm.DB()
		if err != nil {
			return err
		}

		return d.Ping()
	})
	require.NoError(err, "wait for postgres connection")

	return PostgresServer{
		Config: cfg,
		ORM:    orm,
	}
}

type OpenSearchServer struct {
	Address string
}

func StartupOpenSearch(t *testing.T) OpenSearchServer {
	t.Helper()

	require := require.New(t)
	pool := newPool(t)

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository:   "opensearchproject/opensearch",
		Tag:          "2.11.1",
		ExposedPorts: []string{"9200"},
		Env: []string{
			"discovery.type=single-node",
			"DISABLE_SECURITY_PLUGIN=true",
			"OPENSEARCH_JAVA_OPTS=-Xms512m -Xmx512m",
		},
	})
	require.NoError(err, "status opensearch")
	osUrl := fmt.Sprintf("http://%s:", GetDockerHost()) + resource.GetPort("9200/tcp")
	t.Cleanup(func() {
		err := pool.Purge(resource)
		require.NoError(err, "purge resource %s", resource)
	})

	// exponential backoff-retry, because the application in the container might not be ready to accept connections yet
	err = pool.Retry(func() error {
		res, err := http.Get(osUrl + "/_cluster/health")
		if err != nil {
			return err
		}
		defer res.Body.Close()

		body, err := io.ReadAll(res.Body)
		if err != nil {
			return err
		}

		var resp struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return err
		}
		if resp.Status != "green" && resp.Status != "yellow" {
			return fmt.Errorf("cluster status %q", resp.Status)
		}
		return nil
	})
	require.NoError(err, "wait for opensearch connection")

	return OpenSearchServer{
		Address: osUrl,
	}
}
