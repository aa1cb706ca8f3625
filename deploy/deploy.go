package deploy

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Role is a sync engine container role
type Role string

const (
	ReplicationManager Role = "replication-manager"
	ViewSyncer         Role = "view-syncer"
)

const (
	// ProductionStage is served from the bare base domain
	ProductionStage = "production"

	ZeroImage   = "rocicorp/zero:canary"
	ReplicaFile = "/tmp/sync-replica.db"
)

// Domain returns the application's domain for a stage
func Domain(stage, base string) string {
	if stage == ProductionStage {
		return base
	}
	return stage + "." + base
}

// AuthHost is where the issuer is served for a domain
func AuthHost(domain string) string {
	return "openauth." + domain
}

// ZeroHost is where the view syncer is served for a domain
func ZeroHost(domain string) string {
	return "zero." + domain
}

// FrontendURL is the origin the issuer redirects back to
func FrontendURL(domain string, dev bool) string {
	if dev {
		return "http://localhost:3000"
	}
	return "https://" + domain
}

// PostgresURL builds a connection string with escaped credentials
func PostgresURL(user, password, host, database string) string {
	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(user, password),
		Host:   host,
		Path:   "/" + database,
	}
	return u.String()
}

// SyncOptions describes one deployment of the sync engine
type SyncOptions struct {
	Stage       string
	Dev         bool
	DatabaseURL string
	// AuthURL is the issuer's base URL, the JWKS path is appended
	AuthURL    string
	SchemaJSON []byte
	// BackupBucket receives litestream backups outside of dev
	BackupBucket string
	// ChangeStreamerURL is the replication manager's address, required for a view syncer outside of dev
	ChangeStreamerURL string
}

// SyncEnv returns the container environment for a sync engine role
func SyncEnv(role Role, opts SyncOptions) (map[string]string, error) {
	if err := opts.validate(role); err != nil {
		return nil, err
	}

	env := map[string]string{
		"LOG_LEVEL":               "debug",
		"NO_COLOR":                "1",
		"ZERO_CVR_MAX_CONNS":      "10",
		"ZERO_UPSTREAM_MAX_CONNS": "10",
		"ZERO_UPSTREAM_DB":        opts.DatabaseURL,
		"ZERO_CVR_DB":             opts.DatabaseURL,
		"ZERO_CHANGE_DB":          opts.DatabaseURL,
		"ZERO_REPLICA_FILE":       ReplicaFile,
		"ZERO_SHARD_ID":           opts.Stage,
		"ZERO_AUTH_JWKS_URL":      strings.TrimRight(opts.AuthURL, "/") + "/.well-known/jwks.json",
		"ZERO_SCHEMA_JSON":        string(opts.SchemaJSON),
		"ZERO_IMAGE_URL":          ZeroImage,
	}
	if !opts.Dev {
		env["ZERO_LITESTREAM_BACKUP_URL"] = "s3://" + opts.BackupBucket + "/zero/backup"
	}

	switch role {
	case ReplicationManager:
		env["ZERO_CHANGE_MAX_CONNS"] = "3"
		env["ZERO_NUM_SYNC_WORKERS"] = "0"
	case ViewSyncer:
		if opts.Dev {
			env["ZERO_NUM_SYNC_WORKERS"] = "1"
		} else {
			env["ZERO_CHANGE_STREAMER_URI"] = opts.ChangeStreamerURL
		}
	}

	return env, nil
}

func (o SyncOptions) validate(role Role) error {
	var errs []error

	switch role {
	case ReplicationManager:
		if o.Dev {
			errs = append(errs, errors.New("dev stages run the view syncer alone"))
		}
	case ViewSyncer:
		if !o.Dev && o.ChangeStreamerURL == "" {
			errs = append(errs, errors.New("view syncer needs the replication manager url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown role %q", role))
	}

	if o.Stage == "" {
		errs = append(errs, errors.New("stage is required"))
	}
	if o.DatabaseURL == "" {
		errs = append(errs, errors.New("database url is required"))
	}
	if o.AuthURL == "" {
		errs = append(errs, errors.New("auth url is required"))
	}
	if len(o.SchemaJSON) == 0 {
		errs = append(errs, errors.New("schema json is required"))
	}
	if !o.Dev && o.BackupBucket == "" {
		errs = append(errs, errors.New("backup bucket is required outside of dev"))
	}

	return errors.Join(errs...)
}

// DotEnv renders env as sorted KEY=value lines, quoting values that need it
func DotEnv(env map[string]string) string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := env[k]
		if strings.ContainsAny(v, " \t\n\"'#$\\{}") {
			v = fmt.Sprintf("%q", v)
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
		b.WriteByte('\n')
	}
	return b.String()
}
