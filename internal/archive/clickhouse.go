package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus88/Simple-PFT-Node/internal/models"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"
)

// ArchiveConfig holds ClickHouse connection settings.
type ArchiveConfig struct {
	Addr     string
	Database string
	Username string
	Password string

	Logger *logrus.Logger
}

// Archive writes every confirmed response to ClickHouse for later analysis.
type Archive struct {
	conn   driver.Conn
	logger *logrus.Logger
}

func NewArchive(ctx context.Context, cfg ArchiveConfig) (*Archive, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	cfg.Logger.WithFields(logrus.Fields{
		"addr":     cfg.Addr,
		"database": cfg.Database,
	}).Info("connected to ClickHouse")

	return &Archive{conn: conn, logger: cfg.Logger}, nil
}

// EnsureSchema creates the responses table when it does not exist yet.
func (a *Archive) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS responses (
			request_signature  String,
			response_signature String,
			sender             String,
			request_memo       String,
			response_memo      String,
			analysis_ok        UInt8,
			responded_at       DateTime
		) ENGINE = MergeTree()
		ORDER BY (responded_at, request_signature)
	`

	if err := a.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create responses table: %w", err)
	}
	return nil
}

// InsertResponse archives a single confirmed response.
func (a *Archive) InsertResponse(ctx context.Context, rec *models.ResponseRecord) error {
	query := `
		INSERT INTO responses (
			request_signature, response_signature, sender,
			request_memo, response_memo, analysis_ok, responded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	analysisOK := uint8(0)
	if rec.AnalysisOK {
		analysisOK = 1
	}

	err := a.conn.Exec(ctx, query,
		rec.RequestSignature,
		rec.ResponseSignature,
		rec.From,
		rec.RequestMemo,
		rec.ResponseMemo,
		analysisOK,
		rec.RespondedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert response: %w", err)
	}

	return nil
}

// RecentResponses returns the newest archived responses.
func (a *Archive) RecentResponses(ctx context.Context, limit int) ([]*models.ResponseRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT request_signature, response_signature, sender,
		       request_memo, response_memo, analysis_ok, responded_at
		FROM responses
		ORDER BY responded_at DESC
		LIMIT ?
	`

	rows, err := a.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query responses: %w", err)
	}
	defer rows.Close()

	var out []*models.ResponseRecord
	for rows.Next() {
		var (
			rec        models.ResponseRecord
			analysisOK uint8
			responded  time.Time
		)
		if err := rows.Scan(
			&rec.RequestSignature,
			&rec.ResponseSignature,
			&rec.From,
			&rec.RequestMemo,
			&rec.ResponseMemo,
			&analysisOK,
			&responded,
		); err != nil {
			return nil, fmt.Errorf("failed to scan response row: %w", err)
		}
		rec.AnalysisOK = analysisOK == 1
		rec.RespondedAt = responded
		out = append(out, &rec)
	}

	return out, nil
}

func (a *Archive) Close() error {
	return a.conn.Close()
}
