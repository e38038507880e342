// Package preview exposes a synced target table to any Postgres-wire SQL
// client through a DuckDB-backed server: a pgproto3 backend loop in front
// of an in-process DuckDB database, with one view registered per target
// table regardless of its underlying format. This is a read-only
// operational convenience; it never touches the sync engine and cannot
// mutate a table.
package preview

import (
	"context"
	"database/sql"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgproto3"
	_ "github.com/marcboeker/go-duckdb"

	"lakebridge/model"
)

// Table names one target table to register as a queryable DuckDB view.
type Table struct {
	Name     string
	Format   model.SourceFormat
	BasePath string
}

// Server is a Postgres-wire frontend backed by an in-process DuckDB
// database with one read-only view per registered Table.
type Server struct {
	db       *sql.DB
	listener net.Listener
}

// NewServer opens an in-memory DuckDB database, installs the extensions
// needed to scan the registered tables' native file formats, and listens
// for Postgres-wire connections on port.
func NewServer(port int, tables []Table) (*Server, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("opening duckdb: %w", err)
	}

	if err := loadExtensions(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("loading extensions: %w", err)
	}
	for _, t := range tables {
		if err := registerView(db, t); err != nil {
			db.Close()
			return nil, fmt.Errorf("registering view %s: %w", t.Name, err)
		}
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating listener: %w", err)
	}

	return &Server{db: db, listener: listener}, nil
}

func loadExtensions(db *sql.DB) error {
	extensions := []string{"iceberg", "delta", "parquet"}
	for _, ext := range extensions {
		if _, err := db.Exec(fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil {
			return fmt.Errorf("loading extension %s: %w", ext, err)
		}
	}
	return nil
}

// registerView wires one target table's native scanner function into a
// queryable view, so the format difference disappears behind plain SQL.
func registerView(db *sql.DB, t Table) error {
	var source string
	switch t.Format {
	case model.FormatIceberg:
		source = fmt.Sprintf("iceberg_scan('%s')", t.BasePath)
	case model.FormatDelta:
		source = fmt.Sprintf("delta_scan('%s')", t.BasePath)
	case model.FormatHudi:
		// DuckDB has no native Hudi reader; copy-on-write Hudi tables are
		// plain Parquet underneath, so a glob over every partition works
		// for the same files lakebridge's Hudi target writer produced.
		source = fmt.Sprintf("read_parquet('%s/*/*.parquet', union_by_name=true)", t.BasePath)
	default:
		return model.Newf(model.ErrConfigError, "no preview scanner for format %q", t.Format)
	}
	_, err := db.Exec(fmt.Sprintf("CREATE OR REPLACE VIEW %s AS SELECT * FROM %s", t.Name, source))
	return err
}

func (s *Server) Close() error {
	if s.listener != nil {
		s.listener.Close()
	}
	return s.db.Close()
}

// Start accepts Postgres-wire connections until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("accepting connection: %w", err)
			}
		}
		go s.handleConnection(ctx, conn)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	backend := pgproto3.NewBackend(conn, conn)

	if _, err := backend.ReceiveStartupMessage(); err != nil {
		return
	}

	backend.Send(&pgproto3.AuthenticationOk{})
	backend.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})
	if err := backend.Flush(); err != nil {
		return
	}

	for {
		msg, err := backend.Receive()
		if err != nil {
			return
		}

		switch msg := msg.(type) {
		case *pgproto3.Query:
			if err := s.handleQuery(ctx, backend, msg.String); err != nil {
				s.sendError(backend, err)
				continue
			}
		case *pgproto3.Terminate:
			return
		}
	}
}

func (s *Server) handleQuery(ctx context.Context, backend *pgproto3.Backend, query string) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return err
	}
	if err := s.sendRowDescription(backend, columnTypes); err != nil {
		return err
	}

	values := make([]any, len(columnTypes))
	scanArgs := make([]any, len(columnTypes))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return err
		}
		dataRow := &pgproto3.DataRow{Values: make([][]byte, len(columnTypes))}
		for i, val := range values {
			if val == nil {
				dataRow.Values[i] = nil
				continue
			}
			dataRow.Values[i] = []byte(fmt.Sprintf("%v", val))
		}
		backend.Send(dataRow)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	backend.Send(&pgproto3.CommandComplete{CommandTag: []byte("SELECT")})
	backend.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})
	return backend.Flush()
}

func (s *Server) sendRowDescription(backend *pgproto3.Backend, columns []*sql.ColumnType) error {
	fields := make([]pgproto3.FieldDescription, len(columns))
	for i, col := range columns {
		dataTypeOID := uint32(25)
		if name := col.DatabaseTypeName(); name != "" {
			dataTypeOID = mapDataTypeToOID(name)
		}
		fields[i] = pgproto3.FieldDescription{
			Name:         []byte(col.Name()),
			DataTypeOID:  dataTypeOID,
			DataTypeSize: -1,
			TypeModifier: -1,
		}
	}
	backend.Send(&pgproto3.RowDescription{Fields: fields})
	return backend.Flush()
}

func (s *Server) sendError(backend *pgproto3.Backend, err error) {
	backend.Send(&pgproto3.ErrorResponse{Severity: "ERROR", Code: "XX000", Message: err.Error()})
	backend.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})
	_ = backend.Flush()
}

func mapDataTypeToOID(databaseTypeName string) uint32 {
	switch databaseTypeName {
	case "BOOL":
		return 16
	case "INT8":
		return 20
	case "INT4":
		return 23
	case "FLOAT4":
		return 700
	case "FLOAT8":
		return 701
	case "VARCHAR", "TEXT":
		return 25
	case "DATE":
		return 1082
	case "TIMESTAMP":
		return 1114
	default:
		return 25
	}
}
