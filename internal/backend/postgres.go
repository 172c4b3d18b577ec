package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Limetric/schemaferry/internal/dialect"
	"github.com/Limetric/schemaferry/internal/model"
)

// Postgres is a PostgreSQL target backed by a pgx pool. Catalog reads are
// limited to the connection's current schema.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects and pings the server.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Name() string { return "PostgreSQL" }

func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) Exec(ctx context.Context, sql string) error {
	_, err := p.pool.Exec(ctx, sql)
	return err
}

func (p *Postgres) ServerVersion(ctx context.Context) (dialect.Version, error) {
	var v string
	if err := p.pool.QueryRow(ctx, "SHOW server_version").Scan(&v); err != nil {
		return dialect.Version{}, fmt.Errorf("server version: %w", err)
	}
	// "16.2 (Debian 16.2-1.pgdg120+2)"
	if f := strings.Fields(v); len(f) > 0 {
		v = f[0]
	}
	return dialect.ParseVersion(v)
}

func (p *Postgres) ReadModel(ctx context.Context) (*model.Database, error) {
	b := newTableBuilder()
	if err := p.readTables(ctx, b); err != nil {
		return nil, fmt.Errorf("introspect tables: %w", err)
	}
	for _, t := range b.db.Tables {
		if err := p.readColumns(ctx, t); err != nil {
			return nil, fmt.Errorf("introspect columns for %s: %w", t.Name, err)
		}
		if err := p.readPrimaryKey(ctx, t); err != nil {
			return nil, fmt.Errorf("introspect primary key for %s: %w", t.Name, err)
		}
	}
	if err := p.readViews(ctx, b); err != nil {
		return nil, fmt.Errorf("introspect views: %w", err)
	}
	return b.finish()
}

func (p *Postgres) readViews(ctx context.Context, b *tableBuilder) error {
	rows, err := p.pool.Query(ctx,
		`SELECT c.relname, pg_get_viewdef(c.oid), c.relkind = 'm',
		        COALESCE(obj_description(c.oid, 'pg_class'), '')
		 FROM pg_class c
		 JOIN pg_namespace n ON n.oid = c.relnamespace
		 WHERE n.nspname = current_schema() AND c.relkind IN ('v', 'm')
		 ORDER BY c.relname`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		v := &model.View{}
		if err := rows.Scan(&v.Name, &v.Definition, &v.Materialized, &v.Comment); err != nil {
			return err
		}
		b.db.Views = append(b.db.Views, v)
	}
	return rows.Err()
}

func (p *Postgres) readTables(ctx context.Context, b *tableBuilder) error {
	rows, err := p.pool.Query(ctx,
		`SELECT c.relname, COALESCE(obj_description(c.oid, 'pg_class'), '')
		 FROM pg_class c
		 JOIN pg_namespace n ON n.oid = c.relnamespace
		 WHERE n.nspname = current_schema() AND c.relkind = 'r'
		 ORDER BY c.relname`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var name, comment string
		if err := rows.Scan(&name, &comment); err != nil {
			return err
		}
		b.table(name).Comment = comment
	}
	return rows.Err()
}

func (p *Postgres) readColumns(ctx context.Context, t *model.Table) error {
	rows, err := p.pool.Query(ctx,
		`SELECT c.column_name, c.data_type,
		        COALESCE(c.character_maximum_length, c.numeric_precision, 0),
		        COALESCE(c.numeric_scale, 0),
		        c.is_nullable = 'NO',
		        COALESCE(c.column_default, ''),
		        c.is_identity = 'YES',
		        COALESCE(col_description(format('%I.%I', c.table_schema, c.table_name)::regclass, c.ordinal_position), '')
		 FROM information_schema.columns c
		 WHERE c.table_schema = current_schema() AND c.table_name = $1
		 ORDER BY c.ordinal_position`, t.Name)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			name, dataType, def, comment string
			size, scale                  int32
			required, identity           bool
		)
		if err := rows.Scan(&name, &dataType, &size, &scale, &required, &def, &identity, &comment); err != nil {
			return err
		}
		col := &model.Column{
			Name:          name,
			Required:      required,
			AutoIncrement: identity || strings.HasPrefix(def, "nextval("),
			Comment:       comment,
		}
		col.Type, col.NativeType, col.Size, col.Scale = columnType(dataType, int(size), int(scale))
		if !col.AutoIncrement {
			col.Default = def
		}
		t.Columns = append(t.Columns, col)
	}
	return rows.Err()
}

func (p *Postgres) readPrimaryKey(ctx context.Context, t *model.Table) error {
	rows, err := p.pool.Query(ctx,
		`SELECT tc.constraint_name, kcu.column_name
		 FROM information_schema.table_constraints tc
		 JOIN information_schema.key_column_usage kcu
		   ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
		 WHERE tc.constraint_type = 'PRIMARY KEY'
		   AND tc.table_schema = current_schema() AND tc.table_name = $1
		 ORDER BY kcu.ordinal_position`, t.Name)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var constraint, column string
		if err := rows.Scan(&constraint, &column); err != nil {
			return err
		}
		// the server's default name is left unset, as in models that never named it
		if constraint != strings.ToLower(t.Name)+"_pkey" {
			t.PrimaryKeyName = constraint
		}
		if c := t.FindColumn(column); c != nil {
			c.PrimaryKey = true
		}
	}
	return rows.Err()
}
